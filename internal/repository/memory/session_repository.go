package memory

import (
	"sync"
	"time"

	"sanbot-be/pkg/session"

	"github.com/patrickmn/go-cache"
)

// SessionRepository is the in-memory session.Store. Idle sessions are
// evicted by go-cache's periodic sweep; the eviction hook lets the owner
// discard any uploaded files still attached to the session. Files handed to
// an analysis task are removed from the session first, so the hook only ever
// sees files the session still owns.
type SessionRepository struct {
	cache *cache.Cache
	ttl   time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	hookMu sync.RWMutex
	hook   session.EvictFunc
}

func NewSessionRepository(idleTimeout time.Duration) *SessionRepository {
	r := &SessionRepository{
		cache: cache.New(idleTimeout, idleTimeout/2),
		ttl:   idleTimeout,
		locks: make(map[string]*sync.Mutex),
	}
	r.cache.OnEvicted(func(userID string, v interface{}) {
		r.hookMu.RLock()
		hook := r.hook
		r.hookMu.RUnlock()
		if hook == nil {
			return
		}
		if s, ok := v.(*session.Session); ok && len(s.Files) > 0 {
			hook(userID, s.Files)
		}
	})
	return r
}

// OnEvicted registers the idle-eviction hook.
func (r *SessionRepository) OnEvicted(fn session.EvictFunc) {
	r.hookMu.Lock()
	r.hook = fn
	r.hookMu.Unlock()
}

// userLock returns the mutex serializing all mutations for one user.
func (r *SessionRepository) userLock(userID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[userID] = l
	}
	return l
}

func (r *SessionRepository) load(userID string) *session.Session {
	if x, found := r.cache.Get(userID); found {
		return x.(*session.Session)
	}
	return &session.Session{
		UserID:    userID,
		State:     session.StateAwaitingInstruction,
		CreatedAt: time.Now(),
	}
}

func (r *SessionRepository) Update(userID string, fn func(*session.Session)) session.Session {
	l := r.userLock(userID)
	l.Lock()
	defer l.Unlock()

	s := r.load(userID)
	fn(s)
	s.LastActivityAt = time.Now()
	r.cache.Set(userID, s, r.ttl)
	return snapshot(s)
}

func (r *SessionRepository) Get(userID string) (session.Session, bool) {
	l := r.userLock(userID)
	l.Lock()
	defer l.Unlock()

	x, found := r.cache.Get(userID)
	if !found {
		return session.Session{}, false
	}
	return snapshot(x.(*session.Session)), true
}

func (r *SessionRepository) Reset(userID string) {
	r.Update(userID, func(s *session.Session) {
		s.Reset()
	})
}

func (r *SessionRepository) Delete(userID string) {
	l := r.userLock(userID)
	l.Lock()
	defer l.Unlock()
	r.cache.Delete(userID)
}

func snapshot(s *session.Session) session.Session {
	cp := *s
	cp.Files = append([]session.FileRef(nil), s.Files...)
	return cp
}
