package redis

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"sanbot-be/pkg/session"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "sanbot:session:"

// SessionRepository is a redis-backed session.Store for deployments that
// want session state to survive a process restart. Per-user mutual exclusion
// is still process-local, so this assumes a single bot instance in front of
// the shared store; cross-instance locking would need a redis lock on top.
// Idle expiry happens silently inside redis, without the file-cleanup hook
// the in-memory store offers.
type SessionRepository struct {
	rdb *redis.Client
	ttl time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewSessionRepository(rdb *redis.Client, idleTimeout time.Duration) *SessionRepository {
	return &SessionRepository{
		rdb:   rdb,
		ttl:   idleTimeout,
		locks: make(map[string]*sync.Mutex),
	}
}

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

func (r *SessionRepository) load(ctx context.Context, userID string) *session.Session {
	raw, err := r.rdb.Get(ctx, keyPrefix+userID).Bytes()
	if err == nil {
		var s session.Session
		if jsonErr := json.Unmarshal(raw, &s); jsonErr == nil {
			return &s
		}
	}
	return &session.Session{
		UserID:    userID,
		State:     session.StateAwaitingInstruction,
		CreatedAt: time.Now(),
	}
}

func (r *SessionRepository) save(ctx context.Context, s *session.Session) {
	raw, err := json.Marshal(s)
	if err != nil {
		return
	}
	r.rdb.Set(ctx, keyPrefix+s.UserID, raw, r.ttl)
}

func (r *SessionRepository) Update(userID string, fn func(*session.Session)) session.Session {
	l := r.userLock(userID)
	l.Lock()
	defer l.Unlock()

	ctx := context.Background()
	s := r.load(ctx, userID)
	fn(s)
	s.LastActivityAt = time.Now()
	r.save(ctx, s)

	cp := *s
	cp.Files = append([]session.FileRef(nil), s.Files...)
	return cp
}

func (r *SessionRepository) Get(userID string) (session.Session, bool) {
	l := r.userLock(userID)
	l.Lock()
	defer l.Unlock()

	raw, err := r.rdb.Get(context.Background(), keyPrefix+userID).Bytes()
	if err != nil {
		return session.Session{}, false
	}
	var s session.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return session.Session{}, false
	}
	return s, true
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
	r.rdb.Del(context.Background(), keyPrefix+userID)
}
