package session

// Store is the per-user session storage contract. Implementations must make
// Update atomic per user: two concurrent events for the same user never
// interleave inside the closure, so state transitions are single-writer.
type Store interface {
	// Update runs fn against the user's session (creating it on first use)
	// under that user's lock and persists the result. It returns a copy of
	// the session after mutation.
	Update(userID string, fn func(*Session)) Session

	// Get returns a copy of the session, if present.
	Get(userID string) (Session, bool)

	// Reset clears instruction/files/state for the user in place.
	Reset(userID string)

	// Delete removes the session entirely.
	Delete(userID string)
}

// EvictFunc is invoked when an idle session is evicted so its backing file
// storage can be discarded.
type EvictFunc func(userID string, files []FileRef)
