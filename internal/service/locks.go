package service

import "sync"

// userLocks serialises submission recording per user so concurrent
// submissions from one account cannot interleave their statistics updates.
// Locks for distinct users are independent.
type userLocks struct {
	mu    sync.Mutex
	locks map[uint]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[uint]*userLock)}
}

// acquire blocks until the per-user lock is held and returns its release
// function. Entries are removed once the last holder releases, so the map
// never grows with the user population.
func (l *userLocks) acquire(userID uint) func() {
	l.mu.Lock()
	entry, ok := l.locks[userID]
	if !ok {
		entry = &userLock{}
		l.locks[userID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}
