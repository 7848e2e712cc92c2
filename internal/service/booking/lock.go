package booking

import "sync"

// eventLocks serializes same-event operations in-process, on top of the
// storage row lock. Different events never contend.
type eventLocks struct {
	mu sync.Mutex
	m  map[int64]*sync.Mutex
}

// lock acquires the mutex for one event and returns its release function.
func (l *eventLocks) lock(eventID int64) func() {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[int64]*sync.Mutex)
	}
	em, ok := l.m[eventID]
	if !ok {
		em = &sync.Mutex{}
		l.m[eventID] = em
	}
	l.mu.Unlock()

	em.Lock()
	return em.Unlock
}
