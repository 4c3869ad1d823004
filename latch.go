package keydir

import "sync"

// pageLatch is a per-page mutex. Only plain mutual exclusion plus a
// non-blocking attempt for the reclaim path are ever needed here, so it
// is a thin wrapper over sync.Mutex rather than a full reader/writer
// latch.
type pageLatch struct {
	mu sync.Mutex
}

func (l *pageLatch) Lock() {
	l.mu.Lock()
}

func (l *pageLatch) Unlock() {
	l.mu.Unlock()
}

// TryTake is a non-blocking attempt to acquire, used by the reclaim
// protocol to avoid lock-order deadlock against a concurrent operation
// working the other direction along a chain.
func (l *pageLatch) TryTake() bool {
	return l.mu.TryLock()
}
