package kernel

import "sync"

// Spinlock is the short, bounded critical section protecting a primitive's
// internal state. It is never held across a suspension point.
type Spinlock struct {
	mu sync.Mutex
}

// Lock enters the critical section and returns the guard releasing it.
//
//	g := l.Lock()
//	defer g.Unlock()
func (l *Spinlock) Lock() Guard {
	l.mu.Lock()
	return Guard{lock: l, held: true}
}

// Guard is a scoped acquisition of a Spinlock.
type Guard struct {
	lock *Spinlock
	held bool
}

// Unlock leaves the critical section. Calling it again is a no-op, so an explicit
// early release may be combined with a deferred one.
func (g *Guard) Unlock() {
	if g.held {
		g.held = false
		g.lock.mu.Unlock()
	}
}

// Relock re-enters a critical section released by Unlock.
func (g *Guard) Relock() {
	if !g.held {
		g.lock.mu.Lock()
		g.held = true
	}
}

// Held reports whether the guard currently owns the lock.
func (g *Guard) Held() bool { return g.held }
