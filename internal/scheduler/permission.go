package scheduler

import (
	"sync"
	"sync/atomic"
)

// Permission reports whether exact wake-ups may be scheduled and lets the
// scheduler ask the user for that authorization.
type Permission interface {
	Granted() bool
	Request()
}

// Gate is a Permission backed by a flag. While revoked, the request callback
// runs at most once until the flag is granted again.
type Gate struct {
	granted   atomic.Bool
	mu        sync.Mutex
	requested bool
	onRequest func()
}

// NewGate creates a gate. onRequest may be nil.
func NewGate(granted bool, onRequest func()) *Gate {
	g := &Gate{onRequest: onRequest}
	g.granted.Store(granted)
	return g
}

func (g *Gate) Granted() bool {
	return g.granted.Load()
}

func (g *Gate) Request() {
	g.mu.Lock()
	if g.requested || g.granted.Load() {
		g.mu.Unlock()
		return
	}
	g.requested = true
	onRequest := g.onRequest
	g.mu.Unlock()

	if onRequest != nil {
		onRequest()
	}
}

// Grant authorizes exact scheduling
func (g *Gate) Grant() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.granted.Store(true)
	g.requested = false
}

// Revoke withdraws the authorization
func (g *Gate) Revoke() {
	g.granted.Store(false)
}
