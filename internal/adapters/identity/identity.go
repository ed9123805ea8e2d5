// Package identity provides the two authenticated-identity providers:
// a cloud provider over a Postgres users table and an in-process mock
// for local mode.
package identity

import (
	"sync"

	"github.com/fasttrack/core/internal/ports"
)

// broadcaster tracks the current identity and fans out change
// notifications. Both providers embed it.
type broadcaster struct {
	mu      sync.Mutex
	nextID  int
	subs    map[int]func(*ports.Identity)
	current *ports.Identity
}

func newBroadcaster() broadcaster {
	return broadcaster{subs: make(map[int]func(*ports.Identity))}
}

// Current returns the signed-in identity, or nil.
func (b *broadcaster) Current() *ports.Identity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// OnChange registers fn and invokes it once with the current state.
func (b *broadcaster) OnChange(fn func(*ports.Identity)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	current := b.current
	b.mu.Unlock()

	fn(current)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// set updates the current identity and notifies every subscriber
// synchronously, so sign-out observers clear their state before set
// returns.
func (b *broadcaster) set(identity *ports.Identity) {
	b.mu.Lock()
	b.current = identity
	subs := make([]func(*ports.Identity), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	for _, fn := range subs {
		fn(identity)
	}
}
