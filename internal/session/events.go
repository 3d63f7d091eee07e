package session

import (
	"sync"

	"chesskit/internal/core"
)

// Bus is a typed publish/subscribe channel for coordinator events.
// Subscribers are invoked synchronously in subscription order; slow
// consumers should hand off to their own goroutine.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(core.Event)
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(core.Event))}
}

// Subscription is an explicit unsubscribe handle.
type Subscription struct {
	bus *Bus
	id  int
}

func (s *Subscription) Unsubscribe() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()
	s.bus = nil
}

func (b *Bus) Subscribe(fn func(core.Event)) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	return &Subscription{bus: b, id: id}
}

func (b *Bus) publish(ev core.Event) {
	b.mu.Lock()
	fns := make([]func(core.Event), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
