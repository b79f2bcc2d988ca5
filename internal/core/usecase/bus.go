package usecase

import (
	"context"
	"sync"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
)

type EventHandler func(ctx context.Context, event domain.Event)

// Bus is a typed publish/subscribe channel scoped to one application
// instance. Handlers run synchronously, in subscription order, on the
// publisher's goroutine.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscription
}

type subscription struct {
	id      int
	types   map[domain.EventType]struct{}
	handler EventHandler
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers handler for the given event types, or for every event
// when none are given. The returned function removes the subscription.
func (b *Bus) Subscribe(handler EventHandler, types ...domain.EventType) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := subscription{id: b.nextID, handler: handler}
	if len(types) > 0 {
		sub.types = make(map[domain.EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}
	b.subs = append(b.subs, sub)

	id := sub.id
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	b.mu.RLock()
	handlers := make([]EventHandler, 0, len(b.subs))
	for _, s := range b.subs {
		if s.types != nil {
			if _, ok := s.types[event.Type]; !ok {
				continue
			}
		}
		handlers = append(handlers, s.handler)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, event)
	}
}
