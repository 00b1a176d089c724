package event

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type subscription struct {
	id      string
	handler Handler
}

// InMemoryBus delivers events synchronously on the publisher's goroutine.
type InMemoryBus struct {
	mu          sync.RWMutex
	subscribers map[Type][]subscription
}

func NewBus() *InMemoryBus {
	return &InMemoryBus{
		subscribers: make(map[Type][]subscription),
	}
}

func (b *InMemoryBus) Publish(t Type) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subscribers[t]))
	copy(subs, b.subscribers[t])
	b.mu.RUnlock()

	e := Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}

	// Handlers run outside the lock so they may publish or unsubscribe.
	for _, sub := range subs {
		sub.handler(e)
	}
}

func (b *InMemoryBus) Subscribe(t Type, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	b.subscribers[t] = append(b.subscribers[t], subscription{id: id, handler: h})

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.subscribers[t]
			for i, sub := range subs {
				if sub.id == id {
					b.subscribers[t] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
			if len(b.subscribers[t]) == 0 {
				delete(b.subscribers, t)
			}
		})
	}

	return unsubscribe
}

// Subscribers reports how many handlers are registered for t.
func (b *InMemoryBus) Subscribers(t Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[t])
}
