package realtime

import (
	"context"
	"sync"

	"github.com/vietddude/translive/internal/core/domain"
)

// MemoryBroker is an in-process Broker for tests and storage-free mode.
// Delivery is synchronous in Publish order.
type MemoryBroker struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*memorySubscription
}

// NewMemoryBroker creates an empty in-process broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		subs: make(map[int]*memorySubscription),
	}
}

type memorySubscription struct {
	id      int
	channel string
	handler EventHandler
	broker  *MemoryBroker
	once    sync.Once
}

func (s *memorySubscription) Channel() string { return s.channel }

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.broker.mu.Lock()
		delete(s.broker.subs, s.id)
		s.broker.mu.Unlock()
	})
	return nil
}

// Subscribe attaches a handler to a channel.
func (b *MemoryBroker) Subscribe(
	ctx context.Context,
	channel string,
	handler EventHandler,
) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &memorySubscription{
		id:      b.nextID,
		channel: channel,
		handler: handler,
		broker:  b,
	}
	b.subs[sub.id] = sub
	return sub, nil
}

// Publish delivers the event synchronously to every subscriber of channel.
func (b *MemoryBroker) Publish(ctx context.Context, channel string, event domain.Event) error {
	b.mu.RLock()
	handlers := make([]EventHandler, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.channel == channel {
			handlers = append(handlers, sub.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
	return nil
}

// ActiveSubscriptions returns the number of live subscriptions.
func (b *MemoryBroker) ActiveSubscriptions() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// ChannelSubscriptions returns the number of live subscriptions on a channel.
func (b *MemoryBroker) ChannelSubscriptions(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, sub := range b.subs {
		if sub.channel == channel {
			n++
		}
	}
	return n
}
