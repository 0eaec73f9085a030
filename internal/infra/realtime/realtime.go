// Package realtime defines the publish/subscribe backend the session core
// talks to. The production implementation lives in the redis package; the
// in-memory broker here backs tests and storage-free mode.
package realtime

import (
	"context"

	"github.com/vietddude/translive/internal/core/domain"
)

// EventHandler receives events delivered on a subscribed channel.
type EventHandler func(event domain.Event)

// Subscription is a live attachment to one channel. Close is idempotent and
// must stop all deliveries to the handler.
type Subscription interface {
	// Channel returns the channel this subscription is scoped to.
	Channel() string

	// Close tears down the subscription.
	Close() error
}

// Broker is the realtime publish/subscribe backend.
type Broker interface {
	// Subscribe attaches a handler to a channel and returns the handle.
	Subscribe(ctx context.Context, channel string, handler EventHandler) (Subscription, error)

	// Publish pushes an event to every subscriber of the channel.
	Publish(ctx context.Context, channel string, event domain.Event) error

	// ActiveSubscriptions returns the number of live subscriptions held
	// through this broker. Used to verify teardown leaves nothing behind.
	ActiveSubscriptions() int
}
