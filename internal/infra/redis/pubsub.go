package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/translive/internal/core/domain"
	"github.com/vietddude/translive/internal/infra/realtime"
)

// Broker implements realtime.Broker on top of Redis pub/sub. Each
// subscription owns one receive goroutine; Close tears it down and the
// live-subscription counter lets callers assert nothing leaked.
type Broker struct {
	client *Client
	live   atomic.Int64
}

// NewBroker creates a realtime broker backed by an existing client.
func NewBroker(client *Client) *Broker {
	return &Broker{client: client}
}

type subscription struct {
	channel string
	pubsub  *redis.PubSub
	broker  *Broker
	done    chan struct{}
	once    sync.Once
}

func (s *subscription) Channel() string { return s.channel }

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
		s.broker.live.Add(-1)
	})
	return err
}

// Subscribe attaches a handler to a channel. Events that fail to decode are
// logged and dropped, never delivered half-parsed.
func (b *Broker) Subscribe(
	ctx context.Context,
	channel string,
	handler realtime.EventHandler,
) (realtime.Subscription, error) {
	pubsub := b.client.rdb.Subscribe(ctx, channel)

	// Wait for the subscription acknowledgment so the caller knows the
	// channel is actually attached before transitioning to connected.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, &domain.NetworkError{Op: "subscribe " + channel, Err: err}
	}

	sub := &subscription{
		channel: channel,
		pubsub:  pubsub,
		broker:  b,
		done:    make(chan struct{}),
	}
	b.live.Add(1)

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-sub.done:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event domain.Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					slog.Warn("Dropping undecodable realtime event",
						"channel", channel, "error", err)
					continue
				}
				handler(event)
			}
		}
	}()

	return sub, nil
}

// Publish pushes an event to every subscriber of the channel.
func (b *Broker) Publish(ctx context.Context, channel string, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := b.client.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return &domain.NetworkError{Op: "publish " + channel, Err: err}
	}
	return nil
}

// ActiveSubscriptions returns the number of live subscriptions.
func (b *Broker) ActiveSubscriptions() int {
	return int(b.live.Load())
}
