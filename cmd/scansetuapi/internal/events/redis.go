package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker bridges a local Hub over Redis pub/sub so every API instance
// (and the admin CLI) reaches the user's connections.
type RedisBroker struct {
	*Hub
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisBroker creates a broker publishing on channel.
func NewRedisBroker(client *redis.Client, channel string, logger *zap.Logger) *RedisBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBroker{Hub: NewHub(), client: client, channel: channel, logger: logger}
}

// Publish sends ev to all instances; local delivery happens when the
// message comes back through Run.
func (b *RedisBroker) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Run relays channel messages into the local hub until ctx is done.
func (b *RedisBroker) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			ev, err := decodeEvent(msg.Payload)
			if err != nil {
				b.logger.Warn("dropping malformed event", zap.Error(err))
				continue
			}
			_ = b.Hub.Publish(ctx, ev)
		}
	}
}

func decodeEvent(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.UserID == "" {
		return Event{}, fmt.Errorf("decode event: missing user_id")
	}
	switch ev.Kind {
	case KindSignedOut, KindUserUpdated:
	default:
		return Event{}, fmt.Errorf("decode event: unknown kind %q", ev.Kind)
	}
	return ev, nil
}
