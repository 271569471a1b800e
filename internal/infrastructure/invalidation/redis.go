// Package invalidation fans cache invalidations out across processes.
// The in-process cache drop is always synchronous; this bus only keeps
// sibling processes coherent when the service runs with more than one
// replica.
package invalidation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Bus publishes and consumes per-user invalidation events over Redis
// pub/sub.
type Bus struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewBus creates a bus over an existing Redis client
func NewBus(client *redis.Client, channel string, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

// Connect creates a Redis client and verifies connectivity
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// PublishUserInvalidation broadcasts that a user's assignments changed.
// Implements services.InvalidationPublisher.
func (b *Bus) PublishUserInvalidation(ctx context.Context, userID string) error {
	if err := b.client.Publish(ctx, b.channel, userID).Err(); err != nil {
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}
	return nil
}

// Subscribe consumes invalidation events until the context is cancelled,
// calling handle for each user ID received. Run it in its own goroutine;
// it returns when the context ends or the subscription breaks.
func (b *Bus) Subscribe(ctx context.Context, handle func(ctx context.Context, userID string)) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	// Fail fast if the subscription could not be established
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("invalidation subscription closed")
			}
			if msg.Payload == "" {
				continue
			}
			handle(ctx, msg.Payload)
		}
	}
}
