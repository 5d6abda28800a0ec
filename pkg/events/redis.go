package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisNotifier publishes events on Redis pub/sub channels, one channel per
// event kind under a common prefix.
type RedisNotifier struct {
	client *redis.Client
	prefix string
}

// NewRedisNotifier connects a notifier to Redis.
func NewRedisNotifier(addr, password string, db int) *RedisNotifier {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisNotifier{client: rdb, prefix: "marketplace.events"}
}

// NewRedisNotifierWithClient wraps an existing client, for tests.
func NewRedisNotifierWithClient(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client, prefix: "marketplace.events"}
}

// Channel returns the pub/sub channel for an event kind.
func (n *RedisNotifier) Channel(kind Kind) string {
	return fmt.Sprintf("%s.%s", n.prefix, kind)
}

func (n *RedisNotifier) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.Kind, err)
	}
	if err := n.client.Publish(ctx, n.Channel(ev.Kind), body).Err(); err != nil {
		return fmt.Errorf("publish event %s: %w", ev.Kind, err)
	}
	return nil
}

// Close releases the underlying connection.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
