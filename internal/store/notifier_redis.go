package store

import (
	"context"

	"github.com/go-redis/redis/v8"
)

type RedisNotifier struct {
	client  *redis.Client
	channel string
}

func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

func (r *RedisNotifier) Notify(ctx context.Context) error {
	if err := r.client.Publish(ctx, r.channel, "1").Err(); err != nil {
		return unavailable("publish", r.channel, err)
	}
	return nil
}

func (r *RedisNotifier) Subscribe(ctx context.Context) (<-chan struct{}, error) {
	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, unavailable("subscribe", r.channel, err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer pubsub.Close()
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				signal(out)
			}
		}
	}()
	return out, nil
}

// Close leaves the shared client to its owner.
func (r *RedisNotifier) Close() error { return nil }
