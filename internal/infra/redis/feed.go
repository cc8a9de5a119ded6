package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const changeChannel = "portfolio:changes"

// Feed is a Redis pub/sub change feed. Writers publish the changed table
// name; dashboard aggregators on any instance receive it.
type Feed struct {
	client *redis.Client
}

func NewFeed(client *redis.Client) *Feed {
	return &Feed{client: client}
}

func (f *Feed) Publish(ctx context.Context, table string) error {
	return f.client.Publish(ctx, changeChannel, table).Err()
}

func (f *Feed) Subscribe(ctx context.Context) (<-chan string, func(), error) {
	pubsub := f.client.Subscribe(ctx, changeChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	out := make(chan string, 16)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				default:
					// Consumers refetch the full view; dropped notifications
					// are absorbed by the next one.
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() {
		close(done)
		_ = pubsub.Close()
	}
	return out, cancel, nil
}
