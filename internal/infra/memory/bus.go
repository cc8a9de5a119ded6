package memory

import (
	"context"
	"sync"
)

// Bus is an in-process change feed: publishes table-change notifications to
// all current subscribers. It backs single-node deployments and tests; the
// Redis feed covers multi-consumer setups.
type Bus struct {
	mu          sync.Mutex
	subscribers map[chan string]struct{}
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[chan string]struct{})}
}

func (b *Bus) Publish(_ context.Context, table string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- table:
		default:
			// Consumers refetch the full view per event, so dropping a
			// notification a consumer has not kept up with loses nothing.
		}
	}
	return nil
}

func (b *Bus) Subscribe(_ context.Context) (<-chan string, func(), error) {
	ch := make(chan string, 16)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel, nil
}
