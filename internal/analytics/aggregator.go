package analytics

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"portfolio-quiz-service/internal/domain"
)

// Table names carried on change-feed events.
const (
	TableSessions  = "quiz_sessions"
	TablePageViews = "page_views"
)

// Publisher emits a change notification after a write to a tracked table.
type Publisher interface {
	Publish(ctx context.Context, table string) error
}

// ChangeFeed delivers table-level change notifications. There are no delta
// semantics; an event only says "something changed".
type ChangeFeed interface {
	Subscribe(ctx context.Context) (<-chan string, func(), error)
}

// StatsReader computes the full analytics view from persisted records.
type StatsReader interface {
	FetchStats(ctx context.Context, recentLimit int) (domain.Stats, error)
}

// Aggregator is the read-side reducer: it refetches the whole stats view on
// every change notification and fans the snapshot out to dashboard
// subscribers. Bursts of notifications collapse into one refetch.
type Aggregator struct {
	reader      StatsReader
	feed        ChangeFeed
	logger      *zap.Logger
	recentLimit int
	sf          singleflight.Group

	mu          sync.RWMutex
	snapshot    domain.Stats
	subscribers map[chan domain.Stats]struct{}
}

func NewAggregator(reader StatsReader, feed ChangeFeed, logger *zap.Logger, recentLimit int) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recentLimit <= 0 {
		recentLimit = 10
	}
	return &Aggregator{
		reader:      reader,
		feed:        feed,
		logger:      logger,
		recentLimit: recentLimit,
		subscribers: make(map[chan domain.Stats]struct{}),
	}
}

// Run subscribes to the change feed and keeps the snapshot current until ctx
// is canceled. Dashboard rows may be partially updated mid-session; the
// aggregator just reflects whatever is persisted at refetch time.
func (a *Aggregator) Run(ctx context.Context) error {
	events, cancel, err := a.feed.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	a.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case table, ok := <-events:
			if !ok {
				return nil
			}
			a.logger.Debug("change notification", zap.String("table", table))
			a.Refresh(ctx)
		}
	}
}

// Refresh refetches the stats view. Concurrent callers share one fetch.
func (a *Aggregator) Refresh(ctx context.Context) {
	_, err, _ := a.sf.Do("stats", func() (interface{}, error) {
		stats, err := a.reader.FetchStats(ctx, a.recentLimit)
		if err != nil {
			return nil, err
		}
		a.mu.Lock()
		a.snapshot = stats
		a.broadcastLocked(stats)
		a.mu.Unlock()
		return stats, nil
	})
	if err != nil {
		a.logger.Warn("stats refetch failed", zap.Error(err))
	}
}

// Snapshot returns the last computed stats view.
func (a *Aggregator) Snapshot() domain.Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot
}

// Subscribe registers a dashboard consumer. The current snapshot is delivered
// immediately; the caller must invoke cancel to avoid leaks.
func (a *Aggregator) Subscribe() (<-chan domain.Stats, func()) {
	ch := make(chan domain.Stats, 8)

	a.mu.Lock()
	a.subscribers[ch] = struct{}{}
	initial := a.snapshot
	a.mu.Unlock()

	ch <- initial

	cancel := func() {
		a.mu.Lock()
		if _, ok := a.subscribers[ch]; ok {
			delete(a.subscribers, ch)
			close(ch)
		}
		a.mu.Unlock()
	}
	return ch, cancel
}

func (a *Aggregator) broadcastLocked(stats domain.Stats) {
	for ch := range a.subscribers {
		select {
		case ch <- stats:
		default:
			// Slow dashboards lose the stale snapshot, never block the feed.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- stats:
			default:
			}
		}
	}
}
