package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"portfolio-quiz-service/internal/analytics"
	"portfolio-quiz-service/internal/domain"
	"portfolio-quiz-service/internal/infra/memory"
)

type mutableReader struct {
	mu    sync.Mutex
	stats domain.Stats
}

func (m *mutableReader) FetchStats(_ context.Context, _ int) (domain.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats, nil
}

func (m *mutableReader) set(stats domain.Stats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = stats
}

func TestAnalyticsWSStreamsSnapshots(t *testing.T) {
	reader := &mutableReader{stats: domain.Stats{TotalSessions: 1}}
	bus := memory.NewBus()
	agg := analytics.NewAggregator(reader, bus, nil, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = agg.Run(ctx) }()

	// Wait for the initial refresh before subscribing.
	deadline := time.Now().Add(2 * time.Second)
	for agg.Snapshot().TotalSessions != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("aggregator never refreshed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	handler := NewAnalyticsWSHandler(agg, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/analytics", handler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	conn := dialWS(t, server, "/ws/analytics")

	var snap domain.Stats
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}
	if snap.TotalSessions != 1 {
		t.Fatalf("expected initial snapshot with 1 session, got %+v", snap)
	}

	reader.set(domain.Stats{TotalSessions: 2, PageViews: 9})
	if err := bus.Publish(context.Background(), analytics.TableSessions); err != nil {
		t.Fatalf("publish: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read refreshed snapshot: %v", err)
	}
	if snap.TotalSessions != 2 || snap.PageViews != 9 {
		t.Fatalf("expected refreshed snapshot, got %+v", snap)
	}
}
