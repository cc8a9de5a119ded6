package memory

import (
	"context"
	"testing"
	"time"

	"portfolio-quiz-service/internal/analytics"
	"portfolio-quiz-service/internal/domain"
)

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(nil)

	started := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	id, err := store.CreateSession(ctx, "Ada", domain.CategoryTech, started)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id == "" {
		t.Fatalf("expected assigned id")
	}

	if err := store.UpdateTotals(ctx, id, 3, 2); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.EndSession(ctx, id, started.Add(30*time.Second), 30); err != nil {
		t.Fatalf("end: %v", err)
	}

	session, ok := store.Get(id)
	if !ok {
		t.Fatalf("session missing")
	}
	if session.TotalQuestions != 3 || session.CorrectAnswers != 2 {
		t.Fatalf("unexpected totals: %+v", session)
	}
	if session.EndedAt == nil || session.DurationSeconds != 30 {
		t.Fatalf("session not finalized: %+v", session)
	}
}

func TestUpdateUnknownSession(t *testing.T) {
	store := NewSessionStore(nil)
	if err := store.UpdateTotals(context.Background(), "missing", 1, 1); err != domain.ErrSessionNotFound {
		t.Fatalf("expected not-found, got %v", err)
	}
	if err := store.EndSession(context.Background(), "missing", time.Now(), 1); err != domain.ErrSessionNotFound {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestWritesPublishChangeEvents(t *testing.T) {
	ctx := context.Background()
	bus := NewBus()
	events, cancel, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	store := NewSessionStore(bus)
	id, _ := store.CreateSession(ctx, "Ada", domain.CategoryAboutMe, time.Now())
	if table := <-events; table != analytics.TableSessions {
		t.Fatalf("expected sessions event, got %s", table)
	}

	_ = store.UpdateTotals(ctx, id, 1, 1)
	if table := <-events; table != analytics.TableSessions {
		t.Fatalf("expected sessions event, got %s", table)
	}

	_ = store.TrackPageView(ctx, domain.PageView{PagePath: "/"})
	if table := <-events; table != analytics.TablePageViews {
		t.Fatalf("expected page_views event, got %s", table)
	}
}

func TestFetchStatsAggregates(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(nil)

	a, _ := store.CreateSession(ctx, "Ada", domain.CategoryTech, time.Now().Add(-2*time.Minute))
	b, _ := store.CreateSession(ctx, "Bob", domain.CategoryAboutMe, time.Now().Add(-time.Minute))
	_ = store.UpdateTotals(ctx, a, 4, 3)
	_ = store.UpdateTotals(ctx, b, 2, 1)
	_ = store.TrackPageView(ctx, domain.PageView{PagePath: "/"})
	_ = store.TrackPageView(ctx, domain.PageView{PagePath: "/projects"})

	stats, err := store.FetchStats(ctx, 1)
	if err != nil {
		t.Fatalf("fetch stats: %v", err)
	}
	if stats.TotalSessions != 2 || stats.TotalQuestions != 6 || stats.TotalCorrect != 4 {
		t.Fatalf("unexpected totals: %+v", stats)
	}
	if stats.AccuracyPercent != 67 {
		t.Fatalf("expected 67%% accuracy, got %d", stats.AccuracyPercent)
	}
	if stats.CategoryCounts[domain.CategoryTech] != 1 || stats.CategoryCounts[domain.CategoryAboutMe] != 1 {
		t.Fatalf("unexpected histogram: %+v", stats.CategoryCounts)
	}
	if stats.PageViews != 2 {
		t.Fatalf("expected 2 page views, got %d", stats.PageViews)
	}
	if len(stats.RecentPlayers) != 1 || stats.RecentPlayers[0].PlayerName != "Bob" {
		t.Fatalf("expected most recent player Bob, got %+v", stats.RecentPlayers)
	}
}

func TestCloseStaleFinalizesAbandonedSessions(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(nil)

	stale, _ := store.CreateSession(ctx, "Ada", domain.CategoryTech, time.Now().Add(-time.Hour))
	fresh, _ := store.CreateSession(ctx, "Bob", domain.CategoryTech, time.Now())

	closed, err := store.CloseStale(ctx, 30*time.Minute)
	if err != nil {
		t.Fatalf("close stale: %v", err)
	}
	if closed != 1 {
		t.Fatalf("expected 1 closed, got %d", closed)
	}

	if session, _ := store.Get(stale); session.EndedAt == nil {
		t.Fatalf("stale session not finalized")
	}
	if session, _ := store.Get(fresh); session.EndedAt != nil {
		t.Fatalf("fresh session should stay open")
	}
}
