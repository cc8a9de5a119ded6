package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"portfolio-quiz-service/internal/analytics"
	"portfolio-quiz-service/internal/domain"
)

// SessionStore keeps session and page-view records in memory. It implements
// the engine's store contract, the analytics reader, and the janitor's
// finalizer, publishing a change notification after every write.
type SessionStore struct {
	pub   analytics.Publisher
	clock func() time.Time

	mu        sync.RWMutex
	sessions  map[string]*domain.QuizSession
	order     []string
	pageViews []domain.PageView
}

func NewSessionStore(pub analytics.Publisher) *SessionStore {
	return &SessionStore{
		pub:      pub,
		clock:    time.Now,
		sessions: make(map[string]*domain.QuizSession),
	}
}

func (s *SessionStore) CreateSession(ctx context.Context, playerName string, category domain.Category, startedAt time.Time) (string, error) {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = &domain.QuizSession{
		ID:         id,
		PlayerName: playerName,
		Category:   category,
		StartedAt:  startedAt,
	}
	s.order = append(s.order, id)
	s.mu.Unlock()

	s.publish(ctx, analytics.TableSessions)
	return id, nil
}

func (s *SessionStore) UpdateTotals(ctx context.Context, id string, totalQuestions, correctAnswers int) error {
	s.mu.Lock()
	session, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	session.TotalQuestions = totalQuestions
	session.CorrectAnswers = correctAnswers
	s.mu.Unlock()

	s.publish(ctx, analytics.TableSessions)
	return nil
}

func (s *SessionStore) EndSession(ctx context.Context, id string, endedAt time.Time, durationSeconds int) error {
	s.mu.Lock()
	session, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	ended := endedAt
	session.EndedAt = &ended
	session.DurationSeconds = durationSeconds
	s.mu.Unlock()

	s.publish(ctx, analytics.TableSessions)
	return nil
}

// Get returns a copy of the stored session.
func (s *SessionStore) Get(id string) (domain.QuizSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.QuizSession{}, false
	}
	return *session, true
}

func (s *SessionStore) TrackPageView(ctx context.Context, view domain.PageView) error {
	if view.CreatedAt.IsZero() {
		view.CreatedAt = s.clock()
	}
	s.mu.Lock()
	s.pageViews = append(s.pageViews, view)
	s.mu.Unlock()

	s.publish(ctx, analytics.TablePageViews)
	return nil
}

// CloseStale finalizes sessions that never received an explicit end and have
// been idle past the cutoff. Returns the number of sessions closed.
func (s *SessionStore) CloseStale(ctx context.Context, olderThan time.Duration) (int, error) {
	now := s.clock()
	cutoff := now.Add(-olderThan)

	s.mu.Lock()
	closed := 0
	for _, session := range s.sessions {
		if session.EndedAt == nil && session.StartedAt.Before(cutoff) {
			ended := now
			session.EndedAt = &ended
			session.DurationSeconds = int(now.Sub(session.StartedAt) / time.Second)
			closed++
		}
	}
	s.mu.Unlock()

	if closed > 0 {
		s.publish(ctx, analytics.TableSessions)
	}
	return closed, nil
}

func (s *SessionStore) FetchStats(_ context.Context, recentLimit int) (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.Stats{
		TotalSessions:  len(s.sessions),
		CategoryCounts: make(map[domain.Category]int),
		PageViews:      len(s.pageViews),
		UpdatedAt:      s.clock(),
	}
	for _, session := range s.sessions {
		stats.TotalQuestions += session.TotalQuestions
		stats.TotalCorrect += session.CorrectAnswers
		stats.CategoryCounts[session.Category]++
	}
	stats.AccuracyPercent = domain.Accuracy(stats.TotalCorrect, stats.TotalQuestions)

	for i := len(s.order) - 1; i >= 0 && len(stats.RecentPlayers) < recentLimit; i-- {
		session := s.sessions[s.order[i]]
		stats.RecentPlayers = append(stats.RecentPlayers, domain.RecentPlayer{
			PlayerName:     session.PlayerName,
			Category:       session.Category,
			TotalQuestions: session.TotalQuestions,
			CorrectAnswers: session.CorrectAnswers,
			StartedAt:      session.StartedAt,
		})
	}
	return stats, nil
}

func (s *SessionStore) publish(ctx context.Context, table string) {
	if s.pub == nil {
		return
	}
	_ = s.pub.Publish(ctx, table)
}
