package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"portfolio-quiz-service/internal/analytics"
	"portfolio-quiz-service/internal/domain"
)

// SessionStore persists sessions and page views in Postgres, publishing a
// change notification after every write so dashboards can refetch.
type SessionStore struct {
	pool *pgxpool.Pool
	pub  analytics.Publisher
}

func NewSessionStore(pool *pgxpool.Pool, pub analytics.Publisher) *SessionStore {
	return &SessionStore{pool: pool, pub: pub}
}

func (s *SessionStore) CreateSession(ctx context.Context, playerName string, category domain.Category, startedAt time.Time) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO quiz_sessions (player_name, category, total_questions, correct_answers, started_at)
		 VALUES ($1, $2, 0, 0, $3)
		 RETURNING id`,
		playerName, string(category), startedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	s.publish(ctx, analytics.TableSessions)
	return id, nil
}

func (s *SessionStore) UpdateTotals(ctx context.Context, id string, totalQuestions, correctAnswers int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE quiz_sessions SET total_questions=$2, correct_answers=$3 WHERE id=$1`,
		id, totalQuestions, correctAnswers,
	)
	if err != nil {
		return fmt.Errorf("update totals: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	s.publish(ctx, analytics.TableSessions)
	return nil
}

func (s *SessionStore) EndSession(ctx context.Context, id string, endedAt time.Time, durationSeconds int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE quiz_sessions SET ended_at=$2, session_duration_seconds=$3 WHERE id=$1`,
		id, endedAt, durationSeconds,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	s.publish(ctx, analytics.TableSessions)
	return nil
}

func (s *SessionStore) TrackPageView(ctx context.Context, view domain.PageView) error {
	createdAt := view.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO page_views (page_path, user_agent, referrer, created_at)
		 VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4)`,
		view.PagePath, view.UserAgent, view.Referrer, createdAt,
	)
	if err != nil {
		return fmt.Errorf("track page view: %w", err)
	}
	s.publish(ctx, analytics.TablePageViews)
	return nil
}

// CloseStale finalizes sessions that were abandoned without an explicit end.
func (s *SessionStore) CloseStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	tag, err := s.pool.Exec(ctx,
		`UPDATE quiz_sessions
		 SET ended_at = now(),
		     session_duration_seconds = EXTRACT(EPOCH FROM now() - started_at)::int
		 WHERE ended_at IS NULL AND started_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("close stale sessions: %w", err)
	}
	closed := int(tag.RowsAffected())
	if closed > 0 {
		s.publish(ctx, analytics.TableSessions)
	}
	return closed, nil
}

func (s *SessionStore) FetchStats(ctx context.Context, recentLimit int) (domain.Stats, error) {
	stats := domain.Stats{
		CategoryCounts: make(map[domain.Category]int),
		UpdatedAt:      time.Now(),
	}

	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total_questions), 0), COALESCE(SUM(correct_answers), 0)
		 FROM quiz_sessions`,
	).Scan(&stats.TotalSessions, &stats.TotalQuestions, &stats.TotalCorrect)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("fetch session totals: %w", err)
	}
	stats.AccuracyPercent = domain.Accuracy(stats.TotalCorrect, stats.TotalQuestions)

	rows, err := s.pool.Query(ctx, `SELECT category, COUNT(*) FROM quiz_sessions GROUP BY category`)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("fetch category histogram: %w", err)
	}
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			rows.Close()
			return domain.Stats{}, fmt.Errorf("scan histogram row: %w", err)
		}
		stats.CategoryCounts[domain.Category(category)] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.Stats{}, fmt.Errorf("histogram rows: %w", err)
	}

	rows, err = s.pool.Query(ctx,
		`SELECT player_name, category, total_questions, correct_answers, started_at
		 FROM quiz_sessions
		 ORDER BY started_at DESC
		 LIMIT $1`,
		recentLimit,
	)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("fetch recent players: %w", err)
	}
	for rows.Next() {
		var player domain.RecentPlayer
		var category string
		if err := rows.Scan(&player.PlayerName, &category, &player.TotalQuestions, &player.CorrectAnswers, &player.StartedAt); err != nil {
			rows.Close()
			return domain.Stats{}, fmt.Errorf("scan recent player: %w", err)
		}
		player.Category = domain.Category(category)
		stats.RecentPlayers = append(stats.RecentPlayers, player)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.Stats{}, fmt.Errorf("recent player rows: %w", err)
	}

	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM page_views`).Scan(&stats.PageViews); err != nil {
		return domain.Stats{}, fmt.Errorf("fetch page views: %w", err)
	}
	return stats, nil
}

func (s *SessionStore) publish(ctx context.Context, table string) {
	if s.pub == nil {
		return
	}
	_ = s.pub.Publish(ctx, table)
}
