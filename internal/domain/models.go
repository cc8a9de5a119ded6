package domain

import "time"

// Category partitions quiz content. The set is closed; a session's category
// is fixed at start.
type Category string

const (
	CategoryAboutMe Category = "about_me"
	CategoryTech    Category = "tech"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return c == CategoryAboutMe || c == CategoryTech
}

// OptionCount is the number of choices every question carries.
const OptionCount = 4

// Question is a single multiple-choice question. Questions are ephemeral:
// they live in the engine only while displayed and are never persisted.
type Question struct {
	Text         string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

// Validate checks the structural invariants: exactly four distinct options
// and a correct index inside them.
func (q Question) Validate() error {
	if q.Text == "" {
		return ErrMalformedQuestion
	}
	if len(q.Options) != OptionCount {
		return ErrMalformedQuestion
	}
	seen := make(map[string]struct{}, OptionCount)
	for _, opt := range q.Options {
		if opt == "" {
			return ErrMalformedQuestion
		}
		if _, dup := seen[opt]; dup {
			return ErrMalformedQuestion
		}
		seen[opt] = struct{}{}
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= OptionCount {
		return ErrMalformedQuestion
	}
	return nil
}

// QuizSession is one player's play-through from name confirmation to end.
type QuizSession struct {
	ID              string     `json:"id"`
	PlayerName      string     `json:"playerName"`
	Category        Category   `json:"category"`
	TotalQuestions  int        `json:"totalQuestions"`
	CorrectAnswers  int        `json:"correctAnswers"`
	StartedAt       time.Time  `json:"startedAt"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
	DurationSeconds int        `json:"durationSeconds"`
}

// AnswerRecord captures the outcome of one submission. It drives feedback and
// score updates only and does not outlive the question it answers.
type AnswerRecord struct {
	SelectedIndex int  `json:"selectedIndex"`
	CorrectIndex  int  `json:"correctIndex"`
	Correct       bool `json:"correct"`
}

// PageView is a single tracked visit to a page of the site.
type PageView struct {
	PagePath  string    `json:"pagePath"`
	UserAgent string    `json:"userAgent"`
	Referrer  string    `json:"referrer,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// RecentPlayer is a dashboard row for a recently started session.
type RecentPlayer struct {
	PlayerName     string    `json:"playerName"`
	Category       Category  `json:"category"`
	TotalQuestions int       `json:"totalQuestions"`
	CorrectAnswers int       `json:"correctAnswers"`
	StartedAt      time.Time `json:"startedAt"`
}

// Stats is the full analytics view recomputed on every change notification.
type Stats struct {
	TotalSessions   int              `json:"totalSessions"`
	TotalQuestions  int              `json:"totalQuestions"`
	TotalCorrect    int              `json:"totalCorrect"`
	AccuracyPercent int              `json:"accuracyPercent"`
	CategoryCounts  map[Category]int `json:"categoryCounts"`
	RecentPlayers   []RecentPlayer   `json:"recentPlayers"`
	PageViews       int              `json:"pageViews"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// Accuracy returns the integer percentage of correct answers over total,
// zero when nothing has been answered yet.
func Accuracy(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(float64(correct)/float64(total)*100 + 0.5)
}
