package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"portfolio-quiz-service/internal/domain"
)

// State is the engine's position in the session lifecycle.
type State string

const (
	StateIdle           State = "idle"
	StateNamePrompt     State = "name_prompt"
	StateLoading        State = "loading"
	StateAwaitingAnswer State = "awaiting_answer"
	StateAnswered       State = "answered"
	StateEnded          State = "ended"
)

// QuestionSource produces one multiple-choice question per request, honoring
// the exclusion list of previously shown question texts.
type QuestionSource interface {
	NextQuestion(ctx context.Context, category domain.Category, previous []string) (domain.Question, error)
}

// SessionStore persists session records. Update and End calls are issued
// fire-and-forget by the engine; their failures never reach the player.
type SessionStore interface {
	CreateSession(ctx context.Context, playerName string, category domain.Category, startedAt time.Time) (string, error)
	UpdateTotals(ctx context.Context, id string, totalQuestions, correctAnswers int) error
	EndSession(ctx context.Context, id string, endedAt time.Time, durationSeconds int) error
}

// Options tunes engine behavior. Zero values fall back to defaults.
type Options struct {
	// HistoryLimit caps the exclusion list sent per question request.
	HistoryLimit int
	// AnswerDelay is the auto-advance countdown after an answer locks in.
	AnswerDelay time.Duration
	// TickInterval is the countdown tick; tests shrink it.
	TickInterval time.Duration
	// FetchRetries is the number of extra attempts after a failed question
	// fetch. Rate-limit and payment errors are never retried.
	FetchRetries int
	// RetryBackoff is the pause between fetch attempts.
	RetryBackoff time.Duration
	// Clock supplies timestamps; tests inject a fixed one.
	Clock func() time.Time
}

func (o Options) withDefaults() Options {
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = 10
	}
	if o.AnswerDelay <= 0 {
		o.AnswerDelay = 3 * time.Second
	}
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 500 * time.Millisecond
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// Engine drives one player's quiz session. All mutation happens under mu;
// question fetches and persistence calls run outside it.
type Engine struct {
	source QuestionSource
	store  SessionStore
	logger *zap.Logger
	opts   Options

	mu         sync.Mutex
	state      State
	category   domain.Category
	playerName string
	sessionID  string
	startedAt  time.Time
	current    *domain.Question
	answered   *domain.AnswerRecord
	total      int
	correct    int
	history    []string
	historySet map[string]struct{}
	countdown  int
	fetchGen   uint64
	inFlight   bool
	timerGen   uint64
	closed     bool

	events chan Event
}

// Snapshot is a point-in-time copy of the engine's observable state.
type Snapshot struct {
	State          State                `json:"state"`
	Category       domain.Category      `json:"category"`
	PlayerName     string               `json:"playerName,omitempty"`
	SessionID      string               `json:"sessionId,omitempty"`
	TotalQuestions int                  `json:"totalQuestions"`
	CorrectAnswers int                  `json:"correctAnswers"`
	Countdown      int                  `json:"countdown"`
	HistorySize    int                  `json:"historySize"`
	Question       *QuestionView        `json:"question,omitempty"`
	Answer         *domain.AnswerRecord `json:"answer,omitempty"`
}

// NewEngine builds an idle engine. A nil store is allowed and means nothing
// persists (degraded mode from the start).
func NewEngine(source QuestionSource, store SessionStore, logger *zap.Logger, opts Options) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		source:     source,
		store:      store,
		logger:     logger,
		opts:       opts.withDefaults(),
		state:      StateIdle,
		category:   domain.CategoryAboutMe,
		historySet: make(map[string]struct{}),
		events:     make(chan Event, 32),
	}
}

// Events returns the engine's notification stream. The channel is closed on
// Close; slow consumers lose the oldest events, never block the engine.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Snapshot returns the current observable state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := Snapshot{
		State:          e.state,
		Category:       e.category,
		PlayerName:     e.playerName,
		SessionID:      e.sessionID,
		TotalQuestions: e.total,
		CorrectAnswers: e.correct,
		Countdown:      e.countdown,
		HistorySize:    len(e.history),
	}
	if e.current != nil {
		snap.Question = &QuestionView{Text: e.current.Text, Options: append([]string(nil), e.current.Options...)}
	}
	if e.answered != nil {
		rec := *e.answered
		snap.Answer = &rec
	}
	return snap
}

// SelectCategory picks the category for the next session. Idle only.
func (e *Engine) SelectCategory(category domain.Category) error {
	if !category.Valid() {
		return domain.ErrInvalidCategory
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateIdle {
		return fmt.Errorf("select category: invalid in state %s", e.state)
	}
	e.category = category
	return nil
}

// RequestStart moves from Idle to the name prompt.
func (e *Engine) RequestStart() error {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return fmt.Errorf("request start: invalid in state %s", e.state)
	}
	e.state = StateNamePrompt
	e.mu.Unlock()
	e.emit(Event{Type: EventState, State: StateNamePrompt})
	return nil
}

// CancelStart abandons the name prompt and returns to Idle.
func (e *Engine) CancelStart() error {
	e.mu.Lock()
	if e.state != StateNamePrompt {
		e.mu.Unlock()
		return fmt.Errorf("cancel start: invalid in state %s", e.state)
	}
	e.state = StateIdle
	e.mu.Unlock()
	e.emit(Event{Type: EventState, State: StateIdle})
	return nil
}

// ConfirmStart validates the player name, creates the session record, and
// loads the first question. A blank name keeps the engine in the name prompt
// and issues no store call. Session-create failures are logged and play
// continues unpersisted so a backend hiccup never blocks the player.
func (e *Engine) ConfirmStart(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)

	e.mu.Lock()
	if e.state != StateNamePrompt {
		e.mu.Unlock()
		return fmt.Errorf("confirm start: invalid in state %s", e.state)
	}
	if name == "" {
		e.mu.Unlock()
		e.emit(Event{Type: EventNotice, Message: "Please enter your name"})
		return domain.ErrEmptyPlayerName
	}
	now := e.opts.Clock()
	e.playerName = name
	e.startedAt = now
	e.sessionID = ""
	e.total = 0
	e.correct = 0
	e.history = nil
	e.historySet = make(map[string]struct{})
	e.answered = nil
	e.current = nil
	category := e.category
	e.mu.Unlock()

	if e.store != nil {
		id, err := e.store.CreateSession(ctx, name, category, now)
		if err != nil {
			e.logger.Warn("session create failed, continuing unpersisted",
				zap.String("player", name), zap.Error(err))
		} else {
			e.mu.Lock()
			e.sessionID = id
			e.mu.Unlock()
		}
	}

	return e.loadNext(ctx, StateNamePrompt)
}

// SkipQuestion discards the displayed question without counting it and loads
// the next one.
func (e *Engine) SkipQuestion(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateAwaitingAnswer {
		e.mu.Unlock()
		return fmt.Errorf("skip: invalid in state %s", e.state)
	}
	e.mu.Unlock()
	return e.loadNext(ctx, StateAwaitingAnswer)
}

// Retry re-issues a question fetch after a failure left the engine stuck in
// Loading. No-op when a fetch is already in flight.
func (e *Engine) Retry(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateLoading {
		e.mu.Unlock()
		return fmt.Errorf("retry: invalid in state %s", e.state)
	}
	e.mu.Unlock()
	return e.loadNext(ctx, StateLoading)
}

// loadNext transitions to Loading, fetches a question, and installs it.
// Results arriving after Close or after a newer fetch superseded this one are
// discarded without touching state.
func (e *Engine) loadNext(ctx context.Context, from State) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	if e.state != from {
		// A competing transition (skip, end, auto-advance) won the race;
		// drop this attempt.
		e.mu.Unlock()
		return nil
	}
	if e.state == StateLoading && e.inFlight {
		e.mu.Unlock()
		return nil
	}
	e.timerGen++ // cancels any pending countdown
	e.state = StateLoading
	e.current = nil
	e.answered = nil
	e.countdown = 0
	e.fetchGen++
	gen := e.fetchGen
	e.inFlight = true
	category := e.category
	previous := e.recentHistoryLocked()
	e.mu.Unlock()

	e.emit(Event{Type: EventState, State: StateLoading})

	question, err := e.fetchWithRetry(ctx, category, previous)

	e.mu.Lock()
	if gen == e.fetchGen {
		e.inFlight = false
	}
	if e.closed || gen != e.fetchGen {
		e.mu.Unlock()
		return nil
	}
	if err != nil {
		e.mu.Unlock()
		e.logger.Warn("question fetch failed", zap.String("category", string(category)), zap.Error(err))
		e.emit(Event{Type: EventNotice, Message: userMessage(err)})
		return err
	}
	if _, seen := e.historySet[question.Text]; !seen {
		e.history = append(e.history, question.Text)
		e.historySet[question.Text] = struct{}{}
	}
	e.current = &question
	e.state = StateAwaitingAnswer
	view := QuestionView{Text: question.Text, Options: append([]string(nil), question.Options...)}
	score := newScore(e.correct, e.total)
	e.mu.Unlock()

	e.emit(Event{Type: EventState, State: StateAwaitingAnswer})
	e.emit(Event{Type: EventQuestion, Question: &view, Score: &score})
	return nil
}

func (e *Engine) fetchWithRetry(ctx context.Context, category domain.Category, previous []string) (domain.Question, error) {
	attempts := 1 + e.opts.FetchRetries
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return domain.Question{}, ctx.Err()
			case <-time.After(e.opts.RetryBackoff):
			}
		}
		question, err := e.source.NextQuestion(ctx, category, previous)
		if err == nil {
			if verr := question.Validate(); verr != nil {
				lastErr = verr
				continue
			}
			return question, nil
		}
		if errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrPaymentRequired) {
			return domain.Question{}, err
		}
		lastErr = err
	}
	return domain.Question{}, lastErr
}

// SubmitAnswer locks in a selection, updates totals locally, and kicks off
// the fire-and-forget persistence call and the auto-advance countdown. A
// second submission for the same question is an idempotent no-op.
func (e *Engine) SubmitAnswer(ctx context.Context, index int) (domain.AnswerRecord, error) {
	e.mu.Lock()
	if e.state == StateAnswered && e.answered != nil {
		rec := *e.answered
		e.mu.Unlock()
		return rec, nil
	}
	if e.state != StateAwaitingAnswer || e.current == nil {
		e.mu.Unlock()
		return domain.AnswerRecord{}, domain.ErrNoQuestion
	}
	if index < 0 || index >= len(e.current.Options) {
		e.mu.Unlock()
		return domain.AnswerRecord{}, fmt.Errorf("option index %d out of range", index)
	}

	record := domain.AnswerRecord{
		SelectedIndex: index,
		CorrectIndex:  e.current.CorrectIndex,
		Correct:       index == e.current.CorrectIndex,
	}
	e.answered = &record
	e.total++
	if record.Correct {
		e.correct++
	}
	e.state = StateAnswered
	e.countdown = int(e.opts.AnswerDelay / e.opts.TickInterval)
	e.timerGen++
	tgen := e.timerGen
	sessionID := e.sessionID
	total, correct := e.total, e.correct
	countdown := e.countdown
	e.mu.Unlock()

	score := newScore(correct, total)
	e.emit(Event{Type: EventState, State: StateAnswered})
	e.emit(Event{Type: EventAnswerResult, Answer: &record, Score: &score})
	e.emit(Event{Type: EventCountdown, Countdown: countdown})

	// Totals are already visible locally; persistence trails behind and may
	// silently fail without rollback.
	if e.store != nil && sessionID != "" {
		go e.persistTotals(sessionID, total, correct)
	}

	go e.runCountdown(tgen)
	return record, nil
}

func (e *Engine) persistTotals(sessionID string, total, correct int) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.store.UpdateTotals(ctx, sessionID, total, correct); err != nil {
		e.logger.Warn("session totals update failed",
			zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (e *Engine) runCountdown(gen uint64) {
	ticker := time.NewTicker(e.opts.TickInterval)
	defer ticker.Stop()
	for range ticker.C {
		e.mu.Lock()
		if e.closed || gen != e.timerGen || e.state != StateAnswered {
			e.mu.Unlock()
			return
		}
		e.countdown--
		remaining := e.countdown
		e.mu.Unlock()

		e.emit(Event{Type: EventCountdown, Countdown: remaining})
		if remaining <= 0 {
			if err := e.loadNext(context.Background(), StateAnswered); err != nil {
				e.logger.Warn("auto-advance fetch failed", zap.Error(err))
			}
			return
		}
	}
}

// EndSession finalizes the session: stamps end time and duration on the
// stored record (when one exists), clears local state, and returns to Idle.
// Persistence failures are logged only; the caller always sees success.
func (e *Engine) EndSession(ctx context.Context) (Score, error) {
	e.mu.Lock()
	if e.state == StateIdle {
		e.mu.Unlock()
		return Score{}, fmt.Errorf("end session: invalid in state %s", e.state)
	}
	now := e.opts.Clock()
	sessionID := e.sessionID
	startedAt := e.startedAt
	final := newScore(e.correct, e.total)
	wasInPlay := e.state != StateNamePrompt

	e.timerGen++
	e.fetchGen++
	e.inFlight = false
	e.state = StateEnded
	e.current = nil
	e.answered = nil
	e.countdown = 0
	e.sessionID = ""
	e.playerName = ""
	e.history = nil
	e.historySet = make(map[string]struct{})
	e.mu.Unlock()

	if wasInPlay && e.store != nil && sessionID != "" {
		duration := int(now.Sub(startedAt) / time.Second)
		go e.persistEnd(sessionID, now, duration)
	}

	e.emit(Event{Type: EventSessionEnded, Score: &final})

	e.mu.Lock()
	if e.state == StateEnded {
		e.state = StateIdle
	}
	e.mu.Unlock()
	e.emit(Event{Type: EventState, State: StateIdle})
	return final, nil
}

func (e *Engine) persistEnd(sessionID string, endedAt time.Time, durationSeconds int) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.store.EndSession(ctx, sessionID, endedAt, durationSeconds); err != nil {
		e.logger.Warn("session end update failed",
			zap.String("session_id", sessionID), zap.Error(err))
	}
}

// Close tears the engine down: timers stop, in-flight fetch results are
// discarded, and the event stream closes. The stored record is left as-is;
// abandoned sessions are finalized by the janitor, not here.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.timerGen++
	e.fetchGen++
	close(e.events)
	e.mu.Unlock()
}

// recentHistoryLocked returns the tail of the question history, capped to the
// configured limit. Callers hold mu.
func (e *Engine) recentHistoryLocked() []string {
	n := len(e.history)
	if n > e.opts.HistoryLimit {
		n = e.opts.HistoryLimit
	}
	out := make([]string, n)
	copy(out, e.history[len(e.history)-n:])
	return out
}

// emit pushes an event without ever blocking the engine: when the buffer is
// full the oldest event is dropped in favor of the new one.
func (e *Engine) emit(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.events <- ev:
	default:
		select {
		case <-e.events:
		default:
		}
		select {
		case e.events <- ev:
		default:
		}
	}
}

// userMessage maps a fetch error to the toast text shown to the player.
// Rate-limit and payment errors pass through verbatim; everything else is
// generic.
func userMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return domain.ErrRateLimited.Error()
	case errors.Is(err, domain.ErrPaymentRequired):
		return domain.ErrPaymentRequired.Error()
	default:
		return "Failed to load question"
	}
}
