package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"portfolio-quiz-service/internal/domain"
)

// Model is the text-generation backend: one prompt in, one raw reply out.
type Model interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Name() string
}

// RecentCache remembers question texts issued across sessions so the
// generator can widen the exclusion list beyond a single caller's window.
type RecentCache interface {
	Remember(ctx context.Context, category domain.Category, text string) error
	Recent(ctx context.Context, category domain.Category) ([]string, error)
}

// Options tunes the generator.
type Options struct {
	// HistoryLimit caps the caller-supplied exclusion list. Defaults to 10.
	HistoryLimit int
}

// Generator produces one validated multiple-choice question per call. Model
// failures propagate as errors; unparseable model output degrades to a
// hardcoded per-category fallback instead of failing.
type Generator struct {
	model  Model
	cache  RecentCache
	logger *zap.Logger
	limit  int
}

func New(model Model, cache RecentCache, logger *zap.Logger, opts Options) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = 10
	}
	return &Generator{model: model, cache: cache, logger: logger, limit: limit}
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// NextQuestion implements quiz.QuestionSource.
func (g *Generator) NextQuestion(ctx context.Context, category domain.Category, previous []string) (domain.Question, error) {
	if !category.Valid() {
		return domain.Question{}, domain.ErrInvalidCategory
	}

	exclusions := g.exclusionList(ctx, category, previous)
	system, user := buildPrompts(category, exclusions)

	started := time.Now()
	reply, err := g.model.Generate(ctx, system, user)
	if err != nil {
		return domain.Question{}, fmt.Errorf("generate question: %w", err)
	}

	question, parseErr := parseQuestion(reply)
	if parseErr != nil {
		g.logger.Warn("unparseable model reply, using fallback",
			zap.String("category", string(category)),
			zap.String("model", g.model.Name()),
			zap.Error(parseErr))
		question = fallbackQuestion(category)
	}

	g.logger.Info("question generated",
		zap.String("category", string(category)),
		zap.String("model", g.model.Name()),
		zap.Int("exclusions", len(exclusions)),
		zap.Bool("fallback", parseErr != nil),
		zap.Duration("elapsed", time.Since(started)))

	g.remember(category, question.Text)
	return question, nil
}

// exclusionList merges the caller's window (capped to the configured limit)
// with the cross-session recent cache. Cache errors degrade to the caller's
// list alone.
func (g *Generator) exclusionList(ctx context.Context, category domain.Category, previous []string) []string {
	if len(previous) > g.limit {
		previous = previous[len(previous)-g.limit:]
	}
	out := make([]string, 0, len(previous))
	seen := make(map[string]struct{}, len(previous))
	for _, text := range previous {
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		out = append(out, text)
	}

	if g.cache == nil {
		return out
	}
	cached, err := g.cache.Recent(ctx, category)
	if err != nil {
		g.logger.Warn("recent-question cache read failed", zap.Error(err))
		return out
	}
	for _, text := range cached {
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		out = append(out, text)
	}
	return out
}

func (g *Generator) remember(category domain.Category, text string) {
	if g.cache == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := g.cache.Remember(ctx, category, text); err != nil {
			g.logger.Warn("recent-question cache write failed", zap.Error(err))
		}
	}()
}

// parseQuestion extracts the first JSON object from a model reply and
// validates it against the question invariants.
func parseQuestion(reply string) (domain.Question, error) {
	raw := jsonObjectRe.FindString(reply)
	if raw == "" {
		return domain.Question{}, fmt.Errorf("no JSON object in reply: %w", domain.ErrMalformedQuestion)
	}
	var question domain.Question
	if err := json.Unmarshal([]byte(raw), &question); err != nil {
		return domain.Question{}, fmt.Errorf("decode question: %w", domain.ErrMalformedQuestion)
	}
	if err := question.Validate(); err != nil {
		return domain.Question{}, err
	}
	return question, nil
}
