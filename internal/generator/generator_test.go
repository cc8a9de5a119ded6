package generator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"portfolio-quiz-service/internal/domain"
)

type fakeModel struct {
	reply      string
	err        error
	lastSystem string
	lastUser   string
}

func (m *fakeModel) Generate(_ context.Context, system, user string) (string, error) {
	m.lastSystem = system
	m.lastUser = user
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *fakeModel) Name() string { return "fake" }

const goodReply = `Here is your question:
{"question": "What is 2 + 2?", "options": ["3", "4", "5", "6"], "correctIndex": 1}
Enjoy!`

func TestNextQuestionParsesEmbeddedJSON(t *testing.T) {
	model := &fakeModel{reply: goodReply}
	gen := New(model, nil, nil, Options{})

	q, err := gen.NextQuestion(context.Background(), domain.CategoryTech, nil)
	if err != nil {
		t.Fatalf("next question: %v", err)
	}
	if q.Text != "What is 2 + 2?" || q.CorrectIndex != 1 || len(q.Options) != 4 {
		t.Fatalf("unexpected question: %+v", q)
	}
}

func TestMalformedReplyFallsBack(t *testing.T) {
	cases := []string{
		"no json here at all",
		`{"question": "broken", "options": ["a", "b"], "correctIndex": 0}`,
		`{"question": "bad index", "options": ["a", "b", "c", "d"], "correctIndex": 7}`,
		`{"question": "dup options", "options": ["a", "a", "c", "d"], "correctIndex": 0}`,
	}
	for _, reply := range cases {
		gen := New(&fakeModel{reply: reply}, nil, nil, Options{})
		q, err := gen.NextQuestion(context.Background(), domain.CategoryAboutMe, nil)
		if err != nil {
			t.Fatalf("reply %q: expected fallback, got error %v", reply, err)
		}
		if q.Text != fallbackQuestion(domain.CategoryAboutMe).Text {
			t.Fatalf("reply %q: expected about_me fallback, got %+v", reply, q)
		}
	}

	gen := New(&fakeModel{reply: "garbage"}, nil, nil, Options{})
	q, err := gen.NextQuestion(context.Background(), domain.CategoryTech, nil)
	if err != nil {
		t.Fatalf("tech fallback: %v", err)
	}
	if q.Text != fallbackQuestion(domain.CategoryTech).Text {
		t.Fatalf("expected tech fallback, got %+v", q)
	}
}

func TestModelErrorsPropagate(t *testing.T) {
	gen := New(&fakeModel{err: domain.ErrRateLimited}, nil, nil, Options{})
	if _, err := gen.NextQuestion(context.Background(), domain.CategoryTech, nil); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected rate-limit error, got %v", err)
	}

	gen = New(&fakeModel{err: errors.New("upstream down")}, nil, nil, Options{})
	if _, err := gen.NextQuestion(context.Background(), domain.CategoryTech, nil); err == nil {
		t.Fatalf("expected error for failed model call")
	}
}

func TestExclusionListCappedAndInPrompt(t *testing.T) {
	model := &fakeModel{reply: goodReply}
	gen := New(model, nil, nil, Options{HistoryLimit: 3})

	previous := []string{"q1", "q2", "q3", "q4", "q5"}
	if _, err := gen.NextQuestion(context.Background(), domain.CategoryTech, previous); err != nil {
		t.Fatalf("next question: %v", err)
	}
	if strings.Contains(model.lastUser, "q1") || strings.Contains(model.lastUser, "q2") {
		t.Fatalf("prompt includes entries beyond the cap: %s", model.lastUser)
	}
	for _, want := range []string{"q3", "q4", "q5"} {
		if !strings.Contains(model.lastUser, want) {
			t.Fatalf("prompt missing exclusion %q", want)
		}
	}
}

type fakeCache struct {
	mu         sync.Mutex
	recent     []string
	remembered []string
}

func (c *fakeCache) Remember(_ context.Context, _ domain.Category, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remembered = append(c.remembered, text)
	return nil
}

func (c *fakeCache) Recent(_ context.Context, _ domain.Category) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.recent...), nil
}

func TestRecentCacheWidensExclusions(t *testing.T) {
	model := &fakeModel{reply: goodReply}
	cache := &fakeCache{recent: []string{"cached question"}}
	gen := New(model, cache, nil, Options{})

	if _, err := gen.NextQuestion(context.Background(), domain.CategoryTech, []string{"caller question"}); err != nil {
		t.Fatalf("next question: %v", err)
	}
	if !strings.Contains(model.lastUser, "cached question") {
		t.Fatalf("prompt missing cached exclusion: %s", model.lastUser)
	}
	if !strings.Contains(model.lastUser, "caller question") {
		t.Fatalf("prompt missing caller exclusion: %s", model.lastUser)
	}

	deadline := time.Now().Add(time.Second)
	for {
		cache.mu.Lock()
		n := len(cache.remembered)
		cache.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("generated question never remembered")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestInvalidCategoryRejected(t *testing.T) {
	gen := New(&fakeModel{reply: goodReply}, nil, nil, Options{})
	if _, err := gen.NextQuestion(context.Background(), domain.Category("history"), nil); !errors.Is(err, domain.ErrInvalidCategory) {
		t.Fatalf("expected invalid category error, got %v", err)
	}
}

func TestGatewayModelStatusMapping(t *testing.T) {
	for status, want := range map[int]error{
		http.StatusTooManyRequests: domain.ErrRateLimited,
		http.StatusPaymentRequired: domain.ErrPaymentRequired,
	} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))
		model := NewGatewayModel(server.URL, "key", "test-model")
		_, err := model.Generate(context.Background(), "s", "u")
		server.Close()
		if !errors.Is(err, want) {
			t.Fatalf("status %d: expected %v, got %v", status, want, err)
		}
	}
}

func TestGatewayModelParsesChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("missing auth header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}]}`))
	}))
	defer server.Close()

	model := NewGatewayModel(server.URL, "key", "test-model")
	reply, err := model.Generate(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if reply != "hello" {
		t.Fatalf("expected hello, got %q", reply)
	}
}
