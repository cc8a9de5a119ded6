package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"portfolio-quiz-service/internal/domain"
)

type stubSource struct {
	question domain.Question
	err      error
	lastPrev []string
}

func (s *stubSource) NextQuestion(_ context.Context, _ domain.Category, previous []string) (domain.Question, error) {
	s.lastPrev = previous
	if s.err != nil {
		return domain.Question{}, s.err
	}
	return s.question, nil
}

func sampleQuestion() domain.Question {
	return domain.Question{
		Text:         "Which hook is used for side effects in React?",
		Options:      []string{"useState", "useEffect", "useMemo", "useRef"},
		CorrectIndex: 1,
	}
}

func postQuestion(t *testing.T, handler *QuestionHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/quiz/question", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Generate(rec, req)
	return rec
}

func TestGenerateReturnsQuestion(t *testing.T) {
	source := &stubSource{question: sampleQuestion()}
	handler := NewQuestionHandler(source, 10, nil)

	rec := postQuestion(t, handler, `{"category":"tech","previousQuestions":["old one"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got domain.Question
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Text != "Which hook is used for side effects in React?" {
		t.Fatalf("unexpected question text %q", got.Text)
	}
	if got.CorrectIndex != 1 {
		t.Fatalf("expected correctIndex 1, got %d", got.CorrectIndex)
	}
	if len(source.lastPrev) != 1 || source.lastPrev[0] != "old one" {
		t.Fatalf("previous questions not forwarded: %v", source.lastPrev)
	}
}

func TestGenerateTruncatesHistory(t *testing.T) {
	source := &stubSource{question: sampleQuestion()}
	handler := NewQuestionHandler(source, 2, nil)

	rec := postQuestion(t, handler, `{"category":"tech","previousQuestions":["a","b","c","d"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(source.lastPrev) != 2 || source.lastPrev[0] != "c" || source.lastPrev[1] != "d" {
		t.Fatalf("expected newest two entries, got %v", source.lastPrev)
	}
}

func TestGenerateRejectsBadCategory(t *testing.T) {
	handler := NewQuestionHandler(&stubSource{}, 10, nil)
	rec := postQuestion(t, handler, `{"category":"history"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGenerateRejectsMalformedBody(t *testing.T) {
	handler := NewQuestionHandler(&stubSource{}, 10, nil)
	rec := postQuestion(t, handler, `{"category":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGenerateMapsUpstreamErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests},
		{"payment required", domain.ErrPaymentRequired, http.StatusPaymentRequired},
		{"generic", context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewQuestionHandler(&stubSource{err: tc.err}, 10, nil)
			rec := postQuestion(t, handler, `{"category":"about_me"}`)
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, rec.Code)
			}
			var body errorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body.Error == "" {
				t.Fatalf("expected error message in body")
			}
		})
	}
}
