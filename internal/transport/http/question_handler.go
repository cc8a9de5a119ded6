package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"portfolio-quiz-service/internal/domain"
	"portfolio-quiz-service/internal/quiz"
)

// QuestionHandler exposes the question generator over plain HTTP.
type QuestionHandler struct {
	source       quiz.QuestionSource
	historyLimit int
	logger       *zap.Logger
}

func NewQuestionHandler(source quiz.QuestionSource, historyLimit int, logger *zap.Logger) *QuestionHandler {
	if historyLimit <= 0 {
		historyLimit = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuestionHandler{source: source, historyLimit: historyLimit, logger: logger}
}

type questionRequest struct {
	Category          domain.Category `json:"category"`
	PreviousQuestions []string        `json:"previousQuestions"`
}

// Generate handles POST /api/quiz/question. Rate-limit and payment errors
// pass through with their upstream status; anything else is a generic 500.
func (h *QuestionHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if !req.Category.Valid() {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: domain.ErrInvalidCategory.Error()})
		return
	}

	previous := req.PreviousQuestions
	if len(previous) > h.historyLimit {
		previous = previous[len(previous)-h.historyLimit:]
	}

	question, err := h.source.NextQuestion(r.Context(), req.Category, previous)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRateLimited):
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: domain.ErrRateLimited.Error()})
		case errors.Is(err, domain.ErrPaymentRequired):
			writeJSON(w, http.StatusPaymentRequired, errorBody{Error: domain.ErrPaymentRequired.Error()})
		default:
			h.logger.Warn("question generation failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "failed to generate question"})
		}
		return
	}

	writeJSON(w, http.StatusOK, question)
}
