package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"portfolio-quiz-service/internal/domain"
	"portfolio-quiz-service/internal/quiz"
)

// QuizWSHandler owns one quiz engine per connection and bridges it to the
// browser: inbound command messages drive the state machine, outbound engine
// events stream back.
type QuizWSHandler struct {
	source   quiz.QuestionSource
	store    quiz.SessionStore
	logger   *zap.Logger
	opts     quiz.Options
	upgrader websocket.Upgrader
}

func NewQuizWSHandler(source quiz.QuestionSource, store quiz.SessionStore, logger *zap.Logger, opts quiz.Options) *QuizWSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuizWSHandler{
		source: source,
		store:  store,
		logger: logger,
		opts:   opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundCommand struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type categoryPayload struct {
	Category domain.Category `json:"category"`
}

type namePayload struct {
	Name string `json:"name"`
}

type answerPayload struct {
	Index int `json:"index"`
}

// ServeWS upgrades the request and runs the session until the client leaves.
// Disconnecting mid-play does not finalize the session; the janitor does.
func (h *QuizWSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	engine := quiz.NewEngine(h.source, h.store, h.logger, h.opts)
	defer engine.Close()

	send := make(chan quiz.Event, 16)
	pumpDone := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for ev := range send {
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debug("ws write error", zap.Error(err))
				// Keep draining so the event pump never blocks on a dead peer.
				for range send {
				}
				return
			}
		}
	}()

	// Engine events and transport notices share one ordered send queue.
	go func() {
		defer close(pumpDone)
		for ev := range engine.Events() {
			send <- ev
		}
	}()

	send <- quiz.Event{Type: quiz.EventState, State: engine.Snapshot().State}

	for {
		var cmd inboundCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			break
		}
		h.dispatch(r, engine, send, cmd)
	}

	engine.Close()
	<-pumpDone
	close(send)
	<-writerDone
}

func (h *QuizWSHandler) dispatch(r *http.Request, engine *quiz.Engine, send chan<- quiz.Event, cmd inboundCommand) {
	ctx := r.Context()
	switch cmd.Type {
	case "selectCategory":
		var payload categoryPayload
		if err := json.Unmarshal(cmd.Payload, &payload); err != nil {
			send <- quiz.Event{Type: quiz.EventNotice, Message: "invalid category payload"}
			return
		}
		h.report(send, engine.SelectCategory(payload.Category))
	case "start":
		h.report(send, engine.RequestStart())
	case "cancelStart":
		h.report(send, engine.CancelStart())
	case "confirmStart":
		var payload namePayload
		if err := json.Unmarshal(cmd.Payload, &payload); err != nil {
			send <- quiz.Event{Type: quiz.EventNotice, Message: "invalid name payload"}
			return
		}
		// Fetches block; keep the read loop free so end/skip stay responsive.
		go func() { _ = engine.ConfirmStart(ctx, payload.Name) }()
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(cmd.Payload, &payload); err != nil {
			send <- quiz.Event{Type: quiz.EventNotice, Message: "invalid answer payload"}
			return
		}
		_, err := engine.SubmitAnswer(ctx, payload.Index)
		h.report(send, err)
	case "skip":
		go func() { _ = engine.SkipQuestion(ctx) }()
	case "retry":
		go func() { _ = engine.Retry(ctx) }()
	case "end":
		_, err := engine.EndSession(ctx)
		h.report(send, err)
	default:
		send <- quiz.Event{Type: quiz.EventNotice, Message: "unsupported command type"}
	}
}

// report forwards command failures the engine has not already surfaced as
// its own notice events.
func (h *QuizWSHandler) report(send chan<- quiz.Event, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, domain.ErrEmptyPlayerName) ||
		errors.Is(err, domain.ErrRateLimited) ||
		errors.Is(err, domain.ErrPaymentRequired) {
		return
	}
	send <- quiz.Event{Type: quiz.EventNotice, Message: err.Error()}
}
