package http

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"portfolio-quiz-service/internal/analytics"
)

// AnalyticsWSHandler streams stats snapshots to dashboard clients. Each
// connection gets its own aggregator subscription; the first message is the
// current snapshot, then one message per refresh.
type AnalyticsWSHandler struct {
	agg      *analytics.Aggregator
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewAnalyticsWSHandler(agg *analytics.Aggregator, logger *zap.Logger) *AnalyticsWSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsWSHandler{
		agg:    agg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *AnalyticsWSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates, cancel := h.agg.Subscribe()
	defer cancel()

	// Clients send nothing; the read loop only notices disconnects.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(snap); err != nil {
				h.logger.Debug("ws write error", zap.Error(err))
				return
			}
		case <-closed:
			return
		}
	}
}
