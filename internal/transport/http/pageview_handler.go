package http

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"portfolio-quiz-service/internal/analytics"
	"portfolio-quiz-service/internal/domain"
)

// PageViewTracker records a single page visit.
type PageViewTracker interface {
	TrackPageView(ctx context.Context, view domain.PageView) error
}

// PageViewHandler accepts page-view beacons from the site.
type PageViewHandler struct {
	tracker PageViewTracker
	logger  *zap.Logger
}

func NewPageViewHandler(tracker PageViewTracker, logger *zap.Logger) *PageViewHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageViewHandler{tracker: tracker, logger: logger}
}

type pageViewRequest struct {
	PagePath  string `json:"pagePath"`
	UserAgent string `json:"userAgent"`
	Referrer  string `json:"referrer"`
}

// Track handles POST /api/page-views.
func (h *PageViewHandler) Track(w http.ResponseWriter, r *http.Request) {
	var req pageViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if req.PagePath == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "pagePath is required"})
		return
	}
	if req.UserAgent == "" {
		req.UserAgent = r.UserAgent()
	}

	err := h.tracker.TrackPageView(r.Context(), domain.PageView{
		PagePath:  req.PagePath,
		UserAgent: req.UserAgent,
		Referrer:  req.Referrer,
	})
	if err != nil {
		// Losing a page view is preferable to surfacing errors to visitors.
		h.logger.Warn("page view insert failed", zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

// AnalyticsHandler serves the aggregator's current snapshot.
type AnalyticsHandler struct {
	agg *analytics.Aggregator
}

func NewAnalyticsHandler(agg *analytics.Aggregator) *AnalyticsHandler {
	return &AnalyticsHandler{agg: agg}
}

// Snapshot handles GET /api/analytics.
func (h *AnalyticsHandler) Snapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.agg.Snapshot())
}
