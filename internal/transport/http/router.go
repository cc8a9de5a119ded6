package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter assembles the service's HTTP surface. The API is CORS-open: the
// portfolio page is served from a different origin.
func NewRouter(question *QuestionHandler, pageViews *PageViewHandler, analytics *AnalyticsHandler, quizWS *QuizWSHandler, analyticsWS *AnalyticsWSHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/quiz/question", question.Generate)
		r.Post("/page-views", pageViews.Track)
		r.Get("/analytics", analytics.Snapshot)
	})

	r.Get("/ws/quiz", quizWS.ServeWS)
	r.Get("/ws/analytics", analyticsWS.ServeWS)
	return r
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
