// Package api exposes the recommendation service over HTTP using the chi
// router. Routes:
//
//	POST /api/v1/recommendations   rank and explain for {wet_pref, width_pref}
//	POST /api/v1/feedback          store a feedback record
//	*    /api/v1/relay, /relay     forward {text} to the chat-ops webhook
//	GET  /healthz                  liveness
//	GET  /metrics                  Prometheus exposition
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahrav/treadpick/internal/application"
	"github.com/ahrav/treadpick/internal/domain"
)

// Recommender produces recommendations.
type Recommender interface {
	Recommend(ctx context.Context, req application.Request) (application.Recommendation, error)
}

// FeedbackSubmitter stores feedback.
type FeedbackSubmitter interface {
	Submit(ctx context.Context, fb domain.Feedback) error
}

// Dependencies are the collaborators the router serves. Relay and Gatherer
// are optional; without them the routes are not mounted.
type Dependencies struct {
	Recommender Recommender
	Feedback    FeedbackSubmitter
	Relay       http.Handler
	Gatherer    prometheus.Gatherer
}

// NewRouter builds the HTTP handler.
func NewRouter(deps Dependencies, cfg MiddlewareConfig) http.Handler {
	h := &handler{recommender: deps.Recommender, feedback: deps.Feedback}

	r := chi.NewRouter()
	r.Use(requestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(accessLog)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(corsHandler(cfg.CORSOrigins))
	}

	r.Get("/healthz", h.health)
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimit(cfg))
		r.Post("/recommendations", h.recommend)
		r.Post("/feedback", h.submitFeedback)
		if deps.Relay != nil {
			r.Handle("/relay", deps.Relay)
		}
	})

	// The relay answers 405 itself, so it is mounted for every method.
	if deps.Relay != nil {
		r.With(rateLimit(cfg)).Handle("/relay", deps.Relay)
	}
	return r
}
