package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/ahrav/treadpick/infrastructure/explain"
	"github.com/ahrav/treadpick/infrastructure/llm"
	"github.com/ahrav/treadpick/infrastructure/middleware"
	"github.com/ahrav/treadpick/infrastructure/relay"
	"github.com/ahrav/treadpick/infrastructure/store"
	"github.com/ahrav/treadpick/internal/application"
	"github.com/ahrav/treadpick/internal/ports"
)

const serviceName = "treadpick"

// app holds the wired services for one process.
type app struct {
	registry    *prometheus.Registry
	metrics     *middleware.PrometheusMetrics
	recommender *application.RecommendationService
	feedback    *application.FeedbackService
	relay       *relay.Client

	dbs map[string]*sqlx.DB
}

func buildApp(ctx context.Context, cfg *application.Config) (*app, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := &app{
		registry: reg,
		metrics:  middleware.NewPrometheusMetrics(reg),
		relay:    relay.NewClient(relay.Config{WebhookURL: cfg.Relay.WebhookURL, Timeout: cfg.Relay.Timeout}),
		dbs:      map[string]*sqlx.DB{},
	}

	source, err := a.candidateSource(ctx, cfg.Source)
	if err != nil {
		a.Close()
		return nil, err
	}
	sink, err := a.feedbackSink(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	explainer, err := buildExplainer(cfg.Explain, a.metrics)
	if err != nil {
		a.Close()
		return nil, err
	}

	reporter := middleware.NewEventReporter(a.metrics)
	a.recommender, err = application.NewRecommendationService(source,
		application.WithExplainer(explainer),
		application.WithEventReporter(reporter),
		application.WithMetrics(a.metrics),
		application.WithRankObserver(middleware.NewOTelRankObserver(a.metrics)),
		application.WithMaxConcurrency(cfg.Explain.MaxConcurrency),
		application.WithExplainTimeout(cfg.Explain.Timeout),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.feedback, err = application.NewFeedbackService(sink, reporter, a.metrics)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close closes every database the app opened.
func (a *app) Close() {
	for _, db := range a.dbs {
		_ = db.Close()
	}
}

// db opens each driver/DSN pair once.
func (a *app) db(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	key := driver + "|" + dsn
	if db, ok := a.dbs[key]; ok {
		return db, nil
	}
	db, err := store.Open(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}
	a.dbs[key] = db
	return db, nil
}

func (a *app) candidateSource(ctx context.Context, cfg application.SourceConfig) (ports.CandidateSource, error) {
	if cfg.Kind == "file" {
		return store.NewFileCandidateSource(cfg.Path), nil
	}
	db, err := a.db(ctx, cfg.Kind, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening candidate source: %w", err)
	}
	return store.NewSQLCandidateSource(db, cfg.Table)
}

func (a *app) feedbackSink(ctx context.Context, cfg *application.Config) (ports.FeedbackSink, error) {
	if cfg.Feedback.Kind == "log" {
		return store.LogFeedbackSink{}, nil
	}
	db, err := a.db(ctx, cfg.Feedback.Kind, cfg.FeedbackDSN())
	if err != nil {
		return nil, fmt.Errorf("opening feedback sink: %w", err)
	}
	return store.NewSQLFeedbackSink(db, cfg.Feedback.Table)
}

func buildExplainer(cfg application.ExplainConfig, metrics ports.MetricsCollector) (ports.Explainer, error) {
	switch cfg.Kind {
	case "llm":
		mws := []llm.Middleware{
			llm.TracingMiddleware(serviceName),
			llm.MetricsMiddleware(metrics),
			llm.RetryMiddleware(llm.RetryPolicy{
				MaxRetries: cfg.RetryAttempts,
				BaseDelay:  200 * time.Millisecond,
				MaxDelay:   2 * time.Second,
			}),
		}
		if cfg.RateLimit > 0 {
			mws = append(mws, llm.RateLimitMiddleware(rate.Limit(cfg.RateLimit), 1))
		}
		mws = append(mws,
			llm.CircuitBreakerMiddleware(llm.BreakerSettings{
				Name:        "llm",
				MaxFailures: cfg.BreakerFailures,
				Cooldown:    cfg.BreakerCooldown,
			}),
			llm.TimeoutMiddleware(cfg.Timeout),
		)

		registry := llm.NewRegistry(llm.RegistryConfig{Timeout: cfg.Timeout, Middleware: mws})
		client, err := registry.Client(cfg.Provider)
		if err != nil {
			return nil, fmt.Errorf("building llm client: %w", err)
		}
		return explain.NewLLMExplainer(client, explain.LLMConfig{
			Prompt:      explain.DefaultPrompt,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
	case "http":
		return explain.NewHTTPExplainer(explain.HTTPConfig{
			Endpoint:    cfg.Endpoint,
			APIKey:      cfg.APIKey,
			Timeout:     cfg.Timeout,
			MaxFailures: cfg.BreakerFailures,
			Cooldown:    cfg.BreakerCooldown,
		})
	case "none", "":
		return explain.StaticExplainer{}, nil
	default:
		return nil, errors.New("unknown explain kind " + cfg.Kind)
	}
}
