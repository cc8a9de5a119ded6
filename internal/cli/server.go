package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"portfolio-quiz-service/internal/analytics"
	"portfolio-quiz-service/internal/config"
	"portfolio-quiz-service/internal/generator"
	"portfolio-quiz-service/internal/infra/memory"
	pginfra "portfolio-quiz-service/internal/infra/postgres"
	redisinfra "portfolio-quiz-service/internal/infra/redis"
	"portfolio-quiz-service/internal/jobs"
	"portfolio-quiz-service/internal/quiz"
	transport "portfolio-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// sessionBackend is the full storage surface the server wires up; both the
// Postgres and the in-memory store satisfy it.
type sessionBackend interface {
	quiz.SessionStore
	transport.PageViewTracker
	analytics.StatsReader
	jobs.SessionFinalizer
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = redisClient.Close() }()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	// One change feed for all instances when Redis is around, an in-process
	// bus otherwise.
	var pub analytics.Publisher
	var feed analytics.ChangeFeed
	if redisClient != nil {
		f := redisinfra.NewFeed(redisClient)
		pub, feed = f, f
	} else {
		bus := memory.NewBus()
		pub, feed = bus, bus
	}

	var store sessionBackend
	if pool != nil {
		store = pginfra.NewSessionStore(pool, pub)
	} else {
		logger.Warn("postgres not configured, sessions are held in memory")
		store = memory.NewSessionStore(pub)
	}

	source, err := buildQuestionSource(ctx, cfg, redisClient, logger)
	if err != nil {
		return err
	}

	recentPlayers := config.IntOr(cfg.Analytics.RecentPlayers, 10)
	aggregator := analytics.NewAggregator(store, feed, logger, recentPlayers)
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	go func() {
		if err := aggregator.Run(runCtx); err != nil {
			logger.Warn("analytics aggregator stopped", zap.Error(err))
		}
	}()

	janitor := jobs.NewJanitor(store, logger, cfg.Janitor.Schedule,
		config.Duration(cfg.Janitor.StaleAfter, time.Hour))
	if err := janitor.Start(); err != nil {
		return err
	}
	defer janitor.Stop()

	historyLimit := config.IntOr(cfg.Quiz.HistoryLimit, 10)
	quizOpts := quiz.Options{
		HistoryLimit: historyLimit,
		AnswerDelay:  config.Duration(cfg.Quiz.AnswerDelay, 3*time.Second),
		FetchRetries: config.IntOr(cfg.Quiz.FetchRetries, 2),
		RetryBackoff: config.Duration(cfg.Quiz.RetryBackoff, 500*time.Millisecond),
	}

	router := transport.NewRouter(
		transport.NewQuestionHandler(source, historyLimit, logger),
		transport.NewPageViewHandler(store, logger),
		transport.NewAnalyticsHandler(aggregator),
		transport.NewQuizWSHandler(source, store, logger, quizOpts),
		transport.NewAnalyticsWSHandler(aggregator, logger),
	)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting portfolio quiz service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildQuestionSource wires the configured model behind the generator. Gemini
// is the default; an OpenAI-compatible gateway is selectable for local or
// proxied setups.
func buildQuestionSource(ctx context.Context, cfg config.Config, redisClient *redis.Client, logger *zap.Logger) (*generator.Generator, error) {
	var model generator.Model
	switch cfg.AI.Provider {
	case "gateway":
		if cfg.AI.Gateway == "" {
			return nil, fmt.Errorf("ai.gateway url not configured")
		}
		model = generator.NewGatewayModel(cfg.AI.Gateway, cfg.AI.APIKey, cfg.AI.Model)
	case "", "gemini":
		if cfg.AI.APIKey == "" {
			return nil, fmt.Errorf("ai.api_key not configured (set AI_API_KEY)")
		}
		gemini, err := generator.NewGeminiModel(ctx, cfg.AI.APIKey, cfg.AI.Model)
		if err != nil {
			return nil, err
		}
		model = gemini
	default:
		return nil, fmt.Errorf("unknown ai.provider %q", cfg.AI.Provider)
	}

	var cache generator.RecentCache
	if redisClient != nil {
		cache = redisinfra.NewQuestionCache(redisClient,
			config.IntOr(cfg.Quiz.RecentCacheN, 20),
			config.Duration(cfg.Quiz.RecentCacheTT, 24*time.Hour))
	}

	return generator.New(model, cache, logger, generator.Options{
		HistoryLimit: config.IntOr(cfg.Quiz.HistoryLimit, 10),
	}), nil
}
