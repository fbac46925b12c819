package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/sitecraft/backend/internal/auth"
	"github.com/sitecraft/backend/internal/config"
	"github.com/sitecraft/backend/internal/dashboard"
	"github.com/sitecraft/backend/internal/database"
	"github.com/sitecraft/backend/internal/execution"
	"github.com/sitecraft/backend/internal/generation"
	"github.com/sitecraft/backend/internal/ledger"
	"github.com/sitecraft/backend/internal/middleware"
	"github.com/sitecraft/backend/internal/observability"
	"github.com/sitecraft/backend/internal/prompts"
	"github.com/sitecraft/backend/internal/repository"
	"github.com/sitecraft/backend/internal/router"
	"github.com/sitecraft/backend/internal/services"
	"github.com/sitecraft/backend/internal/validation"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("Connected to PostgreSQL database successfully!")

	if err := database.Migrate(ctx, pool); err != nil {
		return err
	}
	logger.Info("migrations applied")

	// Repositories and ledger
	txm := database.NewTxManager(pool)
	userRepo := repository.NewUserRepo(pool)
	creditRepo := repository.NewCreditRepo(pool)
	projectRepo := repository.NewProjectRepo(pool)
	versionRepo := repository.NewVersionRepo(pool)
	conversationRepo := repository.NewConversationRepo(pool)
	ledgerSvc := ledger.NewService(userRepo, creditRepo, txm)

	// Refund queue
	workers := river.NewWorkers()
	river.AddWorker(workers, execution.NewRefundCreditsWorker(ledgerSvc, logger))
	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.RefundWorkers},
		},
		Workers: workers,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	refunds := execution.NewRefundScheduler(func(ctx context.Context, args execution.RefundCreditsArgs) error {
		_, err := riverClient.Insert(ctx, args, nil)
		return err
	})

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)

	// Generation
	generator, err := generation.NewOpenAIClient(generation.Config{
		BaseURL:     cfg.GenerationBaseURL,
		APIKey:      cfg.GenerationAPIKey,
		Model:       cfg.GenerationModel,
		MaxTokens:   cfg.GenerationMaxTokens,
		Temperature: cfg.GenerationTemperature,
		Timeout:     cfg.GenerationTimeout,
	}, logger)
	if err != nil {
		return err
	}
	templates, err := prompts.Default()
	if err != nil {
		return err
	}

	engine := &services.RevisionEngine{
		Users:        userRepo,
		Projects:     projectRepo,
		Versions:     versionRepo,
		Conversation: conversationRepo,
		Ledger:       ledgerSvc,
		Generator:    generator,
		Prompts:      templates,
		Tx:           txm,
		Refunds:      refunds,
		Metrics:      metrics,
		Logger:       logger,
		Cost:         cfg.RevisionCost,
	}
	projectSvc := &services.ProjectService{
		Projects:     projectRepo,
		Versions:     versionRepo,
		Conversation: conversationRepo,
		Tx:           txm,
		Logger:       logger,
	}

	// Auth
	authSvc, err := auth.NewService(userRepo, ledgerSvc, txm, auth.Config{
		Secret:        []byte(cfg.JWTSecret),
		SignupCredits: cfg.SignupCredits,
	})
	if err != nil {
		return err
	}
	var verifier middleware.TokenVerifier = authSvc
	if cfg.AuthJWKSURL != "" {
		jwks, err := auth.NewJWKSVerifier(ctx, cfg.AuthJWKSURL, logger)
		if err != nil {
			return err
		}
		verifier = auth.ChainVerifier{authSvc, jwks}
	}

	validator, err := validation.New()
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", router.New(
		auth.NewHandler(authSvc, logger),
		dashboard.NewHandler(userRepo, ledgerSvc, projectSvc, logger),
		verifier,
		validator,
	))
	RegisterProjectRoutes(mux, engine, projectSvc, verifier, validator, logger)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, `{"status":"unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
	}).Handler(mux)

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := riverClient.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting HTTP server", "addr", srv.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		httpErr := srv.Shutdown(shutdownCtx)
		riverErr := riverClient.Stop(shutdownCtx)
		return errors.Join(httpErr, riverErr)
	})
	return g.Wait()
}
