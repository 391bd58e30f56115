// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/capitalize-ai/mission-control/internal/config"
	"github.com/capitalize-ai/mission-control/internal/edge"
	"github.com/capitalize-ai/mission-control/internal/handler"
	"github.com/capitalize-ai/mission-control/internal/llm"
	"github.com/capitalize-ai/mission-control/internal/middleware"
	natsclient "github.com/capitalize-ai/mission-control/internal/nats"
	"github.com/capitalize-ai/mission-control/internal/scheduler"
	"github.com/capitalize-ai/mission-control/internal/service"
	"github.com/capitalize-ai/mission-control/internal/store"
	"github.com/capitalize-ai/mission-control/internal/voice"
	"github.com/capitalize-ai/mission-control/pkg/logger"
	"github.com/capitalize-ai/mission-control/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting mission control API server")

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "mission-control", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to NATS. The event bus is optional: the server keeps working
	// without live SSE events when NATS is unreachable.
	var (
		natsClient *natsclient.Client
		eventBus   *natsclient.EventBus
	)
	natsClient, err = natsclient.Connect(ctx, natsclient.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		log.Warn("NATS unavailable, running without event stream", zap.Error(err))
		natsClient = nil
	} else {
		defer natsClient.Close()
		eventBus = natsclient.NewEventBus(natsClient)
		if err := eventBus.EnsureStream(ctx); err != nil {
			log.Error("failed to ensure event stream", zap.Error(err))
			os.Exit(1)
		}
	}

	// Select the store: Postgres when a DSN is configured, in-memory otherwise.
	var st store.Store
	if cfg.DatabaseDSN != "" {
		pg, err := store.NewPostgresStore(cfg.DatabaseDSN)
		if err != nil {
			log.Error("failed to connect to database", zap.Error(err))
			os.Exit(1)
		}
		st = pg
		log.Info("using postgres store")
	} else {
		st = store.NewMemoryStore()
		log.Warn("no DATABASE_DSN configured, using ephemeral in-memory store")
	}

	// Initialize LLM client
	var llmClient llm.Client
	if cfg.AnthropicAPIKey != "" {
		llmClient, err = llm.NewAnthropicClient(cfg.AnthropicAPIKey)
		if err != nil {
			log.Warn("failed to create Anthropic client, LLM features disabled", zap.Error(err))
		}
	} else if cfg.OpenAIAPIKey != "" {
		llmClient, err = llm.NewOpenAIClient(cfg.OpenAIAPIKey)
		if err != nil {
			log.Warn("failed to create OpenAI client, LLM features disabled", zap.Error(err))
		}
	}

	var edgeClient *edge.Client
	if cfg.EdgeBaseURL != "" {
		edgeClient = edge.NewClient(cfg.EdgeBaseURL, cfg.EdgeToken, cfg.EdgeMaxAttempts, log)
	}

	// Event bus satisfies service.EventPublisher; keep the nil case typed.
	var events service.EventPublisher
	if eventBus != nil {
		events = eventBus
	}

	// Initialize services
	conversationSvc := service.NewConversationService(st, events, log)
	personaSvc := service.NewPersonaService(st, log)
	messageSvc := service.NewMessageService(st, conversationSvc, personaSvc, llmClient, events, log)
	exportSvc := service.NewExportService(st, log)
	benchmarkSvc := service.NewBenchmarkService()
	voiceRegistry := voice.NewRegistry(cfg)

	if err := personaSvc.SeedBuiltins(ctx); err != nil {
		log.Warn("failed to seed builtin personas", zap.Error(err))
	}

	sched := scheduler.New(st, personaSvc, llmClient, edgeClient, events,
		scheduler.NewWebhookNotifier(), log, cfg.SchedulerInterval)

	schedulerCtx, stopScheduler := context.WithCancel(ctx)
	defer stopScheduler()
	if cfg.SchedulerEnabled {
		go sched.Run(schedulerCtx)
	}

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(natsClient)
	conversationHandler := handler.NewConversationHandler(conversationSvc, log)
	messageHandler := handler.NewMessageHandler(messageSvc, log)
	exportHandler := handler.NewExportHandler(exportSvc, log)
	personaHandler := handler.NewPersonaHandler(personaSvc, log)
	taskHandler := handler.NewTaskHandler(sched, log)
	benchmarkHandler := handler.NewBenchmarkHandler(benchmarkSvc, log)
	voiceHandler := handler.NewVoiceHandler(voiceRegistry, log)

	var eventSource handler.EventSource
	if eventBus != nil {
		eventSource = eventBus
	}
	streamHandler := handler.NewStreamHandler(messageSvc, conversationSvc, eventSource, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		// Conversations
		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", conversationHandler.Create)
			r.Get("/", conversationHandler.List)
			r.Post("/import", exportHandler.Import)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Put("/", conversationHandler.Update)
				r.Delete("/", conversationHandler.Delete)
				r.Post("/pin", conversationHandler.Pin)
				r.Post("/unpin", conversationHandler.Unpin)
				r.Post("/archive", conversationHandler.Archive)
				r.Post("/unarchive", conversationHandler.Unarchive)

				// Messages
				r.Get("/messages", messageHandler.List)
				r.Post("/messages", messageHandler.Send)

				// Branches
				r.Get("/branches", messageHandler.ListBranches)
				r.Post("/branches/switch", messageHandler.SwitchBranch)

				// Export
				r.Get("/export", exportHandler.Export)

				// Streaming
				r.Get("/stream", streamHandler.Stream)
				r.Post("/stream", streamHandler.StreamWithMessage)
			})
		})

		// Message edits branch from an existing message
		r.Post("/messages/{id}/edit", messageHandler.Edit)

		// Personas
		r.Route("/personas", func(r chi.Router) {
			r.Post("/", personaHandler.Create)
			r.Get("/", personaHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", personaHandler.Get)
				r.Put("/", personaHandler.Update)
				r.Delete("/", personaHandler.Delete)
				r.Post("/render", personaHandler.Render)
			})
		})

		// Scheduled tasks
		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", taskHandler.Create)
			r.Get("/", taskHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", taskHandler.Get)
				r.Put("/", taskHandler.Update)
				r.Delete("/", taskHandler.Delete)
				r.Post("/run", taskHandler.Run)
				r.Get("/runs", taskHandler.ListRuns)
			})
		})

		// Benchmarks
		r.Route("/benchmarks", func(r chi.Router) {
			r.Get("/models", benchmarkHandler.Models)
			r.Post("/cost", benchmarkHandler.Cost)
			r.Post("/recommend", benchmarkHandler.Recommend)
		})

		// Voice
		r.Route("/voice", func(r chi.Router) {
			r.Get("/providers", voiceHandler.Providers)
			r.Post("/transcribe", voiceHandler.Transcribe)
			r.Post("/speech", voiceHandler.Speech)
			r.Get("/voices", voiceHandler.Voices)
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	stopScheduler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
