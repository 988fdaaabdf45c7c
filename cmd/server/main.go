package main

import (
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"threadsim/internal/config"
	"threadsim/internal/domain"
	"threadsim/internal/handler"
	"threadsim/internal/middleware"
	"threadsim/internal/modelprofiles"
	"threadsim/internal/repository/pebbledb"
	llmSvc "threadsim/internal/service/llm"
	"threadsim/internal/service/persona"
	"threadsim/internal/service/sim"
	"threadsim/internal/service/stream"
	"threadsim/internal/service/thread"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger) // Set as default logger

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"data_dir", cfg.DataDir,
	)

	// Open the embedded key-value store
	db, err := pebbledb.Open(cfg.DataDir, logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer db.Close()

	// Create stores
	personaStore := pebbledb.NewPersonaStore(db)
	threadStore := pebbledb.NewThreadStore(db)

	// Load model generation profiles
	profiles, err := modelprofiles.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to load model profiles: %v", err)
	}

	// Setup LLM providers. A missing API key is not fatal: the server
	// comes up degraded and reports the problem on every turn and on
	// /health.
	registry, initErr := llmSvc.SetupProviders(cfg, logger)
	if initErr != nil {
		var unavailable *domain.UnavailableError
		if !errors.As(initErr, &unavailable) {
			log.Fatalf("Failed to setup LLM providers: %v", initErr)
		}
		logger.Warn("running in degraded mode", "error", initErr)
	}

	// Create services
	broadcaster := stream.NewBroadcaster(logger)
	personaService := persona.NewService(personaStore, registry, profiles, cfg, logger)
	threadService := thread.NewService(threadStore, logger)
	simService := sim.NewService(cfg, profiles, registry, initErr, personaStore, threadStore, broadcaster, logger)

	// Create handlers
	personaHandler := handler.NewPersonaHandler(personaService, logger)
	threadHandler := handler.NewThreadHandler(threadService, simService, logger)
	messageHandler := handler.NewMessageHandler(simService, logger)
	eventsHandler := handler.NewEventsHandler(threadService, broadcaster, logger)
	healthHandler := handler.NewHealthHandler(cfg.Environment, initErr == nil)

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	// Health check and metrics
	mux.HandleFunc("GET /health", healthHandler.HealthCheck)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Persona routes
	mux.HandleFunc("GET /api/personas", personaHandler.ListPersonas)
	mux.HandleFunc("POST /api/personas", personaHandler.CreatePersona)
	mux.HandleFunc("POST /api/personas/generate", personaHandler.GeneratePersona) // Must come before {id} route
	mux.HandleFunc("GET /api/personas/{id}", personaHandler.GetPersona)
	mux.HandleFunc("PATCH /api/personas/{id}", personaHandler.UpdatePersona)
	mux.HandleFunc("DELETE /api/personas/{id}", personaHandler.DeletePersona)
	mux.HandleFunc("POST /api/personas/{id}/avatar", personaHandler.GenerateAvatar)

	// Thread routes
	mux.HandleFunc("GET /api/threads", threadHandler.ListThreads)
	mux.HandleFunc("POST /api/threads", threadHandler.CreateThread)
	mux.HandleFunc("GET /api/threads/{id}", threadHandler.GetThread)
	mux.HandleFunc("PATCH /api/threads/{id}", threadHandler.UpdateThread)
	mux.HandleFunc("DELETE /api/threads/{id}", threadHandler.DeleteThread)
	mux.HandleFunc("POST /api/threads/{id}/clear", threadHandler.ClearThread)

	// Message routes
	mux.HandleFunc("GET /api/threads/{id}/messages", messageHandler.GetMessages)
	mux.HandleFunc("POST /api/threads/{id}/messages", messageHandler.PostComment)
	mux.HandleFunc("POST /api/threads/{id}/messages/{messageID}/vote", messageHandler.Vote)
	mux.HandleFunc("POST /api/threads/{id}/messages/{messageID}/reply-editor", messageHandler.ToggleReplyEditor)

	// Streaming route
	mux.HandleFunc("GET /api/threads/{id}/events", eventsHandler.StreamEvents) // SSE event stream

	// Build middleware chain
	var httpHandler http.Handler = mux

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Logging → Routes
	httpHandler = middleware.Logging(logger)(httpHandler)
	httpHandler = middleware.Recovery(logger)(httpHandler)

	// CORS - Must be outermost to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Last-Event-ID"},
		AllowCredentials: true,
	})
	httpHandler = corsHandler.Handler(httpHandler)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
