/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the roster engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and environment configuration
  2. Configure logging
  3. Initialize SQLite store and load its contents into the engine
  4. Create API handler and router
  5. Start the periodic index audit (optional)
  6. Start server with graceful shutdown

CONFIGURATION (environment):
  ENVIRONMENT             development | production (default: development)
  SERVER_PORT             HTTP server port (default: 8080)
  DATABASE_PATH           SQLite database path; ":memory:" for dev
  LOG_LEVEL               zerolog level (default: info)
  AUDIT_ENABLED           run the periodic index audit (default: true)
  AUDIT_SCHEDULE          cron spec for the audit (default: @every 1h)
  CORS_ALLOWED_ORIGINS    comma-separated origins

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (SERVER_SHUTDOWN_TIMEOUT)
  3. Stop the audit scheduler and close the database
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/warp/roster-engine/api"
	"github.com/warp/roster-engine/config"
	"github.com/warp/roster-engine/roster"
	"github.com/warp/roster-engine/store/sqlite"
)

func main() {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := newLogger(cfg)

	// Storage
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("Failed to initialize database")
	}
	defer store.Close()

	// Build the in-memory engine from persisted state.
	shifts, allocations, err := store.LoadAll(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read persisted roster")
	}
	engine, err := roster.Load(shifts, allocations)
	if err != nil {
		log.Fatal().Err(err).Msg("Persisted roster is inconsistent")
	}
	log.Info().Int("shifts", len(shifts)).Int("allocations", len(allocations)).Msg("Roster loaded")

	// HTTP surface
	handler := api.NewHandler(store, engine, log)
	router := api.NewRouter(handler, cfg.CORS.AllowedOrigins)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Periodic audit re-derives every interval and repairs divergence.
	scheduler := cron.New()
	if cfg.Audit.Enabled {
		if _, err := scheduler.AddFunc(cfg.Audit.Schedule, func() {
			repaired, err := engine.Audit()
			if err != nil {
				log.Error().Err(err).Msg("Index audit failed")
				return
			}
			if len(repaired) > 0 {
				log.Warn().Int("repaired", len(repaired)).Interface("allocations", repaired).
					Msg("Index audit repaired divergent intervals")
			} else {
				log.Debug().Msg("Index audit clean")
			}
		}); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.Audit.Schedule).Msg("Invalid audit schedule")
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("environment", cfg.Environment).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out = os.Stderr
	logger := zerolog.New(out)
	if cfg.Environment == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen})
	}
	return logger.Level(level).With().Timestamp().Logger()
}
