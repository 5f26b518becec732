/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the contract ledger server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Configure structured logging (slog + tint)
  3. Initialize SQLite store
  4. Create API handler with dependencies
  5. Start the closure scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port                HTTP server port (default: 8080)
  -db                  SQLite database path (default: contracts.db)
                       Use ":memory:" for in-memory database
  -sync-workers        Bulk sync worker pool size (default: 4)
  -scheduler-interval  Closure scheduler check interval (default: 1h, 0 disables)
  -log-level           debug|info|warn|error (default: info)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/contracts.db"

  # Run with in-memory database, no scheduler
  ./server -db=":memory:" -scheduler-interval=0

SEE ALSO:
  - api/server.go: Router configuration
  - api/batch.go: Scheduler and bulk sync
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/warp/contract-ledger/api"
	"github.com/warp/contract-ledger/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "contracts.db", "SQLite database path")
	syncWorkers := flag.Int("sync-workers", 4, "bulk sync worker pool size")
	schedulerInterval := flag.Duration("scheduler-interval", time.Hour, "closure scheduler interval (0 disables)")
	logLevel := flag.String("log-level", "info", "log level: debug|info|warn|error")
	flag.Parse()

	log := newLogger(*logLevel)

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Initialize handler. No tracker syncer is wired here: consumption
	// figures arrive through POST /api/metrics until one is configured.
	handler := api.NewHandler(store, nil, log)
	handler.Batch.Workers = *syncWorkers

	// Closure scheduler
	scheduler := api.NewClosureScheduler(handler.Selector, log)
	if *schedulerInterval > 0 {
		scheduler.CheckInterval = *schedulerInterval
	} else {
		scheduler.Enabled = false
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server starting", "addr", fmt.Sprintf("http://localhost:%d", *port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      lvl,
		TimeFormat: time.TimeOnly,
	}))
}
