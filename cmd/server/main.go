/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the cash-position risk monitor server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize the SQLite audit store (or in-memory with -db="")
  3. Create API handler with dependencies
  4. Configure HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port       HTTP server port (default: 8080)
  -db         SQLite audit database path (default: cashwatch.db)
              Use ":memory:" for in-memory SQLite, or "" to skip SQLite
              entirely and keep the audit trail in process memory
  -token      Shared API token; empty disables the gate
              (CASHWATCH_TOKEN env overrides an empty flag)
  -log-format Log format: console or json (default: console)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the audit store
  4. Exit

EXAMPLES:
  # Run with file-backed audit trail
  ./server -db="./data/cashwatch.db"

  # Run gated on a shared token
  ./server -token="$CASHWATCH_TOKEN"

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Audit store implementation
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

	"github.com/postnet/cashwatch/api"
	"github.com/postnet/cashwatch/store"
	"github.com/postnet/cashwatch/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "cashwatch.db", "SQLite audit database path (empty for in-memory)")
	token := flag.String("token", "", "shared API token (empty disables the gate)")
	logFormat := flag.String("log-format", "console", "log format: console or json")
	flag.Parse()

	logger := newLogger(*logFormat)
	slog.SetDefault(logger)

	if *token == "" {
		*token = os.Getenv("CASHWATCH_TOKEN")
	}
	if *token == "" {
		logger.Warn("no API token configured; the gate is open")
	}

	// Initialize audit store
	var audit store.AuditStore
	if *dbPath == "" {
		audit = store.NewMemory()
	} else {
		s, err := sqlite.New(*dbPath)
		if err != nil {
			logger.Error("failed to initialize audit database", "error", err)
			os.Exit(1)
		}
		defer s.Close()
		audit = s
	}

	// Initialize handler and router
	handler := api.NewHandler(audit, logger)
	router := api.NewRouter(handler, *token)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", "addr", fmt.Sprintf("http://localhost:%d", *port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func newLogger(format string) *slog.Logger {
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}
