package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kandev/orchestrator-worker/internal/common/config"
	"github.com/kandev/orchestrator-worker/internal/common/logger"
	"github.com/kandev/orchestrator-worker/internal/health"
	"github.com/kandev/orchestrator-worker/internal/worker"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logger
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetDefault(log)

	log.Info("starting orchestrator worker...")

	// 3. Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Build the worker
	w := worker.New(cfg, log)

	// 5. Register orchestrators and activities
	if err := registerWork(w); err != nil {
		log.Fatal("failed to register orchestrator work", zap.Error(err))
	}

	// 6. Start the worker (dials the sidecar, begins dispatching)
	if err := w.Start(ctx); err != nil {
		log.Fatal("failed to start worker", zap.Error(err))
	}

	// 7. Admin HTTP server
	router := health.NewRouter(w, log)
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Health.Host, cfg.Health.Port),
		Handler: router,
	}

	go func() {
		log.Info("admin HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("admin HTTP server failed", zap.Error(err))
		}
	}()

	// 8. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down orchestrator worker...")

	// 9. Graceful shutdown
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("admin HTTP server shutdown error", zap.Error(err))
	}

	if err := w.Stop(); err != nil {
		log.Error("worker stop error", zap.Error(err))
	}

	log.Info("orchestrator worker stopped")
}

// registerWork is where a deployment wires up its own orchestrator and
// activity functions. It's kept separate from main so a real deployment
// only has to replace this one function.
func registerWork(w *worker.Worker) error {
	return nil
}
