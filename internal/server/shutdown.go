package server

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-food-search/internal/app/domain/search"
	"github.com/FACorreiaa/loci-food-search/internal/pkg/config"
)

// GracefulShutdown waits for SIGINT/SIGTERM, stops accepting new requests,
// cancels in-flight search jobs, and sweeps RUNNING jobs to a terminal state
// so no poller hangs on a dead job.
func GracefulShutdown(srv *http.Server, orch *search.Orchestrator, cfg *config.Config, logger *zap.Logger, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info("Shutting down gracefully, press Ctrl+C again to force")

	stop() // Allow Ctrl+C to force shutdown

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	orch.Shutdown(shutdownCtx)

	logger.Info("Server exiting")

	done <- true
}
