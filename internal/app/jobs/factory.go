package jobs

import (
	"context"

	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-food-search/internal/pkg/config"
)

// NewStore builds the configured job store. When the Redis backend is
// enabled but fails to initialize, the factory degrades to the in-memory
// store instead of failing startup.
func NewStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) Store {
	if cfg.Redis.Enabled {
		store, err := NewRedisStore(ctx, cfg.Redis.URL, cfg.JobStore.PersistentTTL, logger)
		if err == nil {
			logger.Info("using redis job store", zap.Duration("ttl", cfg.JobStore.PersistentTTL))
			return store
		}
		logger.Warn("redis job store unavailable, falling back to memory", zap.Error(err))
	}
	logger.Info("using in-memory job store", zap.Duration("ttl", cfg.JobStore.MemoryTTL))
	store := NewMemoryStore(cfg.JobStore.MemoryTTL, logger)
	if cfg.JobStore.StaleRunning > 0 {
		store.staleRunning = cfg.JobStore.StaleRunning
	}
	return store
}
