package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-food-search/internal/app/ai"
	"github.com/FACorreiaa/loci-food-search/internal/app/domain/chatback"
	"github.com/FACorreiaa/loci-food-search/internal/app/domain/gate"
	"github.com/FACorreiaa/loci-food-search/internal/app/domain/grouping"
	"github.com/FACorreiaa/loci-food-search/internal/app/domain/intent"
	"github.com/FACorreiaa/loci-food-search/internal/app/domain/places"
	"github.com/FACorreiaa/loci-food-search/internal/app/domain/plan"
	"github.com/FACorreiaa/loci-food-search/internal/app/domain/resolve"
	"github.com/FACorreiaa/loci-food-search/internal/app/domain/rse"
	"github.com/FACorreiaa/loci-food-search/internal/app/domain/search"
	"github.com/FACorreiaa/loci-food-search/internal/app/jobs"
	"github.com/FACorreiaa/loci-food-search/internal/app/session"
	"github.com/FACorreiaa/loci-food-search/internal/pkg/config"
)

// Server holds the dependencies for the HTTP server
type Server struct {
	cfg          *config.Config
	logger       *zap.Logger
	router       http.Handler
	jobStore     jobs.Store
	guardRedis   *redis.Client
	orchestrator *search.Orchestrator
	handler      *search.Handler
}

// New creates a new Server instance with all dependencies
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logger,
	}

	llm, err := s.setupLLM(ctx)
	if err != nil {
		return nil, err
	}

	provider := places.NewGoogleClient(cfg.PlacesAPIKey, logger)
	geocoder := resolve.NewCachedGeocoder(provider, cfg.GeocodeCacheTTL, logger)

	intents, err := intent.NewService(llm, logger, cfg.LLM.IntentTimeout, cfg.LLM.IntentBackoff)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize intent service: %w", err)
	}

	sessions, err := session.NewStore(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}

	s.jobStore = jobs.NewStore(ctx, cfg, logger)

	guard := search.NewCacheGuard(cfg.CacheGuardTTL, logger)
	if cfg.Redis.Enabled {
		if opt, err := redis.ParseURL(cfg.Redis.URL); err == nil {
			s.guardRedis = redis.NewClient(opt)
			guard = guard.WithRemote(s.guardRedis, cfg.CacheGuardTimeout)
			logger.Info("cache guard remote tier enabled")
		} else {
			logger.Warn("invalid redis URL, cache guard stays in-memory", zap.Error(err))
		}
	}

	var deepGate *gate.DeepGate
	if llm != nil {
		deepGate = gate.NewDeepGate(llm)
	}

	s.orchestrator = search.NewOrchestrator(search.OrchestratorDeps{
		Store:    s.jobStore,
		Sessions: sessions,
		Gate:     gate.New(logger),
		DeepGate: deepGate,
		Intents:  intents,
		Mapper:   plan.NewMapper(llm, logger, cfg.LLM.MapperTimeout),
		Executor: places.NewExecutor(provider, geocoder, logger),
		Geocoder: geocoder,
		Guard:    guard,
		Grouper:  grouping.New(cfg.StreetSearch.ExactRadiusMeters, cfg.StreetSearch.NearbyRadiusMeters, cfg.StreetSearch.MinExactResults, cfg.StreetSearch.MinNearbyResults, logger),
		Engine:   rse.New(logger),
		Chat:     chatback.New(llm, logger, cfg.LLM.ChatTimeout),
		Config:   cfg,
		Logger:   logger,
	})
	s.handler = search.NewHandler(s.orchestrator, logger)

	return s, nil
}

// setupLLM builds the Gemini client. A missing key is not fatal: every LLM
// stage has a deterministic fallback, so the service starts degraded.
func (s *Server) setupLLM(ctx context.Context) (ai.Client, error) {
	if s.cfg.LLM.APIKey == "" {
		s.logger.Warn("GEMINI_API_KEY not set, running with deterministic fallbacks only")
		return nil, nil
	}
	client, err := ai.NewGeminiClient(ctx, s.cfg.LLM.APIKey, s.cfg.LLM.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}
	s.logger.Info("Gemini client initialized", zap.String("model", s.cfg.LLM.Model))
	return client, nil
}

// HTTPServer creates and configures the HTTP server
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         ":" + s.cfg.ServerPort,
		Handler:      s.router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// SetRouter sets the HTTP router/handler
func (s *Server) SetRouter(router http.Handler) {
	s.router = router
}

// Handler returns the search HTTP handler
func (s *Server) Handler() *search.Handler {
	return s.handler
}

// Orchestrator returns the search pipeline orchestrator
func (s *Server) Orchestrator() *search.Orchestrator {
	return s.orchestrator
}

// GetLogger returns the logger instance
func (s *Server) GetLogger() *zap.Logger {
	return s.logger
}

// GetConfig returns the configuration
func (s *Server) GetConfig() *config.Config {
	return s.cfg
}

// Close closes all server resources
func (s *Server) Close() {
	if s.jobStore != nil {
		if err := s.jobStore.Close(); err != nil {
			s.logger.Warn("job store close failed", zap.Error(err))
		}
	}
	if s.guardRedis != nil {
		if err := s.guardRedis.Close(); err != nil {
			s.logger.Warn("cache guard redis close failed", zap.Error(err))
		}
	}
}
