package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-food-search/internal/app/models"
	"github.com/FACorreiaa/loci-food-search/internal/app/observability/metrics"
	"github.com/FACorreiaa/loci-food-search/internal/pkg/cache"
)

// CacheGuard fronts the provider executor with a deterministic result cache.
// Every outcome is a single structured event; a guard problem is never an
// error, the provider just executes.
type CacheGuard struct {
	results *cache.ResultCache[[]models.PlaceResult]
	ttl     time.Duration
	logger  *zap.Logger

	// remote is an optional shared tier consulted on a local miss. Remote
	// reads are bounded by remoteTimeout; any remote failure is a miss.
	remote        *redis.Client
	remoteTimeout time.Duration
}

const remoteGuardPrefix = "search:guard:"

func NewCacheGuard(ttl time.Duration, logger *zap.Logger) *CacheGuard {
	return &CacheGuard{
		results: cache.NewResultCache[[]models.PlaceResult](ttl, "provider_results", logger),
		ttl:     ttl,
		logger:  logger,
	}
}

// WithRemote layers a shared Redis tier under the in-process cache so
// replicas reuse each other's provider fetches.
func (g *CacheGuard) WithRemote(client *redis.Client, timeout time.Duration) *CacheGuard {
	g.remote = client
	g.remoteTimeout = timeout
	return g
}

// Key derives the deterministic cache key for a plan. Coordinates are
// bucketed so jittery GPS readings still hit.
func (g *CacheGuard) Key(plan *models.ProviderPlan) string {
	switch plan.Route {
	case models.RouteTextSearch:
		p := plan.TextSearch
		return fmt.Sprintf("text:%s:%s:%s:%s",
			normalizeQueryText(p.TextQuery), p.RegionCode, p.ProviderLanguage, biasBucket(p.Bias))
	case models.RouteNearby:
		p := plan.Nearby
		return fmt.Sprintf("nearby:%s:%s:%s:%d:%s",
			normalizeQueryText(p.Keyword), coordBucket(p.Center.Lat), coordBucket(p.Center.Lng),
			radiusBucket(p.RadiusMeters), p.RegionCode)
	case models.RouteLandmark:
		p := plan.Landmark
		category := "any"
		if p.CuisineKey != nil {
			category = *p.CuisineKey
		}
		if p.LandmarkID != nil {
			return fmt.Sprintf("landmark_search:%s:%d:%s:%s",
				*p.LandmarkID, radiusBucket(p.RadiusMeters), category, regionOf(plan))
		}
		return fmt.Sprintf("landmark_search:geocode:%s:%d:%s",
			normalizeQueryText(p.GeocodeQuery), radiusBucket(p.RadiusMeters), category)
	}
	return ""
}

// Lookup returns the cached result set for the plan, if any. The local tier
// is consulted first, then the optional remote tier within its timeout.
func (g *CacheGuard) Lookup(ctx context.Context, plan *models.ProviderPlan) ([]models.PlaceResult, bool) {
	key := g.Key(plan)
	if key == "" {
		return nil, false
	}
	results, hit := g.results.Get(key)
	if !hit && g.remote != nil {
		if remote, ok := g.remoteGet(ctx, key); ok {
			g.results.Set(key, remote)
			results, hit = remote, true
		}
	}
	g.logger.Info("cache_guard",
		zap.String("key", key),
		zap.Bool("hit", hit))
	if metrics.Enabled() {
		if hit {
			metrics.Get().CacheGuardHitsTotal.Add(context.Background(), 1)
		} else {
			metrics.Get().CacheGuardMissesTotal.Add(context.Background(), 1)
		}
	}
	if !hit {
		return nil, false
	}
	// Callers receive a copy; published responses are never mutated back
	// into the cache.
	out := make([]models.PlaceResult, len(results))
	copy(out, results)
	return out, true
}

// Store caches the executed result set under the plan's key.
func (g *CacheGuard) Store(ctx context.Context, plan *models.ProviderPlan, results []models.PlaceResult) {
	key := g.Key(plan)
	if key == "" {
		return
	}
	stored := make([]models.PlaceResult, len(results))
	copy(stored, results)
	g.results.Set(key, stored)
	if g.remote != nil {
		g.remoteSet(ctx, key, stored)
	}
}

func (g *CacheGuard) remoteGet(ctx context.Context, key string) ([]models.PlaceResult, bool) {
	ctx, cancel := context.WithTimeout(ctx, g.remoteTimeout)
	defer cancel()
	data, err := g.remote.Get(ctx, remoteGuardPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			g.logger.Warn("cache guard remote read failed", zap.Error(err))
		}
		return nil, false
	}
	var results []models.PlaceResult
	if err := json.Unmarshal(data, &results); err != nil {
		g.logger.Warn("cache guard remote entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return results, true
}

func (g *CacheGuard) remoteSet(ctx context.Context, key string, results []models.PlaceResult) {
	data, err := json.Marshal(results)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, g.remoteTimeout)
	defer cancel()
	if err := g.remote.Set(ctx, remoteGuardPrefix+key, data, g.ttl).Err(); err != nil {
		g.logger.Warn("cache guard remote write failed", zap.Error(err))
	}
}

func normalizeQueryText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// coordBucket rounds to ~100 m so adjacent GPS fixes share a key.
func coordBucket(v float64) string {
	return fmt.Sprintf("%.3f", v)
}

func radiusBucket(r int) int {
	if r <= 0 {
		return 0
	}
	return ((r + 99) / 100) * 100
}

func biasBucket(b *models.Bias) string {
	if b == nil {
		return "none"
	}
	return fmt.Sprintf("%s,%s,%d", coordBucket(b.Center.Lat), coordBucket(b.Center.Lng), radiusBucket(b.RadiusMeters))
}

func regionOf(plan *models.ProviderPlan) string {
	switch {
	case plan.TextSearch != nil:
		return plan.TextSearch.RegionCode
	case plan.Nearby != nil:
		return plan.Nearby.RegionCode
	case plan.Landmark != nil && plan.Landmark.RegionCode != "":
		return plan.Landmark.RegionCode
	}
	return "unknown"
}
