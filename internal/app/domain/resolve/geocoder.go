package resolve

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-food-search/internal/app/domain/places"
	"github.com/FACorreiaa/loci-food-search/internal/app/models"
)

// CachedGeocoder memoises geocode lookups. City and landmark coordinates are
// effectively immutable, so a generous TTL is safe.
type CachedGeocoder struct {
	client places.Client
	cache  *gocache.Cache
	logger *zap.Logger
}

func NewCachedGeocoder(client places.Client, ttl time.Duration, logger *zap.Logger) *CachedGeocoder {
	return &CachedGeocoder{
		client: client,
		cache:  gocache.New(ttl, 2*ttl),
		logger: logger,
	}
}

func (g *CachedGeocoder) Geocode(ctx context.Context, query, regionCode string) (*models.LatLng, error) {
	key := fmt.Sprintf("geocode:%s:%s", strings.ToLower(strings.TrimSpace(query)), regionCode)
	if cached, ok := g.cache.Get(key); ok {
		loc := cached.(models.LatLng)
		return &loc, nil
	}

	loc, err := g.client.Geocode(ctx, query, regionCode)
	if err != nil {
		return nil, err
	}
	g.cache.Set(key, *loc, gocache.DefaultExpiration)
	g.logger.Debug("geocode cached", zap.String("query", query))
	return loc, nil
}

// Func adapts the geocoder to the resolver callback shape with a fixed
// region.
func (g *CachedGeocoder) Func(regionCode string) GeocodeFunc {
	return func(ctx context.Context, query string) (*models.LatLng, error) {
		return g.Geocode(ctx, query, regionCode)
	}
}
