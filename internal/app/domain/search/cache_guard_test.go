package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-food-search/internal/app/models"
)

func strPtr(s string) *string { return &s }

func TestCacheGuardKeyFormats(t *testing.T) {
	g := NewCacheGuard(time.Minute, zap.NewNop())

	tests := []struct {
		name string
		plan *models.ProviderPlan
		want string
	}{
		{
			"text search without bias",
			&models.ProviderPlan{
				Route: models.RouteTextSearch,
				TextSearch: &models.TextSearchPlan{
					TextQuery:        "  Pizza   in Tel Aviv ",
					RegionCode:       "IL",
					ProviderLanguage: "he",
				},
			},
			"text:pizza in tel aviv:IL:he:none",
		},
		{
			"text search with bias",
			&models.ProviderPlan{
				Route: models.RouteTextSearch,
				TextSearch: &models.TextSearchPlan{
					TextQuery:        "sushi",
					RegionCode:       "IL",
					ProviderLanguage: "en",
					Bias:             &models.Bias{Center: models.LatLng{Lat: 32.0801, Lng: 34.7806}, RadiusMeters: 420},
				},
			},
			"text:sushi:IL:en:32.080,34.781,500",
		},
		{
			"nearby",
			&models.ProviderPlan{
				Route: models.RouteNearby,
				Nearby: &models.NearbyPlan{
					Keyword:      "pizza",
					Center:       models.LatLng{Lat: 32.08, Lng: 34.78},
					RadiusMeters: 500,
					RegionCode:   "IL",
				},
			},
			"nearby:pizza:32.080:34.780:500:IL",
		},
		{
			"landmark by registry id",
			&models.ProviderPlan{
				Route: models.RouteLandmark,
				Landmark: &models.LandmarkPlan{
					LandmarkID:   strPtr("dizengoff_center"),
					RadiusMeters: 1000,
					CuisineKey:   strPtr("sushi"),
					RegionCode:   "IL",
				},
			},
			"landmark_search:dizengoff_center:1000:sushi:IL",
		},
		{
			"landmark by geocode query",
			&models.ProviderPlan{
				Route: models.RouteLandmark,
				Landmark: &models.LandmarkPlan{
					GeocodeQuery: "Some Mall Haifa",
					RadiusMeters: 1000,
				},
			},
			"landmark_search:geocode:some mall haifa:1000:any",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Key(tt.plan))
		})
	}
}

func TestCacheGuardJitteredCoordinatesShareKey(t *testing.T) {
	g := NewCacheGuard(time.Minute, zap.NewNop())

	planAt := func(lat, lng float64) *models.ProviderPlan {
		return &models.ProviderPlan{
			Route: models.RouteNearby,
			Nearby: &models.NearbyPlan{
				Keyword:      "pizza",
				Center:       models.LatLng{Lat: lat, Lng: lng},
				RadiusMeters: 500,
				RegionCode:   "IL",
			},
		}
	}
	assert.Equal(t, g.Key(planAt(32.08012, 34.78019)), g.Key(planAt(32.08049, 34.77951)))
}

func TestCacheGuardRoundTrip(t *testing.T) {
	g := NewCacheGuard(time.Minute, zap.NewNop())
	p := &models.ProviderPlan{
		Route:  models.RouteNearby,
		Nearby: &models.NearbyPlan{Keyword: "pizza", Center: models.LatLng{Lat: 32.08, Lng: 34.78}, RadiusMeters: 500, RegionCode: "IL"},
	}

	ctx := context.Background()
	_, hit := g.Lookup(ctx, p)
	assert.False(t, hit)

	stored := []models.PlaceResult{{ID: "a", Name: "Pizzeria"}}
	g.Store(ctx, p, stored)

	got, hit := g.Lookup(ctx, p)
	require.True(t, hit)
	require.Len(t, got, 1)

	// Mutating the returned slice must not leak into the cache.
	got[0].Name = "changed"
	again, hit := g.Lookup(ctx, p)
	require.True(t, hit)
	assert.Equal(t, "Pizzeria", again[0].Name)
}

func TestIdempotencyKeyStability(t *testing.T) {
	loc := &models.LatLng{Lat: 32.0801, Lng: 34.7804}

	base := IdempotencyKey("s1", "pizza in tel aviv", "async", loc)
	assert.Equal(t, base, IdempotencyKey("s1", "  Pizza   IN tel aviv ", "async", loc))

	jittered := &models.LatLng{Lat: 32.08012, Lng: 34.78049}
	assert.Equal(t, base, IdempotencyKey("s1", "pizza in tel aviv", "async", jittered))

	assert.NotEqual(t, base, IdempotencyKey("s2", "pizza in tel aviv", "async", loc))
	assert.NotEqual(t, base, IdempotencyKey("s1", "sushi in tel aviv", "async", loc))
	assert.NotEqual(t, base, IdempotencyKey("s1", "pizza in tel aviv", "async", nil))
}
