package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/loci-food-search/internal/app/models"
)

func intPtr(n int) *int { return &n }

func TestResolveSearchMode(t *testing.T) {
	tests := []struct {
		name   string
		intent models.Intent
		gps    bool
		want   SearchMode
		reason string
	}{
		{
			"no food anchor",
			models.Intent{LocationAnchor: models.LocationAnchor{Present: true}},
			true, ModeClarify, "no_food_anchor",
		},
		{
			"explicit location",
			models.Intent{
				FoodAnchor:     models.FoodAnchor{Present: true},
				LocationAnchor: models.LocationAnchor{Present: true, Type: models.AnchorCity},
			},
			false, ModeFull, "explicit_location",
		},
		{
			"near me with gps",
			models.Intent{FoodAnchor: models.FoodAnchor{Present: true}, NearMe: true},
			true, ModeAssisted, "near_me_with_gps",
		},
		{
			"near me without gps",
			models.Intent{FoodAnchor: models.FoodAnchor{Present: true}, NearMe: true},
			false, ModeClarify, "near_me_without_gps",
		},
		{
			"no location at all",
			models.Intent{FoodAnchor: models.FoodAnchor{Present: true}},
			true, ModeClarify, "no_location",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveSearchMode(&tt.intent, tt.gps)
			assert.Equal(t, tt.want, got.Mode)
			assert.Equal(t, tt.reason, got.Reason)
		})
	}
}

func TestResolveCenterGPSWins(t *testing.T) {
	gps := &models.LatLng{Lat: 32.08, Lng: 34.78}
	intent := &models.Intent{
		NearMe:         true,
		LocationAnchor: models.LocationAnchor{Present: true, Text: "tel aviv"},
	}
	geocode := func(_ context.Context, _ string) (*models.LatLng, error) {
		t.Fatal("geocode must not be called when GPS covers a near-me query")
		return nil, nil
	}

	got := ResolveCenter(context.Background(), intent, gps, geocode)
	assert.Equal(t, SourceGPS, got.Source)
	assert.Equal(t, gps, got.Center)
}

func TestResolveCenterGeocodesAnchor(t *testing.T) {
	loc := &models.LatLng{Lat: 31.77, Lng: 35.21}
	intent := &models.Intent{
		LocationAnchor: models.LocationAnchor{Present: true, Text: "jerusalem", Type: models.AnchorCity},
	}
	geocode := func(_ context.Context, query string) (*models.LatLng, error) {
		assert.Equal(t, "jerusalem", query)
		return loc, nil
	}

	got := ResolveCenter(context.Background(), intent, nil, geocode)
	require.Equal(t, SourceGeocoded, got.Source)
	assert.Equal(t, loc, got.Center)
}

func TestResolveCenterGeocodeFailureDegrades(t *testing.T) {
	intent := &models.Intent{
		LocationAnchor: models.LocationAnchor{Present: true, Text: "nowhere"},
	}
	geocode := func(_ context.Context, _ string) (*models.LatLng, error) {
		return nil, errors.New("zero results")
	}

	got := ResolveCenter(context.Background(), intent, nil, geocode)
	assert.Equal(t, SourceUnknown, got.Source)
	assert.Nil(t, got.Center)
}

func TestResolveRadiusMeters(t *testing.T) {
	tests := []struct {
		name   string
		intent models.Intent
		want   int
		source RadiusSource
	}{
		{
			"explicit distance wins over near me",
			models.Intent{
				ExplicitDistance: models.ExplicitDistance{Meters: intPtr(200)},
				NearMe:           true,
			},
			200, RadiusExplicit,
		},
		{
			"intent radius field",
			models.Intent{RadiusMeters: intPtr(750)},
			750, RadiusExplicit,
		},
		{
			"near me default",
			models.Intent{NearMe: true},
			1000, RadiusNearMe,
		},
		{
			"city anchor",
			models.Intent{LocationAnchor: models.LocationAnchor{Present: true, Type: models.AnchorCity}},
			2000, RadiusAnchor,
		},
		{
			"street anchor",
			models.Intent{LocationAnchor: models.LocationAnchor{Present: true, Type: models.AnchorStreet}},
			200, RadiusAnchor,
		},
		{
			"poi anchor",
			models.Intent{LocationAnchor: models.LocationAnchor{Present: true, Type: models.AnchorPOI}},
			1000, RadiusAnchor,
		},
		{
			"fallback",
			models.Intent{},
			1000, RadiusFallback,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveRadiusMeters(&tt.intent)
			assert.Equal(t, tt.want, got.Meters)
			assert.Equal(t, tt.source, got.Source)
		})
	}
}
