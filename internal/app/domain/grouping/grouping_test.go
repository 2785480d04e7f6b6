package grouping

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-food-search/internal/app/models"
)

// Anchor at Allenby St, Tel Aviv. Offsets in latitude: 0.001° ≈ 111 m.
var anchor = models.LatLng{Lat: 32.0700, Lng: 34.7700}

func placeAt(id string, latOffset float64) models.PlaceResult {
	return models.PlaceResult{
		ID:       id,
		Name:     id,
		Location: models.LatLng{Lat: anchor.Lat + latOffset, Lng: anchor.Lng},
	}
}

func TestIsStreetQuery(t *testing.T) {
	tests := []struct {
		name   string
		intent models.Intent
		query  string
		want   bool
	}{
		{"anchor type street", models.Intent{LocationAnchor: models.LocationAnchor{Type: models.AnchorStreet}}, "pizza", true},
		{"english street", models.Intent{}, "pizza on allenby street", true},
		{"english abbreviation", models.Intent{}, "sushi on dizengoff st.", true},
		{"hebrew street", models.Intent{}, "פיצה ברחוב אלנבי", true},
		{"hebrew abbreviation", models.Intent{}, "קפה ברח' הרצל", true},
		{"french rue", models.Intent{}, "boulangerie rue de rivoli", true},
		{"spanish calle", models.Intent{}, "tapas en la calle mayor", true},
		{"arabic street", models.Intent{}, "فلافل في شارع يافا", true},
		{"russian street", models.Intent{}, "пицца на улица арбат", true},
		{"city query", models.Intent{LocationAnchor: models.LocationAnchor{Type: models.AnchorCity}}, "pizza in tel aviv", false},
		{"no street words", models.Intent{}, "best pizza", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsStreetQuery(&tt.intent, tt.query))
		})
	}
}

func TestRunSplitsGroupsByDistance(t *testing.T) {
	g := New(200, 400, 1, 1, zap.NewNop())

	near := placeAt("near", 0.0005)  // ~55 m
	mid := placeAt("mid", 0.0028)    // ~310 m
	far := placeAt("far", 0.0050)    // ~550 m, outside both radii

	fetch := func(_ context.Context, radius int) ([]models.PlaceResult, error) {
		if radius == 200 {
			return []models.PlaceResult{near}, nil
		}
		return []models.PlaceResult{near, mid, far}, nil
	}

	out, err := g.Run(context.Background(), anchor, models.LangHebrew, fetch)
	require.NoError(t, err)

	// Flat union is deduplicated and bounded by the nearby radius.
	assert.Len(t, out.Results, 2)
	for _, r := range out.Results {
		assert.NotEqual(t, "far", r.ID)
	}

	require.Len(t, out.Groups, 2)
	assert.Equal(t, models.GroupExact, out.Groups[0].Kind)
	assert.Equal(t, "ברחוב עצמו", out.Groups[0].Label)
	require.Len(t, out.Groups[0].Results, 1)
	assert.Equal(t, "near", out.Groups[0].Results[0].ID)

	assert.Equal(t, models.GroupNearby, out.Groups[1].Kind)
	require.Len(t, out.Groups[1].Results, 1)
	assert.Equal(t, "mid", out.Groups[1].Results[0].ID)

	require.NotNil(t, out.Groups[0].Results[0].DistanceMeters)
	assert.InDelta(t, 55, *out.Groups[0].Results[0].DistanceMeters, 15)
}

func TestRunDropsResultsBeyondNearbyRadius(t *testing.T) {
	g := New(200, 400, 1, 1, zap.NewNop())

	near := placeAt("near", 0.0005)
	far := placeAt("far", 0.0815) // ~9 km, the bias can leak these in

	fetch := func(_ context.Context, _ int) ([]models.PlaceResult, error) {
		return []models.PlaceResult{near, far}, nil
	}

	out, err := g.Run(context.Background(), anchor, models.LangEnglish, fetch)
	require.NoError(t, err)

	require.Len(t, out.Results, 1)
	assert.Equal(t, "near", out.Results[0].ID)
	assert.Equal(t, models.GroupExact, out.Results[0].GroupKind)
}

func TestRunOmitsEmptyGroups(t *testing.T) {
	g := New(200, 400, 1, 1, zap.NewNop())
	near := placeAt("near", 0.0005)

	fetch := func(_ context.Context, _ int) ([]models.PlaceResult, error) {
		return []models.PlaceResult{near}, nil
	}

	out, err := g.Run(context.Background(), anchor, models.LangEnglish, fetch)
	require.NoError(t, err)
	require.Len(t, out.Groups, 1)
	assert.Equal(t, models.GroupExact, out.Groups[0].Kind)
	assert.Equal(t, "On the street", out.Groups[0].Label)
}

func TestRunFetchesConcurrently(t *testing.T) {
	g := New(200, 400, 1, 1, zap.NewNop())

	var calls int32
	started := make(chan struct{})
	fetch := func(ctx context.Context, _ int) ([]models.PlaceResult, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			// First call blocks until the second has started.
			select {
			case <-started:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		} else {
			close(started)
		}
		return nil, nil
	}

	_, err := g.Run(context.Background(), anchor, models.LangEnglish, fetch)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRunPropagatesFetchError(t *testing.T) {
	g := New(200, 400, 1, 1, zap.NewNop())
	fetch := func(_ context.Context, _ int) ([]models.PlaceResult, error) {
		return nil, errors.New("provider down")
	}

	_, err := g.Run(context.Background(), anchor, models.LangEnglish, fetch)
	require.Error(t, err)
}

func TestGroupLabelFallsBackToEnglish(t *testing.T) {
	assert.Equal(t, "On the street", groupLabel(models.GroupExact, models.Language("pt")))
}
