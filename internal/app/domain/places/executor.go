package places

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-food-search/internal/app/models"
)

const (
	maxPages   = 3
	maxResults = 20

	cityBiasRadiusMeters = 20000
)

// Geocoder resolves free text to coordinates. The production implementation
// wraps the provider client with a memoising cache.
type Geocoder interface {
	Geocode(ctx context.Context, query, regionCode string) (*models.LatLng, error)
}

// Executor runs a ProviderPlan against the places provider.
type Executor struct {
	client   Client
	geocoder Geocoder
	logger   *zap.Logger
}

func NewExecutor(client Client, geocoder Geocoder, logger *zap.Logger) *Executor {
	return &Executor{client: client, geocoder: geocoder, logger: logger}
}

// ExecOptions carry the shared-filter values the plan does not embed.
type ExecOptions struct {
	OpenNowOnly bool
	PriceLevels []string
}

// Execute dispatches on the plan tag. The returned slice preserves provider
// ranking order after dedup.
func (e *Executor) Execute(ctx context.Context, plan *models.ProviderPlan, opts ExecOptions) ([]models.PlaceResult, error) {
	ctx, span := otel.Tracer("PlacesExecutor").Start(ctx, "Execute", trace.WithAttributes(
		attribute.String("route", string(plan.Route)),
	))
	defer span.End()

	var (
		results []models.PlaceResult
		err     error
	)
	switch plan.Route {
	case models.RouteTextSearch:
		results, err = e.executeTextSearch(ctx, plan.TextSearch, opts)
	case models.RouteNearby:
		results, err = e.executeNearby(ctx, plan.Nearby, opts)
	case models.RouteLandmark:
		results, err = e.executeLandmark(ctx, plan.Landmark, opts)
	default:
		err = fmt.Errorf("executor: unsupported route %q", plan.Route)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "execution failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("results.count", len(results)))
	span.SetStatus(codes.Ok, "ok")
	return results, nil
}

// executeTextSearch paginates up to maxPages or maxResults unique places,
// whichever hits first, deduplicating by place id across pages. An empty
// RELAX_IF_EMPTY result set gets one widened retry with the location bias
// dropped.
func (e *Executor) executeTextSearch(ctx context.Context, plan *models.TextSearchPlan, opts ExecOptions) ([]models.PlaceResult, error) {
	req := TextSearchRequest{
		TextQuery:    plan.TextQuery,
		LanguageCode: plan.ProviderLanguage,
		RegionCode:   plan.RegionCode,
		Bias:         plan.Bias,
		OpenNow:      opts.OpenNowOnly,
		PriceLevels:  opts.PriceLevels,
	}
	// Bias deferred to execution time: a city-only plan is anchored on the
	// geocoded city center. An upstream bias is never overwritten.
	if req.Bias == nil && plan.CityText != nil {
		if loc, err := e.geocoder.Geocode(ctx, *plan.CityText, plan.RegionCode); err == nil && loc != nil {
			req.Bias = &models.Bias{Center: *loc, RadiusMeters: cityBiasRadiusMeters}
		} else if err != nil {
			e.logger.Warn("city geocode failed, searching without bias",
				zap.String("city", *plan.CityText), zap.Error(err))
		}
	}
	results, err := e.paginate(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 && plan.Strictness == models.RelaxIfEmpty && plan.Bias != nil {
		e.logger.Info("text search empty, widening without bias",
			zap.String("query", plan.TextQuery))
		req.Bias = nil
		return e.paginate(ctx, req)
	}
	return results, nil
}

func (e *Executor) paginate(ctx context.Context, req TextSearchRequest) ([]models.PlaceResult, error) {
	seen := make(map[string]bool)
	var results []models.PlaceResult

	for page := 0; page < maxPages; page++ {
		resp, err := e.client.TextSearch(ctx, req)
		if err != nil {
			// Results already fetched are worth keeping on a later-page error.
			if page > 0 {
				e.logger.Warn("pagination aborted, returning partial results",
					zap.Int("page", page), zap.Error(err))
				return results, nil
			}
			return nil, err
		}
		for _, raw := range resp.Places {
			if seen[raw.ID] {
				continue
			}
			seen[raw.ID] = true
			results = append(results, Normalize(raw))
			if len(results) >= maxResults {
				return results, nil
			}
		}
		if resp.NextPageToken == "" {
			break
		}
		req.PageToken = resp.NextPageToken
	}
	return results, nil
}

func (e *Executor) executeNearby(ctx context.Context, plan *models.NearbyPlan, opts ExecOptions) ([]models.PlaceResult, error) {
	resp, err := e.client.NearbySearch(ctx, NearbySearchRequest{
		Center:       plan.Center,
		RadiusMeters: plan.RadiusMeters,
		Keyword:      plan.Keyword,
		LanguageCode: plan.ProviderLanguage,
		RegionCode:   plan.RegionCode,
		OpenNow:      opts.OpenNowOnly,
	})
	if err != nil {
		return nil, err
	}
	return e.withinRadius(dedupNormalize(resp.Places), plan.Center, plan.RadiusMeters), nil
}

func (e *Executor) executeLandmark(ctx context.Context, plan *models.LandmarkPlan, opts ExecOptions) ([]models.PlaceResult, error) {
	center := plan.ResolvedLatLng
	if center == nil {
		resolved, err := e.geocoder.Geocode(ctx, plan.GeocodeQuery, plan.RegionCode)
		if err != nil {
			return nil, fmt.Errorf("landmark geocode: %w", err)
		}
		center = resolved
	}

	keyword := ""
	if plan.Keyword != nil {
		keyword = *plan.Keyword
	}

	if plan.AfterGeocode == models.AfterGeocodeTextWithBias {
		req := TextSearchRequest{
			TextQuery:    keyword,
			Bias:         &models.Bias{Center: *center, RadiusMeters: plan.RadiusMeters},
			OpenNow:      opts.OpenNowOnly,
			PriceLevels:  opts.PriceLevels,
		}
		results, err := e.paginate(ctx, req)
		if err != nil {
			return nil, err
		}
		return e.withinRadius(results, *center, plan.RadiusMeters), nil
	}

	resp, err := e.client.NearbySearch(ctx, NearbySearchRequest{
		Center:       *center,
		RadiusMeters: plan.RadiusMeters,
		Keyword:      keyword,
		OpenNow:      opts.OpenNowOnly,
	})
	if err != nil {
		return nil, err
	}
	return e.withinRadius(dedupNormalize(resp.Places), *center, plan.RadiusMeters), nil
}

// withinRadius drops results farther than radiusMeters from the anchor. The
// provider treats the radius as a ranking bias, not a boundary, so anchored
// routes re-check the distance on every place it returns.
func (e *Executor) withinRadius(results []models.PlaceResult, center models.LatLng, radiusMeters int) []models.PlaceResult {
	anchor := orb.Point{center.Lng, center.Lat}
	kept := results[:0]
	for _, r := range results {
		d := geo.DistanceHaversine(anchor, orb.Point{r.Location.Lng, r.Location.Lat})
		if d > float64(radiusMeters) {
			continue
		}
		kept = append(kept, r)
	}
	if dropped := len(results) - len(kept); dropped > 0 {
		e.logger.Debug("dropped results outside search radius",
			zap.Int("dropped", dropped), zap.Int("radius_meters", radiusMeters))
	}
	return kept
}

func dedupNormalize(raw []RawPlace) []models.PlaceResult {
	seen := make(map[string]bool)
	var results []models.PlaceResult
	for _, r := range raw {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		results = append(results, Normalize(r))
		if len(results) >= maxResults {
			break
		}
	}
	return results
}
