package plan

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/FACorreiaa/loci-food-search/internal/app/domain/filters"
	"github.com/FACorreiaa/loci-food-search/internal/app/models"
)

// ErrMissingUserLocation is the hard mapping failure for a NEARBY route
// without device coordinates. The orchestrator degrades it to a CLARIFY
// response.
var ErrMissingUserLocation = fmt.Errorf("nearby plan requires a user location")

var nearbySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"keyword":      {Type: genai.TypeString},
		"radiusMeters": {Type: genai.TypeInteger, Nullable: genai.Ptr(true)},
	},
	Required: []string{"keyword", "radiusMeters"},
}

type nearbyLLMOut struct {
	Keyword      string `json:"keyword"`
	RadiusMeters *int   `json:"radiusMeters"`
}

// MapNearby produces the NEARBY plan. The output center always equals the
// input user location; the model contributes only the keyword and an
// optional radius, and even those survive its failure.
func (m *Mapper) MapNearby(ctx context.Context, query string, intent *models.Intent, shared filters.Shared, userLocation *models.LatLng) (*models.NearbyPlan, error) {
	ctx, span := otel.Tracer("PlanMapper").Start(ctx, "MapNearby")
	defer span.End()

	if userLocation == nil {
		span.RecordError(ErrMissingUserLocation)
		span.SetStatus(codes.Error, "no user location")
		return nil, ErrMissingUserLocation
	}

	plan := &models.NearbyPlan{
		Center:           *userLocation,
		ProviderLanguage: shared.ProviderLanguage,
		RegionCode:       shared.RegionCode,
		Keyword:          keywordFor(intent, query),
	}
	if r, ok := extractRadius(intent, query); ok {
		plan.RadiusMeters = r
	} else {
		plan.RadiusMeters = defaultNearbyRadius
	}

	var out nearbyLLMOut
	if err := m.generate(ctx, m.nearbyPrompt(query, intent), nearbySchema, &out); err != nil {
		span.RecordError(err)
		m.logger.Warn("nearby mapper falling back to deterministic plan", zap.Error(err))
		span.SetStatus(codes.Ok, "deterministic plan")
		return plan, nil
	}

	if kw := strings.TrimSpace(out.Keyword); kw != "" {
		plan.Keyword = kw
	}
	// A model radius only applies when the query carried no explicit one.
	if _, explicit := extractRadius(intent, query); !explicit && out.RadiusMeters != nil && *out.RadiusMeters > 0 {
		plan.RadiusMeters = clampRadius(*out.RadiusMeters)
	}

	span.SetStatus(codes.Ok, "plan built")
	return plan, nil
}

func (m *Mapper) nearbyPrompt(query string, intent *models.Intent) string {
	var b strings.Builder
	b.WriteString(`Extract the search keyword for a nearby places lookup.
The keyword is the food concept only, in the user's language; strip location
phrases like "near me". Never output coordinates.
Return radiusMeters only when the query states a literal distance; otherwise null.
`)
	if intent.CuisineKey != "" {
		fmt.Fprintf(&b, "\nCuisine hint: %s\n", intent.CuisineKey)
	}
	fmt.Fprintf(&b, "\nQuery: %q\n", query)
	return b.String()
}
