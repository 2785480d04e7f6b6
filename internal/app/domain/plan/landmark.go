package plan

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/FACorreiaa/loci-food-search/internal/app/domain/filters"
	"github.com/FACorreiaa/loci-food-search/internal/app/models"
)

var landmarkSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"geocodeQuery": {Type: genai.TypeString},
		"afterGeocode": {
			Type: genai.TypeString,
			Enum: []string{"nearbySearch", "textSearchWithBias"},
		},
		"keyword": {Type: genai.TypeString, Nullable: genai.Ptr(true)},
	},
	Required: []string{"geocodeQuery", "afterGeocode", "keyword"},
}

type landmarkLLMOut struct {
	GeocodeQuery string  `json:"geocodeQuery"`
	AfterGeocode string  `json:"afterGeocode"`
	Keyword      *string `json:"keyword"`
}

// MapLandmark produces the LANDMARK plan. A registry hit with known
// coordinates skips the LLM entirely; a registry hit without them still
// normalizes the geocode query to the canonical name.
func (m *Mapper) MapLandmark(ctx context.Context, query string, intent *models.Intent, shared filters.Shared) *models.LandmarkPlan {
	ctx, span := otel.Tracer("PlanMapper").Start(ctx, "MapLandmark", trace.WithAttributes(
		attribute.Bool("has_landmark_text", intent.LandmarkText != nil),
	))
	defer span.End()

	landmarkText := query
	if intent.LandmarkText != nil {
		landmarkText = *intent.LandmarkText
	}

	plan := &models.LandmarkPlan{
		GeocodeQuery: landmarkText,
		AfterGeocode: models.AfterGeocodeNearby,
		RegionCode:   shared.RegionCode,
	}
	if r, ok := extractRadius(intent, query); ok {
		plan.RadiusMeters = r
	} else {
		plan.RadiusMeters = defaultLandmarkRadius
	}
	if intent.CuisineKey != "" {
		cuisine := intent.CuisineKey
		plan.CuisineKey = &cuisine
		plan.Keyword = &cuisine
	} else {
		kw := keywordFor(intent, query)
		plan.Keyword = &kw
	}

	if lm, ok := LookupLandmark(landmarkText); ok {
		id := lm.ID
		plan.LandmarkID = &id
		plan.GeocodeQuery = lm.PrimaryName
		if lm.KnownLatLng != nil {
			resolved := *lm.KnownLatLng
			plan.ResolvedLatLng = &resolved
			span.SetAttributes(attribute.String("landmark.id", lm.ID))
			span.SetStatus(codes.Ok, "registry hit with coordinates")
			return plan
		}
	}

	var out landmarkLLMOut
	if err := m.generate(ctx, m.landmarkPrompt(query, landmarkText, shared), landmarkSchema, &out); err != nil {
		span.RecordError(err)
		m.logger.Warn("landmark mapper falling back to deterministic plan", zap.Error(err))
		span.SetStatus(codes.Ok, "deterministic plan")
		return plan
	}

	if gq := strings.TrimSpace(out.GeocodeQuery); gq != "" && plan.LandmarkID == nil {
		plan.GeocodeQuery = gq
	}
	if out.AfterGeocode == string(models.AfterGeocodeTextWithBias) {
		plan.AfterGeocode = models.AfterGeocodeTextWithBias
	}
	if out.Keyword != nil && strings.TrimSpace(*out.Keyword) != "" {
		kw := strings.TrimSpace(*out.Keyword)
		plan.Keyword = &kw
	}

	span.SetStatus(codes.Ok, "plan built")
	return plan
}

func (m *Mapper) landmarkPrompt(query, landmarkText string, shared filters.Shared) string {
	var b strings.Builder
	b.WriteString(`Prepare a geocode query for a landmark-anchored food search.
geocodeQuery is the landmark name alone, disambiguated with its city when obvious.
afterGeocode is nearbySearch for a plain food request, textSearchWithBias when
the request has qualifiers better served by free-text search.
keyword is the food concept in the user's language, or null.
`)
	fmt.Fprintf(&b, "\nRegion: %s\nLandmark text: %q\nQuery: %q\n", shared.RegionCode, landmarkText, query)
	return b.String()
}
