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

var textSearchSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"textQuery": {Type: genai.TypeString},
		"bias": {
			Type:     genai.TypeObject,
			Nullable: genai.Ptr(true),
			Properties: map[string]*genai.Schema{
				"lat":          {Type: genai.TypeNumber},
				"lng":          {Type: genai.TypeNumber},
				"radiusMeters": {Type: genai.TypeInteger},
			},
			Required: []string{"lat", "lng", "radiusMeters"},
		},
	},
	Required: []string{"textQuery", "bias"},
}

type textSearchLLMOut struct {
	TextQuery string `json:"textQuery"`
	Bias      *struct {
		Lat          float64 `json:"lat"`
		Lng          float64 `json:"lng"`
		RadiusMeters int     `json:"radiusMeters"`
	} `json:"bias"`
}

// MapTextSearch produces the TEXTSEARCH plan. LLM failure is absorbed: the
// deterministic path builds the same plan from the intent directly.
func (m *Mapper) MapTextSearch(ctx context.Context, query string, intent *models.Intent, shared filters.Shared, userLocation *models.LatLng) *models.TextSearchPlan {
	ctx, span := otel.Tracer("PlanMapper").Start(ctx, "MapTextSearch", trace.WithAttributes(
		attribute.Bool("has_user_location", userLocation != nil),
		attribute.Bool("has_city_text", intent.CityText != nil),
	))
	defer span.End()

	plan := &models.TextSearchPlan{
		ProviderLanguage: shared.ProviderLanguage,
		RegionCode:       shared.RegionCode,
		CityText:         intent.CityText,
		Strictness:       strictnessFor(intent),
	}
	if intent.CuisineKey != "" {
		cuisine := intent.CuisineKey
		plan.CuisineKey = &cuisine
	}

	var out textSearchLLMOut
	if err := m.generate(ctx, m.textSearchPrompt(query, intent, shared), textSearchSchema, &out); err != nil || strings.TrimSpace(out.TextQuery) == "" {
		if err != nil {
			span.RecordError(err)
			m.logger.Warn("textsearch mapper falling back to deterministic plan", zap.Error(err))
		}
		plan.TextQuery = query
	} else {
		plan.TextQuery = out.TextQuery
		if out.Bias != nil {
			plan.Bias = &models.Bias{
				Center:       models.LatLng{Lat: out.Bias.Lat, Lng: out.Bias.Lng},
				RadiusMeters: clampRadius(out.Bias.RadiusMeters),
			}
		}
	}

	finalizeTextSearch(plan, query, intent, userLocation)
	span.SetStatus(codes.Ok, "plan built")
	return plan
}

// finalizeTextSearch enforces the plan invariants regardless of whether the
// LLM or the deterministic path produced the draft:
//   - cityText is appended to textQuery so the provider biases to the city
//   - a model-provided bias is never replaced; the user location only fills
//     an absent one
//   - a cuisineKey missing from the query text is appended
func finalizeTextSearch(plan *models.TextSearchPlan, query string, intent *models.Intent, userLocation *models.LatLng) {
	if plan.CuisineKey != nil && !containsFold(plan.TextQuery, *plan.CuisineKey) {
		plan.TextQuery = plan.TextQuery + " " + *plan.CuisineKey
	}

	if intent.CityText != nil && !containsFold(plan.TextQuery, *intent.CityText) {
		plan.TextQuery = fmt.Sprintf("%s %s", plan.TextQuery, *intent.CityText)
	}

	if plan.Bias == nil && userLocation != nil {
		plan.Bias = &models.Bias{Center: *userLocation, RadiusMeters: userBiasRadius}
	}
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func (m *Mapper) textSearchPrompt(query string, intent *models.Intent, shared filters.Shared) string {
	var b strings.Builder
	b.WriteString(`Rewrite a food discovery query into a provider text-search query.
Keep the user's original language and wording, including prepositions.
Do not translate. Do not add constraints the user did not state.
Return bias only when the query itself pins an area you can locate; otherwise null.
`)
	fmt.Fprintf(&b, "\nRegion: %s\nProvider language: %s\n", shared.RegionCode, shared.ProviderLanguage)
	if intent.CityText != nil {
		fmt.Fprintf(&b, "City mentioned: %s\n", *intent.CityText)
	}
	if intent.CuisineKey != "" {
		fmt.Fprintf(&b, "Cuisine: %s\n", intent.CuisineKey)
	}
	fmt.Fprintf(&b, "\nQuery: %q\n", query)
	return b.String()
}
