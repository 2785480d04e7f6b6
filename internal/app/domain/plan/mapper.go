package plan

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/FACorreiaa/loci-food-search/internal/app/ai"
	"github.com/FACorreiaa/loci-food-search/internal/app/models"
)

const (
	defaultNearbyRadius   = 500
	defaultLandmarkRadius = 1000
	userBiasRadius        = 20000
	maxRadiusMeters       = 50000
)

// Mapper turns a validated intent into a typed provider-call plan, one
// route-specific LLM call each. Every mapper has a deterministic fallback
// built from the intent and shared filters alone, so a dead LLM degrades
// quality, not availability.
type Mapper struct {
	llm     ai.Client
	logger  *zap.Logger
	timeout time.Duration
}

func NewMapper(llm ai.Client, logger *zap.Logger, timeout time.Duration) *Mapper {
	return &Mapper{llm: llm, logger: logger, timeout: timeout}
}

func (m *Mapper) generate(ctx context.Context, prompt string, schema *genai.Schema, out any) error {
	if m.llm == nil {
		return errors.New("plan mapper: no llm client configured")
	}
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	response, err := m.llm.GenerateResponse(callCtx, prompt, &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0)),
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	})
	if err != nil {
		return err
	}
	return ai.UnmarshalModelJSON(ai.ResponseText(response), out)
}

// distancePattern matches a literal distance phrase in the query across the
// supported languages: "200 meters", "500m", "200 מטר", "200 متر", "200 метров".
var distancePattern = regexp.MustCompile(`(?i)(\d+)\s*(?:meters?\b|m\b|метров|метра|м(?:\s|$)|מטרים|מטר|متر)`)

// extractRadius pulls an explicit radius out of the intent or the raw query
// text, clamped to the provider's maximum. Returns (radius, true) only for an
// explicit mention.
func extractRadius(intent *models.Intent, query string) (int, bool) {
	if intent.ExplicitDistance.Meters != nil && *intent.ExplicitDistance.Meters > 0 {
		return clampRadius(*intent.ExplicitDistance.Meters), true
	}
	if intent.RadiusMeters != nil && *intent.RadiusMeters > 0 {
		return clampRadius(*intent.RadiusMeters), true
	}
	if match := distancePattern.FindStringSubmatch(query); match != nil {
		if n, err := strconv.Atoi(match[1]); err == nil && n > 0 {
			return clampRadius(n), true
		}
	}
	return 0, false
}

func clampRadius(r int) int {
	if r > maxRadiusMeters {
		return maxRadiusMeters
	}
	if r < 1 {
		return 1
	}
	return r
}

// strictnessFor is STRICT when a cuisine is pinned: widening an empty result
// set would silently drop the one constraint the user cared about.
func strictnessFor(intent *models.Intent) models.Strictness {
	if intent.CuisineKey != "" {
		return models.Strict
	}
	return models.RelaxIfEmpty
}

// keywordFor picks the provider keyword: cuisine when present, else the raw
// query text.
func keywordFor(intent *models.Intent, query string) string {
	if intent.CuisineKey != "" {
		return intent.CuisineKey
	}
	return query
}
