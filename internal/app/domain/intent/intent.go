package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/FACorreiaa/loci-food-search/internal/app/ai"
	"github.com/FACorreiaa/loci-food-search/internal/app/domain/filters"
	"github.com/FACorreiaa/loci-food-search/internal/app/models"
)

// Service runs the single structured intent extraction for a query. The
// extraction itself is one LLM call against a closed response schema; all
// coercions after it are deterministic.
type Service struct {
	llm     ai.Client
	logger  *zap.Logger
	timeout time.Duration
	backoff time.Duration
}

func NewService(llm ai.Client, logger *zap.Logger, timeout, backoff time.Duration) (*Service, error) {
	if err := validateSchema(intentSchema); err != nil {
		return nil, err
	}
	logger.Info("intent schema loaded",
		zap.String("version", SchemaVersion),
		zap.String("hash", SchemaHash()))
	return &Service{llm: llm, logger: logger, timeout: timeout, backoff: backoff}, nil
}

// Input carries everything the extraction prompt needs besides the query.
type Input struct {
	Query            string
	DetectedLanguage string
	HasUserLocation  bool
	RecentQueries    []string
}

// Extract interprets the query. It never returns a nil intent: when both the
// initial call and the single retry fail, the deterministic fallback intent
// is returned with Fallback set, and the error describes the failure for
// logging at the call site.
func (s *Service) Extract(ctx context.Context, in Input) (*models.Intent, error) {
	ctx, span := otel.Tracer("IntentService").Start(ctx, "Extract", trace.WithAttributes(
		attribute.Int("query.length", len(in.Query)),
		attribute.String("language.detected", in.DetectedLanguage),
	))
	defer span.End()

	parsed, err := s.extractOnce(ctx, in)
	if err != nil && retryableExtractError(err) {
		s.logger.Warn("intent extraction retrying",
			zap.Error(err),
			zap.Duration("backoff", s.backoff))
		select {
		case <-time.After(s.backoff):
		case <-ctx.Done():
			span.RecordError(ctx.Err())
			span.SetStatus(codes.Error, "context done during backoff")
			return s.fallbackIntent(in), ctx.Err()
		}
		parsed, err = s.extractOnce(ctx, in)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction failed")
		s.logger.Warn("intent extraction failed, using fallback", zap.Error(err))
		return s.fallbackIntent(in), err
	}

	s.postValidate(parsed, in)
	span.SetAttributes(
		attribute.String("intent.route", string(parsed.Route)),
		attribute.Float64("intent.confidence", parsed.Confidence),
	)
	span.SetStatus(codes.Ok, "intent extracted")
	return parsed, nil
}

func (s *Service) extractOnce(ctx context.Context, in Input) (*models.Intent, error) {
	if s.llm == nil {
		return nil, fmt.Errorf("intent extraction: no llm client configured")
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0)),
		ResponseMIMEType: "application/json",
		ResponseSchema:   intentSchema,
	}
	response, err := s.llm.GenerateResponse(callCtx, s.buildPrompt(in), config)
	if err != nil {
		return nil, err
	}

	txt := ai.ResponseText(response)
	if txt == "" {
		return nil, fmt.Errorf("intent extraction: empty model response")
	}
	var parsed models.Intent
	if err := ai.UnmarshalModelJSON(txt, &parsed); err != nil {
		return nil, fmt.Errorf("intent extraction: parse response: %w", err)
	}
	return &parsed, nil
}

// postValidate applies the deterministic coercions that keep a structurally
// valid but semantically impossible intent out of the pipeline.
func (s *Service) postValidate(intent *models.Intent, in Input) {
	switch intent.Route {
	case models.RouteTextSearch, models.RouteNearby, models.RouteLandmark, models.RouteClarify:
	default:
		s.logger.Warn("intent route outside closed set, coercing",
			zap.String("route", string(intent.Route)))
		intent.Route = models.RouteTextSearch
		intent.Confidence = min(intent.Confidence, 0.5)
	}

	// A NEARBY route without device coordinates cannot be executed; the only
	// honest outcome is asking the user for a location.
	if intent.Route == models.RouteNearby && !in.HasUserLocation {
		intent.Route = models.RouteClarify
		intent.Reason = "missing_user_location"
		intent.Confidence = min(intent.Confidence, 0.8)
	}

	// landmarkText exists only on the LANDMARK route, and never when the
	// distance was anchored on the user rather than a place.
	if intent.Reason == "explicit_distance_from_me" {
		intent.LandmarkText = nil
	}
	if intent.Route != models.RouteLandmark {
		intent.LandmarkText = nil
	} else if intent.LandmarkText == nil || strings.TrimSpace(*intent.LandmarkText) == "" {
		s.logger.Warn("landmark route without landmark text, coercing to textsearch")
		intent.Route = models.RouteTextSearch
		intent.LandmarkText = nil
		intent.Confidence = min(intent.Confidence, 0.5)
	}

	// The rejected value stays out of the log line.
	if sanitized, changed := filters.SanitizeRegion(intent.RegionCandidate); changed {
		s.logger.Info("region_sanitized")
		intent.RegionCandidate = sanitized
	}

	if !models.AssistantLanguages[intent.AssistantLanguage] {
		intent.AssistantLanguage = models.LangEnglish
	}

	if intent.Confidence < 0 {
		intent.Confidence = 0
	} else if intent.Confidence > 1 {
		intent.Confidence = 1
	}

	switch intent.PriceIntent {
	case models.PriceAny, models.PriceCheap, models.PriceMid, models.PriceExpensive:
	default:
		intent.PriceIntent = models.PriceAny
	}

	if intent.ExplicitDistance.Meters != nil && *intent.ExplicitDistance.Meters <= 0 {
		intent.ExplicitDistance = models.ExplicitDistance{}
	}
}

// fallbackIntent is the deterministic stand-in when the model is unreachable.
// Low confidence steers the result state engine toward a cautious response.
func (s *Service) fallbackIntent(in Input) *models.Intent {
	lang := models.LangEnglish
	if in.DetectedLanguage == "he" {
		lang = models.LangHebrew
	}
	return &models.Intent{
		Route:             models.RouteTextSearch,
		Reason:            "llm_unavailable",
		Confidence:        0.3,
		FoodAnchor:        models.FoodAnchor{Type: "generic", Present: true},
		LocationAnchor:    models.LocationAnchor{Type: models.AnchorEmpty},
		Language:          in.DetectedLanguage,
		AssistantLanguage: lang,
		PriceIntent:       models.PriceAny,
		Fallback:          true,
	}
}

func retryableExtractError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled)
}

func (s *Service) buildPrompt(in Input) string {
	var b strings.Builder
	b.WriteString(`You interpret food discovery queries for a places search pipeline.
Classify the query into exactly one route:
- TEXTSEARCH: a food request with free-text location or no location ("pizza in tel aviv", "sushi").
- NEARBY: a food request anchored on the user's current position ("burgers near me").
- LANDMARK: a food request anchored on a named landmark or point of interest ("coffee near dizengoff center").
- CLARIFY: the query cannot be executed without asking the user a question.

Rules:
- Detect the query language and answer in assistantLanguage that matches it.
- regionCandidate is an ISO-3166-1 alpha-2 code only when the query names a country or a city you can place; otherwise null.
- explicitDistance captures a literal distance phrase ("within 200 meters", "200 מטר") as meters plus the original text; null when absent.
- nearMe is true only for explicit self-referential phrasing.
- Do not invent a cityText or landmarkText that is not in the query.
`)
	fmt.Fprintf(&b, "\nDetected script language: %s\n", in.DetectedLanguage)
	fmt.Fprintf(&b, "Device location available: %t\n", in.HasUserLocation)
	if len(in.RecentQueries) > 0 {
		b.WriteString("Recent queries in this session:\n")
		for _, q := range in.RecentQueries {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}
	fmt.Fprintf(&b, "\nQuery: %q\n", in.Query)
	return b.String()
}
