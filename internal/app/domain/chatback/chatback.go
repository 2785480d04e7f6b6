package chatback

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/FACorreiaa/loci-food-search/internal/app/ai"
	"github.com/FACorreiaa/loci-food-search/internal/app/models"
)

const maxMessageRunes = 200

var messageSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"message": {Type: genai.TypeString},
		"mode":    {Type: genai.TypeString, Enum: []string{"NORMAL", "RECOVERY"}},
	},
	Required: []string{"message", "mode"},
}

// Generator converts a ResponsePlan into one localized assistant sentence.
// It never fails: every degradation path lands on the i18n template.
type Generator struct {
	llm     ai.Client
	scanner ahocorasick.AhoCorasick
	logger  *zap.Logger
	timeout time.Duration
}

func New(llm ai.Client, logger *zap.Logger, timeout time.Duration) *Generator {
	var phrases []string
	for _, list := range forbiddenPhrases {
		phrases = append(phrases, list...)
	}
	// Whole-word matching keeps short tokens like "api" from firing inside
	// innocent words.
	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  true,
	})
	return &Generator{
		llm:     llm,
		scanner: builder.Build(phrases),
		logger:  logger,
		timeout: timeout,
	}
}

// Request carries the plan plus the session signals for wording variation.
type Request struct {
	Plan         *models.ResponsePlan
	Language     models.Language
	Query        string
	RecentHashes []string
}

// Generate produces the assist message and its hash. The hash goes back into
// the session so the next turn can vary its wording.
func (g *Generator) Generate(ctx context.Context, req Request) (*models.Assist, string) {
	ctx, span := otel.Tracer("ChatBack").Start(ctx, "Generate")
	defer span.End()

	mode := modeFor(req.Plan.Scenario)

	if g.llm == nil {
		return g.finish(span, templateMessage(req.Language, req.Plan), mode, req.Plan, "template")
	}

	message, llmMode, err := g.generateOnce(ctx, req, false)
	if err == nil && g.violates(message) {
		g.logger.Warn("assistant message violated phrase rules, retrying",
			zap.String("scenario", string(req.Plan.Scenario)))
		message, llmMode, err = g.generateOnce(ctx, req, true)
		if err == nil && g.violates(message) {
			err = fmt.Errorf("chatback: repeated phrase violation")
		}
	}
	if err != nil {
		span.RecordError(err)
		g.logger.Warn("chatback degraded to template", zap.Error(err))
		return g.finish(span, templateMessage(req.Language, req.Plan), mode, req.Plan, "template")
	}

	if llmMode == string(models.ChatModeRecovery) {
		mode = models.ChatModeRecovery
	}
	return g.finish(span, truncateMessage(message), mode, req.Plan, "llm")
}

func (g *Generator) finish(span trace.Span, message string, mode models.ChatMode, plan *models.ResponsePlan, source string) (*models.Assist, string) {
	hash := MessageHash(message)
	span.SetAttributes(
		attribute.String("message.source", source),
		attribute.String("message.hash", hash),
	)
	assist := &models.Assist{
		Message: message,
		Mode:    mode,
		Actions: plan.SuggestedActions,
	}
	if mode == models.ChatModeRecovery {
		assist.FailureReason = failureReason(plan.Scenario)
	}
	return assist, hash
}

// failureReason is the machine-readable tag clients branch on.
func failureReason(scenario models.Scenario) string {
	switch scenario {
	case models.ScenarioMissingLocation:
		return "LOCATION_REQUIRED"
	case models.ScenarioMissingQuery:
		return "QUERY_REQUIRED"
	}
	return string(scenario)
}

func (g *Generator) generateOnce(ctx context.Context, req Request, strict bool) (string, string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	response, err := g.llm.GenerateResponse(callCtx, g.prompt(req, strict), &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0.7)),
		ResponseMIMEType: "application/json",
		ResponseSchema:   messageSchema,
	})
	if err != nil {
		return "", "", err
	}

	var out struct {
		Message string `json:"message"`
		Mode    string `json:"mode"`
	}
	if err := ai.UnmarshalModelJSON(ai.ResponseText(response), &out); err != nil {
		return "", "", err
	}
	if strings.TrimSpace(out.Message) == "" {
		return "", "", fmt.Errorf("chatback: empty message")
	}
	return strings.TrimSpace(out.Message), out.Mode, nil
}

func (g *Generator) violates(message string) bool {
	return len(g.scanner.FindAll(strings.ToLower(message))) > 0
}

func (g *Generator) prompt(req Request, strict bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Write one short assistant message (under %d characters) in language %q
for a food search outcome. Warm, concrete, no filler.

Rules:
- State real counts when results exist; never invent places or facts like
  opening hours, kosher status or parking.
- When the plan requires a next step, offer exactly one.
- Do not mention internal machinery of any kind.
`, maxMessageRunes, req.Language)
	if strict {
		b.WriteString("- Your previous draft used a banned phrase. Avoid negative dead-end wording entirely; describe what can be done instead.\n")
	}
	fmt.Fprintf(&b, "\nOutcome: %s\n", req.Plan.Scenario)
	fmt.Fprintf(&b, "Result counts: total=%d open_now=%d closing_soon=%d\n",
		req.Plan.Results.Total, req.Plan.Results.OpenNow, req.Plan.Results.ClosingSoon)
	if req.Plan.Filters.NearbyCity != nil {
		fmt.Fprintf(&b, "A nearby city with matches: %s\n", *req.Plan.Filters.NearbyCity)
	}
	if req.Plan.Constraints.MustSuggestAction && len(req.Plan.SuggestedActions) > 0 {
		fmt.Fprintf(&b, "Suggest this next step: %s\n", req.Plan.SuggestedActions[0].Label)
	}
	if len(req.RecentHashes) > 0 {
		fmt.Fprintf(&b, "Vary the wording from your last %d replies.\n", len(req.RecentHashes))
	}
	fmt.Fprintf(&b, "User query: %q\n", req.Query)
	return b.String()
}

func modeFor(scenario models.Scenario) models.ChatMode {
	switch scenario {
	case models.ScenarioExactMatch, models.ScenarioLowConfidence, models.ScenarioFewClosingSoon:
		return models.ChatModeNormal
	}
	return models.ChatModeRecovery
}

func truncateMessage(message string) string {
	if utf8.RuneCountInString(message) <= maxMessageRunes {
		return message
	}
	runes := []rune(message)
	return string(runes[:maxMessageRunes-1]) + "…"
}

// MessageHash is the short fingerprint stored in the session history.
func MessageHash(message string) string {
	sum := sha256.Sum256([]byte(message))
	return hex.EncodeToString(sum[:8])
}
