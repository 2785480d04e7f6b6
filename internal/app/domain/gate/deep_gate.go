package gate

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/FACorreiaa/loci-food-search/internal/app/ai"
)

// FoodSignal is the deep gate's judgment on whether the query is about food.
type FoodSignal string

const (
	FoodSignalYes       FoodSignal = "YES"
	FoodSignalUncertain FoodSignal = "UNCERTAIN"
	FoodSignalNo        FoodSignal = "NO"
)

// StopType tags a deep-gate stop instruction.
type StopType string

const (
	StopClarify  StopType = "CLARIFY"
	StopGateFail StopType = "GATE_FAIL"
)

type Stop struct {
	Type            StopType `json:"type"`
	Reason          string   `json:"reason"`
	SuggestedAction string   `json:"suggestedAction"`
	Message         string   `json:"message"`
	Question        string   `json:"question"`
}

// DeepResult is the LLM-driven gate verdict, produced only when the
// deterministic gate is ambiguous.
type DeepResult struct {
	FoodSignal FoodSignal `json:"foodSignal"`
	Confidence float64    `json:"confidence"`
	Stop       *Stop      `json:"stop"`
}

// Decision is the routing outcome mapped from a DeepResult.
type Decision string

const (
	DecisionContinue   Decision = "CONTINUE"
	DecisionAskClarify Decision = "ASK_CLARIFY"
	DecisionStop       Decision = "STOP"
)

const deepGatePrompt = `You are the food-domain gate of a restaurant search engine.
Decide whether the user query below is about finding food or restaurants.
Queries may be in Hebrew, English, Arabic, Russian, French or Spanish.
A single ambiguous token (like "חניה"/"parking") that could be a constraint
or a restaurant name is UNCERTAIN, with a stop of type CLARIFY and a concrete
question offering both readings.
Respond with JSON only.

Query: %q`

// DeepGate asks the LLM for a food-domain verdict with a strict JSON schema.
type DeepGate struct {
	client ai.Client
}

func NewDeepGate(client ai.Client) *DeepGate {
	return &DeepGate{client: client}
}

func (d *DeepGate) Check(ctx context.Context, query string) (*DeepResult, error) {
	ctx, span := otel.Tracer("SearchPipeline").Start(ctx, "DeepGate.Check", trace.WithAttributes(
		attribute.Int("query.length", len(query)),
	))
	defer span.End()

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
		ResponseSchema:   deepGateSchema(),
	}

	response, err := d.client.GenerateResponse(ctx, fmt.Sprintf(deepGatePrompt, query), config)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Deep gate LLM call failed")
		return nil, fmt.Errorf("deep gate call failed: %w", err)
	}

	txt := ai.ResponseText(response)
	if txt == "" {
		err := fmt.Errorf("no valid deep gate content from AI")
		span.RecordError(err)
		span.SetStatus(codes.Error, "Empty response from AI")
		return nil, err
	}

	var result DeepResult
	if err := ai.UnmarshalModelJSON(txt, &result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to parse deep gate JSON")
		return nil, fmt.Errorf("failed to parse deep gate JSON: %w", err)
	}

	span.SetAttributes(attribute.String("gate.food_signal", string(result.FoodSignal)))
	span.SetStatus(codes.Ok, "Deep gate verdict produced")
	return &result, nil
}

// RouteDeepGate is the pure routing engine over a deep-gate verdict.
func RouteDeepGate(result *DeepResult) Decision {
	if result == nil {
		return DecisionContinue
	}
	if result.Stop != nil {
		if result.Stop.Type == StopGateFail {
			return DecisionStop
		}
		return DecisionAskClarify
	}
	switch result.FoodSignal {
	case FoodSignalNo:
		return DecisionStop
	case FoodSignalUncertain:
		return DecisionAskClarify
	default:
		return DecisionContinue
	}
}

func deepGateSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"foodSignal": {Type: genai.TypeString, Enum: []string{"YES", "UNCERTAIN", "NO"}},
			"confidence": {Type: genai.TypeNumber},
			"stop": {
				Type:     genai.TypeObject,
				Nullable: genai.Ptr(true),
				Properties: map[string]*genai.Schema{
					"type":            {Type: genai.TypeString, Enum: []string{"CLARIFY", "GATE_FAIL"}},
					"reason":          {Type: genai.TypeString},
					"suggestedAction": {Type: genai.TypeString},
					"message":         {Type: genai.TypeString},
					"question":        {Type: genai.TypeString},
				},
				Required: []string{"type", "reason", "suggestedAction", "message", "question"},
			},
		},
		Required: []string{"foodSignal", "confidence", "stop"},
	}
}
