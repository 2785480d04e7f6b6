package intent

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"
)

// SchemaVersion is bumped whenever the response schema changes shape. The
// version and hash are logged once at startup so drift between deployments
// is visible in the logs.
const SchemaVersion = "v3"

var intentSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"route": {
			Type: genai.TypeString,
			Enum: []string{"TEXTSEARCH", "NEARBY", "LANDMARK", "CLARIFY"},
		},
		"reason":     {Type: genai.TypeString},
		"confidence": {Type: genai.TypeNumber},
		"foodAnchor": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"type":    {Type: genai.TypeString},
				"present": {Type: genai.TypeBoolean},
			},
			Required: []string{"type", "present"},
		},
		"locationAnchor": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"text":    {Type: genai.TypeString},
				"type":    {Type: genai.TypeString, Enum: []string{"city", "street", "poi", "gps", "empty"}},
				"present": {Type: genai.TypeBoolean},
			},
			Required: []string{"text", "type", "present"},
		},
		"nearMe": {Type: genai.TypeBoolean},
		"explicitDistance": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"meters":       {Type: genai.TypeInteger, Nullable: genai.Ptr(true)},
				"originalText": {Type: genai.TypeString, Nullable: genai.Ptr(true)},
			},
			Required: []string{"meters", "originalText"},
		},
		"language":           {Type: genai.TypeString},
		"languageConfidence": {Type: genai.TypeNumber},
		"assistantLanguage": {
			Type: genai.TypeString,
			Enum: []string{"he", "en", "ru", "ar", "fr", "es"},
		},
		"regionCandidate":  {Type: genai.TypeString, Nullable: genai.Ptr(true)},
		"regionConfidence": {Type: genai.TypeNumber},
		"regionReason":     {Type: genai.TypeString},
		"cityText":         {Type: genai.TypeString, Nullable: genai.Ptr(true)},
		"landmarkText":     {Type: genai.TypeString, Nullable: genai.Ptr(true)},
		"radiusMeters":     {Type: genai.TypeInteger, Nullable: genai.Ptr(true)},
		"openNowRequested": {Type: genai.TypeBoolean},
		"priceIntent": {
			Type: genai.TypeString,
			Enum: []string{"any", "cheap", "mid", "expensive"},
		},
		"distanceIntent": {Type: genai.TypeString},
		"qualityIntent":  {Type: genai.TypeString},
		"occasion":       {Type: genai.TypeString},
		"cuisineKey":     {Type: genai.TypeString},
	},
	Required: []string{
		"route", "reason", "confidence", "foodAnchor", "locationAnchor",
		"nearMe", "explicitDistance", "language", "languageConfidence",
		"assistantLanguage", "regionCandidate", "regionConfidence",
		"regionReason", "cityText", "landmarkText", "radiusMeters",
		"openNowRequested", "priceIntent", "distanceIntent", "qualityIntent",
		"occasion", "cuisineKey",
	},
}

// SchemaHash fingerprints the schema so log lines can pin the exact shape a
// given extraction ran against.
func SchemaHash() string {
	raw, err := json.Marshal(intentSchema)
	if err != nil {
		return "unknown"
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:8])
}

// validateSchema rejects a schema whose property set and required list have
// drifted apart. Called once at service construction; a mismatch here is a
// programming error, not a runtime condition.
func validateSchema(s *genai.Schema) error {
	if len(s.Required) != len(s.Properties) {
		return fmt.Errorf("intent schema: %d properties but %d required", len(s.Properties), len(s.Required))
	}
	for _, name := range s.Required {
		if _, ok := s.Properties[name]; !ok {
			return fmt.Errorf("intent schema: required field %q has no property", name)
		}
	}
	return nil
}
