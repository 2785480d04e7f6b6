package ai

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// CleanJSONResponse strips markdown code fences the model sometimes wraps
// JSON payloads in.
func CleanJSONResponse(txt string) string {
	txt = strings.TrimSpace(txt)
	txt = strings.TrimPrefix(txt, "```json")
	txt = strings.TrimPrefix(txt, "```")
	txt = strings.TrimSuffix(txt, "```")
	return strings.TrimSpace(txt)
}

// UnmarshalModelJSON parses LLM output into v. Fenced output is cleaned
// first; malformed JSON gets one repair pass before the original error is
// returned.
func UnmarshalModelJSON(txt string, v any) error {
	clean := CleanJSONResponse(txt)
	if err := json.Unmarshal([]byte(clean), v); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(clean)
		if repairErr != nil {
			return err
		}
		return json.Unmarshal([]byte(repaired), v)
	}
	return nil
}
