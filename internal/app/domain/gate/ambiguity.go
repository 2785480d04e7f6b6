package gate

import "strings"

// ClarifyChoice is one actionable reading of an ambiguous query token.
type ClarifyChoice struct {
	Kind  string
	Label string
}

// ambiguousTokens maps single-token queries with two plausible readings to
// the concrete choices offered back to the user. The token can be a filter
// constraint or the name of a place; only the user knows which.
var ambiguousTokens = map[string][]ClarifyChoice{
	"חניה": {
		{Kind: "constraint_parking", Label: "🅿️ כן, עם חניה"},
		{Kind: "name_lookup", Label: "🔍 לא, זה שם המסעדה"},
	},
	"parking": {
		{Kind: "constraint_parking", Label: "🅿️ Yes, with parking"},
		{Kind: "name_lookup", Label: "🔍 No, it's the restaurant's name"},
	},
	"парковка": {
		{Kind: "constraint_parking", Label: "🅿️ Да, с парковкой"},
		{Kind: "name_lookup", Label: "🔍 Нет, это название ресторана"},
	},
	"موقف": {
		{Kind: "constraint_parking", Label: "🅿️ نعم، مع موقف سيارات"},
		{Kind: "name_lookup", Label: "🔍 لا، هذا اسم المطعم"},
	},
}

// AmbiguousChoices returns the concrete clarify choices for a known
// ambiguous single-token query, or nil.
func AmbiguousChoices(query string) []ClarifyChoice {
	return ambiguousTokens[strings.ToLower(strings.TrimSpace(query))]
}
