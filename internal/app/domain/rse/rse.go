package rse

import (
	"strings"

	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-food-search/internal/app/models"
)

const (
	fewThreshold        = 3
	lowConfidence       = 0.5
	repeatEscalateAfter = 2
)

// Input is everything the classifier consults. All fields are values the
// pipeline already computed; the engine itself never calls out.
type Input struct {
	Query          string
	Intent         *models.Intent
	Results        []models.PlaceResult
	Groups         []models.ResultGroup
	DroppedCount   int
	NearbyCity     *string
	NearbyDistance *int
	ClosingSoon    int
	// ScenarioCounts is the session's per-scenario history, used to escalate
	// repeated unsuccessful outcomes instead of looping.
	ScenarioCounts map[models.Scenario]int
}

// Engine classifies an executed search outcome into exactly one scenario and
// produces the structured plan the message generator works from. Fully
// deterministic; same input, same plan.
type Engine struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Engine {
	return &Engine{logger: logger}
}

func (e *Engine) Classify(in Input) *models.ResponsePlan {
	scenario := e.scenario(in)
	plan := &models.ResponsePlan{
		Scenario:         scenario,
		Results:          summarize(in),
		Filters:          filterStats(in),
		Fallback:         fallbackOptions(scenario, in),
		SuggestedActions: suggestedActions(scenario, in),
		Constraints:      guardrails(scenario, in),
	}
	e.logger.Debug("result state classified",
		zap.String("scenario", string(scenario)),
		zap.Int("total", plan.Results.Total))
	return plan
}

func (e *Engine) scenario(in Input) models.Scenario {
	base := e.baseScenario(in)
	if unsuccessful(base) && in.ScenarioCounts[base] >= repeatEscalateAfter {
		return models.ScenarioRepeatUnsuccessful
	}
	return base
}

func (e *Engine) baseScenario(in Input) models.Scenario {
	if strings.TrimSpace(in.Query) == "" {
		return models.ScenarioMissingQuery
	}
	if in.Intent != nil && in.Intent.Route == models.RouteClarify {
		if in.Intent.Reason == "missing_user_location" {
			return models.ScenarioMissingLocation
		}
		return models.ScenarioClarifyNeeded
	}

	total := len(in.Results)
	if total == 0 {
		if in.DroppedCount > 0 && in.NearbyCity != nil {
			return models.ScenarioZeroDifferentCity
		}
		if in.NearbyDistance != nil {
			return models.ScenarioZeroNearbyExists
		}
		return models.ScenarioZeroNearbyExists
	}

	// Street grouping with an empty exact stretch: matches exist, just not on
	// the street itself.
	if len(in.Groups) > 0 {
		exactCount, nearbyCount := 0, 0
		for _, g := range in.Groups {
			switch g.Kind {
			case models.GroupExact:
				exactCount = len(g.Results)
			case models.GroupNearby:
				nearbyCount = len(g.Results)
			}
		}
		if exactCount == 0 && nearbyCount > 0 {
			return models.ScenarioZeroNearbyExists
		}
	}

	open, closed, known := openSplit(in.Results)
	allClosed := known > 0 && open == 0 && closed == known
	switch {
	case total <= fewThreshold && allClosed:
		return models.ScenarioFewAllClosed
	case total > fewThreshold && allClosed:
		return models.ScenarioManyAllClosed
	case total <= fewThreshold && in.ClosingSoon > 0:
		return models.ScenarioFewClosingSoon
	}

	if in.Intent != nil && (in.Intent.Fallback || in.Intent.Confidence < lowConfidence) {
		return models.ScenarioLowConfidence
	}
	return models.ScenarioExactMatch
}

// unsuccessful reports whether a scenario counts toward repeat escalation.
func unsuccessful(s models.Scenario) bool {
	switch s {
	case models.ScenarioZeroNearbyExists, models.ScenarioZeroDifferentCity,
		models.ScenarioFewAllClosed, models.ScenarioManyAllClosed,
		models.ScenarioClarifyNeeded, models.ScenarioMissingLocation:
		return true
	}
	return false
}

func openSplit(results []models.PlaceResult) (open, closed, known int) {
	for _, r := range results {
		switch r.OpenNow {
		case models.OpenYes:
			open++
			known++
		case models.OpenNo:
			closed++
			known++
		}
	}
	return open, closed, known
}

func summarize(in Input) models.ResultsSummary {
	open, _, _ := openSplit(in.Results)
	summary := models.ResultsSummary{
		Total:       len(in.Results),
		OpenNow:     open,
		ClosingSoon: in.ClosingSoon,
	}
	for _, g := range in.Groups {
		switch g.Kind {
		case models.GroupExact:
			summary.Exact = len(g.Results)
		case models.GroupNearby:
			summary.Nearby = len(g.Results)
		}
	}
	return summary
}

func filterStats(in Input) models.FilterStats {
	return models.FilterStats{
		DroppedCount:         in.DroppedCount,
		NearbyCity:           in.NearbyCity,
		NearbyDistanceMeters: in.NearbyDistance,
	}
}

func fallbackOptions(scenario models.Scenario, in Input) []models.FallbackOption {
	switch scenario {
	case models.ScenarioZeroNearbyExists:
		opts := []models.FallbackOption{
			{Kind: models.FallbackExpandRadius, Explanation: "widen the search area"},
		}
		if in.Intent != nil && (in.Intent.OpenNowRequested || in.Intent.PriceIntent != models.PriceAny) {
			opts = append(opts, models.FallbackOption{
				Kind: models.FallbackDropConstraint, Explanation: "relax a stated constraint",
			})
		}
		return opts
	case models.ScenarioZeroDifferentCity:
		return []models.FallbackOption{
			{Kind: models.FallbackNearbyCity, Explanation: "matching places exist in a nearby city"},
			{Kind: models.FallbackExpandRadius, Explanation: "widen the search area"},
		}
	case models.ScenarioMissingLocation:
		return []models.FallbackOption{
			{Kind: models.FallbackShareLocation, Explanation: "share the device location"},
			{Kind: models.FallbackProvideCity, Explanation: "name a city instead"},
		}
	case models.ScenarioMissingQuery, models.ScenarioClarifyNeeded:
		return []models.FallbackOption{
			{Kind: models.FallbackRephrase, Explanation: "restate what to eat and where"},
		}
	case models.ScenarioFewAllClosed, models.ScenarioManyAllClosed:
		return []models.FallbackOption{
			{Kind: models.FallbackDropConstraint, Explanation: "include currently closed places"},
		}
	case models.ScenarioRepeatUnsuccessful:
		return []models.FallbackOption{
			{Kind: models.FallbackRephrase, Explanation: "a different wording may break the loop"},
			{Kind: models.FallbackNearbyCity, Explanation: "try another area"},
		}
	}
	return nil
}

func suggestedActions(scenario models.Scenario, in Input) []models.SuggestedAction {
	var actions []models.SuggestedAction
	add := func(kind, label string) {
		actions = append(actions, models.SuggestedAction{
			Kind: kind, Label: label, Priority: len(actions) + 1,
		})
	}

	switch scenario {
	case models.ScenarioZeroNearbyExists:
		add("expand_radius", "Search wider")
		if in.Intent != nil && in.Intent.OpenNowRequested {
			add("drop_open_now", "Include closed places")
		}
	case models.ScenarioZeroDifferentCity:
		if in.NearbyCity != nil {
			add("switch_city", "Search in "+*in.NearbyCity)
		}
		add("expand_radius", "Search wider")
	case models.ScenarioMissingLocation:
		add("share_location", "Share location")
		add("enter_city", "Type a city")
	case models.ScenarioMissingQuery, models.ScenarioClarifyNeeded:
		add("rephrase", "Describe the craving")
	case models.ScenarioFewAllClosed, models.ScenarioManyAllClosed:
		add("drop_open_now", "Show closed places too")
	case models.ScenarioFewClosingSoon:
		add("sort_by_closing", "Closing soon first")
	case models.ScenarioRepeatUnsuccessful:
		add("rephrase", "Try different words")
		add("expand_radius", "Search wider")
	}
	return actions
}

func guardrails(scenario models.Scenario, in Input) models.Guardrails {
	hasResults := len(in.Results) > 0
	return models.Guardrails{
		MustMentionCount:   hasResults,
		MustSuggestAction:  scenario != models.ScenarioExactMatch,
		CanMentionTiming:   in.ClosingSoon > 0 || anyOpenKnown(in.Results),
		CanMentionLocation: in.Intent != nil && in.Intent.LocationAnchor.Present,
	}
}

func anyOpenKnown(results []models.PlaceResult) bool {
	_, _, known := openSplit(results)
	return known > 0
}
