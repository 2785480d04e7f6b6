package chatback

import (
	"context"
	"errors"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/FACorreiaa/loci-food-search/internal/app/models"
)

type fakeLLM struct {
	responses []string
	err       error
	calls     int
}

func (f *fakeLLM) GenerateResponse(_ context.Context, _ string, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	i := f.calls
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	txt := ""
	if i < len(f.responses) {
		txt = f.responses[i]
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: txt}}},
		}},
	}, nil
}

func exactPlan(total int) *models.ResponsePlan {
	return &models.ResponsePlan{
		Scenario: models.ScenarioExactMatch,
		Results:  models.ResultsSummary{Total: total, OpenNow: total},
	}
}

func newGenerator(llm *fakeLLM) *Generator {
	return New(llm, zap.NewNop(), 50*time.Millisecond)
}

func TestGenerateUsesModelMessage(t *testing.T) {
	llm := &fakeLLM{responses: []string{`{"message": "מצאתי 5 מקומות מעולים בתל אביב", "mode": "NORMAL"}`}}
	g := newGenerator(llm)

	assist, hash := g.Generate(context.Background(), Request{
		Plan: exactPlan(5), Language: models.LangHebrew, Query: "פיצה בתל אביב",
	})
	assert.Equal(t, "מצאתי 5 מקומות מעולים בתל אביב", assist.Message)
	assert.Equal(t, models.ChatModeNormal, assist.Mode)
	assert.NotEmpty(t, hash)
	assert.Equal(t, MessageHash(assist.Message), hash)
}

func TestGenerateRetriesOnForbiddenPhrase(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		`{"message": "Sorry, no results were found for that.", "mode": "NORMAL"}`,
		`{"message": "The area looks quiet for that craving, let's widen the search.", "mode": "RECOVERY"}`,
	}}
	g := newGenerator(llm)

	assist, _ := g.Generate(context.Background(), Request{
		Plan:     &models.ResponsePlan{Scenario: models.ScenarioZeroNearbyExists},
		Language: models.LangEnglish,
		Query:    "sushi in bat yam",
	})
	assert.Equal(t, 2, llm.calls)
	assert.NotContains(t, assist.Message, "no results")
	assert.Equal(t, models.ChatModeRecovery, assist.Mode)
	assert.Equal(t, string(models.ScenarioZeroNearbyExists), assist.FailureReason)
}

func TestGenerateSecondViolationFallsToTemplate(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		`{"message": "no results here", "mode": "NORMAL"}`,
		`{"message": "still nothing found", "mode": "NORMAL"}`,
	}}
	g := newGenerator(llm)

	assist, _ := g.Generate(context.Background(), Request{
		Plan:     &models.ResponsePlan{Scenario: models.ScenarioZeroNearbyExists},
		Language: models.LangEnglish,
		Query:    "sushi",
	})
	assert.Equal(t, 2, llm.calls)
	assert.Equal(t, templates[models.LangEnglish][models.ScenarioZeroNearbyExists], assist.Message)
}

func TestGenerateLLMErrorFallsToTemplate(t *testing.T) {
	llm := &fakeLLM{err: errors.New("model down")}
	g := newGenerator(llm)

	assist, hash := g.Generate(context.Background(), Request{
		Plan: exactPlan(3), Language: models.LangHebrew, Query: "פיצה",
	})
	assert.Equal(t, "מצאתי 3 מקומות שמתאימים לחיפוש שלך.", assist.Message)
	assert.NotEmpty(t, hash)
}

func TestGenerateNilLLMUsesTemplates(t *testing.T) {
	g := New(nil, zap.NewNop(), time.Second)

	assist, _ := g.Generate(context.Background(), Request{
		Plan:     &models.ResponsePlan{Scenario: models.ScenarioMissingLocation},
		Language: models.LangRussian,
		Query:    "пицца рядом",
	})
	assert.Equal(t, templates[models.LangRussian][models.ScenarioMissingLocation], assist.Message)
	assert.Equal(t, models.ChatModeRecovery, assist.Mode)
}

func TestGenerateTruncatesLongMessages(t *testing.T) {
	long := make([]rune, 0, 320)
	for i := 0; i < 320; i++ {
		long = append(long, 'א')
	}
	llm := &fakeLLM{responses: []string{`{"message": "` + string(long) + `", "mode": "NORMAL"}`}}
	g := newGenerator(llm)

	assist, _ := g.Generate(context.Background(), Request{
		Plan: exactPlan(1), Language: models.LangHebrew, Query: "פיצה",
	})
	assert.LessOrEqual(t, utf8.RuneCountInString(assist.Message), maxMessageRunes)
}

func TestGenerateCarriesSuggestedActions(t *testing.T) {
	plan := &models.ResponsePlan{
		Scenario: models.ScenarioZeroDifferentCity,
		SuggestedActions: []models.SuggestedAction{
			{Kind: "switch_city", Label: "Search in tel aviv", Priority: 1},
		},
		Constraints: models.Guardrails{MustSuggestAction: true},
	}
	llm := &fakeLLM{responses: []string{`{"message": "Matching spots sit one town over, want me to look there?", "mode": "RECOVERY"}`}}
	g := newGenerator(llm)

	assist, _ := g.Generate(context.Background(), Request{Plan: plan, Language: models.LangEnglish, Query: "sushi"})
	require.Len(t, assist.Actions, 1)
	assert.Equal(t, "switch_city", assist.Actions[0].Kind)
}

func TestTemplateNearbyOnlyCarriesCount(t *testing.T) {
	plan := &models.ResponsePlan{
		Scenario: models.ScenarioZeroNearbyExists,
		Results:  models.ResultsSummary{Total: 4, Nearby: 4},
	}
	msg := templateMessage(models.LangEnglish, plan)
	assert.Equal(t, "Nothing on that exact stretch, but 4 places are close by.", msg)
}

func TestTemplateFallsBackToEnglishForUnknownLanguage(t *testing.T) {
	msg := templateMessage(models.Language("pt"), exactPlan(2))
	assert.Equal(t, "Found 2 places matching your search.", msg)
}

func TestForbiddenPhraseScanMultilingual(t *testing.T) {
	g := newGenerator(&fakeLLM{})
	assert.True(t, g.violates("Unfortunately there were no results for you"))
	assert.True(t, g.violates("לצערי אין תוצאות עבורך"))
	assert.True(t, g.violates("ничего не найдено в этом районе"))
	assert.False(t, g.violates("Found 5 great pizza spots on Allenby"))
	assert.False(t, g.violates("מצאתי 5 מקומות"))
}
