package gate

import (
	"strings"
	"unicode"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-food-search/internal/app/models"
)

// Reason codes emitted by the deterministic gate.
const (
	ReasonValid        = "valid"
	ReasonEmptyText    = "empty_text"
	ReasonNonFoodQuery = "non_food_query"
)

// Result is the outcome of the deterministic pre-filter. It runs before any
// LLM call and is expected to finish in well under 50ms.
type Result struct {
	Passed   bool
	Language string
	Region   string
	Reason   string
}

// Gate rejects empty and clearly non-food queries without spending an LLM
// call. Food-relatedness is matched against per-language keyword automatons
// built once at startup.
type Gate struct {
	matchers map[string]ahocorasick.AhoCorasick
	logger   *zap.Logger
}

var foodKeywords = map[string][]string{
	"he": {
		"מסעדה", "מסעדות", "אוכל", "פיצה", "המבורגר", "סושי", "פלאפל", "שווארמה",
		"חומוס", "קפה", "בית קפה", "מאפיה", "מאפייה", "בורגר", "איטלקית", "איטלקי",
		"אסייתי", "סינית", "יפנית", "דגים", "בשר", "צהריים", "ערב", "ארוחה",
		"כשר", "טבעוני", "צמחוני", "שניצל", "סלט", "ציזבורגר", "גלידה", "קינוח",
	},
	"en": {
		"restaurant", "food", "eat", "pizza", "burger", "sushi", "falafel",
		"shawarma", "hummus", "cafe", "coffee", "bakery", "italian", "asian",
		"chinese", "japanese", "lunch", "dinner", "breakfast", "brunch", "meal",
		"kosher", "vegan", "vegetarian", "steak", "salad", "dessert", "cuisine",
	},
	"ru": {
		"ресторан", "еда", "пицца", "бургер", "суши", "фалафель", "шаурма",
		"хумус", "кафе", "кофе", "пекарня", "обед", "ужин", "завтрак", "кошер",
	},
	"ar": {
		"مطعم", "طعام", "بيتزا", "برغر", "سوشي", "فلافل", "شاورما", "حمص",
		"مقهى", "قهوة", "مخبز", "غداء", "عشاء", "فطور", "حلال",
	},
	"fr": {
		"restaurant", "manger", "pizza", "burger", "sushi", "falafel", "café",
		"boulangerie", "déjeuner", "dîner", "cuisine", "casher", "végétarien",
	},
	"es": {
		"restaurante", "comida", "comer", "pizza", "hamburguesa", "sushi",
		"falafel", "café", "panadería", "almuerzo", "cena", "cocina", "kosher",
	},
}

func New(logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	matchers := make(map[string]ahocorasick.AhoCorasick, len(foodKeywords))
	for lang, words := range foodKeywords {
		builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
			AsciiCaseInsensitive: true,
			MatchOnlyWholeWords:  false,
		})
		matchers[lang] = builder.Build(words)
	}
	return &Gate{matchers: matchers, logger: logger}
}

// Check runs the deterministic gate over the raw query text.
func (g *Gate) Check(text string) Result {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Result{Passed: false, Language: "unknown", Region: "unknown", Reason: ReasonEmptyText}
	}

	lang := DetectLanguage(trimmed)

	if !g.isFoodRelated(trimmed, lang) {
		g.logger.Debug("gate rejected non-food query", zap.String("language", lang))
		return Result{Passed: false, Language: lang, Region: "unknown", Reason: ReasonNonFoodQuery}
	}

	return Result{Passed: true, Language: lang, Region: "unknown", Reason: ReasonValid}
}

func (g *Gate) isFoodRelated(text, lang string) bool {
	lower := strings.ToLower(text)
	if matcher, ok := g.matchers[lang]; ok {
		if len(matcher.FindAll(lower)) > 0 {
			return true
		}
	}
	// Unknown or mixed-script input: any language's keywords count.
	if lang == "unknown" || lang == "other" {
		for _, matcher := range g.matchers {
			if len(matcher.FindAll(lower)) > 0 {
				return true
			}
		}
	}
	return false
}

// DetectLanguage applies the majority-script heuristic: when at least 60% of
// the letters belong to one script, the query is assigned that script's
// language. Latin text is refined to fr/es by diacritics, defaulting to en.
func DetectLanguage(text string) string {
	var hebrew, arabic, cyrillic, latin, total int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		total++
		switch {
		case unicode.Is(unicode.Hebrew, r):
			hebrew++
		case unicode.Is(unicode.Arabic, r):
			arabic++
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}
	if total == 0 {
		return "unknown"
	}

	threshold := (total * 6) / 10
	switch {
	case hebrew > 0 && hebrew >= threshold:
		return string(models.LangHebrew)
	case arabic > 0 && arabic >= threshold:
		return string(models.LangArabic)
	case cyrillic > 0 && cyrillic >= threshold:
		return string(models.LangRussian)
	case latin > 0 && latin >= threshold:
		return refineLatin(text)
	}
	return "unknown"
}

func refineLatin(text string) string {
	lower := strings.ToLower(text)
	if strings.ContainsAny(lower, "ñ¿¡") {
		return string(models.LangSpanish)
	}
	if strings.ContainsAny(lower, "çœùûê") {
		return string(models.LangFrench)
	}
	return string(models.LangEnglish)
}
