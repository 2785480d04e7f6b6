package filters

import (
	"time"

	"golang.org/x/text/language"

	"github.com/FACorreiaa/loci-food-search/internal/app/models"
)

// Shared is the deterministic filter set derived from a validated intent.
// Derivation is a pure function of (intent, device locale, clock); it never
// calls the provider or the LLM.
type Shared struct {
	UILanguage       models.Language
	ProviderLanguage string
	RegionCode       string
	PriceLevels      []string
	OpenNowOnly      bool
	HoursDisclaimer  bool
	LocalTime        time.Time
}

// Resolve derives the shared filters. deviceRegion and defaultRegion are
// consulted, in that order, when the intent carries no valid region.
func Resolve(intent *models.Intent, deviceLocale string, defaultRegion string, now time.Time) Shared {
	uiLang := normalizeUILanguage(intent, deviceLocale)

	region := defaultRegion
	if sanitized, _ := SanitizeRegion(intent.RegionCandidate); sanitized != nil {
		region = *sanitized
	} else if deviceRegion := regionFromLocale(deviceLocale); deviceRegion != "" {
		region = deviceRegion
	}

	return Shared{
		UILanguage:       uiLang,
		ProviderLanguage: providerLanguage(uiLang, region),
		RegionCode:       region,
		PriceLevels:      priceLevels(intent.PriceIntent),
		OpenNowOnly:      intent.OpenNowRequested,
		HoursDisclaimer:  true,
		LocalTime:        now,
	}
}

func normalizeUILanguage(intent *models.Intent, deviceLocale string) models.Language {
	if models.AssistantLanguages[intent.AssistantLanguage] {
		return intent.AssistantLanguage
	}
	if tag, err := language.Parse(deviceLocale); err == nil {
		base, _ := tag.Base()
		candidate := models.Language(base.String())
		if models.AssistantLanguages[candidate] {
			return candidate
		}
	}
	return models.LangEnglish
}

// providerLanguage may differ from the UI language: provider calls inside
// Israel are issued in Hebrew for better recall unless the query language is
// Arabic.
func providerLanguage(uiLang models.Language, region string) string {
	if region == "IL" && uiLang != models.LangArabic {
		return "he"
	}
	return string(uiLang)
}

func regionFromLocale(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		return ""
	}
	region, conf := tag.Region()
	if conf == language.No || !region.IsCountry() {
		return ""
	}
	code := region.String()
	if !ValidRegion(code) {
		return ""
	}
	return code
}

func priceLevels(intent models.PriceIntent) []string {
	switch intent {
	case models.PriceCheap:
		return []string{"PRICE_LEVEL_INEXPENSIVE"}
	case models.PriceMid:
		return []string{"PRICE_LEVEL_MODERATE"}
	case models.PriceExpensive:
		return []string{"PRICE_LEVEL_EXPENSIVE", "PRICE_LEVEL_VERY_EXPENSIVE"}
	default:
		return nil
	}
}
