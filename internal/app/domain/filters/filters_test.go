package filters

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/FACorreiaa/loci-food-search/internal/app/models"
)

func strPtr(s string) *string { return &s }

func TestSanitizeRegion(t *testing.T) {
	tests := []struct {
		name        string
		candidate   *string
		wantNil     bool
		wantChanged bool
	}{
		{"nil stays nil", nil, true, false},
		{"valid region kept", strPtr("IL"), false, false},
		{"invalid code coerced", strPtr("XX"), true, true},
		{"lowercase rejected", strPtr("il"), true, true},
		{"three letters rejected", strPtr("ISR"), true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := SanitizeRegion(tt.candidate)
			assert.Equal(t, tt.wantNil, got == nil)
			assert.Equal(t, tt.wantChanged, changed)
		})
	}
}

func TestCanonicalCity(t *testing.T) {
	for _, alias := range []string{"tel aviv", "Tel Aviv", "תל אביב", "تل أبيب", "tel aviv-yafo"} {
		key, ok := CanonicalCity(alias)
		assert.True(t, ok, alias)
		assert.Equal(t, "tel_aviv", key, alias)
	}

	_, ok := CanonicalCity("atlantis")
	assert.False(t, ok)
}

func TestCompareCities(t *testing.T) {
	assert.Equal(t, CitySame, CompareCities("תל אביב", "Tel Aviv"))
	assert.Equal(t, CityDifferent, CompareCities("tel aviv", "חיפה"))
	assert.Equal(t, CityUnknown, CompareCities("tel aviv", "small village"))
	assert.Equal(t, CityUnknown, CompareCities("somewhere", "tel aviv"))
}

func TestResolve(t *testing.T) {
	now := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)

	t.Run("valid region from intent wins", func(t *testing.T) {
		intent := &models.Intent{
			AssistantLanguage: models.LangHebrew,
			RegionCandidate:   strPtr("IL"),
			PriceIntent:       models.PriceAny,
		}
		shared := Resolve(intent, "en-US", "IL", now)
		assert.Equal(t, "IL", shared.RegionCode)
		assert.Equal(t, models.LangHebrew, shared.UILanguage)
		assert.Equal(t, "he", shared.ProviderLanguage)
	})

	t.Run("invalid region falls back to device then default", func(t *testing.T) {
		intent := &models.Intent{
			AssistantLanguage: models.LangEnglish,
			RegionCandidate:   strPtr("ZZ"),
			PriceIntent:       models.PriceAny,
		}
		shared := Resolve(intent, "fr-FR", "IL", now)
		assert.Equal(t, "FR", shared.RegionCode)

		shared = Resolve(intent, "", "IL", now)
		assert.Equal(t, "IL", shared.RegionCode)
	})

	t.Run("arabic keeps provider language", func(t *testing.T) {
		intent := &models.Intent{
			AssistantLanguage: models.LangArabic,
			RegionCandidate:   strPtr("IL"),
			PriceIntent:       models.PriceAny,
		}
		shared := Resolve(intent, "", "IL", now)
		assert.Equal(t, "ar", shared.ProviderLanguage)
	})

	t.Run("price intent maps to provider levels", func(t *testing.T) {
		intent := &models.Intent{
			AssistantLanguage: models.LangEnglish,
			PriceIntent:       models.PriceCheap,
		}
		shared := Resolve(intent, "", "IL", now)
		assert.Equal(t, []string{"PRICE_LEVEL_INEXPENSIVE"}, shared.PriceLevels)

		intent.PriceIntent = models.PriceAny
		shared = Resolve(intent, "", "IL", now)
		assert.Nil(t, shared.PriceLevels)
	})

	t.Run("open now flag carried", func(t *testing.T) {
		intent := &models.Intent{
			AssistantLanguage: models.LangEnglish,
			OpenNowRequested:  true,
			PriceIntent:       models.PriceAny,
		}
		shared := Resolve(intent, "", "IL", now)
		assert.True(t, shared.OpenNowOnly)
	})
}
