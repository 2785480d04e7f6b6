package places

import (
	"github.com/FACorreiaa/loci-food-search/internal/app/models"
)

// Normalize maps a provider place onto the internal result shape. Category
// derivation prefers primaryType, then scans types with the same precedence,
// and defaults to restaurant. An unverified openNow stays UNKNOWN; it is
// never guessed.
func Normalize(raw RawPlace) models.PlaceResult {
	return models.PlaceResult{
		ID:          raw.ID,
		Name:        raw.DisplayName,
		Address:     raw.FormattedAddress,
		Location:    raw.Location,
		Rating:      raw.Rating,
		RatingCount: raw.UserRatingCount,
		Category:    categoryOf(raw),
		OpenNow:     openStateOf(raw.OpenNow),
	}
}

func categoryOf(raw RawPlace) models.PlaceCategory {
	if cat, ok := categoryForType(raw.PrimaryType); ok {
		return cat
	}
	for _, t := range raw.Types {
		if cat, ok := categoryForType(t); ok {
			return cat
		}
	}
	return models.CategoryRestaurant
}

func categoryForType(t string) (models.PlaceCategory, bool) {
	switch t {
	case "cafe", "coffee_shop":
		return models.CategoryCafe, true
	case "bakery":
		return models.CategoryBakery, true
	case "restaurant":
		return models.CategoryRestaurant, true
	}
	return "", false
}

func openStateOf(openNow *bool) models.OpenState {
	if openNow == nil {
		return models.OpenUnknown
	}
	if *openNow {
		return models.OpenYes
	}
	return models.OpenNo
}
