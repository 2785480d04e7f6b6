package places

import (
	"context"

	"github.com/FACorreiaa/loci-food-search/internal/app/models"
)

// RawPlace is the provider's view of a place before normalization.
type RawPlace struct {
	ID               string
	DisplayName      string
	FormattedAddress string
	Location         models.LatLng
	Rating           float64
	UserRatingCount  int
	PrimaryType      string
	Types            []string
	OpenNow          *bool
}

// Page is one provider response page.
type Page struct {
	Places        []RawPlace
	NextPageToken string
}

type TextSearchRequest struct {
	TextQuery    string
	LanguageCode string
	RegionCode   string
	Bias         *models.Bias
	PageToken    string
	OpenNow      bool
	PriceLevels  []string
}

type NearbySearchRequest struct {
	Center       models.LatLng
	RadiusMeters int
	Keyword      string
	LanguageCode string
	RegionCode   string
	OpenNow      bool
}

// Client is the places provider boundary. Implementations must honor ctx
// deadlines and return provider errors unwrapped for classification upstream.
type Client interface {
	TextSearch(ctx context.Context, req TextSearchRequest) (*Page, error)
	NearbySearch(ctx context.Context, req NearbySearchRequest) (*Page, error)
	Geocode(ctx context.Context, query, regionCode string) (*models.LatLng, error)
}
