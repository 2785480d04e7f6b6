package resolve

import (
	"context"

	"github.com/FACorreiaa/loci-food-search/internal/app/models"
)

// SearchMode is the local resolution outcome: how much of the request can be
// answered without asking the user anything.
type SearchMode string

const (
	ModeFull     SearchMode = "FULL"
	ModeAssisted SearchMode = "ASSISTED"
	ModeClarify  SearchMode = "CLARIFY"
)

// CenterSource records where a resolved center came from.
type CenterSource string

const (
	SourceGPS      CenterSource = "gps"
	SourceGeocoded CenterSource = "geocoded"
	SourceUnknown  CenterSource = "unknown"
)

// RadiusSource records which rule produced the radius.
type RadiusSource string

const (
	RadiusExplicit RadiusSource = "explicit"
	RadiusNearMe   RadiusSource = "near_me_default"
	RadiusAnchor   RadiusSource = "anchor_default"
	RadiusFallback RadiusSource = "fallback_default"
)

const (
	nearMeDefaultRadius = 1000
	cityDefaultRadius   = 2000
	streetDefaultRadius = 200
	poiDefaultRadius    = 1000
	gpsDefaultRadius    = 1000
	fallbackRadius      = 1000
)

// GeocodeFunc resolves free text to coordinates. Failures are absorbed by
// the resolver, never raised to the caller.
type GeocodeFunc func(ctx context.Context, query string) (*models.LatLng, error)

type ModeResult struct {
	Mode   SearchMode
	Reason string
}

// ResolveSearchMode decides whether the query is locally executable. The
// rules are strictly ordered: a missing food anchor wins over everything.
func ResolveSearchMode(intent *models.Intent, gpsAvailable bool) ModeResult {
	if !intent.FoodAnchor.Present {
		return ModeResult{Mode: ModeClarify, Reason: "no_food_anchor"}
	}
	if intent.LocationAnchor.Present && !intent.NearMe {
		return ModeResult{Mode: ModeFull, Reason: "explicit_location"}
	}
	if intent.NearMe {
		if gpsAvailable {
			return ModeResult{Mode: ModeAssisted, Reason: "near_me_with_gps"}
		}
		return ModeResult{Mode: ModeClarify, Reason: "near_me_without_gps"}
	}
	return ModeResult{Mode: ModeClarify, Reason: "no_location"}
}

type CenterResult struct {
	Center *models.LatLng
	Source CenterSource
}

// ResolveCenter picks the search center. GPS wins for near-me queries; an
// explicit anchor is geocoded; a geocode failure degrades to unknown.
func ResolveCenter(ctx context.Context, intent *models.Intent, gps *models.LatLng, geocode GeocodeFunc) CenterResult {
	if intent.NearMe && gps != nil {
		return CenterResult{Center: gps, Source: SourceGPS}
	}
	if intent.LocationAnchor.Present && intent.LocationAnchor.Text != "" && geocode != nil {
		loc, err := geocode(ctx, intent.LocationAnchor.Text)
		if err == nil && loc != nil {
			return CenterResult{Center: loc, Source: SourceGeocoded}
		}
	}
	return CenterResult{Source: SourceUnknown}
}

type RadiusResult struct {
	Meters int
	Source RadiusSource
}

// ResolveRadiusMeters picks the hard-filter radius: explicit user distance,
// then the near-me default, then the anchor-type default.
func ResolveRadiusMeters(intent *models.Intent) RadiusResult {
	if intent.ExplicitDistance.Meters != nil && *intent.ExplicitDistance.Meters > 0 {
		return RadiusResult{Meters: *intent.ExplicitDistance.Meters, Source: RadiusExplicit}
	}
	if intent.RadiusMeters != nil && *intent.RadiusMeters > 0 {
		return RadiusResult{Meters: *intent.RadiusMeters, Source: RadiusExplicit}
	}
	if intent.NearMe {
		return RadiusResult{Meters: nearMeDefaultRadius, Source: RadiusNearMe}
	}
	switch intent.LocationAnchor.Type {
	case models.AnchorCity:
		return RadiusResult{Meters: cityDefaultRadius, Source: RadiusAnchor}
	case models.AnchorStreet:
		return RadiusResult{Meters: streetDefaultRadius, Source: RadiusAnchor}
	case models.AnchorPOI:
		return RadiusResult{Meters: poiDefaultRadius, Source: RadiusAnchor}
	case models.AnchorGPS:
		return RadiusResult{Meters: gpsDefaultRadius, Source: RadiusAnchor}
	}
	return RadiusResult{Meters: fallbackRadius, Source: RadiusFallback}
}
