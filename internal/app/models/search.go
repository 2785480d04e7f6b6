package models

import (
	"time"
)

// Route is the pipeline routing decision produced by the intent stage.
type Route string

const (
	RouteTextSearch Route = "TEXTSEARCH"
	RouteNearby     Route = "NEARBY"
	RouteLandmark   Route = "LANDMARK"
	RouteClarify    Route = "CLARIFY"
)

// Language codes the assistant is allowed to answer in.
type Language string

const (
	LangHebrew  Language = "he"
	LangEnglish Language = "en"
	LangRussian Language = "ru"
	LangArabic  Language = "ar"
	LangFrench  Language = "fr"
	LangSpanish Language = "es"
)

// AssistantLanguages is the closed set accepted from the LLM. Anything
// outside it collapses to English.
var AssistantLanguages = map[Language]bool{
	LangHebrew: true, LangEnglish: true, LangRussian: true,
	LangArabic: true, LangFrench: true, LangSpanish: true,
}

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// SearchRequest is a raw submission before any pipeline stage has run.
type SearchRequest struct {
	Query          string  `json:"query" binding:"required"`
	SessionID      string  `json:"sessionId"`
	Locale         string  `json:"locale,omitempty"`
	UserLocation   *LatLng `json:"userLocation,omitempty"`
	RequestID      string  `json:"requestId,omitempty"`
	IdempotencyKey string  `json:"idempotencyKey,omitempty"`
	ClearContext   bool    `json:"clearContext,omitempty"`
	UserID         string  `json:"-"`
}

// AnchorType classifies the location anchor of a query.
type AnchorType string

const (
	AnchorCity   AnchorType = "city"
	AnchorStreet AnchorType = "street"
	AnchorPOI    AnchorType = "poi"
	AnchorGPS    AnchorType = "gps"
	AnchorEmpty  AnchorType = "empty"
)

type FoodAnchor struct {
	Type    string `json:"type"`
	Present bool   `json:"present"`
}

type LocationAnchor struct {
	Text    string     `json:"text"`
	Type    AnchorType `json:"type"`
	Present bool       `json:"present"`
}

type ExplicitDistance struct {
	Meters       *int    `json:"meters"`
	OriginalText *string `json:"originalText"`
}

// PriceIntent is the coarse price preference extracted from the query.
type PriceIntent string

const (
	PriceAny       PriceIntent = "any"
	PriceCheap     PriceIntent = "cheap"
	PriceMid       PriceIntent = "mid"
	PriceExpensive PriceIntent = "expensive"
)

// Intent is the schema-validated interpretation of the user's query.
type Intent struct {
	Route              Route            `json:"route"`
	Reason             string           `json:"reason"`
	Confidence         float64          `json:"confidence"`
	FoodAnchor         FoodAnchor       `json:"foodAnchor"`
	LocationAnchor     LocationAnchor   `json:"locationAnchor"`
	NearMe             bool             `json:"nearMe"`
	ExplicitDistance   ExplicitDistance `json:"explicitDistance"`
	Language           string           `json:"language"`
	LanguageConfidence float64          `json:"languageConfidence"`
	AssistantLanguage  Language         `json:"assistantLanguage"`
	RegionCandidate    *string          `json:"regionCandidate"`
	RegionConfidence   float64          `json:"regionConfidence"`
	RegionReason       string           `json:"regionReason"`
	CityText           *string          `json:"cityText,omitempty"`
	LandmarkText       *string          `json:"landmarkText,omitempty"`
	RadiusMeters       *int             `json:"radiusMeters,omitempty"`
	OpenNowRequested   bool             `json:"openNowRequested"`
	PriceIntent        PriceIntent      `json:"priceIntent"`
	DistanceIntent     string           `json:"distanceIntent,omitempty"`
	QualityIntent      string           `json:"qualityIntent,omitempty"`
	Occasion           string           `json:"occasion,omitempty"`
	CuisineKey         string           `json:"cuisineKey,omitempty"`
	Fallback           bool             `json:"-"`
}

// Strictness tells the provider executor whether an empty result set may be
// widened by relaxing the query.
type Strictness string

const (
	Strict       Strictness = "STRICT"
	RelaxIfEmpty Strictness = "RELAX_IF_EMPTY"
)

type Bias struct {
	Center       LatLng `json:"center"`
	RadiusMeters int    `json:"radiusMeters"`
}

type TextSearchPlan struct {
	TextQuery        string     `json:"textQuery"`
	ProviderLanguage string     `json:"providerLanguage"`
	RegionCode       string     `json:"regionCode"`
	Bias             *Bias      `json:"bias,omitempty"`
	CityText         *string    `json:"cityText,omitempty"`
	CuisineKey       *string    `json:"cuisineKey,omitempty"`
	Strictness       Strictness `json:"strictness"`
}

type NearbyPlan struct {
	Center           LatLng `json:"center"`
	RadiusMeters     int    `json:"radiusMeters"`
	Keyword          string `json:"keyword"`
	ProviderLanguage string `json:"providerLanguage"`
	RegionCode       string `json:"regionCode"`
}

// AfterGeocode selects the provider call that follows landmark resolution.
type AfterGeocode string

const (
	AfterGeocodeNearby       AfterGeocode = "nearbySearch"
	AfterGeocodeTextWithBias AfterGeocode = "textSearchWithBias"
)

type LandmarkPlan struct {
	GeocodeQuery   string       `json:"geocodeQuery"`
	AfterGeocode   AfterGeocode `json:"afterGeocode"`
	LandmarkID     *string      `json:"landmarkId,omitempty"`
	ResolvedLatLng *LatLng      `json:"resolvedLatLng,omitempty"`
	RadiusMeters   int          `json:"radiusMeters"`
	Keyword        *string      `json:"keyword,omitempty"`
	CuisineKey     *string      `json:"cuisineKey,omitempty"`
	RegionCode     string       `json:"regionCode,omitempty"`
}

// ProviderPlan is a tagged variant: exactly one of the plan pointers matching
// Route is set. Dispatch is by tag, never by reflection.
type ProviderPlan struct {
	Route      Route           `json:"route"`
	TextSearch *TextSearchPlan `json:"textSearch,omitempty"`
	Nearby     *NearbyPlan     `json:"nearby,omitempty"`
	Landmark   *LandmarkPlan   `json:"landmark,omitempty"`
}

// OpenState is a three-valued boolean for facts the provider did not verify.
// An unverified value must stay OpenUnknown, never coerced to yes/no.
type OpenState string

const (
	OpenYes     OpenState = "true"
	OpenNo      OpenState = "false"
	OpenUnknown OpenState = "UNKNOWN"
)

// PlaceCategory is the normalized result category.
type PlaceCategory string

const (
	CategoryRestaurant PlaceCategory = "restaurant"
	CategoryCafe       PlaceCategory = "cafe"
	CategoryBakery     PlaceCategory = "bakery"
)

type PlaceResult struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Address        string        `json:"address"`
	Location       LatLng        `json:"location"`
	Rating         float64       `json:"rating"`
	RatingCount    int           `json:"ratingCount"`
	Category       PlaceCategory `json:"category"`
	OpenNow        OpenState     `json:"openNow"`
	GroupKind      GroupKind     `json:"groupKind,omitempty"`
	DistanceMeters *float64      `json:"distanceMeters,omitempty"`
}

// GroupKind tags a result group produced by street grouping.
type GroupKind string

const (
	GroupExact  GroupKind = "EXACT"
	GroupNearby GroupKind = "NEARBY"
)

type ResultGroup struct {
	Kind         GroupKind     `json:"kind"`
	Label        string        `json:"label"`
	RadiusMeters int           `json:"radiusMeters"`
	Results      []PlaceResult `json:"results"`
}

// JobStatus is the lifecycle state of an async search job. Terminal statuses
// are final: no transition leaves them.
type JobStatus string

const (
	StatusPending     JobStatus = "PENDING"
	StatusRunning     JobStatus = "RUNNING"
	StatusDoneSuccess JobStatus = "DONE_SUCCESS"
	StatusDoneClarify JobStatus = "DONE_CLARIFY"
	StatusDoneStopped JobStatus = "DONE_STOPPED"
	StatusDoneFailed  JobStatus = "DONE_FAILED"
)

// IsTerminal reports whether s admits no further status transitions.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case StatusDoneSuccess, StatusDoneClarify, StatusDoneStopped, StatusDoneFailed:
		return true
	}
	return false
}

// Progress milestones published by the orchestrator.
const (
	ProgressCreated     = 10
	ProgressGate        = 25
	ProgressIntent      = 40
	ProgressProvider    = 60
	ProgressConstraints = 75
	ProgressRanking     = 90
	ProgressDone        = 100
)

type JobError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	ErrorType string `json:"errorType"`
}

// CandidatePool is the raw provider result set cached under job ownership so
// a soft-filter requery can skip the provider entirely.
type CandidatePool struct {
	Candidates    []PlaceResult `json:"candidates"`
	SearchContext string        `json:"searchContext"`
	FetchedAt     time.Time     `json:"fetchedAt"`
	Route         Route         `json:"route"`
}

type Job struct {
	RequestID      string          `json:"requestId"`
	SessionID      string          `json:"sessionId"`
	Query          string          `json:"query"`
	Status         JobStatus       `json:"status"`
	Progress       int             `json:"progress"`
	Result         *SearchResponse `json:"result,omitempty"`
	Error          *JobError       `json:"error,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	OwnerUserID    string          `json:"ownerUserId,omitempty"`
	OwnerSessionID string          `json:"ownerSessionId,omitempty"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
	CandidatePool  *CandidatePool  `json:"candidatePool,omitempty"`
}

// Scenario is one of the closed set of outcome classifications assigned by
// the result state engine.
type Scenario string

const (
	ScenarioExactMatch         Scenario = "exact_match"
	ScenarioLowConfidence      Scenario = "low_confidence"
	ScenarioMissingQuery       Scenario = "missing_query"
	ScenarioMissingLocation    Scenario = "missing_location"
	ScenarioZeroNearbyExists   Scenario = "zero_nearby_exists"
	ScenarioZeroDifferentCity  Scenario = "zero_different_city"
	ScenarioFewClosingSoon     Scenario = "few_closing_soon"
	ScenarioFewAllClosed       Scenario = "few_all_closed"
	ScenarioManyAllClosed      Scenario = "many_all_closed"
	ScenarioClarifyNeeded      Scenario = "clarify_needed"
	ScenarioRepeatUnsuccessful Scenario = "repeat_unsuccessful"
)

type ResultsSummary struct {
	Total       int `json:"total"`
	Exact       int `json:"exact"`
	Nearby      int `json:"nearby"`
	OpenNow     int `json:"openNow"`
	ClosingSoon int `json:"closingSoon"`
}

type FilterStats struct {
	DroppedCount         int     `json:"droppedCount"`
	NearbyCity           *string `json:"nearbyCity,omitempty"`
	NearbyDistanceMeters *int    `json:"nearbyDistance,omitempty"`
}

// FallbackKind identifies a typed recovery option offered to the user.
type FallbackKind string

const (
	FallbackExpandRadius   FallbackKind = "expand_radius"
	FallbackNearbyCity     FallbackKind = "nearby_city"
	FallbackDropConstraint FallbackKind = "drop_constraint"
	FallbackProvideCity    FallbackKind = "provide_city"
	FallbackShareLocation  FallbackKind = "share_location"
	FallbackRephrase       FallbackKind = "rephrase"
)

type FallbackOption struct {
	Kind        FallbackKind `json:"kind"`
	Explanation string       `json:"explanation"`
}

type SuggestedAction struct {
	Kind     string `json:"kind"`
	Label    string `json:"label"`
	Priority int    `json:"priority"`
}

// Guardrails constrain the downstream assistant-message generator.
type Guardrails struct {
	MustMentionCount   bool `json:"mustMentionCount"`
	MustSuggestAction  bool `json:"mustSuggestAction"`
	CanMentionTiming   bool `json:"canMentionTiming"`
	CanMentionLocation bool `json:"canMentionLocation"`
}

// ResponsePlan is the structured outcome the result state engine hands to the
// chatback generator.
type ResponsePlan struct {
	Scenario         Scenario          `json:"scenario"`
	Results          ResultsSummary    `json:"results"`
	Filters          FilterStats       `json:"filters"`
	Fallback         []FallbackOption  `json:"fallback"`
	SuggestedActions []SuggestedAction `json:"suggestedActions"`
	Constraints      Guardrails        `json:"constraints"`
}

// ChatMode distinguishes a normal assistant message from a recovery one.
type ChatMode string

const (
	ChatModeNormal   ChatMode = "NORMAL"
	ChatModeRecovery ChatMode = "RECOVERY"
)

type Assist struct {
	Message       string            `json:"message"`
	Mode          ChatMode          `json:"mode"`
	Actions       []SuggestedAction `json:"actions,omitempty"`
	FailureReason string            `json:"failureReason,omitempty"`
}

type StreetGroupingMeta struct {
	Enabled      bool `json:"enabled"`
	ExactRadius  int  `json:"exactRadius"`
	NearbyRadius int  `json:"nearbyRadius"`
}

type ResponseMeta struct {
	Route          Route               `json:"route"`
	Language       Language            `json:"language"`
	Region         string              `json:"region,omitempty"`
	ServedFrom     string              `json:"servedFrom,omitempty"`
	StreetGrouping *StreetGroupingMeta `json:"streetGrouping,omitempty"`
	TraceID        string              `json:"traceId,omitempty"`
}

// SearchResponse is the terminal payload for a search job, for both result
// and clarification outcomes.
type SearchResponse struct {
	RequestID string        `json:"requestId"`
	Results   []PlaceResult `json:"results"`
	Groups    []ResultGroup `json:"groups,omitempty"`
	Meta      ResponseMeta  `json:"meta"`
	Assist    *Assist       `json:"assist,omitempty"`
}
