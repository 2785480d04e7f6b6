package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-food-search/internal/app/models"
)

const (
	placesBaseURL  = "https://places.googleapis.com/v1"
	geocodeBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

	// Field mask for both search endpoints. Requesting more fields raises the
	// per-call billing tier.
	placesFieldMask = "places.id,places.displayName,places.formattedAddress,places.location," +
		"places.rating,places.userRatingCount,places.primaryType,places.types," +
		"places.currentOpeningHours.openNow,nextPageToken"
)

// GoogleClient talks to the Places API (New) and the Geocoding API.
type GoogleClient struct {
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewGoogleClient(apiKey string, logger *zap.Logger) *GoogleClient {
	return &GoogleClient{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

type googlePlace struct {
	ID          string `json:"id"`
	DisplayName struct {
		Text string `json:"text"`
	} `json:"displayName"`
	FormattedAddress string `json:"formattedAddress"`
	Location         struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	Rating              float64  `json:"rating"`
	UserRatingCount     int      `json:"userRatingCount"`
	PrimaryType         string   `json:"primaryType"`
	Types               []string `json:"types"`
	CurrentOpeningHours *struct {
		OpenNow *bool `json:"openNow"`
	} `json:"currentOpeningHours"`
}

type googleSearchResponse struct {
	Places        []googlePlace `json:"places"`
	NextPageToken string        `json:"nextPageToken"`
}

func (c *GoogleClient) TextSearch(ctx context.Context, req TextSearchRequest) (*Page, error) {
	ctx, span := otel.Tracer("PlacesClient").Start(ctx, "TextSearch", trace.WithAttributes(
		attribute.Bool("paged", req.PageToken != ""),
	))
	defer span.End()

	body := map[string]any{
		"textQuery":           req.TextQuery,
		"languageCode":        req.LanguageCode,
		"regionCode":          req.RegionCode,
		"includedType":        "restaurant",
		"strictTypeFiltering": false,
	}
	if req.PageToken != "" {
		body["pageToken"] = req.PageToken
	}
	if req.OpenNow {
		body["openNow"] = true
	}
	if len(req.PriceLevels) > 0 {
		body["priceLevels"] = req.PriceLevels
	}
	if req.Bias != nil {
		body["locationBias"] = map[string]any{
			"circle": map[string]any{
				"center": map[string]any{
					"latitude":  req.Bias.Center.Lat,
					"longitude": req.Bias.Center.Lng,
				},
				"radius": float64(req.Bias.RadiusMeters),
			},
		}
	}

	page, err := c.searchCall(ctx, placesBaseURL+"/places:searchText", body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "text search failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("places.count", len(page.Places)))
	span.SetStatus(codes.Ok, "ok")
	return page, nil
}

func (c *GoogleClient) NearbySearch(ctx context.Context, req NearbySearchRequest) (*Page, error) {
	ctx, span := otel.Tracer("PlacesClient").Start(ctx, "NearbySearch", trace.WithAttributes(
		attribute.Int("radius_meters", req.RadiusMeters),
	))
	defer span.End()

	// The nearby endpoint has no keyword parameter; the keyword rides on the
	// text endpoint with a tight location restriction instead.
	body := map[string]any{
		"textQuery":    req.Keyword,
		"languageCode": req.LanguageCode,
		"regionCode":   req.RegionCode,
		"locationBias": map[string]any{
			"circle": map[string]any{
				"center": map[string]any{
					"latitude":  req.Center.Lat,
					"longitude": req.Center.Lng,
				},
				"radius": float64(req.RadiusMeters),
			},
		},
		"rankPreference": "DISTANCE",
	}
	if req.OpenNow {
		body["openNow"] = true
	}

	page, err := c.searchCall(ctx, placesBaseURL+"/places:searchText", body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "nearby search failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("places.count", len(page.Places)))
	span.SetStatus(codes.Ok, "ok")
	return page, nil
}

func (c *GoogleClient) searchCall(ctx context.Context, endpoint string, body map[string]any) (*Page, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-Api-Key", c.apiKey)
	httpReq.Header.Set("X-Goog-FieldMask", placesFieldMask)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("places provider error",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", raw[:min(len(raw), 512)]))
		return nil, fmt.Errorf("places provider: status %d", resp.StatusCode)
	}

	var parsed googleSearchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("places provider: decode response: %w", err)
	}

	page := &Page{NextPageToken: parsed.NextPageToken}
	for _, p := range parsed.Places {
		rp := RawPlace{
			ID:               p.ID,
			DisplayName:      p.DisplayName.Text,
			FormattedAddress: p.FormattedAddress,
			Location:         models.LatLng{Lat: p.Location.Latitude, Lng: p.Location.Longitude},
			Rating:           p.Rating,
			UserRatingCount:  p.UserRatingCount,
			PrimaryType:      p.PrimaryType,
			Types:            p.Types,
		}
		if p.CurrentOpeningHours != nil {
			rp.OpenNow = p.CurrentOpeningHours.OpenNow
		}
		page.Places = append(page.Places, rp)
	}
	return page, nil
}

func (c *GoogleClient) Geocode(ctx context.Context, query, regionCode string) (*models.LatLng, error) {
	ctx, span := otel.Tracer("PlacesClient").Start(ctx, "Geocode")
	defer span.End()

	params := url.Values{}
	params.Set("address", query)
	params.Set("region", regionCode)
	params.Set("key", c.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, geocodeBaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "geocode request failed")
		return nil, err
	}
	defer resp.Body.Close()

	var parsed struct {
		Status  string `json:"status"`
		Results []struct {
			Geometry struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
			} `json:"geometry"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("geocode: decode response: %w", err)
	}
	if parsed.Status != "OK" || len(parsed.Results) == 0 {
		span.SetStatus(codes.Error, "no geocode result")
		return nil, fmt.Errorf("geocode: status %s", parsed.Status)
	}

	loc := parsed.Results[0].Geometry.Location
	span.SetStatus(codes.Ok, "ok")
	return &models.LatLng{Lat: loc.Lat, Lng: loc.Lng}, nil
}
