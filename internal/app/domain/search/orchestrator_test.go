package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/FACorreiaa/loci-food-search/internal/app/ai"
	"github.com/FACorreiaa/loci-food-search/internal/app/domain/chatback"
	"github.com/FACorreiaa/loci-food-search/internal/app/domain/gate"
	"github.com/FACorreiaa/loci-food-search/internal/app/domain/grouping"
	"github.com/FACorreiaa/loci-food-search/internal/app/domain/intent"
	"github.com/FACorreiaa/loci-food-search/internal/app/domain/places"
	"github.com/FACorreiaa/loci-food-search/internal/app/domain/plan"
	"github.com/FACorreiaa/loci-food-search/internal/app/domain/rse"
	"github.com/FACorreiaa/loci-food-search/internal/app/jobs"
	"github.com/FACorreiaa/loci-food-search/internal/app/models"
	"github.com/FACorreiaa/loci-food-search/internal/app/session"
	"github.com/FACorreiaa/loci-food-search/internal/pkg/config"
)

type fakeLLM struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
}

func (f *fakeLLM) GenerateResponse(_ context.Context, _ string, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
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

var _ ai.Client = (*fakeLLM)(nil)

type fakeProvider struct {
	mu          sync.Mutex
	textCalls   int
	nearbyCalls int
	results     []places.RawPlace
	blockOnCtx  bool
	started     chan struct{}
	geocodeLoc  *models.LatLng
}

func (f *fakeProvider) TextSearch(ctx context.Context, _ places.TextSearchRequest) (*places.Page, error) {
	f.mu.Lock()
	f.textCalls++
	started := f.started
	f.started = nil
	f.mu.Unlock()
	if started != nil {
		close(started)
	}
	if f.blockOnCtx {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &places.Page{Places: f.results}, nil
}

func (f *fakeProvider) NearbySearch(ctx context.Context, _ places.NearbySearchRequest) (*places.Page, error) {
	f.mu.Lock()
	f.nearbyCalls++
	f.mu.Unlock()
	if f.blockOnCtx {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &places.Page{Places: f.results}, nil
}

func (f *fakeProvider) Geocode(_ context.Context, _, _ string) (*models.LatLng, error) {
	if f.geocodeLoc == nil {
		return nil, errors.New("geocode unavailable")
	}
	return f.geocodeLoc, nil
}

var _ places.Client = (*fakeProvider)(nil)

const textSearchIntentJSON = `{
	"route": "TEXTSEARCH",
	"reason": "food query with city",
	"confidence": 0.92,
	"foodAnchor": {"type": "cuisine", "present": true},
	"locationAnchor": {"text": "tel aviv", "type": "city", "present": true},
	"nearMe": false,
	"explicitDistance": {"meters": null, "originalText": null},
	"language": "en",
	"languageConfidence": 0.99,
	"assistantLanguage": "en",
	"regionCandidate": "IL",
	"regionConfidence": 0.9,
	"regionReason": "city in israel",
	"cityText": "tel aviv",
	"landmarkText": null,
	"radiusMeters": null,
	"openNowRequested": false,
	"priceIntent": "any",
	"distanceIntent": "",
	"qualityIntent": "",
	"occasion": "",
	"cuisineKey": "pizza"
}`

const noAnchorIntentJSON = `{
	"route": "TEXTSEARCH",
	"reason": "food query without location",
	"confidence": 0.85,
	"foodAnchor": {"type": "cuisine", "present": true},
	"locationAnchor": {"text": "", "type": "empty", "present": false},
	"nearMe": false,
	"explicitDistance": {"meters": null, "originalText": null},
	"language": "en",
	"languageConfidence": 0.99,
	"assistantLanguage": "en",
	"regionCandidate": null,
	"regionConfidence": 0,
	"regionReason": "",
	"cityText": null,
	"landmarkText": null,
	"radiusMeters": null,
	"openNowRequested": false,
	"priceIntent": "any",
	"distanceIntent": "",
	"qualityIntent": "",
	"occasion": "",
	"cuisineKey": "pizza"
}`

// openNowIntentJSON is textSearchIntentJSON with the open-now soft filter
// requested, everything else identical.
const openNowIntentJSON = `{
	"route": "TEXTSEARCH",
	"reason": "food query with city, open now",
	"confidence": 0.92,
	"foodAnchor": {"type": "cuisine", "present": true},
	"locationAnchor": {"text": "tel aviv", "type": "city", "present": true},
	"nearMe": false,
	"explicitDistance": {"meters": null, "originalText": null},
	"language": "en",
	"languageConfidence": 0.95,
	"assistantLanguage": "en",
	"regionCandidate": "IL",
	"regionConfidence": 0.9,
	"regionReason": "city in israel",
	"cityText": "tel aviv",
	"landmarkText": null,
	"radiusMeters": null,
	"openNowRequested": true,
	"priceIntent": "any",
	"distanceIntent": "",
	"qualityIntent": "",
	"occasion": "",
	"cuisineKey": "pizza"
}`

func telAvivPlaces(n int) []places.RawPlace {
	out := make([]places.RawPlace, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, places.RawPlace{
			ID:               fmt.Sprintf("place-%d", i),
			DisplayName:      fmt.Sprintf("Pizzeria %d", i),
			FormattedAddress: fmt.Sprintf("%d Dizengoff St, Tel Aviv, Israel", i+1),
			Location:         models.LatLng{Lat: 32.08, Lng: 34.78},
			Rating:           4.2,
			UserRatingCount:  120,
			PrimaryType:      "restaurant",
		})
	}
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		JobStore: config.JobStoreConfig{
			MemoryTTL:      10 * time.Minute,
			HeartbeatEvery: 50 * time.Millisecond,
			StaleRunning:   time.Minute,
			FreshWindow:    5 * time.Second,
		},
		StreetSearch: config.StreetSearchConfig{
			ExactRadiusMeters:  200,
			NearbyRadiusMeters: 400,
			MinExactResults:    1,
			MinNearbyResults:   1,
		},
		CacheGuardTTL:   5 * time.Minute,
		RequestDeadline: 5 * time.Second,
		ShutdownGrace:   time.Second,
		DefaultRegion:   "IL",
	}
}

func newTestOrchestrator(t *testing.T, llm ai.Client, provider places.Client) (*Orchestrator, jobs.Store) {
	t.Helper()
	logger := zap.NewNop()
	cfg := testConfig()

	store := jobs.NewMemoryStore(cfg.JobStore.MemoryTTL, logger)
	sessions, err := session.NewStore(logger)
	require.NoError(t, err)
	intents, err := intent.NewService(llm, logger, 200*time.Millisecond, time.Millisecond)
	require.NoError(t, err)

	orch := NewOrchestrator(OrchestratorDeps{
		Store:    store,
		Sessions: sessions,
		Gate:     gate.New(logger),
		Intents:  intents,
		Mapper:   plan.NewMapper(llm, logger, 200*time.Millisecond),
		Executor: places.NewExecutor(provider, provider, logger),
		Geocoder: provider,
		Guard:    NewCacheGuard(cfg.CacheGuardTTL, logger),
		Grouper:  grouping.New(cfg.StreetSearch.ExactRadiusMeters, cfg.StreetSearch.NearbyRadiusMeters, cfg.StreetSearch.MinExactResults, cfg.StreetSearch.MinNearbyResults, logger),
		Engine:   rse.New(logger),
		Chat:     chatback.New(nil, logger, time.Second),
		Config:   cfg,
		Logger:   logger,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		orch.Shutdown(ctx)
	})
	return orch, store
}

func waitTerminal(t *testing.T, store jobs.Store, requestID string) *models.Job {
	t.Helper()
	var job *models.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = store.GetJob(context.Background(), requestID)
		return err == nil && job != nil && job.Status.IsTerminal()
	}, 3*time.Second, 10*time.Millisecond)
	return job
}

// scriptedLLM answers each intent extraction with the given JSON and fails
// the mapper call that follows, exercising the deterministic mapper fallback.
func scriptedLLM(intentJSONs ...string) *fakeLLM {
	var responses []string
	var errs []error
	for _, j := range intentJSONs {
		responses = append(responses, j, "")
		errs = append(errs, nil, errors.New("mapper llm unavailable"))
	}
	return &fakeLLM{responses: responses, errs: errs}
}

func TestSubmitEndToEndSuccess(t *testing.T) {
	provider := &fakeProvider{results: telAvivPlaces(3)}
	orch, store := newTestOrchestrator(t, scriptedLLM(textSearchIntentJSON), provider)

	requestID, reused, err := orch.Submit(context.Background(), &models.SearchRequest{
		Query:     "pizza in tel aviv",
		SessionID: "s1",
	})
	require.NoError(t, err)
	assert.False(t, reused)
	require.NotEmpty(t, requestID)

	job := waitTerminal(t, store, requestID)
	assert.Equal(t, models.StatusDoneSuccess, job.Status)
	assert.Equal(t, models.ProgressDone, job.Progress)

	require.NotNil(t, job.Result)
	assert.Len(t, job.Result.Results, 3)
	assert.Equal(t, models.RouteTextSearch, job.Result.Meta.Route)
	assert.Equal(t, models.LangEnglish, job.Result.Meta.Language)
	assert.Equal(t, "provider", job.Result.Meta.ServedFrom)
	require.NotNil(t, job.Result.Assist)
	assert.Equal(t, models.ChatModeNormal, job.Result.Assist.Mode)
	assert.NotEmpty(t, job.Result.Assist.Message)
}

func TestSubmitEmptyQueryClarifies(t *testing.T) {
	orch, store := newTestOrchestrator(t, &fakeLLM{}, &fakeProvider{})

	requestID, _, err := orch.Submit(context.Background(), &models.SearchRequest{
		Query:     "   ",
		SessionID: "s1",
	})
	require.NoError(t, err)

	job := waitTerminal(t, store, requestID)
	assert.Equal(t, models.StatusDoneClarify, job.Status)
	require.NotNil(t, job.Result)
	require.NotNil(t, job.Result.Assist)
	assert.Equal(t, models.ChatModeRecovery, job.Result.Assist.Mode)
	assert.Equal(t, "QUERY_REQUIRED", job.Result.Assist.FailureReason)
	assert.Empty(t, job.Result.Results)
}

func TestSubmitNonFoodQueryStops(t *testing.T) {
	orch, store := newTestOrchestrator(t, &fakeLLM{}, &fakeProvider{})

	requestID, _, err := orch.Submit(context.Background(), &models.SearchRequest{
		Query:     "buy a new laptop",
		SessionID: "s1",
	})
	require.NoError(t, err)

	job := waitTerminal(t, store, requestID)
	assert.Equal(t, models.StatusDoneStopped, job.Status)
	require.NotNil(t, job.Result)
	require.NotNil(t, job.Result.Assist)
	assert.Equal(t, models.ChatModeRecovery, job.Result.Assist.Mode)
}

func TestSubmitMissingLocationAndCityClarifies(t *testing.T) {
	orch, store := newTestOrchestrator(t, scriptedLLM(noAnchorIntentJSON), &fakeProvider{})

	requestID, _, err := orch.Submit(context.Background(), &models.SearchRequest{
		Query:     "pizza",
		SessionID: "s1",
	})
	require.NoError(t, err)

	job := waitTerminal(t, store, requestID)
	assert.Equal(t, models.StatusDoneClarify, job.Status)
	require.NotNil(t, job.Result)
	require.NotNil(t, job.Result.Assist)
	assert.Equal(t, "LOCATION_REQUIRED", job.Result.Assist.FailureReason)
}

func TestIdempotentResubmissionReusesJob(t *testing.T) {
	provider := &fakeProvider{results: telAvivPlaces(2)}
	orch, _ := newTestOrchestrator(t, scriptedLLM(textSearchIntentJSON), provider)

	first, reused, err := orch.Submit(context.Background(), &models.SearchRequest{
		Query:     "pizza in tel aviv",
		SessionID: "s1",
	})
	require.NoError(t, err)
	assert.False(t, reused)

	second, reused, err := orch.Submit(context.Background(), &models.SearchRequest{
		Query:     "pizza in tel aviv",
		SessionID: "s1",
	})
	require.NoError(t, err)
	assert.True(t, reused)
	assert.Equal(t, first, second)
}

func TestRepeatQueryServedFromCache(t *testing.T) {
	provider := &fakeProvider{results: telAvivPlaces(2)}
	llm := scriptedLLM(textSearchIntentJSON, textSearchIntentJSON)
	orch, store := newTestOrchestrator(t, llm, provider)

	// Different sessions so the idempotency index does not short-circuit.
	first, _, err := orch.Submit(context.Background(), &models.SearchRequest{
		Query:     "pizza in tel aviv",
		SessionID: "s1",
	})
	require.NoError(t, err)
	job := waitTerminal(t, store, first)
	require.Equal(t, models.StatusDoneSuccess, job.Status)
	assert.Equal(t, "provider", job.Result.Meta.ServedFrom)

	second, _, err := orch.Submit(context.Background(), &models.SearchRequest{
		Query:     "pizza in tel aviv",
		SessionID: "s2",
	})
	require.NoError(t, err)
	job = waitTerminal(t, store, second)
	require.Equal(t, models.StatusDoneSuccess, job.Status)
	assert.Equal(t, "cache", job.Result.Meta.ServedFrom)

	provider.mu.Lock()
	defer provider.mu.Unlock()
	assert.Equal(t, 1, provider.textCalls)
}

func TestSoftFilterRequeryServedFromPool(t *testing.T) {
	open := true
	closed := false
	raw := telAvivPlaces(3)
	raw[0].OpenNow = &open
	raw[1].OpenNow = &closed
	provider := &fakeProvider{results: raw}
	llm := scriptedLLM(textSearchIntentJSON, openNowIntentJSON)
	orch, store := newTestOrchestrator(t, llm, provider)

	first, _, err := orch.Submit(context.Background(), &models.SearchRequest{
		Query:     "pizza in tel aviv",
		SessionID: "s1",
	})
	require.NoError(t, err)
	job := waitTerminal(t, store, first)
	require.Equal(t, models.StatusDoneSuccess, job.Status)
	require.Len(t, job.Result.Results, 3)

	// Same target, tightened to open-now: served from the previous candidate
	// pool without another provider call.
	second, reused, err := orch.Submit(context.Background(), &models.SearchRequest{
		Query:     "pizza in tel aviv open now",
		SessionID: "s1",
	})
	require.NoError(t, err)
	assert.False(t, reused)
	job = waitTerminal(t, store, second)
	require.Equal(t, models.StatusDoneSuccess, job.Status)
	assert.Equal(t, "pool", job.Result.Meta.ServedFrom)
	require.Len(t, job.Result.Results, 1)
	assert.Equal(t, models.OpenYes, job.Result.Results[0].OpenNow)

	provider.mu.Lock()
	defer provider.mu.Unlock()
	assert.Equal(t, 1, provider.textCalls)
}

func TestNearestDroppedDistanceMeasuresClosestResult(t *testing.T) {
	provider := &fakeProvider{geocodeLoc: &models.LatLng{Lat: 32.08, Lng: 34.78}}
	orch, _ := newTestOrchestrator(t, &fakeLLM{}, provider)

	dropped := []models.PlaceResult{
		{ID: "far", Location: models.LatLng{Lat: 32.16, Lng: 34.78}},   // ~8.9 km
		{ID: "close", Location: models.LatLng{Lat: 32.095, Lng: 34.78}}, // ~1.7 km
	}
	d := orch.nearestDroppedDistance(context.Background(), "tel aviv", "IL", dropped)
	require.NotNil(t, d)
	assert.InDelta(t, 1670, *d, 100)
}

func TestNearestDroppedDistanceNilOnGeocodeFailure(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &fakeLLM{}, &fakeProvider{})

	d := orch.nearestDroppedDistance(context.Background(), "tel aviv", "IL",
		[]models.PlaceResult{{ID: "a", Location: models.LatLng{Lat: 32.1, Lng: 34.78}}})
	assert.Nil(t, d)
}

func TestCancelStopsRunningJob(t *testing.T) {
	started := make(chan struct{})
	provider := &fakeProvider{blockOnCtx: true, started: started}
	orch, store := newTestOrchestrator(t, scriptedLLM(textSearchIntentJSON), provider)

	requestID, _, err := orch.Submit(context.Background(), &models.SearchRequest{
		Query:     "pizza in tel aviv",
		SessionID: "s1",
	})
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("provider call never started")
	}
	assert.True(t, orch.Cancel(requestID))

	job := waitTerminal(t, store, requestID)
	assert.Equal(t, models.StatusDoneStopped, job.Status)
}

func TestShutdownStopsInFlightJobs(t *testing.T) {
	started := make(chan struct{})
	provider := &fakeProvider{blockOnCtx: true, started: started}
	orch, store := newTestOrchestrator(t, scriptedLLM(textSearchIntentJSON), provider)

	requestID, _, err := orch.Submit(context.Background(), &models.SearchRequest{
		Query:     "pizza in tel aviv",
		SessionID: "s1",
	})
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("provider call never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	orch.Shutdown(ctx)

	job, err := store.GetJob(context.Background(), requestID)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, models.StatusDoneStopped, job.Status)
}

func TestSubmitAfterShutdownDoesNotRun(t *testing.T) {
	provider := &fakeProvider{results: telAvivPlaces(1)}
	orch, store := newTestOrchestrator(t, scriptedLLM(textSearchIntentJSON), provider)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	orch.Shutdown(ctx)

	requestID, _, err := orch.Submit(context.Background(), &models.SearchRequest{
		Query:     "pizza in tel aviv",
		SessionID: "s1",
	})
	require.NoError(t, err)

	job, err := store.GetJob(context.Background(), requestID)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, models.StatusDoneStopped, job.Status)
}
