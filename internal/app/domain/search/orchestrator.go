package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-food-search/internal/app/domain/chatback"
	"github.com/FACorreiaa/loci-food-search/internal/app/domain/filters"
	"github.com/FACorreiaa/loci-food-search/internal/app/domain/gate"
	"github.com/FACorreiaa/loci-food-search/internal/app/domain/grouping"
	"github.com/FACorreiaa/loci-food-search/internal/app/domain/intent"
	"github.com/FACorreiaa/loci-food-search/internal/app/domain/places"
	"github.com/FACorreiaa/loci-food-search/internal/app/domain/plan"
	"github.com/FACorreiaa/loci-food-search/internal/app/domain/resolve"
	"github.com/FACorreiaa/loci-food-search/internal/app/domain/rse"
	"github.com/FACorreiaa/loci-food-search/internal/app/jobs"
	"github.com/FACorreiaa/loci-food-search/internal/app/models"
	"github.com/FACorreiaa/loci-food-search/internal/app/observability/metrics"
	"github.com/FACorreiaa/loci-food-search/internal/app/session"
	"github.com/FACorreiaa/loci-food-search/internal/pkg/config"
)

// Orchestrator threads a submission through the pipeline stages, publishes
// progress milestones, and owns per-request cancellation.
type Orchestrator struct {
	store    jobs.Store
	sessions *session.Store
	gate     *gate.Gate
	deepGate *gate.DeepGate
	intents  *intent.Service
	mapper   *plan.Mapper
	executor *places.Executor
	geocoder places.Geocoder
	guard    *CacheGuard
	grouper  *grouping.Grouper
	engine   *rse.Engine
	chat     *chatback.Generator
	cfg      *config.Config
	logger   *zap.Logger

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
	wg       sync.WaitGroup
	closed   bool
}

type OrchestratorDeps struct {
	Store    jobs.Store
	Sessions *session.Store
	Gate     *gate.Gate
	DeepGate *gate.DeepGate
	Intents  *intent.Service
	Mapper   *plan.Mapper
	Executor *places.Executor
	Geocoder places.Geocoder
	Guard    *CacheGuard
	Grouper  *grouping.Grouper
	Engine   *rse.Engine
	Chat     *chatback.Generator
	Config   *config.Config
	Logger   *zap.Logger
}

func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	return &Orchestrator{
		store:    deps.Store,
		sessions: deps.Sessions,
		gate:     deps.Gate,
		deepGate: deps.DeepGate,
		intents:  deps.Intents,
		mapper:   deps.Mapper,
		executor: deps.Executor,
		geocoder: deps.Geocoder,
		guard:    deps.Guard,
		grouper:  deps.Grouper,
		engine:   deps.Engine,
		chat:     deps.Chat,
		cfg:      deps.Config,
		logger:   deps.Logger,
		inflight: make(map[string]context.CancelFunc),
	}
}

// Submit registers a search job and starts the pipeline in the background.
// An idempotent resubmission returns the existing requestId with reused=true.
func (o *Orchestrator) Submit(ctx context.Context, req *models.SearchRequest) (requestID string, reused bool, err error) {
	ctx, span := otel.Tracer("SearchPipeline").Start(ctx, "Submit")
	defer span.End()

	if req.ClearContext && req.SessionID != "" {
		o.sessions.Clear(req.SessionID)
	}

	idemKey := req.IdempotencyKey
	if idemKey == "" {
		idemKey = IdempotencyKey(req.SessionID, req.Query, "async", req.UserLocation)
	}
	if existing, ferr := o.store.FindByIdempotencyKey(ctx, idemKey, o.cfg.JobStore.FreshWindow); ferr == nil && existing != nil {
		span.SetAttributes(attribute.Bool("idempotent_reuse", true))
		o.logger.Info("idempotent resubmission",
			zap.String("request_id", existing.RequestID),
			zap.String("session_id", req.SessionID))
		return existing.RequestID, true, nil
	}

	requestID = req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	if err := o.store.Create(ctx, requestID, jobs.CreateOptions{
		SessionID:      req.SessionID,
		Query:          req.Query,
		OwnerUserID:    req.UserID,
		OwnerSessionID: req.SessionID,
		IdempotencyKey: idemKey,
	}); err != nil {
		span.RecordError(err)
		return "", false, err
	}
	_ = o.store.SetStatus(ctx, requestID, models.StatusPending, jobs.IntPtr(models.ProgressCreated))
	o.logger.Info("job_created",
		zap.String("request_id", requestID),
		zap.String("session_id", req.SessionID))

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.RequestDeadline)
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		cancel()
		_ = o.store.SetStatus(ctx, requestID, models.StatusDoneStopped, jobs.IntPtr(models.ProgressDone))
		return requestID, false, nil
	}
	o.inflight[requestID] = cancel
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()
		defer func() {
			o.mu.Lock()
			delete(o.inflight, requestID)
			o.mu.Unlock()
		}()
		o.run(runCtx, requestID, req)
	}()

	return requestID, false, nil
}

// Cancel stops a running pipeline. The job transitions to DONE_STOPPED.
func (o *Orchestrator) Cancel(requestID string) bool {
	o.mu.Lock()
	cancel, ok := o.inflight[requestID]
	o.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Shutdown cancels all in-flight pipelines, sweeps RUNNING jobs to
// DONE_STOPPED, and drains up to the grace window.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.mu.Lock()
	o.closed = true
	for id, cancel := range o.inflight {
		o.logger.Info("cancelling in-flight job on shutdown", zap.String("request_id", id))
		cancel()
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		o.logger.Warn("shutdown grace window expired with pipelines still draining")
	}

	running, err := o.store.GetRunningJobs(ctx)
	if err != nil {
		o.logger.Warn("shutdown sweep could not enumerate running jobs", zap.Error(err))
		return
	}
	for _, job := range running {
		_ = o.store.SetStopped(ctx, job.RequestID, "server_shutdown")
	}
}

// run is the pipeline body. All failures terminate the job through
// finishError; cancellation terminates it as DONE_STOPPED.
func (o *Orchestrator) run(ctx context.Context, requestID string, req *models.SearchRequest) {
	ctx, span := otel.Tracer("SearchPipeline").Start(ctx, "Run", trace.WithAttributes(
		attribute.String("request_id", requestID),
	))
	defer span.End()
	start := time.Now()

	_ = o.store.SetStatus(ctx, requestID, models.StatusRunning, nil)
	stopHeartbeat := o.startHeartbeat(requestID)
	defer stopHeartbeat()

	response, status, err := o.pipeline(ctx, requestID, req)
	switch {
	case err != nil && (errors.Is(err, context.Canceled) || ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled)):
		span.SetStatus(codes.Error, "cancelled")
		writeCtx := context.WithoutCancel(ctx)
		_ = o.store.SetStatus(writeCtx, requestID, models.StatusDoneStopped, jobs.IntPtr(models.ProgressDone))
		o.logger.Info("job cancelled", zap.String("request_id", requestID))
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline failed")
		kind := models.ClassifyError(err)
		writeCtx := context.WithoutCancel(ctx)
		_ = o.store.SetError(writeCtx, requestID, string(kind), "search could not be completed", models.TerminalErrorType(kind))
		o.logger.Error("pipeline failed",
			zap.String("request_id", requestID),
			zap.String("error_kind", string(kind)),
			zap.Error(err))
	default:
		writeCtx := context.WithoutCancel(ctx)
		_ = o.store.SetResult(writeCtx, requestID, response)
		_ = o.store.SetStatus(writeCtx, requestID, status, jobs.IntPtr(models.ProgressDone))
		span.SetAttributes(attribute.String("terminal_status", string(status)))
		span.SetStatus(codes.Ok, "done")
	}
	o.recordJobMetrics(ctx, requestID, start)
}

func (o *Orchestrator) recordJobMetrics(ctx context.Context, requestID string, start time.Time) {
	if !metrics.Enabled() {
		return
	}
	job, err := o.store.GetJob(context.WithoutCancel(ctx), requestID)
	if err != nil || job == nil {
		return
	}
	m := metrics.Get()
	attrs := metric.WithAttributes(attribute.String("status", string(job.Status)))
	m.SearchJobsTotal.Add(context.Background(), 1, attrs)
	m.SearchJobDuration.Record(context.Background(), time.Since(start).Seconds(), attrs)
}

func (o *Orchestrator) startHeartbeat(requestID string) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(o.cfg.JobStore.HeartbeatEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = o.store.UpdateHeartbeat(context.Background(), requestID)
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

func (o *Orchestrator) pipeline(ctx context.Context, requestID string, req *models.SearchRequest) (*models.SearchResponse, models.JobStatus, error) {
	// Gate (deterministic, then deep on ambiguity).
	gateResult := o.gate.Check(req.Query)
	_ = o.store.SetStatus(ctx, requestID, models.StatusRunning, jobs.IntPtr(models.ProgressGate))

	if !gateResult.Passed {
		if gateResult.Reason == gate.ReasonNonFoodQuery && o.deepGate != nil {
			deep, derr := o.deepGate.Check(ctx, req.Query)
			if derr != nil {
				o.logger.Warn("deep gate unavailable, keeping deterministic verdict", zap.Error(derr))
			}
			var stop *gate.Stop
			if deep != nil {
				stop = deep.Stop
			}
			switch gate.RouteDeepGate(deep) {
			case gate.DecisionContinue:
				if derr == nil {
					gateResult.Passed = true
				}
			case gate.DecisionAskClarify:
				return o.terminalClarify(ctx, requestID, req, nil, models.ScenarioClarifyNeeded, gateResult, stop)
			case gate.DecisionStop:
				resp, _, err := o.terminalClarify(ctx, requestID, req, nil, models.ScenarioClarifyNeeded, gateResult, stop)
				return resp, models.StatusDoneStopped, err
			}
		}
		if !gateResult.Passed {
			scenario := models.ScenarioClarifyNeeded
			status := models.StatusDoneStopped
			if gateResult.Reason == gate.ReasonEmptyText {
				scenario = models.ScenarioMissingQuery
				status = models.StatusDoneClarify
			}
			resp, _, err := o.terminalClarify(ctx, requestID, req, nil, scenario, gateResult, nil)
			return resp, status, err
		}
	}

	// Intent.
	intentResult, ierr := o.intents.Extract(ctx, intent.Input{
		Query:            req.Query,
		DetectedLanguage: gateResult.Language,
		HasUserLocation:  req.UserLocation != nil,
		RecentQueries:    o.sessions.RecentQueries(req.SessionID, 3),
	})
	if ierr != nil && intentResult == nil {
		return nil, "", ierr
	}
	_ = o.store.SetStatus(ctx, requestID, models.StatusRunning, jobs.IntPtr(models.ProgressIntent))
	priorIntent := o.sessions.LastIntent(req.SessionID)
	o.sessions.SetLastIntent(req.SessionID, intentResult)
	if intentResult.Fallback && metrics.Enabled() {
		metrics.Get().LLMFallbacksTotal.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("stage", "intent")))
	}

	if intentResult.Route == models.RouteClarify {
		scenario := models.ScenarioClarifyNeeded
		if intentResult.Reason == "missing_user_location" {
			scenario = models.ScenarioMissingLocation
		}
		return o.terminalClarify(ctx, requestID, req, intentResult, scenario, gateResult, nil)
	}

	// Local resolution: a query with no expressed location cannot be executed
	// against the provider, it has to be clarified.
	mode := resolve.ResolveSearchMode(intentResult, req.UserLocation != nil)
	if mode.Mode == resolve.ModeClarify {
		scenario := models.ScenarioClarifyNeeded
		reason := mode.Reason
		if reason == "no_location" || reason == "near_me_without_gps" {
			scenario = models.ScenarioMissingLocation
			reason = "missing_user_location"
		}
		return o.terminalClarify(ctx, requestID, req, clarifyIntent(intentResult, reason), scenario, gateResult, nil)
	}

	shared := filters.Resolve(intentResult, req.Locale, o.cfg.DefaultRegion, time.Now())

	// Provider execution: the previous turn's candidate pool for a soft-filter
	// requery, else cache guard, else a live fetch.
	var (
		results       []models.PlaceResult
		groups        []models.ResultGroup
		servedFrom    string
		searchContext string
	)
	if pool := o.reusablePool(ctx, req, priorIntent, intentResult); pool != nil {
		results = applyOpenNowFilter(pool.Candidates, shared.OpenNowOnly)
		servedFrom = "pool"
		searchContext = pool.SearchContext
	} else {
		providerPlan, err := o.buildPlan(ctx, req, intentResult, shared)
		if err != nil {
			if errors.Is(err, plan.ErrMissingUserLocation) {
				return o.terminalClarify(ctx, requestID, req, clarifyIntent(intentResult, "missing_user_location"), models.ScenarioMissingLocation, gateResult, nil)
			}
			return nil, "", err
		}
		results, groups, servedFrom, err = o.fetchResults(ctx, requestID, req, intentResult, shared, providerPlan)
		if err != nil {
			return nil, "", err
		}
		searchContext = o.guard.Key(providerPlan)
	}
	_ = o.store.SetStatus(ctx, requestID, models.StatusRunning, jobs.IntPtr(models.ProgressProvider))

	// A city that produced results is geocode-confirmed; remember it past any
	// context reset.
	if intentResult.CityText != nil && len(results) > 0 &&
		!o.sessions.IsValidatedCity(req.SessionID, *intentResult.CityText) {
		o.sessions.AddValidatedCity(req.SessionID, *intentResult.CityText)
	}

	// Post-constraints: the requested city is enforced against known-city
	// results; unknown cities get the benefit of the doubt.
	results, droppedResults, nearbyCity := o.enforceCity(results, intentResult)
	var nearbyDistance *int
	if len(results) == 0 && len(droppedResults) > 0 && intentResult.CityText != nil {
		nearbyDistance = o.nearestDroppedDistance(ctx, *intentResult.CityText, shared.RegionCode, droppedResults)
	}
	_ = o.store.SetStatus(ctx, requestID, models.StatusRunning, jobs.IntPtr(models.ProgressConstraints))

	_ = o.store.SetCandidatePool(ctx, requestID, &models.CandidatePool{
		Candidates:    results,
		SearchContext: searchContext,
		FetchedAt:     time.Now(),
		Route:         intentResult.Route,
	})
	_ = o.store.SetStatus(ctx, requestID, models.StatusRunning, jobs.IntPtr(models.ProgressRanking))

	// Classification and message.
	responsePlan := o.engine.Classify(rse.Input{
		Query:          req.Query,
		Intent:         intentResult,
		Results:        results,
		Groups:         groups,
		DroppedCount:   len(droppedResults),
		NearbyCity:     nearbyCity,
		NearbyDistance: nearbyDistance,
		ScenarioCounts: o.sessions.ScenarioCounts(req.SessionID),
	})
	assist, hash := o.chat.Generate(ctx, chatback.Request{
		Plan:         responsePlan,
		Language:     shared.UILanguage,
		Query:        req.Query,
		RecentHashes: o.sessions.MessageHashes(req.SessionID),
	})
	o.sessions.RecordMessageHash(req.SessionID, hash)
	o.sessions.RecordTurn(req.SessionID, session.Turn{
		Query:     req.Query,
		Route:     intentResult.Route,
		Scenario:  responsePlan.Scenario,
		RequestID: requestID,
		At:        time.Now(),
	})

	response := &models.SearchResponse{
		RequestID: requestID,
		Results:   results,
		Groups:    groups,
		Meta: models.ResponseMeta{
			Route:      intentResult.Route,
			Language:   shared.UILanguage,
			Region:     shared.RegionCode,
			ServedFrom: servedFrom,
			TraceID:    traceIDFrom(ctx),
		},
		Assist: assist,
	}
	if len(groups) > 0 {
		response.Meta.StreetGrouping = &models.StreetGroupingMeta{
			Enabled:      true,
			ExactRadius:  o.cfg.StreetSearch.ExactRadiusMeters,
			NearbyRadius: o.cfg.StreetSearch.NearbyRadiusMeters,
		}
	}
	return response, models.StatusDoneSuccess, nil
}

func (o *Orchestrator) buildPlan(ctx context.Context, req *models.SearchRequest, intentResult *models.Intent, shared filters.Shared) (*models.ProviderPlan, error) {
	switch intentResult.Route {
	case models.RouteTextSearch:
		p := o.mapper.MapTextSearch(ctx, req.Query, intentResult, shared, req.UserLocation)
		return &models.ProviderPlan{Route: models.RouteTextSearch, TextSearch: p}, nil
	case models.RouteNearby:
		p, err := o.mapper.MapNearby(ctx, req.Query, intentResult, shared, req.UserLocation)
		if err != nil {
			return nil, err
		}
		return &models.ProviderPlan{Route: models.RouteNearby, Nearby: p}, nil
	case models.RouteLandmark:
		p := o.mapper.MapLandmark(ctx, req.Query, intentResult, shared)
		return &models.ProviderPlan{Route: models.RouteLandmark, Landmark: p}, nil
	}
	return nil, fmt.Errorf("orchestrator: unmappable route %q", intentResult.Route)
}

// reusablePool returns the previous turn's candidate pool when the new intent
// targets the same search and at most tightens the open-now filter, so no
// provider call is needed. Street queries always refetch: the pool carries no
// groups.
func (o *Orchestrator) reusablePool(ctx context.Context, req *models.SearchRequest, prior, cur *models.Intent) *models.CandidatePool {
	if !softRequeryable(prior, cur) || grouping.IsStreetQuery(cur, req.Query) {
		return nil
	}
	prevID := o.sessions.LastRequestID(req.SessionID)
	if prevID == "" {
		return nil
	}
	pool, err := o.store.GetCandidatePool(ctx, prevID, req.SessionID)
	if err != nil || pool == nil {
		return nil
	}
	if pool.Route != cur.Route || time.Since(pool.FetchedAt) > o.cfg.CacheGuardTTL {
		return nil
	}
	o.logger.Info("soft-filter requery served from candidate pool",
		zap.String("session_id", req.SessionID),
		zap.String("source_request_id", prevID))
	return pool
}

// softRequeryable reports whether cur re-targets prior's search with at most
// an open-now tightening. A pool fetched under an open-now filter cannot be
// widened again, so prior must not have requested it.
func softRequeryable(prior, cur *models.Intent) bool {
	if prior == nil || prior.Route != cur.Route {
		return false
	}
	if prior.OpenNowRequested || prior.PriceIntent != cur.PriceIntent {
		return false
	}
	return prior.LocationAnchor == cur.LocationAnchor &&
		prior.NearMe == cur.NearMe &&
		prior.CuisineKey == cur.CuisineKey &&
		equalStrPtr(prior.CityText, cur.CityText) &&
		equalStrPtr(prior.LandmarkText, cur.LandmarkText) &&
		equalIntPtr(prior.RadiusMeters, cur.RadiusMeters)
}

func applyOpenNowFilter(in []models.PlaceResult, openNowOnly bool) []models.PlaceResult {
	out := make([]models.PlaceResult, 0, len(in))
	for _, r := range in {
		if openNowOnly && r.OpenNow != models.OpenYes {
			continue
		}
		out = append(out, r)
	}
	return out
}

func equalStrPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// fetchResults consults the cache guard, then executes the provider plan,
// running the dual-radius street variant when the query targets a street.
func (o *Orchestrator) fetchResults(ctx context.Context, requestID string, req *models.SearchRequest, intentResult *models.Intent, shared filters.Shared, providerPlan *models.ProviderPlan) ([]models.PlaceResult, []models.ResultGroup, string, error) {
	if cached, hit := o.guard.Lookup(ctx, providerPlan); hit {
		return cached, nil, "cache", nil
	}

	opts := places.ExecOptions{OpenNowOnly: shared.OpenNowOnly, PriceLevels: shared.PriceLevels}

	if grouping.IsStreetQuery(intentResult, req.Query) {
		if center := o.streetCenter(ctx, req, intentResult, shared, providerPlan); center != nil {
			out, err := o.grouper.Run(ctx, *center, shared.UILanguage, func(fctx context.Context, radius int) ([]models.PlaceResult, error) {
				return o.executor.Execute(fctx, &models.ProviderPlan{
					Route: models.RouteNearby,
					Nearby: &models.NearbyPlan{
						Center:           *center,
						RadiusMeters:     radius,
						Keyword:          streetKeyword(req.Query, intentResult),
						ProviderLanguage: shared.ProviderLanguage,
						RegionCode:       shared.RegionCode,
					},
				}, opts)
			})
			if err != nil {
				return nil, nil, "", err
			}
			o.guard.Store(ctx, providerPlan, out.Results)
			return out.Results, out.Groups, "provider", nil
		}
		o.logger.Debug("street query without resolvable center, plain execution",
			zap.String("request_id", requestID))
	}

	results, err := o.executor.Execute(ctx, providerPlan, opts)
	if err != nil {
		return nil, nil, "", err
	}
	o.guard.Store(ctx, providerPlan, results)
	return results, nil, "provider", nil
}

// streetCenter resolves the anchor point for the dual-radius fetch.
func (o *Orchestrator) streetCenter(ctx context.Context, req *models.SearchRequest, intentResult *models.Intent, shared filters.Shared, providerPlan *models.ProviderPlan) *models.LatLng {
	switch providerPlan.Route {
	case models.RouteNearby:
		return &providerPlan.Nearby.Center
	case models.RouteLandmark:
		if providerPlan.Landmark.ResolvedLatLng != nil {
			return providerPlan.Landmark.ResolvedLatLng
		}
		if loc, err := o.geocoder.Geocode(ctx, providerPlan.Landmark.GeocodeQuery, shared.RegionCode); err == nil {
			return loc
		}
		return nil
	}
	resolved := resolve.ResolveCenter(ctx, intentResult, req.UserLocation, func(fctx context.Context, query string) (*models.LatLng, error) {
		return o.geocoder.Geocode(fctx, query, shared.RegionCode)
	})
	return resolved.Center
}

func streetKeyword(query string, intentResult *models.Intent) string {
	if intentResult.CuisineKey != "" {
		return intentResult.CuisineKey
	}
	return query
}

// enforceCity drops results whose address names a known city different from
// the requested one. Unknown cities are kept. Dropped results are returned
// so the zero-results messaging can mention how far away they actually are.
func (o *Orchestrator) enforceCity(results []models.PlaceResult, intentResult *models.Intent) ([]models.PlaceResult, []models.PlaceResult, *string) {
	if intentResult.CityText == nil {
		return results, nil, nil
	}
	kept := results[:0:0]
	var droppedResults []models.PlaceResult
	var nearbyCity *string
	for _, r := range results {
		if city, found := cityFromAddress(r.Address); found {
			if filters.CompareCities(*intentResult.CityText, city) == filters.CityDifferent {
				droppedResults = append(droppedResults, r)
				if nearbyCity == nil {
					c := city
					nearbyCity = &c
				}
				continue
			}
		}
		kept = append(kept, r)
	}
	if len(droppedResults) > 0 {
		o.logger.Info("results dropped by city filter",
			zap.Int("dropped", len(droppedResults)),
			zap.String("requested_city", *intentResult.CityText))
	}
	return kept, droppedResults, nearbyCity
}

// nearestDroppedDistance geocodes the requested city and measures the closest
// city-filtered result from its center, in whole meters.
func (o *Orchestrator) nearestDroppedDistance(ctx context.Context, city, regionCode string, dropped []models.PlaceResult) *int {
	loc, err := o.geocoder.Geocode(ctx, city, regionCode)
	if err != nil || loc == nil {
		return nil
	}
	center := orb.Point{loc.Lng, loc.Lat}
	nearest := -1
	for _, r := range dropped {
		d := int(geo.DistanceHaversine(center, orb.Point{r.Location.Lng, r.Location.Lat}))
		if nearest < 0 || d < nearest {
			nearest = d
		}
	}
	if nearest < 0 {
		return nil
	}
	return &nearest
}

// cityFromAddress scans address segments for a known city alias.
func cityFromAddress(address string) (string, bool) {
	for _, segment := range splitAddress(address) {
		if _, ok := filters.CanonicalCity(segment); ok {
			return segment, true
		}
	}
	return "", false
}

func splitAddress(address string) []string {
	parts := strings.Split(address, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// terminalClarify finalizes a request that cannot execute a provider search.
// A deep-gate stop, when present, contributes the clarifying question.
func (o *Orchestrator) terminalClarify(ctx context.Context, requestID string, req *models.SearchRequest, intentResult *models.Intent, scenario models.Scenario, gateResult gate.Result, stop *gate.Stop) (*models.SearchResponse, models.JobStatus, error) {
	lang := models.LangEnglish
	if intentResult != nil && models.AssistantLanguages[intentResult.AssistantLanguage] {
		lang = intentResult.AssistantLanguage
	} else if models.AssistantLanguages[models.Language(gateResult.Language)] {
		lang = models.Language(gateResult.Language)
	}

	clarify := intentResult
	if clarify == nil {
		clarify = &models.Intent{Route: models.RouteClarify, AssistantLanguage: lang}
	}

	responsePlan := o.engine.Classify(rse.Input{
		Query:          req.Query,
		Intent:         clarify,
		ScenarioCounts: o.sessions.ScenarioCounts(req.SessionID),
	})
	// The engine reclassifies from the intent; the caller's scenario wins
	// when the gate stopped the pipeline before an intent existed.
	if intentResult == nil {
		responsePlan.Scenario = scenario
	}

	assist, hash := o.chat.Generate(ctx, chatback.Request{
		Plan:         responsePlan,
		Language:     lang,
		Query:        req.Query,
		RecentHashes: o.sessions.MessageHashes(req.SessionID),
	})
	// A known ambiguous token carries its own two concrete readings; the
	// deep-gate question, when present, is the better message.
	if choices := gate.AmbiguousChoices(req.Query); len(choices) > 0 {
		actions := make([]models.SuggestedAction, 0, len(choices))
		for i, c := range choices {
			actions = append(actions, models.SuggestedAction{Kind: c.Kind, Label: c.Label, Priority: i + 1})
		}
		assist.Actions = actions
	}
	if stop != nil && strings.TrimSpace(stop.Question) != "" {
		assist.Message = stop.Question
	}
	o.sessions.RecordMessageHash(req.SessionID, hash)
	o.sessions.RecordTurn(req.SessionID, session.Turn{
		Query:     req.Query,
		Route:     models.RouteClarify,
		Scenario:  responsePlan.Scenario,
		RequestID: requestID,
		At:        time.Now(),
	})

	response := &models.SearchResponse{
		RequestID: requestID,
		Results:   []models.PlaceResult{},
		Meta: models.ResponseMeta{
			Route:    models.RouteClarify,
			Language: lang,
			TraceID:  traceIDFrom(ctx),
		},
		Assist: assist,
	}
	return response, models.StatusDoneClarify, nil
}

// clarifyIntent copies an intent onto the CLARIFY route for terminal
// classification.
func clarifyIntent(in *models.Intent, reason string) *models.Intent {
	out := *in
	out.Route = models.RouteClarify
	out.Reason = reason
	return &out
}

func traceIDFrom(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
