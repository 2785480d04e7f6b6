package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
// Make fields public so they can be accessed from other packages.
type AppMetrics struct {
	HTTPRequestsTotal     metric.Int64Counter
	HTTPRequestDuration   metric.Float64Histogram
	SearchJobsTotal       metric.Int64Counter
	SearchJobDuration     metric.Float64Histogram
	CacheGuardHitsTotal   metric.Int64Counter
	CacheGuardMissesTotal metric.Int64Counter
	LLMFallbacksTotal     metric.Int64Counter
}

var (
	// Global instance of AppMetrics (initialized once)
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("loci-food-search")
		var err error
		m := &AppMetrics{}

		m.HTTPRequestsTotal, err = meter.Int64Counter(
			"http_requests_total",
			metric.WithDescription("Total number of HTTP requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_requests_total: %v", err)
		}

		m.HTTPRequestDuration, err = meter.Float64Histogram(
			"http_request_duration_seconds",
			metric.WithDescription("Duration of HTTP requests in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_request_duration_seconds: %v", err)
		}

		m.SearchJobsTotal, err = meter.Int64Counter(
			"search_jobs_total",
			metric.WithDescription("Total number of search jobs by terminal status"),
			metric.WithUnit("{job}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create search_jobs_total: %v", err)
		}

		m.SearchJobDuration, err = meter.Float64Histogram(
			"search_job_duration_seconds",
			metric.WithDescription("Wall time from job creation to terminal status"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create search_job_duration_seconds: %v", err)
		}

		m.CacheGuardHitsTotal, err = meter.Int64Counter(
			"cache_guard_hits_total",
			metric.WithDescription("Provider result cache hits"),
			metric.WithUnit("{lookup}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create cache_guard_hits_total: %v", err)
		}

		m.CacheGuardMissesTotal, err = meter.Int64Counter(
			"cache_guard_misses_total",
			metric.WithDescription("Provider result cache misses"),
			metric.WithUnit("{lookup}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create cache_guard_misses_total: %v", err)
		}

		m.LLMFallbacksTotal, err = meter.Int64Counter(
			"llm_fallbacks_total",
			metric.WithDescription("Pipeline stages that served their deterministic fallback"),
			metric.WithUnit("{fallback}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create llm_fallbacks_total: %v", err)
		}

		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance.
// Panics if InitAppMetrics was not called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}

// Enabled reports whether the instruments were initialized. Pipeline code
// records metrics only when observability is up, so unit tests skip it.
func Enabled() bool {
	return appMetrics != nil
}
