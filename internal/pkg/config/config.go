package config

import (
	"os"
	"strconv"
	"time"
)

type RedisConfig struct {
	URL     string
	Enabled bool
}

type LLMConfig struct {
	APIKey        string
	Model         string
	IntentTimeout time.Duration
	MapperTimeout time.Duration
	ChatTimeout   time.Duration
	IntentBackoff time.Duration
}

type JobStoreConfig struct {
	MemoryTTL      time.Duration
	PersistentTTL  time.Duration
	HeartbeatEvery time.Duration
	StaleRunning   time.Duration
	FreshWindow    time.Duration
}

type StreetSearchConfig struct {
	ExactRadiusMeters  int
	NearbyRadiusMeters int
	MinExactResults    int
	MinNearbyResults   int
}

type Config struct {
	ServerPort        string
	MetricsPort       string
	Redis             RedisConfig
	LLM               LLMConfig
	JobStore          JobStoreConfig
	StreetSearch      StreetSearchConfig
	PlacesAPIKey      string
	CacheGuardTTL     time.Duration
	CacheGuardTimeout time.Duration
	GeocodeCacheTTL   time.Duration
	RequestDeadline   time.Duration
	ShutdownGrace     time.Duration
	DefaultRegion     string
}

func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:  getEnvOrDefault("SERVER_PORT", "8091"),
		MetricsPort: getEnvOrDefault("METRICS_PORT", "9092"),
		Redis: RedisConfig{
			URL:     getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
			Enabled: getEnvBool("ENABLE_REDIS_JOB_STORE", false),
		},
		LLM: LLMConfig{
			APIKey:        os.Getenv("GEMINI_API_KEY"),
			Model:         getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
			IntentTimeout: getEnvDuration("INTENT_TIMEOUT_MS", 4000) * time.Millisecond,
			MapperTimeout: getEnvDuration("MAPPER_TIMEOUT_MS", 3000) * time.Millisecond,
			ChatTimeout:   getEnvDuration("CHATBACK_TIMEOUT_MS", 3000) * time.Millisecond,
			IntentBackoff: getEnvDuration("INTENT_RETRY_BACKOFF_MS", 250) * time.Millisecond,
		},
		JobStore: JobStoreConfig{
			MemoryTTL:      getEnvDuration("JOB_STORE_MEMORY_TTL_SECONDS", 600) * time.Second,
			PersistentTTL:  getEnvDuration("JOB_STORE_TTL_SECONDS", 86400) * time.Second,
			HeartbeatEvery: getEnvDuration("HEARTBEAT_INTERVAL_SECONDS", 15) * time.Second,
			StaleRunning:   getEnvDuration("STALE_RUNNING_THRESHOLD_SECONDS", 90) * time.Second,
			FreshWindow:    getEnvDuration("IDEMPOTENCY_FRESH_WINDOW_MS", 5000) * time.Millisecond,
		},
		StreetSearch: StreetSearchConfig{
			ExactRadiusMeters:  getEnvInt("STREET_EXACT_RADIUS_M", 200),
			NearbyRadiusMeters: getEnvInt("STREET_NEARBY_RADIUS_M", 400),
			MinExactResults:    getEnvInt("STREET_MIN_EXACT_RESULTS", 1),
			MinNearbyResults:   getEnvInt("STREET_MIN_NEARBY_RESULTS", 1),
		},
		PlacesAPIKey:      os.Getenv("GOOGLE_PLACES_API_KEY"),
		CacheGuardTTL:     getEnvDuration("CACHE_GUARD_TTL_SECONDS", 300) * time.Second,
		CacheGuardTimeout: getEnvDuration("CACHE_GUARD_TIMEOUT_MS", 5000) * time.Millisecond,
		GeocodeCacheTTL:   getEnvDuration("GEOCODE_CACHE_TTL_SECONDS", 3600) * time.Second,
		RequestDeadline:   getEnvDuration("REQUEST_DEADLINE_SECONDS", 30) * time.Second,
		ShutdownGrace:     getEnvDuration("SHUTDOWN_GRACE_SECONDS", 5) * time.Second,
		DefaultRegion:     getEnvOrDefault("DEFAULT_REGION", "IL"),
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue int64) time.Duration {
	return time.Duration(int64(getEnvInt(key, int(defaultValue))))
}
