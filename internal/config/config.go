package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/couchcryptid/weather-alerts/internal/resolver"
)

// Geocoder providers.
const (
	ProviderOpenWeather = "openweather"
	ProviderMapbox      = "mapbox"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	CitiesPath string

	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string
	OpenWeatherTimeout time.Duration

	// Geocoding provider and cache.
	GeocoderProvider string
	MapboxToken      string
	MapboxTimeout    time.Duration
	GeocodeCacheSize int
	GeocodeCacheTTL  time.Duration
	RedisAddr        string
	RedisPassword    string
	RedisDB          int

	SubscribersPath string
	DatabaseURL     string

	// Outbox. Disabled when KafkaBrokers is empty.
	KafkaBrokers       []string
	KafkaTopic         string
	BatchSize          int
	BatchFlushInterval time.Duration

	SessionIdleTimeout time.Duration
	MaxSessions        int
	GeoIPDBPath        string
	RacePolicy         resolver.Policy
}

// OutboxEnabled reports whether Kafka brokers are configured.
func (c *Config) OutboxEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	owTimeout, err := parsePositiveDuration("OPENWEATHER_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := parsePositiveDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parsePositiveDuration("GEOCODE_CACHE_TTL", "1h")
	if err != nil {
		return nil, err
	}
	idle, err := parsePositiveDuration("SESSION_IDLE_TIMEOUT", "30m")
	if err != nil {
		return nil, err
	}

	maxSessions, err := strconv.Atoi(sharedcfg.EnvOrDefault("MAX_SESSIONS", "10000"))
	if err != nil || maxSessions < 0 {
		return nil, errors.New("invalid MAX_SESSIONS")
	}

	redisDB, err := strconv.Atoi(sharedcfg.EnvOrDefault("REDIS_DB", "0"))
	if err != nil || redisDB < 0 {
		return nil, errors.New("invalid REDIS_DB")
	}

	policy, err := resolver.ParsePolicy(os.Getenv("RACE_POLICY"))
	if err != nil {
		return nil, fmt.Errorf("invalid RACE_POLICY: %w", err)
	}

	var brokers []string
	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		CitiesPath: sharedcfg.EnvOrDefault("CITIES_PATH", "static/cities.json"),

		OpenWeatherAPIKey:  os.Getenv("OPENWEATHER_API_KEY"),
		OpenWeatherBaseURL: sharedcfg.EnvOrDefault("OPENWEATHER_BASE_URL", "https://api.openweathermap.org"),
		OpenWeatherTimeout: owTimeout,

		GeocoderProvider: strings.ToLower(sharedcfg.EnvOrDefault("GEOCODER_PROVIDER", ProviderOpenWeather)),
		MapboxToken:      os.Getenv("MAPBOX_TOKEN"),
		MapboxTimeout:    mapboxTimeout,
		GeocodeCacheSize: parseCacheSize(),
		GeocodeCacheTTL:  cacheTTL,
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          redisDB,

		SubscribersPath: sharedcfg.EnvOrDefault("SUBSCRIBERS_PATH", "data/subscribers.json"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),

		KafkaBrokers:       brokers,
		KafkaTopic:         sharedcfg.EnvOrDefault("KAFKA_TOPIC", "weather-alerts"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		SessionIdleTimeout: idle,
		MaxSessions:        maxSessions,
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		RacePolicy:         policy,
	}

	switch cfg.GeocoderProvider {
	case ProviderOpenWeather:
	case ProviderMapbox:
		if cfg.MapboxToken == "" {
			return nil, errors.New("GEOCODER_PROVIDER is mapbox but MAPBOX_TOKEN is not set")
		}
	default:
		return nil, fmt.Errorf("unknown GEOCODER_PROVIDER %q", cfg.GeocoderProvider)
	}
	if cfg.OutboxEnabled() && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func parsePositiveDuration(name, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(name, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return d, nil
}

func parseCacheSize() int {
	if s := os.Getenv("GEOCODE_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
