package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/weather-alerts/internal/adapter/geocache"
	"github.com/couchcryptid/weather-alerts/internal/adapter/geoip"
	httpadapter "github.com/couchcryptid/weather-alerts/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/weather-alerts/internal/adapter/kafka"
	"github.com/couchcryptid/weather-alerts/internal/adapter/mapbox"
	"github.com/couchcryptid/weather-alerts/internal/adapter/openweather"
	"github.com/couchcryptid/weather-alerts/internal/adapter/postgres"
	"github.com/couchcryptid/weather-alerts/internal/config"
	"github.com/couchcryptid/weather-alerts/internal/domain"
	"github.com/couchcryptid/weather-alerts/internal/hierarchy"
	"github.com/couchcryptid/weather-alerts/internal/observability"
	"github.com/couchcryptid/weather-alerts/internal/outbox"
	"github.com/couchcryptid/weather-alerts/internal/resolver"
	"github.com/couchcryptid/weather-alerts/internal/selection"
	"github.com/couchcryptid/weather-alerts/internal/session"
	"github.com/couchcryptid/weather-alerts/internal/subscription"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
)

// outboxQueueSize bounds the in-memory backlog between the service and Kafka.
const outboxQueueSize = 1000

func main() {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h, err := hierarchy.LoadFile(cfg.CitiesPath)
	if err != nil {
		// The dropdowns stay empty; map and geolocation flows still work.
		logger.Warn("city list unavailable", "path", cfg.CitiesPath, "error", err)
		h = hierarchy.Empty()
	}
	metrics.HierarchyCountries.Set(float64(h.CountryCount()))
	metrics.HierarchyCities.Set(float64(h.CityCount()))
	for _, c := range h.Collisions() {
		logger.Warn("identifier collision in city list", "level", c.Level, "country", c.Country, "id", c.ID, "names", c.Names)
	}

	if cfg.OpenWeatherAPIKey == "" {
		logger.Warn("OPENWEATHER_API_KEY is not set; weather and geocoding calls will fail")
	}
	weather := openweather.NewClient(cfg.OpenWeatherAPIKey, cfg.OpenWeatherBaseURL, cfg.OpenWeatherTimeout, logger, metrics)

	var provider domain.Geocoder = weather
	if cfg.GeocoderProvider == config.ProviderMapbox {
		provider = mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics)
	}
	var cacheOpts []geocache.Option
	if cfg.RedisAddr != "" {
		rs := geocache.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rs.Close() //nolint:errcheck
		if err := rs.Ping(ctx); err != nil {
			logger.Warn("redis unreachable; shared geocode cache will miss until it recovers", "addr", cfg.RedisAddr, "error", err)
		}
		cacheOpts = append(cacheOpts, geocache.WithShared(rs, cfg.GeocodeCacheTTL))
	}
	geocoder := geocache.New(provider, cfg.GeocodeCacheSize, logger, metrics, cacheOpts...)
	logger.Info("geocoding configured",
		"provider", cfg.GeocoderProvider,
		"cache_size", cfg.GeocodeCacheSize,
		"shared_cache", cfg.RedisAddr != "",
	)

	var checks readiness

	var store subscription.Store = subscription.NewFileStore(cfg.SubscribersPath)
	if cfg.DatabaseURL != "" {
		pg, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close() //nolint:errcheck
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Error("failed to create schema", "error", err)
			os.Exit(1)
		}
		store = pg
		checks = append(checks, pg)
		logger.Info("subscriptions stored in postgres")
	} else {
		logger.Info("subscriptions stored in file", "path", cfg.SubscribersPath)
	}

	// A nil *outbox.Relay must not become a non-nil Publisher.
	var publisher subscription.Publisher
	var relay *outbox.Relay
	var writer *kafkaadapter.Writer
	if cfg.OutboxEnabled() {
		writer = kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, clock, logger)
		relay = outbox.New(writer, logger, metrics, cfg.BatchSize, cfg.BatchFlushInterval, outboxQueueSize)
		publisher = relay
		checks = append(checks, relay)
		logger.Info("outbox enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Warn("KAFKA_BROKERS not set; delivery channels are not configured")
	}
	subs := subscription.NewService(store, publisher, clock, logger, metrics)

	var locator httpadapter.IPLocator
	if cfg.GeoIPDBPath != "" {
		l, err := geoip.Open(cfg.GeoIPDBPath)
		if err != nil {
			logger.Warn("geoip database unavailable; locate-ip disabled", "error", err)
		} else {
			defer l.Close() //nolint:errcheck
			locator = l
		}
	}

	factory := func(sink resolver.EventSink) *resolver.Coordinator {
		return resolver.New(selection.New(), selection.NewCascade(h), geocoder, weather,
			resolver.WithLogger(logger),
			resolver.WithMetrics(metrics),
			resolver.WithEventSink(sink),
			resolver.WithPolicy(cfg.RacePolicy),
		)
	}
	sessions := session.NewManager(factory, cfg.SessionIdleTimeout, clock, logger, metrics,
		session.WithMaxSessions(cfg.MaxSessions))

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Deps{
		Geocoder:      geocoder,
		Weather:       weather,
		Subscriptions: subs,
		Hierarchy:     h,
		Sessions:      sessions,
		Locator:       locator,
		Ready:         checks,
	}, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	go func() {
		if err := sessions.Run(ctx); err != nil {
			logger.Error("session sweeper error", "error", err)
		}
	}()

	// The relay outlives the HTTP server so subscriptions accepted while
	// in-flight requests finish still reach the broker.
	relayCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()
	relayDone := make(chan struct{})
	if relay != nil {
		go func() {
			defer close(relayDone)
			if err := relay.Run(relayCtx); err != nil {
				logger.Error("outbox relay error", "error", err)
			}
		}()
	} else {
		close(relayDone)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdown(srv, stopRelay, relayDone, cfg.ShutdownTimeout, logger)
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdown stops the HTTP server first, then the relay, and waits for the
// relay to drain. Both share one timeout.
func shutdown(srv shutdowner, stopRelay context.CancelFunc, relayDone <-chan struct{}, timeout time.Duration, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	stopRelay()
	select {
	case <-relayDone:
	case <-ctx.Done():
		logger.Warn("outbox relay did not drain before shutdown timeout")
	}
}

// readiness reports ready only when every check passes.
type readiness []sharedobs.ReadinessChecker

func (r readiness) CheckReadiness(ctx context.Context) error {
	var errs []error
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
