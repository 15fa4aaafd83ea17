package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_alerts"

// Metrics holds the Prometheus collectors for the location and alert service.
type Metrics struct {
	// Collaborator metrics.
	GeocodeRequests  *prometheus.CounterVec   // labels: method={forward,reverse}, outcome={success,error,empty}
	GeocodeCache     *prometheus.CounterVec   // labels: method={forward,reverse}, result={hit,shared_hit,miss}
	UpstreamDuration *prometheus.HistogramVec // labels: operation={direct,reverse,weather,mapbox_forward,mapbox_reverse}
	WeatherRequests  *prometheus.CounterVec   // labels: outcome={success,error,missing_coordinates}

	// Coordinator metrics.
	Gestures       *prometheus.CounterVec // labels: kind={dropdown,map_click,geolocation}, outcome={resolved,failed,stale,invalid}
	ActiveSessions prometheus.Gauge

	Subscriptions *prometheus.CounterVec // labels: outcome={accepted,invalid,failed}

	// Outbox relay metrics.
	OutboxPublished prometheus.Counter
	OutboxErrors    prometheus.Counter
	OutboxDropped   prometheus.Counter
	OutboxRunning   prometheus.Gauge
	OutboxBatchSize prometheus.Histogram

	HierarchyCountries prometheus.Gauge
	HierarchyCities    prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, so
// tests can build as many as they like without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding requests by method and outcome.",
		}, []string{"method", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by method and result.",
		}, []string{"method", "result"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Collaborator API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operation"}),
		WeatherRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_requests_total",
			Help:      "Weather requests by outcome.",
		}, []string{"outcome"}),
		Gestures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gestures_total",
			Help:      "Resolution gestures by kind and outcome.",
		}, []string{"kind", "outcome"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of live selection sessions.",
		}),
		Subscriptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriptions_total",
			Help:      "Subscription submissions by outcome.",
		}, []string{"outcome"}),
		OutboxPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_published_total",
			Help:      "Outbox messages written to Kafka.",
		}),
		OutboxErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_errors_total",
			Help:      "Failed outbox batch writes.",
		}),
		OutboxDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_dropped_total",
			Help:      "Outbox messages rejected because the queue was full or closed.",
		}),
		OutboxRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_running",
			Help:      "1 when the outbox relay is active, 0 when shut down.",
		}),
		OutboxBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_batch_size",
			Help:      "Number of messages per outbox batch.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		HierarchyCountries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hierarchy_countries",
			Help:      "Countries in the loaded location hierarchy.",
		}),
		HierarchyCities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hierarchy_cities",
			Help:      "Cities in the loaded location hierarchy.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.GeocodeRequests,
		m.GeocodeCache,
		m.UpstreamDuration,
		m.WeatherRequests,
		m.Gestures,
		m.ActiveSessions,
		m.Subscriptions,
		m.OutboxPublished,
		m.OutboxErrors,
		m.OutboxDropped,
		m.OutboxRunning,
		m.OutboxBatchSize,
		m.HierarchyCountries,
		m.HierarchyCities,
	}
}
