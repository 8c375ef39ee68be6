package federation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks hook activity for one plugin instance.
type Metrics struct {
	// Resolve metrics
	ResolvesHandled  prometheus.Counter
	ResolvesDeclined prometheus.Counter

	// Load metrics
	LoadsHandled  prometheus.Counter
	LoadsDeclined prometheus.Counter
	LoadsEmpty    prometheus.Counter

	// Fetch metrics
	Fetches      *prometheus.CounterVec
	FetchLatency prometheus.Histogram
	FetchedBytes prometheus.Counter

	ManifestsEmitted prometheus.Counter
}

// NewMetrics creates and registers the plugin metrics. A nil registry gets a
// private one so plugins never collide on the global registerer.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	factory := promauto.With(registry)

	return &Metrics{
		ResolvesHandled: factory.NewCounter(prometheus.CounterOpts{
			Name: "federation_resolves_handled_total",
			Help: "Imports redirected to a remote module",
		}),
		ResolvesDeclined: factory.NewCounter(prometheus.CounterOpts{
			Name: "federation_resolves_declined_total",
			Help: "Imports left to the host resolver",
		}),
		LoadsHandled: factory.NewCounter(prometheus.CounterOpts{
			Name: "federation_loads_handled_total",
			Help: "Exposed modules loaded by the plugin",
		}),
		LoadsDeclined: factory.NewCounter(prometheus.CounterOpts{
			Name: "federation_loads_declined_total",
			Help: "Modules left to the host loader",
		}),
		LoadsEmpty: factory.NewCounter(prometheus.CounterOpts{
			Name: "federation_loads_empty_total",
			Help: "Unexposed modules replaced with empty contents",
		}),
		Fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "federation_fetches_total",
			Help: "Exposed module fetches by outcome",
		}, []string{"outcome"}),
		FetchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "federation_fetch_latency_seconds",
			Help:    "Exposed module fetch latency",
			Buckets: prometheus.DefBuckets,
		}),
		FetchedBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "federation_fetched_bytes_total",
			Help: "Bytes of exposed module source fetched",
		}),
		ManifestsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "federation_manifests_emitted_total",
			Help: "Manifest artifacts emitted",
		}),
	}
}
