// Package metrics builds the process's Prometheus registry explicitly: the
// registry, like the debrid provider registry, is constructed once by the
// process entry point and handed to whoever needs it, never reached for as
// a package-level singleton.
package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter/histogram the core subsystems report against.
type Metrics struct {
	registry *prometheus.Registry

	StreamRequests   *prometheus.CounterVec
	SearchRequests   *prometheus.CounterVec
	TorrentsAdded    *prometheus.CounterVec
	DebridResolves   *prometheus.CounterVec
	ResolveDuration  *prometheus.HistogramVec
	TorrentsInCorpus prometheus.Gauge
}

// New builds a fresh registry and registers every collector against it.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		StreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "annatar_stream_requests_total",
			Help: "Stream resolution requests received, by content type.",
		}, []string{"type"}),
		SearchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "annatar_search_requests_total",
			Help: "TorrentSearchResult events published by the search workers, by indexer.",
		}, []string{"indexer"}),
		TorrentsAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "annatar_torrents_added_total",
			Help: "Torrents persisted by the processor pool, by indexer.",
		}, []string{"indexer"}),
		DebridResolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "annatar_debrid_resolves_total",
			Help: "Debrid provider resolve attempts, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ResolveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "annatar_resolve_duration_seconds",
			Help:    "End-to-end stream resolution latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"type"}),
		TorrentsInCorpus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "annatar_torrents_in_corpus",
			Help: "Estimated distinct stream requests seen (HyperLogLog cardinality).",
		}),
	}

	registry.MustRegister(
		m.StreamRequests,
		m.SearchRequests,
		m.TorrentsAdded,
		m.DebridResolves,
		m.ResolveDuration,
		m.TorrentsInCorpus,
	)

	return m
}

// Handler adapts promhttp's net/http handler for the registry into a fiber
// route handler for GET /metrics.
func (m *Metrics) Handler() fiber.Handler {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return adaptor.HTTPHandler(h)
}
