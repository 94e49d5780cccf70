// Package telemetry holds the Prometheus metrics of a TenderWatch process.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opensource-finance/tenderwatch/internal/domain"
)

const namespace = "tenderwatch"

// Metrics owns a private registry so tests and multiple servers in one
// process never collide on the default registerer. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	cacheRequests *prometheus.CounterVec

	graphNodes *prometheus.GaugeVec
	graphEdges *prometheus.GaugeVec
	riskLevels *prometheus.GaugeVec
	clusters   prometheus.Gauge

	buildDuration prometheus.Histogram
	regenerations *prometheus.CounterVec
}

// New creates the metric set and registers it with a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"method", "route"}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report_cache",
			Name:      "requests_total",
			Help:      "Company report cache lookups by result.",
		}, []string{"result"}),
		graphNodes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "nodes",
			Help:      "Nodes of the installed graph by entity kind.",
		}, []string{"kind"}),
		graphEdges: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "edges",
			Help:      "Edges of the installed graph by relationship type.",
		}, []string{"type"}),
		riskLevels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "companies",
			Help:      "Companies of the installed graph by risk category.",
		}, []string{"category"}),
		clusters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "fraud_clusters",
			Help:      "Fraud clusters of the installed graph.",
		}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "build_duration_seconds",
			Help:      "Time to index, measure, score and explain a dataset.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		regenerations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "regenerations_total",
			Help:      "Dataset regenerations by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{Namespace: namespace}),
		m.httpRequests, m.httpDuration, m.cacheRequests,
		m.graphNodes, m.graphEdges, m.riskLevels, m.clusters,
		m.buildDuration, m.regenerations,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// CacheHit counts a report served from cache.
func (m *Metrics) CacheHit() {
	if m != nil {
		m.cacheRequests.WithLabelValues("hit").Inc()
	}
}

// CacheMiss counts a report rendered from the snapshot.
func (m *Metrics) CacheMiss() {
	if m != nil {
		m.cacheRequests.WithLabelValues("miss").Inc()
	}
}

// SnapshotInstalled publishes the shape of a newly installed graph.
func (m *Metrics) SnapshotInstalled(summary domain.Summary, categories map[domain.RiskCategory]int, clusters int, build time.Duration) {
	if m == nil {
		return
	}
	m.graphNodes.WithLabelValues(string(domain.KindCompany)).Set(float64(summary.Companies))
	m.graphNodes.WithLabelValues(string(domain.KindDirector)).Set(float64(summary.Directors))
	m.graphNodes.WithLabelValues(string(domain.KindTender)).Set(float64(summary.Tenders))
	m.graphNodes.WithLabelValues(string(domain.KindDepartment)).Set(float64(summary.Departments))
	for _, t := range domain.RelationshipTypes {
		m.graphEdges.WithLabelValues(string(t)).Set(float64(summary.RelationshipCounts[t]))
	}
	for _, c := range []domain.RiskCategory{domain.RiskHigh, domain.RiskMedium, domain.RiskLow} {
		m.riskLevels.WithLabelValues(string(c)).Set(float64(categories[c]))
	}
	m.clusters.Set(float64(clusters))
	m.buildDuration.Observe(build.Seconds())
}

// Regeneration counts a finished regeneration, successful or not.
func (m *Metrics) Regeneration(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.regenerations.WithLabelValues(result).Inc()
}
