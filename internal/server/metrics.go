package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	PageViewsTotal *prometheus.CounterVec
	CatalogTotal   *prometheus.CounterVec
	RendersTotal   *prometheus.CounterVec
	ExportsTotal   *prometheus.CounterVec
	SearchesTotal  prometheus.Counter
	ErrorsTotal    *prometheus.CounterVec
	RenderDuration prometheus.Histogram
	ActiveSessions prometheus.GaugeFunc
}

// NewMetrics registers the service metrics on the given registerer.
// Tests pass a fresh registry so parallel servers never collide.
func NewMetrics(reg prometheus.Registerer, activeSessions func() float64) *Metrics {
	metrics := &Metrics{
		PageViewsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sonolise_page_views_total",
				Help: "Total number of frame page views",
			},
			[]string{"route"},
		),
		CatalogTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sonolise_catalog_requests_total",
				Help: "Total number of catalog proxy requests",
			},
			[]string{"kind", "status"},
		),
		RendersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sonolise_renders_total",
				Help: "Total number of frame renders",
			},
			[]string{"status"},
		),
		ExportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sonolise_exports_total",
				Help: "Total number of frame exports",
			},
			[]string{"target", "status"},
		),
		SearchesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sonolise_searches_total",
				Help: "Total number of track searches",
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sonolise_errors_total",
				Help: "Total number of errors",
			},
			[]string{"component", "type"},
		),
		RenderDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sonolise_render_duration_seconds",
				Help:    "Time spent rasterizing frames",
				Buckets: prometheus.DefBuckets,
			},
		),
		ActiveSessions: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "sonolise_active_sessions",
				Help: "Number of live frame sessions",
			},
			activeSessions,
		),
	}

	reg.MustRegister(
		metrics.PageViewsTotal,
		metrics.CatalogTotal,
		metrics.RendersTotal,
		metrics.ExportsTotal,
		metrics.SearchesTotal,
		metrics.ErrorsTotal,
		metrics.RenderDuration,
		metrics.ActiveSessions,
	)
	return metrics
}

func (m *Metrics) RecordCatalog(kind, status string) {
	m.CatalogTotal.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) RecordRender(status string, duration time.Duration) {
	m.RendersTotal.WithLabelValues(status).Inc()
	m.RenderDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordExport(target, status string) {
	m.ExportsTotal.WithLabelValues(target, status).Inc()
}

func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
