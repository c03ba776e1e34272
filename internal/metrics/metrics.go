package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	SearchRequestsTotal   *prometheus.CounterVec
	SearchRequestDuration *prometheus.HistogramVec

	StageRunsTotal *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec

	PageFetchesTotal  *prometheus.CounterVec
	PageFetchDuration prometheus.Histogram

	RateLimitHitsTotal prometheus.Counter

	gatherer prometheus.Gatherer
}

// New регистрирует метрики в переданном реестре; nil = глобальный DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	factory := promauto.With(reg)

	m := &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rag_search_requests_total",
				Help: "Total number of rag-search requests processed",
			},
			[]string{"status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rag_search_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"status"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "rag_search_requests_in_flight",
				Help: "Number of requests currently being processed",
			},
		),

		SearchRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rag_search_provider_requests_total",
				Help: "Total number of search provider requests",
			},
			[]string{"provider", "status"},
		),
		SearchRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rag_search_provider_request_duration_seconds",
				Help:    "Search provider request duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"provider"},
		),

		StageRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rag_search_stage_runs_total",
				Help: "Pipeline stage runs by outcome",
			},
			[]string{"stage", "status"},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rag_search_stage_duration_seconds",
				Help:    "Pipeline stage duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"stage"},
		),

		PageFetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rag_search_page_fetches_total",
				Help: "Page fetches by outcome",
			},
			[]string{"status"},
		),
		PageFetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rag_search_page_fetch_duration_seconds",
				Help:    "Single page fetch+convert duration in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
			},
		),

		RateLimitHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rag_search_rate_limit_hits_total",
				Help: "Total number of rate limited requests",
			},
		),

		gatherer: gatherer,
	}

	return m
}

// Handler отдает метрики из того же реестра, в котором они зарегистрированы.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == prometheus.DefaultGatherer {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordRequest(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(status).Inc()
	m.RequestDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (m *Metrics) RecordSearchRequest(provider, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.SearchRequestsTotal.WithLabelValues(provider, status).Inc()
	m.SearchRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func (m *Metrics) RecordStage(stage, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.StageRunsTotal.WithLabelValues(stage, status).Inc()
	m.StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func (m *Metrics) RecordPageFetch(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.PageFetchesTotal.WithLabelValues(status).Inc()
	m.PageFetchDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordRateLimitHit() {
	if m == nil {
		return
	}
	m.RateLimitHitsTotal.Inc()
}

func (m *Metrics) IncRequestsInFlight() {
	if m == nil {
		return
	}
	m.RequestsInFlight.Inc()
}

func (m *Metrics) DecRequestsInFlight() {
	if m == nil {
		return
	}
	m.RequestsInFlight.Dec()
}
