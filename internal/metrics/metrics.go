package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "kalshi_rankings"

// Metrics holds all Prometheus metrics for the pipeline and read API.
type Metrics struct {
	registry *prometheus.Registry

	APIRequests    *prometheus.CounterVec   // labels: endpoint, status
	APILatency     *prometheus.HistogramVec // labels: endpoint
	APIThrottled   *prometheus.CounterVec   // labels: endpoint
	APIExhausted   *prometheus.CounterVec   // labels: endpoint
	PeriodsFetched *prometheus.CounterVec   // labels: granularity
	RowsInserted   prometheus.Counter
	RowsConflicted prometheus.Counter
	RunDuration    prometheus.Histogram
	RunFailures    *prometheus.CounterVec // labels: stage
	LastSuccess    prometheus.Gauge
	RankingSize    prometheus.Gauge
	CacheLookups   *prometheus.CounterVec // labels: result=hit|miss|stale|refresh_error
	WSClients      prometheus.Gauge
}

// New creates metrics on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Kalshi API responses by endpoint and HTTP status (0 = transport error)",
		}, []string{"endpoint", "status"}),
		APILatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Kalshi API request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		APIThrottled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_throttled_total",
			Help:      "429 responses received",
		}, []string{"endpoint"}),
		APIExhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_retries_exhausted_total",
			Help:      "Requests that were still throttled after the last attempt",
		}, []string{"endpoint"}),
		PeriodsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "periods_fetched_total",
			Help:      "Candlestick periods fetched, by granularity in minutes",
		}, []string{"granularity"}),
		RowsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candlesticks_inserted_total",
			Help:      "Candlestick rows inserted",
		}),
		RowsConflicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candlesticks_conflicts_total",
			Help:      "Candlestick rows ignored because they were already stored",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Pipeline run duration",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		RunFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_failures_total",
			Help:      "Failed pipeline runs by stage",
		}, []string{"stage"}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		}),
		RankingSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ranking_size",
			Help:      "Teams in the last ranking snapshot",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Read cache lookups by result",
		}, []string{"result"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Connected websocket clients",
		}),
	}

	m.registry.MustRegister(
		m.APIRequests,
		m.APILatency,
		m.APIThrottled,
		m.APIExhausted,
		m.PeriodsFetched,
		m.RowsInserted,
		m.RowsConflicted,
		m.RunDuration,
		m.RunFailures,
		m.LastSuccess,
		m.RankingSize,
		m.CacheLookups,
		m.WSClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Push sends the current values to a Pushgateway. Used by one-shot ETL runs.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if m == nil || url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// ObserveRequest records one upstream response.
func (m *Metrics) ObserveRequest(endpoint string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.APIRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.APILatency.WithLabelValues(endpoint).Observe(d.Seconds())
}

// Throttled records a 429.
func (m *Metrics) Throttled(endpoint string) {
	if m == nil {
		return
	}
	m.APIThrottled.WithLabelValues(endpoint).Inc()
}

// RetriesExhausted records a request that gave up after repeated 429s.
func (m *Metrics) RetriesExhausted(endpoint string) {
	if m == nil {
		return
	}
	m.APIExhausted.WithLabelValues(endpoint).Inc()
}

// ObservePeriods records periods fetched at the given granularity.
func (m *Metrics) ObservePeriods(granularity, n int) {
	if m == nil {
		return
	}
	m.PeriodsFetched.WithLabelValues(strconv.Itoa(granularity)).Add(float64(n))
}

// ObserveUpsert records candlestick insert outcomes.
func (m *Metrics) ObserveUpsert(inserted, conflicts int) {
	if m == nil {
		return
	}
	m.RowsInserted.Add(float64(inserted))
	m.RowsConflicted.Add(float64(conflicts))
}

// RunFailed records a failed run at stage.
func (m *Metrics) RunFailed(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunFailures.WithLabelValues(stage).Inc()
	m.RunDuration.Observe(d.Seconds())
}

// RunSucceeded records a successful run.
func (m *Metrics) RunSucceeded(d time.Duration, rankingSize int, at time.Time) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(d.Seconds())
	m.RankingSize.Set(float64(rankingSize))
	m.LastSuccess.Set(float64(at.Unix()))
}

// CacheLookup records a read cache outcome.
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// SetWSClients records the number of connected websocket clients.
func (m *Metrics) SetWSClients(n int) {
	if m == nil {
		return
	}
	m.WSClients.Set(float64(n))
}
