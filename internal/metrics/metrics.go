// Package metrics exposes Prometheus collectors for the news crawler service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	proxyRequestsTotal   *prometheus.CounterVec
	fetchDurationSeconds *prometheus.HistogramVec
	scrapeJobsTotal      *prometheus.CounterVec
	recordsUpsertedTotal *prometheus.CounterVec
	leaseRenewalsTotal   *prometheus.CounterVec
	activeJobs           prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		proxyRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newscrawler_proxy_requests_total",
				Help: "Total outbound requests through the proxy pool, labeled by country and outcome.",
			},
			[]string{"country", "outcome"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "newscrawler_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by pipeline stage.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"stage"},
		)

		scrapeJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newscrawler_scrape_jobs_total",
				Help: "Total crawl invocations processed, labeled by terminal status.",
			},
			[]string{"status"},
		)

		recordsUpsertedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newscrawler_records_upserted_total",
				Help: "Total topic/article store writes, labeled by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		)

		leaseRenewalsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newscrawler_lease_renewals_total",
				Help: "Total queue lease renewal attempts, labeled by result.",
			},
			[]string{"result"},
		)

		activeJobs = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "newscrawler_active_jobs",
				Help: "Number of crawl invocations currently running.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveProxyRequest increments the proxy call counter.
func ObserveProxyRequest(country, outcome string) {
	proxyRequestsTotal.WithLabelValues(country, outcome).Inc()
}

// ObserveFetch records the duration of one page fetch.
func ObserveFetch(stage string, duration time.Duration) {
	fetchDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
}

// ObserveJob increments the job counter for the given terminal status.
func ObserveJob(status string) {
	scrapeJobsTotal.WithLabelValues(status).Inc()
}

// ObserveUpsert increments the record write counter.
func ObserveUpsert(kind, outcome string) {
	recordsUpsertedTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveLeaseRenewal increments the lease renewal counter.
func ObserveLeaseRenewal(result string) {
	leaseRenewalsTotal.WithLabelValues(result).Inc()
}

// IncActiveJobs increments the active jobs gauge.
func IncActiveJobs() {
	activeJobs.Inc()
}

// DecActiveJobs decrements the active jobs gauge.
func DecActiveJobs() {
	activeJobs.Dec()
}
