// Package metrics exposes Prometheus collectors for the scraper service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scraperPagesTotal          *prometheus.CounterVec
	scraperItemsScrapedTotal   prometheus.Counter
	scraperDetailFailuresTotal prometheus.Counter
	scraperJobsTotal           *prometheus.CounterVec
	scraperUpsertRowsTotal     *prometheus.CounterVec
	scraperActiveWorkers       prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times;
// every Observe helper calls it so collectors exist in any entry path.
func Init() {
	once.Do(func() {
		scraperPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_pages_total",
				Help: "Total search pages fetched, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		scraperItemsScrapedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_items_scraped_total",
				Help: "Total canonical records produced by the pipeline.",
			},
		)

		scraperDetailFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_detail_failures_total",
				Help: "Total per-item detail calls that degraded to the summary record.",
			},
		)

		scraperJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_jobs_total",
				Help: "Total scrape jobs processed, labeled by final status.",
			},
			[]string{"status"},
		)

		scraperUpsertRowsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_upsert_rows_total",
				Help: "Total sink rows, labeled by outcome (created/updated/failed).",
			},
			[]string{"outcome"},
		)

		scraperActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scraper_active_workers",
				Help: "Number of workers currently processing a job.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total API requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of API request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObservePage counts one page fetch by outcome ("ok" or "error").
func ObservePage(outcome string) {
	Init()
	scraperPagesTotal.WithLabelValues(outcome).Inc()
}

// ObserveItemsScraped adds produced canonical records.
func ObserveItemsScraped(n int) {
	Init()
	if n > 0 {
		scraperItemsScrapedTotal.Add(float64(n))
	}
}

// ObserveDetailFailure counts a degraded detail enrichment.
func ObserveDetailFailure() {
	Init()
	scraperDetailFailuresTotal.Inc()
}

// ObserveJob increments the job counter for the given final status.
func ObserveJob(status string) {
	Init()
	scraperJobsTotal.WithLabelValues(status).Inc()
}

// ObserveUpserts records sink batch outcomes.
func ObserveUpserts(created, updated, failed int) {
	Init()
	scraperUpsertRowsTotal.WithLabelValues("created").Add(float64(created))
	scraperUpsertRowsTotal.WithLabelValues("updated").Add(float64(updated))
	scraperUpsertRowsTotal.WithLabelValues("failed").Add(float64(failed))
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	scraperActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	scraperActiveWorkers.Dec()
}

// ObserveHTTPRequest increments the API request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
