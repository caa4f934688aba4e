// Package metrics exposes Prometheus collectors for the crawler and its service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlerPagesTotal           *prometheus.CounterVec
	crawlerFetchDurationSeconds prometheus.Histogram
	crawlerActiveTasks          prometheus.Gauge
	crawlerRunsTotal            *prometheus.CounterVec
	crawlerRunDurationSeconds   prometheus.Histogram
	crawlerRunURLsVisited       prometheus.Histogram
	crawlerJobsTotal            *prometheus.CounterVec
	crawlerActiveWorkers        prometheus.Gauge
	httpRequestsTotal           *prometheus.CounterVec
	httpRequestDurationSeconds  *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pages_total",
				Help: "Total number of page fetches, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		crawlerFetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawler_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
			},
		)

		crawlerActiveTasks = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_active_tasks",
				Help: "Number of crawl tasks past their guards and not yet joined.",
			},
		)

		crawlerRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_runs_total",
				Help: "Total number of crawl runs, labeled by outcome.",
			},
			[]string{"status"},
		)

		crawlerRunDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawler_run_duration_seconds",
				Help:    "Histogram of whole-crawl durations.",
				Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
			},
		)

		crawlerRunURLsVisited = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawler_run_urls_visited",
				Help:    "Distinct URLs visited per crawl run.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		)

		crawlerJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_jobs_total",
				Help: "Total number of service jobs processed, labeled by status.",
			},
			[]string{"status"},
		)

		crawlerActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_active_workers",
				Help: "Number of workers currently processing a job.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// Local files report as "file"; it returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if strings.HasPrefix(rawURL, "file:") {
		return "file"
	}
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage increments the page counter for one fetch.
func ObservePage(site string, status string, elapsed time.Duration) {
	crawlerPagesTotal.WithLabelValues(SanitizeSite(site), status).Inc()
	crawlerFetchDurationSeconds.Observe(elapsed.Seconds())
}

// ObserveRun records one finished crawl.
func ObserveRun(status string, urlsVisited int, elapsed time.Duration) {
	crawlerRunsTotal.WithLabelValues(status).Inc()
	crawlerRunDurationSeconds.Observe(elapsed.Seconds())
	crawlerRunURLsVisited.Observe(float64(urlsVisited))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveJob increments the job counter for the given status.
func ObserveJob(status string) {
	crawlerJobsTotal.WithLabelValues(status).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	crawlerActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	crawlerActiveWorkers.Dec()
}
