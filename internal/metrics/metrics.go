// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	archivePagesTotal     *prometheus.CounterVec
	issuesTotal           *prometheus.CounterVec
	articlesTotal         *prometheus.CounterVec
	fetchAttemptsTotal    *prometheus.CounterVec
	fetchBytesTotal       *prometheus.CounterVec
	retryBackoffSeconds   prometheus.Histogram
	rateLimitDelaySeconds *prometheus.HistogramVec
	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDurationMs *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		archivePagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_archive_pages_total",
				Help: "Total number of archive listing pages processed, labeled by status.",
			},
			[]string{"status"},
		)

		issuesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_issues_total",
				Help: "Total number of issues processed, labeled by status.",
			},
			[]string{"status"},
		)

		articlesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_articles_total",
				Help: "Total number of article rows written, labeled by status.",
			},
			[]string{"status"},
		)

		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_fetch_attempts_total",
				Help: "Total number of HTTP GET attempts, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_fetch_bytes_total",
				Help: "Total number of response bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		retryBackoffSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvester_retry_backoff_seconds",
				Help:    "Histogram of waits between fetch attempts.",
				Buckets: []float64{0.5, 1, 2, 4, 8, 16, 32},
			},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_rate_limit_delay_seconds",
				Help:    "Histogram of politeness waits before a request, labeled by site.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_http_requests_total",
				Help: "Total number of requests served by the metrics endpoint, labeled by route and code.",
			},
			[]string{"route", "code"},
		)

		httpRequestDurationMs = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_http_request_duration_milliseconds",
				Help:    "Histogram of metrics endpoint latencies, labeled by route.",
				Buckets: []float64{1, 5, 10, 50, 100, 500},
			},
			[]string{"route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
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

// ObserveArchivePage counts one archive page outcome.
func ObserveArchivePage(status string) {
	Init()
	archivePagesTotal.WithLabelValues(status).Inc()
}

// ObserveIssue counts one issue outcome.
func ObserveIssue(status string) {
	Init()
	issuesTotal.WithLabelValues(status).Inc()
}

// ObserveArticle counts one article row by status.
func ObserveArticle(status string) {
	Init()
	articlesTotal.WithLabelValues(status).Inc()
}

// ObserveFetchAttempt counts one GET attempt and the bytes it returned.
func ObserveFetchAttempt(rawURL string, outcome string, bytesFetched int) {
	Init()
	site := SanitizeSite(rawURL)
	fetchAttemptsTotal.WithLabelValues(site, outcome).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObserveBackoff records a wait between fetch attempts.
func ObserveBackoff(d time.Duration) {
	Init()
	retryBackoffSeconds.Observe(d.Seconds())
}

// ObserveRateLimitDelay records how long a request waited for its host's limiter.
func ObserveRateLimitDelay(site string, d time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(site).Observe(d.Seconds())
}
