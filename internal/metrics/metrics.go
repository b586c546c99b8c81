// Package metrics exposes Prometheus collectors for the quiz service.
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
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	renderTotal                *prometheus.CounterVec
	downloadsTotal             *prometheus.CounterVec
	downloadBytesTotal         *prometheus.CounterVec
	submissionsTotal           *prometheus.CounterVec
	activeRuns                 prometheus.Gauge
	rateLimitDelaysSeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
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
				Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 30, 60, 180},
			},
			[]string{"method", "route"},
		)

		renderTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_renders_total",
				Help: "Headless page renders, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		downloadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_downloads_total",
				Help: "Attachment downloads, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		downloadBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_download_bytes_total",
				Help: "Attachment bytes downloaded, labeled by site.",
			},
			[]string{"site"},
		)

		submissionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_submissions_total",
				Help: "Answer submissions, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		activeRuns = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "quiz_active_runs",
				Help: "Number of workflow runs in progress.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quiz_rate_limit_delays_seconds",
				Help:    "Histogram of per-host render rate limit waits.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
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

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRender counts a page render for the URL's host.
func ObserveRender(rawURL, outcome string) {
	Init()
	renderTotal.WithLabelValues(SanitizeSite(rawURL), outcome).Inc()
}

// ObserveDownload counts an attachment download and its size.
func ObserveDownload(rawURL, outcome string, bytesFetched int) {
	Init()
	site := SanitizeSite(rawURL)
	downloadsTotal.WithLabelValues(site, outcome).Inc()
	if bytesFetched > 0 {
		downloadBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObserveSubmission counts a submission attempt by outcome.
func ObserveSubmission(outcome string) {
	Init()
	submissionsTotal.WithLabelValues(outcome).Inc()
}

// IncActiveRuns increments the active runs gauge.
func IncActiveRuns() {
	Init()
	activeRuns.Inc()
}

// DecActiveRuns decrements the active runs gauge.
func DecActiveRuns() {
	Init()
	activeRuns.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
