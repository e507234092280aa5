// Package metrics exposes Prometheus collectors for a profile crawl.
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
	postsTotal                 *prometheus.CounterVec
	resolutionsTotal           *prometheus.CounterVec
	downloadsTotal             *prometheus.CounterVec
	downloadBytesTotal         *prometheus.CounterVec
	scrollIterations           prometheus.Gauge
	linksFound                 prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		postsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "profilegrab_posts_total",
				Help: "Total number of posts processed, labeled by kind and result.",
			},
			[]string{"kind", "result"},
		)

		resolutionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "profilegrab_resolutions_total",
				Help: "Total number of media URLs resolved, labeled by strategy.",
			},
			[]string{"strategy"},
		)

		downloadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "profilegrab_downloads_total",
				Help: "Total number of downloads, labeled by media host and outcome.",
			},
			[]string{"site", "outcome"},
		)

		downloadBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "profilegrab_download_bytes_total",
				Help: "Total number of bytes written to disk, labeled by media host.",
			},
			[]string{"site"},
		)

		scrollIterations = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "profilegrab_scroll_iterations",
				Help: "Scroll iterations performed on the profile page.",
			},
		)

		linksFound = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "profilegrab_links_found",
				Help: "Unique post links extracted from the profile page.",
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
	Init()
	return promhttp.Handler()
}

// ObservePost counts a processed post.
func ObservePost(kind, result string) {
	Init()
	postsTotal.WithLabelValues(kind, result).Inc()
}

// ObserveResolution counts a resolved media URL by strategy.
func ObserveResolution(strategy string) {
	Init()
	resolutionsTotal.WithLabelValues(strategy).Inc()
}

// ObserveDownload counts a download and the bytes written for it.
func ObserveDownload(mediaURL, outcome string, bytesWritten int64) {
	Init()
	site := SanitizeSite(mediaURL)
	downloadsTotal.WithLabelValues(site, outcome).Inc()
	if bytesWritten > 0 {
		downloadBytesTotal.WithLabelValues(site).Add(float64(bytesWritten))
	}
}

// SetScrollIterations records how many scroll steps the profile needed.
func SetScrollIterations(n int) {
	Init()
	scrollIterations.Set(float64(n))
}

// SetLinksFound records the number of unique post links.
func SetLinksFound(n int) {
	Init()
	linksFound.Set(float64(n))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
