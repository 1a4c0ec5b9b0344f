// Package metrics collects and exposes Prometheus metrics for the board.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records board events. A nil *Collector is a valid no-op.
type Collector struct {
	authRejected    *prometheus.CounterVec
	articleReads    prometheus.Counter
	articlesCreated prometheus.Counter
	articlesDeleted prometheus.Counter
	blobCleanupFail prometheus.Counter
	httpStatus      *prometheus.CounterVec
	httpLatency     prometheus.Histogram
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billboard_auth_rejected_total",
			Help: "Requests rejected by the auth gate, by reason.",
		}, []string{"reason"}),
		articleReads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billboard_article_reads_total",
			Help: "Counted article fetches.",
		}),
		articlesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billboard_articles_created_total",
			Help: "Articles created.",
		}),
		articlesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billboard_articles_deleted_total",
			Help: "Articles deleted.",
		}),
		blobCleanupFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billboard_blob_cleanup_failures_total",
			Help: "Blobs that could not be removed after their file row was deleted.",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billboard_http_status_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "billboard_http_latency_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.authRejected,
		c.articleReads,
		c.articlesCreated,
		c.articlesDeleted,
		c.blobCleanupFail,
		c.httpStatus,
		c.httpLatency,
	)
	return c
}

// RecordAuthRejected counts a rejected request.
func (c *Collector) RecordAuthRejected(reason string) {
	if c == nil {
		return
	}
	c.authRejected.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordArticleRead() {
	if c == nil {
		return
	}
	c.articleReads.Inc()
}

func (c *Collector) RecordArticleCreated() {
	if c == nil {
		return
	}
	c.articlesCreated.Inc()
}

func (c *Collector) RecordArticleDeleted() {
	if c == nil {
		return
	}
	c.articlesDeleted.Inc()
}

func (c *Collector) RecordBlobCleanupFailure() {
	if c == nil {
		return
	}
	c.blobCleanupFail.Inc()
}

// RecordHTTP records the status and latency of one request.
func (c *Collector) RecordHTTP(statusCode int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	c.httpLatency.Observe(d.Seconds())
}

// Handler returns the Prometheus scrape handler.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
