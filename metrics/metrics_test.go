package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthRejected("expired")
	c.RecordAuthRejected("expired")
	c.RecordAuthRejected("malformed")
	c.RecordArticleRead()
	c.RecordArticleCreated()
	c.RecordArticleDeleted()
	c.RecordHTTP(http.StatusNotFound, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.authRejected.WithLabelValues("expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.authRejected.WithLabelValues("malformed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.articleReads))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpStatus.WithLabelValues("404")))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordAuthRejected("unknown")
		c.RecordArticleRead()
		c.RecordHTTP(200, time.Second)
	})
}

func TestHandlerServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordArticleCreated()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "billboard_articles_created_total 1"))
}
