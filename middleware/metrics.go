package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/billboard/metrics"
)

// Metrics records the status and latency of every request.
func Metrics(m *metrics.Collector) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		m.RecordHTTP(ctx.Writer.Status(), time.Since(start))
	}
}
