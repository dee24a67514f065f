package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/uniedit/paycore/internal/shared/metrics"
)

// Metrics records request counts, latencies and in-flight gauge per route.
// The scrape endpoint itself is excluded to keep the series clean.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Route pattern keeps cardinality bounded; unmatched requests
		// fall back to the raw path.
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		if route == "/metrics" {
			c.Next()
			return
		}

		m.HTTPRequestsInFlight.Inc()
		start := time.Now()
		defer func() {
			m.HTTPRequestsInFlight.Dec()
			m.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
		}()

		c.Next()
	}
}
