package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	awspkg "github.com/gainmode46-star/gainmode-backend/pkg/aws"
)

// Metrics records request counts, error counts, and latency to CloudWatch.
// Emission runs off the request goroutine so a slow CloudWatch call never
// delays the response.
func Metrics(metrics *awspkg.MetricsClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil || !metrics.IsEnabled() {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		dims := map[string]string{
			"Method": c.Request.Method,
			"Route":  c.FullPath(),
		}
		status := c.Writer.Status()

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			_ = metrics.RecordCount(ctx, awspkg.MetricHTTPRequests, dims)
			_ = metrics.RecordLatency(ctx, awspkg.MetricHTTPLatency, elapsed, dims)
			if status >= 500 {
				_ = metrics.RecordCount(ctx, awspkg.MetricHTTPErrors, dims)
			}
		}()
	}
}
