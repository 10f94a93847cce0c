package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/advising-api/internal/service"
)

// unmatchedRoute labels requests gin could not route, keeping raw URLs out of metric labels.
const unmatchedRoute = "unmatched"

// Metrics observes every request by route template. Paths in skip, such as the scrape endpoint
// itself, are not recorded.
func Metrics(metrics *service.MetricsService, skip ...string) gin.HandlerFunc {
	ignored := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		ignored[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if _, ok := ignored[route]; ok {
			return
		}
		if route == "" {
			route = unmatchedRoute
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
