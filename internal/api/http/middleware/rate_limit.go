package middleware

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitPerUser limits requests per caller identity. Each chat call
// burns real money at the provider, so the layer-processing endpoint
// gets a per-user token bucket: rps sustained, burst at once.
func RateLimitPerUser(rps float64, burst int) gin.HandlerFunc {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
	)

	limiterFor := func(key string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[key]
		if !ok {
			l = rate.NewLimiter(rate.Limit(rps), burst)
			limiters[key] = l
		}
		return l
	}

	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader("X-User-Id"))
		if key == "" {
			key = c.ClientIP()
		}

		if !limiterFor(key).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status":  "error",
				"message": "too many pipeline requests, slow down",
			})
			return
		}

		c.Next()
	}
}
