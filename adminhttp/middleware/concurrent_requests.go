package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"
)

// CapConcurrentRequests limits concurrently in-flight requests, rejecting
// the excess with HTTP 429. Same purpose as the teacher's
// internal/http/middleware/concurrent_requests.go, rebuilt on
// golang.org/x/sync/semaphore.Weighted instead of a bare buffered channel
// — the supervisor corpus already carries x/sync as a dependency and the
// weighted semaphore gives a non-blocking TryAcquire with the same
// reject-on-full behavior.
func CapConcurrentRequests(maxConcurrent int64) gin.HandlerFunc {
	sem := semaphore.NewWeighted(maxConcurrent)

	return func(c *gin.Context) {
		if !sem.TryAcquire(1) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many concurrent requests",
			})
			return
		}
		defer sem.Release(1)
		c.Next()
	}
}
