package http

import (
	"net/http"
	"strconv"
	"time"

	"veritas/internal/domain"

	"github.com/gin-gonic/gin"
)

func (s *Server) enforceRateLimit(c *gin.Context, routeID, tenantID string) bool {
	if s.rateLimiter == nil {
		return true
	}
	decision := s.rateLimiter.Allow(c.Request.Context(), tenantID, routeID)
	writeRateLimitHeaders(c, decision)
	if !decision.Allowed {
		writeErrorCode(c, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
		return false
	}
	return true
}

func writeRateLimitHeaders(c *gin.Context, decision domain.RateLimitDecision) {
	if decision.Limit > 0 {
		c.Header("RateLimit-Limit", strconv.Itoa(decision.Limit))
	}
	if decision.Remaining >= 0 {
		c.Header("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	}
	if !decision.ResetAt.IsZero() {
		resetUnix := decision.ResetAt.Unix()
		c.Header("RateLimit-Reset", strconv.FormatInt(resetUnix, 10))
		if !decision.Allowed {
			retryAfter := int64(time.Until(decision.ResetAt).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
		}
	}
}
