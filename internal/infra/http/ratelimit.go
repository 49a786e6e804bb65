package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lineage/internal/domain"
	"lineage/internal/infra/hashing"
)

const (
	routeReport    = "collections:report"
	routeGraph     = "graph:read"
	routeFling     = "fling:read"
	routeTaints    = "taints:read"
	routeMark      = "taints:mark"
	routeSearch    = "search"
	routeActors    = "actors:list"
	routeWorkflows = "workflows:list"
	routePrivilege = "privileges:read"
)

// enforceRateLimit counts the request against the viewer, or the client
// address when no viewer is named.
func (s *Server) enforceRateLimit(c *gin.Context, routeID string, viewer domain.Viewer) bool {
	if s.rateLimiter == nil || s.rateLimitRequests <= 0 {
		return true
	}
	who := domain.RateLimitSubject(viewer, c.ClientIP())
	if viewer.ActorID != "" && s.rateLimitViewerMax > 0 && len(who) > s.rateLimitViewerMax {
		who = "hash:" + hashing.SHA256Hex([]byte(who))
	}
	key := domain.RateLimitKey(who, routeID)

	decision, err := s.rateLimiter.Allow(c.Request.Context(), key, s.rateLimitRequests, s.rateLimitWindow)
	if err != nil {
		s.logger.Warn("rate limiter failed", zap.String("route", routeID), zap.Error(err))
		if s.rateLimitFailClosed {
			writeErrorCode(c, http.StatusTooManyRequests, "RATE_LIMIT_UNAVAILABLE", "rate limiter unavailable")
			return false
		}
		return true
	}
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
		c.Header("RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		if !decision.Allowed {
			retryAfter := decision.RetryAfter(time.Now())
			c.Header("Retry-After", strconv.FormatInt(int64(retryAfter/time.Second), 10))
		}
	}
}
