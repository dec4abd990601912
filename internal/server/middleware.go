package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/prooflink/internal/ownerctx"
)

// OwnerRequired reads the acting owner from the X-Owner-ID header.
// Authentication is out of scope for this service; the header is set by
// the gateway in front of it.
func (s *Server) OwnerRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("X-Owner-ID"))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ownerID, err := snowflake.ParseString(raw)
		if err != nil || ownerID == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := ownerctx.WithOwnerID(c.Request.Context(), int64(ownerID))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// PublicReviewRateLimit throttles the anonymous review endpoints by
// client IP. A limiter that errors fails open; a missing one is a
// no-op.
func (s *Server) PublicReviewRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.publicLimiter.Enabled() {
			c.Next()
			return
		}

		result, err := s.publicLimiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			c.Next()
			return
		}
		if !result.Allowed {
			s.recordRateLimit(c, false)
			AbortWithError(c, ErrRateLimited)
			return
		}
		s.recordRateLimit(c, true)
		c.Next()
	}
}

func (s *Server) recordRateLimit(c *gin.Context, allowed bool) {
	s.obsMetrics.RecordRateLimit(c.Request.Context(), allowed)
}
