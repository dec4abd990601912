package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/prooflink/internal/audit/domain"
	reviewlinkdomain "github.com/smallbiznis/prooflink/internal/reviewlink/domain"
)

type issueReviewLinkRequest struct {
	TTLHours int64 `json:"ttl_hours"`
}

type issueReviewLinkResponse struct {
	Link  reviewlinkdomain.ReviewLink `json:"link"`
	Token string                      `json:"token"`
}

func (s *Server) IssueReviewLink(c *gin.Context) {
	var req issueReviewLinkRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	resp, err := s.linkSvc.Issue(c.Request.Context(), reviewlinkdomain.IssueRequest{
		DeliveryID: c.Param("id"),
		TTL:        time.Duration(req.TTLHours) * time.Hour,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(c, auditdomain.ActorTypeOwner, "review_link.issue", "review_link", resp.Link.ID.String(), map[string]any{
		"delivery_id": resp.Link.DeliveryID.String(),
		"expires_at":  resp.Link.ExpiresAt.Format(time.RFC3339),
	})

	// The plaintext token is returned here and nowhere else.
	c.JSON(http.StatusOK, issueReviewLinkResponse{
		Link:  resp.Link,
		Token: resp.Token,
	})
}

func (s *Server) DeactivateReviewLink(c *gin.Context) {
	if err := s.linkSvc.Deactivate(c.Request.Context(), reviewlinkdomain.DeactivateRequest{
		LinkID: c.Param("id"),
	}); err != nil {
		AbortWithError(c, err)
		return
	}

	linkID := c.Param("id")
	s.audit(c, auditdomain.ActorTypeOwner, "review_link.deactivate", "review_link", linkID, nil)

	c.JSON(http.StatusOK, gin.H{"deactivated": true})
}
