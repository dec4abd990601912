package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/prooflink/internal/audit/domain"
	deliverydomain "github.com/smallbiznis/prooflink/internal/delivery/domain"
	feedbackdomain "github.com/smallbiznis/prooflink/internal/feedback/domain"
	parentdomain "github.com/smallbiznis/prooflink/internal/parent/domain"
	reviewlinkdomain "github.com/smallbiznis/prooflink/internal/reviewlink/domain"
)

type resolveReviewResponse struct {
	Valid      bool                      `json:"valid"`
	Reason     string                    `json:"reason,omitempty"`
	Delivery   *deliverydomain.Delivery  `json:"delivery,omitempty"`
	Batch      []deliverydomain.Delivery `json:"batch,omitempty"`
	ParentKind parentdomain.Kind         `json:"parent_kind,omitempty"`
	ExpiresAt  string                    `json:"expires_at,omitempty"`
}

// ResolveReviewLink renders the public review page context. Invalid
// tokens are a normal outcome here, not an error.
func (s *Server) ResolveReviewLink(c *gin.Context) {
	resolved, err := s.linkSvc.Resolve(c.Request.Context(), reviewlinkdomain.ResolveRequest{
		Token: c.Param("token"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if !resolved.Valid {
		s.audit(c, auditdomain.ActorTypeClient, "review_link.resolve_invalid", "review_link", "", map[string]any{
			"reason": resolved.Reason,
		})
		c.JSON(http.StatusOK, resolveReviewResponse{
			Valid:  false,
			Reason: resolved.Reason,
		})
		return
	}

	delivery, err := s.deliverySvc.GetByID(c.Request.Context(), deliverydomain.GetDeliveryRequest{
		ID: resolved.Link.DeliveryID.String(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	batch, err := s.deliverySvc.ListBatch(c.Request.Context(), deliverydomain.GetDeliveryRequest{
		ID: delivery.ID.String(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	parent, err := s.parentSvc.GetByID(c.Request.Context(), parentdomain.GetParentRequest{
		ID: delivery.ParentID.String(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resolveReviewResponse{
		Valid:      true,
		Delivery:   &delivery,
		Batch:      batch,
		ParentKind: parent.Kind,
		ExpiresAt:  resolved.Link.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

type submitFeedbackRequest struct {
	Decision      string   `json:"decision"`
	Rating        *int     `json:"rating"`
	FeedbackText  string   `json:"feedback_text"`
	RevisionNotes string   `json:"revision_notes"`
	Attachments   []string `json:"attachments"`
	ReviewedBy    string   `json:"reviewed_by"`
}

type submitFeedbackResponse struct {
	Feedback     feedbackdomain.Feedback    `json:"feedback"`
	ParentStatus parentdomain.Status        `json:"parent_status"`
	Progress     *parentdomain.ItemProgress `json:"progress,omitempty"`
}

func (s *Server) SubmitFeedback(c *gin.Context) {
	var req submitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.feedbackSvc.Submit(c.Request.Context(), feedbackdomain.SubmitRequest{
		Token:         c.Param("token"),
		Decision:      feedbackdomain.Decision(req.Decision),
		Rating:        req.Rating,
		FeedbackText:  req.FeedbackText,
		RevisionNotes: req.RevisionNotes,
		Attachments:   req.Attachments,
		ReviewedBy:    req.ReviewedBy,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(c, auditdomain.ActorTypeClient, "feedback.submit", "feedback", resp.Feedback.ID.String(), map[string]any{
		"parent_id": resp.Feedback.ParentID.String(),
		"decision":  string(resp.Feedback.Decision),
	})

	c.JSON(http.StatusOK, submitFeedbackResponse{
		Feedback:     resp.Feedback,
		ParentStatus: resp.ParentStatus,
		Progress:     resp.Progress,
	})
}
