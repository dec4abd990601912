package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/prooflink/internal/audit/domain"
	deliverydomain "github.com/smallbiznis/prooflink/internal/delivery/domain"
)

type submitDeliveryRequest struct {
	PayloadRef string `json:"payload_ref"`
	ItemLabel  string `json:"item_label"`
}

func (s *Server) SubmitDelivery(c *gin.Context) {
	var req submitDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	delivery, err := s.deliverySvc.Submit(c.Request.Context(), deliverydomain.SubmitRequest{
		ParentID:   c.Param("id"),
		PayloadRef: req.PayloadRef,
		ItemLabel:  req.ItemLabel,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(c, auditdomain.ActorTypeOwner, "delivery.submit", "delivery", delivery.ID.String(), map[string]any{
		"parent_id":  delivery.ParentID.String(),
		"version":    delivery.Version,
		"item_label": delivery.ItemLabel,
	})

	c.JSON(http.StatusOK, delivery)
}

func (s *Server) GetDeliveryByID(c *gin.Context) {
	delivery, err := s.deliverySvc.GetByID(c.Request.Context(), deliverydomain.GetDeliveryRequest{ID: c.Param("id")})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, delivery)
}

func (s *Server) ListDeliveryBatch(c *gin.Context) {
	deliveries, err := s.deliverySvc.ListBatch(c.Request.Context(), deliverydomain.GetDeliveryRequest{ID: c.Param("id")})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deliveries": deliveries})
}
