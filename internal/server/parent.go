package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/prooflink/internal/audit/domain"
	feedbackdomain "github.com/smallbiznis/prooflink/internal/feedback/domain"
	parentdomain "github.com/smallbiznis/prooflink/internal/parent/domain"
)

type createParentRequest struct {
	Descriptor  string `json:"descriptor"`
	Kind        string `json:"kind"`
	AllowedSecs int64  `json:"allowed_secs"`
}

func (s *Server) CreateParent(c *gin.Context) {
	var req createParentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.parentSvc.Create(c.Request.Context(), parentdomain.CreateParentRequest{
		Descriptor:  req.Descriptor,
		Kind:        parentdomain.Kind(strings.TrimSpace(req.Kind)),
		AllowedSecs: req.AllowedSecs,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(c, auditdomain.ActorTypeOwner, "parent.create", "parent", resp.Parent.ID.String(), map[string]any{
		"kind":       string(resp.Parent.Kind),
		"line_items": len(resp.LineItems),
	})

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListParents(c *gin.Context) {
	req := parentdomain.ListParentRequest{
		PageToken: c.Query("page_token"),
		Status:    parentdomain.Status(strings.TrimSpace(c.Query("status"))),
	}
	if size := parseInt32(c.Query("page_size")); size > 0 {
		req.PageSize = size
	}
	if from, ok := parseTime(c.Query("created_from")); ok {
		req.CreatedFrom = &from
	}
	if to, ok := parseTime(c.Query("created_to")); ok {
		req.CreatedTo = &to
	}

	resp, err := s.parentSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetParentByID(c *gin.Context) {
	resp, err := s.parentSvc.GetByID(c.Request.Context(), parentdomain.GetParentRequest{ID: c.Param("id")})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetParentStatus(c *gin.Context) {
	resp, err := s.parentSvc.GetStatus(c.Request.Context(), parentdomain.GetParentRequest{ID: c.Param("id")})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) CancelParent(c *gin.Context) {
	resp, err := s.parentSvc.Cancel(c.Request.Context(), parentdomain.GetParentRequest{ID: c.Param("id")})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(c, auditdomain.ActorTypeOwner, "parent.cancel", "parent", resp.ID.String(), nil)

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListParentFeedback(c *gin.Context) {
	resp, err := s.feedbackSvc.ListByParent(c.Request.Context(), feedbackdomain.ListByParentRequest{
		ParentID: c.Param("id"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"feedback": resp})
}

func (s *Server) audit(c *gin.Context, actor auditdomain.ActorType, action, targetType, targetID string, metadata map[string]any) {
	target := targetID
	_ = s.auditSvc.Record(c.Request.Context(), actor, action, targetType, &target, metadata)
}

func parseInt32(value string) int32 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 32)
	if err != nil {
		return 0
	}
	return int32(parsed)
}

func parseTime(value string) (time.Time, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, false
	}
	parsed, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}
