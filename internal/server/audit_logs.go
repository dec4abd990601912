package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/prooflink/internal/audit/domain"
	"github.com/smallbiznis/prooflink/pkg/db/pagination"
)

func (s *Server) ListAuditLogs(c *gin.Context) {
	req := auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{
			PageToken: c.Query("page_token"),
			PageSize:  int(parseInt32(c.Query("page_size"))),
		},
		Action:     c.Query("action"),
		TargetType: c.Query("target_type"),
		TargetID:   c.Query("target_id"),
		ActorType:  c.Query("actor_type"),
	}
	if from, ok := parseTime(c.Query("start_at")); ok {
		req.StartAt = &from
	}
	if to, ok := parseTime(c.Query("end_at")); ok {
		req.EndAt = &to
	}

	resp, err := s.auditSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
