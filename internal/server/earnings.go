package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	earningsdomain "github.com/smallbiznis/prooflink/internal/earnings/domain"
)

// GetEarningsSummary accepts period=day|month for a bare granularity,
// or a concrete bucket like 2025-06 or 2025-06-15 to scope the range
// to that bucket.
func (s *Server) GetEarningsSummary(c *gin.Context) {
	req, err := parseEarningsQuery(c.Query("period"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.earningsSvc.Summary(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func parseEarningsQuery(period string) (earningsdomain.SummaryRequest, error) {
	trimmed := strings.TrimSpace(period)
	switch trimmed {
	case "", "month":
		return earningsdomain.SummaryRequest{Period: earningsdomain.PeriodMonth}, nil
	case "day":
		return earningsdomain.SummaryRequest{Period: earningsdomain.PeriodDay}, nil
	}

	if day, err := time.Parse("2006-01-02", trimmed); err == nil {
		from := day
		to := day.AddDate(0, 0, 1)
		return earningsdomain.SummaryRequest{
			Period: earningsdomain.PeriodDay,
			From:   &from,
			To:     &to,
		}, nil
	}

	if month, err := time.Parse("2006-01", trimmed); err == nil {
		from := month
		to := month.AddDate(0, 1, 0)
		return earningsdomain.SummaryRequest{
			Period: earningsdomain.PeriodMonth,
			From:   &from,
			To:     &to,
		}, nil
	}

	return earningsdomain.SummaryRequest{}, earningsdomain.ErrInvalidPeriod
}
