package server

import (
	"net/http"
	"testing"

	deliverydomain "github.com/smallbiznis/prooflink/internal/delivery/domain"
	feedbackdomain "github.com/smallbiznis/prooflink/internal/feedback/domain"
	parentdomain "github.com/smallbiznis/prooflink/internal/parent/domain"
	reviewlinkdomain "github.com/smallbiznis/prooflink/internal/reviewlink/domain"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"invalid descriptor", parentdomain.ErrInvalidDescriptor, http.StatusBadRequest, "validation_error"},
		{"invalid label", deliverydomain.ErrInvalidLabel, http.StatusBadRequest, "validation_error"},
		{"missing revision detail", feedbackdomain.ErrMissingRevision, http.StatusBadRequest, "validation_error"},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"expired link", feedbackdomain.ErrExpiredLink, http.StatusGone, "expired_link"},
		{"inactive link", reviewlinkdomain.ErrInactiveLink, http.StatusGone, "inactive_link"},
		{"concurrency conflict", deliverydomain.ErrConcurrencyConflict, http.StatusConflict, "concurrency_conflict"},
		{"state transition", parentdomain.ErrStateTransition, http.StatusConflict, "state_transition"},
		{"not found", reviewlinkdomain.ErrDeliveryNotFound, http.StatusNotFound, "not_found"},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{"unknown", assert.AnError, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, payload := mapError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantType, payload.Type)
		})
	}
}

func TestMapError_ConflictIsRetryable(t *testing.T) {
	_, payload := mapError(feedbackdomain.ErrConcurrencyConflict)
	assert.True(t, payload.Retryable)

	_, payload = mapError(feedbackdomain.ErrStateTransition)
	assert.False(t, payload.Retryable)
}

func TestParseEarningsQuery(t *testing.T) {
	req, err := parseEarningsQuery("")
	assert.NoError(t, err)
	assert.Equal(t, "month", string(req.Period))
	assert.Nil(t, req.From)

	req, err = parseEarningsQuery("day")
	assert.NoError(t, err)
	assert.Equal(t, "day", string(req.Period))

	req, err = parseEarningsQuery("2025-06")
	assert.NoError(t, err)
	assert.Equal(t, "month", string(req.Period))
	assert.Equal(t, "2025-06-01", req.From.Format("2006-01-02"))
	assert.Equal(t, "2025-07-01", req.To.Format("2006-01-02"))

	req, err = parseEarningsQuery("2025-06-15")
	assert.NoError(t, err)
	assert.Equal(t, "day", string(req.Period))
	assert.Equal(t, "2025-06-16", req.To.Format("2006-01-02"))

	_, err = parseEarningsQuery("weekly")
	assert.Error(t, err)
}
