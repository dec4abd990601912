package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	deliverydomain "github.com/smallbiznis/prooflink/internal/delivery/domain"
	earningsdomain "github.com/smallbiznis/prooflink/internal/earnings/domain"
	feedbackdomain "github.com/smallbiznis/prooflink/internal/feedback/domain"
	parentdomain "github.com/smallbiznis/prooflink/internal/parent/domain"
	reviewlinkdomain "github.com/smallbiznis/prooflink/internal/reviewlink/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type      string            `json:"type"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable,omitempty"`
	Errors    []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrRateLimited        = errors.New("rate_limited")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, feedbackdomain.ErrExpiredLink),
		errors.Is(err, reviewlinkdomain.ErrExpiredLink):
		return http.StatusGone, errorPayload{
			Type:    "expired_link",
			Message: "review link expired",
		}
	case errors.Is(err, feedbackdomain.ErrInactiveLink),
		errors.Is(err, reviewlinkdomain.ErrInactiveLink):
		return http.StatusGone, errorPayload{
			Type:    "inactive_link",
			Message: "review link no longer active",
		}
	case isConcurrencyConflict(err):
		return http.StatusConflict, errorPayload{
			Type:      "concurrency_conflict",
			Message:   "concurrent update lost, retry the request",
			Retryable: true,
		}
	case isStateTransition(err):
		return http.StatusConflict, errorPayload{
			Type:    "state_transition",
			Message: "operation not allowed in the current state",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:      "rate_limited",
			Message:   "too many requests",
			Retryable: true,
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, parentdomain.ErrInvalidOwner),
		errors.Is(err, parentdomain.ErrInvalidKind),
		errors.Is(err, parentdomain.ErrInvalidDescriptor),
		errors.Is(err, parentdomain.ErrInvalidID),
		errors.Is(err, deliverydomain.ErrInvalidID),
		errors.Is(err, deliverydomain.ErrInvalidPayload),
		errors.Is(err, deliverydomain.ErrInvalidLabel),
		errors.Is(err, reviewlinkdomain.ErrInvalidID),
		errors.Is(err, reviewlinkdomain.ErrInvalidTTL),
		errors.Is(err, feedbackdomain.ErrInvalidDecision),
		errors.Is(err, feedbackdomain.ErrInvalidRating),
		errors.Is(err, feedbackdomain.ErrMissingRevision),
		errors.Is(err, earningsdomain.ErrInvalidOwner),
		errors.Is(err, earningsdomain.ErrInvalidPeriod):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, parentdomain.ErrNotFound),
		errors.Is(err, deliverydomain.ErrNotFound),
		errors.Is(err, deliverydomain.ErrParentNotFound),
		errors.Is(err, reviewlinkdomain.ErrNotFound),
		errors.Is(err, reviewlinkdomain.ErrDeliveryNotFound),
		errors.Is(err, feedbackdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConcurrencyConflict(err error) bool {
	return errors.Is(err, parentdomain.ErrConcurrencyConflict) ||
		errors.Is(err, deliverydomain.ErrConcurrencyConflict) ||
		errors.Is(err, reviewlinkdomain.ErrConcurrencyConflict) ||
		errors.Is(err, feedbackdomain.ErrConcurrencyConflict)
}

func isStateTransition(err error) bool {
	return errors.Is(err, parentdomain.ErrStateTransition) ||
		errors.Is(err, deliverydomain.ErrParentTerminal) ||
		errors.Is(err, feedbackdomain.ErrStateTransition)
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	if strings.HasPrefix(code, "missing_") {
		return strings.TrimPrefix(code, "missing_")
	}
	return ""
}

// classifyErrorForLog feeds the request logger's error fields.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		return "internal_error", payload.Type
	case status == http.StatusConflict:
		return "conflict", payload.Type
	default:
		return "validation_error", payload.Type
	}
}
