package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/prooflink/pkg/db/pagination"
)

var (
	ErrInvalidOwner     = errors.New("invalid_owner")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
	ErrInvalidAction    = errors.New("invalid_action")
)

type ListAuditLogRequest struct {
	pagination.Pagination
	Action     string
	TargetType string
	TargetID   string
	ActorType  string
	StartAt    *time.Time
	EndAt      *time.Time
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	// Record writes one entry. Failures are returned for the caller to
	// log; recording never blocks the action it describes.
	Record(ctx context.Context, actorType ActorType, action, targetType string, targetID *string, metadata map[string]any) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}
