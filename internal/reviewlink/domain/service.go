package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidTTL          = errors.New("invalid_ttl")
	ErrNotFound            = errors.New("not_found")
	ErrDeliveryNotFound    = errors.New("delivery_not_found")
	ErrInactiveLink        = errors.New("inactive_link")
	ErrExpiredLink         = errors.New("expired_link")
	ErrConcurrencyConflict = errors.New("concurrency_conflict")
)

// Resolve reasons reported to the public review page.
const (
	ReasonNotFound = "not_found"
	ReasonInactive = "inactive"
	ReasonExpired  = "expired"
)

type IssueRequest struct {
	DeliveryID string
	TTL        time.Duration
}

// IssueResponse carries the plaintext token exactly once.
type IssueResponse struct {
	Link  ReviewLink
	Token string
}

type ResolveRequest struct {
	Token string
}

type ResolveResponse struct {
	Valid  bool
	Reason string
	Link   ReviewLink
}

type DeactivateRequest struct {
	LinkID string
}

type Service interface {
	Issue(context.Context, IssueRequest) (IssueResponse, error)
	// Resolve never fails on bad tokens; invalid lookups come back as
	// Valid=false with a reason so the public page can render them.
	Resolve(context.Context, ResolveRequest) (ResolveResponse, error)
	Deactivate(context.Context, DeactivateRequest) error
}
