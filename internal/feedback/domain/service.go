package domain

import (
	"context"
	"errors"

	parentdomain "github.com/smallbiznis/prooflink/internal/parent/domain"
)

var (
	ErrInvalidDecision     = errors.New("invalid_decision")
	ErrInvalidRating       = errors.New("invalid_rating")
	ErrMissingRevision     = errors.New("missing_revision_detail")
	ErrNotFound            = errors.New("not_found")
	ErrExpiredLink         = errors.New("expired_link")
	ErrInactiveLink        = errors.New("inactive_link")
	ErrStateTransition     = errors.New("state_transition")
	ErrConcurrencyConflict = errors.New("concurrency_conflict")
)

type SubmitRequest struct {
	Token         string
	Decision      Decision
	Rating        *int
	FeedbackText  string
	RevisionNotes string
	Attachments   []string
	ReviewedBy    string
}

type SubmitResponse struct {
	Feedback     Feedback
	ParentStatus parentdomain.Status
	// Progress is set for bundled parents only.
	Progress *parentdomain.ItemProgress
}

type ListByParentRequest struct {
	ParentID string
}

type Service interface {
	Submit(context.Context, SubmitRequest) (SubmitResponse, error)
	ListByParent(context.Context, ListByParentRequest) ([]Feedback, error)
}
