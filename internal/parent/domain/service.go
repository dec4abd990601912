package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/prooflink/pkg/db/pagination"
)

var (
	ErrInvalidOwner        = errors.New("invalid_owner")
	ErrInvalidKind         = errors.New("invalid_kind")
	ErrInvalidDescriptor   = errors.New("invalid_descriptor")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("not_found")
	ErrStateTransition     = errors.New("state_transition")
	ErrConcurrencyConflict = errors.New("concurrency_conflict")
)

type CreateParentRequest struct {
	Descriptor  string
	Kind        Kind
	AllowedSecs int64
}

type CreateParentResponse struct {
	Parent    Parent     `json:"parent"`
	LineItems []LineItem `json:"line_items"`
}

type GetParentRequest struct {
	ID string
}

// ItemProgress counts approved labels against the frozen expected set.
type ItemProgress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

type StatusResponse struct {
	Status           Status        `json:"status"`
	RevisionCount    int           `json:"revision_count"`
	Late             bool          `json:"late"`
	SecondsRemaining *int64        `json:"seconds_remaining,omitempty"`
	ItemProgress     *ItemProgress `json:"item_progress,omitempty"`
}

type ListParentRequest struct {
	PageToken   string
	PageSize    int32
	Status      Status
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ListParentFilter struct {
	Status      Status
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ListParentResponse struct {
	pagination.PageInfo
	Parents []Parent `json:"parents"`
}

type Service interface {
	Create(context.Context, CreateParentRequest) (CreateParentResponse, error)
	GetByID(context.Context, GetParentRequest) (Parent, error)
	GetStatus(context.Context, GetParentRequest) (StatusResponse, error)
	Cancel(context.Context, GetParentRequest) (Parent, error)
	List(context.Context, ListParentRequest) (ListParentResponse, error)
}
