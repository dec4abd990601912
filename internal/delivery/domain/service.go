package domain

import (
	"context"
	"errors"
)

var (
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidPayload      = errors.New("invalid_payload")
	ErrInvalidLabel        = errors.New("invalid_label")
	ErrNotFound            = errors.New("not_found")
	ErrParentNotFound      = errors.New("parent_not_found")
	ErrParentTerminal      = errors.New("state_transition")
	ErrConcurrencyConflict = errors.New("concurrency_conflict")
)

type SubmitRequest struct {
	ParentID   string
	PayloadRef string
	ItemLabel  string
}

type GetDeliveryRequest struct {
	ID string
}

type Service interface {
	Submit(context.Context, SubmitRequest) (Delivery, error)
	GetByID(context.Context, GetDeliveryRequest) (Delivery, error)
	// ListBatch returns the delivery's batch mates in submission order,
	// including the delivery itself.
	ListBatch(context.Context, GetDeliveryRequest) ([]Delivery, error)
}
