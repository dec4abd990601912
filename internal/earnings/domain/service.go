package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidOwner  = errors.New("invalid_owner")
	ErrInvalidPeriod = errors.New("invalid_period")
)

// Period is the grouping granularity of an earnings summary.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

func (p Period) Valid() bool {
	return p == PeriodDay || p == PeriodMonth
}

// Record is one earned item: the earliest approval of a (parent, label)
// pair. Re-approvals of later versions never earn twice.
type Record struct {
	ParentID   snowflake.ID `json:"parent_id,string"`
	ItemLabel  string       `json:"item_label,omitempty"`
	Amount     int          `json:"amount"`
	ApprovedAt time.Time    `json:"approved_at"`
}

// Group is the rollup of records sharing one period bucket.
type Group struct {
	Period string `json:"period"`
	Amount int    `json:"amount"`
	Count  int    `json:"count"`
}

type SummaryRequest struct {
	Period Period
	From   *time.Time
	To     *time.Time
}

type SummaryResponse struct {
	Total   int      `json:"total"`
	Groups  []Group  `json:"groups"`
	Records []Record `json:"records"`
}

type Service interface {
	// Summary is a pure read over feedback rows; running it twice
	// returns the same result.
	Summary(context.Context, SummaryRequest) (SummaryResponse, error)
}
