package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ApprovedItem is one deduplicated (parent, label) approval with the
// structured line item alongside when one exists.
type ApprovedItem struct {
	ParentID   snowflake.ID
	Kind       string
	ItemLabel  string
	ItemType   string
	Pages      int
	ApprovedAt time.Time
}

type Repository interface {
	ApprovedItems(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, from, to *time.Time) ([]ApprovedItem, error)
}
