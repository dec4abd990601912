package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/prooflink/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, parent *Parent, items []*LineItem) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Parent, error)
	List(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, filter ListParentFilter, page pagination.Pagination) ([]*Parent, error)
	ListLineItems(ctx context.Context, db *gorm.DB, parentID snowflake.ID) ([]*LineItem, error)
	// UpdateStatus compares against the expected current status so two
	// concurrent transitions cannot both win. Returns the number of
	// rows changed.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Status, revisionCount int, now time.Time) (int64, error)
}
