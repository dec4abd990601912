package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, feedback *Feedback) error
	ListByParent(ctx context.Context, db *gorm.DB, parentID snowflake.ID) ([]*Feedback, error)
	// ApprovedLabels reads the distinct item labels of the parent's
	// approved feedback, joined through deliveries.
	ApprovedLabels(ctx context.Context, db *gorm.DB, parentID snowflake.ID) ([]string, error)
}
