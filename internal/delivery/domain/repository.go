package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, delivery *Delivery) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Delivery, error)
	MaxVersion(ctx context.Context, db *gorm.DB, parentID snowflake.ID) (int, error)
	LatestForLabel(ctx context.Context, db *gorm.DB, parentID snowflake.ID, label string) (*Delivery, error)
	ListBatch(ctx context.Context, db *gorm.DB, batchID string) ([]*Delivery, error)
}
