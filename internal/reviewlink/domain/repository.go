package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, link *ReviewLink) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ReviewLink, error)
	FindByTokenHash(ctx context.Context, db *gorm.DB, hash string) (*ReviewLink, error)
	// DeactivateForDelivery clears any active link before a new one is
	// issued. DeactivateByID is the single-use CAS variant.
	DeactivateForDelivery(ctx context.Context, db *gorm.DB, deliveryID snowflake.ID, now time.Time) error
	DeactivateByID(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (int64, error)
	RecordView(ctx context.Context, db *gorm.DB, id snowflake.ID, viewedAt time.Time) error
}
