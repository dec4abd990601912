package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/prooflink/internal/delivery/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, delivery *domain.Delivery) error {
	return db.WithContext(ctx).Create(delivery).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Delivery, error) {
	var delivery domain.Delivery
	err := db.WithContext(ctx).Raw(
		`SELECT id, parent_id, version, item_label, payload_ref, batch_id, submitted_at, created_at
		 FROM deliveries WHERE id = ?`,
		id,
	).Scan(&delivery).Error
	if err != nil {
		return nil, err
	}
	if delivery.ID == 0 {
		return nil, nil
	}
	return &delivery, nil
}

func (r *repo) MaxVersion(ctx context.Context, db *gorm.DB, parentID snowflake.ID) (int, error) {
	var max int
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(version), 0) FROM deliveries WHERE parent_id = ?`,
		parentID,
	).Scan(&max).Error
	return max, err
}

func (r *repo) LatestForLabel(ctx context.Context, db *gorm.DB, parentID snowflake.ID, label string) (*domain.Delivery, error) {
	var delivery domain.Delivery
	err := db.WithContext(ctx).Raw(
		`SELECT id, parent_id, version, item_label, payload_ref, batch_id, submitted_at, created_at
		 FROM deliveries
		 WHERE parent_id = ? AND item_label = ?
		 ORDER BY version DESC LIMIT 1`,
		parentID,
		label,
	).Scan(&delivery).Error
	if err != nil {
		return nil, err
	}
	if delivery.ID == 0 {
		return nil, nil
	}
	return &delivery, nil
}

func (r *repo) ListBatch(ctx context.Context, db *gorm.DB, batchID string) ([]*domain.Delivery, error) {
	var deliveries []*domain.Delivery
	err := db.WithContext(ctx).
		Model(&domain.Delivery{}).
		Where("batch_id = ?", batchID).
		Order("version asc").
		Find(&deliveries).Error
	if err != nil {
		return nil, err
	}
	return deliveries, nil
}
