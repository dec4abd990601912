package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/prooflink/internal/reviewlink/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, link *domain.ReviewLink) error {
	return db.WithContext(ctx).Create(link).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ReviewLink, error) {
	var link domain.ReviewLink
	err := db.WithContext(ctx).Raw(
		`SELECT id, delivery_id, token_hash, is_active, expires_at, views_count, last_viewed_at, created_at, updated_at
		 FROM review_links WHERE id = ?`,
		id,
	).Scan(&link).Error
	if err != nil {
		return nil, err
	}
	if link.ID == 0 {
		return nil, nil
	}
	return &link, nil
}

func (r *repo) FindByTokenHash(ctx context.Context, db *gorm.DB, hash string) (*domain.ReviewLink, error) {
	var link domain.ReviewLink
	err := db.WithContext(ctx).Raw(
		`SELECT id, delivery_id, token_hash, is_active, expires_at, views_count, last_viewed_at, created_at, updated_at
		 FROM review_links WHERE token_hash = ?`,
		hash,
	).Scan(&link).Error
	if err != nil {
		return nil, err
	}
	if link.ID == 0 {
		return nil, nil
	}
	return &link, nil
}

func (r *repo) DeactivateForDelivery(ctx context.Context, db *gorm.DB, deliveryID snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE review_links SET is_active = ?, updated_at = ? WHERE delivery_id = ? AND is_active = ?`,
		false,
		now.UTC(),
		deliveryID,
		true,
	).Error
}

func (r *repo) DeactivateByID(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE review_links SET is_active = ?, updated_at = ? WHERE id = ? AND is_active = ?`,
		false,
		now.UTC(),
		id,
		true,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) RecordView(ctx context.Context, db *gorm.DB, id snowflake.ID, viewedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE review_links SET views_count = views_count + 1, last_viewed_at = ?, updated_at = ? WHERE id = ?`,
		viewedAt,
		viewedAt,
		id,
	).Error
}
