package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/prooflink/internal/parent/domain"
	"github.com/smallbiznis/prooflink/pkg/db/option"
	"github.com/smallbiznis/prooflink/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, parent *domain.Parent, items []*domain.LineItem) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(parent).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		return tx.Create(items).Error
	})
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Parent, error) {
	var parent domain.Parent
	err := db.WithContext(ctx).Raw(
		`SELECT id, owner_id, kind, descriptor, status, revision_count, started_at, allowed_secs, created_at, updated_at
		 FROM parents WHERE id = ?`,
		id,
	).Scan(&parent).Error
	if err != nil {
		return nil, err
	}
	if parent.ID == 0 {
		return nil, nil
	}
	return &parent, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, filter domain.ListParentFilter, page pagination.Pagination) ([]*domain.Parent, error) {
	var parents []*domain.Parent
	stmt := db.WithContext(ctx).
		Model(&domain.Parent{}).
		Where("owner_id = ?", ownerID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.CreatedFrom != nil {
		stmt = stmt.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		stmt = stmt.Where("created_at <= ?", *filter.CreatedTo)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&parents).Error
	if err != nil {
		return nil, err
	}
	return parents, nil
}

func (r *repo) ListLineItems(ctx context.Context, db *gorm.DB, parentID snowflake.ID) ([]*domain.LineItem, error) {
	var items []*domain.LineItem
	err := db.WithContext(ctx).
		Model(&domain.LineItem{}).
		Where("parent_id = ?", parentID).
		Order("position asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.Status, revisionCount int, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE parents SET status = ?, revision_count = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to,
		revisionCount,
		now.UTC(),
		id,
		from,
	)
	return result.RowsAffected, result.Error
}
