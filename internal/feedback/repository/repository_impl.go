package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/prooflink/internal/feedback/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, feedback *domain.Feedback) error {
	return db.WithContext(ctx).Create(feedback).Error
}

func (r *repo) ListByParent(ctx context.Context, db *gorm.DB, parentID snowflake.ID) ([]*domain.Feedback, error) {
	var items []*domain.Feedback
	err := db.WithContext(ctx).
		Model(&domain.Feedback{}).
		Where("parent_id = ?", parentID).
		Order("created_at asc, id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ApprovedLabels(ctx context.Context, db *gorm.DB, parentID snowflake.ID) ([]string, error) {
	var labels []string
	err := db.WithContext(ctx).Raw(
		`SELECT DISTINCT d.item_label
		 FROM feedbacks f
		 JOIN deliveries d ON d.id = f.delivery_id
		 WHERE f.parent_id = ? AND f.decision = ?`,
		parentID,
		domain.DecisionApproved,
	).Scan(&labels).Error
	if err != nil {
		return nil, err
	}
	return labels, nil
}
