package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/prooflink/internal/earnings/domain"
	feedbackdomain "github.com/smallbiznis/prooflink/internal/feedback/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// ApprovedItems dedupes by (parent, label) keeping the earliest
// approving feedback, so re-approvals of later versions never show up
// twice.
func (r *repo) ApprovedItems(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, from, to *time.Time) ([]domain.ApprovedItem, error) {
	query := `SELECT f.parent_id, p.kind, d.item_label, li.type AS item_type, COALESCE(li.pages, 0) AS pages, MIN(f.created_at) AS approved_at
		 FROM feedbacks f
		 JOIN deliveries d ON d.id = f.delivery_id
		 JOIN parents p ON p.id = f.parent_id
		 LEFT JOIN parent_line_items li ON li.parent_id = f.parent_id AND li.label = d.item_label
		 WHERE p.owner_id = ? AND f.decision = ?`
	args := []interface{}{ownerID, feedbackdomain.DecisionApproved}
	if from != nil {
		query += ` AND f.created_at >= ?`
		args = append(args, *from)
	}
	if to != nil {
		query += ` AND f.created_at <= ?`
		args = append(args, *to)
	}
	query += ` GROUP BY f.parent_id, p.kind, d.item_label, li.type, li.pages
		 ORDER BY approved_at ASC`

	var items []domain.ApprovedItem
	err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
