package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
)

// Decision is the client's verdict on a delivery.
type Decision string

const (
	DecisionApproved          Decision = "approved"
	DecisionRevisionRequested Decision = "revision_requested"
)

func (d Decision) Valid() bool {
	return d == DecisionApproved || d == DecisionRevisionRequested
}

// Feedback is one client decision, bound one-to-one to the review link
// it came through. The unique link id is what makes a link single-use
// at the storage layer.
type Feedback struct {
	ID            snowflake.ID   `gorm:"primaryKey" json:"id,string"`
	ReviewLinkID  snowflake.ID   `gorm:"uniqueIndex:ux_feedbacks_review_link_id" json:"review_link_id,string"`
	DeliveryID    snowflake.ID   `gorm:"index" json:"delivery_id,string"`
	ParentID      snowflake.ID   `gorm:"index" json:"parent_id,string"`
	Decision      Decision       `gorm:"size:32" json:"decision"`
	Rating        *int           `json:"rating,omitempty"`
	FeedbackText  string         `json:"feedback_text,omitempty"`
	RevisionNotes string         `json:"revision_notes,omitempty"`
	Attachments   pq.StringArray `gorm:"type:text[]" json:"attachments,omitempty"`
	ReviewedBy    string         `json:"reviewed_by,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

func (Feedback) TableName() string {
	return "feedbacks"
}
