package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ReviewLink is a tokenized, expiring pointer to one delivery. Only the
// sha256 hash of the token is stored; the plaintext is returned once at
// issuance and never again.
type ReviewLink struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id,string"`
	DeliveryID   snowflake.ID `gorm:"index" json:"delivery_id,string"`
	TokenHash    string       `gorm:"uniqueIndex:ux_review_links_token_hash;size:64" json:"-"`
	IsActive     bool         `json:"is_active"`
	ExpiresAt    time.Time    `json:"expires_at"`
	ViewsCount   int          `json:"views_count"`
	LastViewedAt *time.Time   `json:"last_viewed_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (ReviewLink) TableName() string {
	return "review_links"
}

func (l ReviewLink) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}
