package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Delivery is one submitted version of work against a parent. Version
// numbers are strictly increasing per parent; the composite unique
// index is the backstop that turns a lost race into a visible conflict
// instead of a silent duplicate.
type Delivery struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	ParentID    snowflake.ID `gorm:"not null;uniqueIndex:ux_deliveries_parent_version,priority:1" json:"parent_id"`
	Version     int          `gorm:"not null;uniqueIndex:ux_deliveries_parent_version,priority:2" json:"version"`
	ItemLabel   string       `gorm:"column:item_label;type:text;not null;default:''" json:"item_label,omitempty"`
	PayloadRef  string       `gorm:"column:payload_ref;type:text;not null" json:"payload_ref"`
	BatchID     string       `gorm:"column:batch_id;type:text;not null" json:"batch_id"`
	SubmittedAt time.Time    `gorm:"not null" json:"submitted_at"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Delivery) TableName() string { return "deliveries" }
