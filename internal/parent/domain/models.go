package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Kind distinguishes single-artifact parents from bundled multi-item ones.
type Kind string

const (
	KindSingle  Kind = "single"
	KindBundled Kind = "bundled"
)

// Valid reports whether the kind is one of the closed set.
func (k Kind) Valid() bool {
	return k == KindSingle || k == KindBundled
}

// Parent is the unit of work tracked from creation to approval.
type Parent struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	OwnerID       snowflake.ID `gorm:"not null;index" json:"owner_id"`
	Kind          Kind         `gorm:"type:text;not null" json:"kind"`
	Descriptor    string       `gorm:"type:text;not null" json:"descriptor"`
	Status        Status       `gorm:"type:text;not null" json:"status"`
	RevisionCount int          `gorm:"not null;default:0" json:"revision_count"`
	StartedAt     time.Time    `gorm:"not null" json:"started_at"`
	AllowedSecs   int64        `gorm:"column:allowed_secs;not null;default:0" json:"allowed_secs"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Parent) TableName() string { return "parents" }

// LineItem is a frozen expected item of a bundled parent. The label is
// its identity; labels are unique within a parent.
type LineItem struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	ParentID  snowflake.ID `gorm:"not null;uniqueIndex:ux_parent_line_items_label,priority:1" json:"parent_id"`
	Label     string       `gorm:"type:text;not null;uniqueIndex:ux_parent_line_items_label,priority:2" json:"label"`
	Type      string       `gorm:"type:text;not null" json:"type"`
	Pages     int          `gorm:"not null;default:0" json:"pages"`
	Position  int          `gorm:"not null" json:"position"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (LineItem) TableName() string { return "parent_line_items" }
