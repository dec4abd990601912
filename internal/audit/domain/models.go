package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeOwner  ActorType = "owner"
	ActorTypeClient ActorType = "client"
	ActorTypeSystem ActorType = "system"
)

// AuditLog is one recorded action. Client actions carry no owner; the
// link token identifies them indirectly through the target.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id,string"`
	OwnerID    *snowflake.ID     `gorm:"index" json:"owner_id,omitempty"`
	ActorType  string            `json:"actor_type"`
	ActorID    *string           `json:"actor_id,omitempty"`
	Action     string            `gorm:"index" json:"action"`
	TargetType string            `json:"target_type"`
	TargetID   *string           `json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	IPAddress  *string           `json:"ip_address,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	OwnerID    snowflake.ID
	Action     string
	TargetType string
	TargetID   string
	ActorType  string
	StartAt    *time.Time
	EndAt      *time.Time
	Cursor     *AuditCursor
	Limit      int
}
