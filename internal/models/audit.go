package models

import (
	"time"

	"gorm.io/datatypes"
)

// Audit outcomes.
const (
	AuditOutcomeBlocked   = "blocked"
	AuditOutcomeSucceeded = "succeeded"
)

// AuditEvent is an append-only record of an authorization decision of consequence.
type AuditEvent struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	ActorID       string            `gorm:"size:128;not null;index" json:"actor_id"`
	ActorRole     string            `gorm:"size:32;not null" json:"actor_role"`
	Action        string            `gorm:"size:64;not null;index" json:"action"`
	EntityType    string            `gorm:"size:64;not null" json:"entity_type"`
	EntityID      string            `gorm:"size:128;index" json:"entity_id"`
	Outcome       string            `gorm:"size:16;not null" json:"outcome"`
	Reason        string            `gorm:"size:255" json:"reason"`
	Metadata      datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CorrelationID string            `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time         `json:"created_at"`
}
