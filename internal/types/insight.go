package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	InsightStatusActive   = "ACTIVE"
	InsightStatusArchived = "ARCHIVED"

	InsightConfidenceHigh   = "HIGH"
	InsightConfidenceMedium = "MEDIUM"
	InsightConfidenceLow    = "LOW"
)

// Insight is an independently produced memory object distilled from the
// interpretation stream. It participates in hybrid retrieval only; the
// pattern version manager never touches it.
type Insight struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User             *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Content          string         `gorm:"type:text;not null;column:content" json:"content"`
	Embedding        datatypes.JSON `gorm:"type:jsonb;column:embedding" json:"-"`
	Status           string         `gorm:"not null;index;column:status" json:"status"`
	Confidence       string         `gorm:"not null;column:confidence" json:"confidence"`
	FirstDetectedAt  time.Time      `gorm:"not null;column:first_detected_at" json:"first_detected_at"`
	LastReinforcedAt time.Time      `gorm:"not null;index;column:last_reinforced_at" json:"last_reinforced_at"`
	CreatedAt        time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Insight) TableName() string { return "insight" }
