package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserEvent is an immutable fact from the user's life stream. Rows are never
// updated after ingestion; every downstream stage reads them as-is.
type UserEvent struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User       *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Content    string         `gorm:"type:text;not null;column:content" json:"content"`
	Category   string         `gorm:"column:category;index" json:"category,omitempty"`
	OccurredAt time.Time      `gorm:"not null;index;column:occurred_at" json:"occurred_at"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (UserEvent) TableName() string { return "user_event" }
