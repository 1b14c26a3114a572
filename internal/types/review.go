package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Review is a prior period summary (markdown) kept as a memory object. Like
// insights, reviews only participate in hybrid retrieval.
type Review struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User        *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	PeriodStart time.Time      `gorm:"not null;index;column:period_start" json:"period_start"`
	PeriodEnd   time.Time      `gorm:"not null;index;column:period_end" json:"period_end"`
	Content     string         `gorm:"type:text;not null;column:content" json:"content"`
	Embedding   datatypes.JSON `gorm:"type:jsonb;column:embedding" json:"-"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Review) TableName() string { return "review" }
