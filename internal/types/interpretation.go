package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Interpretation is the one-to-one derived annotation of a UserEvent. It is
// created asynchronously after the event and is immutable once written. Its
// embedding is the vector used for candidate matching.
type Interpretation struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	EventID   uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"event_id"`
	Event     *UserEvent     `gorm:"constraint:OnDelete:CASCADE;foreignKey:EventID;references:ID" json:"event,omitempty"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Content   string         `gorm:"type:text;not null;column:content" json:"content"`
	Embedding datatypes.JSON `gorm:"type:jsonb;column:embedding" json:"-"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Interpretation) TableName() string { return "interpretation" }
