package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	PatternStatusActive     = "ACTIVE"
	PatternStatusSuperseded = "SUPERSEDED"
)

// Pattern is a versioned claim about recurring behavior. Reinforcement never
// updates a row in place: the old version flips to SUPERSEDED and a new row
// becomes the head of the lineage. Superseded rows stay queryable for audit.
type Pattern struct {
	ID                 uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID             uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User               *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	LineageID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"lineage_id"`
	Version            int            `gorm:"not null;default:1" json:"version"`
	Description        string         `gorm:"type:text;not null;column:description" json:"description"`
	Embedding          datatypes.JSON `gorm:"type:jsonb;column:embedding" json:"-"`
	Status             string         `gorm:"not null;index;column:status" json:"status"`
	ReinforcementCount int            `gorm:"not null;default:1;column:reinforcement_count" json:"reinforcement_count"`
	SupersededByID     *uuid.UUID     `gorm:"type:uuid;column:superseded_by_id" json:"superseded_by_id,omitempty"`
	FirstDetectedAt    time.Time      `gorm:"not null;column:first_detected_at" json:"first_detected_at"`
	LastReinforcedAt   time.Time      `gorm:"not null;index;column:last_reinforced_at" json:"last_reinforced_at"`
	CreatedAt          time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Pattern) TableName() string { return "pattern" }

// PatternEvent is the append-only audit edge recording which events support
// which pattern version. Across a lineage the link set only grows: version
// N+1 carries every link of version N plus the newly contributing events.
type PatternEvent struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	PatternID uuid.UUID  `gorm:"type:uuid;not null;index:idx_pattern_event,unique" json:"pattern_id"`
	Pattern   *Pattern   `gorm:"constraint:OnDelete:CASCADE;foreignKey:PatternID;references:ID" json:"pattern,omitempty"`
	EventID   uuid.UUID  `gorm:"type:uuid;not null;index:idx_pattern_event,unique" json:"event_id"`
	Event     *UserEvent `gorm:"constraint:OnDelete:CASCADE;foreignKey:EventID;references:ID" json:"event,omitempty"`
	CreatedAt time.Time  `gorm:"not null;default:now()" json:"created_at"`
}

func (PatternEvent) TableName() string { return "pattern_event" }
