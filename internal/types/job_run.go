package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

const (
	JobTypeInterpretationBuild = "interpretation_build"
	JobTypePatternDetect       = "pattern_detect"
	JobTypePatternBackfill     = "pattern_backfill"
	JobTypeInsightBuild        = "insight_build"
	JobTypeReviewBuild         = "review_build"
)

type JobRun struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OwnerUserID uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	JobType     string         `gorm:"not null;index;column:job_type" json:"job_type"`
	EntityType  string         `gorm:"column:entity_type" json:"entity_type"`
	EntityID    *uuid.UUID     `gorm:"type:uuid;column:entity_id" json:"entity_id,omitempty"`
	Status      string         `gorm:"not null;index;column:status" json:"status"`
	Stage       string         `gorm:"column:stage" json:"stage"`
	Payload     datatypes.JSON `gorm:"type:jsonb;column:payload" json:"payload"`
	Attempts    int            `gorm:"not null;default:0" json:"attempts"`
	LastError   string         `gorm:"type:text;column:last_error" json:"last_error,omitempty"`
	LastErrorAt *time.Time     `gorm:"column:last_error_at" json:"last_error_at,omitempty"`
	HeartbeatAt *time.Time     `gorm:"column:heartbeat_at" json:"heartbeat_at,omitempty"`
	StartedAt   *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	FinishedAt  *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (JobRun) TableName() string { return "job_run" }
