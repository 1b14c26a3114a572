package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AbhiraajV/brainlm-backend/internal/repos"
	"github.com/AbhiraajV/brainlm-backend/internal/types"
)

// Context is the execution environment handed to a job handler for one
// claimed run. It decodes the payload eagerly; handlers validate the fields
// they need.
type Context struct {
	Ctx     context.Context
	DB      *gorm.DB
	Job     *types.JobRun
	Repo    repos.JobRunRepo
	payload map[string]any
}

func NewContext(ctx context.Context, db *gorm.DB, job *types.JobRun, repo repos.JobRunRepo) *Context {
	c := &Context{
		Ctx:  ctx,
		DB:   db,
		Job:  job,
		Repo: repo,
	}
	_ = c.decodePayload()
	return c
}

func (c *Context) decodePayload() error {
	if c.Job == nil || len(c.Job.Payload) == 0 {
		c.payload = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		c.payload = map[string]any{}
		return err
	}
	c.payload = m
	return nil
}

// Payload never returns nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

// EntityUUID returns the job's entity id, falling back to a payload field.
func (c *Context) EntityUUID(payloadKey string) (uuid.UUID, bool) {
	if c.Job != nil && c.Job.EntityID != nil && *c.Job.EntityID != uuid.Nil {
		return *c.Job.EntityID, true
	}
	v, ok := c.Payload()[payloadKey]
	if !ok || v == nil {
		return uuid.Nil, false
	}
	s, ok := v.(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (c *Context) Complete() {
	if c == nil || c.Repo == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	now := time.Now()
	_ = c.Repo.UpdateFields(c.Ctx, c.DB, c.Job.ID, map[string]interface{}{
		"status":      types.JobStatusSucceeded,
		"finished_at": now,
		"updated_at":  now,
	})
	c.Job.Status = types.JobStatusSucceeded
}

func (c *Context) Fail(stage string, err error) {
	if c == nil || c.Repo == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	now := time.Now()
	_ = c.Repo.UpdateFields(c.Ctx, c.DB, c.Job.ID, map[string]interface{}{
		"status":        types.JobStatusFailed,
		"stage":         stage,
		"last_error":    msg,
		"last_error_at": now,
		"finished_at":   now,
		"updated_at":    now,
	})
	c.Job.Status = types.JobStatusFailed
}
