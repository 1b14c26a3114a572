package jobs

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/AbhiraajV/brainlm-backend/internal/types"
)

func TestContextPayloadDecode(t *testing.T) {
	job := &types.JobRun{Payload: datatypes.JSON(`{"period_start":"2026-08-01T00:00:00Z"}`)}
	jc := NewContext(context.Background(), nil, job, nil)
	if got := jc.Payload()["period_start"]; got != "2026-08-01T00:00:00Z" {
		t.Fatalf("payload not decoded, got %v", got)
	}
}

func TestContextPayloadNeverNil(t *testing.T) {
	jc := NewContext(context.Background(), nil, &types.JobRun{}, nil)
	if jc.Payload() == nil {
		t.Fatalf("payload must never be nil")
	}
	badJob := &types.JobRun{Payload: datatypes.JSON(`{broken`)}
	jc = NewContext(context.Background(), nil, badJob, nil)
	if jc.Payload() == nil {
		t.Fatalf("payload must never be nil even on decode failure")
	}
}

func TestContextEntityUUIDPrefersEntityID(t *testing.T) {
	id := uuid.New()
	other := uuid.New()
	job := &types.JobRun{
		EntityID: &id,
		Payload:  datatypes.JSON(`{"event_id":"` + other.String() + `"}`),
	}
	jc := NewContext(context.Background(), nil, job, nil)
	got, ok := jc.EntityUUID("event_id")
	if !ok || got != id {
		t.Fatalf("expected entity id %s, got %s (ok=%v)", id, got, ok)
	}
}

func TestContextEntityUUIDFallsBackToPayload(t *testing.T) {
	id := uuid.New()
	job := &types.JobRun{Payload: datatypes.JSON(`{"event_id":"` + id.String() + `"}`)}
	jc := NewContext(context.Background(), nil, job, nil)
	got, ok := jc.EntityUUID("event_id")
	if !ok || got != id {
		t.Fatalf("expected payload fallback id %s, got %s (ok=%v)", id, got, ok)
	}
	if _, ok := jc.EntityUUID("missing"); ok {
		t.Fatalf("expected no id for missing key")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	h := stubHandler{}
	if err := r.Register(h); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := r.Register(h); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	if _, ok := r.Get("stub"); !ok {
		t.Fatalf("registered handler not found")
	}
}

type stubHandler struct{}

func (stubHandler) Type() string           { return "stub" }
func (stubHandler) Run(ctx *Context) error { return nil }
