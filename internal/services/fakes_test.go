package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AbhiraajV/brainlm-backend/internal/logger"
	"github.com/AbhiraajV/brainlm-backend/internal/types"
)

func testLogger(t interface{ Fatalf(string, ...interface{}) }) *logger.Logger {
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("failed to init test logger: %v", err)
	}
	return log
}

// --- repo fakes ---

type fakeUserEventRepo struct {
	events []*types.UserEvent
}

func (f *fakeUserEventRepo) Create(ctx context.Context, tx *gorm.DB, events []*types.UserEvent) ([]*types.UserEvent, error) {
	for _, e := range events {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
	}
	f.events = append(f.events, events...)
	return events, nil
}

func (f *fakeUserEventRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.UserEvent, error) {
	var out []*types.UserEvent
	for _, e := range f.events {
		for _, id := range ids {
			if e.ID == id {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func (f *fakeUserEventRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.UserEvent, error) {
	var out []*types.UserEvent
	for _, e := range f.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeUserEventRepo) GetInWindow(ctx context.Context, tx *gorm.DB, userID uuid.UUID, from, to time.Time) ([]*types.UserEvent, error) {
	var out []*types.UserEvent
	for _, e := range f.events {
		if e.UserID == userID && !e.OccurredAt.Before(from) && e.OccurredAt.Before(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeUserEventRepo) GetByCategory(ctx context.Context, tx *gorm.DB, userID uuid.UUID, category string, limit int) ([]*types.UserEvent, error) {
	var out []*types.UserEvent
	for _, e := range f.events {
		if e.UserID == userID && e.Category == category {
			out = append(out, e)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeInterpretationRepo struct {
	interps []*types.Interpretation
}

func (f *fakeInterpretationRepo) Create(ctx context.Context, tx *gorm.DB, interps []*types.Interpretation) ([]*types.Interpretation, error) {
	for _, i := range interps {
		if i.ID == uuid.Nil {
			i.ID = uuid.New()
		}
	}
	f.interps = append(f.interps, interps...)
	return interps, nil
}

func (f *fakeInterpretationRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Interpretation, error) {
	var out []*types.Interpretation
	for _, i := range f.interps {
		for _, id := range ids {
			if i.ID == id {
				out = append(out, i)
			}
		}
	}
	return out, nil
}

func (f *fakeInterpretationRepo) GetByEventID(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) (*types.Interpretation, error) {
	for _, i := range f.interps {
		if i.EventID == eventID {
			return i, nil
		}
	}
	return nil, nil
}

func (f *fakeInterpretationRepo) GetByEventIDs(ctx context.Context, tx *gorm.DB, eventIDs []uuid.UUID) ([]*types.Interpretation, error) {
	var out []*types.Interpretation
	for _, i := range f.interps {
		for _, id := range eventIDs {
			if i.EventID == id {
				out = append(out, i)
			}
		}
	}
	return out, nil
}

func (f *fakeInterpretationRepo) GetRecentByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.Interpretation, error) {
	var out []*types.Interpretation
	for _, i := range f.interps {
		if i.UserID == userID {
			out = append(out, i)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeInterpretationRepo) GetWithEmbeddingsByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, since time.Time) ([]*types.Interpretation, error) {
	var out []*types.Interpretation
	for _, i := range f.interps {
		if i.UserID == userID && len(i.Embedding) > 0 && !i.CreatedAt.Before(since) {
			out = append(out, i)
		}
	}
	return out, nil
}

func (f *fakeInterpretationRepo) GetInWindow(ctx context.Context, tx *gorm.DB, userID uuid.UUID, from, to time.Time) ([]*types.Interpretation, error) {
	var out []*types.Interpretation
	for _, i := range f.interps {
		if i.UserID == userID && !i.CreatedAt.Before(from) && i.CreatedAt.Before(to) {
			out = append(out, i)
		}
	}
	return out, nil
}

type fakePatternRepo struct {
	patterns []*types.Pattern
}

func (f *fakePatternRepo) Create(ctx context.Context, tx *gorm.DB, patterns []*types.Pattern) ([]*types.Pattern, error) {
	for _, p := range patterns {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
	}
	f.patterns = append(f.patterns, patterns...)
	return patterns, nil
}

func (f *fakePatternRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Pattern, error) {
	for _, p := range f.patterns {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakePatternRepo) GetActiveByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Pattern, error) {
	var out []*types.Pattern
	for _, p := range f.patterns {
		if p.UserID == userID && p.Status == types.PatternStatusActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePatternRepo) GetByLineage(ctx context.Context, tx *gorm.DB, lineageID uuid.UUID) ([]*types.Pattern, error) {
	var out []*types.Pattern
	for _, p := range f.patterns {
		if p.LineageID == lineageID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePatternRepo) GetTemporalCandidates(ctx context.Context, tx *gorm.DB, userID uuid.UUID, from, to time.Time, limit int) ([]*types.Pattern, error) {
	out, _ := f.GetActiveByUser(ctx, tx, userID)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakePatternRepo) MarkSuperseded(ctx context.Context, tx *gorm.DB, id uuid.UUID, supersededByID uuid.UUID) error {
	for _, p := range f.patterns {
		if p.ID == id {
			p.Status = types.PatternStatusSuperseded
			p.SupersededByID = &supersededByID
		}
	}
	return nil
}

type fakePatternEventRepo struct {
	links []*types.PatternEvent
}

func (f *fakePatternEventRepo) CreateLinks(ctx context.Context, tx *gorm.DB, links []*types.PatternEvent) error {
	for _, l := range links {
		if f.hasLink(l.PatternID, l.EventID) {
			continue
		}
		f.links = append(f.links, l)
	}
	return nil
}

func (f *fakePatternEventRepo) hasLink(patternID, eventID uuid.UUID) bool {
	for _, l := range f.links {
		if l.PatternID == patternID && l.EventID == eventID {
			return true
		}
	}
	return false
}

func (f *fakePatternEventRepo) GetEventIDsByPatternID(ctx context.Context, tx *gorm.DB, patternID uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, l := range f.links {
		if l.PatternID == patternID {
			out = append(out, l.EventID)
		}
	}
	return out, nil
}

func (f *fakePatternEventRepo) GetByPatternIDs(ctx context.Context, tx *gorm.DB, patternIDs []uuid.UUID) ([]*types.PatternEvent, error) {
	var out []*types.PatternEvent
	for _, l := range f.links {
		for _, id := range patternIDs {
			if l.PatternID == id {
				out = append(out, l)
			}
		}
	}
	return out, nil
}

// --- service fakes ---

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = f.vec
	}
	return out, nil
}

type fakeEvidenceSelector struct {
	evidence []ScoredInterpretation
	err      error
}

func (f *fakeEvidenceSelector) SelectEvidence(ctx context.Context, userID uuid.UUID, triggerEmbedding []float32) ([]ScoredInterpretation, error) {
	return f.evidence, f.err
}

type fakeAIClient struct {
	embedVec    []float32
	embedErr    error
	jsonOut     map[string]any
	jsonErr     error
	textOut     string
	textErr     error
	lastJSONMsg string
}

func (f *fakeAIClient) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = f.embedVec
	}
	return out, nil
}

func (f *fakeAIClient) GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error) {
	f.lastJSONMsg = user
	return f.jsonOut, f.jsonErr
}

func (f *fakeAIClient) GenerateText(ctx context.Context, system string, user string) (string, error) {
	return f.textOut, f.textErr
}

type fakeOracle struct {
	decision *Decision
	err      error
	called   bool
	lastIn   DecisionInput
}

func (f *fakeOracle) Decide(ctx context.Context, in DecisionInput) (*Decision, error) {
	f.called = true
	f.lastIn = in
	return f.decision, f.err
}
