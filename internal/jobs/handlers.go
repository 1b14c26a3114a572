package jobs

import (
	"fmt"
	"time"

	"github.com/AbhiraajV/brainlm-backend/internal/logger"
	"github.com/AbhiraajV/brainlm-backend/internal/services"
	"github.com/AbhiraajV/brainlm-backend/internal/types"
)

// InterpretationBuildHandler interprets a newly ingested event and queues
// pattern detection behind it.
type InterpretationBuildHandler struct {
	log     *logger.Logger
	interps services.InterpretationService
}

func NewInterpretationBuildHandler(log *logger.Logger, interps services.InterpretationService) *InterpretationBuildHandler {
	return &InterpretationBuildHandler{
		log:     log.With("handler", types.JobTypeInterpretationBuild),
		interps: interps,
	}
}

func (h *InterpretationBuildHandler) Type() string { return types.JobTypeInterpretationBuild }

func (h *InterpretationBuildHandler) Run(jc *Context) error {
	eventID, ok := jc.EntityUUID("event_id")
	if !ok {
		err := fmt.Errorf("missing event id")
		jc.Fail("validate", err)
		return err
	}
	if _, err := h.interps.BuildForEvent(jc.Ctx, eventID); err != nil {
		jc.Fail("build", err)
		return err
	}
	jc.Complete()
	return nil
}

// PatternDetectHandler runs oracle arbitration for one interpreted event.
type PatternDetectHandler struct {
	log    *logger.Logger
	engine services.PatternEngineService
}

func NewPatternDetectHandler(log *logger.Logger, engine services.PatternEngineService) *PatternDetectHandler {
	return &PatternDetectHandler{
		log:    log.With("handler", types.JobTypePatternDetect),
		engine: engine,
	}
}

func (h *PatternDetectHandler) Type() string { return types.JobTypePatternDetect }

func (h *PatternDetectHandler) Run(jc *Context) error {
	eventID, ok := jc.EntityUUID("event_id")
	if !ok {
		err := fmt.Errorf("missing event id")
		jc.Fail("validate", err)
		return err
	}
	outcome, err := h.engine.ProcessEvent(jc.Ctx, eventID)
	if err != nil {
		jc.Fail("process", err)
		return err
	}
	h.log.Info("event processed",
		"event_id", eventID,
		"outcome", outcome.Kind,
		"pattern_id", outcome.PatternID,
		"lineage_id", outcome.LineageID)
	jc.Complete()
	return nil
}

// PatternBackfillHandler clusters a user's full interpretation history.
type PatternBackfillHandler struct {
	log      *logger.Logger
	backfill services.PatternBackfillService
}

func NewPatternBackfillHandler(log *logger.Logger, backfill services.PatternBackfillService) *PatternBackfillHandler {
	return &PatternBackfillHandler{
		log:      log.With("handler", types.JobTypePatternBackfill),
		backfill: backfill,
	}
}

func (h *PatternBackfillHandler) Type() string { return types.JobTypePatternBackfill }

func (h *PatternBackfillHandler) Run(jc *Context) error {
	result, err := h.backfill.BackfillUser(jc.Ctx, jc.Job.OwnerUserID)
	if err != nil {
		jc.Fail("backfill", err)
		return err
	}
	h.log.Info("backfill finished",
		"user_id", jc.Job.OwnerUserID,
		"clusters", result.Clusters,
		"reinforced", result.Reinforced,
		"created", result.Created)
	jc.Complete()
	return nil
}

// InsightBuildHandler distills a fresh insight from recent interpretations.
type InsightBuildHandler struct {
	log      *logger.Logger
	insights services.InsightService
}

func NewInsightBuildHandler(log *logger.Logger, insights services.InsightService) *InsightBuildHandler {
	return &InsightBuildHandler{
		log:      log.With("handler", types.JobTypeInsightBuild),
		insights: insights,
	}
}

func (h *InsightBuildHandler) Type() string { return types.JobTypeInsightBuild }

func (h *InsightBuildHandler) Run(jc *Context) error {
	if _, err := h.insights.BuildForUser(jc.Ctx, jc.Job.OwnerUserID); err != nil {
		jc.Fail("build", err)
		return err
	}
	jc.Complete()
	return nil
}

// ReviewBuildHandler generates a period review from the payload window.
type ReviewBuildHandler struct {
	log     *logger.Logger
	reviews services.ReviewService
}

func NewReviewBuildHandler(log *logger.Logger, reviews services.ReviewService) *ReviewBuildHandler {
	return &ReviewBuildHandler{
		log:     log.With("handler", types.JobTypeReviewBuild),
		reviews: reviews,
	}
}

func (h *ReviewBuildHandler) Type() string { return types.JobTypeReviewBuild }

func (h *ReviewBuildHandler) Run(jc *Context) error {
	from, err := payloadTime(jc, "period_start")
	if err != nil {
		jc.Fail("validate", err)
		return err
	}
	to, err := payloadTime(jc, "period_end")
	if err != nil {
		jc.Fail("validate", err)
		return err
	}
	if _, err := h.reviews.GeneratePeriodReview(jc.Ctx, jc.Job.OwnerUserID, from, to); err != nil {
		jc.Fail("generate", err)
		return err
	}
	jc.Complete()
	return nil
}

func payloadTime(jc *Context, key string) (time.Time, error) {
	v, ok := jc.Payload()[key]
	if !ok {
		return time.Time{}, fmt.Errorf("missing payload field %s", key)
	}
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("payload field %s is not a string", key)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("payload field %s: %w", key, err)
	}
	return t, nil
}
