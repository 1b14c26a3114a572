package jobs

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/AbhiraajV/brainlm-backend/internal/logger"
	"github.com/AbhiraajV/brainlm-backend/internal/repos"
)

const (
	pollInterval      = 1 * time.Second
	maxAttempts       = 5
	retryDelay        = 30 * time.Second
	staleRunning      = 2 * time.Minute
	heartbeatInterval = 30 * time.Second
)

type Worker struct {
	db             *gorm.DB
	log            *logger.Logger
	repo           repos.JobRunRepo
	registry       *Registry
	heartbeatEvery time.Duration
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, registry *Registry) *Worker {
	return &Worker{
		db:             db,
		log:            baseLog.With("component", "JobWorker"),
		repo:           repo,
		registry:       registry,
		heartbeatEvery: heartbeatInterval,
	}
}

func (w *Worker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				job, err := w.repo.ClaimNextRunnable(ctx, w.db, maxAttempts, retryDelay, staleRunning)
				if err != nil {
					w.log.Warn("ClaimNextRunnable failed", "error", err)
					continue
				}
				if job == nil {
					continue
				}
				jc := NewContext(ctx, w.db, job, w.repo)
				h, ok := w.registry.Get(job.JobType)
				if !ok {
					w.log.Warn("no handler registered for job_type", "job_type", job.JobType, "job_id", job.ID)
					jc.Fail("dispatch", fmt.Errorf("no handler registered for job_type=%s", job.JobType))
					continue
				}
				w.run(jc, h)
			}
		}
	}()
}

// run marks the job failed on handler panic instead of crashing the worker.
// A heartbeat loop keeps the claim fresh for the whole handler execution so
// long-running jobs are not reclaimed as stale by another instance.
func (w *Worker) run(jc *Context, h Handler) {
	stopHeartbeat := w.startHeartbeat(jc)
	defer stopHeartbeat()
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("job handler panic", "job_id", jc.Job.ID, "job_type", jc.Job.JobType, "panic", r)
			jc.Fail("panic", fmt.Errorf("panic: %v", r))
		}
	}()
	if err := h.Run(jc); err != nil {
		w.log.Warn("job failed", "job_id", jc.Job.ID, "job_type", jc.Job.JobType, "error", err)
		return
	}
}

func (w *Worker) startHeartbeat(jc *Context) func() {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(w.heartbeatEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := w.repo.Heartbeat(jc.Ctx, w.db, jc.Job.ID); err != nil {
					w.log.Warn("heartbeat failed", "job_id", jc.Job.ID, "error", err)
				}
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}
