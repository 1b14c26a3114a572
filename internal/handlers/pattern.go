package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AbhiraajV/brainlm-backend/internal/services"
	"github.com/AbhiraajV/brainlm-backend/internal/types"
)

type PatternHandler struct {
	patterns services.PatternQueryService
	jobs     services.JobQueueService
}

func NewPatternHandler(patterns services.PatternQueryService, jobs services.JobQueueService) *PatternHandler {
	return &PatternHandler{patterns: patterns, jobs: jobs}
}

func (ph *PatternHandler) ListActive(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}
	patterns, err := ph.patterns.ListActive(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"patterns": patterns})
}

func (ph *PatternHandler) GetDetail(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}
	patternID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pattern id"})
		return
	}
	detail, err := ph.patterns.GetDetail(c.Request.Context(), userID, patternID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (ph *PatternHandler) GetLineage(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}
	lineageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lineage id"})
		return
	}
	versions, err := ph.patterns.GetLineage(c.Request.Context(), userID, lineageID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": versions})
}

// TriggerBackfill queues batch clustering over the caller's history.
func (ph *PatternHandler) TriggerBackfill(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}
	job, err := ph.jobs.Enqueue(c.Request.Context(), nil, userID, types.JobTypePatternBackfill, "user", &userID, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID})
}
