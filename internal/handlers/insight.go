package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AbhiraajV/brainlm-backend/internal/services"
	"github.com/AbhiraajV/brainlm-backend/internal/types"
)

type InsightHandler struct {
	insights services.InsightService
	jobs     services.JobQueueService
}

func NewInsightHandler(insights services.InsightService, jobs services.JobQueueService) *InsightHandler {
	return &InsightHandler{insights: insights, jobs: jobs}
}

func (ih *InsightHandler) List(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}
	insights, err := ih.insights.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"insights": insights})
}

func (ih *InsightHandler) TriggerBuild(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}
	job, err := ih.jobs.Enqueue(c.Request.Context(), nil, userID, types.JobTypeInsightBuild, "user", &userID, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID})
}
