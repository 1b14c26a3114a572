package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AbhiraajV/brainlm-backend/internal/services"
	"github.com/AbhiraajV/brainlm-backend/internal/types"
)

type ReviewHandler struct {
	reviews services.ReviewService
	jobs    services.JobQueueService
}

func NewReviewHandler(reviews services.ReviewService, jobs services.JobQueueService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, jobs: jobs}
}

func (rh *ReviewHandler) List(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	reviews, err := rh.reviews.List(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews})
}

// TriggerBuild queues review generation for the requested window.
func (rh *ReviewHandler) TriggerBuild(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}
	var req struct {
		PeriodStart time.Time `json:"period_start" binding:"required"`
		PeriodEnd   time.Time `json:"period_end" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if !req.PeriodEnd.After(req.PeriodStart) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period_end must be after period_start"})
		return
	}
	payload := map[string]string{
		"period_start": req.PeriodStart.Format(time.RFC3339),
		"period_end":   req.PeriodEnd.Format(time.RFC3339),
	}
	job, err := rh.jobs.Enqueue(c.Request.Context(), nil, userID, types.JobTypeReviewBuild, "user", &userID, payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID})
}
