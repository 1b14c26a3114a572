package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AbhiraajV/brainlm-backend/internal/repos"
)

type JobHandler struct {
	jobRepo repos.JobRunRepo
}

func NewJobHandler(jobRepo repos.JobRunRepo) *JobHandler {
	return &JobHandler{jobRepo: jobRepo}
}

func (jh *JobHandler) Get(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}
	jobs, err := jh.jobRepo.GetByIDs(c.Request.Context(), nil, []uuid.UUID{jobID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(jobs) == 0 || jobs[0].OwnerUserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": jobs[0]})
}
