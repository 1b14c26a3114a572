package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AbhiraajV/brainlm-backend/internal/services"
)

type EventHandler struct {
	eventService services.UserEventService
}

func NewEventHandler(eventService services.UserEventService) *EventHandler {
	return &EventHandler{eventService: eventService}
}

func (eh *EventHandler) Ingest(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}
	var req services.IngestEventInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	event, job, err := eh.eventService.Ingest(c.Request.Context(), userID, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"event": event, "job_id": job.ID})
}

func (eh *EventHandler) List(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	events, err := eh.eventService.List(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
