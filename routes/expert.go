package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"advice-moderation-server/middleware"
	"advice-moderation-server/models"
)

// RegisterExpertRoutes registers the expert's own surface
func (h *Handler) RegisterExpertRoutes(router *gin.RouterGroup) {
	router.GET("/requests", h.expertRequests)
	router.PATCH("/availability", h.expertAvailability)
}

func (h *Handler) expertRequests(c *gin.Context) {
	requests, err := h.Moderation.ExpertQueue(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		writeError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Requests retrieved successfully", requests)
}

func (h *Handler) expertAvailability(c *gin.Context) {
	var req models.AvailabilityUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	expert, err := h.Experts.GetByUserID(ctx, c.GetString(middleware.ContextUserID))
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.Experts.SetAvailability(ctx, expert.ID, *req.IsAvailable); err != nil {
		writeError(c, err)
		return
	}
	expert.IsAvailable = *req.IsAvailable
	respondOK(c, http.StatusOK, "Availability updated successfully", expert)
}
