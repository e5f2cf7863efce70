package routes

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"advice-moderation-server/middleware"
	"advice-moderation-server/models"
	"advice-moderation-server/services"
)

// RegisterRequestRoutes registers the submitter surface
func (h *Handler) RegisterRequestRoutes(router *gin.RouterGroup) {
	router.POST("", h.createRequest)
	router.GET("/mine", h.myRequests)
	router.GET("/:id", h.getOwnRequest)
	router.POST("/:id/responses", h.submitResponse)
}

func (h *Handler) createRequest(c *gin.Context) {
	var req models.AdviceRequestCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	created, err := h.Moderation.CreateRequest(c.Request.Context(), c.GetString(middleware.ContextUserID), req)
	if err != nil {
		writeError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "Request submitted for review", created)
}

func (h *Handler) myRequests(c *gin.Context) {
	requests, err := h.Moderation.UserRequests(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		writeError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Requests retrieved successfully", requests)
}

func (h *Handler) getOwnRequest(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	req, err := h.Moderation.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if req.UserID != user.ID && !user.CanModerate() {
		// do not reveal that someone else's request exists
		writeError(c, fmt.Errorf("%w: request %s", services.ErrNotFound, req.ID))
		return
	}
	respondOK(c, http.StatusOK, "Request retrieved successfully", req)
}

func (h *Handler) submitResponse(c *gin.Context) {
	var body models.ResponseCreate
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	user, _ := middleware.CurrentUser(c)
	ctx := c.Request.Context()
	id := c.Param("id")

	authorType := models.AuthorUser
	if user.IsExpert() {
		authorType = models.AuthorExpert
	} else {
		req, err := h.Moderation.GetRequest(ctx, id)
		if err != nil {
			writeError(c, err)
			return
		}
		if req.UserID != user.ID {
			writeError(c, fmt.Errorf("%w: only the submitter can follow up on a request", services.ErrForbidden))
			return
		}
	}

	resp, result, err := h.Moderation.SubmitResponse(ctx, id, user.ID, authorType, body.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, result.Message, gin.H{
		"response": resp,
		"request":  result.Request,
	})
}
