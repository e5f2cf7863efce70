package routes

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"advice-moderation-server/middleware"
)

// RegisterNotificationRoutes registers the notification inbox
func (h *Handler) RegisterNotificationRoutes(router *gin.RouterGroup) {
	router.GET("", h.listNotifications)
	router.GET("/unread-count", h.unreadCount)
	router.POST("/:id/read", h.markNotificationRead)
	router.POST("/read-all", h.markAllNotificationsRead)
	router.POST("/push-token", h.registerPushToken)
}

func (h *Handler) listNotifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	items, err := h.Notifications.List(c.Request.Context(), c.GetString(middleware.ContextUserID), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Notifications retrieved successfully", items)
}

func (h *Handler) unreadCount(c *gin.Context) {
	count, err := h.Notifications.UnreadCount(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		writeError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Unread count retrieved successfully", gin.H{"unread_count": count})
}

func (h *Handler) markNotificationRead(c *gin.Context) {
	if err := h.Notifications.MarkRead(c.Request.Context(), c.GetString(middleware.ContextUserID), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Notification marked as read", nil)
}

func (h *Handler) markAllNotificationsRead(c *gin.Context) {
	if err := h.Notifications.MarkAllRead(c.Request.Context(), c.GetString(middleware.ContextUserID)); err != nil {
		writeError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "All notifications marked as read", nil)
}

func (h *Handler) registerPushToken(c *gin.Context) {
	var req struct {
		Token    string `json:"token" binding:"required"`
		Platform string `json:"platform" binding:"omitempty,oneof=ios android web"`
		DeviceID string `json:"device_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.Notifications.RegisterPushToken(c.Request.Context(), c.GetString(middleware.ContextUserID), req.Token, req.Platform, req.DeviceID); err != nil {
		writeError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Push token registered successfully", nil)
}
