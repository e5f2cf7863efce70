package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"advice-moderation-server/middleware"
	"advice-moderation-server/models"
	"advice-moderation-server/services"
	ws "advice-moderation-server/websocket"
)

// Handler carries the services every route group needs.
type Handler struct {
	Moderation    *services.ModerationService
	Bulk          *services.BulkCoordinator
	Experts       services.ExpertDirectory
	Notifications *services.NotificationService
	Auth          *services.AuthService
	JWT           *services.JWTService
	Uploader      services.ImageUploader // nil disables photo upload
	UploadFolder  string
	Hub           *ws.Hub
}

// RegisterRoutes mounts the whole API on router
func RegisterRoutes(router *gin.Engine, h *Handler, authn *middleware.Authenticator) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Advice moderation server is running",
			"time":    time.Now().UTC(),
		})
	})

	api := router.Group("/api/v1")

	h.RegisterAuthRoutes(api.Group("/auth"), authn)

	if h.Hub != nil {
		api.GET("/ws", authn.WebSocketAuthMiddleware(), h.serveWebSocket)
	}

	protected := api.Group("")
	protected.Use(authn.AuthMiddleware())
	{
		h.RegisterRequestRoutes(protected.Group("/requests"))
		h.RegisterNotificationRoutes(protected.Group("/notifications"))

		expert := protected.Group("/expert")
		expert.Use(middleware.RequireRoles(models.RoleExpert))
		h.RegisterExpertRoutes(expert)

		admin := protected.Group("/admin")
		admin.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleModerator))
		h.RegisterAdminRoutes(admin)
		h.RegisterAdminExpertRoutes(admin.Group("/experts"))
	}
}

func (h *Handler) serveWebSocket(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Unauthorized"})
		return
	}
	ws.ServeWebSocket(h.Hub, c.Writer, c.Request, user.ID, string(user.Role))
}
