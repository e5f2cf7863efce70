package routes

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"advice-moderation-server/middleware"
	"advice-moderation-server/models"
	"advice-moderation-server/services"
)

// RegisterAuthRoutes registers sign-up, login and token lifecycle routes
func (h *Handler) RegisterAuthRoutes(router *gin.RouterGroup, authn *middleware.Authenticator) {
	router.POST("/register", h.register)
	router.POST("/login", h.login)
	router.POST("/refresh", h.refresh)
	router.POST("/logout", h.logout)
	router.GET("/me", authn.AuthMiddleware(), h.me)
}

type tokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func userPayload(u models.User) gin.H {
	return gin.H{
		"id":         u.ID,
		"full_name":  u.FullName,
		"email":      u.Email,
		"role":       u.Role,
		"is_active":  u.IsActive,
		"created_at": u.CreatedAt,
	}
}

func (h *Handler) issueTokens(c *gin.Context, status int, message string, user models.User) {
	pair, err := h.JWT.GenerateTokenPair(c.Request.Context(), user, c.GetHeader("User-Agent"), c.ClientIP())
	if err != nil {
		log.Printf("❌ Token generation failed for user %s: %v", user.ID, err)
		writeError(c, err)
		return
	}
	respondOK(c, status, message, gin.H{
		"user":          userPayload(user),
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_in":    pair.ExpiresIn,
		"token_type":    pair.TokenType,
	})
}

func (h *Handler) register(c *gin.Context) {
	var req services.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	user, err := h.Auth.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	h.issueTokens(c, http.StatusCreated, "Account created successfully", user)
}

func (h *Handler) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	user, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		log.Printf("⚠️ Login failed from %s: %v", c.ClientIP(), err)
		writeError(c, err)
		return
	}
	log.Printf("✅ User %s logged in", user.ID)
	h.issueTokens(c, http.StatusOK, "Login successful", user)
}

func (h *Handler) refresh(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	pair, err := h.JWT.RefreshAccessToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Token refreshed successfully", pair)
}

func (h *Handler) logout(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.JWT.RevokeRefreshToken(c.Request.Context(), req.RefreshToken); err != nil {
		writeError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Logged out successfully", nil)
}

func (h *Handler) me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		writeError(c, services.ErrUnauthorized)
		return
	}
	respondOK(c, http.StatusOK, "User retrieved successfully", userPayload(user))
}
