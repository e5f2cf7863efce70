package routes

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"advice-moderation-server/models"
	"advice-moderation-server/services"
)

// RegisterAdminExpertRoutes registers expert directory management
func (h *Handler) RegisterAdminExpertRoutes(router *gin.RouterGroup) {
	router.GET("", h.adminListExperts)
	router.GET("/available", h.adminAvailableExperts)
	router.POST("", h.adminCreateExpert)
	router.PATCH("/:id/availability", h.adminExpertAvailability)
	router.POST("/:id/photo", h.adminExpertPhoto)
}

func (h *Handler) adminListExperts(c *gin.Context) {
	experts, err := h.Experts.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Experts retrieved successfully", experts)
}

func (h *Handler) adminAvailableExperts(c *gin.Context) {
	experts, err := h.Experts.ListAvailable(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Available experts retrieved successfully", experts)
}

func (h *Handler) adminCreateExpert(c *gin.Context) {
	var req models.ExpertCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()

	user, err := h.Auth.GetUser(ctx, req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !user.IsExpert() {
		writeError(c, fmt.Errorf("%w: user %s does not have the expert role", services.ErrValidation, user.ID))
		return
	}

	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = user.Email
	}
	expert := models.Expert{
		UserID:                user.ID,
		Name:                  strings.TrimSpace(req.Name),
		Email:                 email,
		Specialties:           req.Specialties,
		Credentials:           req.Credentials,
		IsAvailable:           available,
		DefaultCommissionRate: req.DefaultCommissionRate,
	}
	if err := h.Experts.Create(ctx, &expert); err != nil {
		writeError(c, err)
		return
	}
	log.Printf("✅ Expert %s registered for user %s", expert.ID, user.ID)
	respondOK(c, http.StatusCreated, "Expert created successfully", expert)
}

func (h *Handler) adminExpertAvailability(c *gin.Context) {
	var req models.AvailabilityUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	if err := h.Experts.SetAvailability(ctx, c.Param("id"), *req.IsAvailable); err != nil {
		writeError(c, err)
		return
	}
	expert, err := h.Experts.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Availability updated successfully", expert)
}

func (h *Handler) adminExpertPhoto(c *gin.Context) {
	if h.Uploader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "Uploads disabled",
			"message": "Image storage is not configured",
		})
		return
	}
	ctx := c.Request.Context()
	expert, err := h.Experts.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	header, err := c.FormFile("photo")
	if err != nil {
		badRequest(c, "photo file is required")
		return
	}
	if err := services.ValidateImageFile(header); err != nil {
		writeError(c, err)
		return
	}
	file, err := header.Open()
	if err != nil {
		badRequest(c, "could not read uploaded file")
		return
	}
	defer file.Close()

	url, err := h.Uploader.UploadImage(ctx, file, h.UploadFolder, "expert_"+expert.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.Experts.SetProfilePhoto(ctx, expert.ID, url); err != nil {
		writeError(c, err)
		return
	}
	expert.ProfilePhoto = &url
	log.Printf("📸 Profile photo updated for expert %s", expert.ID)
	respondOK(c, http.StatusOK, "Profile photo uploaded successfully", expert)
}
