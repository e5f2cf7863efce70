package routes

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"advice-moderation-server/middleware"
	"advice-moderation-server/models"
	"advice-moderation-server/services"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// RegisterAdminRoutes registers the moderation queue and its actions
func (h *Handler) RegisterAdminRoutes(router *gin.RouterGroup) {
	router.GET("/auth/me", h.me)

	requests := router.Group("/requests")
	{
		requests.GET("", h.adminListRequests)
		requests.GET("/stats", h.adminStats)
		requests.GET("/categories", h.adminCategories)
		requests.POST("/bulk", h.adminBulk)
		requests.GET("/:id", h.adminGetRequest)
		requests.POST("/:id/approve", h.adminApprove)
		requests.POST("/:id/deny", h.adminDeny)
		requests.POST("/:id/assign", h.adminAssign)
		requests.POST("/:id/answer", h.adminAnswer)
		requests.POST("/:id/refund", h.adminRefund)
	}

	router.POST("/responses/:id/moderate", h.adminModerateResponse)
}

func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

func (h *Handler) adminListRequests(c *gin.Context) {
	q := services.QueueQuery{
		Search:    c.Query("search"),
		Type:      c.Query("type"),
		Priority:  c.Query("priority"),
		Category:  c.Query("category"),
		Status:    c.Query("status"),
		SortField: c.Query("sort"),
		SortDir:   c.Query("dir"),
	}
	items, err := h.Moderation.Queue(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	page, limit := pageParams(c)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Requests retrieved successfully",
		"data":    services.Paginate(items, page, limit),
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": len(items),
		},
	})
}

func (h *Handler) adminStats(c *gin.Context) {
	stats, err := h.Moderation.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Stats retrieved successfully", stats)
}

func (h *Handler) adminCategories(c *gin.Context) {
	requests, err := h.Moderation.ListRequests(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Categories retrieved successfully", services.Categories(requests))
}

func (h *Handler) adminGetRequest(c *gin.Context) {
	req, err := h.Moderation.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Request retrieved successfully", req)
}

func (h *Handler) adminApprove(c *gin.Context) {
	var body struct {
		Type models.RequestType `json:"type"`
	}
	// an empty body approves along the request's own type
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	h.moderationResult(c, "approve")(h.Moderation.Approve(c.Request.Context(), c.Param("id"), body.Type))
}

func (h *Handler) adminDeny(c *gin.Context) {
	var body struct {
		Reason          string `json:"reason"`
		AdditionalNotes string `json:"additional_notes"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.moderationResult(c, "deny")(h.Moderation.Deny(c.Request.Context(), c.Param("id"), body.Reason, body.AdditionalNotes))
}

func (h *Handler) adminAssign(c *gin.Context) {
	var body struct {
		ExpertID       string   `json:"expert_id" binding:"required"`
		Exclusive      *bool    `json:"exclusive"`
		CommissionRate *float64 `json:"commission_rate"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	opts := services.AssignOptions{Exclusive: body.Exclusive, CommissionRate: body.CommissionRate}
	h.moderationResult(c, "assign")(h.Moderation.AssignExpert(c.Request.Context(), c.Param("id"), body.ExpertID, opts))
}

func (h *Handler) adminAnswer(c *gin.Context) {
	h.moderationResult(c, "answer")(h.Moderation.StartAnswer(c.Request.Context(), c.Param("id")))
}

func (h *Handler) adminRefund(c *gin.Context) {
	h.moderationResult(c, "refund")(h.Moderation.ProcessRefund(c.Request.Context(), c.Param("id")))
}

// moderationResult renders the outcome of a single-request action
func (h *Handler) moderationResult(c *gin.Context, action string) func(services.ModerationResult, error) {
	return func(res services.ModerationResult, err error) {
		if err != nil {
			log.Printf("⚠️ %s on request %s by %s failed: %v", action, c.Param("id"), c.GetString(middleware.ContextUserID), err)
			writeError(c, err)
			return
		}
		respondOK(c, http.StatusOK, res.Message, res.Request)
	}
}

func (h *Handler) adminBulk(c *gin.Context) {
	var body struct {
		IDs             []string `json:"ids"`
		Action          string   `json:"action" binding:"required"`
		Reason          string   `json:"reason"`
		AdditionalNotes string   `json:"additional_notes"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	result, err := h.Bulk.Apply(c.Request.Context(), body.IDs, services.BulkAction{
		Kind:   services.BulkKind(body.Action),
		Reason: body.Reason,
		Notes:  body.AdditionalNotes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	log.Printf("📡 Bulk %s by %s: %d/%d succeeded", body.Action, c.GetString(middleware.ContextUserID), result.Succeeded, result.Requested)
	respondOK(c, http.StatusOK, bulkMessage(body.Action, result), result)
}

func bulkMessage(action string, r services.BulkResult) string {
	past := "approved"
	if action == string(services.BulkDeny) {
		past = "denied"
	}
	if r.Failed == 0 {
		return strconv.Itoa(r.Succeeded) + " requests " + past
	}
	return strconv.Itoa(r.Succeeded) + " of " + strconv.Itoa(r.Requested) + " requests " + past
}

func (h *Handler) adminModerateResponse(c *gin.Context) {
	var body models.ResponseModeration
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	resp, err := h.Moderation.ModerateResponse(c.Request.Context(), c.Param("id"), body.Decision)
	if err != nil {
		writeError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Response "+string(resp.Status), resp)
}
