package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"advice-moderation-server/database"
	"advice-moderation-server/middleware"
	"advice-moderation-server/models"
	"advice-moderation-server/services"
	"advice-moderation-server/utils"
)

const testSecret = "routes-test-secret"

type testServer struct {
	router     *gin.Engine
	db         *gorm.DB
	moderation *services.ModerationService
	handler    *Handler
}

type apiResponse struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Error      string          `json:"error"`
	Code       string          `json:"code"`
	Data       json.RawMessage `json:"data"`
	Pagination struct {
		Page  int `json:"page"`
		Limit int `json:"limit"`
		Total int `json:"total"`
	} `json:"pagination"`
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	notifications := services.NewNotificationService(db)
	experts := services.NewGormExpertDirectory(db)
	moderation := services.NewModerationService(services.NewGormRequestStore(db), experts, notifications)
	t.Cleanup(moderation.Drain)
	jwtService := services.NewJWTService(db, testSecret, time.Hour, 24*time.Hour)
	authService := services.NewAuthService(db)

	h := &Handler{
		Moderation:    moderation,
		Bulk:          services.NewBulkCoordinator(moderation, 4),
		Experts:       experts,
		Notifications: notifications,
		Auth:          authService,
		JWT:           jwtService,
	}
	router := gin.New()
	RegisterRoutes(router, h, middleware.NewAuthenticator(jwtService, authService))
	return &testServer{router: router, db: db, moderation: moderation, handler: h}
}

func (s *testServer) user(t *testing.T, email string, role models.UserRole) (models.User, string) {
	t.Helper()
	hash, err := utils.HashPassword("Secret123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	u := models.User{FullName: "Test", Email: email, PasswordHash: hash, Role: role, IsActive: true}
	if err := s.db.Create(&u).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	token, err := utils.GenerateToken(u.ID, string(role), testSecret, time.Hour)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return u, token
}

func (s *testServer) request(t *testing.T, r models.AdviceRequest) models.AdviceRequest {
	t.Helper()
	if r.UserID == "" {
		r.UserID = "someone"
	}
	if r.Question == "" {
		r.Question = "What should I do?"
	}
	if r.Content == "" {
		r.Content = "Details"
	}
	if err := s.db.Create(&r).Error; err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	return r
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, apiResponse) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid json response %q: %v", w.Body.String(), err)
		}
	}
	return w.Code, resp
}

func decode(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("failed to decode data %s: %v", raw, err)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestAdminRoutesRequireOperatorRole(t *testing.T) {
	s := newTestServer(t)
	_, userToken := s.user(t, "user@example.com", models.RoleUser)
	_, expertToken := s.user(t, "expert@example.com", models.RoleExpert)
	_, modToken := s.user(t, "mod@example.com", models.RoleModerator)
	_, adminToken := s.user(t, "admin@example.com", models.RoleAdmin)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"garbage token", "not-a-jwt", http.StatusUnauthorized},
		{"submitter", userToken, http.StatusForbidden},
		{"expert", expertToken, http.StatusForbidden},
		{"moderator", modToken, http.StatusOK},
		{"admin", adminToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _ := s.do(t, http.MethodGet, "/api/v1/admin/requests", tt.token, nil); code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, code)
			}
		})
	}
}

func TestInactiveUserIsRejected(t *testing.T) {
	s := newTestServer(t)
	u, token := s.user(t, "old@example.com", models.RoleAdmin)
	s.db.Model(&models.User{}).Where("id = ?", u.ID).Update("is_active", false)

	if code, _ := s.do(t, http.MethodGet, "/api/v1/admin/requests", token, nil); code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", code)
	}
}

func TestAdminApproveAndDenyFlow(t *testing.T) {
	s := newTestServer(t)
	_, token := s.user(t, "admin@example.com", models.RoleAdmin)
	expertReq := s.request(t, models.AdviceRequest{Type: models.RequestTypeExpert})
	regularReq := s.request(t, models.AdviceRequest{Type: models.RequestTypeRegular})

	code, resp := s.do(t, http.MethodPost, "/api/v1/admin/requests/"+expertReq.ID+"/approve", token, nil)
	if code != http.StatusOK || !resp.Success {
		t.Fatalf("expected approve to succeed, got %d %+v", code, resp)
	}
	if resp.Message != "Request approved and moved to expert section" {
		t.Errorf("unexpected message %q", resp.Message)
	}
	var approved models.AdviceRequest
	decode(t, resp.Data, &approved)
	if approved.Status != models.RequestStatusApproved {
		t.Errorf("expected approved, got %s", approved.Status)
	}

	code, resp = s.do(t, http.MethodPost, "/api/v1/admin/requests/"+expertReq.ID+"/approve", token, nil)
	if code != http.StatusConflict || resp.Code != "invalid_state" || resp.Success {
		t.Errorf("expected 409 invalid_state on second approve, got %d %+v", code, resp)
	}

	code, resp = s.do(t, http.MethodPost, "/api/v1/admin/requests/"+regularReq.ID+"/approve", token, map[string]string{"type": "expert"})
	if code != http.StatusBadRequest || resp.Code != "validation" {
		t.Errorf("expected 400 when changing routing, got %d %+v", code, resp)
	}

	code, resp = s.do(t, http.MethodPost, "/api/v1/admin/requests/"+regularReq.ID+"/deny", token, map[string]string{"reason": ""})
	if code != http.StatusBadRequest {
		t.Errorf("expected 400 without reason, got %d", code)
	}

	code, resp = s.do(t, http.MethodPost, "/api/v1/admin/requests/"+regularReq.ID+"/deny", token, map[string]string{"reason": "Spam", "additional_notes": "repeat"})
	if code != http.StatusOK {
		t.Fatalf("expected deny to succeed, got %d %+v", code, resp)
	}
	var denied models.AdviceRequest
	decode(t, resp.Data, &denied)
	if denied.Status != models.RequestStatusDenied || denied.RefundStatus != models.RefundStatusPending {
		t.Errorf("expected denied with pending refund, got %s/%s", denied.Status, denied.RefundStatus)
	}

	code, resp = s.do(t, http.MethodPost, "/api/v1/admin/requests/"+regularReq.ID+"/refund", token, nil)
	if code != http.StatusOK || resp.Message != "Refund processed successfully" {
		t.Errorf("expected refund to succeed, got %d %+v", code, resp)
	}

	code, resp = s.do(t, http.MethodPost, "/api/v1/admin/requests/missing/approve", token, nil)
	if code != http.StatusNotFound || resp.Code != "not_found" {
		t.Errorf("expected 404, got %d %+v", code, resp)
	}
}

func TestAdminAssignRejectsRegularRequest(t *testing.T) {
	s := newTestServer(t)
	_, token := s.user(t, "admin@example.com", models.RoleAdmin)
	expertUser, _ := s.user(t, "expert@example.com", models.RoleExpert)
	expert := models.Expert{UserID: expertUser.ID, Name: "Expert", IsAvailable: true}
	if err := s.db.Create(&expert).Error; err != nil {
		t.Fatalf("failed to create expert: %v", err)
	}
	regular := s.request(t, models.AdviceRequest{Type: models.RequestTypeRegular, Status: models.RequestStatusApproved})
	expertReq := s.request(t, models.AdviceRequest{Type: models.RequestTypeExpert, Status: models.RequestStatusApproved})

	code, resp := s.do(t, http.MethodPost, "/api/v1/admin/requests/"+regular.ID+"/assign", token, map[string]string{"expert_id": expert.ID})
	if code != http.StatusBadRequest || resp.Code != "invalid_type" {
		t.Errorf("expected 400 invalid_type, got %d %+v", code, resp)
	}

	code, resp = s.do(t, http.MethodPost, "/api/v1/admin/requests/"+expertReq.ID+"/assign", token, map[string]interface{}{
		"expert_id": expert.ID,
		"exclusive": false,
	})
	if code != http.StatusOK {
		t.Fatalf("expected assign to succeed, got %d %+v", code, resp)
	}
	var assigned models.AdviceRequest
	decode(t, resp.Data, &assigned)
	if assigned.IsExclusive || assigned.CommissionRate != models.DefaultCommissionRate {
		t.Errorf("expected non exclusive at default rate, got %v/%v", assigned.IsExclusive, assigned.CommissionRate)
	}

	if code, _ := s.do(t, http.MethodPost, "/api/v1/admin/requests/"+expertReq.ID+"/assign", token, map[string]string{}); code != http.StatusBadRequest {
		t.Errorf("expected 400 without expert_id, got %d", code)
	}
}

func TestAdminBulkReportsPerItem(t *testing.T) {
	s := newTestServer(t)
	_, token := s.user(t, "mod@example.com", models.RoleModerator)
	a := s.request(t, models.AdviceRequest{})
	b := s.request(t, models.AdviceRequest{Status: models.RequestStatusApproved})

	code, resp := s.do(t, http.MethodPost, "/api/v1/admin/requests/bulk", token, map[string]interface{}{
		"ids":    []string{a.ID, b.ID},
		"action": "approve",
	})
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d %+v", code, resp)
	}
	var result services.BulkResult
	decode(t, resp.Data, &result)
	if result.Succeeded != 1 || result.Failed != 1 {
		t.Errorf("unexpected counts %+v", result)
	}
	if resp.Message != "1 of 2 requests approved" {
		t.Errorf("unexpected message %q", resp.Message)
	}

	code, resp = s.do(t, http.MethodPost, "/api/v1/admin/requests/bulk", token, map[string]interface{}{
		"ids":    []string{a.ID},
		"action": "deny",
	})
	if code != http.StatusBadRequest || resp.Code != "validation" {
		t.Errorf("expected 400 for bulk deny without reason, got %d %+v", code, resp)
	}

	code, _ = s.do(t, http.MethodPost, "/api/v1/admin/requests/bulk", token, map[string]interface{}{
		"ids":    []string{},
		"action": "approve",
	})
	if code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty selection, got %d", code)
	}
}

func TestAdminQueuePaginationAndStats(t *testing.T) {
	s := newTestServer(t)
	_, token := s.user(t, "admin@example.com", models.RoleAdmin)
	for i := 0; i < 3; i++ {
		s.request(t, models.AdviceRequest{Category: "Dating"})
	}
	s.request(t, models.AdviceRequest{Category: "Breakups", IsUrgent: true, Type: models.RequestTypeExpert})

	code, resp := s.do(t, http.MethodGet, "/api/v1/admin/requests?limit=2&page=1", token, nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var page []models.AdviceRequest
	decode(t, resp.Data, &page)
	if len(page) != 2 || resp.Pagination.Total != 4 || resp.Pagination.Limit != 2 {
		t.Errorf("unexpected page %d items, pagination %+v", len(page), resp.Pagination)
	}
	if !page[0].IsUrgent {
		t.Error("expected urgent request first")
	}

	code, resp = s.do(t, http.MethodGet, "/api/v1/admin/requests?limit=50&page=184467440737095517", token, nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200 for a page past the end, got %d", code)
	}
	var beyond []models.AdviceRequest
	decode(t, resp.Data, &beyond)
	if len(beyond) != 0 || resp.Pagination.Total != 4 {
		t.Errorf("expected an empty page, got %d items, pagination %+v", len(beyond), resp.Pagination)
	}

	code, resp = s.do(t, http.MethodGet, "/api/v1/admin/requests?priority=urgent", token, nil)
	if code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown priority, got %d", code)
	}

	_, resp = s.do(t, http.MethodGet, "/api/v1/admin/requests/stats", token, nil)
	var stats services.QueueStats
	decode(t, resp.Data, &stats)
	if stats.PendingReview != 4 || stats.HighPriority != 1 || stats.ExpertContent != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	_, resp = s.do(t, http.MethodGet, "/api/v1/admin/requests/categories", token, nil)
	var categories []string
	decode(t, resp.Data, &categories)
	if len(categories) != 2 || categories[0] != "Breakups" {
		t.Errorf("unexpected categories %v", categories)
	}
}

func TestSubmitterRequestFlow(t *testing.T) {
	s := newTestServer(t)
	owner, ownerToken := s.user(t, "owner@example.com", models.RoleUser)
	_, otherToken := s.user(t, "other@example.com", models.RoleUser)

	code, resp := s.do(t, http.MethodPost, "/api/v1/requests", ownerToken, map[string]interface{}{
		"question": "How soon is too soon to meet the parents?",
		"content":  "Three months in",
		"type":     "regular",
	})
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %+v", code, resp)
	}
	var created models.AdviceRequest
	decode(t, resp.Data, &created)
	if created.UserID != owner.ID || created.Status != models.RequestStatusPending {
		t.Errorf("unexpected request %+v", created)
	}

	if code, _ := s.do(t, http.MethodPost, "/api/v1/requests", ownerToken, map[string]string{"question": "q"}); code != http.StatusBadRequest {
		t.Errorf("expected 400 for incomplete body, got %d", code)
	}

	if code, _ := s.do(t, http.MethodGet, "/api/v1/requests/"+created.ID, ownerToken, nil); code != http.StatusOK {
		t.Errorf("expected owner to read request, got %d", code)
	}
	if code, _ := s.do(t, http.MethodGet, "/api/v1/requests/"+created.ID, otherToken, nil); code != http.StatusNotFound {
		t.Errorf("expected 404 for another user, got %d", code)
	}

	_, resp = s.do(t, http.MethodGet, "/api/v1/requests/mine", ownerToken, nil)
	var mine []models.AdviceRequest
	decode(t, resp.Data, &mine)
	if len(mine) != 1 {
		t.Errorf("expected 1 request, got %d", len(mine))
	}

	if _, err := s.moderation.Approve(context.Background(), created.ID, ""); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if code, _ := s.do(t, http.MethodPost, "/api/v1/requests/"+created.ID+"/responses", otherToken, map[string]string{"content": "hi"}); code != http.StatusForbidden {
		t.Errorf("expected 403 for non-owner follow-up, got %d", code)
	}
	if code, resp := s.do(t, http.MethodPost, "/api/v1/requests/"+created.ID+"/responses", ownerToken, map[string]string{"content": "More context"}); code != http.StatusCreated {
		t.Errorf("expected 201 for owner follow-up, got %d %+v", code, resp)
	}
}

func TestExpertRoutes(t *testing.T) {
	s := newTestServer(t)
	expertUser, token := s.user(t, "expert@example.com", models.RoleExpert)
	_, userToken := s.user(t, "user@example.com", models.RoleUser)
	expert := models.Expert{UserID: expertUser.ID, Name: "Expert", IsAvailable: true}
	if err := s.db.Create(&expert).Error; err != nil {
		t.Fatalf("failed to create expert: %v", err)
	}
	s.request(t, models.AdviceRequest{Type: models.RequestTypeExpert, Status: models.RequestStatusApproved})
	s.request(t, models.AdviceRequest{Type: models.RequestTypeRegular, Status: models.RequestStatusApproved})

	code, resp := s.do(t, http.MethodGet, "/api/v1/expert/requests", token, nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var queue []models.AdviceRequest
	decode(t, resp.Data, &queue)
	if len(queue) != 1 || queue[0].Type != models.RequestTypeExpert {
		t.Errorf("expected only the expert pool, got %+v", queue)
	}

	if code, _ := s.do(t, http.MethodGet, "/api/v1/expert/requests", userToken, nil); code != http.StatusForbidden {
		t.Errorf("expected 403 for submitter, got %d", code)
	}

	code, resp = s.do(t, http.MethodPatch, "/api/v1/expert/availability", token, map[string]bool{"is_available": false})
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d %+v", code, resp)
	}
	var updated models.Expert
	decode(t, resp.Data, &updated)
	if updated.IsAvailable {
		t.Error("expected expert to be unavailable")
	}
	if code, _ := s.do(t, http.MethodPatch, "/api/v1/expert/availability", token, map[string]string{}); code != http.StatusBadRequest {
		t.Errorf("expected 400 without is_available, got %d", code)
	}
}

func TestAuthEndpoints(t *testing.T) {
	s := newTestServer(t)

	code, resp := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"full_name": "New Person",
		"email":     "new@example.com",
		"password":  "Secret123",
	})
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %+v", code, resp)
	}

	code, resp = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "new@example.com", "password": "Secret123"})
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d %+v", code, resp)
	}
	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	decode(t, resp.Data, &tokens)
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("expected tokens, got %s", resp.Data)
	}

	if code, _ := s.do(t, http.MethodGet, "/api/v1/auth/me", tokens.AccessToken, nil); code != http.StatusOK {
		t.Errorf("expected 200 from /me, got %d", code)
	}
	if code, _ := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "new@example.com", "password": "Wrong123"}); code != http.StatusUnauthorized {
		t.Errorf("expected 401 for wrong password, got %d", code)
	}
	if code, _ := s.do(t, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refresh_token": tokens.RefreshToken}); code != http.StatusOK {
		t.Errorf("expected refresh to succeed, got %d", code)
	}
	if code, _ := s.do(t, http.MethodPost, "/api/v1/auth/logout", "", map[string]string{"refresh_token": tokens.RefreshToken}); code != http.StatusOK {
		t.Errorf("expected logout to succeed, got %d", code)
	}
	if code, _ := s.do(t, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refresh_token": tokens.RefreshToken}); code != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", code)
	}
}

func TestAdminCreateExpert(t *testing.T) {
	s := newTestServer(t)
	_, token := s.user(t, "admin@example.com", models.RoleAdmin)
	candidate, _ := s.user(t, "candidate@example.com", models.RoleExpert)
	plain, _ := s.user(t, "plain@example.com", models.RoleUser)

	code, resp := s.do(t, http.MethodPost, "/api/v1/admin/experts", token, map[string]interface{}{
		"user_id":     candidate.ID,
		"name":        "Dr. Candidate",
		"specialties": []string{"Dating"},
	})
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %+v", code, resp)
	}
	var expert models.Expert
	decode(t, resp.Data, &expert)
	if expert.Email != "candidate@example.com" || !expert.IsAvailable || expert.Rating != models.DefaultExpertRating {
		t.Errorf("unexpected expert %+v", expert)
	}

	code, resp = s.do(t, http.MethodPost, "/api/v1/admin/experts", token, map[string]interface{}{"user_id": plain.ID, "name": "Plain"})
	if code != http.StatusBadRequest {
		t.Errorf("expected 400 for a non-expert user, got %d %+v", code, resp)
	}

	code, resp = s.do(t, http.MethodPatch, "/api/v1/admin/experts/"+expert.ID+"/availability", token, map[string]bool{"is_available": false})
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d %+v", code, resp)
	}

	_, resp = s.do(t, http.MethodGet, "/api/v1/admin/experts/available", token, nil)
	var available []models.Expert
	decode(t, resp.Data, &available)
	if len(available) != 0 {
		t.Errorf("expected no available experts, got %d", len(available))
	}
}

type stubUploader struct {
	folder, name string
}

func (u *stubUploader) UploadImage(_ context.Context, file io.Reader, folder, name string) (string, error) {
	if _, err := io.ReadAll(file); err != nil {
		return "", err
	}
	u.folder, u.name = folder, name
	return "https://cdn.example.com/" + folder + "/" + name + ".png", nil
}

func TestAdminExpertPhoto(t *testing.T) {
	s := newTestServer(t)
	_, token := s.user(t, "admin@example.com", models.RoleAdmin)
	expertUser, _ := s.user(t, "expert@example.com", models.RoleExpert)
	expert := models.Expert{UserID: expertUser.ID, Name: "Expert", IsAvailable: true}
	if err := s.db.Create(&expert).Error; err != nil {
		t.Fatalf("failed to create expert: %v", err)
	}

	upload := func(filename string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, _ := mw.CreateFormFile("photo", filename)
		part.Write([]byte("fake image bytes"))
		mw.Close()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/experts/"+expert.ID+"/photo", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		return w
	}

	if w := upload("me.png"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without uploader, got %d", w.Code)
	}

	stub := &stubUploader{}
	s.handler.Uploader = stub
	s.handler.UploadFolder = "experts"

	if w := upload("me.gif"); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for gif, got %d", w.Code)
	}
	w := upload("me.png")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if stub.folder != "experts" || stub.name != "expert_"+expert.ID {
		t.Errorf("unexpected upload target %s/%s", stub.folder, stub.name)
	}
	var stored models.Expert
	s.db.First(&stored, "id = ?", expert.ID)
	if stored.ProfilePhoto == nil || *stored.ProfilePhoto != "https://cdn.example.com/experts/expert_"+expert.ID+".png" {
		t.Errorf("unexpected stored photo %v", stored.ProfilePhoto)
	}
}

func TestNotificationRoutes(t *testing.T) {
	s := newTestServer(t)
	u, token := s.user(t, "user@example.com", models.RoleUser)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := s.handler.Notifications.Send(ctx, services.NotificationMessage{UserID: u.ID, Title: "t", Message: "m", Kind: models.KindRequestAnswered}); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}

	_, resp := s.do(t, http.MethodGet, "/api/v1/notifications/unread-count", token, nil)
	var count struct {
		UnreadCount int64 `json:"unread_count"`
	}
	decode(t, resp.Data, &count)
	if count.UnreadCount != 2 {
		t.Errorf("expected 2 unread, got %d", count.UnreadCount)
	}

	if code, _ := s.do(t, http.MethodPost, "/api/v1/notifications/read-all", token, nil); code != http.StatusOK {
		t.Errorf("expected 200, got %d", code)
	}
	if code, _ := s.do(t, http.MethodPost, "/api/v1/notifications/missing/read", token, nil); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
	if code, _ := s.do(t, http.MethodPost, "/api/v1/notifications/push-token", token, map[string]string{"token": "ExponentPushToken[x]", "platform": "blackberry"}); code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown platform, got %d", code)
	}
	if code, _ := s.do(t, http.MethodPost, "/api/v1/notifications/push-token", token, map[string]string{"token": "ExponentPushToken[x]", "platform": "ios"}); code != http.StatusOK {
		t.Errorf("expected 200, got %d", code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{services.ErrValidation, http.StatusBadRequest},
		{services.ErrInvalidType, http.StatusBadRequest},
		{services.ErrUnauthorized, http.StatusUnauthorized},
		{services.ErrForbidden, http.StatusForbidden},
		{services.ErrNotFound, http.StatusNotFound},
		{services.ErrInvalidState, http.StatusConflict},
		{services.ErrNetwork, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
