package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"advice-moderation-server/models"
)

// RequestFilter narrows a Query. Zero fields are ignored.
type RequestFilter struct {
	Statuses         []models.RequestStatus
	Type             models.RequestType
	UserID           string
	AssignedExpertID string
	Exclusive        *bool
}

// RequestStore persists advice requests and their responses.
type RequestStore interface {
	Create(ctx context.Context, req *models.AdviceRequest) error
	Get(ctx context.Context, id string) (models.AdviceRequest, error)
	Update(ctx context.Context, id string, patch models.RequestPatch) error
	UpdateFromStatus(ctx context.Context, id string, from StatusGuard, patch models.RequestPatch) error
	Query(ctx context.Context, filter RequestFilter, order string) ([]models.AdviceRequest, error)
	ExpertQueue(ctx context.Context, expertID string) ([]models.AdviceRequest, error)

	AddResponse(ctx context.Context, resp *models.Response) error
	GetResponse(ctx context.Context, id string) (models.Response, error)
	Responses(ctx context.Context, requestID string) ([]models.Response, error)
	UpdateResponseStatus(ctx context.Context, id string, from, to models.ResponseStatus) error
}

const defaultRequestOrder = "created_at desc"

// GormRequestStore is the RequestStore used in production (postgres) and tests (sqlite).
type GormRequestStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormRequestStore(db *gorm.DB) *GormRequestStore {
	return &GormRequestStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *GormRequestStore) Create(ctx context.Context, req *models.AdviceRequest) error {
	now := s.now()
	req.CreatedAt = now
	req.UpdatedAt = now
	if err := s.db.WithContext(ctx).Create(req).Error; err != nil {
		return storeErr(err, "create request")
	}
	return nil
}

func (s *GormRequestStore) Get(ctx context.Context, id string) (models.AdviceRequest, error) {
	var req models.AdviceRequest
	if err := s.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return models.AdviceRequest{}, storeErr(err, "request "+id)
	}
	return req, nil
}

func (s *GormRequestStore) Update(ctx context.Context, id string, patch models.RequestPatch) error {
	result := s.db.WithContext(ctx).
		Model(&models.AdviceRequest{}).
		Where("id = ?", id).
		Updates(patch.Columns(s.now()))
	if result.Error != nil {
		return storeErr(result.Error, "update request "+id)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: request %s", ErrNotFound, id)
	}
	return nil
}

// UpdateFromStatus applies patch only while the row still matches from.
// A row that exists but has moved on yields ErrInvalidState.
func (s *GormRequestStore) UpdateFromStatus(ctx context.Context, id string, from StatusGuard, patch models.RequestPatch) error {
	q := s.db.WithContext(ctx).
		Model(&models.AdviceRequest{}).
		Where("id = ?", id)
	if len(from.Statuses) > 0 {
		q = q.Where("status IN ?", from.Statuses)
	}
	if from.Refund != "" {
		q = q.Where("refund_status = ?", from.Refund)
	}

	result := q.Updates(patch.Columns(s.now()))
	if result.Error != nil {
		return storeErr(result.Error, "update request "+id)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.AdviceRequest{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return storeErr(err, "request "+id)
	}
	if count == 0 {
		return fmt.Errorf("%w: request %s", ErrNotFound, id)
	}
	return fmt.Errorf("%w: request %s changed concurrently", ErrInvalidState, id)
}

func (s *GormRequestStore) Query(ctx context.Context, filter RequestFilter, order string) ([]models.AdviceRequest, error) {
	if order == "" {
		order = defaultRequestOrder
	}

	q := s.db.WithContext(ctx).Model(&models.AdviceRequest{})
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.AssignedExpertID != "" {
		q = q.Where("assigned_expert_id = ?", filter.AssignedExpertID)
	}
	if filter.Exclusive != nil {
		q = q.Where("is_exclusive = ?", *filter.Exclusive)
	}

	var requests []models.AdviceRequest
	if err := q.Order(order).Find(&requests).Error; err != nil {
		return nil, storeErr(err, "query requests")
	}
	return requests, nil
}

// ExpertQueue returns the open expert pool plus everything assigned to expertID.
func (s *GormRequestStore) ExpertQueue(ctx context.Context, expertID string) ([]models.AdviceRequest, error) {
	var requests []models.AdviceRequest
	err := s.db.WithContext(ctx).
		Where("(type = ? AND status = ? AND is_exclusive = ?) OR assigned_expert_id = ?",
			models.RequestTypeExpert, models.RequestStatusApproved, false, expertID).
		Order("is_urgent desc").
		Order(defaultRequestOrder).
		Find(&requests).Error
	if err != nil {
		return nil, storeErr(err, "expert queue")
	}
	return requests, nil
}

func (s *GormRequestStore) AddResponse(ctx context.Context, resp *models.Response) error {
	now := s.now()
	resp.CreatedAt = now
	resp.UpdatedAt = now
	if err := s.db.WithContext(ctx).Create(resp).Error; err != nil {
		return storeErr(err, "create response")
	}
	return nil
}

func (s *GormRequestStore) GetResponse(ctx context.Context, id string) (models.Response, error) {
	var resp models.Response
	if err := s.db.WithContext(ctx).First(&resp, "id = ?", id).Error; err != nil {
		return models.Response{}, storeErr(err, "response "+id)
	}
	return resp, nil
}

func (s *GormRequestStore) Responses(ctx context.Context, requestID string) ([]models.Response, error) {
	var responses []models.Response
	if err := s.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at asc").
		Find(&responses).Error; err != nil {
		return nil, storeErr(err, "responses for "+requestID)
	}
	return responses, nil
}

func (s *GormRequestStore) UpdateResponseStatus(ctx context.Context, id string, from, to models.ResponseStatus) error {
	result := s.db.WithContext(ctx).
		Model(&models.Response{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": s.now()})
	if result.Error != nil {
		return storeErr(result.Error, "update response "+id)
	}
	if result.RowsAffected == 0 {
		if _, err := s.GetResponse(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: response %s changed concurrently", ErrInvalidState, id)
	}
	return nil
}
