package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"advice-moderation-server/models"
)

// OperatorBroadcaster tells connected operators that a request changed.
type OperatorBroadcaster interface {
	BroadcastToOperators(msgType string, data interface{})
}

// ModerationResult is what an operator sees after an action.
type ModerationResult struct {
	Request models.AdviceRequest `json:"request"`
	Message string               `json:"message"`
}

// ModerationService is the single entry point for changing a request.
// It loads the request, plans the transition, persists it with a status
// guard and then runs the transition's effects in the background.
type ModerationService struct {
	store    RequestStore
	experts  ExpertDirectory
	notifier Notifier
	live     OperatorBroadcaster
	rates    CommissionRates

	effectTimeout time.Duration
	effects       sync.WaitGroup
	now           func() time.Time
}

type ModerationOption func(*ModerationService)

func WithCommissionRates(r CommissionRates) ModerationOption {
	return func(s *ModerationService) { s.rates = r }
}

func WithOperatorBroadcaster(b OperatorBroadcaster) ModerationOption {
	return func(s *ModerationService) { s.live = b }
}

func WithEffectTimeout(d time.Duration) ModerationOption {
	return func(s *ModerationService) { s.effectTimeout = d }
}

func WithClock(now func() time.Time) ModerationOption {
	return func(s *ModerationService) { s.now = now }
}

func NewModerationService(store RequestStore, experts ExpertDirectory, notifier Notifier, opts ...ModerationOption) *ModerationService {
	s := &ModerationService{
		store:         store,
		experts:       experts,
		notifier:      notifier,
		rates:         DefaultCommissionRates,
		effectTimeout: 30 * time.Second,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Drain blocks until every dispatched effect has finished.
func (s *ModerationService) Drain() {
	s.effects.Wait()
}

// CreateRequest opens a new pending request for userID.
func (s *ModerationService) CreateRequest(ctx context.Context, userID string, in models.AdviceRequestCreate) (models.AdviceRequest, error) {
	question := strings.TrimSpace(in.Question)
	content := strings.TrimSpace(in.Content)
	if userID == "" || question == "" || content == "" {
		return models.AdviceRequest{}, fmt.Errorf("%w: question and content are required", ErrValidation)
	}
	if in.Type == "" {
		in.Type = models.RequestTypeRegular
	}
	if !in.Type.IsValid() {
		return models.AdviceRequest{}, fmt.Errorf("%w: unknown request type %q", ErrValidation, in.Type)
	}

	req := models.AdviceRequest{
		UserID:           userID,
		Question:         question,
		Content:          content,
		Status:           models.RequestStatusPending,
		IsUrgent:         in.IsUrgent,
		Category:         strings.TrimSpace(in.Category),
		Type:             in.Type,
		CommissionRate:   s.rates.Default,
		RefundStatus:     models.RefundStatusNone,
		MediaAttachments: in.MediaAttachments,
	}
	if err := s.store.Create(ctx, &req); err != nil {
		return models.AdviceRequest{}, err
	}

	log.Printf("✅ Request %s created by user %s (%s)", req.ID, userID, req.Type)
	s.publish("request_created", req)
	return req, nil
}

// GetRequest returns the request with its responses in chronological order.
func (s *ModerationService) GetRequest(ctx context.Context, id string) (models.AdviceRequest, error) {
	req, err := s.store.Get(ctx, id)
	if err != nil {
		return models.AdviceRequest{}, err
	}
	responses, err := s.store.Responses(ctx, id)
	if err != nil {
		return models.AdviceRequest{}, err
	}
	req.Responses = responses
	return req, nil
}

func (s *ModerationService) ListRequests(ctx context.Context) ([]models.AdviceRequest, error) {
	return s.store.Query(ctx, RequestFilter{}, "")
}

func (s *ModerationService) UserRequests(ctx context.Context, userID string) ([]models.AdviceRequest, error) {
	return s.store.Query(ctx, RequestFilter{UserID: userID}, "")
}

// Queue returns the operator projection of every request.
func (s *ModerationService) Queue(ctx context.Context, q QueueQuery) ([]models.AdviceRequest, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	requests, err := s.store.Query(ctx, RequestFilter{}, "")
	if err != nil {
		return nil, err
	}
	return ProjectQueue(requests, q), nil
}

// ExpertQueue returns the requests an expert can see, resolved from their user id.
func (s *ModerationService) ExpertQueue(ctx context.Context, userID string) ([]models.AdviceRequest, error) {
	expert, err := s.experts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.store.ExpertQueue(ctx, expert.ID)
}

func (s *ModerationService) Stats(ctx context.Context) (QueueStats, error) {
	requests, err := s.store.Query(ctx, RequestFilter{}, "")
	if err != nil {
		return QueueStats{}, err
	}
	return ComputeStats(requests, s.now()), nil
}

func (s *ModerationService) Approve(ctx context.Context, id string, routing models.RequestType) (ModerationResult, error) {
	req, err := s.store.Get(ctx, id)
	if err != nil {
		return ModerationResult{}, err
	}
	t, err := PlanApprove(req, routing)
	if err != nil {
		return ModerationResult{}, err
	}
	return s.apply(ctx, req, t)
}

func (s *ModerationService) Deny(ctx context.Context, id, reason, notes string) (ModerationResult, error) {
	if strings.TrimSpace(reason) == "" {
		return ModerationResult{}, fmt.Errorf("%w: denial reason is required", ErrValidation)
	}
	req, err := s.store.Get(ctx, id)
	if err != nil {
		return ModerationResult{}, err
	}
	t, err := PlanDeny(req, reason, notes)
	if err != nil {
		return ModerationResult{}, err
	}
	return s.apply(ctx, req, t)
}

func (s *ModerationService) AssignExpert(ctx context.Context, id, expertID string, opts AssignOptions) (ModerationResult, error) {
	req, err := s.store.Get(ctx, id)
	if err != nil {
		return ModerationResult{}, err
	}
	expert, err := s.experts.Get(ctx, expertID)
	if err != nil {
		return ModerationResult{}, err
	}
	t, err := PlanAssign(req, expert, opts, s.rates)
	if err != nil {
		return ModerationResult{}, err
	}
	return s.apply(ctx, req, t)
}

func (s *ModerationService) StartAnswer(ctx context.Context, id string) (ModerationResult, error) {
	req, err := s.store.Get(ctx, id)
	if err != nil {
		return ModerationResult{}, err
	}
	t, err := PlanStartAnswer(req)
	if err != nil {
		return ModerationResult{}, err
	}
	return s.apply(ctx, req, t)
}

func (s *ModerationService) ProcessRefund(ctx context.Context, id string) (ModerationResult, error) {
	req, err := s.store.Get(ctx, id)
	if err != nil {
		return ModerationResult{}, err
	}
	t, err := PlanRefund(req)
	if err != nil {
		return ModerationResult{}, err
	}
	return s.apply(ctx, req, t)
}

// SubmitResponse attaches an answer to a request. An answer to a request in
// progress completes it. If the request update fails after the response was
// stored, the stored response is returned with the error.
func (s *ModerationService) SubmitResponse(ctx context.Context, requestID, authorID string, authorType models.AuthorType, content string) (models.Response, ModerationResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Response{}, ModerationResult{}, fmt.Errorf("%w: response content is required", ErrValidation)
	}

	req, err := s.store.Get(ctx, requestID)
	if err != nil {
		return models.Response{}, ModerationResult{}, err
	}

	var expertID string
	if authorType == models.AuthorExpert {
		expert, err := s.experts.GetByUserID(ctx, authorID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return models.Response{}, ModerationResult{}, fmt.Errorf("%w: user %s is not a registered expert", ErrForbidden, authorID)
			}
			return models.Response{}, ModerationResult{}, err
		}
		expertID = expert.ID
	}

	t, err := PlanRecordResponse(req, authorType, expertID)
	if err != nil {
		return models.Response{}, ModerationResult{}, err
	}

	resp := models.Response{
		RequestID:  req.ID,
		Content:    content,
		AuthorID:   authorID,
		AuthorType: authorType,
		Status:     models.ResponseStatusPending,
	}
	if err := s.store.AddResponse(ctx, &resp); err != nil {
		return models.Response{}, ModerationResult{}, err
	}

	if t.Patch.IsEmpty() {
		s.publish("request_updated", req)
		return resp, ModerationResult{Request: req, Message: t.Message}, nil
	}

	result, err := s.apply(ctx, req, t)
	if err != nil {
		if errors.Is(err, ErrInvalidState) {
			// Someone else moved the request on; the response itself is kept.
			log.Printf("⚠️ Response %s stored but request %s was not marked answered: %v", resp.ID, req.ID, err)
			return resp, ModerationResult{Request: req, Message: "Response recorded"}, nil
		}
		log.Printf("❌ Response %s stored but request %s could not be updated: %v", resp.ID, req.ID, err)
		return resp, ModerationResult{}, err
	}
	return resp, result, nil
}

// ModerateResponse approves or denies a posted response. Moderated expert
// responses count toward that expert's response rate.
func (s *ModerationService) ModerateResponse(ctx context.Context, responseID string, decision models.ResponseStatus) (models.Response, error) {
	resp, err := s.store.GetResponse(ctx, responseID)
	if err != nil {
		return models.Response{}, err
	}
	if err := PlanModerateResponse(resp, decision); err != nil {
		return models.Response{}, err
	}
	if err := s.store.UpdateResponseStatus(ctx, responseID, models.ResponseStatusPending, decision); err != nil {
		return models.Response{}, err
	}
	resp.Status = decision

	if resp.AuthorType == models.AuthorExpert {
		if expert, err := s.experts.GetByUserID(ctx, resp.AuthorID); err != nil {
			log.Printf("⚠️ Could not resolve expert for response %s: %v", resp.ID, err)
		} else if err := s.experts.RecordResponse(ctx, expert.ID, decision == models.ResponseStatusApproved); err != nil {
			log.Printf("❌ Failed to record response stats for expert %s: %v", expert.ID, err)
		}
	}

	s.notifyAsync(NotificationMessage{
		UserID:    resp.AuthorID,
		Title:     "Response Reviewed",
		Message:   fmt.Sprintf("Your response was %s by a moderator.", decision),
		Kind:      models.KindResponseModerated,
		RequestID: resp.RequestID,
	})
	if req, err := s.store.Get(ctx, resp.RequestID); err == nil {
		s.publish("request_updated", req)
	}
	return resp, nil
}

// apply persists t against req and schedules its effects.
func (s *ModerationService) apply(ctx context.Context, req models.AdviceRequest, t Transition) (ModerationResult, error) {
	if err := s.store.UpdateFromStatus(ctx, req.ID, t.From, t.Patch); err != nil {
		return ModerationResult{}, err
	}
	t.Patch.ApplyTo(&req, s.now().UTC())

	log.Printf("✅ Request %s is now %s", req.ID, req.Status)
	s.publish("request_updated", req)
	s.dispatch(t.Effects)
	return ModerationResult{Request: req, Message: t.Message}, nil
}

func (s *ModerationService) publish(msgType string, req models.AdviceRequest) {
	if s.live == nil {
		return
	}
	req.Responses = nil
	s.live.BroadcastToOperators(msgType, req)
}

// dispatch runs effects off the caller's goroutine. Failures are logged
// and never reach the caller.
func (s *ModerationService) dispatch(effects []Effect) {
	if len(effects) == 0 || s.notifier == nil {
		return
	}
	s.effects.Add(1)
	go func() {
		defer s.effects.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.effectTimeout)
		defer cancel()
		for _, e := range effects {
			if err := s.runEffect(ctx, e); err != nil {
				log.Printf("❌ Effect %s failed for request %s: %v", e.Kind, e.RequestID, err)
			}
		}
	}()
}

func (s *ModerationService) notifyAsync(msg NotificationMessage) {
	if s.notifier == nil || msg.UserID == "" {
		return
	}
	s.effects.Add(1)
	go func() {
		defer s.effects.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.effectTimeout)
		defer cancel()
		if err := s.notifier.Send(ctx, msg); err != nil {
			log.Printf("❌ Notification %s to user %s failed: %v", msg.Kind, msg.UserID, err)
		}
	}()
}

func (s *ModerationService) runEffect(ctx context.Context, e Effect) error {
	switch e.Kind {
	case EffectNotifyAvailableExperts:
		experts, err := s.experts.ListAvailable(ctx)
		if err != nil {
			return err
		}
		msgs := make([]NotificationMessage, 0, len(experts))
		for _, expert := range experts {
			msgs = append(msgs, NotificationMessage{
				UserID:    expert.UserID,
				Title:     "New Expert Request Available",
				Message:   "A new request matching your expertise is available.",
				Kind:      models.KindExpertRequestAvailable,
				RequestID: e.RequestID,
				Actions:   []models.NotificationAction{{Title: "View Request", Action: "VIEW_REQUEST"}},
			})
		}
		sent := s.notifier.SendBulk(ctx, msgs)
		log.Printf("📡 Notified %d/%d available experts about request %s", sent, len(msgs), e.RequestID)
		return nil

	case EffectNotifySubmitterDenied:
		return s.notifier.Send(ctx, NotificationMessage{
			UserID:    e.SubmitterID,
			Title:     "Request Denied",
			Message:   e.Reason,
			Kind:      models.KindRequestDenied,
			RequestID: e.RequestID,
			Actions:   e.Actions,
		})

	case EffectNotifyAssignedExpert:
		expert, err := s.experts.Get(ctx, e.ExpertID)
		if err != nil {
			return err
		}
		title, message := "New Exclusive Request", "You have been assigned an exclusive request with premium commission."
		if !e.Exclusive {
			title, message = "New Request Assigned", "You have been assigned a request."
		}
		return s.notifier.Send(ctx, NotificationMessage{
			UserID:    expert.UserID,
			Title:     title,
			Message:   fmt.Sprintf("%s Commission: %.0f%%.", message, e.CommissionRate*100),
			Kind:      models.KindExpertAssigned,
			RequestID: e.RequestID,
			Actions:   []models.NotificationAction{{Title: "View Request", Action: "VIEW_REQUEST"}},
		})

	case EffectNotifySubmitterAnswered:
		return s.notifier.Send(ctx, NotificationMessage{
			UserID:    e.SubmitterID,
			Title:     "Your Request Was Answered",
			Message:   "An answer to your request is ready.",
			Kind:      models.KindRequestAnswered,
			RequestID: e.RequestID,
		})

	case EffectNotifySubmitterRefunded:
		return s.notifier.Send(ctx, NotificationMessage{
			UserID:    e.SubmitterID,
			Title:     "Refund Processed",
			Message:   "Your refund for the denied request has been processed.",
			Kind:      models.KindRefundProcessed,
			RequestID: e.RequestID,
		})
	}
	return fmt.Errorf("unknown effect %q", e.Kind)
}
