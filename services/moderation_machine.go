package services

import (
	"fmt"
	"math"
	"strings"

	"advice-moderation-server/models"
)

// EffectKind names a side effect a transition asks the caller to run
// once the new state is persisted.
type EffectKind string

const (
	EffectNotifyAvailableExperts  EffectKind = "notify_available_experts"
	EffectNotifySubmitterDenied   EffectKind = "notify_submitter_denied"
	EffectNotifyAssignedExpert    EffectKind = "notify_assigned_expert"
	EffectNotifySubmitterAnswered EffectKind = "notify_submitter_answered"
	EffectNotifySubmitterRefunded EffectKind = "notify_submitter_refunded"
)

// Denial notifications always offer these two follow-ups.
var DenialActions = []models.NotificationAction{
	{Title: "Get Refund", Action: "REFUND"},
	{Title: "Edit Request", Action: "EDIT"},
}

type Effect struct {
	Kind           EffectKind
	RequestID      string
	SubmitterID    string
	ExpertID       string
	CommissionRate float64
	Exclusive      bool
	Reason         string
	Actions        []models.NotificationAction
}

// StatusGuard is what the stored row must still hold for a patch to apply.
// An empty Refund is not checked.
type StatusGuard struct {
	Statuses []models.RequestStatus
	Refund   models.RefundStatus
}

func guard(statuses ...models.RequestStatus) StatusGuard {
	return StatusGuard{Statuses: statuses}
}

// Transition is the outcome of planning an action against a request.
type Transition struct {
	From    StatusGuard
	Status  models.RequestStatus
	Patch   models.RequestPatch
	Effects []Effect
	Message string
}

// CommissionRates are the fallbacks used when an assignment names no rate.
type CommissionRates struct {
	Default   float64
	Exclusive float64
}

var DefaultCommissionRates = CommissionRates{
	Default:   models.DefaultCommissionRate,
	Exclusive: models.ExclusiveCommissionRate,
}

// AssignOptions carries the optional knobs of an expert assignment.
// Nil means "use the default".
type AssignOptions struct {
	Exclusive      *bool
	CommissionRate *float64
}

func statusPtr(s models.RequestStatus) *models.RequestStatus { return &s }
func refundPtr(s models.RefundStatus) *models.RefundStatus   { return &s }
func strPtr(s string) *string                                { return &s }
func boolPtr(b bool) *bool                                   { return &b }
func floatPtr(f float64) *float64                            { return &f }

func invalidState(req models.AdviceRequest, action string) error {
	return fmt.Errorf("%w: cannot %s request %s in status %s", ErrInvalidState, action, req.ID, req.Status)
}

// PlanApprove moves a pending request into its routing pool. An empty
// routing means the request's own type; a different type is rejected
// since type is fixed at creation.
func PlanApprove(req models.AdviceRequest, routing models.RequestType) (Transition, error) {
	if routing == "" {
		routing = req.Type
	}
	if !routing.IsValid() {
		return Transition{}, fmt.Errorf("%w: unknown request type %q", ErrValidation, routing)
	}
	if routing != req.Type {
		return Transition{}, fmt.Errorf("%w: request %s is %s and cannot be routed as %s", ErrValidation, req.ID, req.Type, routing)
	}
	if req.Status != models.RequestStatusPending {
		return Transition{}, invalidState(req, "approve")
	}

	t := Transition{
		From:   guard(models.RequestStatusPending),
		Status: models.RequestStatusApproved,
		Patch:  models.RequestPatch{Status: statusPtr(models.RequestStatusApproved)},
	}
	if routing == models.RequestTypeExpert {
		t.Message = "Request approved and moved to expert section"
		t.Effects = []Effect{{Kind: EffectNotifyAvailableExperts, RequestID: req.ID, SubmitterID: req.UserID}}
	} else {
		t.Message = "Request approved and moved to general advice section"
	}
	return t, nil
}

// PlanDeny rejects a pending request and opens it for refund.
func PlanDeny(req models.AdviceRequest, reason, notes string) (Transition, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Transition{}, fmt.Errorf("%w: denial reason is required", ErrValidation)
	}
	if req.Status != models.RequestStatusPending {
		return Transition{}, invalidState(req, "deny")
	}

	notes = strings.TrimSpace(notes)
	return Transition{
		From:   guard(models.RequestStatusPending),
		Status: models.RequestStatusDenied,
		Patch: models.RequestPatch{
			Status:       statusPtr(models.RequestStatusDenied),
			DenialReason: strPtr(reason),
			DenialNotes:  strPtr(notes),
			RefundStatus: refundPtr(models.RefundStatusPending),
		},
		Effects: []Effect{{
			Kind:        EffectNotifySubmitterDenied,
			RequestID:   req.ID,
			SubmitterID: req.UserID,
			Reason:      reason,
			Actions:     DenialActions,
		}},
		Message: "Request denied",
	}, nil
}

// PlanAssign hands an approved expert request to one expert. Assigning an
// already assigned request re-assigns it.
func PlanAssign(req models.AdviceRequest, expert models.Expert, opts AssignOptions, rates CommissionRates) (Transition, error) {
	if req.Type != models.RequestTypeExpert {
		return Transition{}, fmt.Errorf("%w: request %s is not an expert request", ErrInvalidType, req.ID)
	}
	if req.Status != models.RequestStatusApproved && req.Status != models.RequestStatusAssigned {
		return Transition{}, invalidState(req, "assign")
	}
	if !expert.IsAvailable {
		return Transition{}, fmt.Errorf("%w: expert %s is not available", ErrValidation, expert.ID)
	}

	exclusive := true
	if opts.Exclusive != nil {
		exclusive = *opts.Exclusive
	}

	var rate float64
	switch {
	case opts.CommissionRate != nil:
		rate = *opts.CommissionRate
		if math.IsNaN(rate) || rate < 0 || rate > 1 {
			return Transition{}, fmt.Errorf("%w: commission rate must be between 0 and 1", ErrValidation)
		}
	case exclusive:
		rate = rates.Exclusive
	default:
		rate = expert.CommissionRate(rates.Default)
	}

	return Transition{
		From:   guard(models.RequestStatusApproved, models.RequestStatusAssigned),
		Status: models.RequestStatusAssigned,
		Patch: models.RequestPatch{
			Status:           statusPtr(models.RequestStatusAssigned),
			AssignedExpertID: strPtr(expert.ID),
			IsExclusive:      boolPtr(exclusive),
			CommissionRate:   floatPtr(rate),
		},
		Effects: []Effect{{
			Kind:           EffectNotifyAssignedExpert,
			RequestID:      req.ID,
			SubmitterID:    req.UserID,
			ExpertID:       expert.ID,
			CommissionRate: rate,
			Exclusive:      exclusive,
		}},
		Message: "Expert assigned successfully",
	}, nil
}

// PlanStartAnswer marks that an answer is being drafted.
func PlanStartAnswer(req models.AdviceRequest) (Transition, error) {
	if req.Status != models.RequestStatusApproved && req.Status != models.RequestStatusAssigned {
		return Transition{}, invalidState(req, "start answering")
	}
	return Transition{
		From:    guard(models.RequestStatusApproved, models.RequestStatusAssigned),
		Status:  models.RequestStatusInProgress,
		Patch:   models.RequestPatch{Status: statusPtr(models.RequestStatusInProgress)},
		Message: "Request marked as in progress",
	}, nil
}

// PlanRecordResponse decides whether a response may be attached and whether
// it completes the request. expertID is the author's expert id, if any.
func PlanRecordResponse(req models.AdviceRequest, authorType models.AuthorType, expertID string) (Transition, error) {
	switch req.Status {
	case models.RequestStatusApproved, models.RequestStatusAssigned,
		models.RequestStatusInProgress, models.RequestStatusAnswered:
	default:
		return Transition{}, invalidState(req, "respond to")
	}
	if authorType != models.AuthorUser && authorType != models.AuthorExpert {
		return Transition{}, fmt.Errorf("%w: unknown author type %q", ErrValidation, authorType)
	}
	if authorType == models.AuthorExpert && req.IsExclusive && !req.IsAssignedTo(expertID) {
		return Transition{}, fmt.Errorf("%w: request %s is exclusive to another expert", ErrForbidden, req.ID)
	}

	if req.Status != models.RequestStatusInProgress {
		return Transition{Status: req.Status, Message: "Response recorded"}, nil
	}
	return Transition{
		From:   guard(models.RequestStatusInProgress),
		Status: models.RequestStatusAnswered,
		Patch:  models.RequestPatch{Status: statusPtr(models.RequestStatusAnswered)},
		Effects: []Effect{{
			Kind:        EffectNotifySubmitterAnswered,
			RequestID:   req.ID,
			SubmitterID: req.UserID,
			ExpertID:    expertID,
		}},
		Message: "Response recorded and request answered",
	}, nil
}

// PlanRefund settles the refund offered on denial.
func PlanRefund(req models.AdviceRequest) (Transition, error) {
	if req.Status != models.RequestStatusDenied || req.RefundStatus != models.RefundStatusPending {
		return Transition{}, fmt.Errorf("%w: request %s has no pending refund", ErrInvalidState, req.ID)
	}
	return Transition{
		From:   StatusGuard{Statuses: []models.RequestStatus{models.RequestStatusDenied}, Refund: models.RefundStatusPending},
		Status: models.RequestStatusDenied,
		Patch:  models.RequestPatch{RefundStatus: refundPtr(models.RefundStatusProcessed)},
		Effects: []Effect{{
			Kind:        EffectNotifySubmitterRefunded,
			RequestID:   req.ID,
			SubmitterID: req.UserID,
		}},
		Message: "Refund processed successfully",
	}, nil
}

// PlanModerateResponse validates an operator decision on a posted response.
func PlanModerateResponse(resp models.Response, decision models.ResponseStatus) error {
	if decision != models.ResponseStatusApproved && decision != models.ResponseStatusDenied {
		return fmt.Errorf("%w: decision must be approved or denied", ErrValidation)
	}
	if resp.Status != models.ResponseStatusPending {
		return fmt.Errorf("%w: response %s was already %s", ErrInvalidState, resp.ID, resp.Status)
	}
	return nil
}
