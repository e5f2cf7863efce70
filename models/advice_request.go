package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RequestStatus represents where an advice request sits in moderation
type RequestStatus string

const (
	RequestStatusPending    RequestStatus = "pending"
	RequestStatusApproved   RequestStatus = "approved"
	RequestStatusDenied     RequestStatus = "denied"
	RequestStatusAssigned   RequestStatus = "assigned"
	RequestStatusInProgress RequestStatus = "in_progress"
	RequestStatusAnswered   RequestStatus = "answered"
)

// RequestType decides where an approved request is routed
type RequestType string

const (
	RequestTypeRegular RequestType = "regular"
	RequestTypeExpert  RequestType = "expert"
)

// RefundStatus tracks the refund offered after a denial
type RefundStatus string

const (
	RefundStatusNone      RefundStatus = "none"
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusProcessed RefundStatus = "processed"
)

const (
	DefaultCategory         = "uncategorized"
	DefaultCommissionRate   = 0.5
	ExclusiveCommissionRate = 0.75
)

// IsValid reports whether s is a known status
func (s RequestStatus) IsValid() bool {
	switch s {
	case RequestStatusPending, RequestStatusApproved, RequestStatusDenied,
		RequestStatusAssigned, RequestStatusInProgress, RequestStatusAnswered:
		return true
	default:
		return false
	}
}

// IsValid reports whether t is a known request type
func (t RequestType) IsValid() bool {
	return t == RequestTypeRegular || t == RequestTypeExpert
}

// MediaAttachment is an image or video attached by the submitter
type MediaAttachment struct {
	Type         string `json:"type"` // image, video
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// AdviceRequest is a user-submitted question awaiting moderation and an answer
type AdviceRequest struct {
	ID               string                              `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID           string                              `json:"user_id" gorm:"type:varchar(36);not null;index"`
	Question         string                              `json:"question" gorm:"type:text;not null"`
	Content          string                              `json:"content" gorm:"type:text;not null"`
	Status           RequestStatus                       `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	IsUrgent         bool                                `json:"is_urgent" gorm:"not null;index"`
	Category         string                              `json:"category" gorm:"type:varchar(100);not null"`
	Type             RequestType                         `json:"type" gorm:"type:varchar(20);not null;index"`
	AssignedExpertID *string                             `json:"assigned_expert_id" gorm:"type:varchar(36);index"`
	IsExclusive      bool                                `json:"is_exclusive" gorm:"not null"`
	CommissionRate   float64                             `json:"commission_rate" gorm:"not null"`
	DenialReason     string                              `json:"denial_reason,omitempty" gorm:"type:text"`
	DenialNotes      string                              `json:"denial_notes,omitempty" gorm:"type:text"`
	RefundStatus     RefundStatus                        `json:"refund_status" gorm:"type:varchar(20);not null;default:'none'"`
	MediaAttachments datatypes.JSONSlice[MediaAttachment] `json:"media_attachments,omitempty"`
	CreatedAt        time.Time                           `json:"created_at"`
	UpdatedAt        time.Time                           `json:"updated_at"`

	// Relationships
	Responses []Response `json:"responses,omitempty" gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the AdviceRequest model
func (AdviceRequest) TableName() string {
	return "advice_requests"
}

// BeforeCreate fills defaults for fields left empty
func (r *AdviceRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = RequestStatusPending
	}
	if r.RefundStatus == "" {
		r.RefundStatus = RefundStatusNone
	}
	if strings.TrimSpace(r.Category) == "" {
		r.Category = DefaultCategory
	}
	if r.Type == "" {
		r.Type = RequestTypeRegular
	}
	if r.CommissionRate == 0 {
		r.CommissionRate = DefaultCommissionRate
	}
	return nil
}

// IsAssignedTo reports whether expertID holds the assignment
func (r *AdviceRequest) IsAssignedTo(expertID string) bool {
	return r.AssignedExpertID != nil && *r.AssignedExpertID == expertID
}

// AdviceRequestCreate is the body a submitter posts to open a request
type AdviceRequestCreate struct {
	Question         string            `json:"question" binding:"required"`
	Content          string            `json:"content" binding:"required"`
	Category         string            `json:"category"`
	Type             RequestType       `json:"type" binding:"required,oneof=regular expert"`
	IsUrgent         bool              `json:"is_urgent"`
	MediaAttachments []MediaAttachment `json:"media_attachments"`
}

// RequestPatch is a partial update of the mutable moderation fields.
// Nil fields are left untouched.
type RequestPatch struct {
	Status           *RequestStatus
	AssignedExpertID *string
	IsExclusive      *bool
	CommissionRate   *float64
	DenialReason     *string
	DenialNotes      *string
	RefundStatus     *RefundStatus
}

// IsEmpty reports whether the patch changes nothing
func (p RequestPatch) IsEmpty() bool {
	return p.Status == nil && p.AssignedExpertID == nil && p.IsExclusive == nil &&
		p.CommissionRate == nil && p.DenialReason == nil && p.DenialNotes == nil &&
		p.RefundStatus == nil
}

// Columns converts the patch into a gorm update map, stamping updated_at
func (p RequestPatch) Columns(now time.Time) map[string]interface{} {
	cols := map[string]interface{}{"updated_at": now}
	if p.Status != nil {
		cols["status"] = *p.Status
	}
	if p.AssignedExpertID != nil {
		cols["assigned_expert_id"] = *p.AssignedExpertID
	}
	if p.IsExclusive != nil {
		cols["is_exclusive"] = *p.IsExclusive
	}
	if p.CommissionRate != nil {
		cols["commission_rate"] = *p.CommissionRate
	}
	if p.DenialReason != nil {
		cols["denial_reason"] = *p.DenialReason
	}
	if p.DenialNotes != nil {
		cols["denial_notes"] = *p.DenialNotes
	}
	if p.RefundStatus != nil {
		cols["refund_status"] = *p.RefundStatus
	}
	return cols
}

// ApplyTo mirrors the patch onto an in-memory copy of the request
func (p RequestPatch) ApplyTo(r *AdviceRequest, now time.Time) {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.AssignedExpertID != nil {
		id := *p.AssignedExpertID
		r.AssignedExpertID = &id
	}
	if p.IsExclusive != nil {
		r.IsExclusive = *p.IsExclusive
	}
	if p.CommissionRate != nil {
		r.CommissionRate = *p.CommissionRate
	}
	if p.DenialReason != nil {
		r.DenialReason = *p.DenialReason
	}
	if p.DenialNotes != nil {
		r.DenialNotes = *p.DenialNotes
	}
	if p.RefundStatus != nil {
		r.RefundStatus = *p.RefundStatus
	}
	r.UpdatedAt = now
}
