package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type NotificationKind string

const (
	KindExpertRequestAvailable NotificationKind = "expert_request_available"
	KindRequestDenied          NotificationKind = "request_denied"
	KindExpertAssigned         NotificationKind = "expert_assigned"
	KindRequestAnswered        NotificationKind = "request_answered"
	KindRefundProcessed        NotificationKind = "refund_processed"
	KindResponseModerated      NotificationKind = "response_moderated"
)

// NotificationAction is a follow-up the recipient can take from the notification
type NotificationAction struct {
	Title  string `json:"title"`
	Action string `json:"action"`
}

type Notification struct {
	ID        string                                 `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string                                 `json:"user_id" gorm:"type:varchar(36);not null;index"`
	Title     string                                 `json:"title" gorm:"not null"`
	Body      string                                 `json:"body" gorm:"not null"`
	Kind      NotificationKind                       `json:"kind" gorm:"type:varchar(40);not null"`
	RequestID string                                 `json:"request_id,omitempty" gorm:"type:varchar(36);index"`
	Actions   datatypes.JSONSlice[NotificationAction] `json:"actions,omitempty"`
	Read      bool                                   `json:"read"`
	CreatedAt time.Time                              `json:"created_at"`
	UpdatedAt time.Time                              `json:"updated_at"`
	DeletedAt gorm.DeletedAt                         `json:"-" gorm:"index"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

type PushToken struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	UserID    string         `json:"user_id" gorm:"type:varchar(36);not null;index"`
	Token     string         `json:"token" gorm:"not null;unique"`
	Platform  string         `json:"platform" gorm:"not null"` // ios, android
	DeviceID  string         `json:"device_id"`
	Active    bool           `json:"active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
