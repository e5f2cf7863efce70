package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuthorType string

const (
	AuthorUser   AuthorType = "user"
	AuthorExpert AuthorType = "expert"
)

type ResponseStatus string

const (
	ResponseStatusPending  ResponseStatus = "pending"
	ResponseStatusApproved ResponseStatus = "approved"
	ResponseStatusDenied   ResponseStatus = "denied"
)

// Response is an answer posted against an advice request
type Response struct {
	ID         string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	RequestID  string         `json:"request_id" gorm:"type:varchar(36);not null;index"`
	Content    string         `json:"content" gorm:"type:text;not null"`
	AuthorID   string         `json:"author_id" gorm:"type:varchar(36);not null;index"`
	AuthorType AuthorType     `json:"author_type" gorm:"type:varchar(20);not null"`
	Status     ResponseStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (Response) TableName() string {
	return "responses"
}

func (r *Response) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = ResponseStatusPending
	}
	return nil
}

// ResponseCreate is the body posted to answer a request
type ResponseCreate struct {
	Content string `json:"content" binding:"required"`
}

// ResponseModeration is the admin decision on a posted response
type ResponseModeration struct {
	Decision ResponseStatus `json:"decision" binding:"required,oneof=approved denied"`
}
