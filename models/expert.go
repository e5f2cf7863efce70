package models

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const DefaultExpertRating = 5.0

// Expert is a credentialed advisor who can take expert requests
type Expert struct {
	ID                    string                      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID                string                      `json:"user_id" gorm:"type:varchar(36);uniqueIndex;not null"`
	Name                  string                      `json:"name" gorm:"size:255;not null"`
	Email                 string                      `json:"email" gorm:"size:255"`
	Specialties           datatypes.JSONSlice[string] `json:"specialties"`
	Credentials           string                      `json:"credentials" gorm:"type:text"`
	ProfilePhoto          *string                     `json:"profile_photo" gorm:"type:varchar(500)"`
	Rating                float64                     `json:"rating" gorm:"type:decimal(3,2);not null;index"`
	ResponseRate          float64                     `json:"response_rate" gorm:"not null"`
	TotalResponses        int                         `json:"total_responses" gorm:"not null"`
	SuccessfulResponses   int                         `json:"successful_responses" gorm:"not null"`
	IsAvailable           bool                        `json:"is_available" gorm:"not null;index"`
	DefaultCommissionRate float64                     `json:"default_commission_rate" gorm:"not null"`
	CreatedAt             time.Time                   `json:"created_at"`
	UpdatedAt             time.Time                   `json:"updated_at"`
}

func (Expert) TableName() string {
	return "experts"
}

// BeforeCreate assigns an id and the starting rating
func (e *Expert) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Rating == 0 {
		e.Rating = DefaultExpertRating
	}
	if e.DefaultCommissionRate == 0 {
		e.DefaultCommissionRate = DefaultCommissionRate
	}
	return nil
}

// BeforeSave keeps the derived response rate in step with the counters
func (e *Expert) BeforeSave(tx *gorm.DB) error {
	e.RefreshResponseRate()
	return nil
}

// RefreshResponseRate recomputes successful/total as a percentage
func (e *Expert) RefreshResponseRate() {
	if e.TotalResponses <= 0 {
		e.ResponseRate = 0
		return
	}
	rate := float64(e.SuccessfulResponses) / float64(e.TotalResponses) * 100
	e.ResponseRate = math.Round(rate*100) / 100
}

// CommissionRate returns the rate used for non-exclusive assignments,
// or fallback when the expert has none of their own.
func (e *Expert) CommissionRate(fallback float64) float64 {
	if e.DefaultCommissionRate <= 0 {
		return fallback
	}
	return e.DefaultCommissionRate
}

// ExpertCreate is the admin payload for registering an expert
type ExpertCreate struct {
	UserID                string   `json:"user_id" binding:"required"`
	Name                  string   `json:"name" binding:"required"`
	Email                 string   `json:"email" binding:"omitempty,email"`
	Specialties           []string `json:"specialties"`
	Credentials           string   `json:"credentials"`
	DefaultCommissionRate float64  `json:"default_commission_rate" binding:"gte=0,lte=1"`
	IsAvailable           *bool    `json:"is_available"`
}

// AvailabilityUpdate toggles whether an expert takes new work
type AvailabilityUpdate struct {
	IsAvailable *bool `json:"is_available" binding:"required"`
}
