package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"advice-moderation-server/models"
)

// ExpertDirectory looks up experts eligible for notifications and assignment.
type ExpertDirectory interface {
	ListAvailable(ctx context.Context) ([]models.Expert, error)
	List(ctx context.Context) ([]models.Expert, error)
	Get(ctx context.Context, id string) (models.Expert, error)
	GetByUserID(ctx context.Context, userID string) (models.Expert, error)
	Create(ctx context.Context, expert *models.Expert) error
	SetAvailability(ctx context.Context, id string, available bool) error
	SetProfilePhoto(ctx context.Context, id, url string) error
	RecordResponse(ctx context.Context, id string, successful bool) error
}

type GormExpertDirectory struct {
	db *gorm.DB
}

func NewGormExpertDirectory(db *gorm.DB) *GormExpertDirectory {
	return &GormExpertDirectory{db: db}
}

func (d *GormExpertDirectory) ListAvailable(ctx context.Context) ([]models.Expert, error) {
	var experts []models.Expert
	if err := d.db.WithContext(ctx).
		Where("is_available = ?", true).
		Order("rating desc").
		Find(&experts).Error; err != nil {
		return nil, storeErr(err, "available experts")
	}
	return experts, nil
}

func (d *GormExpertDirectory) List(ctx context.Context) ([]models.Expert, error) {
	var experts []models.Expert
	if err := d.db.WithContext(ctx).Order("name asc").Find(&experts).Error; err != nil {
		return nil, storeErr(err, "experts")
	}
	return experts, nil
}

func (d *GormExpertDirectory) Get(ctx context.Context, id string) (models.Expert, error) {
	var expert models.Expert
	if err := d.db.WithContext(ctx).First(&expert, "id = ?", id).Error; err != nil {
		return models.Expert{}, storeErr(err, "expert "+id)
	}
	return expert, nil
}

func (d *GormExpertDirectory) GetByUserID(ctx context.Context, userID string) (models.Expert, error) {
	var expert models.Expert
	if err := d.db.WithContext(ctx).First(&expert, "user_id = ?", userID).Error; err != nil {
		return models.Expert{}, storeErr(err, "expert for user "+userID)
	}
	return expert, nil
}

func (d *GormExpertDirectory) Create(ctx context.Context, expert *models.Expert) error {
	if err := d.db.WithContext(ctx).Create(expert).Error; err != nil {
		return storeErr(err, "create expert")
	}
	return nil
}

func (d *GormExpertDirectory) SetAvailability(ctx context.Context, id string, available bool) error {
	return d.updateColumn(ctx, id, "is_available", available)
}

func (d *GormExpertDirectory) SetProfilePhoto(ctx context.Context, id, url string) error {
	return d.updateColumn(ctx, id, "profile_photo", url)
}

func (d *GormExpertDirectory) updateColumn(ctx context.Context, id, column string, value interface{}) error {
	result := d.db.WithContext(ctx).
		Model(&models.Expert{}).
		Where("id = ?", id).
		Update(column, value)
	if result.Error != nil {
		return storeErr(result.Error, "update expert "+id)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: expert %s", ErrNotFound, id)
	}
	return nil
}

// RecordResponse bumps the counters and saves, so the BeforeSave hook
// refreshes the response rate.
func (d *GormExpertDirectory) RecordResponse(ctx context.Context, id string, successful bool) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var expert models.Expert
		if err := tx.First(&expert, "id = ?", id).Error; err != nil {
			return storeErr(err, "expert "+id)
		}
		expert.TotalResponses++
		if successful {
			expert.SuccessfulResponses++
		}
		if err := tx.Save(&expert).Error; err != nil {
			return storeErr(err, "save expert "+id)
		}
		return nil
	})
}
