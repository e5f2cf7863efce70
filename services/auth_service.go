package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"

	"advice-moderation-server/models"
	"advice-moderation-server/utils"
)

// AuthService owns user accounts: sign-up, password login and lookup.
type AuthService struct {
	db *gorm.DB
}

func NewAuthService(db *gorm.DB) *AuthService {
	return &AuthService{db: db}
}

type RegisterInput struct {
	FullName string `json:"full_name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// Register creates a submitter account. Staff roles are granted by seeding
// or by an admin, never through sign-up.
func (a *AuthService) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	email := utils.NormalizeEmail(in.Email)
	if email == "" {
		return models.User{}, fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	if ok, problems := utils.ValidatePasswordStrength(in.Password); !ok {
		return models.User{}, fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}

	var count int64
	if err := a.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return models.User{}, storeErr(err, "users")
	}
	if count > 0 {
		return models.User{}, fmt.Errorf("%w: an account with this email already exists", ErrValidation)
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		FullName:     utils.SanitizeInput(in.FullName),
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleUser,
		IsActive:     true,
	}
	if err := a.db.WithContext(ctx).Create(&user).Error; err != nil {
		return models.User{}, storeErr(err, "create user")
	}
	log.Printf("✅ User created successfully: %s", user.ID)
	return user, nil
}

// Login checks credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (a *AuthService) Login(ctx context.Context, email, password string) (models.User, error) {
	var user models.User
	err := a.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
		}
		return models.User{}, storeErr(err, "user")
	}
	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		return models.User{}, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}
	if !user.IsActive {
		return models.User{}, fmt.Errorf("%w: account is deactivated", ErrForbidden)
	}
	return user, nil
}

func (a *AuthService) GetUser(ctx context.Context, id string) (models.User, error) {
	var user models.User
	if err := a.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return models.User{}, storeErr(err, "user "+id)
	}
	return user, nil
}
