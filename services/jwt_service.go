package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"advice-moderation-server/models"
	"advice-moderation-server/types"
	"advice-moderation-server/utils"
)

// JWTService issues short-lived access tokens and DB-backed refresh tokens.
type JWTService struct {
	db         *gorm.DB
	secret     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewJWTService(db *gorm.DB, secret string, accessTTL, refreshTTL time.Duration) *JWTService {
	return &JWTService{db: db, secret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// TokenPair represents a pair of access and refresh tokens
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

func (js *JWTService) GenerateTokenPair(ctx context.Context, user models.User, userAgent, ipAddress string) (*TokenPair, error) {
	accessToken, err := utils.GenerateToken(user.ID, string(user.Role), js.secret, js.accessTTL)
	if err != nil {
		return nil, err
	}

	refreshToken, err := js.generateRefreshToken(ctx, user.ID, userAgent, ipAddress)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(js.accessTTL.Seconds()),
		TokenType:    "Bearer",
	}, nil
}

func (js *JWTService) generateRefreshToken(ctx context.Context, userID, userAgent, ipAddress string) (string, error) {
	tokenString, err := utils.GenerateSecureToken(32)
	if err != nil {
		return "", err
	}

	refreshToken := &models.RefreshToken{
		Token:     tokenString,
		UserID:    userID,
		ExpiresAt: time.Now().Add(js.refreshTTL),
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}
	if err := js.db.WithContext(ctx).Create(refreshToken).Error; err != nil {
		return "", storeErr(err, "create refresh token")
	}
	return tokenString, nil
}

// ValidateAccessToken returns the claims of a valid access token
func (js *JWTService) ValidateAccessToken(tokenString string) (*types.Claims, error) {
	return utils.VerifyToken(tokenString, js.secret)
}

func (js *JWTService) ValidateRefreshToken(ctx context.Context, tokenString string) (*models.RefreshToken, error) {
	var refreshToken models.RefreshToken
	if err := js.db.WithContext(ctx).Where("token = ?", tokenString).First(&refreshToken).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: refresh token not found", ErrUnauthorized)
		}
		return nil, storeErr(err, "refresh token")
	}
	if !refreshToken.IsValid(time.Now()) {
		return nil, fmt.Errorf("%w: refresh token is invalid or expired", ErrUnauthorized)
	}
	return &refreshToken, nil
}

// RefreshAccessToken mints a new access token, keeping the refresh token
func (js *JWTService) RefreshAccessToken(ctx context.Context, refreshTokenString string) (*TokenPair, error) {
	refreshToken, err := js.ValidateRefreshToken(ctx, refreshTokenString)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := js.db.WithContext(ctx).First(&user, "id = ?", refreshToken.UserID).Error; err != nil {
		return nil, storeErr(err, "user "+refreshToken.UserID)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: account is deactivated", ErrForbidden)
	}

	accessToken, err := utils.GenerateToken(user.ID, string(user.Role), js.secret, js.accessTTL)
	if err != nil {
		return nil, err
	}

	js.db.WithContext(ctx).Model(refreshToken).Update("updated_at", time.Now())

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshTokenString,
		ExpiresIn:    int64(js.accessTTL.Seconds()),
		TokenType:    "Bearer",
	}, nil
}

func (js *JWTService) RevokeRefreshToken(ctx context.Context, tokenString string) error {
	result := js.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("token = ?", tokenString).
		Update("is_revoked", true)
	if result.Error != nil {
		return storeErr(result.Error, "revoke refresh token")
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: refresh token", ErrNotFound)
	}
	return nil
}

func (js *JWTService) RevokeAllUserTokens(ctx context.Context, userID string) error {
	if err := js.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND is_revoked = ?", userID, false).
		Update("is_revoked", true).Error; err != nil {
		return storeErr(err, "revoke tokens")
	}
	log.Printf("✅ All refresh tokens revoked for user %s", userID)
	return nil
}

// CleanupExpiredTokens deletes expired refresh tokens and reports how many went
func (js *JWTService) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	result := js.db.WithContext(ctx).Where("expires_at < ?", time.Now()).Delete(&models.RefreshToken{})
	if result.Error != nil {
		return 0, storeErr(result.Error, "cleanup refresh tokens")
	}
	return result.RowsAffected, nil
}
