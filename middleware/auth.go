package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"advice-moderation-server/models"
	"advice-moderation-server/types"
)

// Context keys set by the auth middleware
const (
	ContextUser     = "user"
	ContextUserID   = "user_id"
	ContextUserRole = "user_role"
)

// TokenValidator parses an access token.
type TokenValidator interface {
	ValidateAccessToken(token string) (*types.Claims, error)
}

// UserLoader resolves the account behind a token.
type UserLoader interface {
	GetUser(ctx context.Context, id string) (models.User, error)
}

// Authenticator turns bearer tokens into an authenticated user on the context.
type Authenticator struct {
	tokens TokenValidator
	users  UserLoader
}

func NewAuthenticator(tokens TokenValidator, users UserLoader) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// AuthMiddleware validates the Authorization header and sets user context
func (a *Authenticator) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"code":    "unauthorized",
				"error":   "Authorization header required",
				"message": "Please provide a valid token",
			})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"code":    "unauthorized",
				"error":   "Invalid token format",
				"message": "Token must be in format: Bearer <token>",
			})
			return
		}

		a.authenticate(c, tokenString)
	}
}

// WebSocketAuthMiddleware validates a JWT passed as the token query parameter
func (a *Authenticator) WebSocketAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.Query("token")
		if tokenString == "" {
			log.Printf("🔌 WebSocketAuthMiddleware: No token in query parameters")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"code":    "unauthorized",
				"error":   "Token required",
				"message": "Please provide a valid token in query parameters",
			})
			return
		}
		a.authenticate(c, tokenString)
	}
}

func (a *Authenticator) authenticate(c *gin.Context, tokenString string) {
	claims, err := a.tokens.ValidateAccessToken(tokenString)
	if err != nil {
		log.Printf("🔍 Auth: token rejected for %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"code":    "unauthorized",
			"error":   "Invalid token",
			"message": "Token is invalid or expired",
		})
		return
	}

	user, err := a.users.GetUser(c.Request.Context(), claims.UserID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"code":    "unauthorized",
			"error":   "User not found",
			"message": "User associated with token not found",
		})
		return
	}

	if !user.IsActive {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"code":    "unauthorized",
			"error":   "User inactive",
			"message": "User account is deactivated",
		})
		return
	}

	c.Set(ContextUser, user)
	c.Set(ContextUserID, user.ID)
	c.Set(ContextUserRole, user.Role)
	c.Next()
}

// RequireRoles rejects users whose role is not listed. Must run after AuthMiddleware.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		role, ok := c.Get(ContextUserRole)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"code":    "unauthorized",
				"error":   "Unauthorized",
				"message": "Authentication required",
			})
			return
		}
		if r, _ := role.(models.UserRole); !allowed[r] {
			log.Printf("🚫 Role %v denied on %s %s", role, c.Request.Method, c.FullPath())
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"code":    "forbidden",
				"error":   "Forbidden",
				"message": "You do not have permission to perform this action",
			})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user set by AuthMiddleware
func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(ContextUser)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}
