package middleware

import (
	"errors"
	"net/http"
	"strings"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/lms-progress-server/internal/utils/jwt"
	"github.com/mo-amir99/lms-progress-server/pkg/response"
	"github.com/mo-amir99/lms-progress-server/pkg/types"
)

// User represents the authenticated user in middleware context
type User struct {
	ID       uuid.UUID      `gorm:"column:id;primaryKey"`
	Email    string         `gorm:"column:email"`
	FullName string         `gorm:"column:full_name"`
	UserType types.UserType `gorm:"column:user_type"`
	Active   bool           `gorm:"column:is_active"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// Global instance to be initialized once at startup
var global *AuthMiddleware

// AuthMiddleware holds dependencies for authentication middleware
type AuthMiddleware struct {
	db     *gorm.DB
	tokens jwt.Issuer
	logger *slog.Logger
}

// Initialize sets up the global middleware instance (call once at startup)
func Initialize(db *gorm.DB, tokens jwt.Issuer, logger *slog.Logger) {
	global = NewAuthMiddleware(db, tokens, logger)
}

// NewAuthMiddleware creates a new auth middleware instance.
func NewAuthMiddleware(db *gorm.DB, tokens jwt.Issuer, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		db:     db,
		tokens: tokens,
		logger: logger,
	}
}

// AuthenticateToken validates JWT tokens and loads user data into context.
func (m *AuthMiddleware) AuthenticateToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := m.ensureAuthenticated(c); !ok {
			return
		}
		c.Next()
	}
}

// AuthorizeRoles checks if user has one of the allowed roles. Admins always have access.
func (m *AuthMiddleware) AuthorizeRoles(roles ...types.UserType) gin.HandlerFunc {
	return func(c *gin.Context) {
		usr, ok := GetUserFromContext(c)
		if !ok {
			response.ErrorWithLog(m.logger, c, http.StatusUnauthorized, "User not authenticated", nil)
			c.Abort()
			return
		}

		if usr.UserType == types.UserTypeAdmin {
			c.Next()
			return
		}

		for _, role := range roles {
			if role == types.UserTypeAll || usr.UserType == role {
				c.Next()
				return
			}
		}

		response.ErrorWithLog(m.logger, c, http.StatusForbidden, "Access denied: Insufficient permissions.", nil)
		c.Abort()
	}
}

// RequireRoles authenticates and then checks the role.
func (m *AuthMiddleware) RequireRoles(roles ...types.UserType) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.AuthenticateToken(),
		m.AuthorizeRoles(roles...),
	}
}

// RequireRoles is the global version used by route files.
func RequireRoles(roles ...types.UserType) []gin.HandlerFunc {
	if global == nil {
		panic("middleware not initialized - call middleware.Initialize() first")
	}
	return global.RequireRoles(roles...)
}

// AuthenticateToken is the global version for simple authentication
func AuthenticateToken() gin.HandlerFunc {
	if global == nil {
		panic("middleware not initialized - call middleware.Initialize() first")
	}
	return global.AuthenticateToken()
}

// GetUserFromContext retrieves the authenticated user from the Gin context.
func GetUserFromContext(c *gin.Context) (*User, bool) {
	userVal, exists := c.Get("user")
	if !exists {
		return nil, false
	}

	if usr, ok := userVal.(*User); ok && usr != nil {
		return usr, true
	}

	if usr, ok := userVal.(User); ok {
		return &usr, true
	}

	return nil, false
}

// SetUser stores an authenticated user on the context.
func SetUser(c *gin.Context, usr *User) {
	c.Set("user", usr)
	c.Set("userId", usr.ID)
}

func (m *AuthMiddleware) ensureAuthenticated(c *gin.Context) (*User, bool) {
	if usr, ok := GetUserFromContext(c); ok {
		return usr, true
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		response.ErrorWithLog(m.logger, c, http.StatusUnauthorized, "No token provided", nil)
		c.Abort()
		return nil, false
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		response.ErrorWithLog(m.logger, c, http.StatusUnauthorized, "No token provided", nil)
		c.Abort()
		return nil, false
	}

	claims, err := m.tokens.VerifyAccess(token)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrExpiredToken):
			response.ErrorWithLog(m.logger, c, http.StatusUnauthorized, "Token expired", err)
		default:
			response.ErrorWithLog(m.logger, c, http.StatusUnauthorized, "Invalid token", err)
		}
		c.Abort()
		return nil, false
	}

	var usr User
	if err := m.db.WithContext(c.Request.Context()).First(&usr, "id = ?", claims.UserID).Error; err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			response.ErrorWithLog(m.logger, c, http.StatusUnauthorized, "User not found", err)
		default:
			response.ErrorWithLog(m.logger, c, http.StatusInternalServerError, "Internal Server Error", err)
		}
		c.Abort()
		return nil, false
	}

	if !usr.Active {
		response.ErrorWithLog(m.logger, c, http.StatusForbidden, "Account is disabled", nil)
		c.Abort()
		return nil, false
	}

	SetUser(c, &usr)
	return &usr, true
}
