package auth

import (
	"errors"
	"net/http"

	"log/slog"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mo-amir99/lms-progress-server/internal/features/user"
	"github.com/mo-amir99/lms-progress-server/internal/middleware"
	"github.com/mo-amir99/lms-progress-server/internal/utils/jwt"
	"github.com/mo-amir99/lms-progress-server/pkg/response"
)

// Handler processes authentication HTTP requests.
type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
	tokens jwt.Issuer
}

// NewHandler constructs an auth handler instance.
func NewHandler(db *gorm.DB, logger *slog.Logger, tokens jwt.Issuer) *Handler {
	return &Handler{db: db, logger: logger, tokens: tokens}
}

// Register creates a new student account.
func (h *Handler) Register(c *gin.Context) {
	var req struct {
		FullName string `json:"fullName" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid registration payload", err)
		return
	}

	authResp, err := Register(h.db.WithContext(c.Request.Context()), h.tokens, RegisterInput{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respondError(c, err, "registration failed")
		return
	}

	response.Created(c, authResp, "Registration successful")
}

// Login authenticates a user and returns JWT tokens.
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid login payload", err)
		return
	}

	authResp, err := Login(h.db.WithContext(c.Request.Context()), h.tokens, LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respondError(c, err, "login failed")
		return
	}

	response.Success(c, http.StatusOK, authResp, "Login successful", nil)
}

// RefreshToken rotates the token pair.
func (h *Handler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid refresh token payload", err)
		return
	}

	pair, err := Refresh(h.db.WithContext(c.Request.Context()), h.tokens, req.RefreshToken)
	if err != nil {
		h.respondError(c, err, "token refresh failed")
		return
	}

	response.Success(c, http.StatusOK, pair, "", nil)
}

// Logout revokes the caller's refresh token.
func (h *Handler) Logout(c *gin.Context) {
	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	if err := Logout(h.db.WithContext(c.Request.Context()), usr.ID); err != nil {
		h.respondError(c, err, "logout failed")
		return
	}

	response.Success(c, http.StatusOK, true, "Logout successful", nil)
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	message := fallback

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		status = http.StatusUnauthorized
		message = "Invalid email or password"
	case errors.Is(err, ErrMissingFields):
		status = http.StatusBadRequest
		message = "Missing required fields"
	case errors.Is(err, ErrInvalidEmail):
		status = http.StatusBadRequest
		message = "Invalid email format"
	case errors.Is(err, ErrWeakPassword), errors.Is(err, user.ErrInvalidPassword):
		status = http.StatusBadRequest
		message = "Password must be at least 8 characters long"
	case errors.Is(err, ErrInactiveAccount):
		status = http.StatusForbidden
		message = "Your account is inactive. Please contact support"
	case errors.Is(err, ErrInvalidToken):
		status = http.StatusUnauthorized
		message = "Invalid or expired token"
	case errors.Is(err, user.ErrEmailTaken):
		status = http.StatusConflict
		message = "Email already exists"
	}

	response.ErrorWithLog(h.logger, c, status, message, err)
}
