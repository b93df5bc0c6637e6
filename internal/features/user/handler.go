package user

import (
	"errors"
	"net/http"

	"log/slog"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mo-amir99/lms-progress-server/internal/middleware"
	"github.com/mo-amir99/lms-progress-server/pkg/pagination"
	"github.com/mo-amir99/lms-progress-server/pkg/request"
	"github.com/mo-amir99/lms-progress-server/pkg/response"
	"github.com/mo-amir99/lms-progress-server/pkg/types"
)

// Handler processes user HTTP requests.
type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewHandler constructs a user handler instance.
func NewHandler(db *gorm.DB, logger *slog.Logger) *Handler {
	return &Handler{db: db, logger: logger}
}

// Me returns the authenticated user's profile.
func (h *Handler) Me(c *gin.Context) {
	requester, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	user, err := Get(h.db.WithContext(c.Request.Context()), requester.ID)
	if err != nil {
		h.respondError(c, err, "failed to load profile")
		return
	}

	response.Success(c, http.StatusOK, user, "", nil)
}

type updateMeRequest struct {
	FullName *string `json:"fullName"`
	Password *string `json:"password"`
}

// UpdateMe lets a user change their own name or password.
func (h *Handler) UpdateMe(c *gin.Context) {
	requester, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	var req updateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid user payload", err)
		return
	}

	user, err := Update(h.db.WithContext(c.Request.Context()), requester.ID, UpdateInput{
		FullName: req.FullName,
		Password: req.Password,
	})
	if err != nil {
		h.respondError(c, err, "failed to update profile")
		return
	}

	response.Success(c, http.StatusOK, user, "Profile updated", nil)
}

// List returns paginated users for administrators.
func (h *Handler) List(c *gin.Context) {
	params := pagination.Extract(c)
	filters := ListFilters{
		Keyword:  c.Query("filterKeyword"),
		UserType: types.UserType(c.Query("userType")),
	}

	users, total, err := List(h.db.WithContext(c.Request.Context()), filters, params)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to list users", err)
		return
	}

	response.Success(c, http.StatusOK, users, "", pagination.MetadataFrom(total, params))
}

type createRequest struct {
	FullName string `json:"fullName" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	UserType string `json:"userType" binding:"required"`
}

// Create lets an administrator add staff or learners.
func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid user payload", err)
		return
	}

	user, err := Create(h.db.WithContext(c.Request.Context()), CreateInput{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
		UserType: types.UserType(req.UserType),
	})
	if err != nil {
		h.respondError(c, err, "failed to create user")
		return
	}

	response.Created(c, user, "")
}

type updateRequest struct {
	FullName *string `json:"fullName"`
	UserType *string `json:"userType"`
	Active   *bool   `json:"isActive"`
}

// Update changes a user's role or active flag.
func (h *Handler) Update(c *gin.Context) {
	id, err := request.ParamUUID(c, "userId")
	if err != nil {
		_ = c.Error(err)
		return
	}

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid user payload", err)
		return
	}

	input := UpdateInput{FullName: req.FullName, Active: req.Active}
	if req.UserType != nil {
		userType := types.UserType(*req.UserType)
		input.UserType = &userType
	}

	user, err := Update(h.db.WithContext(c.Request.Context()), id, input)
	if err != nil {
		h.respondError(c, err, "failed to update user")
		return
	}

	response.Success(c, http.StatusOK, user, "", nil)
}

// Delete removes a user and, through foreign keys, their enrollments.
func (h *Handler) Delete(c *gin.Context) {
	id, err := request.ParamUUID(c, "userId")
	if err != nil {
		_ = c.Error(err)
		return
	}

	if err := Delete(h.db.WithContext(c.Request.Context()), id); err != nil {
		h.respondError(c, err, "failed to delete user")
		return
	}

	response.Success(c, http.StatusOK, true, "User deleted", nil)
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	message := fallback

	switch {
	case errors.Is(err, ErrUserNotFound):
		status = http.StatusNotFound
		message = "User not found"
	case errors.Is(err, ErrEmailTaken):
		status = http.StatusConflict
		message = "Email already exists"
	case errors.Is(err, ErrInvalidPassword):
		status = http.StatusBadRequest
		message = "Password must be at least 8 characters"
	case errors.Is(err, ErrInvalidUserType):
		status = http.StatusBadRequest
		message = "Invalid user type"
	}

	response.ErrorWithLog(h.logger, c, status, message, err)
}
