package course

import (
	"context"
	"errors"
	"net/http"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/lms-progress-server/internal/access"
	"github.com/mo-amir99/lms-progress-server/internal/middleware"
	"github.com/mo-amir99/lms-progress-server/pkg/pagination"
	"github.com/mo-amir99/lms-progress-server/pkg/request"
	"github.com/mo-amir99/lms-progress-server/pkg/response"
	"github.com/mo-amir99/lms-progress-server/pkg/types"
)

// Handler processes course and module HTTP requests.
type Handler struct {
	db      *gorm.DB
	logger  *slog.Logger
	catalog *Catalog
}

// NewHandler constructs a course handler instance.
func NewHandler(db *gorm.DB, logger *slog.Logger, catalog *Catalog) *Handler {
	return &Handler{db: db, logger: logger, catalog: catalog}
}

// List returns courses. Learners only see active ones.
func (h *Handler) List(c *gin.Context) {
	params := pagination.Extract(c)
	filters := ListFilters{Keyword: c.Query("filterKeyword"), ActiveOnly: true}

	if usr, ok := middleware.GetUserFromContext(c); ok && usr.UserType.IsStaff() {
		filters.ActiveOnly = c.Query("activeOnly") == "true"
		if c.Query("mine") == "true" {
			filters.InstructorID = &usr.ID
		}
	}

	courses, total, err := List(h.db.WithContext(c.Request.Context()), filters, params)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to list courses", err)
		return
	}

	response.SuccessWithCache(c, courses, "", pagination.MetadataFrom(total, params), 30)
}

type createRequest struct {
	Title            string       `json:"title" binding:"required"`
	Description      *string      `json:"description"`
	DripFeed         string       `json:"dripFeed"`
	Price            *types.Money `json:"price"`
	Active           *bool        `json:"isActive"`
	ExamPassingScore *int         `json:"examPassingScore"`
	ExamMaxAttempts  *int         `json:"examMaxAttempts"`
}

// Create inserts a course owned by the requesting instructor.
func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course payload", err)
		return
	}

	input := CreateInput{
		Title:            req.Title,
		Description:      req.Description,
		DripFeed:         req.DripFeed,
		Price:            req.Price,
		Active:           req.Active,
		ExamPassingScore: req.ExamPassingScore,
		ExamMaxAttempts:  req.ExamMaxAttempts,
	}
	if usr, ok := middleware.GetUserFromContext(c); ok {
		input.InstructorID = &usr.ID
	}

	course, err := Create(h.db.WithContext(c.Request.Context()), input)
	if err != nil {
		h.respondError(c, err, "failed to create course")
		return
	}

	response.Created(c, course, "")
}

// GetByID returns a course with its curriculum.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := request.ParamUUID(c, "courseId")
	if err != nil {
		_ = c.Error(err)
		return
	}

	course, err := GetWithCurriculum(h.db.WithContext(c.Request.Context()), id)
	if err != nil {
		h.respondError(c, err, "failed to load course")
		return
	}

	usr, _ := middleware.GetUserFromContext(c)
	if !course.Active && (usr == nil || !usr.UserType.IsStaff()) {
		h.respondError(c, ErrCourseNotFound, "failed to load course")
		return
	}

	if usr == nil || !usr.UserType.IsStaff() {
		stripContent(&course)
	}

	response.Success(c, http.StatusOK, course, "", nil)
}

type updateRequest struct {
	Title            *string      `json:"title"`
	Description      *string      `json:"description"`
	DripFeed         *string      `json:"dripFeed"`
	Price            *types.Money `json:"price"`
	Active           *bool        `json:"isActive"`
	ExamPassingScore *int         `json:"examPassingScore"`
	ExamMaxAttempts  *int         `json:"examMaxAttempts"`
}

// Update edits course settings, including the drip policy.
func (h *Handler) Update(c *gin.Context) {
	id, err := request.ParamUUID(c, "courseId")
	if err != nil {
		_ = c.Error(err)
		return
	}

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course payload", err)
		return
	}

	course, err := Update(h.db.WithContext(c.Request.Context()), id, UpdateInput{
		Title:            req.Title,
		Description:      req.Description,
		DripFeed:         req.DripFeed,
		Price:            req.Price,
		Active:           req.Active,
		ExamPassingScore: req.ExamPassingScore,
		ExamMaxAttempts:  req.ExamMaxAttempts,
	})
	if err != nil {
		h.respondError(c, err, "failed to update course")
		return
	}

	h.invalidate(c.Request.Context(), id)
	response.Success(c, http.StatusOK, course, "", nil)
}

// Delete removes a course with its curriculum and enrollments.
func (h *Handler) Delete(c *gin.Context) {
	id, err := request.ParamUUID(c, "courseId")
	if err != nil {
		_ = c.Error(err)
		return
	}

	if err := Delete(h.db.WithContext(c.Request.Context()), id); err != nil {
		h.respondError(c, err, "failed to delete course")
		return
	}

	h.invalidate(c.Request.Context(), id)
	response.Success(c, http.StatusOK, true, "Course deleted", nil)
}

type moduleRequest struct {
	Title *string `json:"title"`
	Order *int    `json:"order"`
}

// CreateModule appends a module to the course.
func (h *Handler) CreateModule(c *gin.Context) {
	courseID, err := request.ParamUUID(c, "courseId")
	if err != nil {
		_ = c.Error(err)
		return
	}

	var req moduleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Title == nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid module payload", err)
		return
	}

	module, err := CreateModule(h.db.WithContext(c.Request.Context()), courseID, *req.Title, req.Order)
	if err != nil {
		h.respondError(c, err, "failed to create module")
		return
	}

	h.invalidate(c.Request.Context(), courseID)
	response.Created(c, module, "")
}

// UpdateModule renames or reorders a module.
func (h *Handler) UpdateModule(c *gin.Context) {
	courseID, moduleID, ok := moduleIDs(c)
	if !ok {
		return
	}

	var req moduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid module payload", err)
		return
	}

	module, err := UpdateModule(h.db.WithContext(c.Request.Context()), courseID, moduleID, req.Title, req.Order)
	if err != nil {
		h.respondError(c, err, "failed to update module")
		return
	}

	h.invalidate(c.Request.Context(), courseID)
	response.Success(c, http.StatusOK, module, "", nil)
}

// DeleteModule removes a module and its lessons.
func (h *Handler) DeleteModule(c *gin.Context) {
	courseID, moduleID, ok := moduleIDs(c)
	if !ok {
		return
	}

	if err := DeleteModule(h.db.WithContext(c.Request.Context()), courseID, moduleID); err != nil {
		h.respondError(c, err, "failed to delete module")
		return
	}

	h.invalidate(c.Request.Context(), courseID)
	response.Success(c, http.StatusOK, true, "Module deleted", nil)
}

func moduleIDs(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	courseID, err := request.ParamUUID(c, "courseId")
	if err != nil {
		_ = c.Error(err)
		return uuid.Nil, uuid.Nil, false
	}
	moduleID, err := request.ParamUUID(c, "moduleId")
	if err != nil {
		_ = c.Error(err)
		return uuid.Nil, uuid.Nil, false
	}
	return courseID, moduleID, true
}

func (h *Handler) invalidate(ctx context.Context, courseID uuid.UUID) {
	if err := h.catalog.Invalidate(ctx, courseID); err != nil {
		h.logger.Warn("failed to invalidate course snapshot",
			slog.String("courseId", courseID.String()),
			slog.String("error", err.Error()))
	}
}

// stripContent hides lesson bodies from the outline; learners open lessons
// through the gated view endpoint.
func stripContent(course *Course) {
	for i := range course.Modules {
		for j := range course.Modules[i].Lessons {
			course.Modules[i].Lessons[j].Content = ""
			course.Modules[i].Lessons[j].YoutubeLinks = nil
		}
	}
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	message := fallback

	switch {
	case errors.Is(err, ErrCourseNotFound):
		status = http.StatusNotFound
		message = "Course not found"
	case errors.Is(err, ErrModuleNotFound):
		status = http.StatusNotFound
		message = "Module not found"
	case errors.Is(err, ErrTitleRequired):
		status = http.StatusBadRequest
		message = "Title is required"
	case errors.Is(err, ErrNegativePrice):
		status = http.StatusBadRequest
		message = "Price cannot be negative"
	case errors.Is(err, ErrInvalidExamRules):
		status = http.StatusBadRequest
		message = "Exam passing score must be 0-100 and attempts cannot be negative"
	case errors.Is(err, access.ErrInvalidPolicy):
		status = http.StatusBadRequest
		message = "dripFeed must be one of off, daily, weekly"
	}

	response.ErrorWithLog(h.logger, c, status, message, err)
}
