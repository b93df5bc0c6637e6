package exam

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/lms-progress-server/internal/access"
	"github.com/mo-amir99/lms-progress-server/internal/features/course"
	"github.com/mo-amir99/lms-progress-server/internal/middleware"
	"github.com/mo-amir99/lms-progress-server/internal/services/progress"
	"github.com/mo-amir99/lms-progress-server/pkg/request"
	"github.com/mo-amir99/lms-progress-server/pkg/response"
	"github.com/mo-amir99/lms-progress-server/pkg/types"
)

// Eligibility decides whether a learner may sit the exam.
type Eligibility interface {
	CheckExamEligibility(ctx context.Context, userID, courseID uuid.UUID) (access.Enrollment, error)
}

// Handler processes exam attempt requests.
type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
	gate   Eligibility
	now    func() time.Time
}

// NewHandler constructs an exam handler instance.
func NewHandler(db *gorm.DB, logger *slog.Logger, gate Eligibility) *Handler {
	return &Handler{db: db, logger: logger, gate: gate, now: time.Now}
}

// Start opens an exam attempt once every lesson is complete.
func (h *Handler) Start(c *gin.Context) {
	usr, courseID, ok := h.learnerAndCourse(c)
	if !ok {
		return
	}

	if _, err := h.gate.CheckExamEligibility(c.Request.Context(), usr.ID, courseID); err != nil {
		response.AppError(h.logger, c, progress.AsAppError(err))
		return
	}

	db := h.db.WithContext(c.Request.Context())
	crs, err := course.Get(db, courseID)
	if err != nil {
		h.respondError(c, err, "failed to load course")
		return
	}

	attempt, created, err := Start(db, crs, usr.ID, h.now())
	if err != nil {
		h.respondError(c, err, "failed to start exam")
		return
	}

	if created {
		response.Created(c, attempt, "Exam started")
		return
	}
	response.Success(c, http.StatusOK, attempt, "Exam already in progress", nil)
}

type gradeRequest struct {
	Score *int `json:"score" binding:"required"`
}

// Grade records the score of an open attempt. Only the course's instructor or
// an admin may grade.
func (h *Handler) Grade(c *gin.Context) {
	usr, courseID, ok := h.learnerAndCourse(c)
	if !ok {
		return
	}
	attemptID, err := request.ParamUUID(c, "attemptId")
	if err != nil {
		_ = c.Error(err)
		return
	}

	var req gradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "score is required", err)
		return
	}

	db := h.db.WithContext(c.Request.Context())
	crs, err := course.Get(db, courseID)
	if err != nil {
		h.respondError(c, err, "failed to load course")
		return
	}
	if usr.UserType != types.UserTypeAdmin && (crs.InstructorID == nil || *crs.InstructorID != usr.ID) {
		response.Error(c, http.StatusForbidden, "You can only grade exams for your own courses", nil)
		return
	}

	attempt, err := Grade(db, courseID, attemptID, *req.Score, h.now())
	if err != nil {
		h.respondError(c, err, "failed to grade exam")
		return
	}

	message := "Exam not passed"
	if attempt.Passed {
		message = "Exam passed"
	}
	response.Success(c, http.StatusOK, attempt, message, nil)
}

// List returns the learner's attempts for a course.
func (h *Handler) List(c *gin.Context) {
	usr, courseID, ok := h.learnerAndCourse(c)
	if !ok {
		return
	}

	attempts, err := List(h.db.WithContext(c.Request.Context()), usr.ID, courseID)
	if err != nil {
		h.respondError(c, err, "failed to list exam attempts")
		return
	}

	response.Success(c, http.StatusOK, attempts, "", nil)
}

func (h *Handler) learnerAndCourse(c *gin.Context) (*middleware.User, uuid.UUID, bool) {
	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required", nil)
		return nil, uuid.Nil, false
	}
	courseID, err := request.ParamUUID(c, "courseId")
	if err != nil {
		_ = c.Error(err)
		return nil, uuid.Nil, false
	}
	return usr, courseID, true
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	message := fallback

	switch {
	case errors.Is(err, course.ErrCourseNotFound):
		status = http.StatusNotFound
		message = "Course not found"
	case errors.Is(err, ErrAttemptNotFound):
		status = http.StatusNotFound
		message = "Exam attempt not found"
	case errors.Is(err, ErrAttemptsExhausted):
		status = http.StatusForbidden
		message = "No exam attempts left for this course"
	case errors.Is(err, ErrAlreadySubmitted):
		status = http.StatusConflict
		message = "This attempt was already submitted"
	case errors.Is(err, ErrInvalidScore):
		status = http.StatusBadRequest
		message = "Score must be between 0 and 100"
	}

	response.ErrorWithLog(h.logger, c, status, message, err)
}
