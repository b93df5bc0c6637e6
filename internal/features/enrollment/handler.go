package enrollment

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/lms-progress-server/internal/access"
	"github.com/mo-amir99/lms-progress-server/internal/features/course"
	"github.com/mo-amir99/lms-progress-server/internal/features/lesson"
	"github.com/mo-amir99/lms-progress-server/internal/middleware"
	"github.com/mo-amir99/lms-progress-server/internal/services/progress"
	"github.com/mo-amir99/lms-progress-server/pkg/request"
	"github.com/mo-amir99/lms-progress-server/pkg/response"
	"github.com/mo-amir99/lms-progress-server/pkg/types"
)

// Handler processes learner progress requests.
type Handler struct {
	db      *gorm.DB
	logger  *slog.Logger
	store   *Store
	service *progress.Service
}

// NewHandler constructs an enrollment handler instance.
func NewHandler(db *gorm.DB, logger *slog.Logger, store *Store, service *progress.Service) *Handler {
	return &Handler{db: db, logger: logger, store: store, service: service}
}

type enrollRequest struct {
	PaymentMethod    string       `json:"paymentMethod"`
	AmountPaid       *types.Money `json:"amountPaid"`
	PaymentReference string       `json:"paymentReference"`
}

// Enroll registers the requesting learner in a course. Paid courses need a
// payment record covering the price; the gateway itself is external.
func (h *Handler) Enroll(c *gin.Context) {
	usr, courseID, ok := h.learnerAndCourse(c)
	if !ok {
		return
	}

	var req enrollRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid enrollment payload", err)
			return
		}
	}

	crs, err := course.Get(h.db.WithContext(c.Request.Context()), courseID)
	if err != nil {
		h.respondError(c, err, "failed to load course")
		return
	}
	if !crs.Active {
		h.respondError(c, ErrCourseUnavailable, "failed to enroll")
		return
	}

	enrollReq, err := paymentFor(crs, req)
	if err != nil {
		h.respondError(c, err, "failed to enroll")
		return
	}
	enrollReq.UserID = usr.ID
	enrollReq.CourseID = courseID

	if _, err := h.service.Enroll(c.Request.Context(), enrollReq); err != nil {
		h.respondError(c, err, "failed to enroll")
		return
	}

	record, err := h.store.Get(c.Request.Context(), usr.ID, courseID)
	if err != nil {
		h.respondError(c, err, "failed to load enrollment")
		return
	}

	response.Created(c, record, "Enrolled successfully")
}

// paymentFor validates the payment record against the course price.
func paymentFor(crs course.Course, req enrollRequest) (progress.EnrollRequest, error) {
	if crs.IsFree() {
		return progress.EnrollRequest{PaymentMethod: types.PaymentMethodFree, AmountPaid: types.NewMoney(0)}, nil
	}

	method, ok := types.ParsePaymentMethod(req.PaymentMethod)
	if !ok || method == types.PaymentMethodFree {
		return progress.EnrollRequest{}, ErrInvalidPaymentMethod
	}
	if req.AmountPaid == nil || req.AmountPaid.LessThan(crs.Price) {
		return progress.EnrollRequest{}, ErrPaymentRequired
	}

	return progress.EnrollRequest{
		PaymentMethod:    method,
		AmountPaid:       *req.AmountPaid,
		PaymentReference: req.PaymentReference,
	}, nil
}

type progressResponse struct {
	UserID           uuid.UUID             `json:"userId"`
	CourseID         uuid.UUID             `json:"courseId"`
	EnrolledAt       time.Time             `json:"enrollmentDate"`
	PaymentMethod    string                `json:"paymentMethod"`
	Progress         int                   `json:"progress"`
	Completed        bool                  `json:"completed"`
	CompletedLessons []uuid.UUID           `json:"completedLessons"`
	Unlocked         int                   `json:"unlocked"`
	Total            int                   `json:"total"`
	ExamUnlocked     bool                  `json:"examUnlocked"`
	Lessons          []access.LessonStatus `json:"lessons"`
}

// Progress returns the learner's standing against the current curriculum:
// derived progress, unlocked count and the state of every lesson.
func (h *Handler) Progress(c *gin.Context) {
	usr, courseID, ok := h.learnerAndCourse(c)
	if !ok {
		return
	}

	status, err := h.service.Status(c.Request.Context(), usr.ID, courseID)
	if err != nil {
		response.AppError(h.logger, c, progress.AsAppError(err))
		return
	}

	e, eval := status.Enrollment, status.Evaluation
	response.SuccessNoCache(c, progressResponse{
		UserID:           e.UserID,
		CourseID:         e.CourseID,
		EnrolledAt:       e.EnrolledAt,
		PaymentMethod:    e.PaymentMethod,
		Progress:         eval.Progress.Percent,
		Completed:        eval.Progress.Completed,
		CompletedLessons: e.CompletedLessons.Slice(),
		Unlocked:         eval.Unlocked,
		Total:            eval.Total,
		ExamUnlocked:     eval.ExamUnlocked,
		Lessons:          eval.Lessons,
	}, "")
}

type completeRequest struct {
	LessonIDs []string `json:"lessonIds" binding:"required,min=1"`
}

// Complete records a batch of finished lessons.
func (h *Handler) Complete(c *gin.Context) {
	usr, courseID, ok := h.learnerAndCourse(c)
	if !ok {
		return
	}

	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "lessonIds must list at least one lesson", err)
		return
	}
	lessonIDs, err := request.ParseUUIDs("lessonIds", req.LessonIDs)
	if err != nil {
		_ = c.Error(err)
		return
	}

	result, err := h.service.CompleteLessons(c.Request.Context(), usr.ID, courseID, lessonIDs)
	if err != nil {
		response.AppError(h.logger, c, progress.AsAppError(err))
		return
	}

	message := ""
	if result.BecameCompleted {
		message = "Course completed"
	}
	response.Success(c, http.StatusOK, result, message, nil)
}

// ViewLesson returns lesson content once the drip schedule allows it.
func (h *Handler) ViewLesson(c *gin.Context) {
	usr, courseID, ok := h.learnerAndCourse(c)
	if !ok {
		return
	}
	lessonID, err := request.ParamUUID(c, "lessonId")
	if err != nil {
		_ = c.Error(err)
		return
	}

	if err := h.service.ViewLesson(c.Request.Context(), usr.ID, courseID, lessonID); err != nil {
		response.AppError(h.logger, c, progress.AsAppError(err))
		return
	}

	content, err := lesson.Get(h.db.WithContext(c.Request.Context()), courseID, lessonID)
	if err != nil {
		h.respondError(c, err, "failed to load lesson")
		return
	}

	response.SuccessNoCache(c, content, "")
}

// MyEnrollments lists the requesting user's enrollments.
func (h *Handler) MyEnrollments(c *gin.Context) {
	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	records, err := h.store.ListForUser(c.Request.Context(), usr.ID)
	if err != nil {
		h.respondError(c, err, "failed to list enrollments")
		return
	}

	response.Success(c, http.StatusOK, records, "", nil)
}

// Reset deletes a learner's enrollment and all of their progress in a course.
func (h *Handler) Reset(c *gin.Context) {
	courseID, err := request.ParamUUID(c, "courseId")
	if err != nil {
		_ = c.Error(err)
		return
	}
	userID, err := request.ParamUUID(c, "userId")
	if err != nil {
		_ = c.Error(err)
		return
	}

	if err := h.store.Delete(c.Request.Context(), userID, courseID); err != nil {
		h.respondError(c, err, "failed to reset enrollment")
		return
	}

	h.logger.Info("enrollment reset",
		slog.String("userId", userID.String()),
		slog.String("courseId", courseID.String()))
	response.Success(c, http.StatusOK, true, "Enrollment reset", nil)
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
	case errors.Is(err, course.ErrCourseNotFound), errors.Is(err, ErrCourseUnavailable):
		status = http.StatusNotFound
		message = "Course not found"
	case errors.Is(err, lesson.ErrLessonNotFound):
		status = http.StatusNotFound
		message = "Lesson not found"
	case errors.Is(err, progress.ErrEnrollmentNotFound):
		status = http.StatusNotFound
		message = "Enrollment not found"
	case errors.Is(err, ErrInvalidPaymentMethod):
		status = http.StatusBadRequest
		message = "A paid payment method is required for this course"
	case errors.Is(err, ErrPaymentRequired):
		status = http.StatusPaymentRequired
		message = "Amount paid does not cover the course price"
	default:
		response.AppError(h.logger, c, progress.AsAppError(err))
		return
	}

	response.ErrorWithLog(h.logger, c, status, message, err)
}
