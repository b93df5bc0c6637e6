package lesson

import (
	"context"
	"errors"
	"net/http"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/lms-progress-server/pkg/request"
	"github.com/mo-amir99/lms-progress-server/pkg/response"
)

// CurriculumCache drops cached course snapshots after a curriculum edit.
type CurriculumCache interface {
	Invalidate(ctx context.Context, courseID uuid.UUID) error
}

// Handler processes lesson authoring requests.
type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
	cache  CurriculumCache
}

// NewHandler constructs a lesson handler instance.
func NewHandler(db *gorm.DB, logger *slog.Logger, cache CurriculumCache) *Handler {
	return &Handler{db: db, logger: logger, cache: cache}
}

type createRequest struct {
	Title        string   `json:"title" binding:"required"`
	Content      string   `json:"content"`
	YoutubeLinks []string `json:"youtubeLinks"`
	Order        *int     `json:"order"`
}

// Create adds a lesson to a module.
func (h *Handler) Create(c *gin.Context) {
	courseID, err := request.ParamUUID(c, "courseId")
	if err != nil {
		_ = c.Error(err)
		return
	}
	moduleID, err := request.ParamUUID(c, "moduleId")
	if err != nil {
		_ = c.Error(err)
		return
	}

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid lesson payload", err)
		return
	}

	lesson, err := Create(h.db.WithContext(c.Request.Context()), CreateInput{
		CourseID:     courseID,
		ModuleID:     moduleID,
		Title:        req.Title,
		Content:      req.Content,
		YoutubeLinks: req.YoutubeLinks,
		Order:        req.Order,
	})
	if err != nil {
		h.respondError(c, err, "failed to create lesson")
		return
	}

	h.invalidate(c.Request.Context(), courseID)
	response.Created(c, lesson, "")
}

// GetByID returns a lesson with its content for staff.
func (h *Handler) GetByID(c *gin.Context) {
	courseID, lessonID, ok := h.ids(c)
	if !ok {
		return
	}

	lesson, err := Get(h.db.WithContext(c.Request.Context()), courseID, lessonID)
	if err != nil {
		h.respondError(c, err, "failed to load lesson")
		return
	}

	response.Success(c, http.StatusOK, lesson, "", nil)
}

type updateRequest struct {
	Title        *string   `json:"title"`
	Content      *string   `json:"content"`
	YoutubeLinks *[]string `json:"youtubeLinks"`
	Order        *int      `json:"order"`
	ModuleID     *string   `json:"moduleId"`
}

// Update edits a lesson.
func (h *Handler) Update(c *gin.Context) {
	courseID, lessonID, ok := h.ids(c)
	if !ok {
		return
	}

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid lesson payload", err)
		return
	}

	input := UpdateInput{
		Title:        req.Title,
		Content:      req.Content,
		YoutubeLinks: req.YoutubeLinks,
		Order:        req.Order,
	}
	if req.ModuleID != nil {
		ids, err := request.ParseUUIDs("moduleId", []string{*req.ModuleID})
		if err != nil {
			_ = c.Error(err)
			return
		}
		input.ModuleID = &ids[0]
	}

	lesson, err := Update(h.db.WithContext(c.Request.Context()), courseID, lessonID, input)
	if err != nil {
		h.respondError(c, err, "failed to update lesson")
		return
	}

	h.invalidate(c.Request.Context(), courseID)
	response.Success(c, http.StatusOK, lesson, "", nil)
}

// Delete removes a lesson from the curriculum.
func (h *Handler) Delete(c *gin.Context) {
	courseID, lessonID, ok := h.ids(c)
	if !ok {
		return
	}

	if err := Delete(h.db.WithContext(c.Request.Context()), courseID, lessonID); err != nil {
		h.respondError(c, err, "failed to delete lesson")
		return
	}

	h.invalidate(c.Request.Context(), courseID)
	response.Success(c, http.StatusOK, true, "Lesson deleted", nil)
}

func (h *Handler) ids(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	courseID, err := request.ParamUUID(c, "courseId")
	if err != nil {
		_ = c.Error(err)
		return uuid.Nil, uuid.Nil, false
	}
	lessonID, err := request.ParamUUID(c, "lessonId")
	if err != nil {
		_ = c.Error(err)
		return uuid.Nil, uuid.Nil, false
	}
	return courseID, lessonID, true
}

func (h *Handler) invalidate(ctx context.Context, courseID uuid.UUID) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx, courseID); err != nil {
		h.logger.Warn("failed to invalidate course snapshot",
			slog.String("courseId", courseID.String()),
			slog.String("error", err.Error()))
	}
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	message := fallback

	switch {
	case errors.Is(err, ErrLessonNotFound):
		status = http.StatusNotFound
		message = "Lesson not found"
	case errors.Is(err, ErrModuleNotFound):
		status = http.StatusNotFound
		message = "Module not found"
	case errors.Is(err, ErrTitleRequired):
		status = http.StatusBadRequest
		message = "Lesson title is required"
	case errors.Is(err, ErrInvalidLink):
		status = http.StatusBadRequest
		message = "YouTube links must be valid http(s) URLs"
	}

	response.ErrorWithLog(h.logger, c, status, message, err)
}
