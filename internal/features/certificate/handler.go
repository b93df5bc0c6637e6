package certificate

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
	"github.com/mo-amir99/lms-progress-server/internal/features/exam"
	"github.com/mo-amir99/lms-progress-server/internal/middleware"
	"github.com/mo-amir99/lms-progress-server/internal/services/progress"
	"github.com/mo-amir99/lms-progress-server/pkg/request"
	"github.com/mo-amir99/lms-progress-server/pkg/response"
	"github.com/mo-amir99/lms-progress-server/pkg/validation"
)

// Eligibility decides whether a learner may receive a certificate.
type Eligibility interface {
	CheckCertificateEligibility(ctx context.Context, userID, courseID uuid.UUID, passedExam bool) (access.Enrollment, error)
}

// Handler processes certificate requests.
type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
	gate   Eligibility
	now    func() time.Time
}

// NewHandler constructs a certificate handler instance.
func NewHandler(db *gorm.DB, logger *slog.Logger, gate Eligibility) *Handler {
	return &Handler{db: db, logger: logger, gate: gate, now: time.Now}
}

// Issue grants the certificate for a completed course with a passed exam.
func (h *Handler) Issue(c *gin.Context) {
	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}
	courseID, err := request.ParamUUID(c, "courseId")
	if err != nil {
		_ = c.Error(err)
		return
	}

	db := h.db.WithContext(c.Request.Context())
	existing, err := Get(db, usr.ID, courseID)
	switch {
	case err == nil:
		response.Success(c, http.StatusOK, existing, "", nil)
		return
	case !errors.Is(err, ErrCertificateNotFound):
		h.respondError(c, err, "failed to load certificate")
		return
	}

	passed, err := exam.LatestPassed(db, usr.ID, courseID)
	if err != nil {
		h.respondError(c, err, "failed to load exam attempts")
		return
	}

	if _, err := h.gate.CheckCertificateEligibility(c.Request.Context(), usr.ID, courseID, passed != nil); err != nil {
		response.AppError(h.logger, c, progress.AsAppError(err))
		return
	}

	cert, created, err := Issue(db, usr.ID, courseID, passed.ID, h.now())
	if err != nil {
		h.respondError(c, err, "failed to issue certificate")
		return
	}

	if created {
		h.logger.Info("certificate issued",
			slog.String("userId", usr.ID.String()),
			slog.String("courseId", courseID.String()),
			slog.String("serial", cert.Serial))
		response.Created(c, cert, "Certificate issued")
		return
	}
	response.Success(c, http.StatusOK, cert, "", nil)
}

// Mine lists the requesting user's certificates.
func (h *Handler) Mine(c *gin.Context) {
	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	certs, err := ListForUser(h.db.WithContext(c.Request.Context()), usr.ID)
	if err != nil {
		h.respondError(c, err, "failed to list certificates")
		return
	}

	response.Success(c, http.StatusOK, certs, "", nil)
}

// Verify confirms a certificate serial and names its holder and course.
func (h *Handler) Verify(c *gin.Context) {
	serial, err := validation.NormalizeSerial(c.Param("serial"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	cert, err := GetBySerial(h.db.WithContext(c.Request.Context()), serial)
	if err != nil {
		h.respondError(c, err, "failed to verify certificate")
		return
	}

	response.SuccessWithCache(c, cert, "", nil, 300)
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	message := fallback

	if errors.Is(err, ErrCertificateNotFound) {
		status = http.StatusNotFound
		message = "Certificate not found"
	}

	response.ErrorWithLog(h.logger, c, status, message, err)
}
