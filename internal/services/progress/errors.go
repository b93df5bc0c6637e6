package progress

import (
	"errors"
	"net/http"

	"github.com/mo-amir99/lms-progress-server/internal/access"
	"github.com/mo-amir99/lms-progress-server/pkg/apperrors"
)

var (
	// ErrEnrollmentNotFound is returned by stores when no record exists.
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	// ErrAlreadyEnrolled is returned by stores on a duplicate (user, course).
	ErrAlreadyEnrolled = errors.New("already enrolled in this course")
)

// AsAppError maps service and access errors onto HTTP-facing errors.
func AsAppError(err error) *apperrors.AppError {
	if err == nil {
		return nil
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, access.ErrNotEnrolled):
		return apperrors.Forbidden("You are not enrolled in this course.", err)
	case errors.Is(err, access.ErrAccessDenied):
		var lessonErr *access.LessonError
		if errors.As(err, &lessonErr) {
			return apperrors.Forbidden("This lesson isn't available yet.", err).
				WithFields(map[string]string{"lessonId": lessonErr.LessonID.String()})
		}
		return apperrors.Forbidden("Complete the course requirements first.", err)
	case errors.Is(err, access.ErrStaleLessonReference):
		return apperrors.NotFound("Lesson not found in this course.", err)
	case errors.Is(err, ErrAlreadyEnrolled):
		return apperrors.Conflict("You are already enrolled in this course.", err)
	case errors.Is(err, access.ErrInvalidPolicy):
		return apperrors.New("Course drip configuration is invalid.", http.StatusInternalServerError, apperrors.ErrInternal, err)
	default:
		return apperrors.Internal("Internal server error", err)
	}
}
