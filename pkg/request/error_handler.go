package request

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mo-amir99/lms-progress-server/pkg/apperrors"
	"github.com/mo-amir99/lms-progress-server/pkg/response"
)

// Handler returns a middleware that turns errors attached with c.Error into
// envelope responses when the handler did not write one itself.
func Handler(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := errors.Join(errorsFromContext(c.Errors)...)
		if err == nil {
			return
		}

		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			response.AppError(logger, c, appErr)
			return
		}

		response.AppError(logger, c, classify(err))
	}
}

func errorsFromContext(errs []*gin.Error) []error {
	list := make([]error, 0, len(errs))
	for _, item := range errs {
		if item != nil && item.Err != nil {
			list = append(list, item.Err)
		}
	}
	return list
}

func classify(err error) *apperrors.AppError {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound("Resource not found", err)
	}

	if strings.Contains(err.Error(), "invalid input syntax for type uuid") {
		return apperrors.Validation("Invalid ID format", err)
	}

	return apperrors.New("Internal server error", http.StatusInternalServerError, apperrors.ErrInternal, err)
}
