package achievement

import (
	"net/http"

	"log/slog"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mo-amir99/lms-progress-server/internal/middleware"
	"github.com/mo-amir99/lms-progress-server/pkg/response"
)

// Handler serves a learner's awards.
type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewHandler constructs an achievement handler instance.
func NewHandler(db *gorm.DB, logger *slog.Logger) *Handler {
	return &Handler{db: db, logger: logger}
}

// Mine lists the requesting user's awards.
func (h *Handler) Mine(c *gin.Context) {
	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.ErrorWithLog(h.logger, c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	awards, err := ListForUser(h.db.WithContext(c.Request.Context()), usr.ID)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to list awards", err)
		return
	}

	response.Success(c, http.StatusOK, awards, "", nil)
}
