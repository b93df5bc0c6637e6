package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/mo-amir99/lms-progress-server/pkg/response"
)

// Recovery recovers from panics and logs them with stack traces.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				requestID := GetRequestID(c)

				logger.Error("panic recovered",
					slog.String("request_id", requestID),
					slog.String("method", c.Request.Method),
					slog.String("path", c.Request.URL.Path),
					slog.String("client_ip", c.ClientIP()),
					slog.Any("error", err),
					slog.String("stack", string(debug.Stack())),
				)

				response.Error(c, http.StatusInternalServerError, "Internal server error", gin.H{"requestId": requestID})
				c.Abort()
			}
		}()

		c.Next()
	}
}
