package response

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mo-amir99/lms-progress-server/pkg/apperrors"
)

// Envelope is the JSON shape of every API response.
type Envelope struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Error      interface{} `json:"error,omitempty"`
	Pagination interface{} `json:"pagination,omitempty"`
}

// ErrorBody is the error payload clients can switch on.
type ErrorBody struct {
	Code   apperrors.ErrorCode `json:"code"`
	Fields map[string]string   `json:"fields,omitempty"`
}

// Success writes a success response with optional message and data.
func Success(c *gin.Context, status int, data interface{}, message string, pagination interface{}) {
	c.JSON(status, Envelope{
		Success:    true,
		Message:    message,
		Data:       data,
		Pagination: pagination,
	})
}

// Created is a convenience helper for POST 201 responses.
func Created(c *gin.Context, data interface{}, message string) {
	Success(c, http.StatusCreated, data, message, nil)
}

// SuccessWithCache sends a success response clients may cache privately for maxAge seconds.
func SuccessWithCache(c *gin.Context, data interface{}, message string, pagination interface{}, maxAge int) {
	if maxAge <= 0 {
		c.Header("Cache-Control", "no-cache")
	} else {
		c.Header("Cache-Control", "private, max-age="+strconv.Itoa(maxAge))
	}
	Success(c, http.StatusOK, data, message, pagination)
}

// SuccessNoCache sends a success response for time-dependent data such as drip state.
func SuccessNoCache(c *gin.Context, data interface{}, message string) {
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	Success(c, http.StatusOK, data, message, nil)
}

// Error writes an error response capturing the message and optional error payload.
func Error(c *gin.Context, status int, message string, err interface{}) {
	c.JSON(status, Envelope{
		Success: false,
		Message: message,
		Error:   err,
	})
}

// ErrorWithLog writes an error response and logs the underlying cause.
func ErrorWithLog(logger *slog.Logger, c *gin.Context, status int, message string, err error) {
	if logger != nil && err != nil {
		logger.ErrorContext(c.Request.Context(), message, slog.Int("status", status), slog.String("error", err.Error()))
	}

	Error(c, status, message, nil)
}

// AppError writes an AppError. Server errors are logged at error level, the
// rest at debug since they are expected outcomes like a locked lesson.
func AppError(logger *slog.Logger, c *gin.Context, appErr *apperrors.AppError) {
	if logger != nil {
		level := slog.LevelDebug
		if appErr.StatusCode() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, appErr.Message(),
			slog.Int("status", appErr.StatusCode()),
			slog.String("code", string(appErr.Code())),
			slog.String("error", appErr.Error()),
		)
	}

	Error(c, appErr.StatusCode(), appErr.Message(), ErrorBody{Code: appErr.Code(), Fields: appErr.Fields()})
}

// ErrorWithData writes an error response that also carries a data payload.
func ErrorWithData(c *gin.Context, status int, message string, data interface{}, code apperrors.ErrorCode) {
	c.JSON(status, Envelope{
		Success: false,
		Message: message,
		Data:    data,
		Error:   ErrorBody{Code: code},
	})
}
