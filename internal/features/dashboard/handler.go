package dashboard

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mo-amir99/lms-progress-server/internal/features/course"
	"github.com/mo-amir99/lms-progress-server/internal/middleware"
	"github.com/mo-amir99/lms-progress-server/pkg/request"
	"github.com/mo-amir99/lms-progress-server/pkg/response"
	"github.com/mo-amir99/lms-progress-server/pkg/types"
)

// Handler serves staff dashboards and admin system endpoints.
type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
	logDir string
}

// NewHandler constructs a dashboard handler. logDir is where the file logger writes.
func NewHandler(db *gorm.DB, logger *slog.Logger, logDir string) *Handler {
	if logDir == "" {
		logDir = "logs"
	}
	return &Handler{db: db, logger: logger, logDir: logDir}
}

// GetCourseStats returns enrollment and completion statistics for a course.
// Instructors only see their own courses.
// GET /dashboard/courses/:courseId
func (h *Handler) GetCourseStats(c *gin.Context) {
	courseID, err := request.ParamUUID(c, "courseId")
	if err != nil {
		_ = c.Error(err)
		return
	}

	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "Authentication required.", nil)
		return
	}

	db := h.db.WithContext(c.Request.Context())
	crs, err := course.GetWithCurriculum(db, courseID)
	if err != nil {
		if errors.Is(err, course.ErrCourseNotFound) {
			response.Error(c, http.StatusNotFound, "Course not found", nil)
			return
		}
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "Failed to load course", err)
		return
	}

	if usr.UserType != types.UserTypeAdmin && (crs.InstructorID == nil || *crs.InstructorID != usr.ID) {
		response.Error(c, http.StatusForbidden, "Course not found or inaccessible", nil)
		return
	}

	stats, err := LoadCourseStats(db, crs)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "Failed to retrieve dashboard data", err)
		return
	}

	response.SuccessNoCache(c, stats, "")
}

// GetAdminDashboard returns platform-wide counters.
// GET /dashboard/admin
func (h *Handler) GetAdminDashboard(c *gin.Context) {
	overview, err := LoadOverview(c.Request.Context(), h.db, time.Now())
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "Failed to retrieve dashboard data", err)
		return
	}

	response.SuccessNoCache(c, overview, "")
}

// GetSystemLogs returns the last N lines from info.log or error.log
// GET /dashboard/logs?type=info|error&lines=100
func (h *Handler) GetSystemLogs(c *gin.Context) {
	logType := c.DefaultQuery("type", "info")
	if logType != "info" && logType != "error" {
		logType = "info"
	}

	lines, err := strconv.Atoi(c.DefaultQuery("lines", "100"))
	if err != nil {
		lines = 100
	}
	if lines < 10 {
		lines = 10
	}
	if lines > 1000 {
		lines = 1000
	}

	logFile := filepath.Join(h.logDir, fmt.Sprintf("%s.log", logType))

	file, err := os.Open(logFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			response.Error(c, http.StatusNotFound, fmt.Sprintf("Log file not found: %s.log", logType), nil)
			return
		}
		h.logger.Error("failed to open log file", slog.String("file", logFile), slog.String("error", err.Error()))
		response.Error(c, http.StatusInternalServerError, "Failed to read log file", nil)
		return
	}
	defer file.Close()

	// keep a ring of the last N lines instead of the whole file
	tail := make([]string, 0, lines)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(tail) == lines {
			tail = tail[1:]
		}
		tail = append(tail, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		h.logger.Error("failed to scan log file", slog.String("error", err.Error()))
		response.Error(c, http.StatusInternalServerError, "Failed to read log file", nil)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"type":  logType,
		"lines": len(tail),
		"log":   tail,
	}, "", nil)
}

// ClearLogs truncates all log files in the log directory
// POST /dashboard/logs/clear
func (h *Handler) ClearLogs(c *gin.Context) {
	files, err := os.ReadDir(h.logDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			response.Error(c, http.StatusNotFound, "Logs directory not found", nil)
			return
		}
		h.logger.Error("failed to read logs directory", slog.String("error", err.Error()))
		response.Error(c, http.StatusInternalServerError, "Failed to read logs directory", nil)
		return
	}

	cleared := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".log") {
			continue
		}
		if err := os.Truncate(filepath.Join(h.logDir, file.Name()), 0); err != nil {
			h.logger.Warn("failed to clear log file", slog.String("file", file.Name()), slog.String("error", err.Error()))
			continue
		}
		cleared++
	}

	response.Success(c, http.StatusOK, gin.H{"cleared": cleared}, fmt.Sprintf("Cleared %d log files.", cleared), nil)
}

// DiskStats is free and total space of the volume holding a path.
type DiskStats struct {
	Free uint64 `json:"free"`
	Size uint64 `json:"size"`
	Path string `json:"path"`
}

// GetSystemStats returns process memory, CPU count, disk usage and database pool stats.
// GET /dashboard/system-stats
func (h *Handler) GetSystemStats(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	root := "/"
	if runtime.GOOS == "windows" {
		root = "C:"
	}

	payload := gin.H{
		"memory": gin.H{
			"total": m.Sys,
			"used":  m.Alloc,
			"free":  m.Sys - m.Alloc,
		},
		"cpu": gin.H{
			"numCPU":     runtime.NumCPU(),
			"goroutines": runtime.NumGoroutine(),
		},
		"disk": getDiskStatsForPlatform(root),
	}

	if sqlDB, err := h.db.DB(); err == nil {
		s := sqlDB.Stats()
		payload["database"] = gin.H{
			"openConnections": s.OpenConnections,
			"inUse":           s.InUse,
			"idle":            s.Idle,
			"waitCount":       s.WaitCount,
		}
	}

	response.Success(c, http.StatusOK, payload, "", nil)
}
