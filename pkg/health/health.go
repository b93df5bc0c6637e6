package health

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mo-amir99/lms-progress-server/pkg/cache"
)

// Version information, set at build time with -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Handler serves liveness, readiness and version probes.
type Handler struct {
	db     *gorm.DB
	cache  cache.Client
	logger *slog.Logger
}

// NewHandler creates a probe handler. store may be nil.
func NewHandler(db *gorm.DB, store cache.Client, logger *slog.Logger) *Handler {
	return &Handler{db: db, cache: store, logger: logger}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Health is the liveness probe.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   Version,
	})
}

// Ready reports 503 until the database answers. A failing cache only degrades.
func (h *Handler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{
		"database": h.checkDatabase(ctx),
		"cache":    h.checkCache(ctx),
	}

	status, code := "ready", http.StatusOK
	if checks["database"] != "ok" {
		status, code = "not_ready", http.StatusServiceUnavailable
	} else if checks["cache"] != "ok" {
		status = "degraded"
	}

	c.JSON(code, HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Version:   Version,
		Checks:    checks,
	})
}

// Version returns build information.
func (h *Handler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":    Version,
		"git_commit": GitCommit,
		"build_time": BuildTime,
	})
}

func (h *Handler) checkDatabase(ctx context.Context) string {
	sqlDB, err := h.db.DB()
	if err != nil {
		h.logger.Error("health check: failed to get database instance", slog.String("error", err.Error()))
		return "unavailable"
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		h.logger.Error("health check: database ping failed", slog.String("error", err.Error()))
		return "unhealthy"
	}
	return "ok"
}

func (h *Handler) checkCache(ctx context.Context) string {
	if h.cache == nil {
		return "disabled"
	}
	if _, err := h.cache.Get(ctx, "health:probe"); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		h.logger.Warn("health check: cache unreachable", slog.String("error", err.Error()))
		return "unhealthy"
	}
	return "ok"
}

// DBStats returns database connection pool statistics.
func (h *Handler) DBStats(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get database instance"})
		return
	}

	stats := sqlDB.Stats()
	c.JSON(http.StatusOK, gin.H{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration":        stats.WaitDuration.String(),
	})
}
