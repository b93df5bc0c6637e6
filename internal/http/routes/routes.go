package routes

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/mo-amir99/lms-progress-server/internal/features/achievement"
	"github.com/mo-amir99/lms-progress-server/internal/features/auth"
	"github.com/mo-amir99/lms-progress-server/internal/features/certificate"
	"github.com/mo-amir99/lms-progress-server/internal/features/course"
	"github.com/mo-amir99/lms-progress-server/internal/features/dashboard"
	"github.com/mo-amir99/lms-progress-server/internal/features/enrollment"
	"github.com/mo-amir99/lms-progress-server/internal/features/exam"
	"github.com/mo-amir99/lms-progress-server/internal/features/lesson"
	"github.com/mo-amir99/lms-progress-server/internal/features/user"
	"github.com/mo-amir99/lms-progress-server/internal/middleware"
	"github.com/mo-amir99/lms-progress-server/internal/services/progress"
	"github.com/mo-amir99/lms-progress-server/internal/utils/jwt"
	"github.com/mo-amir99/lms-progress-server/pkg/cache"
	"github.com/mo-amir99/lms-progress-server/pkg/config"
	"github.com/mo-amir99/lms-progress-server/pkg/health"
	"github.com/mo-amir99/lms-progress-server/pkg/types"
)

// Services groups the long-lived collaborators shared by the feature handlers.
type Services struct {
	Tokens      jwt.Issuer
	Cache       cache.Client
	Catalog     *course.Catalog
	Enrollments *enrollment.Store
	Progress    *progress.Service
}

// Register wires all feature routes onto the engine.
func Register(engine *gin.Engine, cfg *config.Config, db *gorm.DB, logger *slog.Logger, svc Services) {
	// Health check endpoints (no /api prefix for Kubernetes probes)
	healthHandler := health.NewHandler(db, svc.Cache, logger)
	engine.GET("/health", healthHandler.Health)
	engine.GET("/ready", healthHandler.Ready)
	engine.GET("/version", healthHandler.Version)

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if !cfg.IsProduction() {
		engine.GET("/debug/db-stats", healthHandler.DBStats)
	}

	api := engine.Group("/api")

	middleware.Initialize(db, svc.Tokens, logger)

	// Admins pass every role check (handled in RequireRoles).
	allUsers := middleware.RequireRoles(types.UserTypeAll)
	staff := middleware.RequireRoles(types.UserTypeInstructor, types.UserTypeAdmin)
	adminOnly := middleware.RequireRoles(types.UserTypeAdmin)
	authenticated := []gin.HandlerFunc{middleware.AuthenticateToken()}

	authHandler := auth.NewHandler(db, logger, svc.Tokens)
	auth.RegisterRoutes(api, authHandler, authenticated)

	userHandler := user.NewHandler(db, logger)
	user.RegisterRoutes(api, userHandler, allUsers, adminOnly)

	courseHandler := course.NewHandler(db, logger, svc.Catalog)
	course.RegisterRoutes(api, courseHandler, allUsers, staff)

	lessonHandler := lesson.NewHandler(db, logger, svc.Catalog)
	lesson.RegisterRoutes(api, lessonHandler, staff)

	enrollmentHandler := enrollment.NewHandler(db, logger, svc.Enrollments, svc.Progress)
	enrollment.RegisterRoutes(api, enrollmentHandler, allUsers, adminOnly)

	examHandler := exam.NewHandler(db, logger, svc.Progress)
	exam.RegisterRoutes(api, examHandler, allUsers, staff)

	certificateHandler := certificate.NewHandler(db, logger, svc.Progress)
	certificate.RegisterRoutes(api, certificateHandler, allUsers)

	achievementHandler := achievement.NewHandler(db, logger)
	achievement.RegisterRoutes(api, achievementHandler, allUsers)

	dashboardHandler := dashboard.NewHandler(db, logger, cfg.LogDir)
	dashboard.RegisterRoutes(api, dashboardHandler, staff, adminOnly)
}
