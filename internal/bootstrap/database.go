// Package bootstrap prepares the database before the server or a script uses it.
package bootstrap

import (
	"fmt"
	"log/slog"
	"sync"

	"gorm.io/gorm"

	"github.com/mo-amir99/lms-progress-server/internal/features/achievement"
	"github.com/mo-amir99/lms-progress-server/internal/features/certificate"
	"github.com/mo-amir99/lms-progress-server/internal/features/course"
	"github.com/mo-amir99/lms-progress-server/internal/features/enrollment"
	"github.com/mo-amir99/lms-progress-server/internal/features/exam"
	"github.com/mo-amir99/lms-progress-server/internal/features/lesson"
	"github.com/mo-amir99/lms-progress-server/internal/features/user"
	"github.com/mo-amir99/lms-progress-server/pkg/config"
	"github.com/mo-amir99/lms-progress-server/pkg/database/migrations"
)

// Models lists every persisted model in dependency order.
func Models() []interface{} {
	return []interface{}{
		&user.User{},
		&course.Course{},
		&course.Module{},
		&lesson.Lesson{},
		&enrollment.Enrollment{},
		&enrollment.LessonCompletion{},
		&exam.Attempt{},
		&certificate.Certificate{},
		&achievement.Award{},
	}
}

// Tables lists table names in reverse dependency order, for dropping.
func Tables() []string {
	return []string{
		"awards",
		"certificates",
		"exam_attempts",
		"lesson_completions",
		"enrollments",
		"lessons",
		"modules",
		"courses",
		"users",
		"schema_migrations",
	}
}

var registerOnce sync.Once

// RegisterMigrations adds the schema steps to the migration registry.
func RegisterMigrations() {
	registerOnce.Do(func() {
		migrations.Register("001_schema", func(tx *gorm.DB) error {
			return tx.AutoMigrate(Models()...)
		})
	})
}

// Migrate applies pending migrations unconditionally.
func Migrate(db *gorm.DB, logger *slog.Logger) error {
	RegisterMigrations()
	if err := migrations.Run(db, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// ApplyDatabaseMigrations runs database migrations when enabled via configuration.
func ApplyDatabaseMigrations(db *gorm.DB, cfg *config.Config, logger *slog.Logger) error {
	if !cfg.Database.RunMigrations {
		logger.Info("database migrations skipped", slog.String("env_var", "LMS_DB_RUN_MIGRATIONS=false"))
		return nil
	}

	if err := Migrate(db, logger); err != nil {
		return err
	}

	logger.Info("database migrations applied successfully")
	return nil
}
