// Package testutil builds throwaway databases and routers for package tests.
package testutil

import (
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mo-amir99/lms-progress-server/internal/middleware"
	"github.com/mo-amir99/lms-progress-server/pkg/database"
	"github.com/mo-amir99/lms-progress-server/pkg/logger"
	"github.com/mo-amir99/lms-progress-server/pkg/request"
)

// DB opens an in-memory sqlite database with models migrated.
func DB(t testing.TB, models ...interface{}) *gorm.DB {
	t.Helper()

	db, err := database.OpenSQLite(":memory:", logger.Discard())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrate(db, logger.Discard(), models...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() { _ = database.Close(db, logger.Discard()) })
	return db
}

// Router returns a gin engine in test mode with the error handler installed.
func Router() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(request.Handler(logger.Discard()))
	return r
}

// As authenticates every request on the route as usr.
func As(usr middleware.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := usr
		middleware.SetUser(c, &u)
		c.Next()
	}
}
