package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mo-amir99/lms-progress-server/internal/bootstrap"
	"github.com/mo-amir99/lms-progress-server/internal/features/course"
	"github.com/mo-amir99/lms-progress-server/internal/features/enrollment"
	"github.com/mo-amir99/lms-progress-server/internal/features/user"
	"github.com/mo-amir99/lms-progress-server/internal/services/progress"
	"github.com/mo-amir99/lms-progress-server/internal/testutil"
	"github.com/mo-amir99/lms-progress-server/internal/utils/jwt"
	"github.com/mo-amir99/lms-progress-server/pkg/cache"
	"github.com/mo-amir99/lms-progress-server/pkg/config"
	"github.com/mo-amir99/lms-progress-server/pkg/logger"
	"github.com/mo-amir99/lms-progress-server/pkg/types"
)

var tokens = jwt.Issuer{AccessSecret: "access-test", RefreshSecret: "refresh-test"}

func newEngine(t *testing.T, env string) (*gin.Engine, *gorm.DB) {
	t.Helper()

	db := testutil.DB(t, bootstrap.Models()...)
	store := cache.NewMemoryCache()
	catalog := course.NewCatalog(db, store, time.Minute, logger.Discard())
	enrollments := enrollment.NewStore(db)

	cfg := &config.Config{Env: env, LogDir: t.TempDir()}
	engine := testutil.Router()
	Register(engine, cfg, db, logger.Discard(), Services{
		Tokens:      tokens,
		Cache:       store,
		Catalog:     catalog,
		Enrollments: enrollments,
		Progress:    progress.NewService(catalog, enrollments, logger.Discard()),
	})
	return engine, db
}

func createUser(t *testing.T, db *gorm.DB, email string, role types.UserType) (user.User, string) {
	t.Helper()

	usr, err := user.Create(db, user.CreateInput{
		FullName: "Route Test",
		Email:    email,
		Password: "secret-password",
		UserType: role,
	})
	require.NoError(t, err)

	pair, err := tokens.Pair(usr.ID, usr.UserType)
	require.NoError(t, err)
	return usr, pair.AccessToken
}

func serve(engine *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestProbesAndMetrics(t *testing.T) {
	engine, _ := newEngine(t, "development")

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/version", "").Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/metrics", "").Code)
}

func TestDebugStatsHiddenInProduction(t *testing.T) {
	engine, _ := newEngine(t, "production")

	assert.Equal(t, http.StatusNotFound, serve(engine, http.MethodGet, "/debug/db-stats", "").Code)
}

func TestRoleGuards(t *testing.T) {
	engine, db := newEngine(t, "development")
	_, studentToken := createUser(t, db, "student@example.com", types.UserTypeStudent)
	_, adminToken := createUser(t, db, "admin@example.com", types.UserTypeAdmin)

	assert.Equal(t, http.StatusUnauthorized, serve(engine, http.MethodGet, "/api/me/enrollments", "").Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/me/enrollments", studentToken).Code)

	assert.Equal(t, http.StatusForbidden, serve(engine, http.MethodGet, "/api/dashboard/admin", studentToken).Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/dashboard/admin", adminToken).Code)
}

func TestExamGradingRequiresStaff(t *testing.T) {
	engine, db := newEngine(t, "development")
	_, studentToken := createUser(t, db, "student@example.com", types.UserTypeStudent)

	path := "/api/courses/" + uuid.NewString() + "/exam/attempts/" + uuid.NewString() + "/grade"
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"score":100}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+studentToken)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCertificateVerificationIsPublic(t *testing.T) {
	engine, _ := newEngine(t, "development")

	w := serve(engine, http.MethodGet, "/api/certificates/CERT-0000000000000000", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSocketAuthenticator(t *testing.T) {
	_, db := newEngine(t, "development")
	auth := SocketAuthenticator(db, tokens)

	instructor, token := createUser(t, db, "instructor@example.com", types.UserTypeInstructor)

	identity, err := auth(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, instructor.ID, identity.UserID)
	assert.Equal(t, "instructor@example.com", identity.Email)
	assert.True(t, identity.Staff)

	_, err = auth(context.Background(), "not-a-token")
	assert.Error(t, err)

	inactive := false
	_, err = user.Update(db, instructor.ID, user.UpdateInput{Active: &inactive})
	require.NoError(t, err)

	_, err = auth(context.Background(), token)
	assert.ErrorIs(t, err, errAccountDisabled)
}
