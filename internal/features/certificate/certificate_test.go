package certificate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mo-amir99/lms-progress-server/internal/access"
	"github.com/mo-amir99/lms-progress-server/internal/features/course"
	"github.com/mo-amir99/lms-progress-server/internal/features/exam"
	"github.com/mo-amir99/lms-progress-server/internal/features/lesson"
	"github.com/mo-amir99/lms-progress-server/internal/features/user"
	"github.com/mo-amir99/lms-progress-server/internal/middleware"
	"github.com/mo-amir99/lms-progress-server/internal/testutil"
	"github.com/mo-amir99/lms-progress-server/pkg/logger"
	"github.com/mo-amir99/lms-progress-server/pkg/types"
)

// completedCourse stands in for the progress service with every lesson done.
type completedCourse struct{}

func (completedCourse) CheckCertificateEligibility(_ context.Context, _, _ uuid.UUID, passedExam bool) (access.Enrollment, error) {
	only := access.Lesson{ID: uuid.New(), Title: "Only lesson"}
	crs := access.Course{Modules: []access.Module{{ID: uuid.New(), Lessons: []access.Lesson{only}}}}
	done := access.Enrollment{CompletedLessons: access.NewLessonSet(only.ID), Progress: 100, Completed: true}
	return done, access.CertificateEligible(crs, done, passedExam)
}

func TestIssueIsIdempotent(t *testing.T) {
	db := testutil.DB(t, &user.User{}, &course.Course{}, &course.Module{}, &lesson.Lesson{}, &Certificate{})
	learner, err := user.Create(db, user.CreateInput{FullName: "Linus", Email: "linus@example.com", Password: "password123"})
	require.NoError(t, err)
	crs, err := course.Create(db, course.CreateInput{Title: "Kernels"})
	require.NoError(t, err)

	now := time.Now()
	first, created, err := Issue(db, learner.ID, crs.ID, uuid.New(), now)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Regexp(t, `^CERT-[0-9A-F]{16}$`, first.Serial)

	second, created, err := Issue(db, learner.ID, crs.ID, uuid.New(), now)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.Serial, second.Serial)

	found, err := GetBySerial(db, " "+first.Serial+" ")
	require.NoError(t, err)
	require.NotNil(t, found.Course)
	assert.Equal(t, "Kernels", found.Course.Title)

	_, err = GetBySerial(db, "CERT-NOPE")
	assert.ErrorIs(t, err, ErrCertificateNotFound)
}

func TestIssueRequiresPassedExam(t *testing.T) {
	db := testutil.DB(t, &user.User{}, &course.Course{}, &course.Module{}, &lesson.Lesson{}, &exam.Attempt{}, &Certificate{})
	learner, err := user.Create(db, user.CreateInput{FullName: "Linus", Email: "linus@example.com", Password: "password123"})
	require.NoError(t, err)
	crs, err := course.Create(db, course.CreateInput{Title: "Kernels"})
	require.NoError(t, err)

	r := testutil.Router()
	usr := middleware.User{ID: learner.ID, UserType: types.UserTypeStudent, Active: true}
	mw := []gin.HandlerFunc{testutil.As(usr)}
	RegisterRoutes(r.Group("/api"), NewHandler(db, logger.Discard(), completedCourse{}), mw)

	issue := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/courses/"+crs.ID.String()+"/certificate", nil))
		return w
	}

	w := issue()
	assert.Equal(t, http.StatusForbidden, w.Code)

	attempt, _, err := exam.Start(db, crs, learner.ID, time.Now())
	require.NoError(t, err)
	_, err = exam.Grade(db, crs.ID, attempt.ID, 95, time.Now())
	require.NoError(t, err)

	w = issue()
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Data Certificate `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, attempt.ID, created.Data.ExamAttemptID)

	w = issue()
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/certificates/"+created.Data.Serial, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Linus")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me/certificates", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), created.Data.Serial)
}
