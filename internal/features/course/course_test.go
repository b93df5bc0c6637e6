package course

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
	"gorm.io/gorm"

	"github.com/mo-amir99/lms-progress-server/internal/access"
	"github.com/mo-amir99/lms-progress-server/internal/features/lesson"
	"github.com/mo-amir99/lms-progress-server/internal/middleware"
	"github.com/mo-amir99/lms-progress-server/internal/testutil"
	"github.com/mo-amir99/lms-progress-server/pkg/apperrors"
	"github.com/mo-amir99/lms-progress-server/pkg/cache"
	"github.com/mo-amir99/lms-progress-server/pkg/logger"
	"github.com/mo-amir99/lms-progress-server/pkg/types"
)

func newDB(t *testing.T) *gorm.DB {
	return testutil.DB(t, &Course{}, &Module{}, &lesson.Lesson{})
}

// seed creates a course whose modules hold the given number of lessons.
func seed(t *testing.T, db *gorm.DB, drip string, sizes ...int) (Course, []lesson.Lesson) {
	t.Helper()
	c, err := Create(db, CreateInput{Title: "Go", DripFeed: drip})
	require.NoError(t, err)

	var lessons []lesson.Lesson
	for mi, size := range sizes {
		m, err := CreateModule(db, c.ID, "Module", nil)
		require.NoError(t, err)
		assert.Equal(t, mi, m.SortOrder)
		for li := 0; li < size; li++ {
			l, err := lesson.Create(db, lesson.CreateInput{CourseID: c.ID, ModuleID: m.ID, Title: "Lesson"})
			require.NoError(t, err)
			lessons = append(lessons, l)
		}
	}
	return c, lessons
}

func TestCreateValidates(t *testing.T) {
	db := newDB(t)

	_, err := Create(db, CreateInput{Title: " "})
	assert.ErrorIs(t, err, ErrTitleRequired)

	_, err = Create(db, CreateInput{Title: "x", DripFeed: "hourly"})
	assert.ErrorIs(t, err, access.ErrInvalidPolicy)

	negative := types.NewMoney(-1)
	_, err = Create(db, CreateInput{Title: "x", Price: &negative})
	assert.ErrorIs(t, err, ErrNegativePrice)

	score := 101
	_, err = Create(db, CreateInput{Title: "x", ExamPassingScore: &score})
	assert.ErrorIs(t, err, ErrInvalidExamRules)

	inactive := false
	c, err := Create(db, CreateInput{Title: "x", Active: &inactive})
	require.NoError(t, err)
	stored, err := Get(db, c.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
	assert.Equal(t, access.DripOff, stored.DripFeed)
	assert.True(t, stored.IsFree())
	assert.Equal(t, defaultPassingScore, stored.ExamPassingScore)
}

func TestSnapshotFollowsCurriculumOrder(t *testing.T) {
	db := newDB(t)
	c, lessons := seed(t, db, "daily", 2, 1)

	// Move the first module's second lesson to the front.
	first := 0
	_, err := lesson.Update(db, c.ID, lessons[1].ID, lesson.UpdateInput{Order: &first})
	require.NoError(t, err)
	later := 5
	_, err = lesson.Update(db, c.ID, lessons[0].ID, lesson.UpdateInput{Order: &later})
	require.NoError(t, err)

	full, err := GetWithCurriculum(db, c.ID)
	require.NoError(t, err)
	snap := full.Snapshot()

	assert.Equal(t, access.DripDaily, snap.DripFeed)
	require.Equal(t, 3, snap.TotalLessons())
	ids := []uuid.UUID{}
	for _, l := range snap.Lessons() {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []uuid.UUID{lessons[1].ID, lessons[0].ID, lessons[2].ID}, ids)
}

func TestUpdateAndModules(t *testing.T) {
	db := newDB(t)
	c, lessons := seed(t, db, "off", 1, 1)

	drip := "weekly"
	updated, err := Update(db, c.ID, UpdateInput{DripFeed: &drip})
	require.NoError(t, err)
	assert.Equal(t, access.DripWeekly, updated.DripFeed)

	bad := "monthly"
	_, err = Update(db, c.ID, UpdateInput{DripFeed: &bad})
	assert.ErrorIs(t, err, access.ErrInvalidPolicy)

	title := "Renamed"
	m, err := UpdateModule(db, c.ID, lessons[0].ModuleID, &title, nil)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", m.Title)

	require.NoError(t, DeleteModule(db, c.ID, lessons[0].ModuleID))
	assert.ErrorIs(t, DeleteModule(db, c.ID, lessons[0].ModuleID), ErrModuleNotFound)
	_, err = lesson.Get(db, c.ID, lessons[0].ID)
	assert.ErrorIs(t, err, lesson.ErrLessonNotFound)

	full, err := GetWithCurriculum(db, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, full.Snapshot().TotalLessons())

	require.NoError(t, Delete(db, c.ID))
	assert.ErrorIs(t, Delete(db, c.ID), ErrCourseNotFound)
}

func TestCatalogCachesAndInvalidates(t *testing.T) {
	db := newDB(t)
	c, lessons := seed(t, db, "off", 2)
	store := cache.NewMemoryCache()
	catalog := NewCatalog(db, store, time.Minute, logger.Discard())
	ctx := context.Background()

	snap, err := catalog.CourseSnapshot(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.TotalLessons())

	n, err := store.Exists(ctx, snapshotKey(c.ID, "0"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// A write behind the catalog's back is invisible until invalidation.
	require.NoError(t, lesson.Delete(db, c.ID, lessons[0].ID))
	snap, err = catalog.CourseSnapshot(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.TotalLessons())

	require.NoError(t, catalog.Invalidate(ctx, c.ID))
	snap, err = catalog.CourseSnapshot(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.TotalLessons())
}

// interleavedStore runs beforeSet ahead of the first write, standing in for
// an invalidation that lands while a snapshot load is in flight.
type interleavedStore struct {
	cache.Client
	beforeSet func()
}

func (s *interleavedStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if hook := s.beforeSet; hook != nil {
		s.beforeSet = nil
		hook()
	}
	return s.Client.Set(ctx, key, value, expiration)
}

func TestCatalogDropsSnapshotLoadedBeforeInvalidate(t *testing.T) {
	db := newDB(t)
	c, lessons := seed(t, db, "off", 2)
	store := &interleavedStore{Client: cache.NewMemoryCache()}
	catalog := NewCatalog(db, store, time.Minute, logger.Discard())
	ctx := context.Background()

	store.beforeSet = func() {
		require.NoError(t, lesson.Delete(db, c.ID, lessons[0].ID))
		require.NoError(t, catalog.Invalidate(ctx, c.ID))
	}

	snap, err := catalog.CourseSnapshot(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.TotalLessons())

	snap, err = catalog.CourseSnapshot(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.TotalLessons())

	n, err := store.Exists(ctx, snapshotKey(c.ID, "1"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestCatalogNotFound(t *testing.T) {
	db := newDB(t)
	catalog := NewCatalog(db, nil, time.Minute, logger.Discard())

	_, err := catalog.CourseSnapshot(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	assert.ErrorIs(t, err, ErrCourseNotFound)
}

func TestGetByIDHidesInactiveAndContentFromLearners(t *testing.T) {
	db := newDB(t)
	c, lessons := seed(t, db, "off", 1)
	body := "secret"
	_, err := lesson.Update(db, c.ID, lessons[0].ID, lesson.UpdateInput{Content: &body})
	require.NoError(t, err)

	h := NewHandler(db, logger.Discard(), NewCatalog(db, nil, time.Minute, logger.Discard()))
	student := middleware.User{ID: uuid.New(), UserType: types.UserTypeStudent, Active: true}
	staff := middleware.User{ID: uuid.New(), UserType: types.UserTypeInstructor, Active: true}

	get := func(usr middleware.User) *httptest.ResponseRecorder {
		r := testutil.Router()
		RegisterRoutes(r.Group("/api"), h, []gin.HandlerFunc{testutil.As(usr)}, []gin.HandlerFunc{testutil.As(usr)})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/courses/"+c.ID.String(), nil))
		return w
	}

	w := get(student)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")

	w = get(staff)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "secret")

	inactive := false
	_, err = Update(db, c.ID, UpdateInput{Active: &inactive})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, get(student).Code)
	assert.Equal(t, http.StatusOK, get(staff).Code)

	r := testutil.Router()
	RegisterRoutes(r.Group("/api"), h, nil, nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/courses/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, false, envelope["success"])
}
