package enrollment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mo-amir99/lms-progress-server/internal/access"
	"github.com/mo-amir99/lms-progress-server/internal/features/course"
	"github.com/mo-amir99/lms-progress-server/internal/features/lesson"
	"github.com/mo-amir99/lms-progress-server/internal/features/user"
	"github.com/mo-amir99/lms-progress-server/internal/middleware"
	"github.com/mo-amir99/lms-progress-server/internal/services/progress"
	"github.com/mo-amir99/lms-progress-server/internal/testutil"
	"github.com/mo-amir99/lms-progress-server/pkg/email"
	"github.com/mo-amir99/lms-progress-server/pkg/logger"
	"github.com/mo-amir99/lms-progress-server/pkg/types"
)

// monday is a fixed enrollment instant; the week of 2024-01-08 starts on a Monday.
var monday = time.Date(2024, time.January, 8, 9, 0, 0, 0, time.UTC)

type env struct {
	db      *gorm.DB
	learner user.User
	course  course.Course
	lessons []lesson.Lesson
	store   *Store
	catalog *course.Catalog
	service *progress.Service
	now     time.Time
}

func newEnv(t *testing.T, drip string, price float64, lessons int) *env {
	t.Helper()

	db := testutil.DB(t, &user.User{}, &course.Course{}, &course.Module{}, &lesson.Lesson{}, &Enrollment{}, &LessonCompletion{})

	learner, err := user.Create(db, user.CreateInput{FullName: "Ada Learner", Email: "ada@example.com", Password: "password123"})
	require.NoError(t, err)

	p := types.NewMoney(price)
	crs, err := course.Create(db, course.CreateInput{Title: "Go Basics", DripFeed: drip, Price: &p})
	require.NoError(t, err)
	mod, err := course.CreateModule(db, crs.ID, "Intro", nil)
	require.NoError(t, err)

	e := &env{db: db, learner: learner, course: crs, store: NewStore(db), now: monday}
	for i := 0; i < lessons; i++ {
		l, err := lesson.Create(db, lesson.CreateInput{CourseID: crs.ID, ModuleID: mod.ID, Title: "Lesson", Content: "body"})
		require.NoError(t, err)
		e.lessons = append(e.lessons, l)
	}

	e.catalog = course.NewCatalog(db, nil, time.Minute, logger.Discard())
	e.service = progress.NewService(e.catalog, e.store, logger.Discard(),
		progress.WithClock(func() time.Time { return e.now }))
	return e
}

func (e *env) enroll(t *testing.T) {
	t.Helper()
	_, err := e.store.CreateEnrollment(context.Background(), progress.EnrollRequest{
		UserID:        e.learner.ID,
		CourseID:      e.course.ID,
		EnrolledAt:    monday,
		PaymentMethod: types.PaymentMethodFree,
	})
	require.NoError(t, err)
}

func (e *env) patch(t *testing.T, idx ...int) access.MergePatch {
	t.Helper()
	snapshot, err := e.catalog.CourseSnapshot(context.Background(), e.course.ID)
	require.NoError(t, err)

	ids := make([]uuid.UUID, 0, len(idx))
	for _, i := range idx {
		ids = append(ids, e.lessons[i].ID)
	}
	return access.MergePatch{AddLessons: ids, Course: snapshot}
}

func TestCreateEnrollmentRejectsDuplicate(t *testing.T) {
	e := newEnv(t, "off", 0, 1)
	e.enroll(t)

	_, err := e.store.CreateEnrollment(context.Background(), progress.EnrollRequest{UserID: e.learner.ID, CourseID: e.course.ID, EnrolledAt: monday})
	assert.ErrorIs(t, err, progress.ErrAlreadyEnrolled)

	_, err = e.store.GetEnrollment(context.Background(), uuid.New(), e.course.ID)
	assert.ErrorIs(t, err, progress.ErrEnrollmentNotFound)
}

func TestMergeIsIdempotent(t *testing.T) {
	e := newEnv(t, "off", 0, 2)
	e.enroll(t)
	ctx := context.Background()

	first, err := e.store.MergeEnrollment(ctx, e.learner.ID, e.course.ID, e.patch(t, 0))
	require.NoError(t, err)
	assert.Equal(t, 50, first.Enrollment.Progress)
	assert.False(t, first.BecameCompleted)

	again, err := e.store.MergeEnrollment(ctx, e.learner.ID, e.course.ID, e.patch(t, 0))
	require.NoError(t, err)
	assert.Equal(t, 50, again.Enrollment.Progress)
	assert.Equal(t, 1, again.Enrollment.CompletedLessons.Len())

	done, err := e.store.MergeEnrollment(ctx, e.learner.ID, e.course.ID, e.patch(t, 1, 0))
	require.NoError(t, err)
	assert.True(t, done.BecameCompleted)
	assert.True(t, done.Enrollment.Completed)

	repeat, err := e.store.MergeEnrollment(ctx, e.learner.ID, e.course.ID, e.patch(t, 1))
	require.NoError(t, err)
	assert.False(t, repeat.BecameCompleted)

	rec, err := e.store.Get(ctx, e.learner.ID, e.course.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, rec.Progress)
	require.NotNil(t, rec.CompletedAt)
}

func TestConcurrentMergesKeepEveryLesson(t *testing.T) {
	e := newEnv(t, "off", 0, 8)
	e.enroll(t)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)
	for i := range e.lessons {
		patch := e.patch(t, i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.store.MergeEnrollment(context.Background(), e.learner.ID, e.course.ID, patch)
			assert.NoError(t, err)
			if res.BecameCompleted {
				mu.Lock()
				completed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, err := e.store.GetEnrollment(context.Background(), e.learner.ID, e.course.ID)
	require.NoError(t, err)
	assert.Equal(t, len(e.lessons), got.CompletedLessons.Len())
	assert.True(t, got.Completed)
	assert.Equal(t, 1, completed)
}

func TestDeletedLessonLeavesStaleCompletion(t *testing.T) {
	e := newEnv(t, "off", 0, 2)
	e.enroll(t)
	ctx := context.Background()

	_, err := e.store.MergeEnrollment(ctx, e.learner.ID, e.course.ID, e.patch(t, 0))
	require.NoError(t, err)
	require.NoError(t, lesson.Delete(e.db, e.course.ID, e.lessons[0].ID))

	got, err := e.store.GetEnrollment(ctx, e.learner.ID, e.course.ID)
	require.NoError(t, err)
	assert.True(t, got.CompletedLessons.Has(e.lessons[0].ID))

	status, err := e.service.Status(ctx, e.learner.ID, e.course.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Evaluation.Progress.Percent)
	assert.Equal(t, 1, status.Evaluation.Total)
}

func TestDeleteRemovesCompletions(t *testing.T) {
	e := newEnv(t, "off", 0, 1)
	e.enroll(t)
	ctx := context.Background()

	_, err := e.store.MergeEnrollment(ctx, e.learner.ID, e.course.ID, e.patch(t, 0))
	require.NoError(t, err)
	require.NoError(t, e.store.Delete(ctx, e.learner.ID, e.course.ID))

	var count int64
	require.NoError(t, e.db.Model(&LessonCompletion{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.ErrorIs(t, e.store.Delete(ctx, e.learner.ID, e.course.ID), progress.ErrEnrollmentNotFound)
}

func (e *env) router(usr middleware.User) *gin.Engine {
	r := testutil.Router()
	h := NewHandler(e.db, logger.Discard(), e.store, e.service)
	mw := []gin.HandlerFunc{testutil.As(usr)}
	RegisterRoutes(r.Group("/api"), h, mw, mw)
	return r
}

func (e *env) student() middleware.User {
	return middleware.User{ID: e.learner.ID, Email: e.learner.Email, UserType: types.UserTypeStudent, Active: true}
}

func do(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestEnrollHandlerChecksPayment(t *testing.T) {
	e := newEnv(t, "off", 49.99, 1)
	r := e.router(e.student())
	path := "/api/courses/" + e.course.ID.String() + "/enroll"

	w := do(r, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, path, map[string]interface{}{"paymentMethod": "stripe", "amountPaid": "10.00"})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	w = do(r, http.MethodPost, path, map[string]interface{}{"paymentMethod": "stripe", "amountPaid": "49.99", "paymentReference": "pi_123"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"paymentMethod":"stripe"`)

	w = do(r, http.MethodPost, path, map[string]interface{}{"paymentMethod": "stripe", "amountPaid": "49.99"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestEnrollHandlerUnknownCourse(t *testing.T) {
	e := newEnv(t, "off", 0, 1)
	r := e.router(e.student())

	w := do(r, http.MethodPost, "/api/courses/"+uuid.NewString()+"/enroll", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPost, "/api/courses/not-a-uuid/enroll", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompleteAndViewRespectDrip(t *testing.T) {
	e := newEnv(t, "daily", 0, 3)
	e.enroll(t)
	r := e.router(e.student())
	base := "/api/courses/" + e.course.ID.String()

	w := do(r, http.MethodPost, base+"/lessons/complete", map[string]interface{}{
		"lessonIds": []string{e.lessons[0].ID.String(), e.lessons[1].ID.String()},
	})
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), e.lessons[1].ID.String())

	w = do(r, http.MethodGet, base+"/lessons/"+e.lessons[1].ID.String()+"/view", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodGet, base+"/lessons/"+e.lessons[0].ID.String()+"/view", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"content":"body"`)

	// Wednesday unlocks the third weekday's lesson.
	e.now = monday.AddDate(0, 0, 2)
	w = do(r, http.MethodPost, base+"/lessons/complete", map[string]interface{}{
		"lessonIds": []string{e.lessons[0].ID.String(), e.lessons[1].ID.String(), uuid.NewString()},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data progress.CompletionResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.Applied, 2)
	assert.Len(t, resp.Data.Rejected, 1)
	assert.Equal(t, 67, resp.Data.Progress.Percent)

	w = do(r, http.MethodGet, base+"/progress", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"unlocked":3`)
	assert.Contains(t, w.Body.String(), `"progress":67`)
}

func TestProgressFollowsCurriculumEdits(t *testing.T) {
	e := newEnv(t, "off", 0, 2)
	e.enroll(t)
	r := e.router(e.student())
	base := "/api/courses/" + e.course.ID.String()

	w := do(r, http.MethodPost, base+"/lessons/complete", map[string]interface{}{
		"lessonIds": []string{e.lessons[0].ID.String(), e.lessons[1].ID.String()},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	_, err := lesson.Create(e.db, lesson.CreateInput{CourseID: e.course.ID, ModuleID: e.lessons[0].ModuleID, Title: "Added later", Content: "new"})
	require.NoError(t, err)

	w = do(r, http.MethodGet, base+"/progress", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Progress     int  `json:"progress"`
			Completed    bool `json:"completed"`
			Total        int  `json:"total"`
			ExamUnlocked bool `json:"examUnlocked"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 67, resp.Data.Progress)
	assert.False(t, resp.Data.Completed)
	assert.Equal(t, 3, resp.Data.Total)
	assert.False(t, resp.Data.ExamUnlocked)

	_, err = e.service.CheckExamEligibility(context.Background(), e.learner.ID, e.course.ID)
	assert.ErrorIs(t, err, access.ErrAccessDenied)
}

func TestProgressRequiresEnrollment(t *testing.T) {
	e := newEnv(t, "off", 0, 1)
	r := e.router(e.student())

	w := do(r, http.MethodGet, "/api/courses/"+e.course.ID.String()+"/progress", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodPost, "/api/courses/"+e.course.ID.String()+"/lessons/complete", map[string]interface{}{"lessonIds": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResetAndMyEnrollments(t *testing.T) {
	e := newEnv(t, "off", 0, 1)
	e.enroll(t)
	r := e.router(e.student())

	w := do(r, http.MethodGet, "/api/me/enrollments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Go Basics")

	w = do(r, http.MethodDelete, "/api/courses/"+e.course.ID.String()+"/enrollments/"+e.learner.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodDelete, "/api/courses/"+e.course.ID.String()+"/enrollments/"+e.learner.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/api/courses/"+e.course.ID.String()+"/progress", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

type fakeSender struct {
	mu   sync.Mutex
	sent []email.EmailOptions
	err  error
}

func (f *fakeSender) SendEmail(opts email.EmailOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, opts)
	return nil
}

func TestDripDigestSendsOncePerUnlock(t *testing.T) {
	e := newEnv(t, "daily", 0, 5)
	e.enroll(t)

	sender := &fakeSender{}
	job := NewDripDigestJob(e.db, e.catalog, access.NewScheduler(time.UTC), sender, "https://lms.example.com/", logger.Discard())
	ctx := context.Background()

	job.now = func() time.Time { return monday }
	require.NoError(t, job.Execute(ctx))
	assert.Empty(t, sender.sent)

	job.now = func() time.Time { return monday.AddDate(0, 0, 2) }
	require.NoError(t, job.Execute(ctx))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "ada@example.com", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].Text, "3 of 5")
	assert.Contains(t, sender.sent[0].Text, "https://lms.example.com/courses/"+e.course.ID.String())

	require.NoError(t, job.Execute(ctx))
	assert.Len(t, sender.sent, 1)

	rec, err := e.store.Get(ctx, e.learner.ID, e.course.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.NotifiedUnlocked)
}

func TestDripDigestSkipsOnSendFailure(t *testing.T) {
	e := newEnv(t, "weekly", 0, 3)
	e.enroll(t)

	sender := &fakeSender{err: assert.AnError}
	job := NewDripDigestJob(e.db, e.catalog, access.NewScheduler(time.UTC), sender, "https://lms.example.com", logger.Discard())
	job.now = func() time.Time { return monday.AddDate(0, 0, 8) }

	require.NoError(t, job.Execute(context.Background()))

	rec, err := e.store.Get(context.Background(), e.learner.ID, e.course.ID)
	require.NoError(t, err)
	assert.Zero(t, rec.NotifiedUnlocked)
}
