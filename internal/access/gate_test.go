package access

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enrollmentFor(course Course, enrolledAt time.Time, completed ...uuid.UUID) Enrollment {
	set := NewLessonSet(completed...)
	p := ComputeProgress(set, course)
	return Enrollment{
		CourseID:         course.ID,
		UserID:           uuid.New(),
		EnrolledAt:       enrolledAt,
		CompletedLessons: set,
		Progress:         p.Percent,
		Completed:        p.Completed,
	}
}

func TestStateOf(t *testing.T) {
	assert.Equal(t, StateLocked, StateOf(3, 2, false))
	assert.Equal(t, StateUnlocked, StateOf(1, 2, false))
	assert.Equal(t, StateCompleted, StateOf(1, 2, true))
	assert.Equal(t, StateCompleted, StateOf(5, 2, true))
}

func TestEvaluate(t *testing.T) {
	course := newCourse(DripDaily, 2, 3)
	lessons := course.Lessons()
	enrollment := enrollmentFor(course, monday, lessons[0].ID)
	gate := NewGate(time.UTC)

	eval, err := gate.Evaluate(course, enrollment, day(2024, time.January, 2, 12))
	require.NoError(t, err)

	assert.Equal(t, 2, eval.Unlocked)
	assert.Equal(t, 5, eval.Total)
	assert.Equal(t, 20, eval.Progress.Percent)
	assert.False(t, eval.ExamUnlocked)
	require.Len(t, eval.Lessons, 5)

	states := make([]LessonState, 0, len(eval.Lessons))
	for _, l := range eval.Lessons {
		states = append(states, l.State)
	}
	assert.Equal(t, []LessonState{StateCompleted, StateUnlocked, StateLocked, StateLocked, StateLocked}, states)
	assert.Equal(t, course.Modules[1].ID, eval.Lessons[2].ModuleID)
	assert.Equal(t, 4, eval.Lessons[4].Index)
}

func TestPlanCompletionRejectsLockedLesson(t *testing.T) {
	course := newCourse(DripDaily, 5)
	lessons := course.Lessons()
	enrollment := enrollmentFor(course, monday)

	_, err := NewGate(time.UTC).PlanCompletion(course, enrollment, []uuid.UUID{lessons[0].ID, lessons[3].ID}, monday)
	require.ErrorIs(t, err, ErrAccessDenied)

	var lessonErr *LessonError
	require.True(t, errors.As(err, &lessonErr))
	assert.Equal(t, lessons[3].ID, lessonErr.LessonID)
	assert.Zero(t, enrollment.CompletedLessons.Len())
}

func TestPlanCompletionReportsStaleIDs(t *testing.T) {
	course := newCourse(DripOff, 3)
	valid := course.Lessons()[1].ID
	deleted := uuid.New()

	plan, err := NewGate(time.UTC).PlanCompletion(course, enrollmentFor(course, monday), []uuid.UUID{valid, deleted}, monday)
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{valid}, plan.Accepted)
	assert.Equal(t, []uuid.UUID{deleted}, plan.Rejected)
}

func TestPlanCompletionDeduplicatesAndKeepsCompleted(t *testing.T) {
	course := newCourse(DripWeekly, 4)
	first := course.Lessons()[0].ID
	enrollment := enrollmentFor(course, monday, first)

	plan, err := NewGate(time.UTC).PlanCompletion(course, enrollment, []uuid.UUID{first, first}, monday)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first}, plan.Accepted)
	assert.Empty(t, plan.Rejected)
}

func TestPlanCompletionInvalidPolicy(t *testing.T) {
	course := newCourse(DripPolicy("sometimes"), 2)

	_, err := NewGate(time.UTC).PlanCompletion(course, enrollmentFor(course, monday), []uuid.UUID{course.Lessons()[0].ID}, monday)
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestCanView(t *testing.T) {
	course := newCourse(DripWeekly, 3)
	lessons := course.Lessons()
	enrollment := enrollmentFor(course, monday)
	gate := NewGate(time.UTC)

	assert.NoError(t, gate.CanView(course, enrollment, lessons[0].ID, monday))
	assert.ErrorIs(t, gate.CanView(course, enrollment, lessons[1].ID, monday), ErrAccessDenied)
	assert.NoError(t, gate.CanView(course, enrollment, lessons[1].ID, monday.AddDate(0, 0, 7)))
	assert.ErrorIs(t, gate.CanView(course, enrollment, uuid.New(), monday), ErrStaleLessonReference)
}

func TestExamAndCertificateEligibility(t *testing.T) {
	course := newCourse(DripOff, 2)
	lessons := course.Lessons()

	partial := enrollmentFor(course, monday, lessons[0].ID)
	assert.ErrorIs(t, ExamEligible(course, partial), ErrAccessDenied)
	assert.ErrorIs(t, CertificateEligible(course, partial, true), ErrAccessDenied)

	done := enrollmentFor(course, monday, lessons[0].ID, lessons[1].ID)
	assert.NoError(t, ExamEligible(course, done))
	assert.ErrorIs(t, CertificateEligible(course, done, false), ErrAccessDenied)
	assert.NoError(t, CertificateEligible(course, done, true))
}

func TestEligibilityFollowsCurrentCurriculum(t *testing.T) {
	course := newCourse(DripOff, 2)
	lessons := course.Lessons()
	done := enrollmentFor(course, monday, lessons[0].ID, lessons[1].ID)
	require.True(t, done.Completed)

	grown := course
	grown.Modules = append([]Module(nil), course.Modules...)
	grown.Modules = append(grown.Modules, Module{ID: uuid.New(), Lessons: []Lesson{{ID: uuid.New(), Title: "Added later"}}})

	assert.ErrorIs(t, ExamEligible(grown, done), ErrAccessDenied)
	assert.ErrorIs(t, CertificateEligible(grown, done, true), ErrAccessDenied)

	current := done.Reevaluate(grown)
	assert.Equal(t, 67, current.Progress)
	assert.False(t, current.Completed)
	assert.True(t, done.Completed, "the receiver is not modified")
}
