package access

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestComputeProgressHalfThenFull(t *testing.T) {
	course := newCourse(DripOff, 2, 2)
	lessons := course.Lessons()

	completed := NewLessonSet(lessons[0].ID, lessons[1].ID)
	assert.Equal(t, Progress{Percent: 50, Completed: false}, ComputeProgress(completed, course))

	completed.Add(lessons[2].ID)
	completed.Add(lessons[3].ID)
	assert.Equal(t, Progress{Percent: 100, Completed: true}, ComputeProgress(completed, course))
}

func TestComputeProgressIdempotent(t *testing.T) {
	course := newCourse(DripOff, 3)
	id := course.Lessons()[1].ID

	once := NewLessonSet(id)
	twice := NewLessonSet(id)
	assert.False(t, twice.Add(id))

	assert.Equal(t, once, twice)
	assert.Equal(t, ComputeProgress(once, course), ComputeProgress(twice, course))
}

func TestComputeProgressIgnoresStaleIDs(t *testing.T) {
	course := newCourse(DripOff, 4)
	completed := NewLessonSet(course.Lessons()[0].ID)

	before := ComputeProgress(completed, course)
	completed.Add(uuid.New())
	after := ComputeProgress(completed, course)

	assert.Equal(t, before, after)
	assert.Equal(t, 25, after.Percent)
}

func TestComputeProgressRounding(t *testing.T) {
	course := newCourse(DripOff, 3)
	lessons := course.Lessons()

	assert.Equal(t, 33, ComputeProgress(NewLessonSet(lessons[0].ID), course).Percent)
	assert.Equal(t, 67, ComputeProgress(NewLessonSet(lessons[0].ID, lessons[1].ID), course).Percent)
}

func TestComputeProgressEmptyCourse(t *testing.T) {
	got := ComputeProgress(NewLessonSet(uuid.New()), newCourse(DripOff))
	assert.Equal(t, Progress{}, got)
}

func TestComputeProgressBounds(t *testing.T) {
	course := newCourse(DripOff, 5, 2)
	completed := NewLessonSet()

	for _, l := range course.Lessons() {
		completed.Add(l.ID)
		completed.Add(uuid.New())

		p := ComputeProgress(completed, course)
		assert.GreaterOrEqual(t, p.Percent, 0)
		assert.LessOrEqual(t, p.Percent, 100)
		assert.Equal(t, p.Percent == 100, p.Completed)
	}
}

func TestLessonSetSliceIsSorted(t *testing.T) {
	set := NewLessonSet(uuid.New(), uuid.New(), uuid.New())
	ids := set.Slice()

	assert.Len(t, ids, 3)
	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i-1].String(), ids[i].String())
	}
}
