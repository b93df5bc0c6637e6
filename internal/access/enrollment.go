package access

import (
	"time"

	"github.com/google/uuid"
)

// Enrollment is the per-learner, per-course progress record.
type Enrollment struct {
	UserID           uuid.UUID
	CourseID         uuid.UUID
	EnrolledAt       time.Time
	CompletedLessons LessonSet
	Progress         int
	Completed        bool
	PaymentMethod    string
}

// Reevaluate returns the enrollment with Progress and Completed derived from
// the course's current curriculum instead of the last stored merge.
func (e Enrollment) Reevaluate(course Course) Enrollment {
	p := ComputeProgress(e.CompletedLessons, course)
	e.Progress = p.Percent
	e.Completed = p.Completed
	return e
}

// MergePatch describes an additive change to an enrollment. Stores apply it
// atomically: union the lessons into the persisted set, then recompute the
// derived fields from the merged set.
type MergePatch struct {
	AddLessons []uuid.UUID
	Course     Course
}

// Recompute derives progress for the merged set.
func (p MergePatch) Recompute(merged LessonSet) Progress {
	return ComputeProgress(merged, p.Course)
}

// MergeResult is returned by stores after a merge.
type MergeResult struct {
	Enrollment Enrollment
	// BecameCompleted is true only for the merge that flipped Completed to true.
	BecameCompleted bool
}
