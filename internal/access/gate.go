package access

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LessonState is the per-learner state of one lesson.
type LessonState string

const (
	StateLocked    LessonState = "locked"
	StateUnlocked  LessonState = "unlocked"
	StateCompleted LessonState = "completed"
)

// StateOf resolves a lesson's state from its index. Completed wins over the
// drip threshold because completion is terminal.
func StateOf(index, unlocked int, completed bool) LessonState {
	switch {
	case completed:
		return StateCompleted
	case index < unlocked:
		return StateUnlocked
	default:
		return StateLocked
	}
}

// LessonStatus pairs a lesson with its state.
type LessonStatus struct {
	LessonID uuid.UUID   `json:"lessonId"`
	ModuleID uuid.UUID   `json:"moduleId"`
	Title    string      `json:"title"`
	Index    int         `json:"index"`
	State    LessonState `json:"state"`
}

// Evaluation is everything a learner sees about their standing in a course.
type Evaluation struct {
	Unlocked     int            `json:"unlocked"`
	Total        int            `json:"total"`
	Progress     Progress       `json:"progress"`
	Lessons      []LessonStatus `json:"lessons"`
	ExamUnlocked bool           `json:"examUnlocked"`
}

// CompletionPlan is the outcome of validating a completion batch.
type CompletionPlan struct {
	// Accepted holds ids to merge, including ones that were already complete.
	Accepted []uuid.UUID
	// Rejected holds ids that are not in the current curriculum.
	Rejected []uuid.UUID
}

// Gate applies the access rules for a course.
type Gate struct {
	Scheduler Scheduler
}

// NewGate builds a gate whose drip dates are evaluated in loc.
func NewGate(loc *time.Location) Gate {
	return Gate{Scheduler: NewScheduler(loc)}
}

// Evaluate reports unlocks, progress and per-lesson state at now.
func (g Gate) Evaluate(course Course, enrollment Enrollment, now time.Time) (Evaluation, error) {
	unlocked, err := g.Scheduler.UnlockedCount(course, enrollment.EnrolledAt, now)
	if err != nil {
		return Evaluation{}, err
	}

	progress := ComputeProgress(enrollment.CompletedLessons, course)
	eval := Evaluation{
		Unlocked:     unlocked,
		Total:        course.TotalLessons(),
		Progress:     progress,
		Lessons:      make([]LessonStatus, 0, course.TotalLessons()),
		ExamUnlocked: progress.Completed,
	}

	idx := 0
	for _, m := range course.Modules {
		for _, l := range m.Lessons {
			eval.Lessons = append(eval.Lessons, LessonStatus{
				LessonID: l.ID,
				ModuleID: m.ID,
				Title:    l.Title,
				Index:    idx,
				State:    StateOf(idx, unlocked, enrollment.CompletedLessons.Has(l.ID)),
			})
			idx++
		}
	}

	return eval, nil
}

// PlanCompletion validates a completion request. Ids outside the curriculum
// are rejected individually; any locked id fails the whole batch with
// ErrAccessDenied so the enrollment stays untouched.
func (g Gate) PlanCompletion(course Course, enrollment Enrollment, requested []uuid.UUID, now time.Time) (CompletionPlan, error) {
	unlocked, err := g.Scheduler.UnlockedCount(course, enrollment.EnrolledAt, now)
	if err != nil {
		return CompletionPlan{}, err
	}

	var plan CompletionPlan
	seen := make(LessonSet, len(requested))
	for _, id := range requested {
		if !seen.Add(id) {
			continue
		}

		idx, ok := course.LessonIndex(id)
		if !ok {
			plan.Rejected = append(plan.Rejected, id)
			continue
		}

		if StateOf(idx, unlocked, enrollment.CompletedLessons.Has(id)) == StateLocked {
			return CompletionPlan{}, lessonErr(id, ErrAccessDenied)
		}
		plan.Accepted = append(plan.Accepted, id)
	}

	return plan, nil
}

// CanView checks whether a lesson may be opened at now.
func (g Gate) CanView(course Course, enrollment Enrollment, lessonID uuid.UUID, now time.Time) error {
	idx, ok := course.LessonIndex(lessonID)
	if !ok {
		return lessonErr(lessonID, ErrStaleLessonReference)
	}

	unlocked, err := g.Scheduler.UnlockedCount(course, enrollment.EnrolledAt, now)
	if err != nil {
		return err
	}

	if StateOf(idx, unlocked, enrollment.CompletedLessons.Has(lessonID)) == StateLocked {
		return lessonErr(lessonID, ErrAccessDenied)
	}
	return nil
}

// ExamEligible allows the final exam only when every lesson of the current
// curriculum is complete. The stored Completed flag is not consulted: a lesson
// added after completion locks the exam again.
func ExamEligible(course Course, enrollment Enrollment) error {
	progress := ComputeProgress(enrollment.CompletedLessons, course)
	if !progress.Completed {
		return fmt.Errorf("%w: exam requires a completed course (progress %d%%)", ErrAccessDenied, progress.Percent)
	}
	return nil
}

// CertificateEligible requires a completed course and a passing exam.
func CertificateEligible(course Course, enrollment Enrollment, passedExam bool) error {
	if err := ExamEligible(course, enrollment); err != nil {
		return err
	}
	if !passedExam {
		return fmt.Errorf("%w: certificate requires a passing exam submission", ErrAccessDenied)
	}
	return nil
}
