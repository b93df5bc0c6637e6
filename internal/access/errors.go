package access

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotEnrolled          = errors.New("not enrolled in course")
	ErrAccessDenied         = errors.New("access denied")
	ErrStaleLessonReference = errors.New("lesson is not part of the current curriculum")
	ErrInvalidPolicy        = errors.New("invalid drip policy")
)

// LessonError ties an access error to the lesson that caused it.
type LessonError struct {
	LessonID uuid.UUID
	Err      error
}

func (e *LessonError) Error() string {
	return fmt.Sprintf("lesson %s: %v", e.LessonID, e.Err)
}

func (e *LessonError) Unwrap() error { return e.Err }

func lessonErr(id uuid.UUID, err error) error {
	return &LessonError{LessonID: id, Err: err}
}
