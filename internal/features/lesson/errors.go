package lesson

import "errors"

var (
	ErrLessonNotFound = errors.New("lesson not found")
	ErrModuleNotFound = errors.New("module not found in this course")
	ErrTitleRequired  = errors.New("lesson title is required")
	ErrInvalidLink    = errors.New("youtube links must be http(s) URLs")
)
