package course

import "errors"

var (
	ErrCourseNotFound   = errors.New("course not found")
	ErrModuleNotFound   = errors.New("module not found")
	ErrTitleRequired    = errors.New("title is required")
	ErrNegativePrice    = errors.New("price cannot be negative")
	ErrInvalidExamRules = errors.New("exam passing score must be between 0 and 100 and attempts cannot be negative")
)
