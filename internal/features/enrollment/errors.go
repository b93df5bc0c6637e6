package enrollment

import "errors"

var (
	ErrCourseUnavailable    = errors.New("course is not open for enrollment")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrPaymentRequired      = errors.New("payment does not cover the course price")
)
