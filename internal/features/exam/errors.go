package exam

import "errors"

var (
	ErrAttemptNotFound   = errors.New("exam attempt not found")
	ErrAttemptsExhausted = errors.New("no exam attempts left")
	ErrAlreadySubmitted  = errors.New("exam attempt already submitted")
	ErrInvalidScore      = errors.New("score must be between 0 and 100")
)
