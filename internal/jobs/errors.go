package jobs

import "errors"

var (
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrJobNotFound       = errors.New("job not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("concurrent update conflict")
)
