package service

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid step transition")
	ErrStepLocked        = errors.New("step is locked")
	ErrNotInitialized    = errors.New("workflow not initialized")
)
