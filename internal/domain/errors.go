package domain

import "errors"

var (
	ErrCameraUnavailable   = errors.New("camera unavailable")
	ErrWakeLockUnsupported = errors.New("wake lock unsupported")
	ErrTriggerUnsupported  = errors.New("capture trigger unsupported on native host")
	ErrSessionClosed       = errors.New("camera session closed")
	ErrInvalidFrame        = errors.New("invalid frame")
)
