package domain

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidAddress         = errors.New("invalid address")
	ErrFetchUnavailable       = errors.New("position fetch unavailable")
	ErrConversionUnavailable  = errors.New("conversion unavailable")
	ErrRouteSimulationFailed  = errors.New("route simulation failed")
	ErrNoRoute                = errors.New("no swap route")
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	ErrVerificationFailed     = errors.New("snapshot verification failed")
	ErrLockHeld               = errors.New("lock already held")
)
