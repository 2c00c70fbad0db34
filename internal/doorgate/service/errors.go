package service

import "errors"

var (
	// ErrValidation marks missing or empty input. Nothing is mutated.
	ErrValidation = errors.New("invalid request")

	ErrMissingParameter = wrap(ErrValidation, "door and rfiduid are required")
	ErrEmptyBadge       = wrap(ErrValidation, "no uid")

	// ErrUnauthorized is deliberately generic: callers must not learn which
	// check failed.
	ErrUnauthorized = errors.New("unauthorized")

	ErrNoDoor = wrap(ErrUnauthorized, "no door")
	ErrNoUser = wrap(ErrUnauthorized, "no user")

	// ErrThrottled means the same badge was accepted less than the cooldown ago.
	ErrThrottled = errors.New("too many attempts")

	// Interactive action rejections.
	ErrActionCount   = errors.New("action verification failed")
	ErrSignature     = errors.New("data verification failed")
	ErrUnknownAction = errors.New("action unknown")
	ErrActionDoor    = wrap(ErrSignature, "door unknown")
)

type wrappedError struct {
	parent error
	msg    string
}

func (e *wrappedError) Error() string { return e.msg }
func (e *wrappedError) Unwrap() error { return e.parent }

func wrap(parent error, msg string) error {
	return &wrappedError{parent: parent, msg: msg}
}
