package apperrors

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
)

var (
	ErrNoActiveSession     = wrap(ErrNotFound, "no active session")
	ErrActiveSessionExists = wrap(ErrConflict, "active session already exists")
	ErrAlreadyPaused       = wrap(ErrConflict, "session is already paused")
	ErrNotPaused           = wrap(ErrConflict, "session is not paused")
	ErrSessionEnded        = wrap(ErrConflict, "session has already ended")
	ErrStaleVersion        = wrap(ErrConflict, "stale version")
	ErrAlreadyLearned      = wrap(ErrConflict, "session already learned")
	ErrProfileNotFound     = wrap(ErrNotFound, "profile not found")
	ErrSessionNotFound     = wrap(ErrNotFound, "session not found")
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
	KindInternal   Kind = "internal"
)

// KindOf classifies err for callers that only need the coarse category.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return KindValidation
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

func wrap(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}
