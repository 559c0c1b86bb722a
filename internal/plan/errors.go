package plan

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by plan construction and validation. Construction
// errors abort the planning call; validation findings are diagnostic only.
var (
	ErrSourceNotFound      = errors.New("source not found")
	ErrProbeFailed         = errors.New("media probe failed")
	ErrDegenerateStretch   = errors.New("source duration not positive for stretch")
	ErrUnresolvedReference = errors.New("unresolved effect reference")
	ErrBadArity            = errors.New("transition requires exactly two inputs")
	ErrExcessiveDuration   = errors.New("segment duration exceeds ceiling")
)

// Error is a structured planning failure: the kind, the offending segment
// or effect, and a human-readable detail. It unwraps to its kind so callers
// can match with errors.Is.
type Error struct {
	Kind    error
	Subject string // segment or effect id, may be empty
	Detail  string
}

func (e *Error) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("%v (%s): %s", e.Kind, e.Subject, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func planErr(kind error, subject, format string, args ...any) *Error {
	return &Error{Kind: kind, Subject: subject, Detail: fmt.Sprintf(format, args...)}
}
