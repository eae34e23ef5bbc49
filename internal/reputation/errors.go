package reputation

import (
	"errors"
	"fmt"
)

// Kind classifies reputation failures
type Kind string

const (
	KindTimeout   Kind = "timeout"
	KindCanceled  Kind = "canceled"
	KindTransport Kind = "transport"
	KindAuth      Kind = "auth"
	KindProtocol  Kind = "protocol"
)

// Error is returned by Query. Callers downgrade it to an absent score.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reputation %s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("reputation %s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a reputation error of the given kind
func IsKind(err error, kind Kind) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == kind
}
