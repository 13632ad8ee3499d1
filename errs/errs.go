// Package errs defines the simulator's error taxonomy: a small set of
// sentinel kinds that every package wraps its errors around, so callers at
// any layer can use errors.Is to tell "this input was malformed" from "this
// id doesn't exist" from "an internal invariant broke."
package errs

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Wrap one of these with fmt.Errorf("...: %w", ErrX) or use
// the New helper below; errors.Is(err, errs.ErrNotFound) works either way.
var (
	ErrParse         = errors.New("parse error")
	ErrNotFound      = errors.New("not found")
	ErrOutOfRange    = errors.New("out of range")
	ErrInvariant     = errors.New("invariant violation")
	ErrIoUnavailable = errors.New("io unavailable")
	ErrCountMismatch = errors.New("count mismatch")
)

// SimError carries an operation name and a wrapped sentinel kind, so
// %v-formatting stays readable while errors.Is/errors.As keep working.
type SimError struct {
	Op   string
	Kind error
	Err  error
}

func (e *SimError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Kind)
}

func (e *SimError) Unwrap() error { return e.Kind }

// New builds a SimError for op tagged with kind, optionally wrapping a
// lower-level cause.
func New(op string, kind error, cause error) *SimError {
	return &SimError{Op: op, Kind: kind, Err: cause}
}
