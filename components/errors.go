package components

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAlreadyLoaded signals that the target table exists and the load policy
// forbids touching it. Callers treat this as a skip, not a failure.
var ErrAlreadyLoaded = errors.New("target table already loaded")

// TransientError marks a failure that is worth retrying: network faults,
// non-200 responses from the source, warehouse exec errors.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err so IsTransient reports true for it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// Transientf builds a transient error from a format string.
func Transientf(format string, args ...interface{}) error {
	return &TransientError{Err: fmt.Errorf(format, args...)}
}

// IsTransient reports whether err (or anything it wraps) is retryable.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// SchemaDriftError reports a source artifact whose columns no longer map onto
// the canonical layout. It is permanent: retrying the same file cannot fix it.
type SchemaDriftError struct {
	Artifact string
	Missing  []string // canonical columns absent after renaming.
	Reason   string   // free-text cause when Missing does not apply, e.g. a rename collision.
}

func (e *SchemaDriftError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("schema drift in %v: %v", e.Artifact, e.Reason)
	}
	return fmt.Sprintf("schema drift in %v: missing canonical columns: %v", e.Artifact, strings.Join(e.Missing, ", "))
}
