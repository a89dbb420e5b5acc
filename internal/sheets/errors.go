package sheets

import (
	"errors"
	"fmt"
)

// Backend error kinds. Adapters wrap their native errors in *Error so callers
// can branch with errors.Is.
var (
	ErrNotFound         = errors.New("spreadsheet not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrAuth             = errors.New("backend authentication failed")
	ErrDuplicateSheet   = errors.New("sheet already exists")
	ErrSheetNotFound    = errors.New("sheet not found")
	ErrBackend          = errors.New("backend request failed")
)

// Error is a classified backend failure.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewError builds a classified error.
func NewError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// IsCredentialError reports whether err needs out-of-band remediation
// (credentials, sharing) rather than a retry.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrAuth) || errors.Is(err, ErrPermissionDenied)
}
