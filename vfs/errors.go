package vfs

import (
	"errors"
	"fmt"
)

// ErrorKind classifies the expected conditions a backend operation can
// report. Anything outside this set is an infrastructure fault and
// travels as a plain error.
type ErrorKind string

const (
	KindNotFound       ErrorKind = "not_found"
	KindAlreadyExists  ErrorKind = "already_exists"
	KindAmbiguousMatch ErrorKind = "ambiguous_match"
	KindNoMatch        ErrorKind = "no_match"
	KindNotInitialized ErrorKind = "not_initialized"
	KindInvalidPath    ErrorKind = "invalid_path"
)

// OpError is an expected, per-operation condition. Callers branch on
// Kind; Message is for humans and logs only.
type OpError struct {
	Kind    ErrorKind
	Path    string
	Message string
}

func (e *OpError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// AsOpError extracts an *OpError from an error chain.
func AsOpError(err error) (*OpError, bool) {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}

// ErrNotFound builds the condition reported when no file exists at path.
func ErrNotFound(path string) *OpError {
	return &OpError{Kind: KindNotFound, Path: path, Message: fmt.Sprintf("file %q not found", path)}
}

// ErrAlreadyExists builds the condition reported when Write targets an
// occupied path.
func ErrAlreadyExists(path string) *OpError {
	return &OpError{Kind: KindAlreadyExists, Path: path, Message: fmt.Sprintf("file %q already exists, use edit to modify it", path)}
}

// ErrAmbiguousMatch builds the condition reported when an edit target
// occurs more than once without replaceAll.
func ErrAmbiguousMatch(path string, occurrences int) *OpError {
	return &OpError{Kind: KindAmbiguousMatch, Path: path,
		Message: fmt.Sprintf("text occurs %d times in %q, pass replaceAll to replace every occurrence", occurrences, path)}
}

// ErrNoMatch builds the condition reported when an edit target does not
// occur in the file.
func ErrNoMatch(path, oldText string) *OpError {
	return &OpError{Kind: KindNoMatch, Path: path, Message: fmt.Sprintf("text %q not found in %q", oldText, path)}
}

// ErrNotInitialized builds the condition reported when an operation is
// issued before Initialize has completed.
func ErrNotInitialized(backendType string) *OpError {
	return &OpError{Kind: KindNotInitialized, Message: fmt.Sprintf("%s backend not initialized, call Initialize first", backendType)}
}

// ErrInvalidPath builds the condition reported when a raw path cannot
// be normalized.
func ErrInvalidPath(raw, reason string) *OpError {
	return &OpError{Kind: KindInvalidPath, Path: raw, Message: fmt.Sprintf("invalid path %q: %s", raw, reason)}
}
