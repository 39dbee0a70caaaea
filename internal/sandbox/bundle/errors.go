package bundle

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("tool bundle not found")
	ErrTransport = errors.New("tool bundle source unavailable")
	ErrInvalid   = errors.New("tool bundle malformed")
)

// ErrorKind classifies resolution failures.
type ErrorKind string

const (
	KindNotFound  ErrorKind = "not_found"
	KindTransport ErrorKind = "transport"
	KindInvalid   ErrorKind = "invalid"
)

// ResolveError is the typed failure of a bundle lookup.
type ResolveError struct {
	Slug string
	Kind ErrorKind
	Err  error
}

func (e *ResolveError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("resolve tool %q: %s", e.Slug, e.Kind)
	}
	return fmt.Sprintf("resolve tool %q: %s: %v", e.Slug, e.Kind, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *ResolveError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrInvalid:
		return e.Kind == KindInvalid
	}
	return false
}

// NotFound builds a not_found ResolveError.
func NotFound(slug string) *ResolveError {
	return &ResolveError{Slug: slug, Kind: KindNotFound}
}

// KindOf returns the kind of a resolution error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}
