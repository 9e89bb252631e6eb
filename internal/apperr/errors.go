package apperr

import (
	"errors"
	"fmt"
)

// Kind categorizes an application error.
type Kind string

const (
	// KindNotFound indicates a referenced entity does not exist or is deleted.
	KindNotFound Kind = "NOT_FOUND"

	// KindBadRequest indicates a business-rule violation.
	KindBadRequest Kind = "BAD_REQUEST"

	// KindUnsupported indicates no implementation is registered for a tag.
	KindUnsupported Kind = "UNSUPPORTED_OPERATION"
)

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound    = errors.New("not found")
	ErrBadRequest  = errors.New("bad request")
	ErrUnsupported = errors.New("unsupported operation")
)

// Error is a typed application error.
type Error struct {
	// Kind identifies the error category.
	Kind Kind

	// Message is a human-readable description.
	Message string

	// Details contains additional context (entity ids, field names).
	Details map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrBadRequest:
		return e.Kind == KindBadRequest || e.Kind == KindUnsupported
	case ErrUnsupported:
		return e.Kind == KindUnsupported
	}
	return false
}

// NotFound creates a NotFound error for the given entity.
func NotFound(entity, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s %s not found", entity, id),
		Details: map[string]string{"entity": entity, "id": id},
	}
}

// BadRequest creates a BadRequest error with a formatted message.
func BadRequest(format string, args ...any) *Error {
	return &Error{
		Kind:    KindBadRequest,
		Message: fmt.Sprintf(format, args...),
	}
}

// Unsupported creates an Unsupported error for an unregistered tag.
func Unsupported(what, tag string) *Error {
	return &Error{
		Kind:    KindUnsupported,
		Message: fmt.Sprintf("unsupported %s %q", what, tag),
		Details: map[string]string{what: tag},
	}
}

// KindOf returns the kind of err, or "" if err is not an *Error.
// Uses errors.As to handle wrapped errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IsNotFound returns true if err is a NotFound error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsBadRequest returns true if err is a BadRequest or Unsupported error.
func IsBadRequest(err error) bool {
	return errors.Is(err, ErrBadRequest)
}

// IsUnsupported returns true if err is an Unsupported error.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported)
}
