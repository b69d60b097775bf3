package common

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the core. Services wrap these with context using
// fmt.Errorf("%w: ...") and the HTTP layer maps them to status codes.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")
	ErrInternal        = errors.New("internal error")
)

// Token failures are both Unauthenticated.
var (
	ErrTokenInvalid = fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	ErrTokenExpired = fmt.Errorf("%w: token expired", ErrUnauthenticated)
)

// Invalid returns an InvalidArgument error with a formatted reason.
func Invalid(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, a...))
}

// Conflict returns a Conflict error with a formatted reason.
func Conflict(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, a...))
}

// NotFound returns a NotFound error naming the missing entity.
func NotFound(entity string, id any) error {
	return fmt.Errorf("%w: %s %v", ErrNotFound, entity, id)
}

// Internal wraps a storage or other unexpected failure. Errors that already
// carry a kind are returned unchanged.
func Internal(err error) error {
	if err == nil || KindOf(err) != nil {
		return err
	}
	return fmt.Errorf("%w: %w", ErrInternal, err)
}

// KindOf returns the kind sentinel carried by err, or nil if it has none.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrUnauthenticated,
		ErrForbidden,
		ErrNotFound,
		ErrInvalidArgument,
		ErrConflict,
		ErrInternal,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
