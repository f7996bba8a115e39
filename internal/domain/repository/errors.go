package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a duplicate or constraint violation.
	ErrConflict = errors.New("conflict")

	// ErrUnknownApplication indicates a referenced application name is not
	// registered.
	ErrUnknownApplication = errors.New("unknown application")

	// ErrUnknownCapability indicates the destination application does not
	// expose the requested capability.
	ErrUnknownCapability = errors.New("unknown capability")

	// ErrUnavailable indicates the backing store could not be reached.
	ErrUnavailable = errors.New("store unavailable")
)

// IsNotFound reports whether err is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
