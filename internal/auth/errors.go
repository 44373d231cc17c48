package auth

import "errors"

var (
	// ErrUnauthenticated is returned by the require helpers when no user is
	// attached to the session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned when the user is authenticated but lacks the
	// required role or permission.
	ErrForbidden = errors.New("forbidden")
)
