package auth

import "errors"

var (
	// ErrMissingCredential is returned when no bearer credential is present.
	ErrMissingCredential = errors.New("missing credential")

	// ErrMalformedCredential is returned when the Authorization header does
	// not follow the 'Bearer <token>' format.
	ErrMalformedCredential = errors.New("malformed credential")

	// ErrInvalidCredential is returned for unknown or expired credentials.
	// The two cases are deliberately merged so callers cannot probe which
	// tokens exist.
	ErrInvalidCredential = errors.New("invalid credential")
)
