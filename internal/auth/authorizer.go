package auth

import (
	"context"
)

// Authorizer resolves an opaque bearer credential to a user identity.
// Identification is read-only: implementations must not create or mutate
// state as a side effect of a lookup.
type Authorizer interface {
	// Identify returns the owning user's id, or a typed error:
	// ErrMissingCredential, ErrMalformedCredential or ErrInvalidCredential.
	Identify(ctx context.Context, credential string) (int64, error)
}
