package auth

import (
	"context"
	"errors"

	"github.com/taskhive/taskhive-backend/internal/model"
	"github.com/taskhive/taskhive-backend/internal/store"
)

// StoreAuthorizer resolves credentials against the api_tokens table.
type StoreAuthorizer struct {
	tokens store.Tokens
}

// NewStoreAuthorizer creates an Authorizer backed by the given store.
func NewStoreAuthorizer(s store.Store) *StoreAuthorizer {
	return &StoreAuthorizer{tokens: s.Tokens()}
}

// Identify looks the credential up and returns the owning user id.
func (a *StoreAuthorizer) Identify(ctx context.Context, credential string) (int64, error) {
	if credential == "" {
		return 0, ErrMissingCredential
	}
	tok, err := a.tokens.Get(ctx, credential)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return 0, ErrInvalidCredential
		}
		return 0, err
	}
	return tok.UserID, nil
}
