package auth

import "context"

// MockAuthorizer provides a static credential→user mapping for tests and
// local development.
type MockAuthorizer struct {
	Users map[string]int64
}

// NewMockAuthorizer creates a MockAuthorizer with the given mapping.
func NewMockAuthorizer(users map[string]int64) *MockAuthorizer {
	return &MockAuthorizer{Users: users}
}

// Identify resolves the credential against the static mapping.
func (m *MockAuthorizer) Identify(ctx context.Context, credential string) (int64, error) {
	if credential == "" {
		return 0, ErrMissingCredential
	}
	id, ok := m.Users[credential]
	if !ok {
		return 0, ErrInvalidCredential
	}
	return id, nil
}
