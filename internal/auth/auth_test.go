package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBearer(t *testing.T) {
	mk := func(header string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		return r
	}

	_, err := ExtractBearer(mk(""))
	assert.ErrorIs(t, err, ErrMissingCredential)

	_, err = ExtractBearer(mk("Basic abc"))
	assert.ErrorIs(t, err, ErrMalformedCredential)

	_, err = ExtractBearer(mk("Bearer "))
	assert.ErrorIs(t, err, ErrMalformedCredential)

	tok, err := ExtractBearer(mk("Bearer th_secret"))
	require.NoError(t, err)
	assert.Equal(t, "th_secret", tok)
}

func TestMockAuthorizer(t *testing.T) {
	az := NewMockAuthorizer(map[string]int64{"tok-a": 7})

	id, err := az.Identify(context.Background(), "tok-a")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	_, err = az.Identify(context.Background(), "tok-b")
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = az.Identify(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestMiddleware_RejectsAndInjects(t *testing.T) {
	az := NewMockAuthorizer(map[string]int64{"tok-a": 42})

	var gotUser int64
	h := Middleware(az)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserFromContext(r.Context())
		require.True(t, ok)
		gotUser = id
		w.WriteHeader(http.StatusNoContent)
	}))

	// no credential
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// bad credential
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// good credential
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok-a")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(42), gotUser)
}
