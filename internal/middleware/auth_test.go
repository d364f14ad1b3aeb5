package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schooltransit/backend/internal/domain"
	"github.com/schooltransit/backend/internal/middleware"
)

var authSecret = []byte("auth-test-secret")

// identityEchoHandler records the identity the middleware placed in context.
func identityEchoHandler(got *domain.Identity, found *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got, *found = middleware.IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticator_ValidToken(t *testing.T) {
	userID := uuid.New()
	token, err := middleware.NewToken(authSecret, userID, domain.RoleDriver, time.Hour)
	require.NoError(t, err)

	var (
		identity domain.Identity
		found    bool
	)
	h := middleware.NewAuthenticator(authSecret)(identityEchoHandler(&identity, &found))

	req := httptest.NewRequest(http.MethodGet, "/trips/active", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, found, "identity should be in the request context")
	assert.Equal(t, userID, identity.UserID)
	assert.Equal(t, domain.RoleDriver, identity.Role)
}

func TestAuthenticator_MissingHeader(t *testing.T) {
	var (
		identity domain.Identity
		found    bool
	)
	h := middleware.NewAuthenticator(authSecret)(identityEchoHandler(&identity, &found))

	req := httptest.NewRequest(http.MethodGet, "/trips/active", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, found, "handler must not run without a token")
}

func TestAuthenticator_WrongSecret(t *testing.T) {
	token, err := middleware.NewToken([]byte("some-other-secret"), uuid.New(), domain.RoleDriver, time.Hour)
	require.NoError(t, err)

	h := middleware.NewAuthenticator(authSecret)(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/trips/active", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticator_ExpiredToken(t *testing.T) {
	token, err := middleware.NewToken(authSecret, uuid.New(), domain.RoleDriver, -time.Minute)
	require.NoError(t, err)

	h := middleware.NewAuthenticator(authSecret)(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/trips/active", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticator_MalformedToken(t *testing.T) {
	h := middleware.NewAuthenticator(authSecret)(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/trips/active", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The 401 body follows the uniform error shape.
	assert.JSONEq(t, `{"error":{"code":"unauthenticated","message":"invalid token"}}`, rec.Body.String())
}

func TestIdentityFromContext_AbsentWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	_, ok := middleware.IdentityFromContext(req.Context())

	assert.False(t, ok)
}
