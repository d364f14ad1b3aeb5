package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/schooltransit/backend/internal/domain"
)

type contextKey string

const identityContextKey = contextKey("identity")

// Claims is the JWT payload issued to mobile and admin clients. The subject
// is the user id; the role claim is advisory — services re-check roles
// against the users table before granting admin access.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// NewAuthenticator returns a middleware that requires a valid
// `Authorization: Bearer` token signed with secret (HS256). The resolved
// identity is stored in the request context; handlers read it with
// IdentityFromContext. A missing or invalid token is 401 — distinct from the
// 403 a known caller gets when an operation denies them.
func NewAuthenticator(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				unauthenticated(w, "authentication required")
				return
			}

			var claims Claims
			token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				unauthenticated(w, "invalid token")
				return
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				unauthenticated(w, "invalid token subject")
				return
			}

			identity := domain.Identity{UserID: userID, Role: domain.Role(claims.Role)}
			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext returns the caller identity placed by NewAuthenticator.
// The second return is false on routes that bypass the middleware.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(domain.Identity)
	return identity, ok
}

// NewToken issues a signed token for the given user. Used by tests and by
// provisioning tooling; the API itself does not mint tokens — identity is
// owned by the external auth system that shares the secret.
func NewToken(secret []byte, userID uuid.UUID, role domain.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// unauthenticated writes the uniform 401 body used for all missing-identity
// failures.
func unauthenticated(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": "unauthenticated", "message": message},
	})
}
