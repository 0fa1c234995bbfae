// internal/common/auth/authenticator.go
package auth

import (
	"crypto/subtle"
	"strings"
	"time"

	"notice-push/internal/common/errors"

	"github.com/golang-jwt/jwt/v5"
)

// Role identifies what kind of caller presented the bearer token.
type Role string

const (
	RoleServiceRole Role = "service_role"
	RoleUser        Role = "user"
)

// Caller is the authenticated principal of one request.
type Caller struct {
	Role   Role
	UserID string
}

// IsServiceRole reports whether the caller holds the backend credential.
func (c *Caller) IsServiceRole() bool {
	return c != nil && c.Role == RoleServiceRole
}

// Authenticator accepts either the store's service-role key or an end-user
// access token signed (HS256) with the store's JWT secret.
type Authenticator struct {
	serviceRoleKey string
	jwtSecret      []byte
	now            func() time.Time
}

func NewAuthenticator(serviceRoleKey, jwtSecret string) *Authenticator {
	a := &Authenticator{
		serviceRoleKey: serviceRoleKey,
		now:            time.Now,
	}
	if jwtSecret != "" {
		a.jwtSecret = []byte(jwtSecret)
	}
	return a
}

// WithClock overrides token-expiry evaluation time.
func (a *Authenticator) WithClock(now func() time.Time) *Authenticator {
	a.now = now
	return a
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// Authenticate resolves the Authorization header into a Caller. Any failure is
// an AUTH_ERROR; the token itself never appears in the error.
func (a *Authenticator) Authenticate(header string) (*Caller, error) {
	token, ok := BearerToken(header)
	if !ok {
		return nil, errors.NewAuthError("missing bearer token")
	}

	if a.serviceRoleKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(a.serviceRoleKey)) == 1 {
		return &Caller{Role: RoleServiceRole}, nil
	}

	if a.jwtSecret == nil {
		return nil, errors.NewAuthError("user tokens are not accepted")
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !parsed.Valid {
		return nil, errors.NewAuthError("token verification failed")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.NewAuthError("token has no subject")
	}

	return &Caller{Role: RoleUser, UserID: claims.Subject}, nil
}

// RequireServiceRole rejects end-user callers.
func RequireServiceRole(c *Caller) error {
	if !c.IsServiceRole() {
		return errors.NewForbiddenError("service-role credential required")
	}
	return nil
}
