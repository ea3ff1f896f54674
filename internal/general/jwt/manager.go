package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"courier-driver/internal/domain/user"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var (
	ErrEmptyToken         = errors.New("bearer token missing")
	ErrMalformedToken     = errors.New("token is not a well-formed JWT")
	ErrInvalidSigningAlgo = errors.New("unexpected signing method")
)

// Inspect decodes a token without verifying its signature. The client never holds the
// signing secret; it only needs to know the token is structurally sound before reusing
// a persisted value. Signature and expiry are the server's call.
func Inspect(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyToken
	}
	if strings.Count(raw, ".") != 2 {
		return nil, ErrMalformedToken
	}

	claims := &Claims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return claims, nil
}

// CheckBearer accepts any token that can travel in an Authorization header.
// Claims are returned when the token happens to be a decodable JWT and are nil
// for opaque tokens.
func CheckBearer(raw string) (*Claims, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyToken
	}
	if strings.IndexFunc(raw, func(r rune) bool { return r <= ' ' || r == 0x7f }) >= 0 {
		return nil, ErrMalformedToken
	}
	claims, err := Inspect(raw)
	if err != nil {
		return nil, nil
	}
	return claims, nil
}

// Manager handles JWT creation and validation. The agent uses it only for dev tokens
// (cmd/key, `courier-driver token`) and in-process fake backends.
type Manager struct {
	secret    []byte
	accessTTL time.Duration
}

// NewManager creates a token manager.
func NewManager(secret string, accessTTL time.Duration) *Manager {
	s := strings.TrimSpace(secret)
	if s == "" {
		panic("jwt: empty secret key")
	}

	return &Manager{
		secret:    []byte(s),
		accessTTL: accessTTL,
	}
}

// IssueUserToken returns a signed access token for a user.
func (m *Manager) IssueUserToken(userID string, role user.Role) (string, *Claims, error) {
	// validate role
	if !role.Valid() {
		return "", nil, fmt.Errorf("invalid role: %s", role)
	}

	// create claims and sign token
	claims := NewUserClaims(userID, role, m.accessTTL)
	tkn := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := tkn.SignedString(m.secret)

	return signed, claims, err
}

// ParseAndValidate verifies signature and standard claims.
func (m *Manager) ParseAndValidate(tokenString string) (*jwtlib.Token, *Claims, error) {
	// create parser with expected signing method
	parser := jwtlib.NewParser(jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}))

	// validate claims and signature
	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwtlib.Token) (any, error) {
		if t.Method != jwtlib.SigningMethodHS256 {
			return nil, ErrInvalidSigningAlgo
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, nil, err
	}

	// ensure token is valid
	if !token.Valid {
		return nil, nil, errors.New("invalid token")
	}

	return token, claims, nil
}

// BearerHeader formats the Authorization header value for raw.
func BearerHeader(raw string) string {
	return "Bearer " + strings.TrimSpace(raw)
}
