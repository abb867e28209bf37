// Package session issues and verifies signed session credentials.
//
// A session credential is a stateless HS256 JWT carrying the subject
// identity, display name, role, and expiry. The signature covers every
// claim, so a role cannot be altered without invalidating the token.
// Verification never consults storage; the authorization guard performs
// the activation re-check for persisted accounts.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "hubgate"

// Verification failures. All three surface to clients as a single
// re-authenticate response; they are distinguished for diagnostics only.
var (
	ErrTokenExpired          = errors.New("session token expired")
	ErrTokenInvalidSignature = errors.New("session token signature invalid")
	ErrTokenMalformed        = errors.New("session token malformed")
)

// Subject is the identity a credential is issued for.
type Subject struct {
	ID               string
	DisplayName      string
	Role             string
	ProviderIdentity string
}

// Claims is the JWT claim set for a session credential.
type Claims struct {
	DisplayName      string `json:"name,omitempty"`
	Role             string `json:"role"`
	ProviderIdentity string `json:"provider_identity,omitempty"`
	jwt.RegisteredClaims
}

// Service signs and verifies session credentials with a process-wide key.
// The key is injected at construction so tests can use distinct keys.
type Service struct {
	key []byte
	now func() time.Time
}

// NewService creates a token service from a signing key.
func NewService(key []byte) (*Service, error) {
	if len(key) == 0 {
		return nil, errors.New("signing key is required")
	}
	return &Service{key: key, now: time.Now}, nil
}

// Issue signs a session credential for the subject valid for ttl.
func (s *Service) Issue(sub Subject, ttl time.Duration) (string, error) {
	if sub.ID == "" {
		return "", errors.New("subject id is required")
	}
	if sub.Role == "" {
		return "", errors.New("subject role is required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be greater than zero")
	}

	now := s.now().UTC()
	claims := Claims{
		DisplayName:      sub.DisplayName,
		Role:             sub.Role,
		ProviderIdentity: sub.ProviderIdentity,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   sub.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the token signature and claims and returns the embedded
// claim set. Verification is stateless; activation must be re-checked
// against storage by the caller for persisted accounts.
func (s *Service) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrTokenMalformed
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenInvalidSignature
		default:
			return nil, ErrTokenMalformed
		}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.Subject == "" || claims.Role == "" {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// IsVerificationError reports whether err is one of the token
// verification failures, which all surface to clients identically.
func IsVerificationError(err error) bool {
	return errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenInvalidSignature) ||
		errors.Is(err, ErrTokenMalformed)
}
