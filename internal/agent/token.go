package agent

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"affiliateprograms.wiki/internal/ids"
)

// Session tokens let the admin dashboard authenticate with a short-lived
// bearer token instead of persisting the raw agent key in the browser.
// The token's subject is the agent key id; every request still goes through
// Authorize, so disabling the key invalidates outstanding sessions.

const (
	issuer            = "affiliateprograms.wiki"
	secretEnvVariable = "WIKI_SESSION_SECRET"
)

var (
	errMissingSecret = errors.New("agent: session secret is not configured")

	secretMu sync.Mutex
	secret   cachedSecret
)

type cachedSecret struct {
	value []byte
	err   error
	ready bool
}

// SessionClaims are the JWT claims carried by a session token.
type SessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueSessionToken verifies the raw key through the registry and signs an
// HS256 JWT whose subject is the key id.
func (r *Registry) IssueSessionToken(ctx context.Context, keyID string, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, ErrInvalidInput
	}
	key, err := r.store.Find(ctx, strings.TrimSpace(keyID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", time.Time{}, &AuthorizationError{KeyID: keyID, Reason: ReasonNotFound}
		}
		return "", time.Time{}, err
	}
	if !key.Enabled {
		return "", time.Time{}, &AuthorizationError{KeyID: keyID, Reason: ReasonDisabled}
	}
	now := r.now().UTC()
	if key.ExpiresAt != nil && now.After(*key.ExpiresAt) {
		return "", time.Time{}, &AuthorizationError{KeyID: keyID, Reason: ReasonExpired}
	}

	secretBytes, err := loadSecret()
	if err != nil {
		return "", time.Time{}, err
	}
	exp := now.Add(ttl)
	claims := SessionClaims{
		Role: string(key.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   key.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        ids.NewUUID(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secretBytes)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseSessionToken verifies the token signature and returns the agent key id.
func ParseSessionToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidToken
	}
	secretBytes, err := loadSecret()
	if err != nil {
		return "", err
	}
	parsed, err := jwt.ParseWithClaims(token, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return secretBytes, nil
	})
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if claims.Issuer != issuer || strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func loadSecret() ([]byte, error) {
	secretMu.Lock()
	defer secretMu.Unlock()
	if secret.ready {
		return secret.value, secret.err
	}
	raw := strings.TrimSpace(os.Getenv(secretEnvVariable))
	if raw == "" {
		secret.err = errMissingSecret
		secret.ready = true
		return nil, secret.err
	}
	secret.value = []byte(raw)
	secret.err = nil
	secret.ready = true
	return secret.value, nil
}

// ResetSecretForTests clears the cached secret value. Only intended for test use.
func ResetSecretForTests() {
	secretMu.Lock()
	defer secretMu.Unlock()
	secret = cachedSecret{}
}
