package agent

import (
	"errors"
	"fmt"
)

// Reason classifies why authorization was refused.
type Reason string

const (
	ReasonNotFound          Reason = "not_found"
	ReasonDisabled          Reason = "disabled"
	ReasonExpired           Reason = "expired"
	ReasonInsufficientScope Reason = "insufficient_scope"
	ReasonRateLimited       Reason = "rate_limited"
)

// AuthorizationError is returned for every refused Authorize call. It is
// never retried automatically; rate-limited callers may back off and retry.
type AuthorizationError struct {
	KeyID      string
	Capability string
	Reason     Reason
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("agent: authorization refused (%s) for key %q capability %q", e.Reason, e.KeyID, e.Capability)
}

// Retryable reports whether the caller may retry after backing off.
func (e *AuthorizationError) Retryable() bool {
	return e.Reason == ReasonRateLimited
}

// IsAuthorizationError unwraps err into an AuthorizationError if possible.
func IsAuthorizationError(err error) (*AuthorizationError, bool) {
	var ae *AuthorizationError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

var (
	ErrNotFound     = errors.New("agent: not found")
	ErrInvalidInput = errors.New("agent: invalid input")
	ErrInvalidToken = errors.New("agent: invalid token")
)
