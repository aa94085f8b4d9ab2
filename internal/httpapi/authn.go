package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"affiliateprograms.wiki/internal/agent"
	"affiliateprograms.wiki/internal/audit"
	"affiliateprograms.wiki/internal/ids"
)

const (
	agentKeyHeader  = "X-Agent-Key"
	authHeader      = "Authorization"
	bearer          = "Bearer "
	requestIDHeader = "X-Request-Id"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// withRequestID tags every request with an id for audit correlation.
func (a *API) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if rid == "" {
			rid = strings.ToLower(ids.New())
		}
		w.Header().Set(requestIDHeader, rid)
		ctx := context.WithValue(r.Context(), requestIDKey, rid)
		ctx = audit.WithRequestID(ctx, rid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext extracts the request id, if any.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// agentKeyID resolves the caller's credential: the raw key from X-Agent-Key,
// or a session token from the Authorization header. The returned id is not
// authorized yet; every mutation still goes through the registry.
func agentKeyID(r *http.Request) (string, error) {
	if raw := strings.TrimSpace(r.Header.Get(agentKeyHeader)); raw != "" {
		return raw, nil
	}
	header := strings.TrimSpace(r.Header.Get(authHeader))
	if header == "" {
		return "", errors.New("missing agent credential")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	keyID, err := agent.ParseSessionToken(token)
	if err != nil {
		return "", err
	}
	return keyID, nil
}

// authorizeAny tries each capability in order; scope refusals fall through
// to the next alternative. Used by handlers whose capability requirement
// is an alternative set (e.g. the staleness patrol endpoints).
func (a *API) authorizeAny(ctx context.Context, keyID string, capabilities ...string) (*agent.Key, error) {
	var last error
	for _, c := range capabilities {
		key, err := a.agents.Authorize(ctx, keyID, c)
		if err == nil {
			return key, nil
		}
		if ae, ok := agent.IsAuthorizationError(err); ok && ae.Reason == agent.ReasonInsufficientScope {
			last = err
			continue
		}
		return nil, err
	}
	return nil, last
}
