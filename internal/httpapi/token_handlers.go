package httpapi

import (
	"net/http"
	"strings"
	"time"
)

const (
	defaultSessionTTL = 30 * time.Minute
	maxSessionTTL     = 12 * time.Hour
)

type tokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleToken exchanges a raw agent key for a short-lived session token.
// The dashboard uses this so the browser never stores the key itself.
func (a *API) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	keyID := strings.TrimSpace(r.Header.Get(agentKeyHeader))
	if keyID == "" {
		writeError(w, r, http.StatusUnauthorized, "missing agent key")
		return
	}

	ttl := defaultSessionTTL
	if raw := r.URL.Query().Get("ttl_minutes"); raw != "" {
		minutes, err := parsePositiveInt(raw, 0, 1, int(maxSessionTTL.Minutes()))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "ttl_minutes out of range")
			return
		}
		ttl = time.Duration(minutes) * time.Minute
	}

	token, exp, err := a.agents.IssueSessionToken(r.Context(), keyID, ttl)
	if err != nil {
		handleEditorialError(w, r, err)
		return
	}

	a.audit(r.Context(), "agent.session.issue", "agent_key", keyID, map[string]string{
		"expires_at": exp.Format(time.RFC3339),
	})
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: exp,
	})
}
