package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"affiliateprograms.wiki/internal/agent"
	"affiliateprograms.wiki/internal/linkrules"
)

func (a *API) handleLinkRules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listLinkRules(w, r)
	case http.MethodPost:
		a.createLinkRule(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listLinkRules(w http.ResponseWriter, r *http.Request) {
	keyID, err := agentKeyID(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}
	if _, err := a.authorizeAny(r.Context(), keyID, "rules:all", "review:all"); err != nil {
		handleEditorialError(w, r, err)
		return
	}

	rules, err := a.rules.ListRules(r.Context())
	if err != nil {
		handleEditorialError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": rules,
		"total": len(rules),
	})
}

func (a *API) createLinkRule(w http.ResponseWriter, r *http.Request) {
	keyID, err := agentKeyID(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}
	ctx := agent.ContextWithKeyID(r.Context(), keyID)
	if _, err := a.agents.Authorize(ctx, keyID, "rules:all"); err != nil {
		handleEditorialError(w, r, err)
		return
	}

	var rule linkrules.Rule
	if err := decodeJSON(w, r, &rule); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := rule.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.rules.CreateRule(ctx, &rule); err != nil {
		handleEditorialError(w, r, err)
		return
	}

	// New rules take effect on the next cache refresh; force one so the
	// rewrite endpoint picks them up immediately.
	if a.rewriter != nil {
		_ = a.rewriter.Refresh(ctx)
	}

	a.audit(ctx, "linkrules.rule.create", "link_rule", strconv.FormatInt(rule.ID, 10), map[string]string{
		"match_domain": rule.MatchDomain,
	})
	writeJSON(w, http.StatusCreated, rule)
}

// handleRewrite resolves a URL through the current rule snapshot. The
// endpoint is deliberately unauthenticated: it is pure, read-only, and
// fails open to the input URL.
func (a *API) handleRewrite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if raw == "" {
		writeError(w, r, http.StatusBadRequest, "url query parameter is required")
		return
	}

	rewritten := raw
	if a.rewriter != nil {
		rewritten = a.rewriter.Rewrite(raw)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"url":       raw,
		"rewritten": rewritten,
		"changed":   rewritten != raw,
	})
}
