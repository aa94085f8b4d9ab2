package httpapi

import (
	"net/http"
	"strconv"

	"affiliateprograms.wiki/internal/agent"
	"affiliateprograms.wiki/internal/verify"
)

type verifyBatchRequest struct {
	URLs []verify.Request `json:"urls"`
}

func (a *API) handleVerifyURLs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	keyID, err := agentKeyID(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}
	ctx := agent.ContextWithKeyID(r.Context(), keyID)
	if _, err := a.agents.Authorize(ctx, keyID, "review:all"); err != nil {
		handleEditorialError(w, r, err)
		return
	}

	var req verifyBatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.URLs) == 0 {
		writeError(w, r, http.StatusBadRequest, "urls is required")
		return
	}
	if len(req.URLs) > 100 {
		writeError(w, r, http.StatusBadRequest, "at most 100 urls per batch")
		return
	}

	runs, summary, err := a.verifier.VerifyBatch(ctx, req.URLs)
	if err != nil {
		handleEditorialError(w, r, err)
		return
	}

	a.audit(ctx, "verify.batch", "verification", "", map[string]string{
		"verified": strconv.Itoa(summary.Verified),
		"broken":   strconv.Itoa(summary.Broken),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"runs":    runs,
		"summary": summary,
	})
}

// handleBrokenURLs lists the latest broken or timed-out run per entity URL.
// The staleness patrol polls this to decide what to re-research.
func (a *API) handleBrokenURLs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	keyID, err := agentKeyID(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}
	if _, err := a.authorizeAny(r.Context(), keyID, "review:all", "propose:*"); err != nil {
		handleEditorialError(w, r, err)
		return
	}

	minAge, err := parsePositiveInt(r.URL.Query().Get("min_age_hours"), 0, 0, 24*365)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "min_age_hours out of range")
		return
	}
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 100, 1, 500)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 500")
		return
	}

	runs, err := a.verifier.Broken(r.Context(), minAge, limit)
	if err != nil {
		handleEditorialError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": runs,
		"total": len(runs),
	})
}
