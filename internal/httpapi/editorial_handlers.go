package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"affiliateprograms.wiki/internal/agent"
	"affiliateprograms.wiki/internal/editorial"
	"affiliateprograms.wiki/internal/entity"
	"affiliateprograms.wiki/internal/stream"
)

type submitProposalRequest struct {
	EntityType string             `json:"entity_type"`
	EntityID   int64              `json:"entity_id"`
	Changes    map[string]any     `json:"changes"`
	Sources    []editorial.Source `json:"sources"`
	Reasoning  string             `json:"reasoning"`
	ModelUsed  string             `json:"model_used"`
	ResubmitOf string             `json:"resubmit_of"`
}

type reviewRequest struct {
	Action string `json:"action"`
	Notes  string `json:"notes"`
}

type listProposalsResponse struct {
	Items []*editorial.Proposal `json:"items"`
	Total int                   `json:"total"`
	AsOf  time.Time             `json:"as_of"`
}

type proposalDetailResponse struct {
	Proposal    *editorial.Proposal          `json:"proposal"`
	ApprovalLog []editorial.ApprovalLogEntry `json:"approval_log"`
}

func (a *API) handleProposalsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.submitProposal(w, r)
	case http.MethodGet:
		a.listProposals(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleProposalResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/editorial/proposals/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	id, action, _ := strings.Cut(path, "/")
	if id == "" || strings.Contains(action, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.getProposal(w, r, id)
	case "review":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.reviewProposal(w, r, id)
	case "seo":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.completeSEO(w, r, id)
	case "publish":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.publishProposal(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) submitProposal(w http.ResponseWriter, r *http.Request) {
	keyID, err := agentKeyID(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}
	var req submitProposalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ctx := agent.ContextWithKeyID(r.Context(), keyID)
	var p *editorial.Proposal
	if req.ResubmitOf != "" {
		p, err = a.editorial.Resubmit(ctx, keyID, req.ResubmitOf, req.Changes, req.Sources, req.Reasoning, req.ModelUsed)
	} else {
		p, err = a.editorial.Submit(ctx, keyID, entity.Kind(req.EntityType), req.EntityID, req.Changes, req.Sources, req.Reasoning, req.ModelUsed)
	}
	if err != nil {
		handleEditorialError(w, r, err)
		return
	}

	a.audit(ctx, "editorial.proposal.submit", "proposal", p.ID, map[string]string{
		"entity_type": string(p.EntityKind),
		"entity_id":   strconv.FormatInt(p.EntityID, 10),
	})
	w.Header().Set("Location", "/editorial/proposals/"+p.ID)
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) listProposals(w http.ResponseWriter, r *http.Request) {
	keyID, err := agentKeyID(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}
	if _, err := a.authorizeAny(r.Context(), keyID, "review:all", "propose:*", "seo:all"); err != nil {
		handleEditorialError(w, r, err)
		return
	}

	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 50, 1, 500)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 500")
		return
	}
	offset, err := parsePositiveInt(r.URL.Query().Get("offset"), 0, 0, 1<<30)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	items, total, err := a.editorial.List(r.Context(), editorial.ListFilter{
		Status:     editorial.Status(r.URL.Query().Get("status")),
		EntityKind: entity.Kind(r.URL.Query().Get("entity_type")),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		handleEditorialError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listProposalsResponse{
		Items: items,
		Total: total,
		AsOf:  time.Now().UTC(),
	})
}

func (a *API) getProposal(w http.ResponseWriter, r *http.Request, id string) {
	p, err := a.editorial.Get(r.Context(), id)
	if err != nil {
		handleEditorialError(w, r, err)
		return
	}
	log, err := a.editorial.ApprovalLog(r.Context(), id)
	if err != nil {
		handleEditorialError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proposalDetailResponse{Proposal: p, ApprovalLog: log})
}

func (a *API) reviewProposal(w http.ResponseWriter, r *http.Request, id string) {
	keyID, err := agentKeyID(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}
	var req reviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	action := editorial.Action(strings.TrimSpace(req.Action))
	ctx := agent.ContextWithKeyID(r.Context(), keyID)
	p, err := a.editorial.Review(ctx, keyID, id, action, req.Notes)
	if err != nil {
		handleEditorialError(w, r, err)
		return
	}

	a.publishEvent(p, action, keyID)
	a.audit(ctx, "editorial.proposal."+string(action), "proposal", p.ID, map[string]string{
		"status": string(p.Status),
	})
	writeJSON(w, http.StatusOK, p)
}

func (a *API) completeSEO(w http.ResponseWriter, r *http.Request, id string) {
	keyID, err := agentKeyID(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}
	var meta editorial.SEOMetadata
	if err := decodeJSON(w, r, &meta); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ctx := agent.ContextWithKeyID(r.Context(), keyID)
	p, err := a.editorial.CompleteSEO(ctx, keyID, id, meta)
	if err != nil {
		handleEditorialError(w, r, err)
		return
	}

	a.publishEvent(p, editorial.ActionSEOComplete, keyID)
	a.audit(ctx, "editorial.proposal.seo_complete", "proposal", p.ID, nil)
	writeJSON(w, http.StatusOK, p)
}

func (a *API) publishProposal(w http.ResponseWriter, r *http.Request, id string) {
	keyID, err := agentKeyID(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}

	ctx := agent.ContextWithKeyID(r.Context(), keyID)
	p, hist, err := a.editorial.Publish(ctx, keyID, id)
	if err != nil {
		handleEditorialError(w, r, err)
		return
	}

	a.publishEvent(p, editorial.ActionPublish, keyID)
	a.audit(ctx, "editorial.proposal.publish", "proposal", p.ID, map[string]string{
		"history_id":  hist.ID,
		"entity_type": string(p.EntityKind),
		"entity_id":   strconv.FormatInt(p.EntityID, 10),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"proposal": p,
		"history":  hist,
	})
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	keyID, err := agentKeyID(r)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}
	if _, err := a.authorizeAny(r.Context(), keyID, "review:all", "propose:*", "seo:all"); err != nil {
		handleEditorialError(w, r, err)
		return
	}

	stats, err := a.editorial.Stats(r.Context())
	if err != nil {
		handleEditorialError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleEntityHistory lists published research snapshots for one entity,
// newest first.
func (a *API) handleEntityHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	kind := entity.Kind(r.URL.Query().Get("entity_type"))
	entityID, err := strconv.ParseInt(r.URL.Query().Get("entity_id"), 10, 64)
	if err != nil || entityID <= 0 {
		writeError(w, r, http.StatusBadRequest, "entity_type and entity_id are required")
		return
	}

	hist, err := a.editorial.EntityHistory(r.Context(), kind, entityID)
	if err != nil {
		handleEditorialError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": hist,
		"total": len(hist),
	})
}

func (a *API) publishEvent(p *editorial.Proposal, action editorial.Action, keyID string) {
	if a.stream == nil {
		return
	}
	a.stream.Publish(stream.Event{
		ProposalID: p.ID,
		EntityKind: p.EntityKind,
		EntityID:   p.EntityID,
		Action:     action,
		Status:     p.Status,
		AgentKey:   keyID,
		Timestamp:  time.Now().UTC(),
	})
}

func handleEditorialError(w http.ResponseWriter, r *http.Request, err error) {
	if ae, ok := agent.IsAuthorizationError(err); ok {
		switch ae.Reason {
		case agent.ReasonNotFound:
			writeError(w, r, http.StatusUnauthorized, "unknown agent key")
		case agent.ReasonRateLimited:
			w.Header().Set("Retry-After", "60")
			writeError(w, r, http.StatusTooManyRequests, ae.Error())
		default:
			writeError(w, r, http.StatusForbidden, ae.Error())
		}
		return
	}
	switch {
	case errors.Is(err, agent.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, editorial.ErrValidation), errors.Is(err, agent.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, editorial.ErrInvalidTransition), errors.Is(err, editorial.ErrConcurrentModification):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, editorial.ErrNotFound), errors.Is(err, entity.ErrNotFound), errors.Is(err, agent.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, editorial.ErrPublicationFailed):
		writeError(w, r, http.StatusInternalServerError, "publication failed")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
