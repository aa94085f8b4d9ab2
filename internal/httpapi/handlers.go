package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"affiliateprograms.wiki/internal/agent"
	"affiliateprograms.wiki/internal/audit"
	"affiliateprograms.wiki/internal/editorial"
	"affiliateprograms.wiki/internal/linkrules"
	"affiliateprograms.wiki/internal/obs"
	"affiliateprograms.wiki/internal/stream"
	"affiliateprograms.wiki/internal/verify"
)

// ReadyProbe pings the backing database for /readyz.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the editorial pipeline. All capability logic
// lives in the core services; handlers only resolve the caller's key id
// and translate errors.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	agents    *agent.Registry
	editorial *editorial.Service
	rules     linkrules.Store
	rewriter  *linkrules.Cache
	verifier  *verify.Recorder
	stream    *stream.Stream
}

// Config carries the API's collaborators.
type Config struct {
	ReadyProbe ReadyProbe
	Version    string
	Agents     *agent.Registry
	Editorial  *editorial.Service
	Rules      linkrules.Store
	Rewriter   *linkrules.Cache
	Verifier   *verify.Recorder
	Stream     *stream.Stream
}

func New(cfg Config) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: cfg.ReadyProbe,
		version:    cfg.Version,
		agents:     cfg.Agents,
		editorial:  cfg.Editorial,
		rules:      cfg.Rules,
		rewriter:   cfg.Rewriter,
		verifier:   cfg.Verifier,
		stream:     cfg.Stream,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// editorial pipeline
	a.mux.HandleFunc("/editorial/proposals", a.handleProposalsCollection)
	a.mux.HandleFunc("/editorial/proposals/", a.handleProposalResource)
	a.mux.HandleFunc("/editorial/stats", a.handleStats)
	a.mux.HandleFunc("/editorial/history", a.handleEntityHistory)
	a.mux.HandleFunc("/editorial/token", a.handleToken)
	a.mux.HandleFunc("/editorial/events", a.Events)

	// link rules + rewriting
	a.mux.HandleFunc("/editorial/link-rules", a.handleLinkRules)
	a.mux.HandleFunc("/editorial/rewrite", a.handleRewrite)

	// verification
	a.mux.HandleFunc("/editorial/verify/urls", a.handleVerifyURLs)
	a.mux.HandleFunc("/editorial/verify/broken", a.handleBrokenURLs)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler wraps the mux with request ids and metrics.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.withRequestID(a.mux))
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "wiki-editorial-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "wiki-editorial-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func (a *API) audit(ctx context.Context, event, resource, id string, meta map[string]string) {
	fields := map[string]any{
		"resource":    resource,
		"resource_id": id,
	}
	for k, v := range meta {
		fields[k] = v
	}
	if err := audit.LogEvent(ctx, event, fields); err != nil {
		obs.Logger().Printf(`{"level":"error","msg":"audit log failed","event":%q}`, event)
	}
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("value must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New("value out of range")
	}
	return val, nil
}
