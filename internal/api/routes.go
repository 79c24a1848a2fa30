package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/carolinespringscc/cricket-agent/internal/apperr"
	"github.com/carolinespringscc/cricket-agent/internal/core"
	"github.com/carolinespringscc/cricket-agent/internal/rag"
	"github.com/carolinespringscc/cricket-agent/internal/sync"
	"github.com/carolinespringscc/cricket-agent/internal/vectorstore"
	"github.com/carolinespringscc/cricket-agent/internal/webhook"
)

// Registrar registers one route group onto the shared mux, mirroring
// the per-entity route-group pattern the rest of this codebase uses.
type Registrar interface {
	RegisterRoutes(mux *http.ServeMux)
}

// AskRoutes serves the RAG query path (§4.6, §6).
type AskRoutes struct {
	router *rag.Router
}

func NewAskRoutes(router *rag.Router) *AskRoutes { return &AskRoutes{router: router} }

func (a *AskRoutes) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/ask", a.handleAsk)
}

func (a *AskRoutes) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.NewValidationError("body", "invalid JSON: "+err.Error()))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, apperr.NewValidationError("text", "must not be empty"))
		return
	}

	envelope := a.router.Ask(r.Context(), req.Text, req.TeamHint)
	writeJSON(w, http.StatusOK, envelope)
}

// RefreshRoutes serves both the bearer-protected internal refresh
// endpoint and the unauthenticated bootstrap /sync trigger, which are
// intentionally kept as separate routes (§9 Open Questions, §4.4).
type RefreshRoutes struct {
	engine       *sync.Engine
	bearerToken  string
	defaultGrade core.GradeID
	defaultSeason core.SeasonID
}

func NewRefreshRoutes(engine *sync.Engine, bearerToken string, grade core.GradeID, season core.SeasonID) *RefreshRoutes {
	return &RefreshRoutes{engine: engine, bearerToken: bearerToken, defaultGrade: grade, defaultSeason: season}
}

func (rr *RefreshRoutes) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /internal/refresh", rr.handleRefreshAuthenticated)
	mux.HandleFunc("POST /sync", rr.handleSyncUnauthenticated)
}

func (rr *RefreshRoutes) handleRefreshAuthenticated(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	if rr.bearerToken == "" || auth != "Bearer "+rr.bearerToken {
		writeError(w, apperr.NewWebhookAuthError("invalid or missing bearer token"))
		return
	}
	rr.runScope(w, r)
}

// handleSyncUnauthenticated is the first-run bootstrap trigger (§6):
// unauthenticated by design so an initial deployment can seed the
// vector store before a bearer token is configured.
func (rr *RefreshRoutes) handleSyncUnauthenticated(w http.ResponseWriter, r *http.Request) {
	rr.runScope(w, r)
}

func (rr *RefreshRoutes) runScope(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Scope == "" {
		req.Scope = "all"
	}

	ctx := r.Context()
	cancel := func() {}
	if req.Scope == "all" {
		ctx, cancel = context.WithTimeout(r.Context(), 10*time.Minute)
	}
	defer cancel()

	grade := rr.defaultGrade
	if req.Grade != "" {
		grade = core.GradeID(req.Grade)
	}
	season := rr.defaultSeason
	if req.Season != "" {
		season = core.SeasonID(req.Season)
	}

	var (
		stats any
		err   error
	)
	switch req.Scope {
	case "all":
		stats, err = rr.engine.FullRefresh(ctx, grade, season)
	case "team":
		stats, err = rr.engine.PerTeamRefresh(ctx, core.Team{ID: core.TeamID(req.ID), Grade: grade, Season: season}, season)
	case "match":
		stats, err = rr.engine.PerMatchRefresh(ctx, core.FixtureID(req.ID), req.ID)
	case "ladder":
		stats, err = rr.engine.PerLadderRefresh(ctx, core.GradeID(req.ID))
	default:
		writeError(w, apperr.NewValidationError("scope", "must be one of all|team|match|ladder"))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RefreshResponse{Scope: req.Scope, Stats: stats})
}

// WebhookRoutes serves the provider's signature-verified push
// notifications (§4.5, §6). Only registered in private mode.
type WebhookRoutes struct {
	handler *webhook.Handler
}

func NewWebhookRoutes(handler *webhook.Handler) *WebhookRoutes {
	return &WebhookRoutes{handler: handler}
}

func (wr *WebhookRoutes) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/playhq", wr.handlePlayHQ)
}

func (wr *WebhookRoutes) handlePlayHQ(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apperr.NewValidationError("body", "could not read request body"))
		return
	}

	signature := r.Header.Get("X-PlayHQ-Signature")
	if signature == "" {
		writeError(w, apperr.NewValidationError("signature", "missing X-PlayHQ-Signature header"))
		return
	}
	if !wr.handler.VerifySignature(body, signature) {
		writeError(w, apperr.NewWebhookAuthError("signature verification failed"))
		return
	}

	var events []webhook.Event
	if err := json.Unmarshal(body, &events); err != nil {
		writeError(w, apperr.NewValidationError("body", "invalid JSON: "+err.Error()))
		return
	}

	result := wr.handler.Process(r.Context(), events)
	writeJSON(w, http.StatusOK, result)
}

// DocumentRoutes serves direct document lookups by id, mainly useful
// for verifying what a sync run actually indexed (§4.3).
type DocumentRoutes struct {
	store vectorstore.Store
}

func NewDocumentRoutes(store vectorstore.Store) *DocumentRoutes { return &DocumentRoutes{store: store} }

func (d *DocumentRoutes) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/documents/{id}", d.handleGet)
}

func (d *DocumentRoutes) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	doc, err := d.store.GetDocument(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if doc == nil {
		writeError(w, core.NewNotFoundError("document", id))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// HealthRoutes serves /healthz and /healthz/detailed (§6).
type HealthRoutes struct {
	env   string
	mode  string
	rag   string
	store vectorstore.Store
}

func NewHealthRoutes(env, mode, ragMode string, store vectorstore.Store) *HealthRoutes {
	return &HealthRoutes{env: env, mode: mode, rag: ragMode, store: store}
}

func (h *HealthRoutes) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.HandleFunc("GET /healthz/detailed", h.handleDetailed)
}

func (h *HealthRoutes) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		OK:        true,
		Env:       h.env,
		RAG:       h.rag,
		Mode:      h.mode,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthRoutes) handleDetailed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	err := h.store.HealthCheck(ctx)
	component := ComponentStatus{
		Name:    "vector_store",
		OK:      err == nil,
		Latency: time.Since(start).Milliseconds(),
	}
	if err != nil {
		component.Detail = err.Error()
	}

	writeJSON(w, http.StatusOK, DetailedHealthResponse{
		OK:         component.OK,
		Components: []ComponentStatus{component},
	})
}
