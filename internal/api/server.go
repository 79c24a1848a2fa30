// Package api provides the HTTP surface for the cricket question-
// answering service: health checks, the RAG query endpoint, the sync
// triggers, and the provider webhook (§6).
package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carolinespringscc/cricket-agent/internal/core"
	"github.com/carolinespringscc/cricket-agent/internal/echo"
	"github.com/carolinespringscc/cricket-agent/internal/rag"
	"github.com/carolinespringscc/cricket-agent/internal/sync"
	"github.com/carolinespringscc/cricket-agent/internal/vectorstore"
	"github.com/carolinespringscc/cricket-agent/internal/webhook"
)

// Server is the top-level http.Handler serving every route group.
type Server struct {
	mux *http.ServeMux
}

// Dependencies is the explicit dependency graph the server is
// constructed from (§5: configuration and collaborators are
// constructed once and passed by reference, never a package-level
// global).
type Dependencies struct {
	Store         vectorstore.Store
	Router        *rag.Router
	Engine        *sync.Engine
	WebhookHandler *webhook.Handler // nil unless running in private mode
	BearerToken   string
	Env           string
	Mode          string
	RAGMode       string
	DefaultGrade  core.GradeID
	DefaultSeason core.SeasonID
}

// NewServer wires every route group onto one mux.
func NewServer(deps Dependencies) *Server {
	echo.Info("Registering routes...")

	registrars := []Registrar{
		NewHealthRoutes(deps.Env, deps.Mode, deps.RAGMode, deps.Store),
		NewAskRoutes(deps.Router),
		NewRefreshRoutes(deps.Engine, deps.BearerToken, deps.DefaultGrade, deps.DefaultSeason),
		NewDocumentRoutes(deps.Store),
	}
	if deps.WebhookHandler != nil {
		registrars = append(registrars, NewWebhookRoutes(deps.WebhookHandler))
	}

	return newServer(registrars...)
}

func newServer(registrars ...Registrar) *Server {
	mux := http.NewServeMux()

	for _, r := range registrars {
		r.RegisterRoutes(mux)
	}

	mux.Handle("GET /metrics", promhttp.Handler())

	return &Server{mux: mux}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
