package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/carolinespringscc/cricket-agent/internal/core"
	"github.com/carolinespringscc/cricket-agent/internal/llm"
	"github.com/carolinespringscc/cricket-agent/internal/rag"
	"github.com/carolinespringscc/cricket-agent/internal/sync"
	"github.com/carolinespringscc/cricket-agent/internal/testutils"
	"github.com/carolinespringscc/cricket-agent/internal/vectorstore"
	"github.com/carolinespringscc/cricket-agent/internal/webhook"
)

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	return bytes.NewReader(b)
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// fakeUpstream is a fixed, in-memory stand-in for core.UpstreamClient so
// route handlers can be exercised without a network call.
type fakeUpstream struct{}

func (fakeUpstream) ListTeams(context.Context, core.GradeID) ([]core.Team, error) {
	return []core.Team{testutils.SampleTeam()}, nil
}

func (fakeUpstream) ListFixtures(context.Context, core.TeamID, core.SeasonID) ([]core.Fixture, error) {
	return []core.Fixture{testutils.SampleFixture()}, nil
}

func (fakeUpstream) FetchLadder(context.Context, core.GradeID) (*core.Ladder, error) {
	l := testutils.SampleLadder()
	return &l, nil
}

func (fakeUpstream) FetchGameSummary(context.Context, core.FixtureID) (*core.Scorecard, error) {
	s := testutils.SampleIncompleteScorecard()
	return &s, nil
}

func (fakeUpstream) FetchRoster(context.Context, core.TeamID) (*core.Roster, error) {
	r := testutils.SampleRoster()
	return &r, nil
}

var _ core.UpstreamClient = fakeUpstream{}

// testServer builds a full Server from in-memory collaborators: a
// memory-backed vector store seeded with one document, a stub LLM
// adapter, and a sync engine fed by fakeUpstream. bearerToken is
// optional; pass "" and withWebhook=false to exercise the public
// (no-webhook) configuration.
func testServer(t *testing.T, bearerToken string, withWebhook bool) *Server {
	t.Helper()

	store := vectorstore.NewMemoryStore("")
	team := testutils.SampleTeam()
	_, err := store.Upsert(context.Background(), []core.Document{
		{ID: string(team.ID), Text: "Team: " + team.Name, Metadata: core.DocumentMetadata{Type: core.KindTeam}},
	})
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}

	adapter := llm.NewAdapter(llm.NewStub(), 0)
	router := rag.NewRouter(store, adapter, rag.NewTeamDisambiguator(nil), nil, true)
	engine := sync.NewEngine(fakeUpstream{}, store, nil, 2)

	var handler *webhook.Handler
	if withWebhook {
		h, err := webhook.NewHandler("test-secret", store)
		if err != nil {
			t.Fatalf("NewHandler: %v", err)
		}
		handler = h
	}

	return NewServer(Dependencies{
		Store:         store,
		Router:        router,
		Engine:        engine,
		WebhookHandler: handler,
		BearerToken:   bearerToken,
		Env:           "test",
		Mode:          "public",
		RAGMode:       "legacy",
		DefaultGrade:  "U10-BLUE",
		DefaultSeason: "2025",
	})
}

func TestHealthzReportsOK(t *testing.T) {
	server := testServer(t, "", false)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp HealthResponse
	decodeJSON(t, w, &resp)
	if !resp.OK {
		t.Error("expected ok=true")
	}
	if resp.Env != "test" {
		t.Errorf("unexpected env: %s", resp.Env)
	}
}

func TestHealthzDetailedReportsVectorStoreComponent(t *testing.T) {
	server := testServer(t, "", false)

	req := httptest.NewRequest(http.MethodGet, "/healthz/detailed", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp DetailedHealthResponse
	decodeJSON(t, w, &resp)
	if len(resp.Components) != 1 || resp.Components[0].Name != "vector_store" {
		t.Errorf("expected one vector_store component, got %+v", resp.Components)
	}
}

func TestAskRejectsEmptyText(t *testing.T) {
	server := testServer(t, "", false)

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", jsonBody(t, AskRequest{Text: "  "}))
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for empty text, got %d", w.Code)
	}
}

func TestAskReturnsAnswerEnvelope(t *testing.T) {
	server := testServer(t, "", false)

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", jsonBody(t, AskRequest{Text: "what's the next fixture"}))
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var env rag.Envelope
	decodeJSON(t, w, &env)
	if env.Answer == "" {
		t.Error("expected a non-empty answer")
	}
}

func TestRefreshRequiresBearerToken(t *testing.T) {
	server := testServer(t, "shh-secret", false)

	req := httptest.NewRequest(http.MethodPost, "/internal/refresh", jsonBody(t, RefreshRequest{Scope: "all"}))
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 without a bearer token, got %d", w.Code)
	}
}

func TestRefreshSucceedsWithValidBearerToken(t *testing.T) {
	server := testServer(t, "shh-secret", false)

	req := httptest.NewRequest(http.MethodPost, "/internal/refresh", jsonBody(t, RefreshRequest{Scope: "ladder", ID: "U10-BLUE"}))
	req.Header.Set("Authorization", "Bearer shh-secret")
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 with a valid bearer token, got %d body=%s", w.Code, w.Body.String())
	}

	var resp RefreshResponse
	decodeJSON(t, w, &resp)
	if resp.Scope != "ladder" {
		t.Errorf("unexpected scope in response: %s", resp.Scope)
	}
}

func TestSyncBootstrapTriggerIsUnauthenticated(t *testing.T) {
	server := testServer(t, "shh-secret", false)

	req := httptest.NewRequest(http.MethodPost, "/sync", jsonBody(t, RefreshRequest{Scope: "ladder", ID: "U10-BLUE"}))
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected the bootstrap /sync trigger to require no auth, got status %d", w.Code)
	}
}

func TestRefreshRejectsUnknownScope(t *testing.T) {
	server := testServer(t, "", false)

	req := httptest.NewRequest(http.MethodPost, "/sync", jsonBody(t, RefreshRequest{Scope: "nonsense"}))
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for an unknown scope, got %d", w.Code)
	}
}

func TestWebhookRoutesNotRegisteredWithoutHandler(t *testing.T) {
	server := testServer(t, "", false)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/playhq", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected the webhook route not to be registered in public mode, got status %d", w.Code)
	}
}

func TestDocumentLookupReturnsSeededDocument(t *testing.T) {
	server := testServer(t, "", false)
	team := testutils.SampleTeam()

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/"+string(team.ID), nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 for a seeded document, got %d", w.Code)
	}
}

func TestDocumentLookupReturns404ForMissingID(t *testing.T) {
	server := testServer(t, "", false)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/does-not-exist", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for an unknown document id, got %d", w.Code)
	}
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	server := testServer(t, "", true)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/playhq", jsonBody(t, []webhook.Event{}))
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for a missing signature header, got %d", w.Code)
	}
}
