package rag

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/carolinespringscc/cricket-agent/internal/core"
	"github.com/carolinespringscc/cricket-agent/internal/llm"
	"github.com/carolinespringscc/cricket-agent/internal/normalize"
	"github.com/carolinespringscc/cricket-agent/internal/testutils"
	"github.com/carolinespringscc/cricket-agent/internal/vectorstore"
)

// seededStore holds a single fixture snippet with no team metadata, so
// a query that matches the next_fixture pattern without capturing a
// team entity hits it regardless of filters.
func seededStore(t *testing.T) vectorstore.Store {
	t.Helper()
	store := vectorstore.NewMemoryStore("")

	fixture := testutils.SampleFixture()
	raw, err := json.Marshal(fixture)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}

	record, err := normalize.FixtureSource{}.Normalize(raw)
	if err != nil {
		t.Fatalf("normalize fixture: %v", err)
	}
	snippet, err := normalize.FixtureSource{}.Snippet(record)
	if err != nil {
		t.Fatalf("fixture snippet: %v", err)
	}

	docs := normalize.Chunk("fixture-1", snippet, core.DocumentMetadata{Type: core.KindFixture})
	if _, err := store.Upsert(context.Background(), docs); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return store
}

// failingStore always errors on Query, used to exercise the router's
// apology-envelope failure semantics (§4.6).
type failingStore struct{ vectorstore.Store }

func (failingStore) Name() string { return "failing" }
func (failingStore) Query(context.Context, string, vectorstore.Filters, int) ([]string, error) {
	return nil, errors.New("backend unavailable")
}
func (f failingStore) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	return nil, nil
}
func (f failingStore) Upsert(ctx context.Context, docs []core.Document) (vectorstore.UpsertResult, error) {
	return vectorstore.UpsertResult{}, nil
}
func (f failingStore) GetStats(ctx context.Context) (vectorstore.Stats, error) {
	return vectorstore.Stats{}, nil
}
func (f failingStore) HealthCheck(ctx context.Context) error { return errors.New("down") }

func TestAskLegacyFastPathAnswersFixtureQuery(t *testing.T) {
	store := seededStore(t)
	adapter := llm.NewAdapter(llm.NewStub(), 0)
	router := NewRouter(store, adapter, NewTeamDisambiguator(nil), nil, true)

	env := router.Ask(context.Background(), "what's the next fixture", "")

	if env.Meta.Source != "pattern_match" {
		t.Errorf("expected the pattern-matched fast path to answer, got source=%q meta=%+v", env.Meta.Source, env.Meta)
	}
	if env.Meta.Intent != string(llm.IntentNextFixture) {
		t.Errorf("expected next_fixture intent, got %q", env.Meta.Intent)
	}
	if env.Answer == "" {
		t.Error("expected a non-empty answer")
	}
}

func TestAskFallsThroughToRAGWhenLegacyDisabled(t *testing.T) {
	store := seededStore(t)
	adapter := llm.NewAdapter(llm.NewStub(), 0)
	router := NewRouter(store, adapter, NewTeamDisambiguator(nil), nil, false)

	env := router.Ask(context.Background(), "what's the next fixture", "")

	if env.Meta.Source != "llm_rag" {
		t.Errorf("expected the LLM path to answer when legacy mode is off, got source=%q", env.Meta.Source)
	}
	if env.Meta.Error != "" {
		t.Errorf("expected no error, got %q", env.Meta.Error)
	}
}

func TestAskFallsThroughToRAGWhenPatternMisses(t *testing.T) {
	store := seededStore(t)
	adapter := llm.NewAdapter(llm.NewStub(), 0)
	router := NewRouter(store, adapter, NewTeamDisambiguator(nil), nil, true)

	env := router.Ask(context.Background(), "what's the weather like at training tonight", "")

	if env.Meta.Source != "llm_rag" {
		t.Errorf("expected an unmatched pattern to fall through to the LLM path, got source=%q", env.Meta.Source)
	}
}

func TestAskReturnsApologyEnvelopeOnStoreFailure(t *testing.T) {
	adapter := llm.NewAdapter(llm.NewStub(), 0)
	router := NewRouter(failingStore{}, adapter, NewTeamDisambiguator(nil), nil, false)

	env := router.Ask(context.Background(), "what's the ladder position", "")

	if env.Meta.Source != "error" {
		t.Errorf("expected a failure-semantics apology envelope, got source=%q", env.Meta.Source)
	}
	if env.Meta.Error == "" {
		t.Error("expected meta.error to be populated")
	}
	if env.Answer == "" {
		t.Error("expected a user-safe apology answer, got empty string")
	}
}

func TestAskToleratesNilResponseCache(t *testing.T) {
	store := seededStore(t)
	adapter := llm.NewAdapter(llm.NewStub(), 0)
	router := NewRouter(store, adapter, NewTeamDisambiguator(nil), nil, true)

	env := router.Ask(context.Background(), "what's the next fixture", "")
	if env.Meta.CacheHit {
		t.Error("expected no cache hit when the response cache is nil")
	}
}

func TestTeamDisambiguatorResolvesShortForms(t *testing.T) {
	d := NewTeamDisambiguator([]TeamRef{{ID: "team-blue-u10", Name: "Caroline Springs Blue U10"}})

	for _, hint := range []string{"blue u10", "blue 10s", "Caroline Springs Blue U10"} {
		if got := d.Canonicalize(hint); got != "team-blue-u10" {
			t.Errorf("Canonicalize(%q) = %q, want team id", hint, got)
		}
	}
	if got := d.Canonicalize("unrelated"); got != "unrelated" {
		t.Errorf("expected an unmatched hint to pass through unchanged, got %q", got)
	}
}

// teamScopedStore seeds two fixture documents tagged with distinct
// TeamID metadata, the same shape sync.refreshTeamGraph stamps on
// ingestion, so a team_id filter has something real to exclude.
func teamScopedStore(t *testing.T) vectorstore.Store {
	t.Helper()
	store := vectorstore.NewMemoryStore("")

	blue := core.TeamID("team-blue-u10")
	red := core.TeamID("team-red-u10")
	docs := []core.Document{
		{ID: "fixture:blue", Text: "Fixture: Caroline Springs Blue U10 vs Caroline Springs Red U10\nDate: 2025-06-01\nStatus: scheduled", Metadata: core.DocumentMetadata{Type: core.KindFixture, TeamID: &blue}},
		{ID: "fixture:red", Text: "Fixture: Caroline Springs Red U10 vs Caroline Springs Blue U10\nDate: 2025-06-08\nStatus: scheduled", Metadata: core.DocumentMetadata{Type: core.KindFixture, TeamID: &red}},
	}
	if _, err := store.Upsert(context.Background(), docs); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return store
}

func TestAskFiltersByResolvedTeamID(t *testing.T) {
	store := teamScopedStore(t)
	adapter := llm.NewAdapter(llm.NewStub(), 0)
	disambiguator := NewTeamDisambiguator([]TeamRef{{ID: "team-blue-u10", Name: "Caroline Springs Blue U10"}})
	router := NewRouter(store, adapter, disambiguator, nil, false)

	env := router.Ask(context.Background(), "what's the next fixture", "blue u10")

	if !strings.Contains(env.Answer, "2025-06-01") {
		t.Errorf("expected the blue team's own fixture to answer, got %q", env.Answer)
	}
	if strings.Contains(env.Answer, "2025-06-08") {
		t.Errorf("expected the red team's fixture to be excluded by the team_id filter, got %q", env.Answer)
	}
}
