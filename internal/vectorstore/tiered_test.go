package vectorstore

import (
	"context"
	"testing"

	"github.com/carolinespringscc/cricket-agent/internal/core"
)

func TestTieredUpsertFallsThroughOnPrimaryFailure(t *testing.T) {
	ctx := context.Background()
	primary := NewManagedStub() // always fails Upsert/HealthCheck
	fallback := NewMemoryStore("")

	tiered := NewTiered(primary, fallback)

	doc := core.Document{ID: "team-1", Text: "Team: Blue U10"}
	result, err := tiered.Upsert(ctx, []core.Document{doc})
	if err != nil {
		t.Fatalf("expected Tiered.Upsert to succeed via fallback, got %v", err)
	}
	if result.Written != 1 {
		t.Fatalf("expected the fallback backend to record the write, got %+v", result)
	}

	stored, err := fallback.GetDocument(ctx, "team-1")
	if err != nil || stored == nil {
		t.Fatalf("expected the document to have landed in the fallback store, got doc=%v err=%v", stored, err)
	}
}

func TestTieredQueryPrefersFirstNonEmptyHit(t *testing.T) {
	ctx := context.Background()
	empty := NewMemoryStore("")
	populated := NewMemoryStore("")

	doc := core.Document{ID: "fixture-1", Text: "Next fixture Saturday at the reserve"}
	if _, err := populated.Upsert(ctx, []core.Document{doc}); err != nil {
		t.Fatalf("seed populated store: %v", err)
	}

	tiered := NewTiered(empty, populated)
	ids, err := tiered.Query(ctx, "fixture", nil, 5)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(ids) != 1 || ids[0] != "fixture-1" {
		t.Fatalf("expected the query to fall through to the populated backend, got %v", ids)
	}
}

func TestTieredHealthCheckHealthyIfAnyBackendIs(t *testing.T) {
	tiered := NewTiered(NewManagedStub(), NewMemoryStore(""))
	if err := tiered.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected HealthCheck to succeed when at least one backend is healthy, got %v", err)
	}
}

func TestTieredHealthCheckUnhealthyIfAllFail(t *testing.T) {
	tiered := NewTiered(NewManagedStub(), NewManagedStub())
	if err := tiered.HealthCheck(context.Background()); err == nil {
		t.Error("expected HealthCheck to fail when every backend is unhealthy")
	}
}

func TestTieredGetStatsAggregatesByBackend(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore("")
	if _, err := mem.Upsert(ctx, []core.Document{{ID: "a", Text: "a"}, {ID: "b", Text: "b"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	tiered := NewTiered(mem, NewManagedStub())
	stats, err := tiered.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.ByBackend["memory"] != 2 {
		t.Errorf("expected memory backend to report 2 documents, got %+v", stats.ByBackend)
	}
}
