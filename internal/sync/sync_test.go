package sync

import (
	"context"
	"testing"

	"github.com/carolinespringscc/cricket-agent/internal/core"
	"github.com/carolinespringscc/cricket-agent/internal/objectstorage"
	"github.com/carolinespringscc/cricket-agent/internal/testutils"
	"github.com/carolinespringscc/cricket-agent/internal/vectorstore"
)

// fakeUpstream is a fixed, in-memory stand-in for core.UpstreamClient
// so the engine's ingestion order and stats folding can be tested
// without a network call.
type fakeUpstream struct {
	teams     []core.Team
	fixtures  map[core.TeamID][]core.Fixture
	ladder    *core.Ladder
	scorecard map[core.FixtureID]*core.Scorecard
	roster    map[core.TeamID]*core.Roster
}

func newFakeUpstream() *fakeUpstream {
	team := testutils.SampleTeam()
	opponent := testutils.SampleOpponent()
	scheduled := testutils.SampleFixture()
	completed := testutils.SampleCompletedFixture()
	ladder := testutils.SampleLadder()
	card := testutils.SampleScorecard()
	roster := testutils.SampleRoster()

	return &fakeUpstream{
		teams: []core.Team{team, opponent},
		fixtures: map[core.TeamID][]core.Fixture{
			team.ID: {scheduled, completed},
		},
		ladder: &ladder,
		scorecard: map[core.FixtureID]*core.Scorecard{
			completed.ID: &card,
		},
		roster: map[core.TeamID]*core.Roster{
			team.ID: &roster,
		},
	}
}

func (f *fakeUpstream) ListTeams(_ context.Context, _ core.GradeID) ([]core.Team, error) {
	return f.teams, nil
}

func (f *fakeUpstream) ListFixtures(_ context.Context, team core.TeamID, _ core.SeasonID) ([]core.Fixture, error) {
	return f.fixtures[team], nil
}

func (f *fakeUpstream) FetchLadder(_ context.Context, _ core.GradeID) (*core.Ladder, error) {
	return f.ladder, nil
}

func (f *fakeUpstream) FetchGameSummary(_ context.Context, fixture core.FixtureID) (*core.Scorecard, error) {
	if c, ok := f.scorecard[fixture]; ok {
		return c, nil
	}
	return &core.Scorecard{FixtureID: fixture, IsCompleted: false}, nil
}

func (f *fakeUpstream) FetchRoster(_ context.Context, team core.TeamID) (*core.Roster, error) {
	if r, ok := f.roster[team]; ok {
		return r, nil
	}
	return &core.Roster{TeamID: team}, nil
}

var _ core.UpstreamClient = (*fakeUpstream)(nil)

func TestFullRefreshUpdatesEveryEntityKind(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore("")
	engine := NewEngine(newFakeUpstream(), store, nil, 2)

	stats, err := engine.FullRefresh(ctx, "U10-BLUE", "2025")
	if err != nil {
		t.Fatalf("FullRefresh: %v", err)
	}

	if stats.TeamsUpdated != 2 {
		t.Errorf("expected 2 teams updated, got %d", stats.TeamsUpdated)
	}
	if stats.FixturesUpdated != 2 {
		t.Errorf("expected 2 fixtures updated, got %d", stats.FixturesUpdated)
	}
	if stats.LaddersUpdated != 1 {
		t.Errorf("expected 1 ladder updated, got %d", stats.LaddersUpdated)
	}
	if stats.ScorecardsUpdated != 1 {
		t.Errorf("expected 1 scorecard updated (only the completed fixture), got %d", stats.ScorecardsUpdated)
	}
	if stats.RostersUpdated != 2 {
		t.Errorf("expected both teams' rosters to be fetched regardless of fixture count, got %d", stats.RostersUpdated)
	}
	if stats.Skipped == 0 {
		t.Error("expected the scheduled (not yet completed) fixture's scorecard to be recorded as skipped")
	}
	if stats.Errors != 0 {
		t.Errorf("expected no errors against a fully populated fake upstream, got %d", stats.Errors)
	}
}

func TestFullRefreshIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore("")
	engine := NewEngine(newFakeUpstream(), store, nil, 2)

	if _, err := engine.FullRefresh(ctx, "U10-BLUE", "2025"); err != nil {
		t.Fatalf("first FullRefresh: %v", err)
	}
	statsBefore, err := store.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}

	// A second run over unchanged upstream data must not grow the
	// document count: every upsert should hit the content-hash dedupe
	// gate (§4.3, §8 idempotency invariant).
	repeat, err := engine.FullRefresh(ctx, "U10-BLUE", "2025")
	if err != nil {
		t.Fatalf("second FullRefresh: %v", err)
	}
	statsAfter, err := store.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}

	if statsAfter.DocumentCount != statsBefore.DocumentCount {
		t.Errorf("expected document count to stay at %d after a repeat refresh, got %d", statsBefore.DocumentCount, statsAfter.DocumentCount)
	}
	if statsAfter.DedupeHits <= statsBefore.DedupeHits {
		t.Errorf("expected the second refresh to register new dedupe hits, before=%d after=%d", statsBefore.DedupeHits, statsAfter.DedupeHits)
	}
	if repeat.VectorUpserts != 0 {
		t.Errorf("expected a fully-deduped repeat refresh to report zero vector upserts, got %d", repeat.VectorUpserts)
	}
	if repeat.DedupeHits == 0 {
		t.Error("expected the repeat refresh's own stats to register dedupe hits")
	}
}

func TestRefreshScorecardSkipsIncompleteFixture(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore("")
	up := newFakeUpstream()
	engine := NewEngine(up, store, nil, 2)

	scheduled := testutils.SampleFixture()
	stats, err := engine.PerMatchRefresh(ctx, scheduled.ID, "caroline-springs-blue")
	if err != nil {
		t.Fatalf("PerMatchRefresh: %v", err)
	}

	if stats.ScorecardsUpdated != 0 {
		t.Errorf("expected an incomplete fixture's scorecard not to be ingested, got %d updated", stats.ScorecardsUpdated)
	}
	if stats.Skipped != 1 {
		t.Errorf("expected the incomplete scorecard to be counted as skipped, got %d", stats.Skipped)
	}
}

func TestPerMatchRefreshMirrorsCompletedScorecard(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore("")
	up := newFakeUpstream()
	mirror := objectstorage.NewLocalFallback(t.TempDir())
	engine := NewEngine(up, store, mirror, 2)

	completed := testutils.SampleCompletedFixture()
	stats, err := engine.PerMatchRefresh(ctx, completed.ID, "caroline-springs-blue")
	if err != nil {
		t.Fatalf("PerMatchRefresh: %v", err)
	}

	if stats.ScorecardsUpdated != 1 {
		t.Errorf("expected the completed fixture's scorecard to be ingested, got %d", stats.ScorecardsUpdated)
	}
	if stats.ObjectWrites != 1 {
		t.Errorf("expected one object-storage mirror write, got %d", stats.ObjectWrites)
	}
}

func TestPerLadderRefresh(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore("")
	engine := NewEngine(newFakeUpstream(), store, nil, 2)

	stats, err := engine.PerLadderRefresh(ctx, "U10-BLUE")
	if err != nil {
		t.Fatalf("PerLadderRefresh: %v", err)
	}
	if stats.LaddersUpdated != 1 {
		t.Errorf("expected 1 ladder updated, got %d", stats.LaddersUpdated)
	}
}
