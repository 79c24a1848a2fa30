// Package sync is the ingestion engine (§4.4): it pulls from the
// upstream provider, normalizes into typed records, generates
// snippets, upserts into the vector store, and mirrors raw JSON to
// object storage. Of the four composable scopes, FullRefresh fans its
// per-team work out over a bounded worker pool; the others run inline.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/carolinespringscc/cricket-agent/internal/cache"
	"github.com/carolinespringscc/cricket-agent/internal/core"
	"github.com/carolinespringscc/cricket-agent/internal/normalize"
	"github.com/carolinespringscc/cricket-agent/internal/objectstorage"
	"github.com/carolinespringscc/cricket-agent/internal/vectorstore"
)

// Stats accumulates the outcome counters for one refresh run (§4.4).
type Stats struct {
	TeamsUpdated      int `json:"teams_updated"`
	FixturesUpdated   int `json:"fixtures_updated"`
	LaddersUpdated    int `json:"ladders_updated"`
	ScorecardsUpdated int `json:"scorecards_updated"`
	RostersUpdated    int `json:"rosters_updated"`
	VectorUpserts     int `json:"vector_upserts"`
	DedupeHits        int `json:"dedupe_hits"`
	ObjectWrites      int `json:"gcs_writes"`
	Skipped           int `json:"skipped"`
	Errors            int `json:"errors"`
}

func (s *Stats) add(o core.Outcome) {
	switch o.Kind {
	case core.OutcomeSkipped:
		s.Skipped++
	case core.OutcomeError:
		s.Errors++
	}
}

type statsMu struct {
	sync.Mutex
	Stats
}

func (s *statsMu) add(o core.Outcome) {
	s.Lock()
	defer s.Unlock()
	s.Stats.add(o)
}

// recordUpsert folds one upsertRecord call's store result into the
// running totals: VectorUpserts counts only documents the store
// actually wrote, never pure content-hash dedupe hits (§4.3, §8
// idempotency invariant).
func (s *statsMu) recordUpsert(result vectorstore.UpsertResult) {
	s.Lock()
	defer s.Unlock()
	s.Stats.VectorUpserts += result.Written
	s.Stats.DedupeHits += len(result.DedupeHits)
}

// Engine runs the four refresh scopes named in §4.4; FullRefresh uses a
// bounded worker pool of poolSize workers.
type Engine struct {
	upstream   core.UpstreamClient
	store      vectorstore.Store
	mirror     objectstorage.Mirror
	poolSize   int
	scorecards *cache.EntityCacheHelper
	rosters    *cache.EntityCacheHelper
}

// Option configures an Engine.
type Option func(*Engine)

// WithResponseCache attaches a cache.Client so completed scorecards and
// team rosters are cached by ID (§4.4). A re-run of the same refresh
// scope inside the cache's entity TTL window reads the cached entity
// instead of re-fetching it from the upstream provider. Scorecards for
// completed fixtures never change; rosters change rarely enough that a
// short-lived cache is safe too.
func WithResponseCache(c *cache.Client) Option {
	return func(e *Engine) {
		e.scorecards = cache.NewEntityCacheHelper(c, "scorecard")
		e.rosters = cache.NewEntityCacheHelper(c, "roster")
	}
}

func NewEngine(upstream core.UpstreamClient, store vectorstore.Store, mirror objectstorage.Mirror, poolSize int, opts ...Option) *Engine {
	if poolSize <= 0 {
		poolSize = 4
	}
	e := &Engine{upstream: upstream, store: store, mirror: mirror, poolSize: poolSize}
	for _, opt := range opts {
		opt(e)
	}
	if e.scorecards == nil {
		e.scorecards = cache.NewEntityCacheHelper(nil, "scorecard")
	}
	if e.rosters == nil {
		e.rosters = cache.NewEntityCacheHelper(nil, "roster")
	}
	return e
}

// upsertRecord runs snippet -> metadata stamp -> chunk -> store upsert
// for one already-typed record and returns an Outcome instead of an
// error (§4.2, §9).
func (e *Engine) upsertRecord(ctx context.Context, kind core.DocumentKind, id string, record any, meta core.DocumentMetadata) (core.Outcome, vectorstore.UpsertResult) {
	source := normalize.ForKind(kind)
	if source == nil {
		return core.Failed(fmt.Sprintf("no normalizer registered for kind %q", kind)), vectorstore.UpsertResult{}
	}

	text, err := source.Snippet(record)
	if err != nil {
		return core.Failed(err.Error()), vectorstore.UpsertResult{}
	}
	meta.Type = kind

	docs := normalize.Chunk(id, text, meta)
	result, err := e.store.Upsert(ctx, docs)
	if err != nil {
		return core.Failed(err.Error()), result
	}
	if len(result.Errors) > 0 {
		for _, docErr := range result.Errors {
			return core.Failed(docErr.Error()), result
		}
	}
	return core.OK(), result
}

func (e *Engine) mirrorRaw(ctx context.Context, path string, payload any) {
	if e.mirror == nil {
		return
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return
	}
	_, _ = e.mirror.Write(ctx, path, data)
}

// FullRefresh lists the grade's teams and refreshes each team's graph
// on the worker pool (team -> fixtures -> completed fixtures'
// scorecards -> roster, in that order within a team), then refreshes
// the grade's ladder once every team has finished. The order is per
// team: different teams' entities are written in no fixed order.
func (e *Engine) FullRefresh(ctx context.Context, org core.GradeID, season core.SeasonID) (Stats, error) {
	stats := &statsMu{}

	teams, err := e.upstream.ListTeams(ctx, org)
	if err != nil {
		return stats.Stats, fmt.Errorf("full refresh: list teams: %w", err)
	}

	pool, err := ants.NewPool(e.poolSize)
	if err != nil {
		return stats.Stats, fmt.Errorf("full refresh: create worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, team := range teams {
		team := team
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			e.refreshTeamGraph(ctx, team, season, stats)
		}); err != nil {
			wg.Done()
			stats.add(core.Failed(err.Error()))
		}
	}
	wg.Wait()

	ladder, err := e.upstream.FetchLadder(ctx, org)
	if err == nil && ladder != nil {
		o, result := e.upsertRecord(ctx, core.KindLadder, fmt.Sprintf("ladder:%s", org), *ladder, core.DocumentMetadata{SeasonID: ladder.SeasonID, GradeID: ladder.GradeID})
		stats.add(o)
		if o.Kind == core.OutcomeOK {
			stats.LaddersUpdated++
			stats.recordUpsert(result)
		}
		e.mirrorRaw(ctx, objectstorage.LadderPath(string(org), time.Now()), ladder)
		stats.ObjectWrites++
	} else if err != nil {
		stats.add(core.Failed(err.Error()))
	}

	return stats.Stats, nil
}

// refreshTeamGraph ingests one team, its fixtures, its roster, and its
// recently completed scorecards. Used by both FullRefresh (fanned out
// across the worker pool) and PerTeamRefresh.
func (e *Engine) refreshTeamGraph(ctx context.Context, team core.Team, season core.SeasonID, stats *statsMu) {
	teamMeta := core.DocumentMetadata{TeamID: &team.ID, SeasonID: season, GradeID: team.Grade}

	o, result := e.upsertRecord(ctx, core.KindTeam, fmt.Sprintf("team:%s", team.ID), team, teamMeta)
	stats.add(o)
	if o.Kind == core.OutcomeOK {
		stats.TeamsUpdated++
		stats.recordUpsert(result)
	}

	fixtures, err := e.upstream.ListFixtures(ctx, team.ID, season)
	if err != nil {
		stats.add(core.Failed(err.Error()))
		return
	}

	for _, f := range fixtures {
		fMeta := core.DocumentMetadata{TeamID: &team.ID, SeasonID: season, GradeID: f.Grade, Date: &f.ScheduledAt}
		fo, fresult := e.upsertRecord(ctx, core.KindFixture, fmt.Sprintf("fixture:%s", f.ID), f, fMeta)
		stats.add(fo)
		if fo.Kind == core.OutcomeOK {
			stats.FixturesUpdated++
			stats.recordUpsert(fresult)
		}

		if f.Status != core.FixtureCompleted {
			stats.add(core.Skipped("fixture not completed"))
			continue
		}
		e.refreshScorecard(ctx, f.ID, team.Name, stats)
	}

	var roster core.Roster
	if !e.rosters.Get(ctx, string(team.ID), &roster) {
		fetched, err := e.upstream.FetchRoster(ctx, team.ID)
		if err != nil {
			stats.add(core.Failed(err.Error()))
			return
		}
		roster = *fetched
		_ = e.rosters.Set(ctx, string(team.ID), roster)
	}
	rMeta := core.DocumentMetadata{TeamID: &team.ID, SeasonID: season, GradeID: team.Grade}
	ro, rresult := e.upsertRecord(ctx, core.KindRoster, fmt.Sprintf("roster:%s", team.ID), roster, rMeta)
	stats.add(ro)
	if ro.Kind == core.OutcomeOK {
		stats.RostersUpdated++
		stats.recordUpsert(rresult)
	}
}

func (e *Engine) refreshScorecard(ctx context.Context, fixture core.FixtureID, teamSlug string, stats *statsMu) {
	var scorecard core.Scorecard
	if !e.scorecards.Get(ctx, string(fixture), &scorecard) {
		fetched, err := e.upstream.FetchGameSummary(ctx, fixture)
		if err != nil {
			stats.add(core.Failed(err.Error()))
			return
		}
		scorecard = *fetched
		if scorecard.IsCompleted {
			_ = e.scorecards.Set(ctx, string(fixture), scorecard)
		}
	}
	if !scorecard.IsCompleted {
		stats.add(core.Skipped("scorecard not completed"))
		return
	}

	sMeta := core.DocumentMetadata{Type: core.KindScorecard}
	so, sresult := e.upsertRecord(ctx, core.KindScorecard, fmt.Sprintf("scorecard:%s", fixture), scorecard, sMeta)
	stats.add(so)
	if so.Kind == core.OutcomeOK {
		stats.ScorecardsUpdated++
		stats.recordUpsert(sresult)
	}

	e.mirrorRaw(ctx, objectstorage.TeamMatchPath(slugify(teamSlug), string(fixture), time.Now()), scorecard)
	stats.ObjectWrites++
}

// PerTeamRefresh refreshes one team's graph: team, fixtures, roster,
// and its recent scorecards (§4.4).
func (e *Engine) PerTeamRefresh(ctx context.Context, team core.Team, season core.SeasonID) (Stats, error) {
	stats := &statsMu{}
	e.refreshTeamGraph(ctx, team, season, stats)
	return stats.Stats, nil
}

// PerMatchRefresh refreshes one scorecard and mirrors it (§4.4).
func (e *Engine) PerMatchRefresh(ctx context.Context, fixture core.FixtureID, teamSlug string) (Stats, error) {
	stats := &statsMu{}
	e.refreshScorecard(ctx, fixture, teamSlug, stats)
	return stats.Stats, nil
}

// PerLadderRefresh refreshes one grade's ladder and mirrors it (§4.4).
func (e *Engine) PerLadderRefresh(ctx context.Context, grade core.GradeID) (Stats, error) {
	stats := &statsMu{}
	ladder, err := e.upstream.FetchLadder(ctx, grade)
	if err != nil {
		stats.add(core.Failed(err.Error()))
		return stats.Stats, nil
	}
	meta := core.DocumentMetadata{SeasonID: ladder.SeasonID, GradeID: ladder.GradeID}
	o, result := e.upsertRecord(ctx, core.KindLadder, fmt.Sprintf("ladder:%s", grade), *ladder, meta)
	stats.add(o)
	if o.Kind == core.OutcomeOK {
		stats.LaddersUpdated++
		stats.recordUpsert(result)
	}
	e.mirrorRaw(ctx, objectstorage.LadderPath(string(grade), time.Now()), ladder)
	stats.ObjectWrites++
	return stats.Stats, nil
}

func slugify(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "-"))
}
