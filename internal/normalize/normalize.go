// Package normalize implements the per-entity Normalizer and
// SnippetGenerator pair named in §4.2: raw provider JSON in, a typed
// record out; typed record in, a factual embedding-ready text block
// out. Each DocumentKind gets its own DocumentSource implementation;
// dispatch is a plain switch over the tag, never a string-keyed
// registry (§4.2, §9).
package normalize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/carolinespringscc/cricket-agent/internal/core"
)

// maxSnippetLines is the approximate chunk boundary (§4.2): a snippet
// longer than this is split on line boundaries into multiple documents
// sharing an id prefix.
const maxSnippetLines = 30

// ForKind returns the DocumentSource registered for kind, or nil if
// none exists.
func ForKind(kind core.DocumentKind) core.DocumentSource {
	switch kind {
	case core.KindTeam:
		return TeamSource{}
	case core.KindFixture:
		return FixtureSource{}
	case core.KindLadder:
		return LadderSource{}
	case core.KindScorecard:
		return ScorecardSource{}
	case core.KindRoster:
		return RosterSource{}
	default:
		return nil
	}
}

// TeamSource normalizes raw team JSON and renders a snippet with the
// team's name, grade, season and player count (§4.2). It does not name
// a captain, vice-captain or wicket-keeper; those appear only in the
// roster snippet.
type TeamSource struct{}

func (TeamSource) Kind() core.DocumentKind { return core.KindTeam }

func (TeamSource) Normalize(raw []byte) (any, error) {
	var t core.Team
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("normalize team: %w", err)
	}
	return t, nil
}

func (TeamSource) Snippet(record any) (string, error) {
	t, ok := record.(core.Team)
	if !ok {
		return "", fmt.Errorf("team snippet: unexpected record type %T", record)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Team: %s\n", t.Name)
	fmt.Fprintf(&b, "Grade: %s\n", t.Grade)
	fmt.Fprintf(&b, "Season: %s\n", t.Season)
	fmt.Fprintf(&b, "Players: %d\n", len(t.Players))
	return b.String(), nil
}

// FixtureSource normalizes raw fixture JSON into a Fixture and renders
// the match-card snippet shape (§4.2).
type FixtureSource struct{}

func (FixtureSource) Kind() core.DocumentKind { return core.KindFixture }

func (FixtureSource) Normalize(raw []byte) (any, error) {
	var f core.Fixture
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("normalize fixture: %w", err)
	}
	return f, nil
}

func (FixtureSource) Snippet(record any) (string, error) {
	f, ok := record.(core.Fixture)
	if !ok {
		return "", fmt.Errorf("fixture snippet: unexpected record type %T", record)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Fixture: %s vs %s\n", f.HomeTeam, f.AwayTeam)
	fmt.Fprintf(&b, "Date: %s\n", f.ScheduledAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Status: %s\n", f.Status)
	if f.Venue != "" {
		fmt.Fprintf(&b, "Venue: %s\n", f.Venue)
	}
	fmt.Fprintf(&b, "Grade: %s\n", f.Grade)
	if f.Result != nil && *f.Result != "" {
		fmt.Fprintf(&b, "Result: %s\n", *f.Result)
	}
	return b.String(), nil
}

// LadderSource normalizes raw ladder JSON and renders an ordered
// standings snippet (§4.2).
type LadderSource struct{}

func (LadderSource) Kind() core.DocumentKind { return core.KindLadder }

func (LadderSource) Normalize(raw []byte) (any, error) {
	var l core.Ladder
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("normalize ladder: %w", err)
	}
	return l, nil
}

func (LadderSource) Snippet(record any) (string, error) {
	l, ok := record.(core.Ladder)
	if !ok {
		return "", fmt.Errorf("ladder snippet: unexpected record type %T", record)
	}
	entries := make([]core.LadderEntry, len(l.Entries))
	copy(entries, l.Entries)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Position < entries[j].Position })

	var b strings.Builder
	fmt.Fprintf(&b, "Ladder: %s\n", l.GradeID)
	fmt.Fprintf(&b, "Season: %s\n", l.SeasonID)
	fmt.Fprintf(&b, "Teams: %d\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, "%d. %s - %d points (P%d W%d L%d D%d, %.1f%%)\n",
			e.Position, e.TeamName, e.Points, e.Played, e.Won, e.Lost, e.Drawn, e.Percentage)
	}
	return b.String(), nil
}

// ScorecardSource normalizes raw scorecard JSON and renders a
// match-result snippet with both team totals (§4.2).
type ScorecardSource struct{}

func (ScorecardSource) Kind() core.DocumentKind { return core.KindScorecard }

func (ScorecardSource) Normalize(raw []byte) (any, error) {
	var s core.Scorecard
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("normalize scorecard: %w", err)
	}
	return s, nil
}

func (ScorecardSource) Snippet(record any) (string, error) {
	s, ok := record.(core.Scorecard)
	if !ok {
		return "", fmt.Errorf("scorecard snippet: unexpected record type %T", record)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Match: %s vs %s\n", s.Home.Team, s.Away.Team)
	fmt.Fprintf(&b, "Completed: %v\n", s.IsCompleted)
	if s.Result != "" {
		fmt.Fprintf(&b, "Result: %s\n", s.Result)
	}
	fmt.Fprintf(&b, "%s: %d/%d (%.1f overs)\n", s.Home.Team, s.Home.Innings.Runs, s.Home.Innings.Wickets, s.Home.Innings.Overs)
	fmt.Fprintf(&b, "%s: %d/%d (%.1f overs)\n", s.Away.Team, s.Away.Innings.Runs, s.Away.Innings.Wickets, s.Away.Innings.Overs)
	return b.String(), nil
}

// RosterSource normalizes raw roster JSON and renders the
// captain/vice-captain/wicket-keeper snippet shape (§4.2).
type RosterSource struct{}

func (RosterSource) Kind() core.DocumentKind { return core.KindRoster }

func (RosterSource) Normalize(raw []byte) (any, error) {
	var r core.Roster
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("normalize roster: %w", err)
	}
	return r, nil
}

func (RosterSource) Snippet(record any) (string, error) {
	r, ok := record.(core.Roster)
	if !ok {
		return "", fmt.Errorf("roster snippet: unexpected record type %T", record)
	}
	var captain, vice, keeper string
	for _, p := range r.Players {
		switch {
		case p.IsCaptain:
			captain = p.Name
		case p.IsViceCaptain:
			vice = p.Name
		}
		if p.IsWicketKeeper {
			keeper = p.Name
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Roster: %s\n", r.Team)
	fmt.Fprintf(&b, "Players: %d\n", len(r.Players))
	if captain != "" {
		fmt.Fprintf(&b, "Captain: %s\n", captain)
	}
	if vice != "" {
		fmt.Fprintf(&b, "Vice-captain: %s\n", vice)
	}
	if keeper != "" {
		fmt.Fprintf(&b, "Wicket-keeper: %s\n", keeper)
	}
	return b.String(), nil
}

// Chunk splits a snippet exceeding maxSnippetLines on line boundaries
// into multiple documents sharing idPrefix and metadata (§4.2).
func Chunk(idPrefix, text string, metadata core.DocumentMetadata) []core.Document {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) <= maxSnippetLines {
		return []core.Document{{ID: idPrefix, Text: text, Metadata: metadata}}
	}

	var docs []core.Document
	for i := 0; i < len(lines); i += maxSnippetLines {
		end := i + maxSnippetLines
		if end > len(lines) {
			end = len(lines)
		}
		docs = append(docs, core.Document{
			ID:       fmt.Sprintf("%s#%d", idPrefix, i/maxSnippetLines),
			Text:     strings.Join(lines[i:end], "\n"),
			Metadata: metadata,
		})
	}
	return docs
}

var (
	_ core.DocumentSource = TeamSource{}
	_ core.DocumentSource = FixtureSource{}
	_ core.DocumentSource = LadderSource{}
	_ core.DocumentSource = ScorecardSource{}
	_ core.DocumentSource = RosterSource{}
)
