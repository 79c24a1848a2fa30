package testutils

import "github.com/carolinespringscc/cricket-agent/internal/core"

// Fixture builders for unit tests across the ingestion, vector-store,
// and RAG packages. Unlike the CSV bulk loaders this package once used
// for Lahman/Retrosheet data, this service's tests need only a handful
// of typed in-memory records, so these are plain constructors rather
// than a file-backed loader.

// SampleTeam returns a deterministic Team fixture.
func SampleTeam() core.Team {
	return core.Team{
		ID:     "team-blue-u10",
		Name:   "Caroline Springs Blue U10",
		Grade:  "U10-BLUE",
		Season: "2025",
		Players: []core.PlayerID{
			"player-1", "player-2", "player-3",
		},
	}
}

// SampleOpponent returns a second Team fixture distinct from SampleTeam,
// for fixtures/ladders that need two sides.
func SampleOpponent() core.Team {
	return core.Team{
		ID:     "team-red-u10",
		Name:   "Caroline Springs Red U10",
		Grade:  "U10-BLUE",
		Season: "2025",
	}
}

// SampleFixture returns a scheduled Fixture between SampleTeam and
// SampleOpponent.
func SampleFixture() core.Fixture {
	return core.Fixture{
		ID:          "fixture-1",
		HomeTeamID:  "team-blue-u10",
		HomeTeam:    "Caroline Springs Blue U10",
		AwayTeamID:  "team-red-u10",
		AwayTeam:    "Caroline Springs Red U10",
		Venue:       "Caroline Springs Reserve",
		Grade:       "U10-BLUE",
		Season:      "2025",
		Status:      core.FixtureScheduled,
	}
}

// SampleCompletedFixture returns a Fixture in the FixtureCompleted
// state, eligible for scorecard ingestion (§4.4).
func SampleCompletedFixture() core.Fixture {
	f := SampleFixture()
	f.ID = "fixture-2"
	f.Status = core.FixtureCompleted
	result := "Caroline Springs Blue U10 won by 14 runs"
	f.Result = &result
	return f
}

// SampleLadder returns a two-entry Ladder for the same grade/season as
// SampleFixture.
func SampleLadder() core.Ladder {
	return core.Ladder{
		GradeID:  "U10-BLUE",
		SeasonID: "2025",
		Entries: []core.LadderEntry{
			{Position: 1, TeamID: "team-blue-u10", TeamName: "Caroline Springs Blue U10", Played: 5, Won: 4, Lost: 1, Points: 16, Percentage: 142.5},
			{Position: 2, TeamID: "team-red-u10", TeamName: "Caroline Springs Red U10", Played: 5, Won: 3, Lost: 2, Points: 12, Percentage: 110.0},
		},
	}
}

// SampleScorecard returns a completed Scorecard for
// SampleCompletedFixture.
func SampleScorecard() core.Scorecard {
	return core.Scorecard{
		FixtureID:   "fixture-2",
		IsCompleted: true,
		Result:      "Caroline Springs Blue U10 won by 14 runs",
		Home: core.TeamScorecard{
			TeamID:  "team-blue-u10",
			Team:    "Caroline Springs Blue U10",
			Innings: core.TeamInnings{Runs: 142, Wickets: 6, Overs: 20},
			Batting: []core.BattingLine{
				{PlayerID: "player-1", PlayerName: "A. Smith", Runs: 54, BallsFaced: 38, Fours: 6, Sixes: 2, Out: true, DismissalInfo: "b. Jones"},
			},
			Bowling: []core.BowlingLine{
				{PlayerID: "player-2", PlayerName: "B. Lee", Overs: 4, Wickets: 3, RunsConceded: 18},
			},
		},
		Away: core.TeamScorecard{
			TeamID:  "team-red-u10",
			Team:    "Caroline Springs Red U10",
			Innings: core.TeamInnings{Runs: 128, Wickets: 9, Overs: 20},
		},
	}
}

// SampleIncompleteScorecard returns a Scorecard for a fixture still in
// progress, used to exercise the sync engine's scorecard-eligibility
// gate (§4.4: only completed scorecards are ingested).
func SampleIncompleteScorecard() core.Scorecard {
	return core.Scorecard{
		FixtureID:   "fixture-1",
		IsCompleted: false,
	}
}

// SampleRoster returns a Roster for SampleTeam with one captain, one
// vice-captain, and one wicket-keeper.
func SampleRoster() core.Roster {
	return core.Roster{
		TeamID: "team-blue-u10",
		Team:   "Caroline Springs Blue U10",
		Players: []core.Player{
			{ID: "player-1", Name: "A. Smith", IsCaptain: true},
			{ID: "player-2", Name: "B. Lee", IsViceCaptain: true},
			{ID: "player-3", Name: "C. Patel", IsWicketKeeper: true},
		},
	}
}
