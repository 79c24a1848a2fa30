package core

import "context"

// OutcomeKind is the closed set of results a best-effort per-entity
// operation can produce. Replaces exception-driven "skip this entity"
// control flow (§9): every normalize-then-upsert step returns one of
// these instead of raising.
type OutcomeKind string

const (
	OutcomeOK      OutcomeKind = "ok"
	OutcomeSkipped OutcomeKind = "skipped"
	OutcomeError   OutcomeKind = "error"
)

// Outcome is the result of one best-effort unit of work (one entity
// normalized and upserted, one page fetched, one document mirrored).
// The sync engine and webhook handler fold a stream of these into their
// stats counters rather than catching exceptions.
type Outcome struct {
	Kind   OutcomeKind
	Detail string
}

func OK() Outcome                  { return Outcome{Kind: OutcomeOK} }
func Skipped(detail string) Outcome { return Outcome{Kind: OutcomeSkipped, Detail: detail} }
func Failed(detail string) Outcome  { return Outcome{Kind: OutcomeError, Detail: detail} }

// Normalizer converts a raw provider JSON payload for one DocumentKind
// into its typed record. Implementations are pure: identical input
// bytes produce an identical typed record.
type Normalizer interface {
	Kind() DocumentKind
	Normalize(raw []byte) (any, error)
}

// SnippetGenerator converts a typed record produced by a Normalizer of
// the same DocumentKind into the deterministic embedding text described
// in §4.2. Implementations are pure functions of the record.
type SnippetGenerator interface {
	Kind() DocumentKind
	Snippet(record any) (string, error)
}

// DocumentSource pairs a Normalizer and SnippetGenerator for one
// DocumentKind. The sync engine and webhook handler dispatch on Kind()
// via a switch — never a string-keyed registry (§9).
type DocumentSource interface {
	Normalizer
	SnippetGenerator
}

// UpstreamClient is the subset of the provider API client (§4.1) that
// the sync engine reads through. The intent router does not use it: a
// vector-store miss on the fast path falls through to the RAG path, not
// to the provider. Defined here, alongside the domain types it returns,
// so both internal/upstream and internal/sync can depend on it without
// an import cycle.
type UpstreamClient interface {
	ListTeams(ctx context.Context, grade GradeID) ([]Team, error)
	ListFixtures(ctx context.Context, team TeamID, season SeasonID) ([]Fixture, error)
	FetchLadder(ctx context.Context, grade GradeID) (*Ladder, error)
	FetchGameSummary(ctx context.Context, fixture FixtureID) (*Scorecard, error)
	FetchRoster(ctx context.Context, team TeamID) (*Roster, error)
}
