// Package vectorstore is the central interface of the system (§4.3):
// Upsert, Query, GetDocument, GetStats, HealthCheck, implemented by
// four concrete backends (in-memory+local-file, Redis-backed,
// Postgres-document-table-backed, and a managed-index-shaped stub) and
// composed by a tiered-persistence wrapper that tries backends in
// priority order on write and prefers the first hit on read.
package vectorstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/carolinespringscc/cricket-agent/internal/core"
)

// Stats summarizes the store's health and write activity.
type Stats struct {
	DocumentCount int            `json:"document_count"`
	DedupeHits    int            `json:"dedupe_hits"`
	Errors        int            `json:"errors"`
	ByBackend     map[string]int `json:"by_backend,omitempty"`
}

// UpsertResult reports what happened to each document in an Upsert
// call, never by throwing (§4.3, §9).
type UpsertResult struct {
	Written    int
	DedupeHits []string
	Errors     map[string]error
}

// Filters is a mapping of metadata keys to required values, applied
// before ranking (§4.3).
type Filters map[string]string

// Store is the backend contract. Every method degrades gracefully:
// Query on a failed backend returns an empty slice and no error.
type Store interface {
	Name() string
	Upsert(ctx context.Context, docs []core.Document) (UpsertResult, error)
	Query(ctx context.Context, text string, filters Filters, k int) ([]string, error)
	GetDocument(ctx context.Context, id string) (*core.Document, error)
	GetStats(ctx context.Context) (Stats, error)
	HealthCheck(ctx context.Context) error
}

// contentHash computes a stable hash of (text, sorted metadata) for
// the dedupe gate (§4.3).
func contentHash(doc core.Document) string {
	meta, _ := json.Marshal(doc.Metadata)
	h := sha256.New()
	h.Write([]byte(doc.Text))
	h.Write(meta)
	return hex.EncodeToString(h.Sum(nil))
}

// matchesFilters reports whether doc's metadata satisfies every
// required filter key (§4.3: filters apply before ranking).
func matchesFilters(doc core.Document, filters Filters) bool {
	for k, v := range filters {
		var got string
		switch k {
		case "team_id":
			if doc.Metadata.TeamID != nil {
				got = string(*doc.Metadata.TeamID)
			}
		case "season_id":
			got = string(doc.Metadata.SeasonID)
		case "grade_id":
			got = string(doc.Metadata.GradeID)
		case "type":
			got = string(doc.Metadata.Type)
		default:
			continue
		}
		if got != v {
			return false
		}
	}
	return true
}

// lexicalScore is the deterministic, case-insensitive token-overlap
// fallback used when no semantic embedding backend is available
// (§4.3).
func lexicalScore(text, query string) float64 {
	textTokens := tokenSet(text)
	queryTokens := tokenSet(query)
	if len(queryTokens) == 0 || len(textTokens) == 0 {
		return 0
	}
	overlap := 0
	for t := range queryTokens {
		if textTokens[t] {
			overlap++
		}
	}
	return float64(overlap) / float64(len(queryTokens))
}

func tokenSet(s string) map[string]bool {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,:;!?\"'()")
		if f != "" {
			set[f] = true
		}
	}
	return set
}

type scoredDoc struct {
	id    string
	score float64
}

// rankByLexicalScore filters then ranks docs, returning up to k ids.
func rankByLexicalScore(docs []core.Document, text string, filters Filters, k int) []string {
	var scored []scoredDoc
	for _, d := range docs {
		if !matchesFilters(d, filters) {
			continue
		}
		s := lexicalScore(d.Text, text)
		if s <= 0 && text != "" {
			continue
		}
		scored = append(scored, scoredDoc{id: d.ID, score: s})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	if k <= 0 || k > len(scored) {
		k = len(scored)
	}
	ids := make([]string, 0, k)
	for i := 0; i < k; i++ {
		ids = append(ids, scored[i].id)
	}
	return ids
}
