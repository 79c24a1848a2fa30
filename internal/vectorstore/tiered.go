package vectorstore

import (
	"context"
	"fmt"

	"github.com/carolinespringscc/cricket-agent/internal/core"
)

// Tiered composes backends in declared priority order (§4.3): writes
// go to the highest-priority backend first and are best-effort
// mirrored to the rest for redundancy; reads prefer the first backend
// that returns a hit, falling through on miss or error.
type Tiered struct {
	backends []Store
}

// NewTiered builds a Tiered store. backends[0] is the primary; the
// rest are fallback/mirror targets in priority order.
func NewTiered(backends ...Store) *Tiered {
	return &Tiered{backends: backends}
}

func (t *Tiered) Name() string { return "tiered" }

// Upsert writes to the primary backend and returns its result as
// canonical; it then mirrors the same batch to the remaining backends
// best-effort so a reader hitting any tier sees the same documents.
func (t *Tiered) Upsert(ctx context.Context, docs []core.Document) (UpsertResult, error) {
	if len(t.backends) == 0 {
		return UpsertResult{Errors: map[string]error{}}, nil
	}

	primary := t.backends[0]
	result, err := primary.Upsert(ctx, docs)
	if err != nil {
		// Primary failed outright; fall through to the next backend that
		// accepts the write so an Upsert call still lands somewhere.
		for _, b := range t.backends[1:] {
			if r, e := b.Upsert(ctx, docs); e == nil {
				result, err = r, nil
				break
			}
		}
	}

	for _, b := range t.backends {
		if b == primary {
			continue
		}
		_, _ = b.Upsert(ctx, docs)
	}

	return result, err
}

// Query prefers the first backend that is healthy and returns a
// non-empty result; if every backend misses, it returns the last
// backend's (possibly empty) result.
func (t *Tiered) Query(ctx context.Context, text string, filters Filters, k int) ([]string, error) {
	var last []string
	for _, b := range t.backends {
		ids, err := b.Query(ctx, text, filters, k)
		if err != nil {
			continue
		}
		if len(ids) > 0 {
			return ids, nil
		}
		last = ids
	}
	return last, nil
}

// GetDocument prefers the first backend that has the document.
func (t *Tiered) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	for _, b := range t.backends {
		doc, err := b.GetDocument(ctx, id)
		if err == nil && doc != nil {
			return doc, nil
		}
	}
	return nil, nil
}

func (t *Tiered) GetStats(ctx context.Context) (Stats, error) {
	total := Stats{ByBackend: map[string]int{}}
	for _, b := range t.backends {
		s, err := b.GetStats(ctx)
		if err != nil {
			continue
		}
		total.ByBackend[b.Name()] = s.DocumentCount
		if s.DocumentCount > total.DocumentCount {
			total.DocumentCount = s.DocumentCount
		}
		total.DedupeHits += s.DedupeHits
		total.Errors += s.Errors
	}
	return total, nil
}

// HealthCheck reports healthy if any backend is reachable.
func (t *Tiered) HealthCheck(ctx context.Context) error {
	var lastErr error
	for _, b := range t.backends {
		if err := b.HealthCheck(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return lastErr
}

// documentLister is implemented by backends that can enumerate their
// full document set; MemoryStore, PostgresStore and RedisStore all do.
// ManagedStub doesn't, since it never holds any documents.
type documentLister interface {
	Documents(ctx context.Context) ([]core.Document, error)
}

// Warm populates the in-memory tier (if one is configured as a
// backend) from whichever other backend responds first with a
// non-empty document set (§4.3: "it warms its in-memory map from
// whichever backend responds first").
func (t *Tiered) Warm(ctx context.Context, mem *MemoryStore) error {
	if mem == nil {
		return nil
	}
	for _, b := range t.backends {
		if b == Store(mem) {
			continue
		}
		lister, ok := b.(documentLister)
		if !ok {
			continue
		}
		docs, err := lister.Documents(ctx)
		if err != nil || len(docs) == 0 {
			continue
		}
		if _, err := mem.Upsert(ctx, docs); err != nil {
			return fmt.Errorf("tiered store: warm from %s: %w", b.Name(), err)
		}
		return nil
	}
	return nil
}

var _ Store = (*Tiered)(nil)
