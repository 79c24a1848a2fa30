package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/carolinespringscc/cricket-agent/internal/core"
)

// MemoryStore is the in-memory backend with an optional local-file
// durability layer: writes are applied to the map and, if a file path
// is configured, appended to a JSON snapshot so a process restart can
// warm the map back up (§4.3 persistence invariants, option (a): a
// durable backend written synchronously).
type MemoryStore struct {
	mu       sync.RWMutex
	docs     map[string]core.Document
	hashes   map[string]string
	filePath string
	dedupe   int
}

func NewMemoryStore(filePath string) *MemoryStore {
	s := &MemoryStore{
		docs:     make(map[string]core.Document),
		hashes:   make(map[string]string),
		filePath: filePath,
	}
	s.warm()
	return s
}

func (s *MemoryStore) Name() string { return "memory" }

// warm loads a prior snapshot from disk, if one exists, so the store
// isn't empty after a restart.
func (s *MemoryStore) warm() {
	if s.filePath == "" {
		return
	}
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return
	}
	var snapshot map[string]core.Document
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return
	}
	for id, doc := range snapshot {
		s.docs[id] = doc
		s.hashes[id] = contentHash(doc)
	}
}

func (s *MemoryStore) flush() error {
	if s.filePath == "" {
		return nil
	}
	data, err := json.Marshal(s.docs)
	if err != nil {
		return fmt.Errorf("memory store: marshal snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return fmt.Errorf("memory store: create snapshot dir: %w", err)
	}
	return os.WriteFile(s.filePath, data, 0o644)
}

func (s *MemoryStore) Upsert(_ context.Context, docs []core.Document) (UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := UpsertResult{Errors: map[string]error{}}
	for _, doc := range docs {
		h := contentHash(doc)
		if existing, ok := s.hashes[doc.ID]; ok && existing == h {
			result.DedupeHits = append(result.DedupeHits, doc.ID)
			s.dedupe++
			continue
		}
		doc.ContentHash = h
		s.docs[doc.ID] = doc
		s.hashes[doc.ID] = h
		result.Written++
	}

	if err := s.flush(); err != nil {
		return result, err
	}
	return result, nil
}

func (s *MemoryStore) Query(_ context.Context, text string, filters Filters, k int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]core.Document, 0, len(s.docs))
	for _, d := range s.docs {
		all = append(all, d)
	}
	return rankByLexicalScore(all, text, filters, k), nil
}

func (s *MemoryStore) GetDocument(_ context.Context, id string) (*core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

// Documents returns every document currently held, for Tiered.Warm to
// copy into a colder or freshly started in-memory tier.
func (s *MemoryStore) Documents(_ context.Context) ([]core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]core.Document, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, d)
	}
	return docs, nil
}

func (s *MemoryStore) GetStats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{DocumentCount: len(s.docs), DedupeHits: s.dedupe}, nil
}

func (s *MemoryStore) HealthCheck(_ context.Context) error { return nil }

var _ Store = (*MemoryStore)(nil)
