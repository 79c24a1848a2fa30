package vectorstore

import (
	"context"
	"fmt"

	"github.com/carolinespringscc/cricket-agent/internal/core"
)

// ManagedStub stands in for a managed vector-index backend (e.g. a
// cloud similarity-search service) behind the same Store interface
// (§4.3, §9). It has no native index: every call fails health checks
// and reports zero capacity so the tiered wrapper always falls through
// to a real backend. It exists so a production implementation can be
// dropped in later without changing any caller.
type ManagedStub struct{}

func NewManagedStub() *ManagedStub { return &ManagedStub{} }

func (s *ManagedStub) Name() string { return "managed-stub" }

func (s *ManagedStub) Upsert(_ context.Context, docs []core.Document) (UpsertResult, error) {
	return UpsertResult{Errors: map[string]error{}}, fmt.Errorf("managed vector index not configured")
}

func (s *ManagedStub) Query(_ context.Context, _ string, _ Filters, _ int) ([]string, error) {
	return nil, nil
}

func (s *ManagedStub) GetDocument(_ context.Context, _ string) (*core.Document, error) {
	return nil, nil
}

func (s *ManagedStub) GetStats(_ context.Context) (Stats, error) { return Stats{}, nil }

func (s *ManagedStub) HealthCheck(_ context.Context) error {
	return fmt.Errorf("managed vector index not configured")
}

var _ Store = (*ManagedStub)(nil)
