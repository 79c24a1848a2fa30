package llm

import "context"

// Embedder turns text into a fixed-width vector for semantic search.
// Not every vector-store backend needs one: the lexical fallback
// (§4.3) works on raw text and a nil Embedder is valid.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// StubEmbedder produces a small deterministic hash-based vector so
// tests can exercise cosine-similarity code paths without a live
// embedding credential.
type StubEmbedder struct{ Dim int }

func NewStubEmbedder(dim int) *StubEmbedder {
	if dim <= 0 {
		dim = 32
	}
	return &StubEmbedder{Dim: dim}
}

func (e *StubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, e.Dim)
	var h uint32 = 2166136261
	for i := 0; i < len(text); i++ {
		h ^= uint32(text[i])
		h *= 16777619
		v[int(h)%e.Dim] += 1
	}
	return v, nil
}
