package llm

import (
	"context"
	"fmt"
	"strings"
)

// Stub is a deterministic Provider with no network calls, used for
// tests and local development when no LLM credential is configured
// (§4.7). Complete echoes a templated answer derived from the prompt
// so tests can assert on its shape without mocking an HTTP client.
type Stub struct{}

func NewStub() *Stub { return &Stub{} }

func (s *Stub) Name() string { return "stub" }

func (s *Stub) Complete(_ context.Context, messages []ChatMessage) (string, Usage, error) {
	var user string
	for _, m := range messages {
		if m.Role == "user" {
			user = m.Content
		}
	}

	var out string
	switch {
	case strings.Contains(user, "Context:"):
		out = stubSummary(user)
	default:
		out = "intent: unknown"
	}

	usage := Usage{InputTokens: estimateTokens(user), OutputTokens: estimateTokens(out)}
	return out, usage, nil
}

func (s *Stub) CompleteStream(ctx context.Context, messages []ChatMessage, chunks chan<- string) (Usage, error) {
	out, usage, err := s.Complete(ctx, messages)
	if err != nil {
		close(chunks)
		return usage, err
	}
	for _, word := range strings.Fields(out) {
		select {
		case <-ctx.Done():
			close(chunks)
			return usage, ctx.Err()
		case chunks <- word + " ":
		}
	}
	close(chunks)
	return usage, nil
}

// stubSummary echoes the whole context block back as a placeholder
// answer, since the stub has no model to reason with.
func stubSummary(prompt string) string {
	_, rest, ok := strings.Cut(prompt, "Context:\n")
	if !ok {
		return "I don't have that information."
	}
	context, _, _ := strings.Cut(rest, "\n\nQuestion:")
	if strings.TrimSpace(context) == "" {
		return "I don't have that information."
	}
	return fmt.Sprintf("Based on what I have: %s", strings.TrimSpace(context))
}
