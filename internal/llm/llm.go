// Package llm is the single component allowed to talk to the language
// model provider (§4.7). Every prompt is constructed here; no other
// package builds one.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Intent is the closed set the router's pattern-matched path and the
// LLM fallback both classify into (§4.6).
type Intent string

const (
	IntentPlayerTeam     Intent = "player_team"
	IntentPlayerLastRuns Intent = "player_last_runs"
	IntentFixturesList   Intent = "fixtures_list"
	IntentLadderPosition Intent = "ladder_position"
	IntentNextFixture    Intent = "next_fixture"
	IntentRosterList     Intent = "roster_list"
	IntentUnknown        Intent = "unknown"
)

// Classification is the result of ClassifyIntent.
type Classification struct {
	Intent   Intent
	Entities map[string]string
}

// Usage tracks token accounting for a single call (§4.7).
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// ChatMessage is one turn in a chat-completion request.
type ChatMessage struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

// Provider is the narrow surface the adapter needs from a concrete LLM
// backend: name, a single chat completion, a streaming chat completion,
// and usage accounting. A deterministic stub implements this for tests
// and local development without a live credential (§4.7).
type Provider interface {
	Name() string
	Complete(ctx context.Context, messages []ChatMessage) (string, Usage, error)
	CompleteStream(ctx context.Context, messages []ChatMessage, chunks chan<- string) (Usage, error)
}

// Adapter is the grounded question-answering adapter built on top of a
// Provider. It owns prompt construction, context truncation and token
// accounting; callers only ever see ClassifyIntent/Summarise.
type Adapter struct {
	provider         Provider
	maxContextTokens int
}

func NewAdapter(provider Provider, maxContextTokens int) *Adapter {
	if maxContextTokens <= 0 {
		maxContextTokens = 6000
	}
	return &Adapter{provider: provider, maxContextTokens: maxContextTokens}
}

const classifyPrompt = `Classify the user's cricket question into exactly one of these intents:
player_team, player_last_runs, fixtures_list, ladder_position, next_fixture, roster_list, unknown.
Respond with a single line: "intent: <value>" followed by optional "entity.<name>: <value>" lines.
If uncertain, respond "intent: unknown".`

// ClassifyIntent is the fallback used when the router's regex patterns
// miss. Any output that doesn't name one of the closed intents maps to
// IntentUnknown (§4.7).
func (a *Adapter) ClassifyIntent(ctx context.Context, text string) (Classification, Usage, error) {
	messages := []ChatMessage{
		{Role: "system", Content: classifyPrompt},
		{Role: "user", Content: text},
	}
	out, usage, err := a.provider.Complete(ctx, messages)
	if err != nil {
		return Classification{Intent: IntentUnknown, Entities: map[string]string{}}, usage, err
	}
	return parseClassification(out), usage, nil
}

func parseClassification(out string) Classification {
	c := Classification{Intent: IntentUnknown, Entities: map[string]string{}}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.ToLower(key))
		val = strings.TrimSpace(val)
		switch {
		case key == "intent":
			if isKnownIntent(Intent(val)) {
				c.Intent = Intent(val)
			}
		case strings.HasPrefix(key, "entity."):
			name := strings.TrimPrefix(key, "entity.")
			c.Entities[name] = val
		}
	}
	return c
}

func isKnownIntent(i Intent) bool {
	switch i {
	case IntentPlayerTeam, IntentPlayerLastRuns, IntentFixturesList, IntentLadderPosition,
		IntentNextFixture, IntentRosterList, IntentUnknown:
		return true
	}
	return false
}

const summariseSystemPrompt = `You answer questions about a junior cricket club using only the context snippets provided below.
If the answer isn't present in the context, say you don't have that information. Never invent facts, names, or numbers.
Keep the answer short and conversational.`

// Summarise is the grounded generation call (§4.6/§4.7). snippets are
// truncated on boundaries, oldest first, until the estimated token
// count fits maxContextTokens.
func (a *Adapter) Summarise(ctx context.Context, snippets []string, question string) (string, Usage, error) {
	fitted := a.truncateSnippets(snippets)
	context := strings.Join(fitted, "\n---\n")

	messages := []ChatMessage{
		{Role: "system", Content: summariseSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Context:\n%s\n\nQuestion: %s", context, question)},
	}
	return a.provider.Complete(ctx, messages)
}

// estimateTokens is a rough 4-characters-per-token heuristic, adequate
// for a truncation budget rather than exact billing.
func estimateTokens(s string) int { return (len(s) + 3) / 4 }

func (a *Adapter) truncateSnippets(snippets []string) []string {
	budget := a.maxContextTokens
	// Walk from the newest snippet backward, keeping the most recent
	// ones and dropping the oldest first once the budget is spent.
	kept := make([]string, 0, len(snippets))
	used := 0
	for i := len(snippets) - 1; i >= 0; i-- {
		t := estimateTokens(snippets[i])
		if used+t > budget && len(kept) > 0 {
			break
		}
		kept = append([]string{snippets[i]}, kept...)
		used += t
	}
	return kept
}
