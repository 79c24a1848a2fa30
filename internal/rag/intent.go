// Package rag is the intent router + retrieval-augmented query path
// (§4.6): pattern-matched fast path first, LLM-driven fallback second,
// both terminating in the same answer envelope.
package rag

import (
	"regexp"
	"strings"

	"github.com/carolinespringscc/cricket-agent/internal/llm"
)

// patternRule pairs an ordered regex with the intent it signals and the
// named capture groups that become entities (§4.6).
type patternRule struct {
	intent  llm.Intent
	pattern *regexp.Regexp
}

// orderedPatterns is the closed set of intents, checked in order so
// that earlier, more specific patterns win over catch-alls (§4.6).
var orderedPatterns = []patternRule{
	{llm.IntentPlayerLastRuns, regexp.MustCompile(`(?i)how many runs did (?P<player>[\w '-]+?) (?:score|make)`)},
	{llm.IntentPlayerTeam, regexp.MustCompile(`(?i)what team (?:is|does) (?P<player>[\w '-]+?) (?:on|play for)`)},
	{llm.IntentLadderPosition, regexp.MustCompile(`(?i)ladder (?:for|position) (?P<team>[\w '-]+)`)},
	{llm.IntentNextFixture, regexp.MustCompile(`(?i)next (?:fixture|game|match)(?: (?:for )?(?P<team>[\w '-]+))?`)},
	{llm.IntentFixturesList, regexp.MustCompile(`(?i)(?:fixtures|games|matches) (?:for )?(?P<team>[\w '-]+)?`)},
	{llm.IntentRosterList, regexp.MustCompile(`(?i)(?:roster|squad|team list) (?:for )?(?P<team>[\w '-]+)?`)},
}

// MatchPattern runs the closed set of ordered regular expressions
// against text and extracts named entities (§4.6). Returns
// IntentUnknown when nothing matches.
func MatchPattern(text string) llm.Classification {
	for _, rule := range orderedPatterns {
		m := rule.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		entities := map[string]string{}
		for i, name := range rule.pattern.SubexpNames() {
			if name == "" || i >= len(m) {
				continue
			}
			if v := strings.TrimSpace(m[i]); v != "" {
				entities[name] = v
			}
		}
		return llm.Classification{Intent: rule.intent, Entities: entities}
	}
	return llm.Classification{Intent: llm.IntentUnknown, Entities: map[string]string{}}
}
