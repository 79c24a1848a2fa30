package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/carolinespringscc/cricket-agent/internal/cache"
	"github.com/carolinespringscc/cricket-agent/internal/llm"
	"github.com/carolinespringscc/cricket-agent/internal/middleware"
	"github.com/carolinespringscc/cricket-agent/internal/vectorstore"
)

// Meta is the envelope's metadata block (§4.6).
type Meta struct {
	Intent    string            `json:"intent"`
	Entities  map[string]string `json:"entities,omitempty"`
	RAGMs     int64             `json:"rag_ms"`
	APIMs     int64             `json:"api_ms"`
	LatencyMs int64             `json:"latency_ms"`
	Source    string            `json:"source"`
	RequestID string            `json:"request_id,omitempty"`
	CacheHit  bool              `json:"cache_hit,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Envelope is the router's single response shape (§4.6).
type Envelope struct {
	Answer string `json:"answer"`
	Meta   Meta   `json:"meta"`
}

const topK = 6
const responseCacheTTL = 30 * time.Minute

// Router is the intent router + RAG path (§4.6). It owns the response
// cache, team-name disambiguation, and the choice between the
// pattern-matched fast path and the LLM-driven default path.
type Router struct {
	store         vectorstore.Store
	adapter       *llm.Adapter
	disambiguator *TeamDisambiguator
	responseCache *cache.Client
	useLegacyMode bool
}

func NewRouter(store vectorstore.Store, adapter *llm.Adapter, disambiguator *TeamDisambiguator, responseCache *cache.Client, useLegacyMode bool) *Router {
	return &Router{
		store:         store,
		adapter:       adapter,
		disambiguator: disambiguator,
		responseCache: responseCache,
		useLegacyMode: useLegacyMode,
	}
}

// Ask answers one natural-language question (§4.6). Any component
// failure below the router yields a user-safe apology and a populated
// meta.error rather than propagating the fault (§4.6 failure
// semantics).
func (r *Router) Ask(ctx context.Context, text, teamHint string) Envelope {
	start := time.Now()
	requestID := middleware.TraceIDFromContext(ctx)

	normalizedText := strings.TrimSpace(strings.ToLower(text))
	canonicalHint := r.disambiguator.Canonicalize(teamHint)

	cacheKey := cache.HashParams(map[string]string{"text": normalizedText, "team": canonicalHint})
	var cached Envelope
	if r.responseCache != nil && r.responseCache.Get(ctx, "rag:"+cacheKey, &cached) {
		middleware.RecordCacheHit("rag_response")
		cached.Meta.CacheHit = true
		cached.Meta.LatencyMs = time.Since(start).Milliseconds()
		return cached
	}

	env := r.answer(ctx, text, canonicalHint, requestID)
	env.Meta.LatencyMs = time.Since(start).Milliseconds()

	if r.responseCache != nil && env.Meta.Error == "" {
		_ = r.responseCache.Set(ctx, "rag:"+cacheKey, env, responseCacheTTL)
	}
	return env
}

func (r *Router) answer(ctx context.Context, text, teamHint, requestID string) Envelope {
	if r.useLegacyMode {
		if env, ok := r.answerLegacy(ctx, text, teamHint, requestID); ok {
			return env
		}
	}
	return r.answerRAG(ctx, text, teamHint, requestID)
}

// answerLegacy implements the pattern-matched fast path (§4.6 (a)).
// When no pattern matches it asks the LLM adapter to classify the
// text; it returns ok=false when the intent is still unknown, so the
// caller can fall through to the RAG path.
func (r *Router) answerLegacy(ctx context.Context, text, teamHint, requestID string) (Envelope, bool) {
	classification := MatchPattern(text)
	if classification.Intent == llm.IntentUnknown {
		classified, _, err := r.adapter.ClassifyIntent(ctx, text)
		if err != nil || classified.Intent == llm.IntentUnknown {
			return Envelope{}, false
		}
		classification = classified
	}

	ragStart := time.Now()
	filters := vectorstore.Filters{}
	if team, ok := classification.Entities["team"]; ok {
		filters["team_id"] = r.disambiguator.Canonicalize(team)
	} else if teamHint != "" {
		filters["team_id"] = teamHint
	}

	ids, err := r.store.Query(ctx, text, filters, topK)
	ragMs := time.Since(ragStart).Milliseconds()
	if err != nil || len(ids) == 0 {
		return Envelope{}, false
	}

	var snippets []string
	for _, id := range ids {
		doc, err := r.store.GetDocument(ctx, id)
		if err == nil && doc != nil {
			snippets = append(snippets, doc.Text)
		}
	}
	if len(snippets) == 0 {
		return Envelope{}, false
	}

	return Envelope{
		Answer: strings.Join(snippets, "\n"),
		Meta: Meta{
			Intent:    string(classification.Intent),
			Entities:  classification.Entities,
			RAGMs:     ragMs,
			Source:    "pattern_match",
			RequestID: requestID,
		},
	}, true
}

// answerRAG implements the LLM-driven default path (§4.6 (b)).
func (r *Router) answerRAG(ctx context.Context, text, teamHint, requestID string) Envelope {
	filters := vectorstore.Filters{}
	if teamHint != "" {
		filters["team_id"] = teamHint
	}

	ragStart := time.Now()
	ids, err := r.store.Query(ctx, text, filters, topK)
	if err != nil {
		return apologyEnvelope(requestID, err)
	}

	var snippets []string
	for _, id := range ids {
		doc, derr := r.store.GetDocument(ctx, id)
		if derr == nil && doc != nil {
			snippets = append(snippets, doc.Text)
		}
	}
	ragMs := time.Since(ragStart).Milliseconds()

	apiStart := time.Now()
	answer, _, err := r.adapter.Summarise(ctx, snippets, text)
	apiMs := time.Since(apiStart).Milliseconds()
	if err != nil {
		return apologyEnvelope(requestID, err)
	}

	return Envelope{
		Answer: answer,
		Meta: Meta{
			Intent:    "llm_rag",
			RAGMs:     ragMs,
			APIMs:     apiMs,
			Source:    "llm_rag",
			RequestID: requestID,
		},
	}
}

func apologyEnvelope(requestID string, err error) Envelope {
	return Envelope{
		Answer: "Sorry, I couldn't find an answer to that right now.",
		Meta: Meta{
			Intent:    string(llm.IntentUnknown),
			Source:    "error",
			RequestID: requestID,
			Error:     fmt.Sprintf("%v", err),
		},
	}
}
