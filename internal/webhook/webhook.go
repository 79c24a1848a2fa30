// Package webhook handles signature-verified, real-time provider
// updates (§4.5). Only active in "private" mode.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/carolinespringscc/cricket-agent/internal/apperr"
	"github.com/carolinespringscc/cricket-agent/internal/core"
	"github.com/carolinespringscc/cricket-agent/internal/normalize"
	"github.com/carolinespringscc/cricket-agent/internal/vectorstore"
)

// Event is one inbound provider notification, one of the four kinds
// named in §4.5.
type Event struct {
	Kind    core.DocumentKind `json:"kind"`
	ID      string            `json:"id"`
	Payload json.RawMessage   `json:"payload"`
}

// Result is the handler's response shape (§4.5).
type Result struct {
	ProcessedCount int      `json:"processed_count"`
	Errors         []string `json:"errors,omitempty"`
}

// Handler verifies and applies webhook events. It is constructed once
// at startup; a missing secret is a construction-time error, not a
// per-request one (§4.5).
type Handler struct {
	secret []byte
	store  vectorstore.Store
}

// NewHandler fails immediately if secret is empty so misconfiguration
// surfaces at startup rather than on the first request (§4.5).
func NewHandler(secret string, store vectorstore.Store) (*Handler, error) {
	if secret == "" {
		return nil, apperr.NewConfigError("webhook HMAC secret is required in private mode")
	}
	return &Handler{secret: []byte(secret), store: store}, nil
}

// VerifySignature checks an HMAC-SHA256 signature over the raw request
// body (§4.5). A missing signature is the caller's bad-request error;
// a mismatched one is the caller's unauthorized error — VerifySignature
// only reports whether verification succeeded.
func (h *Handler) VerifySignature(body []byte, signatureHex string) bool {
	if signatureHex == "" {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	expected := mac.Sum(nil)

	given, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, given)
}

// Process dispatches one verified event to the normalizer for its
// entity kind and upserts the resulting document (§4.5). Scorecard
// events with is_completed=false are skipped, not errored.
func (h *Handler) Process(ctx context.Context, events []Event) Result {
	result := Result{}
	for _, evt := range events {
		source := normalize.ForKind(evt.Kind)
		if source == nil {
			result.Errors = append(result.Errors, fmt.Sprintf("event %s: no normalizer for kind %q", evt.ID, evt.Kind))
			continue
		}

		record, err := source.Normalize(evt.Payload)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("event %s: %v", evt.ID, err))
			continue
		}

		if evt.Kind == core.KindScorecard {
			if sc, ok := record.(core.Scorecard); ok && !sc.IsCompleted {
				continue
			}
		}

		text, err := source.Snippet(record)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("event %s: %v", evt.ID, err))
			continue
		}

		meta := core.DocumentMetadata{Type: evt.Kind}
		docs := normalize.Chunk(fmt.Sprintf("%s:%s", evt.Kind, evt.ID), text, meta)

		if _, err := h.store.Upsert(ctx, docs); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("event %s: upsert: %v", evt.ID, err))
			continue
		}
		result.ProcessedCount++
	}
	return result
}
