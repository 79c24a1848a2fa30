package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/carolinespringscc/cricket-agent/internal/core"
	"github.com/carolinespringscc/cricket-agent/internal/testutils"
	"github.com/carolinespringscc/cricket-agent/internal/vectorstore"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestNewHandlerRequiresSecret(t *testing.T) {
	if _, err := NewHandler("", vectorstore.NewMemoryStore("")); err == nil {
		t.Error("expected NewHandler to fail fast on an empty secret")
	}
}

func TestVerifySignature(t *testing.T) {
	h, err := NewHandler("shh-its-a-secret", vectorstore.NewMemoryStore(""))
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	body := []byte(`[{"kind":"team"}]`)
	valid := sign("shh-its-a-secret", body)

	if !h.VerifySignature(body, valid) {
		t.Error("expected a correctly signed body to verify")
	}
	if h.VerifySignature(body, sign("wrong-secret", body)) {
		t.Error("expected a body signed with the wrong secret to fail verification")
	}
	if h.VerifySignature(body, "") {
		t.Error("expected an empty signature to fail verification")
	}
	if h.VerifySignature(body, "not-hex") {
		t.Error("expected a non-hex signature to fail verification")
	}
}

func TestProcessIngestsKnownEventKinds(t *testing.T) {
	store := vectorstore.NewMemoryStore("")
	h, err := NewHandler("secret", store)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	team := testutils.SampleTeam()
	payload, _ := json.Marshal(team)

	result := h.Process(context.Background(), []Event{
		{Kind: core.KindTeam, ID: "evt-1", Payload: payload},
	})

	if result.ProcessedCount != 1 {
		t.Errorf("expected 1 processed event, got %d (errors: %v)", result.ProcessedCount, result.Errors)
	}
	if len(result.Errors) != 0 {
		t.Errorf("expected no errors, got %v", result.Errors)
	}
}

func TestProcessSkipsIncompleteScorecards(t *testing.T) {
	store := vectorstore.NewMemoryStore("")
	h, err := NewHandler("secret", store)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	incomplete := testutils.SampleIncompleteScorecard()
	payload, _ := json.Marshal(incomplete)

	result := h.Process(context.Background(), []Event{
		{Kind: core.KindScorecard, ID: "evt-2", Payload: payload},
	})

	if result.ProcessedCount != 0 {
		t.Errorf("expected an incomplete scorecard event not to be processed, got %d", result.ProcessedCount)
	}
	if len(result.Errors) != 0 {
		t.Errorf("expected no error for a skipped-not-failed event, got %v", result.Errors)
	}

	stats, err := store.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.DocumentCount != 0 {
		t.Errorf("expected nothing to have been written to the store, got %d documents", stats.DocumentCount)
	}
}

func TestProcessReplaySafety(t *testing.T) {
	store := vectorstore.NewMemoryStore("")
	h, err := NewHandler("secret", store)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	roster := testutils.SampleRoster()
	payload, _ := json.Marshal(roster)
	events := []Event{{Kind: core.KindRoster, ID: "evt-3", Payload: payload}}

	first := h.Process(context.Background(), events)
	second := h.Process(context.Background(), events)

	if first.ProcessedCount != 1 || second.ProcessedCount != 1 {
		t.Fatalf("expected both deliveries to report processed, got first=%d second=%d", first.ProcessedCount, second.ProcessedCount)
	}

	stats, err := store.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.DocumentCount != 1 {
		t.Errorf("expected replaying an identical event not to create a second document, got %d", stats.DocumentCount)
	}
	if stats.DedupeHits != 1 {
		t.Errorf("expected the replay to register as a dedupe hit, got %d", stats.DedupeHits)
	}
}

func TestProcessUnknownKindIsAnError(t *testing.T) {
	store := vectorstore.NewMemoryStore("")
	h, err := NewHandler("secret", store)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	result := h.Process(context.Background(), []Event{
		{Kind: core.DocumentKind("unknown"), ID: "evt-4", Payload: []byte(`{}`)},
	})

	if len(result.Errors) != 1 {
		t.Errorf("expected 1 error for an unrecognized event kind, got %v", result.Errors)
	}
}
