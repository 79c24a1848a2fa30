package upstream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/carolinespringscc/cricket-agent/internal/apperr"
	"github.com/carolinespringscc/cricket-agent/internal/core"
)

func TestListTeamsPaginatesAcrossPages(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"items":       []core.Team{{ID: "team-1", Name: "Caroline Springs Blue U10"}},
				"next_cursor": "page-2",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []core.Team{{ID: "team-2", Name: "Caroline Springs Red U10"}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "key", "org-1", 1000)
	teams, err := c.ListTeams(t.Context(), "U10-BLUE")
	if err != nil {
		t.Fatalf("ListTeams: %v", err)
	}
	if len(teams) != 2 {
		t.Fatalf("expected pagination to yield 2 teams across 2 pages, got %d", len(teams))
	}
	if calls != 2 {
		t.Errorf("expected exactly 2 page requests, got %d", calls)
	}
}

func TestFetchLadderSendsAuthHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Api-Key"); got != "secret-key" {
			t.Errorf("unexpected X-Api-Key header: %q", got)
		}
		if got := r.Header.Get("X-Org-Id"); got != "org-9" {
			t.Errorf("unexpected X-Org-Id header: %q", got)
		}
		if r.URL.Path != "/grades/U10-BLUE/ladder" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(core.Ladder{GradeID: "U10-BLUE"})
	}))
	defer srv.Close()

	c := New(srv.URL, "secret-key", "org-9", 1000)
	ladder, err := c.FetchLadder(t.Context(), "U10-BLUE")
	if err != nil {
		t.Fatalf("FetchLadder: %v", err)
	}
	if ladder.GradeID != "U10-BLUE" {
		t.Errorf("unexpected grade id: %s", ladder.GradeID)
	}
}

func TestDoRetriesOnTransientStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("try again"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(core.Roster{TeamID: "team-1"})
	}))
	defer srv.Close()

	c := New(srv.URL, "key", "org-1", 1000, WithMaxRetries(2))
	roster, err := c.FetchRoster(t.Context(), "team-1")
	if err != nil {
		t.Fatalf("expected the transient 503 to be retried into a success, got %v", err)
	}
	if roster.TeamID != "team-1" {
		t.Errorf("unexpected roster: %+v", roster)
	}
	if calls != 2 {
		t.Errorf("expected exactly 2 attempts (1 failure + 1 success), got %d", calls)
	}
}

func TestDoDoesNotRetryPermanentStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("no such fixture"))
	}))
	defer srv.Close()

	c := New(srv.URL, "key", "org-1", 1000, WithMaxRetries(3))
	_, err := c.FetchGameSummary(t.Context(), "fixture-404")
	if err == nil {
		t.Fatal("expected a 404 to surface as an error")
	}
	if apperr.IsUpstreamTransient(err) {
		t.Error("expected a 404 to be classified as permanent, not transient")
	}
	if calls != 1 {
		t.Errorf("expected no retries on a permanent error, got %d attempts", calls)
	}

	var upErr *apperr.UpstreamError
	if ue, ok := apperr.As[*apperr.UpstreamError](err); ok {
		upErr = ue
	}
	if upErr == nil || upErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected an UpstreamError with status 404, got %v", err)
	}
}

func TestListFixturesBuildsSeasonQueryParam(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "/teams/team-1/fixtures?season=2025"
		if r.URL.RequestURI() != want {
			t.Errorf("unexpected request URI: got %s want %s", r.URL.RequestURI(), want)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"items": []core.Fixture{}})
	}))
	defer srv.Close()

	c := New(srv.URL, "key", "org-1", 1000)
	if _, err := c.ListFixtures(t.Context(), "team-1", "2025"); err != nil {
		t.Fatalf("ListFixtures: %v", err)
	}
}

func TestNewDefaultsNonPositiveRate(t *testing.T) {
	c := New("http://example.invalid", "key", "org", 0)
	if c.limiter.Limit() != 5 {
		t.Errorf("expected a non-positive requestsPerSecond to default to 5, got %v", c.limiter.Limit())
	}
}
