package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"auto_release_notes/store"
)

// sequenceServer fakes the generation endpoints and records submission
// times plus the number of concurrently open streams.
type sequenceServer struct {
	mu          sync.Mutex
	submissions []time.Time
	inFlight    int
	maxInFlight int
	sessions    map[string]bool
}

func (s *sequenceServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.submissions = append(s.submissions, time.Now())
		id := fmt.Sprintf("sess-%d", len(s.submissions))
		s.sessions[id] = true
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"session_id": %q}`, id)
	})
	mux.HandleFunc("/api/generate/stream", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("session")
		s.mu.Lock()
		if !s.sessions[id] {
			s.mu.Unlock()
			http.Error(w, `{"error": "session not found"}`, http.StatusNotFound)
			return
		}
		delete(s.sessions, id)
		s.inFlight++
		if s.inFlight > s.maxInFlight {
			s.maxInFlight = s.inFlight
		}
		s.mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\": \"status\", \"message\": \"generating\"}\n\n")
		time.Sleep(20 * time.Millisecond)
		fmt.Fprint(w, "data: {\"type\": \"complete\", \"accumulated\": \"{}\", \"developer\": \"D\", \"marketing\": \"M\"}\n\n")

		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	})
	return mux
}

func TestGenerateAllIsStrictlySequential(t *testing.T) {
	seq := &sequenceServer{sessions: make(map[string]bool)}
	ts := httptest.NewServer(seq.handler())
	defer ts.Close()

	items := []store.Item{
		{ID: "1", Diff: "d1"},
		{ID: "2", Diff: "d2"},
		{ID: "3", Diff: "d3"},
	}
	delay := 50 * time.Millisecond
	if err := GenerateAll(context.Background(), ts.URL, nil, nil, items, delay, nil); err != nil {
		t.Fatal(err)
	}

	if len(seq.submissions) != 3 {
		t.Fatalf("submissions = %d", len(seq.submissions))
	}
	if seq.maxInFlight != 1 {
		t.Fatalf("max concurrent streams = %d, want 1", seq.maxInFlight)
	}
	for i := 1; i < len(seq.submissions); i++ {
		if gap := seq.submissions[i].Sub(seq.submissions[i-1]); gap < delay {
			t.Fatalf("submissions %d and %d only %v apart, want >= %v", i-1, i, gap, delay)
		}
	}
}

func TestGenerateAllSkipsFinalizedItems(t *testing.T) {
	seq := &sequenceServer{sessions: make(map[string]bool)}
	ts := httptest.NewServer(seq.handler())
	defer ts.Close()

	items := []store.Item{
		{ID: "1", Developer: "done", Marketing: "done", Diff: "d1"},
		{ID: "2", Diff: "d2"},
	}
	if err := GenerateAll(context.Background(), ts.URL, nil, nil, items, 0, nil); err != nil {
		t.Fatal(err)
	}
	if len(seq.submissions) != 1 {
		t.Fatalf("submissions = %d, want 1 (finalized item skipped)", len(seq.submissions))
	}
}

func TestGenerateAllContinuesPastFailures(t *testing.T) {
	mux := http.NewServeMux()
	var submitted []string
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"session_id": "s"}`)
	})
	mux.HandleFunc("/api/generate/stream", func(w http.ResponseWriter, r *http.Request) {
		submitted = append(submitted, r.URL.Query().Get("session"))
		w.Header().Set("Content-Type", "text/event-stream")
		if len(submitted) == 1 {
			fmt.Fprint(w, "data: {\"type\": \"error\", \"kind\": \"upstream\", \"message\": \"boom\"}\n\n")
			return
		}
		fmt.Fprint(w, "data: {\"type\": \"complete\", \"developer\": \"D\", \"marketing\": \"M\"}\n\n")
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	items := []store.Item{{ID: "1", Diff: "d"}, {ID: "2", Diff: "d"}}
	err := GenerateAll(context.Background(), ts.URL, nil, nil, items, 0, nil)
	if err == nil {
		t.Fatal("expected joined error for the failed item")
	}
	if !strings.Contains(err.Error(), "#1") {
		t.Fatalf("error %v does not name the failed item", err)
	}
	if len(submitted) != 2 {
		t.Fatalf("streams = %d, want both items attempted", len(submitted))
	}
}
