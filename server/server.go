package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"auto_release_notes/generator"
	"auto_release_notes/listing"
	"auto_release_notes/store"
)

//go:embed web/dist web/dist/* web/dist/assets/*
var embeddedStatic embed.FS

// Sessions expire after this window if the stream is never opened.
const sessionTTL = 10 * time.Minute

type Server struct {
	agent    *generator.Agent
	pulls    *listing.Client
	records  *store.Store
	store    *sessionStore
	staticFS http.Handler
	verbose  bool
}

// submission is the diff payload parked between the submit request and the
// follow-up streaming request. Written once, read once.
type submission struct {
	ItemID      string
	Description string
	Diff        string
}

// sessionStore is a time-bounded key-value cache so entries for streams
// that are never opened do not accumulate.
type sessionStore struct {
	c *cache.Cache
}

func newStore() *sessionStore {
	return &sessionStore{c: cache.New(sessionTTL, 5*time.Minute)}
}

func (s *sessionStore) set(id string, sub submission) {
	s.c.Set(id, sub, cache.DefaultExpiration)
}

func (s *sessionStore) get(id string) (submission, bool) {
	v, ok := s.c.Get(id)
	if !ok {
		return submission{}, false
	}
	return v.(submission), true
}

func (s *sessionStore) delete(id string) {
	s.c.Delete(id)
}

// New builds the server. pulls and records are optional: without pulls the
// listing proxy answers 503, without records completed notes are not
// mirrored server-side and export is unavailable.
func New(agent *generator.Agent, pulls *listing.Client, records *store.Store, verbose bool) (*Server, error) {
	if agent == nil {
		return nil, errors.New("generator agent required")
	}

	sub, err := fs.Sub(embeddedStatic, "web/dist")
	if err != nil {
		return nil, err
	}

	return &Server{
		agent:    agent,
		pulls:    pulls,
		records:  records,
		store:    newStore(),
		staticFS: http.FileServer(http.FS(sub)),
		verbose:  verbose,
	}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", s.handleGenerate)
	mux.HandleFunc("/api/generate/stream", s.handleGenerateStream)
	mux.HandleFunc("/api/items", s.handleItems)
	mux.HandleFunc("/api/export", s.handleExport)
	mux.Handle("/", s.staticHandler())
	return logMiddleware(corsMiddleware(mux), s.verbose)
}

func (s *Server) staticHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// fall back to index.html for SPA-ish behavior
		upath := r.URL.Path
		if upath == "/" || !strings.HasPrefix(upath, "/api/") {
			p := upath
			if p == "/" {
				p = "/index.html"
			}
			r.URL.Path = p
			s.staticFS.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

// --- Handlers ---

type generateReq struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Diff        string `json:"diff"`
}

type generateResp struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req generateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if req.Diff == "" {
		writeError(w, http.StatusBadRequest, "diff is required")
		return
	}

	id := newSessionID(req.ID)
	s.store.set(id, submission{
		ItemID:      req.ID,
		Description: req.Description,
		Diff:        req.Diff,
	})
	writeJSON(w, generateResp{SessionID: id})
}

func (s *Server) handleGenerateStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := r.URL.Query().Get("session")
	if id == "" {
		writeError(w, http.StatusBadRequest, "session is required")
		return
	}
	sub, ok := s.store.get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	defer s.store.delete(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Deliberately not tied to the request context: a client that stops
	// listening does not cancel the upstream call, the orchestrator runs
	// to completion and then cleans up.
	events := s.agent.StreamNotes(context.Background(), generator.Request{
		ID:          sub.ItemID,
		Description: sub.Description,
		Diff:        sub.Diff,
	})

	clientGone := false
	for ev := range events {
		if ev.Type == generator.EventComplete {
			s.persistFinal(sub, ev)
		}
		if clientGone {
			continue
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			clientGone = true
			continue
		}
		flusher.Flush()
	}
}

// persistFinal mirrors finalized notes into the server-side record store,
// preserving any previously stored link.
func (s *Server) persistFinal(sub submission, ev generator.Event) {
	if s.records == nil {
		return
	}
	item := store.Item{
		ID:          sub.ItemID,
		Description: sub.Description,
		Diff:        sub.Diff,
		Developer:   ev.Developer,
		Marketing:   ev.Marketing,
		UpdatedAt:   time.Now(),
	}
	if prev, ok, err := s.records.Get(sub.ItemID); err == nil && ok {
		item.Link = prev.Link
	}
	if err := s.records.Upsert(item); err != nil {
		log.Printf("[server] persist notes for %s: %v", sub.ItemID, err)
	}
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.pulls == nil {
		writeError(w, http.StatusServiceUnavailable, "listing not configured")
		return
	}
	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		page = n
	}
	res, err := s.pulls.MergedPulls(r.Context(), page)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, res)
}

// --- Helpers ---

// Session identifiers carry the item id plus a timestamp so two
// submissions for the same item never collide.
func newSessionID(itemID string) string {
	ts := strings.ReplaceAll(time.Now().Format("20060102T150405.000000000"), ".", "")
	return itemID + "-" + ts
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Any origin may call the API; preflights get the same permissive headers
// and no body.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", "*")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func logMiddleware(next http.Handler, verbose bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if verbose {
			log.Printf("[server] %s %s %s", r.Method, r.URL.Path, time.Since(start))
		}
	})
}
