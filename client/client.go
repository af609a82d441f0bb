package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"auto_release_notes/generator"
	"auto_release_notes/store"
)

// State is the per-item generation state machine:
// idle → submitted → streaming → {completed | failed}.
type State string

const (
	StateIdle      State = "idle"
	StateSubmitted State = "submitted"
	StateStreaming State = "streaming"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Controller drives one item through a generation session against the
// server: submit the diff, consume the event stream, persist the result.
// Partial notes observed before a failure stay readable via Notes.
type Controller struct {
	baseURL string
	client  *http.Client
	records *store.Store
	item    store.Item

	state       State
	notes       generator.Notes
	accumulated string
}

// NewController builds an idle controller for one item. records may be nil
// when persistence is not wanted.
func NewController(baseURL string, hc *http.Client, records *store.Store, item store.Item) *Controller {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Controller{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  hc,
		records: records,
		item:    item,
		state:   StateIdle,
	}
}

func (c *Controller) State() State { return c.state }

// Notes returns the best-known notes so far; after a failure these are the
// last observed partials, not finalized values.
func (c *Controller) Notes() generator.Notes { return c.notes }

// Accumulated returns the raw text received so far.
func (c *Controller) Accumulated() string { return c.accumulated }

// Reset returns a completed or failed controller to idle for regeneration,
// discarding partial state and the scratch record.
func (c *Controller) Reset() error {
	c.state = StateIdle
	c.notes = generator.Notes{}
	c.accumulated = ""
	if c.records != nil {
		return c.records.DeleteScratch(c.item.ID)
	}
	return nil
}

type submitResp struct {
	SessionID string `json:"session_id"`
	Error     string `json:"error"`
}

// Generate runs one full session. It requires the idle state; call Reset
// first to regenerate a completed or failed item.
func (c *Controller) Generate(ctx context.Context) (generator.Notes, error) {
	if c.state != StateIdle {
		return c.notes, fmt.Errorf("controller is %s; Reset before regenerating", c.state)
	}

	sessionID, err := c.submit(ctx)
	if err != nil {
		c.state = StateFailed
		return c.notes, err
	}
	c.state = StateSubmitted

	return c.stream(ctx, sessionID)
}

func (c *Controller) submit(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"id":          c.item.ID,
		"description": c.item.Description,
		"diff":        c.item.Diff,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var sr submitResp
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("submit rejected (%d): %s", resp.StatusCode, sr.Error)
	}
	if sr.SessionID == "" {
		return "", errors.New("submit response missing session_id")
	}
	return sr.SessionID, nil
}

func (c *Controller) stream(ctx context.Context, sessionID string) (generator.Notes, error) {
	url := c.baseURL + "/api/generate/stream?session=" + sessionID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.state = StateFailed
		return c.notes, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.state = StateFailed
		return c.notes, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		// Expired or consumed session: the handshake restarts from idle.
		c.state = StateIdle
		io.Copy(io.Discard, resp.Body)
		return c.notes, errors.New("session not found; restart from idle")
	}
	if resp.StatusCode != http.StatusOK {
		c.state = StateFailed
		return c.notes, fmt.Errorf("stream rejected (%d)", resp.StatusCode)
	}
	c.state = StateStreaming

	scanner := bufio.NewScanner(resp.Body)
	// Accumulated text rides along on every chunk event.
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev generator.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			continue
		}
		switch ev.Type {
		case generator.EventChunk:
			c.notes = c.notes.Merge(generator.Notes{Developer: ev.Developer, Marketing: ev.Marketing})
			c.accumulated = ev.Accumulated
			c.writeScratch()
		case generator.EventComplete:
			c.notes = generator.Notes{Developer: ev.Developer, Marketing: ev.Marketing}
			c.accumulated = ev.Accumulated
			c.state = StateCompleted
			return c.notes, c.persist()
		case generator.EventError:
			c.state = StateFailed
			return c.notes, fmt.Errorf("generation failed (%s): %s", ev.Kind, ev.Message)
		}
	}
	c.state = StateFailed
	if err := scanner.Err(); err != nil {
		return c.notes, err
	}
	return c.notes, errors.New("stream ended without a terminal event")
}

func (c *Controller) writeScratch() {
	if c.records == nil {
		return
	}
	// Best effort; a failed scratch write never interrupts the stream.
	_ = c.records.PutScratch(store.Scratch{
		ItemID:      c.item.ID,
		Accumulated: c.accumulated,
		Developer:   c.notes.Developer,
		Marketing:   c.notes.Marketing,
		UpdatedAt:   time.Now(),
	})
}

func (c *Controller) persist() error {
	if c.records == nil {
		return nil
	}
	it := c.item
	it.Developer = c.notes.Developer
	it.Marketing = c.notes.Marketing
	it.UpdatedAt = time.Now()
	if err := c.records.Upsert(it); err != nil {
		return err
	}
	return c.records.DeleteScratch(it.ID)
}
