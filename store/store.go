package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// Item is one merged change-set plus its finalized notes, if any.
type Item struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Link        string    `json:"link,omitempty"`
	Diff        string    `json:"diff,omitempty"`
	Developer   string    `json:"developer,omitempty"`
	Marketing   string    `json:"marketing,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Finalized reports whether both notes have been set.
func (it Item) Finalized() bool {
	return it.Developer != "" && it.Marketing != ""
}

// Scratch holds the last observed text of an in-flight stream so a restart
// can show it statically; the live stream itself is not resumable.
type Scratch struct {
	ItemID      string    `json:"item_id"`
	Accumulated string    `json:"accumulated"`
	Developer   string    `json:"developer,omitempty"`
	Marketing   string    `json:"marketing,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store is the flat key-value record store: one JSON document on disk with
// an "items" list and a "sessions" scratch object, read with gjson and
// written with sjson.
type Store struct {
	mu   sync.Mutex
	path string
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &Store{path: path}, nil
}

// List returns all items sorted by descending last-update timestamp.
func (s *Store) List() ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	return decodeItems(doc)
}

// Get returns the item with the given identifier.
func (s *Store) Get(id string) (Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return Item{}, false, err
	}
	items, err := decodeItems(doc)
	if err != nil {
		return Item{}, false, err
	}
	for _, it := range items {
		if it.ID == id {
			return it, true, nil
		}
	}
	return Item{}, false, nil
}

// Upsert merges one or more items by identifier, newest write wins: an
// incoming item older than the stored one is dropped.
func (s *Store) Upsert(items ...Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	existing, err := decodeItems(doc)
	if err != nil {
		return err
	}
	byID := make(map[string]int, len(existing))
	for i, it := range existing {
		byID[it.ID] = i
	}
	for _, it := range items {
		if it.UpdatedAt.IsZero() {
			it.UpdatedAt = time.Now()
		}
		if i, ok := byID[it.ID]; ok {
			if existing[i].UpdatedAt.After(it.UpdatedAt) {
				continue
			}
			existing[i] = it
		} else {
			byID[it.ID] = len(existing)
			existing = append(existing, it)
		}
	}
	doc, err = sjson.SetBytes(doc, "items", existing)
	if err != nil {
		return err
	}
	return s.save(doc)
}

// Delete removes the item with the given identifier, if present.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	items, err := decodeItems(doc)
	if err != nil {
		return err
	}
	kept := items[:0]
	for _, it := range items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	doc, err = sjson.SetBytes(doc, "items", kept)
	if err != nil {
		return err
	}
	return s.save(doc)
}

// PutScratch records in-flight stream text for an item.
func (s *Store) PutScratch(sc Scratch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	if sc.UpdatedAt.IsZero() {
		sc.UpdatedAt = time.Now()
	}
	doc, err = sjson.SetBytes(doc, "sessions."+escapeKey(sc.ItemID), sc)
	if err != nil {
		return err
	}
	return s.save(doc)
}

// GetScratch returns the recorded in-flight text for an item, if any.
func (s *Store) GetScratch(itemID string) (Scratch, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return Scratch{}, false, err
	}
	res := gjson.GetBytes(doc, "sessions."+escapeKey(itemID))
	if !res.Exists() {
		return Scratch{}, false, nil
	}
	var sc Scratch
	if err := json.Unmarshal([]byte(res.Raw), &sc); err != nil {
		return Scratch{}, false, fmt.Errorf("corrupt scratch for %s: %w", itemID, err)
	}
	return sc, true, nil
}

// DeleteScratch clears the scratch entry for an item.
func (s *Store) DeleteScratch(itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	doc, err = sjson.DeleteBytes(doc, "sessions."+escapeKey(itemID))
	if err != nil {
		return err
	}
	return s.save(doc)
}

func (s *Store) load() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []byte(`{}`), nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return []byte(`{}`), nil
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("store file %s is not valid JSON", s.path)
	}
	return data, nil
}

func (s *Store) save(doc []byte) error {
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, pretty.Pretty(doc), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func decodeItems(doc []byte) ([]Item, error) {
	res := gjson.GetBytes(doc, "items")
	if !res.Exists() {
		return nil, nil
	}
	var items []Item
	if err := json.Unmarshal([]byte(res.Raw), &items); err != nil {
		return nil, fmt.Errorf("corrupt items list: %w", err)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})
	return items, nil
}

// gjson path components treat '.' and wildcards specially; identifiers are
// usually PR numbers but escape anyway.
func escapeKey(key string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)
	return r.Replace(key)
}
