package store

import (
	"path/filepath"
	"testing"
	"time"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "records.json"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRoundTrip(t *testing.T) {
	s := tempStore(t)
	want := Item{
		ID:          "42",
		Description: "fix bug",
		Link:        "https://example.com/pull/42",
		Diff:        "- old\n+ new",
		Developer:   "Fixed a nil deref in the parser. Includes \"quotes\" and\nnewlines.",
		Marketing:   "More reliable parsing.",
		UpdatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	if err := s.Upsert(want); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.Get("42")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Developer != want.Developer || got.Marketing != want.Marketing {
		t.Fatalf("notes not byte-identical:\n%q\n%q", got.Developer, want.Developer)
	}
	if got.Diff != want.Diff || got.Link != want.Link {
		t.Fatalf("got %+v", got)
	}
}

func TestUpsertNewestWins(t *testing.T) {
	s := tempStore(t)
	now := time.Now().UTC()
	newer := Item{ID: "1", Developer: "new", Marketing: "new", UpdatedAt: now}
	older := Item{ID: "1", Developer: "old", Marketing: "old", UpdatedAt: now.Add(-time.Hour)}

	if err := s.Upsert(newer); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(older); err != nil {
		t.Fatal(err)
	}
	got, _, err := s.Get("1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Developer != "new" {
		t.Fatalf("older write overwrote newer: %+v", got)
	}
}

func TestListSortedByUpdateDescending(t *testing.T) {
	s := tempStore(t)
	now := time.Now().UTC()
	err := s.Upsert(
		Item{ID: "a", UpdatedAt: now.Add(-2 * time.Hour)},
		Item{ID: "b", UpdatedAt: now},
		Item{ID: "c", UpdatedAt: now.Add(-time.Hour)},
	)
	if err != nil {
		t.Fatal(err)
	}
	items, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Fatalf("len = %d", len(items))
	}
	if items[0].ID != "b" || items[1].ID != "c" || items[2].ID != "a" {
		t.Fatalf("order: %s %s %s", items[0].ID, items[1].ID, items[2].ID)
	}
}

func TestDelete(t *testing.T) {
	s := tempStore(t)
	if err := s.Upsert(Item{ID: "1"}, Item{ID: "2"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("1"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get("1"); ok {
		t.Fatal("item 1 still present")
	}
	if _, ok, _ := s.Get("2"); !ok {
		t.Fatal("item 2 lost")
	}
}

func TestScratchLifecycle(t *testing.T) {
	s := tempStore(t)
	sc := Scratch{
		ItemID:      "42",
		Accumulated: `{"developer": "partial te`,
		Developer:   "partial te",
	}
	if err := s.PutScratch(sc); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.GetScratch("42")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if got.Accumulated != sc.Accumulated || got.Developer != sc.Developer {
		t.Fatalf("got %+v", got)
	}
	if err := s.DeleteScratch("42"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.GetScratch("42"); ok {
		t.Fatal("scratch still present after delete")
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	s1, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.Upsert(Item{ID: "9", Developer: "D", Marketing: "M"}); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	got, ok, err := s2.Get("9")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if got.Developer != "D" || got.Marketing != "M" {
		t.Fatalf("got %+v", got)
	}
}
