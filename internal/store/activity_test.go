package store

import (
	"fmt"
	"strings"
	"testing"

	"github.com/dukerupert/safealert/internal/model"
)

func setupActivityTestDB(t *testing.T) *ActivityStore {
	t.Helper()
	return NewActivityStore(setupStateTestDB(t))
}

func TestActivityEmpty(t *testing.T) {
	as := setupActivityTestDB(t)

	entries, err := as.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty list, got %d", len(entries))
	}
}

func TestActivityNewestFirst(t *testing.T) {
	as := setupActivityTestDB(t)

	as.Add(model.ActivityEntry{ID: "1", Title: "first"})
	as.Add(model.ActivityEntry{ID: "2", Title: "second"})

	entries, err := as.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].ID != "2" || entries[1].ID != "1" {
		t.Errorf("order = %s,%s; want 2,1", entries[0].ID, entries[1].ID)
	}
}

func TestActivityEvictsOldest(t *testing.T) {
	as := setupActivityTestDB(t)

	for i := 1; i <= 11; i++ {
		if _, err := as.Add(model.ActivityEntry{ID: fmt.Sprint(i)}); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}

	entries, err := as.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != model.ActivityCapacity {
		t.Fatalf("len = %d, want %d", len(entries), model.ActivityCapacity)
	}
	if entries[0].ID != "11" {
		t.Errorf("newest = %s, want 11", entries[0].ID)
	}
	for _, e := range entries {
		if e.ID == "1" {
			t.Error("oldest entry should have been evicted")
		}
	}
}

func TestActivityFillsDefaults(t *testing.T) {
	as := setupActivityTestDB(t)

	got, err := as.Add(model.ActivityEntry{
		Type:        model.ActivityReport,
		Description: strings.Repeat("a", 150),
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if got.ID == "" {
		t.Error("expected generated id")
	}
	if got.Timestamp.IsZero() {
		t.Error("expected timestamp")
	}
	if len(got.Description) != 103 {
		t.Errorf("description length = %d, want 103", len(got.Description))
	}

	short, err := as.Add(model.ActivityEntry{Type: model.ActivityReport, Description: "Graffiti"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if short.Description != "Graffiti..." {
		t.Errorf("Description = %q, want %q", short.Description, "Graffiti...")
	}
}

func TestActivityRecoversFromCorruptCache(t *testing.T) {
	as := setupActivityTestDB(t)
	as.state.Set(keyRecentActivity, "{not json")

	if _, err := as.Add(model.ActivityEntry{ID: "x"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	entries, err := as.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "x" {
		t.Errorf("entries = %+v, want single x", entries)
	}
}
