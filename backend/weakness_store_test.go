package main

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testStore(t *testing.T, capacity int) *WeaknessStore {
	t.Helper()
	store, err := OpenWeaknessStore("", capacity, zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreAppendAndRead(t *testing.T) {
	store := testStore(t, 50)
	sig := WeaknessSignature{
		Category:   "hanging_pieces",
		Confidence: 0.8,
		Severity:   0.9,
		LastSeen:   time.Now(),
	}
	if err := store.Append(sig); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, err := store.Read(0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 || got[0].Category != "hanging_pieces" {
		t.Fatalf("read back %+v", got)
	}
}

func TestStoreLastWriteWins(t *testing.T) {
	store := testStore(t, 50)
	first := WeaknessSignature{Category: "back_rank", Occurrences: 1, LastSeen: time.Now()}
	second := WeaknessSignature{Category: "back_rank", Occurrences: 7, LastSeen: time.Now()}
	if err := store.Append(first); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Append(second); err != nil {
		t.Fatalf("append: %v", err)
	}
	count, err := store.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("same category must occupy one slot, got %d", count)
	}
	got, err := store.Read(0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got[0].Occurrences != 7 {
		t.Fatalf("last write should win, got occurrences=%d", got[0].Occurrences)
	}
}

func TestStoreCapEvictsOldest(t *testing.T) {
	store := testStore(t, 5)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 8; i++ {
		sig := WeaknessSignature{
			Category: fmt.Sprintf("weakness_%d", i),
			LastSeen: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Append(sig); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	count, err := store.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 5 {
		t.Fatalf("store must stay at cap 5, got %d", count)
	}
	got, err := store.Read(0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, sig := range got {
		for i := 0; i < 3; i++ {
			if sig.Category == fmt.Sprintf("weakness_%d", i) {
				t.Fatalf("oldest entry %s should have been evicted", sig.Category)
			}
		}
	}
}

func TestStoreReadLimitRanksByPriority(t *testing.T) {
	store := testStore(t, 50)
	now := time.Now()
	weak := WeaknessSignature{Category: "low", Confidence: 0.1, Mastery: 90, Severity: 0.1, LastSeen: now.Add(-40 * 24 * time.Hour)}
	strong := WeaknessSignature{Category: "high", Confidence: 0.9, Mastery: 10, Severity: 0.9, LastSeen: now}
	if err := store.Append(weak); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Append(strong); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, err := store.Read(1)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 || got[0].Category != "high" {
		t.Fatalf("limited read should surface the highest priority signature, got %+v", got)
	}
}

func TestStoreAppendStampsLastSeen(t *testing.T) {
	store := testStore(t, 50)
	if err := store.Append(WeaknessSignature{Category: "forks"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, err := store.Read(0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got[0].LastSeen.IsZero() {
		t.Fatalf("append should stamp a missing LastSeen")
	}
}
