package history

import (
	"context"
	"testing"
	"time"

	"github.com/Molvine192/projectM-music/internal/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) error: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestStore_RecordAndListPlays(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	records := []core.PlayRecord{
		{Identifier: "aaaaa", Title: "First", CacheHit: false, FirstPlay: true, At: time.Now().Add(-2 * time.Minute)},
		{Identifier: "bbbbb", Title: "Second", CacheHit: false, FirstPlay: true, At: time.Now().Add(-time.Minute)},
		{Identifier: "aaaaa", Title: "First", CacheHit: true, FirstPlay: false, At: time.Now()},
	}
	for _, rec := range records {
		if err := store.RecordPlay(ctx, rec); err != nil {
			t.Fatalf("RecordPlay(%s) error: %v", rec.Identifier, err)
		}
	}

	plays, err := store.RecentPlays(ctx, 10)
	if err != nil {
		t.Fatalf("RecentPlays() error: %v", err)
	}
	if len(plays) != 3 {
		t.Fatalf("RecentPlays() returned %d rows, want 3", len(plays))
	}
	// Newest first.
	if plays[0].Identifier != "aaaaa" || !plays[0].CacheHit {
		t.Errorf("newest play = %+v, want the cache-hit replay of aaaaa", plays[0])
	}

	count, err := store.PlayCount(ctx)
	if err != nil {
		t.Fatalf("PlayCount() error: %v", err)
	}
	if count != 3 {
		t.Errorf("PlayCount() = %d, want 3", count)
	}

	ids, err := store.PlayedIdentifiers(ctx)
	if err != nil {
		t.Fatalf("PlayedIdentifiers() error: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("PlayedIdentifiers() returned %d identifiers, want 2 distinct", len(ids))
	}
}

func TestStore_RecentPlaysLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rec := core.PlayRecord{Identifier: "aaaaa", At: time.Now()}
		if err := store.RecordPlay(ctx, rec); err != nil {
			t.Fatalf("RecordPlay() error: %v", err)
		}
	}

	plays, err := store.RecentPlays(ctx, 2)
	if err != nil {
		t.Fatalf("RecentPlays() error: %v", err)
	}
	if len(plays) != 2 {
		t.Errorf("RecentPlays(2) returned %d rows", len(plays))
	}
}

func TestStore_RecordPing(t *testing.T) {
	store := openTestStore(t)
	if err := store.RecordPing(context.Background(), "203.0.113.9", time.Now()); err != nil {
		t.Fatalf("RecordPing() error: %v", err)
	}
}
