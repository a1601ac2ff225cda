package lsm

import (
	"os"
	"testing"

	"github.com/Leadrive/eventql/internal/record"
	"github.com/Leadrive/eventql/internal/segment"
)

// A failed commit (flush I/O error) must preserve the compacting arena so a
// later successful commit reaches the same final state as if the first
// attempt had never failed.
func TestCommitRetryAfterFlushFailure(t *testing.T) {
	w := newTestWriter(t, defaultTestTable())

	id := idOf(0xCC)
	v := mustVersion(t, 1_500_000_000_000_010)
	batch := []record.Record{{ID: id, Version: v, Payload: []byte("payload")}}

	if _, err := w.Insert(batch); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// Remove the partition directory so the flush step's OpenFile fails,
	// regardless of the calling user's permissions.
	if err := os.RemoveAll(w.dir); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}

	if _, err := w.Commit(); err == nil {
		t.Fatal("Commit succeeded despite missing partition directory, want error")
	}

	snap := w.Snapshot()
	if snap.CompactingArena == nil {
		t.Fatal("failed commit dropped the compacting arena")
	}
	if snap.CompactingArena.Size() != 1 {
		t.Fatalf("compacting arena size = %d, want 1", snap.CompactingArena.Size())
	}
	if len(snap.Segments) != 0 {
		t.Fatalf("segment list = %v, want none after failed commit", snap.Segments)
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	dirty, err := w.Commit()
	if err != nil {
		t.Fatalf("retried Commit: %v", err)
	}
	if !dirty {
		t.Fatal("retried Commit reported nothing written")
	}

	snap = w.Snapshot()
	if snap.CompactingArena != nil {
		t.Fatal("compacting arena still set after successful commit")
	}
	if len(snap.Segments) != 1 {
		t.Fatalf("segment count after retry = %d, want 1", len(snap.Segments))
	}

	recs, err := segment.ReadAll(snap.Segments[0].DataPath(w.dir))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != id || recs[0].Version != v {
		t.Fatalf("stored records = %+v, want single record %s@%d", recs, id, v)
	}
}

// Commit is a no-op (returns false, nil) when the head arena is empty.
func TestCommitNoopWhenEmpty(t *testing.T) {
	w := newTestWriter(t, defaultTestTable())
	dirty, err := w.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if dirty {
		t.Fatal("Commit reported work done on an empty arena")
	}
	if len(w.Snapshot().Segments) != 0 {
		t.Fatal("Commit created a segment from an empty arena")
	}
}
