package lsm

import (
	"testing"

	"github.com/Leadrive/eventql/internal/record"
	"github.com/Leadrive/eventql/internal/segment"
)

// After a successful compaction, the set of (record_id -> max version)
// pairs reachable through the segment list is unchanged, and the old
// segment files are handed to the file tracker for deletion.
func TestCompactMergesAndDeduplicates(t *testing.T) {
	w := newTestWriter(t, defaultTestTable())

	idA := idOf(0x01)
	idB := idOf(0x02)

	vA1 := mustVersion(t, 1_500_000_000_000_001)
	vA2 := mustVersion(t, 1_500_000_000_000_002) // newer write to A, lands in the 2nd segment
	vB := mustVersion(t, 1_500_000_000_000_003)

	if _, err := w.Insert([]record.Record{{ID: idA, Version: vA1, Payload: []byte("a1")}}); err != nil {
		t.Fatalf("insert 1: %v", err)
	}
	if _, err := w.Commit(); err != nil {
		t.Fatalf("commit 1: %v", err)
	}

	if _, err := w.Insert([]record.Record{
		{ID: idA, Version: vA2, Payload: []byte("a2")},
		{ID: idB, Version: vB, Payload: []byte("b1")},
	}); err != nil {
		t.Fatalf("insert 2: %v", err)
	}
	if _, err := w.Commit(); err != nil {
		t.Fatalf("commit 2: %v", err)
	}

	before := w.Snapshot()
	if len(before.Segments) != 2 {
		t.Fatalf("segment count before compaction = %d, want 2", len(before.Segments))
	}
	oldNames := map[string]bool{}
	for _, d := range before.Segments {
		oldNames[d.Filename] = true
	}

	dirty, err := w.Compact(true)
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if !dirty {
		t.Fatal("Compact reported no work done")
	}

	after := w.Snapshot()
	if len(after.Segments) != 1 {
		t.Fatalf("segment count after compaction = %d, want 1", len(after.Segments))
	}
	if oldNames[after.Segments[0].Filename] {
		t.Fatal("compaction result reused an old segment filename")
	}

	recs, err := segment.ReadAll(after.Segments[0].DataPath(w.dir))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	versions := map[record.ID]record.Version{}
	for _, r := range recs {
		versions[r.ID] = r.Version
	}
	if len(versions) != 2 {
		t.Fatalf("merged record set = %v, want 2 distinct ids", versions)
	}
	if versions[idA] != vA2 {
		t.Fatalf("merged version for A = %d, want %d (last-write-wins)", versions[idA], vA2)
	}
	if versions[idB] != vB {
		t.Fatalf("merged version for B = %d, want %d", versions[idB], vB)
	}

	pending := w.tracker.Pending()
	if len(pending) != 0 {
		// Nothing else acquired these filenames, so Submit reaps them
		// synchronously and Compact returns with the old files already gone.
		t.Fatalf("file tracker still has pending deletes: %v", pending)
	}
	for name := range oldNames {
		stale := segment.Descriptor{Filename: name}
		if _, err := segment.ReadAll(stale.DataPath(w.dir)); err == nil {
			t.Fatalf("old segment %s was not removed after compaction", name)
		}
	}
}

// segmentPrefixMatches is the invariant Compact re-checks before publishing:
// the current snapshot's first len(old) segments must still equal old by
// filename, or a concurrent commit/compaction raced ahead of this one.
func TestSegmentPrefixMatches(t *testing.T) {
	s1 := segment.Descriptor{Filename: "s1"}
	s2 := segment.Descriptor{Filename: "s2"}
	s3 := segment.Descriptor{Filename: "s3"}

	if !segmentPrefixMatches([]segment.Descriptor{s1, s2, s3}, []segment.Descriptor{s1, s2}) {
		t.Fatal("expected prefix match when old is an unchanged prefix of current")
	}
	if segmentPrefixMatches([]segment.Descriptor{s1, s3}, []segment.Descriptor{s1, s2}) {
		t.Fatal("expected prefix mismatch when a prefix segment changed")
	}
	if segmentPrefixMatches([]segment.Descriptor{s1}, []segment.Descriptor{s1, s2}) {
		t.Fatal("expected prefix mismatch when current is shorter than old")
	}
}

func TestFilenamesMinus(t *testing.T) {
	old := []segment.Descriptor{{Filename: "a"}, {Filename: "b"}, {Filename: "c"}}
	kept := []segment.Descriptor{{Filename: "merged"}, {Filename: "c"}}

	got := filenamesMinus(old, kept)
	want := map[string]bool{"a": true, "b": true}
	if len(got) != len(want) {
		t.Fatalf("filenamesMinus = %v, want 2 entries", got)
	}
	for _, n := range got {
		if !want[n] {
			t.Fatalf("unexpected deleted filename %q", n)
		}
	}
}
