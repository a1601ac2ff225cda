// Package lsm implements the per-partition write path: arenas, immutable
// segments, copy-on-write snapshots, and the insert/commit/compaction/split
// algorithms that operate on them.
package lsm

import (
	"sort"
	"sync"

	"github.com/Leadrive/eventql/internal/record"
)

// Arena is the in-memory write buffer records land in before a commit
// flushes them to an immutable segment. Only the active writer mutates an
// Arena, always from within the writer's write-lock critical section; it
// is otherwise read-only to anything holding a reference via a published
// Snapshot.
type Arena struct {
	mu      sync.RWMutex
	records []record.Record
	latest  map[record.ID]int // record ID -> index of its newest slot in records
}

func NewArena() *Arena {
	return &Arena{latest: make(map[record.ID]int)}
}

// Size returns how many records (including superseded-but-retained slots)
// the arena holds.
func (a *Arena) Size() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.records)
}

// FetchRecordVersion returns the highest version seen for id in this arena,
// or 0 if the arena has never seen it.
func (a *Arena) FetchRecordVersion(id record.ID) record.Version {
	a.mu.RLock()
	defer a.mu.RUnlock()
	idx, ok := a.latest[id]
	if !ok {
		return 0
	}
	return a.records[idx].Version
}

// Insert appends every record in batch whose skipMask entry is false,
// tracking the newest slot per ID by version (not by append order, so two
// unskipped duplicates of the same ID within one batch still resolve to
// the higher version), and returns the set of IDs actually inserted.
// updateMask carries, per record, whether the dedup pre-lookup in
// insert.go found a prior version of that ID anywhere in the partition —
// distinct from skipMask, which says whether this particular version lost
// that comparison. Nothing currently branches on it; it's threaded through
// so a future stats counter (inserts vs. updates) doesn't need to redo the
// lookup the caller already did.
func (a *Arena) Insert(batch []record.Record, skipMask, updateMask []bool) map[record.ID]struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()

	inserted := make(map[record.ID]struct{})
	for i, r := range batch {
		if skipMask[i] {
			continue
		}
		idx := len(a.records)
		a.records = append(a.records, r)
		if cur, ok := a.latest[r.ID]; !ok || r.Version > a.records[cur].Version {
			a.latest[r.ID] = idx
		}
		inserted[r.ID] = struct{}{}
	}
	return inserted
}

// Records returns a copy of every record the arena holds, including
// superseded-but-retained slots, in insertion order, for scans that only
// care about which IDs are present (e.g. the split median scan).
func (a *Arena) Records() []record.Record {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]record.Record, len(a.records))
	copy(out, a.records)
	return out
}

// LatestRecords returns one record per distinct ID — the highest-version
// slot — sorted by ID for a deterministic segment layout. This is the view
// flush_to_disk persists, so two duplicate IDs appended within the same
// batch collapse to a single physical record, the same last-write-wins
// collapsing compaction performs across segments.
func (a *Arena) LatestRecords() []record.Record {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]record.Record, 0, len(a.latest))
	for _, idx := range a.latest {
		out = append(out, a.records[idx])
	}
	sort.Slice(out, func(i, j int) bool { return recordLess(out[i].ID, out[j].ID) })
	return out
}
