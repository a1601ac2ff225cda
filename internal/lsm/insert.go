package lsm

import (
	"github.com/Leadrive/eventql/internal/errs"
	"github.com/Leadrive/eventql/internal/record"
)

// Insert implements the deduplication protocol: an opportunistic
// pre-lookup outside the write-lock (cheap in the common case, since most
// batches don't collide with existing versions), a re-consult under the
// lock to close the race against a concurrent commit or compaction, a
// single atomic append to the head arena, and finally post-insert triggers
// for commit and urgent compaction.
func (w *Writer) Insert(batch []record.Record) (map[record.ID]struct{}, error) {
	if len(batch) == 0 {
		return map[record.ID]struct{}{}, nil
	}

	versions := make(map[record.ID]record.Version, len(batch))
	for _, r := range batch {
		versions[r.ID] = 0
	}

	snap := w.Snapshot()
	prepared := make(map[string]struct{}, len(snap.Segments))
	for i := len(snap.Segments) - 1; i >= 0; i-- {
		seg := snap.Segments[i]
		if err := w.skipCache.Lookup(seg.DataPath(w.dir), versions); err != nil {
			return nil, err
		}
		prepared[seg.Filename] = struct{}{}
	}

	w.writeMu.Lock()
	if w.isFrozen() {
		w.writeMu.Unlock()
		return nil, errs.IllegalState("partition writer is frozen")
	}
	snap = w.Snapshot()
	if len(snap.Segments) > w.table.MaxLSMSegments {
		w.writeMu.Unlock()
		return nil, errs.Overloaded("segment count %d exceeds MAX_LSM_SEGMENTS %d", len(snap.Segments), w.table.MaxLSMSegments)
	}

	if snap.CompactingArena != nil {
		for _, r := range snap.CompactingArena.Records() {
			if r.Version > versions[r.ID] {
				versions[r.ID] = r.Version
			}
		}
	}
	for _, r := range snap.HeadArena.Records() {
		if r.Version > versions[r.ID] {
			versions[r.ID] = r.Version
		}
	}
	for _, seg := range snap.Segments {
		if _, ok := prepared[seg.Filename]; ok {
			continue
		}
		if err := w.skipCache.Lookup(seg.DataPath(w.dir), versions); err != nil {
			w.writeMu.Unlock()
			return nil, err
		}
	}

	skipMask := make([]bool, len(batch))
	updateMask := make([]bool, len(batch))
	for i, r := range batch {
		skipMask[i] = r.Version <= versions[r.ID]
		updateMask[i] = versions[r.ID] > 0
	}

	inserted := snap.HeadArena.Insert(batch, skipMask, updateMask)
	headSize := snap.HeadArena.Size()
	w.writeMu.Unlock()

	if headSize > w.table.MaxArenaRecords {
		if _, err := w.Commit(); err != nil {
			w.logger.Warn("post-insert commit failed: %v", err)
		}
	}
	if w.strategy.NeedsUrgentCompaction(w.Snapshot().Segments) {
		if _, err := w.Compact(false); err != nil {
			w.logger.Warn("post-insert compaction failed: %v", err)
		}
	}

	return inserted, nil
}
