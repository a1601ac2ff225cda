package lsm

import (
	"github.com/Leadrive/eventql/internal/errs"
	"github.com/Leadrive/eventql/internal/segment"
)

// Commit flips the head arena into the compacting slot under a short
// write-lock, flushes it to a fresh immutable segment outside the lock,
// then appends the new segment descriptor back under the write-lock. If
// the flush fails, the compacting arena is left in place so the next
// Commit retries the same data rather than losing it.
func (w *Writer) Commit() (bool, error) {
	w.commitMu.Lock()
	defer w.commitMu.Unlock()

	w.writeMu.Lock()
	snap := w.Snapshot()
	flipped := snap
	if snap.CompactingArena == nil {
		if snap.HeadArena.Size() == 0 {
			w.writeMu.Unlock()
			return false, nil
		}
		flipped = snap.Clone()
		flipped.CompactingArena = snap.HeadArena
		flipped.HeadArena = NewArena()
		w.publish(flipped)
	}
	w.writeMu.Unlock()

	records := flipped.CompactingArena.LatestRecords()
	filename := randomSegmentName()
	firstSeq := flipped.LSMSequence + 1
	desc, err := segment.Write(w.dir, filename, records, firstSeq, w.logger)
	if err != nil {
		w.logger.Error("commit flush failed, compacting arena preserved for retry: %v", err)
		return false, errs.WrapIO(err, "flush partition segment")
	}

	w.writeMu.Lock()
	current := w.Snapshot()
	next := current.Clone()
	next.Segments = append(next.Segments, desc)
	next.LSMSequence = desc.LastSequence
	next.CompactingArena = nil
	if err := writeToDisk(w.dir, next); err != nil {
		w.writeMu.Unlock()
		return false, errs.WrapIO(err, "persist partition snapshot")
	}
	w.publish(next)
	w.writeMu.Unlock()

	if w.needsSplit(next) {
		if _, err := w.Split(); err != nil {
			w.logger.Warn("post-commit split failed: %v", err)
		}
	}

	return true, nil
}
