package lsm

import (
	"path/filepath"
	"sort"

	"github.com/Leadrive/eventql/internal/errs"
	"github.com/Leadrive/eventql/internal/logger"
	"github.com/Leadrive/eventql/internal/record"
	"github.com/Leadrive/eventql/internal/segment"
)

// Strategy decides whether a partition's segment list needs compaction and
// produces the merged replacement list.
type Strategy interface {
	NeedsCompaction(segments []segment.Descriptor) bool
	NeedsUrgentCompaction(segments []segment.Descriptor) bool
	Compact(dir string, segments []segment.Descriptor) ([]segment.Descriptor, error)
}

// SimpleStrategy merges the first run (lowest start index) of contiguous
// segments whose neighbouring sizes stay within SizeTierRatio of each
// other — size-tiered compaction —
// deduplicating by (record ID, max version): last-write-wins across the
// merged set. Urgency triggers once the segment count crosses
// UrgentSegmentThreshold; the hard ceiling is the caller's
// MAX_LSM_SEGMENTS, enforced by Insert's Overloaded check, not here.
type SimpleStrategy struct {
	UrgentSegmentThreshold int
	MaxSegments            int
	SizeTierRatio          float64
	logger                 *logger.Logger
}

func NewSimpleStrategy(urgentThreshold, maxSegments int, log *logger.Logger) *SimpleStrategy {
	return &SimpleStrategy{
		UrgentSegmentThreshold: urgentThreshold,
		MaxSegments:            maxSegments,
		SizeTierRatio:          2.0,
		logger:                 log,
	}
}

func (s *SimpleStrategy) NeedsCompaction(segments []segment.Descriptor) bool {
	_, start := s.findMergeRun(segments)
	return start >= 0
}

func (s *SimpleStrategy) NeedsUrgentCompaction(segments []segment.Descriptor) bool {
	return len(segments) > s.UrgentSegmentThreshold
}

// findMergeRun returns the first run of at least two contiguous,
// size-compatible segments, scanning start indexes from 0 and extending
// each run as far as sizes stay compatible, along with its start index, or
// (nil, -1) if no run qualifies. A longer run further along the list is
// not preferred over an earlier one. The run need not start at index 0 —
// segments before it are left untouched by Compact.
func (s *SimpleStrategy) findMergeRun(segments []segment.Descriptor) ([]segment.Descriptor, int) {
	if len(segments) < 2 {
		return nil, -1
	}
	for start := 0; start < len(segments)-1; start++ {
		end := start + 1
		for end < len(segments) {
			prevSize := float64(segments[end-1].SizeBytes)
			curSize := float64(segments[end].SizeBytes)
			if prevSize == 0 || curSize == 0 {
				end++
				continue
			}
			ratio := curSize / prevSize
			if ratio > s.SizeTierRatio || ratio < 1/s.SizeTierRatio {
				break
			}
			end++
		}
		if end-start >= 2 {
			return segments[start:end], start
		}
	}
	return nil, -1
}

// Compact merges the discovered run (or, if forced with no tiered run, the
// whole input) into one new segment, preserving any segments outside the
// run untouched in the returned list.
func (s *SimpleStrategy) Compact(dir string, segments []segment.Descriptor) ([]segment.Descriptor, error) {
	run, start := s.findMergeRun(segments)
	if run == nil {
		run, start = segments, 0
	}
	if len(run) < 2 {
		return segments, nil
	}

	merged := make(map[record.ID]record.Record)
	for _, desc := range run {
		recs, err := segment.ReadAll(desc.DataPath(dir))
		if err != nil {
			return nil, err
		}
		for _, r := range recs {
			if existing, ok := merged[r.ID]; !ok || r.Version > existing.Version {
				merged[r.ID] = r
			}
		}
	}

	out := make([]record.Record, 0, len(merged))
	for _, r := range merged {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return recordLess(out[i].ID, out[j].ID) })

	// The merged segment inherits the run's own sequence span rather than
	// a fresh one off the partition's LSMSequence counter: compaction can
	// shrink the record count (duplicates collapse), so reusing
	// run[0].FirstSequence keeps sequence numbers strictly ascending
	// across the segment list without the caller having to advance
	// LSMSequence past what Commit already owns.
	filename := randomSegmentName()
	mergedDesc, err := segment.Write(dir, filename, out, run[0].FirstSequence, s.logger)
	if err != nil {
		return nil, err
	}
	mergedDesc.LastSequence = run[len(run)-1].LastSequence

	newSegments := make([]segment.Descriptor, 0, len(segments)-len(run)+1)
	newSegments = append(newSegments, segments[:start]...)
	newSegments = append(newSegments, mergedDesc)
	newSegments = append(newSegments, segments[start+len(run):]...)
	return newSegments, nil
}

func recordLess(a, b record.ID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Compact implements the writer-level compaction algorithm: try-lock
// compactionMu (a concurrent attempt simply no-ops), drain the arena via
// Commit first so compaction always operates on the full segment list,
// hand the segments to the strategy, then re-verify a prefix match against
// the current snapshot before publishing — a concurrent commit that
// appended a new segment during the merge must not be clobbered. The
// merged segment reuses its run's own sequence span (see Strategy.Compact),
// which is already covered by LSMSequence, so no separate advance is
// needed here; the next Commit keeps assigning strictly past it.
func (w *Writer) Compact(force bool) (bool, error) {
	if !w.compactionMu.TryLock() {
		return false, nil
	}
	defer w.compactionMu.Unlock()

	dirty, err := w.Commit()
	if err != nil {
		return dirty, err
	}

	old := append([]segment.Descriptor(nil), w.Snapshot().Segments...)
	if !force && !w.strategy.NeedsCompaction(old) {
		return dirty, nil
	}
	if len(old) < 2 {
		return dirty, nil
	}

	newSegments, err := w.strategy.Compact(w.dir, old)
	if err != nil {
		return dirty, err
	}

	w.writeMu.Lock()
	current := w.Snapshot()
	if !segmentPrefixMatches(current.Segments, old) {
		w.writeMu.Unlock()
		return dirty, errs.ConcurrentModification("segment list changed under compaction")
	}
	tailAddedSince := append([]segment.Descriptor(nil), current.Segments[len(old):]...)

	next := current.Clone()
	next.Segments = append(append([]segment.Descriptor(nil), newSegments...), tailAddedSince...)
	if err := writeToDisk(w.dir, next); err != nil {
		w.writeMu.Unlock()
		return dirty, errs.WrapIO(err, "persist partition snapshot")
	}
	w.publish(next)
	w.writeMu.Unlock()

	deleteSet := filenamesMinus(old, newSegments)
	for _, name := range deleteSet {
		w.skipCache.Flush(filepath.Join(w.dir, name+segment.DataExt))
	}
	if len(deleteSet) > 0 {
		if err := w.tracker.Submit(deleteSet); err != nil {
			w.logger.Warn("file tracker submit failed: %v", err)
		}
	}

	if w.needsSplit(next) {
		if _, err := w.Split(); err != nil {
			w.logger.Warn("post-compaction split failed: %v", err)
		}
	}

	return true, nil
}

// segmentPrefixMatches reports whether current's first len(old) segments
// equal old by filename — the invariant compaction must hold before
// publishing its merged result.
func segmentPrefixMatches(current, old []segment.Descriptor) bool {
	if len(current) < len(old) {
		return false
	}
	for i, desc := range old {
		if current[i].Filename != desc.Filename {
			return false
		}
	}
	return true
}

// filenamesMinus returns base filenames present in old but absent from
// kept — the delete_set handed to the file tracker.
func filenamesMinus(old, kept []segment.Descriptor) []string {
	keep := make(map[string]struct{}, len(kept))
	for _, k := range kept {
		keep[k.Filename] = struct{}{}
	}
	var out []string
	for _, o := range old {
		if _, ok := keep[o.Filename]; !ok {
			out = append(out, o.Filename)
		}
	}
	return out
}
