package lsm

import (
	"bytes"
	"sort"

	"github.com/Leadrive/eventql/internal/allocator"
	"github.com/Leadrive/eventql/internal/errs"
	"github.com/Leadrive/eventql/internal/metadata"
	"github.com/Leadrive/eventql/internal/segment"
)

// needsSplit reports whether a partition has grown past its configured
// split threshold and isn't already mid-split.
func (w *Writer) needsSplit(snap *Snapshot) bool {
	if snap.IsSplitting || snap.Lifecycle != LifecycleServe {
		return false
	}
	return snap.TotalSegmentBytes() > w.table.PartitionSplitThresholdBytes
}

// Split finds a median key via a full scan, allocates two fresh partitions
// and their replica sets, and submits a SPLIT_PARTITION metadata operation
// through the coordinator. On success it marks the snapshot as splitting;
// the metadata server's own apply is what actually carves up the
// keyrange — this writer keeps serving the undivided range until discovery
// reports the split has landed.
func (w *Writer) Split() (bool, error) {
	if !w.splitMu.TryLock() {
		return false, nil
	}
	defer w.splitMu.Unlock()

	snap := w.Snapshot()
	if !w.needsSplit(snap) {
		return false, nil
	}

	minKey, median, maxKey, err := w.findMedianValue(snap)
	if err != nil {
		return false, err
	}
	if bytes.Equal(median, minKey) || bytes.Equal(median, maxKey) {
		return false, errs.Runtime("no suitable split point found")
	}

	lowID := metadata.NewPartitionID()
	highID := metadata.NewPartitionID()

	lowServers, err := w.alloc.AllocateServers(allocator.MustAllocate, w.table.ReplicationFactor, nil)
	if err != nil {
		return false, err
	}
	exclude := make(map[string]struct{}, len(lowServers))
	for _, s := range lowServers {
		exclude[s] = struct{}{}
	}
	highServers, err := w.alloc.AllocateServers(allocator.MustAllocate, w.table.ReplicationFactor, exclude)
	if err != nil {
		return false, err
	}

	op := metadata.Operation{
		Namespace:   w.table.Namespace,
		Table:       w.table.Table,
		InputTxnID:  snap.LastMetadataTxnID,
		OutputTxnID: metadata.NewTxnID(),
		OpType:      metadata.OpSplitPartition,
		SplitPartition: &metadata.SplitPartitionOp{
			PartitionID:          snap.PartitionID,
			SplitPoint:           median,
			SplitServersLow:      lowServers,
			SplitServersHigh:     highServers,
			SplitPartitionIDLow:  lowID,
			SplitPartitionIDHigh: highID,
			PlacementID:          metadata.NewPlacementID(),
			FinalizeImmediately:  w.table.FinalizeSplitImmediately,
		},
	}

	if err := w.coord.PerformAndCommitOperation(w.table.Namespace, w.table.Table, op); err != nil {
		return false, err
	}

	w.writeMu.Lock()
	next := w.Snapshot().Clone()
	next.IsSplitting = true
	next.SplitPartitionIDs = []metadata.PartitionID{lowID, highID}
	w.publish(next)
	w.writeMu.Unlock()

	return true, nil
}

// findMedianValue scans every record ID visible through the head arena,
// compacting arena, and segments, and returns (min, median, max) in
// lexicographic order. Record IDs stand in for the partition key this
// core treats as an opaque, externally-assigned ordering.
func (w *Writer) findMedianValue(snap *Snapshot) (min, median, max []byte, err error) {
	seen := make(map[[16]byte]struct{})
	var ids [][]byte

	add := func(id [16]byte) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, append([]byte(nil), id[:]...))
	}

	for _, r := range snap.HeadArena.Records() {
		add(r.ID)
	}
	if snap.CompactingArena != nil {
		for _, r := range snap.CompactingArena.Records() {
			add(r.ID)
		}
	}
	names := make([]string, len(snap.Segments))
	for i, desc := range snap.Segments {
		names[i] = desc.Filename
	}
	w.tracker.Acquire(names)
	defer w.tracker.Release(names)

	for _, desc := range snap.Segments {
		recs, rerr := segment.ReadAll(desc.DataPath(w.dir))
		if rerr != nil {
			return nil, nil, nil, rerr
		}
		for _, r := range recs {
			add(r.ID)
		}
	}

	if len(ids) == 0 {
		return nil, nil, nil, errs.Runtime("no suitable split point found")
	}

	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i], ids[j]) < 0 })
	return ids[0], ids[len(ids)/2], ids[len(ids)-1], nil
}
