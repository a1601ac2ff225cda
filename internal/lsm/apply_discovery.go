package lsm

import (
	"github.com/Leadrive/eventql/internal/errs"
	"github.com/Leadrive/eventql/internal/metadata"
)

// ApplyMetadataChange integrates a discovery response into the snapshot
// under the write-lock. It is idempotent: a response whose txnseq is not
// strictly newer than the partition's current one is rejected rather than
// silently accepted, so a retried or reordered discovery call can't undo a
// more recent update.
func (w *Writer) ApplyMetadataChange(d *metadata.DiscoveryResponse) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	snap := w.Snapshot()
	if d.TxnSeq <= snap.LastMetadataTxnSeq {
		return errs.ConcurrentModification("discovery txnseq %d not newer than current %d", d.TxnSeq, snap.LastMetadataTxnSeq)
	}

	next := snap.Clone()
	next.LastMetadataTxnID = d.TxnID
	next.LastMetadataTxnSeq = d.TxnSeq
	next.Lifecycle = LifecycleState(d.Code)
	next.IsSplitting = d.IsSplitting

	if len(next.Keyrange.End) == 0 && len(d.KeyrangeEnd) > 0 {
		next.Keyrange.End = d.KeyrangeEnd
	}

	next.SplitPartitionIDs = append([]metadata.PartitionID(nil), d.SplitPartitionIDs...)

	targets := make([]ReplicationTarget, 0, len(d.ReplicationTargets))
	hasJoining := false
	for _, t := range d.ReplicationTargets {
		targets = append(targets, ReplicationTarget{
			ServerID:    t.ServerID,
			PlacementID: t.PlacementID,
			PartitionID: t.PartitionID,
			Keyrange:    Keyrange{Begin: t.KeyrangeBegin, End: t.KeyrangeEnd},
			IsJoining:   t.IsJoining,
		})
		if t.IsJoining {
			hasJoining = true
		}
	}
	next.ReplicationTargets = targets
	next.HasJoiningServers = hasJoining

	if err := writeToDisk(w.dir, next); err != nil {
		return errs.WrapIO(err, "persist partition snapshot")
	}
	w.publish(next)
	return nil
}
