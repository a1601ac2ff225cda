package lsm

import (
	"testing"

	"github.com/Leadrive/eventql/internal/metadata"
)

// ApplyMetadataChange is idempotent: a response whose txnseq is not
// strictly newer than the partition's current one is rejected and leaves
// the snapshot untouched, so a retried or reordered discovery call can't
// undo a more recent update.
func TestApplyMetadataChangeRejectsStaleTxnSeq(t *testing.T) {
	w := newTestWriter(t, defaultTestTable())

	first := &metadata.DiscoveryResponse{
		Code:   int(LifecycleServe),
		TxnID:  metadata.NewTxnID(),
		TxnSeq: 5,
	}
	if err := w.ApplyMetadataChange(first); err != nil {
		t.Fatalf("first ApplyMetadataChange: %v", err)
	}

	before := w.Snapshot()

	for _, txnSeq := range []uint64{5, 4, 0} {
		stale := &metadata.DiscoveryResponse{
			Code:   int(LifecycleServe),
			TxnID:  metadata.NewTxnID(),
			TxnSeq: txnSeq,
		}
		err := w.ApplyMetadataChange(stale)
		if err == nil {
			t.Fatalf("txnseq %d: ApplyMetadataChange succeeded, want ConcurrentModification", txnSeq)
		}

		after := w.Snapshot()
		if after.LastMetadataTxnSeq != before.LastMetadataTxnSeq || after.LastMetadataTxnID != before.LastMetadataTxnID {
			t.Fatalf("txnseq %d: snapshot mutated by a rejected change", txnSeq)
		}
	}
}

// A strictly newer discovery response updates the lifecycle, the keyrange
// end (only when previously unset), the splitting flag/partition IDs, and
// replaces the replication target list wholesale, flagging
// HasJoiningServers when any target is mid-join.
func TestApplyMetadataChangeUpdatesSnapshot(t *testing.T) {
	w := newTestWriter(t, defaultTestTable())

	lowID := metadata.NewPartitionID()
	highID := metadata.NewPartitionID()
	txnID := metadata.NewTxnID()

	resp := &metadata.DiscoveryResponse{
		Code:              int(LifecycleServe),
		TxnID:             txnID,
		TxnSeq:            1,
		KeyrangeEnd:       []byte("zzz"),
		IsSplitting:       true,
		SplitPartitionIDs: []metadata.PartitionID{lowID, highID},
		ReplicationTargets: []metadata.DiscoveredTarget{
			{ServerID: "node-1", PlacementID: "p1", PartitionID: lowID, KeyrangeBegin: nil, KeyrangeEnd: []byte("m")},
			{ServerID: "node-2", PlacementID: "p2", PartitionID: highID, KeyrangeBegin: []byte("m"), IsJoining: true},
		},
	}

	if err := w.ApplyMetadataChange(resp); err != nil {
		t.Fatalf("ApplyMetadataChange: %v", err)
	}

	snap := w.Snapshot()
	if snap.LastMetadataTxnID != txnID || snap.LastMetadataTxnSeq != 1 {
		t.Fatalf("snapshot txnid/txnseq = %s/%d, want %s/1", snap.LastMetadataTxnID, snap.LastMetadataTxnSeq, txnID)
	}
	if snap.Lifecycle != LifecycleServe {
		t.Fatalf("lifecycle = %v, want LifecycleServe", snap.Lifecycle)
	}
	if string(snap.Keyrange.End) != "zzz" {
		t.Fatalf("keyrange end = %q, want %q", snap.Keyrange.End, "zzz")
	}
	if !snap.IsSplitting {
		t.Fatal("IsSplitting not propagated from discovery response")
	}
	if len(snap.SplitPartitionIDs) != 2 || snap.SplitPartitionIDs[0] != lowID || snap.SplitPartitionIDs[1] != highID {
		t.Fatalf("split partition IDs = %v, want [%s %s]", snap.SplitPartitionIDs, lowID, highID)
	}
	if len(snap.ReplicationTargets) != 2 {
		t.Fatalf("replication targets = %v, want 2", snap.ReplicationTargets)
	}
	if !snap.HasJoiningServers {
		t.Fatal("HasJoiningServers not set despite a joining target")
	}

	// A previously-set keyrange end must not be overwritten by a later
	// response — the backfill only ever fills an empty end.
	resp2 := &metadata.DiscoveryResponse{
		Code:        int(LifecycleServe),
		TxnID:       metadata.NewTxnID(),
		TxnSeq:      2,
		KeyrangeEnd: []byte("different"),
	}
	if err := w.ApplyMetadataChange(resp2); err != nil {
		t.Fatalf("second ApplyMetadataChange: %v", err)
	}
	if string(w.Snapshot().Keyrange.End) != "zzz" {
		t.Fatalf("keyrange end changed to %q, want it to stay %q", w.Snapshot().Keyrange.End, "zzz")
	}
	if w.Snapshot().HasJoiningServers {
		t.Fatal("HasJoiningServers still set after a response with no replication targets")
	}
}
