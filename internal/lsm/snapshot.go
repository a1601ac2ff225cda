package lsm

import (
	"github.com/Leadrive/eventql/internal/metadata"
	"github.com/Leadrive/eventql/internal/segment"
)

// LifecycleState is a partition's position in its load/serve/unload cycle.
type LifecycleState int

const (
	LifecycleLoad LifecycleState = iota
	LifecycleServe
	LifecycleUnload
	LifecycleUnloadAndDelete
)

// ReplicationTarget is one replica this partition should be serving from
// or replicating to, as last reported by metadata discovery.
type ReplicationTarget struct {
	ServerID    string
	PlacementID string
	PartitionID metadata.PartitionID
	Keyrange    Keyrange
	IsJoining   bool
}

// Snapshot is the immutable, copy-on-write state of one partition at a
// point in time. Writers publish a new Snapshot atomically; readers that
// already hold a reference to one never see it mutate underneath them.
type Snapshot struct {
	PartitionID metadata.PartitionID
	Keyrange    Keyrange

	LSMSequence uint64
	Segments    []segment.Descriptor

	HeadArena       *Arena
	CompactingArena *Arena

	Lifecycle LifecycleState

	IsSplitting       bool
	SplitPartitionIDs []metadata.PartitionID

	LastMetadataTxnID  metadata.TxnID
	LastMetadataTxnSeq uint64

	ReplicationTargets []ReplicationTarget
	HasJoiningServers  bool
	ReplicationState   *ReplicationState

	arenaUUID string
}

// Clone returns a shallow copy of s with independently-owned slices, so the
// caller can mutate the copy's Segments/SplitPartitionIDs/ReplicationTargets
// without touching the published snapshot.
func (s *Snapshot) Clone() *Snapshot {
	clone := *s
	clone.Segments = append([]segment.Descriptor(nil), s.Segments...)
	clone.SplitPartitionIDs = append([]metadata.PartitionID(nil), s.SplitPartitionIDs...)
	clone.ReplicationTargets = append([]ReplicationTarget(nil), s.ReplicationTargets...)
	return &clone
}

// TotalSegmentBytes sums SizeBytes across every segment, the figure the
// split threshold is measured against.
func (s *Snapshot) TotalSegmentBytes() uint64 {
	var total uint64
	for _, d := range s.Segments {
		total += d.SizeBytes
	}
	return total
}
