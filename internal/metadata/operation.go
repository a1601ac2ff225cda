package metadata

// OperationType identifies the kind of metadata mutation an Operation
// carries.
type OperationType int

const (
	OpRemoveDeadServers OperationType = iota
	OpSplitPartition
	OpFinalizeSplit
	OpJoinServers
	OpFinalizeJoin
	OpCreatePartition
)

func (t OperationType) String() string {
	switch t {
	case OpRemoveDeadServers:
		return "REMOVE_DEAD_SERVERS"
	case OpSplitPartition:
		return "SPLIT_PARTITION"
	case OpFinalizeSplit:
		return "FINALIZE_SPLIT"
	case OpJoinServers:
		return "JOIN_SERVERS"
	case OpFinalizeJoin:
		return "FINALIZE_JOIN"
	case OpCreatePartition:
		return "CREATE_PARTITION"
	default:
		return "UNKNOWN"
	}
}

// SplitPartitionOp carries the payload for OpSplitPartition: the source
// partition, where to cut its keyrange, and the two replica sets and IDs
// allocated for the resulting halves. This is the only operation variant
// this engine's coordinator and metadata server fully apply end-to-end;
// the other OperationType values exist as wire-compatible placeholders a
// full cluster would grow server handlers for; the metadata server rejects
// them as unsupported.
type SplitPartitionOp struct {
	PartitionID          PartitionID
	SplitPoint           []byte
	SplitServersLow      []string
	SplitServersHigh     []string
	SplitPartitionIDLow  PartitionID
	SplitPartitionIDHigh PartitionID
	PlacementID          PlacementID
	FinalizeImmediately  bool
}

// Operation is the tagged-variant envelope submitted to perform_metadata_operation.
type Operation struct {
	Namespace      string
	Table          string
	InputTxnID     TxnID
	OutputTxnID    TxnID
	OpType         OperationType
	SplitPartition *SplitPartitionOp
}

// Result is what a metadata server returns from a successful operation.
type Result struct {
	MetadataFileChecksum uint32
}
