// Package config defines node and table configuration, the same shape and
// DefaultConfig() convention common across this cluster's services,
// adapted from a single-process document-store config tree to a
// per-table, per-node tree this engine's partitions and metadata servers
// read from.
package config

import (
	"time"

	"github.com/Leadrive/eventql/internal/metadata"
)

// Tuning defaults for knobs with no single cluster-wide right answer.
const (
	DefaultMaxLSMSegments            = 32
	DefaultMaxArenaRecords           = 131072
	DefaultSplitThresholdBytes       = 512 * 1024 * 1024
	DefaultReplicationFactor         = 3
	UrgentCompactionSegmentThreshold = 16
	DefaultSkipIndexCacheSize        = 4096
	DefaultCompactionSweepInterval   = 30 * time.Second
	DefaultDispatcherWorkers         = 4
)

// MemoryConfig bounds buffer-pool and per-partition memory use, mirroring
// a document-store's MemoryConfig fields.
type MemoryConfig struct {
	GlobalCapacityMB    int
	PerPartitionLimitMB int
}

// NodeConfig is the top-level configuration for one storage node process.
type NodeConfig struct {
	DataDir  string
	ServerID string
	HTTPAddr string
	Memory   MemoryConfig
}

// DefaultNodeConfig returns sane single-node defaults, the same pattern as
// DefaultConfig() elsewhere in this cluster.
func DefaultNodeConfig() *NodeConfig {
	return &NodeConfig{
		DataDir:  "./data",
		ServerID: "node-1",
		HTTPAddr: ":8080",
		Memory: MemoryConfig{
			GlobalCapacityMB:    1024,
			PerPartitionLimitMB: 64,
		},
	}
}

// TableConfig is the per-(namespace, table) tuning and metadata-placement
// record a partition writer and the coordinator both consult.
type TableConfig struct {
	Namespace                    string
	Table                        string
	MaxLSMSegments               int
	MaxArenaRecords              int
	PartitionSplitThresholdBytes uint64
	ReplicationFactor            int
	FinalizeSplitImmediately     bool
	MetadataTxnID                metadata.TxnID
	MetadataTxnSeq               uint64
	MetadataServers              []string
}

// DefaultTableConfig returns a TableConfig with this engine's tuning
// defaults applied: MAX_LSM_SEGMENTS=32, MAX_ARENA_RECORDS=131072.
func DefaultTableConfig(namespace, table string) *TableConfig {
	return &TableConfig{
		Namespace:                    namespace,
		Table:                        table,
		MaxLSMSegments:               DefaultMaxLSMSegments,
		MaxArenaRecords:              DefaultMaxArenaRecords,
		PartitionSplitThresholdBytes: DefaultSplitThresholdBytes,
		ReplicationFactor:            DefaultReplicationFactor,
		FinalizeSplitImmediately:     true,
		MetadataTxnID:                metadata.NewTxnID(),
	}
}
