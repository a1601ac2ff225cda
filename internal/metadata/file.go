package metadata

import (
	"encoding/json"
	"hash/crc32"
)

// Entry maps one partition to its keyrange lower bound and its current
// server set. The upper bound is implicit: the next entry's begin, or
// unbounded for the last entry.
type Entry struct {
	PartitionID   PartitionID
	KeyrangeBegin []byte
	ServerSet     []string
}

// File is the metadata-server-side table of partitions for one
// (namespace, table), versioned by TxnID.
type File struct {
	TxnID   TxnID
	Entries []Entry
}

// Checksum computes a deterministic CRC32 over the file's JSON encoding.
// Divergent checksums across metadata servers after applying the same
// operation signal metadata corruption.
func (f *File) Checksum() (uint32, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return 0, err
	}
	return crc32.ChecksumIEEE(data), nil
}
