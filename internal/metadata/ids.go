// Package metadata defines the distributed metadata file, its operations,
// and the discovery request/response pair partitions use to resynchronize
// against it.
package metadata

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
)

// PartitionID, TxnID, and PlacementID are all SHA1 digests of 32 random
// bytes: 160 bits is comfortably collision-free for a cluster's lifetime
// without needing a coordinated allocator.
type PartitionID [20]byte
type TxnID [20]byte
type PlacementID [20]byte

func newID() [20]byte {
	var seed [32]byte
	_, _ = rand.Read(seed[:])
	return sha1.Sum(seed[:])
}

func NewPartitionID() PartitionID { return PartitionID(newID()) }
func NewTxnID() TxnID             { return TxnID(newID()) }
func NewPlacementID() PlacementID { return PlacementID(newID()) }

func (id PartitionID) String() string { return hex.EncodeToString(id[:]) }
func (id TxnID) String() string       { return hex.EncodeToString(id[:]) }
func (id PlacementID) String() string { return hex.EncodeToString(id[:]) }

func (id PartitionID) IsZero() bool { return id == PartitionID{} }
func (id TxnID) IsZero() bool       { return id == TxnID{} }
