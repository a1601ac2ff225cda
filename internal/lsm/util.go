package lsm

import (
	"crypto/rand"
	"encoding/hex"
)

// randomSegmentName returns a random 64-bit hex filename, the naming rule
// new segments (compaction output included) are assigned.
func randomSegmentName() string {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}

func newPartitionUUID() string {
	var buf [16]byte
	_, _ = rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}
