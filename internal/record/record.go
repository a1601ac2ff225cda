// Package record defines the core data-model value the whole engine
// reconciles on: a schema-conforming value identified by a 128-bit ID and a
// monotonic version, deduplicated by keeping the highest version per ID.
package record

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/Leadrive/eventql/internal/errs"
)

// DefaultCollection is the collection tag used when a record doesn't
// specify one explicitly.
const DefaultCollection = "_default"

// ID is a 128-bit record identifier.
type ID [16]byte

func (id ID) String() string { return hex.EncodeToString(id[:]) }

// NewID returns a random 128-bit ID, primarily useful for tests and
// benchmarks that don't care about a specific key space.
func NewID() ID {
	var id ID
	_, _ = rand.Read(id[:])
	return id
}

// Version is a monotonic microsecond-wallclock timestamp.
type Version uint64

// MinValidVersion is the floor every record version must exceed; versions
// at or below it are rejected rather than silently accepted.
const MinValidVersion Version = 1_400_000_000_000_000

// NewVersion validates v against MinValidVersion before returning it as a
// Version.
func NewVersion(v uint64) (Version, error) {
	if Version(v) <= MinValidVersion {
		return 0, errs.IllegalArgument("version %d must be greater than %d", v, MinValidVersion)
	}
	return Version(v), nil
}

// Record is a schema-conforming structured value identified by ID, with a
// Version used for last-write-wins reconciliation. Collection is additive:
// it lets one partition multiplex several logical streams through its
// arenas/segments without being part of the dedup key.
type Record struct {
	ID         ID
	Version    Version
	Collection string
	Payload    []byte
}
