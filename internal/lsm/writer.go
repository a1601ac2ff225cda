package lsm

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/Leadrive/eventql/internal/allocator"
	"github.com/Leadrive/eventql/internal/config"
	"github.com/Leadrive/eventql/internal/coordinator"
	"github.com/Leadrive/eventql/internal/directory"
	"github.com/Leadrive/eventql/internal/logger"
	"github.com/Leadrive/eventql/internal/metadata"
	"github.com/Leadrive/eventql/internal/skipindex"
)

// Writer coordinates insert, commit, compaction, and split for one
// partition. It owns the partition's snapshot cell and the four
// non-overlapping locks the algorithms below acquire in isolation from
// each other: writeMu (snapshot read-modify-publish), commitMu (serializes
// commits around the flush I/O), compactionMu and splitMu (try-locks
// bounding one attempt at a time).
type Writer struct {
	cell atomic.Pointer[Snapshot]

	writeMu      sync.Mutex
	commitMu     sync.Mutex
	compactionMu sync.Mutex
	splitMu      sync.Mutex

	frozen atomic.Bool

	dir        string
	table      config.TableConfig
	strategy   Strategy
	skipCache  *skipindex.Cache
	tracker    *FileTracker
	coord      *coordinator.Coordinator
	configDir  directory.ConfigDirectory
	alloc      allocator.ServerAllocator
	logger     *logger.Logger
}

// Deps bundles a Writer's process-wide collaborators, letting a node share
// one skip-index cache, file tracker, and coordinator client across every
// partition it hosts.
type Deps struct {
	SkipCache *skipindex.Cache
	Tracker   *FileTracker
	Coord     *coordinator.Coordinator
	Directory directory.ConfigDirectory
	Allocator allocator.ServerAllocator
	Logger    *logger.Logger
}

// NewWriter opens a partition at dir with the given keyrange and table
// configuration, starting fresh in the SERVE lifecycle with empty arenas.
func NewWriter(dir string, partitionID metadata.PartitionID, kr Keyrange, table config.TableConfig, deps Deps) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	w := &Writer{
		dir:       dir,
		table:     table,
		strategy:  NewSimpleStrategy(config.UrgentCompactionSegmentThreshold, table.MaxLSMSegments, deps.Logger),
		skipCache: deps.SkipCache,
		tracker:   deps.Tracker,
		coord:     deps.Coord,
		configDir: deps.Directory,
		alloc:     deps.Allocator,
		logger:    deps.Logger,
	}
	snap := &Snapshot{
		PartitionID: partitionID,
		Keyrange:    kr,
		Lifecycle:   LifecycleServe,
		HeadArena:   NewArena(),
		arenaUUID:   newPartitionUUID(),
	}
	w.cell.Store(snap)
	return w, nil
}

// Snapshot returns the current published snapshot. Callers must treat it
// as read-only; the writer replaces it wholesale, never mutates it.
func (w *Writer) Snapshot() *Snapshot { return w.cell.Load() }

// Freeze marks the writer read-only; subsequent inserts fail with
// IllegalState, the first step of unloading a partition.
func (w *Writer) Freeze() { w.frozen.Store(true) }

func (w *Writer) isFrozen() bool { return w.frozen.Load() }

func (w *Writer) publish(snap *Snapshot) { w.cell.Store(snap) }
