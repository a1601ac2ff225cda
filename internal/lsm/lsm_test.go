package lsm

import (
	"io"
	"testing"

	"github.com/Leadrive/eventql/internal/config"
	"github.com/Leadrive/eventql/internal/logger"
	"github.com/Leadrive/eventql/internal/metadata"
	"github.com/Leadrive/eventql/internal/record"
	"github.com/Leadrive/eventql/internal/skipindex"
)

func testLogger() *logger.Logger {
	return logger.New(io.Discard, logger.LevelError, "[test] ")
}

func mustVersion(t *testing.T, v uint64) record.Version {
	t.Helper()
	out, err := record.NewVersion(v)
	if err != nil {
		t.Fatalf("record.NewVersion(%d): %v", v, err)
	}
	return out
}

// newTestWriter opens a writer over a fresh temp directory with the given
// table config. With defaultTestTable the writer never triggers commit or
// split on its own (and compaction only past 16 segments), so tests can
// drive those algorithms explicitly.
func newTestWriter(t *testing.T, table *config.TableConfig) *Writer {
	t.Helper()
	dir := t.TempDir()
	log := testLogger()

	cache, err := skipindex.New(64)
	if err != nil {
		t.Fatalf("skipindex.New: %v", err)
	}
	tracker := NewFileTracker(dir, log)

	w, err := NewWriter(dir, metadata.NewPartitionID(), Keyrange{}, *table, Deps{
		SkipCache: cache,
		Tracker:   tracker,
		Logger:    log,
	})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	return w
}

func defaultTestTable() *config.TableConfig {
	table := config.DefaultTableConfig("ns", "t")
	// keep compaction/split out of the way unless a test wants them
	table.MaxLSMSegments = 32
	table.MaxArenaRecords = 1 << 30
	table.PartitionSplitThresholdBytes = 1 << 40
	return table
}

func idOf(b byte) record.ID {
	var id record.ID
	id[0] = b
	return id
}
