package segment

import (
	"io"
	"testing"

	"github.com/Leadrive/eventql/internal/logger"
	"github.com/Leadrive/eventql/internal/record"
)

func mustVersion(t *testing.T, v uint64) record.Version {
	t.Helper()
	out, err := record.NewVersion(v)
	if err != nil {
		t.Fatalf("record.NewVersion(%d): %v", v, err)
	}
	return out
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	log := logger.New(io.Discard, logger.LevelError, "[test] ")

	recs := []record.Record{
		{ID: record.ID{1}, Version: mustVersion(t, 1_400_000_000_000_001), Collection: "c1", Payload: []byte("hello")},
		{ID: record.ID{2}, Version: mustVersion(t, 1_400_000_000_000_002), Payload: []byte("world")},
	}

	desc, err := Write(dir, "seg1", recs, 100, log)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if desc.FirstSequence != 100 || desc.LastSequence != 101 {
		t.Fatalf("unexpected sequence range: %+v", desc)
	}

	got, err := ReadAll(desc.DataPath(dir))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadAll returned %d records, want 2", len(got))
	}
	if string(got[0].Payload) != "hello" || got[0].Collection != "c1" {
		t.Fatalf("record 0 mismatch: %+v", got[0])
	}
	if got[1].Collection != record.DefaultCollection {
		t.Fatalf("record 1 collection = %q, want default", got[1].Collection)
	}

	idx, err := ReadIndex(desc.IndexPath(dir))
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if idx.Size() != 2 {
		t.Fatalf("index size = %d, want 2", idx.Size())
	}

	versions := map[record.ID]record.Version{recs[0].ID: 0, recs[1].ID: 0}
	idx.Lookup(versions)
	if versions[recs[0].ID] != recs[0].Version {
		t.Fatalf("lookup version = %d, want %d", versions[recs[0].ID], recs[0].Version)
	}
}

func TestReadAllDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	log := logger.New(io.Discard, logger.LevelError, "[test] ")

	recs := []record.Record{{ID: record.ID{9}, Version: mustVersion(t, 1_400_000_000_000_009), Payload: []byte("x")}}
	desc, err := Write(dir, "seg2", recs, 1, log)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	path := desc.DataPath(dir)
	data, err := readFileForTest(path)
	if err != nil {
		t.Fatalf("readFileForTest: %v", err)
	}
	data[len(data)-1] = 0 // flip the verification byte
	if err := writeFileForTest(path, data); err != nil {
		t.Fatalf("writeFileForTest: %v", err)
	}

	if _, err := ReadAll(path); err == nil {
		t.Fatal("ReadAll succeeded on corrupted segment, want error")
	}
}
