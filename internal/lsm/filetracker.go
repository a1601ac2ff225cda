package lsm

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/Leadrive/eventql/internal/logger"
	"github.com/Leadrive/eventql/internal/segment"
)

const pendingDeleteFile = "pending_delete.json"

// FileTracker owns deferred deletion of segment files no longer referenced
// by a published snapshot. The pending list is itself persisted via
// temp-file-then-rename so a crash mid-reap doesn't leak files — the same
// durable-bookkeeping shape a WAL trimmer/rotator pair would use.
//
// Deletion is refcounted: a filename submitted via Submit is reaped once
// no caller still holds it open via Acquire/Release. A Writer's own
// methods run under compactionMu/splitMu/writeMu, which keep them from
// stepping on each other's published-segment reads, but Split's full scan
// (findMedianValue) reads segment data files from a snapshot captured
// outside those locks — a concurrent Compact can obsolete and submit
// those same filenames for deletion while the scan is still reading them.
// Acquire/Release closes that window.
type FileTracker struct {
	mu      sync.Mutex
	dir     string
	pending map[string]struct{}
	refs    map[string]int
	logger  *logger.Logger
}

func NewFileTracker(dir string, log *logger.Logger) *FileTracker {
	return &FileTracker{
		dir:     dir,
		pending: make(map[string]struct{}),
		refs:    make(map[string]int),
		logger:  log,
	}
}

// Acquire registers a live reference to each of the given segment base
// filenames, deferring any pending reap until a matching Release drops the
// count back to zero. Callers that read segment data files from a
// snapshot captured outside the writer's locks must bracket the read with
// Acquire/Release.
func (t *FileTracker) Acquire(filenames []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, f := range filenames {
		t.refs[f]++
	}
}

// Release drops a reference taken by Acquire, reaping the filename now if
// it was already pending deletion and this was the last outstanding
// reference.
func (t *FileTracker) Release(filenames []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, f := range filenames {
		if t.refs[f] > 0 {
			t.refs[f]--
			if t.refs[f] == 0 {
				delete(t.refs, f)
			}
		}
	}
	if err := t.reapLocked(); err != nil {
		t.logger.Warn("file tracker: reap after release failed: %v", err)
	}
}

// Load restores the pending-delete list from disk, e.g. at node startup.
func (t *FileTracker) Load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(t.dir, pendingDeleteFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	for _, n := range names {
		t.pending[n] = struct{}{}
	}
	return nil
}

func (t *FileTracker) persistLocked() error {
	names := make([]string, 0, len(t.pending))
	for n := range t.pending {
		names = append(names, n)
	}
	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(t.dir, "pending_delete-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(t.dir, pendingDeleteFile))
}

// Submit marks segment base filenames (without .cst/.idx extension) as no
// longer referenced by the published snapshot, persists the updated list,
// then reaps whichever of them have no outstanding Acquire — any name
// still held by an in-flight reader is left pending and reaped later, by
// that reader's Release.
func (t *FileTracker) Submit(filenames []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, f := range filenames {
		t.pending[f] = struct{}{}
	}
	if err := t.persistLocked(); err != nil {
		return err
	}
	return t.reapLocked()
}

func (t *FileTracker) reapLocked() error {
	for name := range t.pending {
		if t.refs[name] > 0 {
			continue
		}
		dataPath := filepath.Join(t.dir, name+segment.DataExt)
		idxPath := filepath.Join(t.dir, name+segment.IndexExt)
		if err := os.Remove(dataPath); err != nil && !os.IsNotExist(err) {
			t.logger.Warn("file tracker: failed to remove %s: %v", dataPath, err)
			continue
		}
		if err := os.Remove(idxPath); err != nil && !os.IsNotExist(err) {
			t.logger.Warn("file tracker: failed to remove %s: %v", idxPath, err)
		}
		delete(t.pending, name)
		t.logger.Debug("file tracker: reaped segment %s", name)
	}
	return t.persistLocked()
}

// Pending returns the current pending-delete filenames, for tests.
func (t *FileTracker) Pending() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.pending))
	for n := range t.pending {
		out = append(out, n)
	}
	return out
}
