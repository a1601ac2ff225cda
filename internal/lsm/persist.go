package lsm

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const snapshotFileName = "partition.snapshot"

type snapshotDTO struct {
	PartitionID        string
	KeyrangeBegin      []byte
	KeyrangeEnd        []byte
	LSMSequence        uint64
	Segments           []segmentDTO
	Lifecycle          LifecycleState
	IsSplitting        bool
	SplitPartitionIDs  []string
	LastMetadataTxnID  string
	LastMetadataTxnSeq uint64
}

type segmentDTO struct {
	Filename      string
	FirstSequence uint64
	LastSequence  uint64
	SizeBytes     uint64
	HasSkipIndex  bool
}

// writeToDisk durably persists snap's metadata: write a temp file, fsync
// it, rename it over the published snapshot file, then fsync the
// containing directory. This is the conservative choice from the Open
// Questions this engine resolved — fsync both the file and the directory
// on every publish, favoring durability over latency.
func writeToDisk(dir string, snap *Snapshot) error {
	dto := toDTO(snap)
	data, err := json.Marshal(dto)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "partition.snapshot-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	finalPath := filepath.Join(dir, snapshotFileName)
	if err := os.Rename(tmpName, finalPath); err != nil {
		return err
	}

	dirHandle, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer dirHandle.Close()
	return dirHandle.Sync()
}

func toDTO(snap *Snapshot) snapshotDTO {
	dto := snapshotDTO{
		PartitionID:        snap.PartitionID.String(),
		KeyrangeBegin:      snap.Keyrange.Begin,
		KeyrangeEnd:        snap.Keyrange.End,
		LSMSequence:        snap.LSMSequence,
		Lifecycle:          snap.Lifecycle,
		IsSplitting:        snap.IsSplitting,
		LastMetadataTxnID:  snap.LastMetadataTxnID.String(),
		LastMetadataTxnSeq: snap.LastMetadataTxnSeq,
	}
	for _, s := range snap.Segments {
		dto.Segments = append(dto.Segments, segmentDTO{
			Filename:      s.Filename,
			FirstSequence: s.FirstSequence,
			LastSequence:  s.LastSequence,
			SizeBytes:     s.SizeBytes,
			HasSkipIndex:  s.HasSkipIndex,
		})
	}
	for _, id := range snap.SplitPartitionIDs {
		dto.SplitPartitionIDs = append(dto.SplitPartitionIDs, id.String())
	}
	return dto
}
