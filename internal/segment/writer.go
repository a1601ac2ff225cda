package segment

import (
	"encoding/binary"
	"hash/crc32"
	"os"
	"path/filepath"

	"github.com/Leadrive/eventql/internal/errs"
	"github.com/Leadrive/eventql/internal/logger"
	"github.com/Leadrive/eventql/internal/record"
)

// Write serializes recs to a new data file and its companion skip index,
// fsyncing each exactly once at the end — the same single-fsync-per-write
// discipline throughout. firstSequence is the
// sequence number assigned to the first record; LastSequence in the
// returned Descriptor is firstSequence+len(recs)-1, or firstSequence when
// recs is empty.
func Write(dir, filename string, recs []record.Record, firstSequence uint64, log *logger.Logger) (Descriptor, error) {
	dataPath := filepath.Join(dir, filename+DataExt)
	idxPath := filepath.Join(dir, filename+IndexExt)

	f, err := os.OpenFile(dataPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return Descriptor{}, errs.WrapIO(err, "create segment data file")
	}

	var size uint64
	for _, r := range recs {
		buf, err := encodeRecord(r)
		if err != nil {
			f.Close()
			return Descriptor{}, err
		}
		n, err := f.Write(buf)
		if err != nil {
			f.Close()
			return Descriptor{}, errs.WrapIO(err, "write segment record")
		}
		size += uint64(n)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return Descriptor{}, errs.WrapIO(err, "fsync segment data file")
	}
	if err := f.Close(); err != nil {
		return Descriptor{}, errs.WrapIO(err, "close segment data file")
	}

	if err := writeIndex(idxPath, recs); err != nil {
		return Descriptor{}, err
	}

	log.Debug("segment writer: wrote %s with %d records (%d bytes)", filename, len(recs), size)

	desc := Descriptor{
		Filename:      filename,
		FirstSequence: firstSequence,
		SizeBytes:     size,
		HasSkipIndex:  true,
	}
	if len(recs) > 0 {
		desc.LastSequence = firstSequence + uint64(len(recs)) - 1
	} else {
		desc.LastSequence = firstSequence
	}
	return desc, nil
}

// encodeRecord frames one record as:
//
//	id[16] | version[8] | collLen[2] | collection | payloadLen[4] | payload | crc32[4] | verification[1]
//
// a length-prefixed, CRC-checked, verification-byte
// terminated DataFile record shape.
func encodeRecord(r record.Record) ([]byte, error) {
	if len(r.Payload) > maxPayloadSize {
		return nil, errs.IllegalArgument("payload size %d exceeds max %d", len(r.Payload), maxPayloadSize)
	}
	coll := r.Collection
	if coll == "" {
		coll = record.DefaultCollection
	}

	headerLen := 16 + 8 + 2 + len(coll) + 4
	body := make([]byte, headerLen+len(r.Payload))
	off := 0
	copy(body[off:], r.ID[:])
	off += 16
	binary.BigEndian.PutUint64(body[off:], uint64(r.Version))
	off += 8
	binary.BigEndian.PutUint16(body[off:], uint16(len(coll)))
	off += 2
	copy(body[off:], coll)
	off += len(coll)
	binary.BigEndian.PutUint32(body[off:], uint32(len(r.Payload)))
	off += 4
	copy(body[off:], r.Payload)

	crc := crc32.ChecksumIEEE(body)

	out := make([]byte, 4+len(body)+4+1)
	binary.BigEndian.PutUint32(out[0:4], uint32(len(body)))
	copy(out[4:], body)
	binary.BigEndian.PutUint32(out[4+len(body):], crc)
	out[len(out)-1] = verificationByte
	return out, nil
}

// writeIndex writes raw id[16]+version[8] pairs, one per record, fsyncing
// once — the skip index this segment's Descriptor.HasSkipIndex advertises.
func writeIndex(path string, recs []record.Record) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return errs.WrapIO(err, "create segment index file")
	}
	buf := make([]byte, 24)
	for _, r := range recs {
		copy(buf[:16], r.ID[:])
		binary.BigEndian.PutUint64(buf[16:], uint64(r.Version))
		if _, err := f.Write(buf); err != nil {
			f.Close()
			return errs.WrapIO(err, "write segment index entry")
		}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errs.WrapIO(err, "fsync segment index file")
	}
	return f.Close()
}
