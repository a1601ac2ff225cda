package segment

import (
	"encoding/binary"
	"hash/crc32"
	"os"

	"github.com/Leadrive/eventql/internal/errs"
	"github.com/Leadrive/eventql/internal/record"
)

// Index is a loaded skip index: each record ID's newest known version
// within one segment.
type Index struct {
	versions map[record.ID]record.Version
}

// ReadIndex loads a segment's .idx file in full, the same
// pattern of reading small auxiliary files wholesale rather than streaming.
func ReadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.WrapIO(err, "read segment index")
	}
	if len(data)%24 != 0 {
		return nil, errs.IOError("segment index %s has truncated entry", path)
	}

	idx := &Index{versions: make(map[record.ID]record.Version, len(data)/24)}
	for off := 0; off < len(data); off += 24 {
		var id record.ID
		copy(id[:], data[off:off+16])
		v := record.Version(binary.BigEndian.Uint64(data[off+16 : off+24]))
		if existing, ok := idx.versions[id]; !ok || v > existing {
			idx.versions[id] = v
		}
	}
	return idx, nil
}

// Lookup updates versions[id] to the max of its current value and this
// index's version, for every id already present in versions — the
// monotonic merge the dedup lookup path performs across arenas and
// segments.
func (idx *Index) Lookup(versions map[record.ID]record.Version) {
	for id, current := range versions {
		if v, ok := idx.versions[id]; ok && v > current {
			versions[id] = v
		}
	}
}

// Size reports how many distinct record IDs this index covers.
func (idx *Index) Size() int { return len(idx.versions) }

// ReadAll decodes every record in a segment's data file, validating length,
// CRC32, and the verification byte the writer stamped on each record,
// does, classifying a truncated final record as corruption rather than a
// clean EOF.
func ReadAll(path string) ([]record.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.WrapIO(err, "read segment data file")
	}

	var out []record.Record
	off := 0
	for off < len(data) {
		r, n, err := decodeRecordAt(data[off:])
		if err != nil {
			return nil, err
		}
		out = append(out, r)
		off += n
	}
	return out, nil
}

func decodeRecordAt(data []byte) (record.Record, int, error) {
	if len(data) < 4 {
		return record.Record{}, 0, errs.IOError("truncated segment record length prefix")
	}
	bodyLen := int(binary.BigEndian.Uint32(data[0:4]))
	total := 4 + bodyLen + 4 + 1
	if total > len(data) {
		return record.Record{}, 0, errs.IOError("truncated segment record body")
	}

	body := data[4 : 4+bodyLen]
	wantCRC := binary.BigEndian.Uint32(data[4+bodyLen : 4+bodyLen+4])
	verification := data[4+bodyLen+4]

	if verification != verificationByte {
		return record.Record{}, 0, errs.IOError("segment record missing verification byte")
	}
	if got := crc32.ChecksumIEEE(body); got != wantCRC {
		return record.Record{}, 0, errs.IOError("segment record checksum mismatch")
	}

	if len(body) < 26 {
		return record.Record{}, 0, errs.IOError("segment record header truncated")
	}

	var r record.Record
	off := 0
	copy(r.ID[:], body[off:off+16])
	off += 16
	r.Version = record.Version(binary.BigEndian.Uint64(body[off : off+8]))
	off += 8
	collLen := int(binary.BigEndian.Uint16(body[off : off+2]))
	off += 2
	if off+collLen > len(body) {
		return record.Record{}, 0, errs.IOError("segment record collection name truncated")
	}
	r.Collection = string(body[off : off+collLen])
	off += collLen
	if off+4 > len(body) {
		return record.Record{}, 0, errs.IOError("segment record payload length truncated")
	}
	payloadLen := int(binary.BigEndian.Uint32(body[off : off+4]))
	off += 4
	if off+payloadLen != len(body) {
		return record.Record{}, 0, errs.IOError("segment record payload length mismatch")
	}
	r.Payload = append([]byte(nil), body[off:off+payloadLen]...)

	return r, total, nil
}
