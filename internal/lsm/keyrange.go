package lsm

import "bytes"

// Keyrange is a half-open [Begin, End) range over opaque byte-string keys.
// An empty End means unbounded above.
type Keyrange struct {
	Begin []byte
	End   []byte
}

// Contains reports whether key falls within the range.
func (k Keyrange) Contains(key []byte) bool {
	if bytes.Compare(key, k.Begin) < 0 {
		return false
	}
	if len(k.End) > 0 && bytes.Compare(key, k.End) >= 0 {
		return false
	}
	return true
}

// Overlaps reports whether k and other share any keys.
func (k Keyrange) Overlaps(other Keyrange) bool {
	if len(k.End) > 0 && bytes.Compare(other.Begin, k.End) >= 0 {
		return false
	}
	if len(other.End) > 0 && bytes.Compare(k.Begin, other.End) >= 0 {
		return false
	}
	return true
}

// Split divides k at point into a low half [Begin, point) and a high half
// [point, End).
func (k Keyrange) Split(point []byte) (low, high Keyrange) {
	return Keyrange{Begin: k.Begin, End: point}, Keyrange{Begin: point, End: k.End}
}
