// Package segment defines the Segment record — the unit the Segment Store
// persists — and its byte-exact encoding, per the changelog's wire format.
package segment

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/iamNilotpal/segchangelog/pkg/ids"
	"github.com/iamNilotpal/segchangelog/pkg/serrors"
)

// Flags is a bitmask of per-segment properties.
type Flags uint8

const (
	// FlagHasRoot marks that the interval contains an id whose parent set is
	// empty within the dag.
	FlagHasRoot Flags = 1 << iota
	// FlagOnlyHead marks that the interval contains exactly one head of the
	// group.
	FlagOnlyHead
)

func (f Flags) HasRoot() bool  { return f&FlagHasRoot != 0 }
func (f Flags) OnlyHead() bool { return f&FlagOnlyHead != 0 }

// rewriteLastFlatMagic is the REWRITE_LAST_FLAT record's leading byte. It is
// chosen so it can never collide with a legal Flags byte: Flags only ever
// uses bits 0-1, so any byte with bit 7 set (0x80+) is unambiguous, and 0xF0
// additionally can't be mistaken for a small level value either, since level
// is read from a separate following byte, not this one.
const rewriteLastFlatMagic byte = 0xF0

// clearNonMasterMagic is the CLEAR_NON_MASTER record, a fixed 5-byte literal.
var clearNonMasterMagic = []byte("CLRNM")

// Segment is a contiguous id interval [Low, High] at a given Level, together
// with its flags and parent ids.
type Segment struct {
	Flags   Flags
	Level   uint8
	Low     ids.Id
	High    ids.Id
	Parents []ids.Id
}

// IsFlat reports whether the segment is a level-0 (flat) segment.
func (s Segment) IsFlat() bool { return s.Level == 0 }

// Validate checks the invariants spec.md §3/§8 require of a decoded or
// constructed segment.
func (s Segment) Validate() error {
	if s.High < s.Low {
		return serrors.NewCorruptSegmentError(nil, "low > high").
			WithOffset(0)
	}
	if !s.Low.InSameGroup(s.High) {
		return serrors.NewCorruptSegmentError(nil, "low and high span different groups")
	}
	if s.Flags.HasRoot() != (len(s.Parents) == 0) {
		return serrors.NewCorruptSegmentError(nil, "HAS_ROOT flag inconsistent with parents")
	}
	if s.Level == 0 {
		for _, p := range s.Parents {
			if p >= s.Low && p.InSameGroup(s.Low) {
				return serrors.NewCorruptSegmentError(nil, "level-0 parent not strictly below low within group")
			}
		}
	}
	return nil
}

// LevelHeadKey returns the 9-byte [level, high] key the level-head index is
// ordered on.
func LevelHeadKey(level uint8, high ids.Id) []byte {
	key := make([]byte, 9)
	key[0] = level
	binary.BigEndian.PutUint64(key[1:], uint64(high))
	return key
}

// GroupParentKey returns the 9-byte [childGroup, parentId] key the
// group-parent index is ordered on.
func GroupParentKey(childGroup ids.Group, parentId ids.Id) []byte {
	key := make([]byte, 9)
	key[0] = byte(childGroup)
	binary.BigEndian.PutUint64(key[1:], uint64(parentId))
	return key
}

// Encode appends the byte-exact record encoding of s to buf and returns the
// result:
//
//	flags(1) level(1) high(8,BE) delta(varint) parentCount(varint) parent(varint)...
func Encode(buf []byte, s Segment) []byte {
	buf = append(buf, byte(s.Flags), s.Level)
	var highBytes [8]byte
	binary.BigEndian.PutUint64(highBytes[:], uint64(s.High))
	buf = append(buf, highBytes[:]...)

	delta := uint64(s.High) - uint64(s.Low)
	buf = binary.AppendUvarint(buf, delta)
	buf = binary.AppendUvarint(buf, uint64(len(s.Parents)))
	for _, p := range s.Parents {
		buf = binary.AppendUvarint(buf, uint64(p))
	}
	return buf
}

// Decode reads one segment record from r. It returns a *serrors.CorruptSegmentError
// wrapping io errors encountered mid-record (a clean io.EOF at the very start
// of a record is returned unchanged so callers can detect end-of-log).
func Decode(r *bufio.Reader) (Segment, error) {
	var s Segment

	flagsByte, err := r.ReadByte()
	if err != nil {
		return s, err // may be io.EOF at a record boundary; propagate as-is.
	}
	if flagsByte == rewriteLastFlatMagic {
		return s, fmt.Errorf("decode: unexpected magic byte where a segment record was expected")
	}
	s.Flags = Flags(flagsByte)

	level, err := r.ReadByte()
	if err != nil {
		return s, serrors.NewCorruptSegmentError(err, "truncated level byte")
	}
	s.Level = level

	var highBytes [8]byte
	if _, err := io.ReadFull(r, highBytes[:]); err != nil {
		return s, serrors.NewCorruptSegmentError(err, "truncated high field")
	}
	s.High = ids.Id(binary.BigEndian.Uint64(highBytes[:]))

	delta, err := binary.ReadUvarint(r)
	if err != nil {
		return s, serrors.NewCorruptSegmentError(err, "truncated delta varint")
	}
	s.Low = ids.Id(uint64(s.High) - delta)

	parentCount, err := binary.ReadUvarint(r)
	if err != nil {
		return s, serrors.NewCorruptSegmentError(err, "truncated parent count varint")
	}
	s.Parents = make([]ids.Id, parentCount)
	for i := range s.Parents {
		p, err := binary.ReadUvarint(r)
		if err != nil {
			return s, serrors.NewCorruptSegmentError(err, "truncated parent varint")
		}
		s.Parents[i] = ids.Id(p)
	}

	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// RewriteLastFlatMagic and ClearNonMasterMagic are exported for the Segment
// Store's record reader/writer.
func RewriteLastFlatMagic() byte    { return rewriteLastFlatMagic }
func ClearNonMasterMagic() []byte   { return append([]byte(nil), clearNonMasterMagic...) }
func IsClearNonMaster(b []byte) bool {
	if len(b) != len(clearNonMasterMagic) {
		return false
	}
	for i := range b {
		if b[i] != clearNonMasterMagic[i] {
			return false
		}
	}
	return true
}
