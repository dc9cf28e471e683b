package segstore

import (
	"bytes"
	"encoding/binary"

	"github.com/iamNilotpal/segchangelog/pkg/ids"
	"github.com/iamNilotpal/segchangelog/pkg/segment"
	"github.com/iamNilotpal/segchangelog/pkg/serrors"
	"go.etcd.io/bbolt"
)

// MaxLevel returns the highest segment level the store currently holds.
func (s *Store) MaxLevel() uint8 {
	return uint8(s.maxLevel.Load())
}

// NextFreeId returns the next id the group would assign, including any ids
// reserved by an in-flight build that has not yet been persisted. For this
// store, persisted and in-flight are the same thing: the snapshot is
// advanced synchronously inside InsertSegment, so NextFreeId and
// NextFreeIdWithoutDirty always agree; no caller in this module uses the
// latter.
func (s *Store) NextFreeId(group ids.Group) ids.Id {
	v, ok := s.nextFree.Load(group)
	if !ok {
		return group.MinId()
	}
	return v.(ids.Id)
}

// NextFreeIdWithoutDirty returns the same snapshot as NextFreeId. It exists
// as a distinct method so callers building against it read the same name
// spec.md's NextFreeIdWithoutDirty operation uses.
func (s *Store) NextFreeIdWithoutDirty(group ids.Group) ids.Id {
	return s.NextFreeId(group)
}

// FindSegmentByHeadAndLevel looks up the segment at the given level whose
// high id is exactly head.
func (s *Store) FindSegmentByHeadAndLevel(head ids.Id, level uint8) (segment.Segment, bool, error) {
	var offset int64
	var found bool

	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketLevelHead).Get(segment.LevelHeadKey(level, head))
		if v == nil {
			return nil
		}
		offset, found = decodeOffset(v), true
		return nil
	})
	if err != nil || !found {
		return segment.Segment{}, false, err
	}

	seg, err := s.readSegmentAt(offset)
	return seg, err == nil, err
}

// FindFlatSegmentIncludingId returns the flat segment whose [low, high]
// interval contains id, scanning the level-head index forward from id's
// group-matching position since flat segments partition each group with no
// gaps (invariant 1 in spec.md §8).
func (s *Store) FindFlatSegmentIncludingId(id ids.Id) (segment.Segment, bool, error) {
	var (
		found  bool
		offset int64
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketLevelHead).Cursor()
		target := segment.LevelHeadKey(0, id)

		for k, v := c.Seek(target); k != nil && k[0] == 0; k, v = c.Next() {
			high := ids.Id(binary.BigEndian.Uint64(k[1:]))
			if high.Group() != id.Group() {
				break
			}
			if high >= id {
				offset, found = decodeOffset(v), true
				return nil
			}
		}
		return nil
	})
	if err != nil || !found {
		return segment.Segment{}, false, err
	}

	seg, err := s.readSegmentAt(offset)
	if err != nil {
		return segment.Segment{}, false, err
	}
	if seg.Low > id || id > seg.High {
		return segment.Segment{}, false, nil
	}
	return seg, true, nil
}

// IterSegmentsAscending calls fn for every segment at the given level, in
// ascending id order, until fn returns false or every segment has been
// visited.
func (s *Store) IterSegmentsAscending(level uint8, fn func(segment.Segment) bool) error {
	offsets, err := s.collectOffsets(func(c *bbolt.Cursor) ([]int64, error) {
		var out []int64
		for k, v := c.Seek([]byte{level}); k != nil && k[0] == level; k, v = c.Next() {
			out = append(out, decodeOffset(v))
		}
		return out, nil
	})
	if err != nil {
		return err
	}
	return s.visitOffsets(offsets, fn)
}

// IterSegmentsDescending calls fn for every segment at the given level, in
// descending id order, until fn returns false or every segment has been
// visited.
func (s *Store) IterSegmentsDescending(level uint8, fn func(segment.Segment) bool) error {
	offsets, err := s.collectOffsets(func(c *bbolt.Cursor) ([]int64, error) {
		var out []int64
		var k, v []byte
		if level == 255 {
			k, v = c.Last()
		} else {
			sk, _ := c.Seek([]byte{level + 1})
			if sk == nil {
				k, v = c.Last()
			} else {
				k, v = c.Prev()
			}
		}
		for k != nil && k[0] == level {
			out = append(out, decodeOffset(v))
			k, v = c.Prev()
		}
		return out, nil
	})
	if err != nil {
		return err
	}
	return s.visitOffsets(offsets, fn)
}

// collectOffsets runs scan against a live bbolt cursor and returns the
// offsets it collects. Offsets are materialized before any log file reads
// happen, so the read-only bbolt transaction is held only briefly.
func (s *Store) collectOffsets(scan func(*bbolt.Cursor) ([]int64, error)) ([]int64, error) {
	var offsets []int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		out, err := scan(tx.Bucket(bucketLevelHead).Cursor())
		offsets = out
		return err
	})
	return offsets, err
}

func (s *Store) visitOffsets(offsets []int64, fn func(segment.Segment) bool) error {
	for _, off := range offsets {
		seg, err := s.readSegmentAt(off)
		if err != nil {
			return err
		}
		if !fn(seg) {
			return nil
		}
	}
	return nil
}

// IterFlatSegmentsWithParent calls fn, in insertion order, for every flat
// segment whose parent set contains parent within childGroup.
func (s *Store) IterFlatSegmentsWithParent(childGroup ids.Group, parent ids.Id, fn func(low ids.Id) bool) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketGroupParent).Get(segment.GroupParentKey(childGroup, parent))
		for _, low := range decodeChildLows(v) {
			if !fn(low) {
				return nil
			}
		}
		return nil
	})
}

// IterMasterFlatSegmentsWithParentSpan calls fn for every MASTER flat
// segment whose parent set contains an id within [lo, hi].
func (s *Store) IterMasterFlatSegmentsWithParentSpan(lo, hi ids.Id, fn func(low ids.Id) bool) error {
	if lo.Group() != ids.MASTER || hi.Group() != ids.MASTER {
		return serrors.NewGroupViolationError(lo.Group().String(), "iter_master_flat_segments_with_parent_span",
			"span must lie entirely within the MASTER group")
	}
	return s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketGroupParent).Cursor()
		low := segment.GroupParentKey(ids.MASTER, lo)
		high := segment.GroupParentKey(ids.MASTER, hi)

		for k, v := c.Seek(low); k != nil && bytes.Compare(k, high) <= 0; k, v = c.Next() {
			for _, childLow := range decodeChildLows(v) {
				if !fn(childLow) {
					return nil
				}
			}
		}
		return nil
	})
}
