package segstore

import (
	"context"
	"encoding/binary"

	"github.com/iamNilotpal/segchangelog/pkg/ids"
	"github.com/iamNilotpal/segchangelog/pkg/segment"
	"github.com/iamNilotpal/segchangelog/pkg/serrors"
	"go.etcd.io/bbolt"
)

// InsertSegment appends seg to the log and updates the secondary indexes.
// Flat (level-0) segments are first tried against the rewrite-last-flat
// merge optimization: if seg continues the group's last flat segment by
// exactly one id with no parent other than that segment's high, the merge
// replaces the two segments with one via a REWRITE_LAST_FLAT record instead
// of appending a second level-head entry. Higher-level segments are always
// appended plain; they are rebuildable cache, not canonical data.
func (s *Store) InsertSegment(ctx context.Context, seg segment.Segment) error {
	if err := seg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if seg.IsFlat() {
		last, ok, err := s.lastFlatSegmentLocked(seg.Low.Group())
		if err != nil {
			return err
		}
		if ok && mergeable(last, seg) {
			return s.appendRewriteLastFlatLocked(last, merge(last, seg))
		}
	}

	return s.appendSegmentLocked(seg)
}

// mergeable reports whether new continues last by exactly one id with a
// single parent edge back to last's high. This is the stricter of the two
// readings of the mergeability predicate: it requires the new segment's own
// parent set to be exactly {last.High}, rather than merely requiring the
// post-merge parent set to look consistent, so a merge can never silently
// drop a provenance edge belonging to some other parent.
func mergeable(last, next segment.Segment) bool {
	if next.Level != 0 || last.Level != 0 {
		return false
	}
	if next.Low.Group() != last.Low.Group() {
		return false
	}
	if last.High.Next() != next.Low {
		return false
	}
	if len(next.Parents) != 1 || next.Parents[0] != last.High {
		return false
	}
	return true
}

// merge combines last and next into the single flat segment the rewrite
// installs in last's place. The merged interval keeps last's low and parent
// set (next's only parent, last.High, becomes an internal id) and extends
// to next's high.
func merge(last, next segment.Segment) segment.Segment {
	return segment.Segment{
		Flags:   (last.Flags &^ segment.FlagOnlyHead) | (next.Flags & segment.FlagOnlyHead),
		Level:   0,
		Low:     last.Low,
		High:    next.High,
		Parents: last.Parents,
	}
}

// rewriteLastFlatHeaderLen is the byte length of the REWRITE_LAST_FLAT
// record's fixed header (magic + level + previous high), i.e. everything
// before the embedded replacement segment's own encoding begins.
const rewriteLastFlatHeaderLen = 10

// appendRewriteLastFlatLocked appends a REWRITE_LAST_FLAT record and applies
// its index side-effect: the previous level-head entry is replaced by the
// merged segment. The group-parent index needs no change, since the merged
// segment's low and parent set are identical to the previous segment's.
func (s *Store) appendRewriteLastFlatLocked(previous, merged segment.Segment) error {
	recordStart := s.logSize
	buf := encodeRewriteLastFlat(nil, previous.High, merged)
	if err := s.writeLocked(buf); err != nil {
		return err
	}
	replacementOffset := recordStart + rewriteLastFlatHeaderLen

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketLevelHead)
		if err := bucket.Delete(segment.LevelHeadKey(0, previous.High)); err != nil {
			return err
		}
		if err := bucket.Put(segment.LevelHeadKey(0, merged.High), encodeOffset(replacementOffset)); err != nil {
			return err
		}
		return s.advanceNextFreeTx(tx, merged)
	})
	if err != nil {
		return serrors.NewBugError(err, "failed to apply rewrite-last-flat index update")
	}

	s.metrics.SegmentRewritesTotal.Inc()
	return nil
}

// appendSegmentLocked appends a plain segment record and indexes it under
// both the level-head and group-parent buckets.
func (s *Store) appendSegmentLocked(seg segment.Segment) error {
	recordStart := s.logSize
	buf := segment.Encode(nil, seg)
	if err := s.writeLocked(buf); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return s.indexSegmentTx(tx, seg, recordStart)
	})
	if err != nil {
		return serrors.NewBugError(err, "failed to index appended segment")
	}

	s.metrics.SegmentAppendsTotal.Inc()
	return nil
}

// writeLocked appends buf to the log and fsyncs it before returning, so a
// successful InsertSegment call is durable against a crash immediately
// after. Callers must hold s.mu.
func (s *Store) writeLocked(buf []byte) error {
	n, err := s.logFile.Write(buf)
	if err != nil {
		return serrors.NewBugError(err, "failed to append to segment log")
	}
	if err := s.logFile.Sync(); err != nil {
		return serrors.NewBugError(err, "failed to fsync segment log")
	}
	s.logSize += int64(n)
	return nil
}

// indexSegmentTx writes seg's level-head and group-parent index entries and
// advances the store's level and next-free-id bookkeeping. It is shared by
// InsertSegment and log replay. offset is seg's byte position in the log.
func (s *Store) indexSegmentTx(tx *bbolt.Tx, seg segment.Segment, offset int64) error {
	if err := tx.Bucket(bucketLevelHead).Put(segment.LevelHeadKey(seg.Level, seg.High), encodeOffset(offset)); err != nil {
		return err
	}

	if seg.IsFlat() {
		group := seg.Low.Group()
		bucket := tx.Bucket(bucketGroupParent)
		for _, parent := range seg.Parents {
			key := segment.GroupParentKey(group, parent)
			existing := bucket.Get(key)
			appended := appendChildLow(existing, seg.Low)
			if err := bucket.Put(key, appended); err != nil {
				return err
			}
		}
	}

	if int64(seg.Level) > s.maxLevel.Load() {
		s.maxLevel.Store(int64(seg.Level))
		var lvl [8]byte
		binary.BigEndian.PutUint64(lvl[:], uint64(seg.Level))
		if err := tx.Bucket(bucketMeta).Put([]byte(metaKeyMaxLevel), lvl[:]); err != nil {
			return err
		}
	}

	if seg.IsFlat() {
		return s.advanceNextFreeTx(tx, seg)
	}
	return nil
}

// advanceNextFreeTx updates the persisted next-free-id snapshot for seg's
// group if seg.High extends past it.
func (s *Store) advanceNextFreeTx(tx *bbolt.Tx, seg segment.Segment) error {
	group := seg.Low.Group()
	candidate := seg.High.Next()

	cur, _ := s.nextFree.Load(group)
	if curId, ok := cur.(ids.Id); !ok || candidate > curId {
		s.nextFree.Store(group, candidate)
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(candidate))
		return tx.Bucket(bucketMeta).Put([]byte(nextFreeMetaKey(group)), buf[:])
	}
	return nil
}

// appendChildLow appends a child's low id to a group-parent index value,
// which is a flat list of 8-byte big-endian ids: every flat segment whose
// parent set contains the indexed parent id, in the order they were
// inserted.
func appendChildLow(existing []byte, childLow ids.Id) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(childLow))
	out := make([]byte, len(existing), len(existing)+8)
	copy(out, existing)
	return append(out, buf[:]...)
}

// decodeChildLows splits a group-parent index value back into its
// constituent child low ids.
func decodeChildLows(v []byte) []ids.Id {
	out := make([]ids.Id, 0, len(v)/8)
	for i := 0; i+8 <= len(v); i += 8 {
		out = append(out, ids.Id(binary.BigEndian.Uint64(v[i:i+8])))
	}
	return out
}

// lastFlatSegmentLocked returns the group's last (highest-high) flat
// segment, if any. Callers must hold s.mu.
//
// Level-head keys sort as [level, high] big-endian bytes, and an Id's group
// tag occupies its top bits, so within the level-0 block MASTER entries all
// sort before every NON_MASTER entry. Finding a group's last flat segment is
// therefore a backward walk from the end of the level-0 block: NON_MASTER's
// answer is the very last level-0 entry if one exists in that group, and
// MASTER's answer is the last level-0 entry that isn't NON_MASTER.
func (s *Store) lastFlatSegmentLocked(group ids.Group) (segment.Segment, bool, error) {
	var (
		found bool
		seg   segment.Segment
	)

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketLevelHead).Cursor()

		k, v := c.Seek([]byte{1})
		if k == nil {
			k, v = c.Last()
		} else {
			k, v = c.Prev()
		}

		for k != nil && k[0] == 0 {
			high := ids.Id(binary.BigEndian.Uint64(k[1:]))
			if high.Group() == group {
				decoded, err := s.readSegmentAt(decodeOffset(v))
				if err != nil {
					return err
				}
				seg, found = decoded, true
				return nil
			}
			if group != ids.MASTER {
				return nil // last level-0 entry wasn't NON_MASTER: no NON_MASTER segments exist yet
			}
			k, v = c.Prev()
		}
		return nil
	})

	return seg, found, err
}

// applyRecord applies one decoded log record, found starting at byte
// position offset, to the bbolt indexes. It is used only by log replay;
// live inserts apply their own index updates inline so they can compute the
// record's offset without a second pass over the log.
func (s *Store) applyRecord(rec record, offset int64) error {
	switch rec.Kind {
	case recordKindSegment:
		return s.db.Update(func(tx *bbolt.Tx) error {
			return s.indexSegmentTx(tx, rec.Segment, offset)
		})
	case recordKindRewriteLastFlat:
		replacementOffset := offset + rewriteLastFlatHeaderLen
		return s.db.Update(func(tx *bbolt.Tx) error {
			bucket := tx.Bucket(bucketLevelHead)
			if err := bucket.Delete(segment.LevelHeadKey(0, rec.PreviousHigh)); err != nil {
				return err
			}
			if err := bucket.Put(segment.LevelHeadKey(0, rec.Segment.High), encodeOffset(replacementOffset)); err != nil {
				return err
			}
			return s.advanceNextFreeTx(tx, rec.Segment)
		})
	case recordKindClearNonMaster:
		return s.clearNonMaster()
	default:
		return serrors.NewBugError(nil, "unknown record kind during replay")
	}
}
