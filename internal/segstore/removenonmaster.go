package segstore

import (
	"context"
	"encoding/binary"

	"github.com/iamNilotpal/segchangelog/pkg/ids"
	"github.com/iamNilotpal/segchangelog/pkg/serrors"
	"go.etcd.io/bbolt"
)

// RemoveNonMaster appends a CLEAR_NON_MASTER record and wipes every
// NON_MASTER entry from both secondary indexes, returning the NON_MASTER
// group to its empty state. MASTER is untouched. This is the only way
// NON_MASTER ids are ever reclaimed: the group's contents are always
// provisional (draft commits, scratch branches) and are expected to be
// rebuilt from scratch on the next update that needs them.
func (s *Store) RemoveNonMaster(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := encodeClearNonMaster(nil)
	if err := s.writeLocked(buf); err != nil {
		return err
	}

	if err := s.clearNonMaster(); err != nil {
		return err
	}

	if next := s.NextFreeId(ids.NonMaster); next != ids.NonMaster.MinId() {
		return serrors.NewBugError(nil, "remove_non_master postcondition violated: non_master not empty after clear")
	}
	return nil
}

// clearNonMaster performs the index side-effect of a CLEAR_NON_MASTER
// record: every level-head entry whose high lies in NON_MASTER, and every
// group-parent entry keyed under NON_MASTER, is deleted. It is shared by
// RemoveNonMaster and log replay.
func (s *Store) clearNonMaster() error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		levelHead := tx.Bucket(bucketLevelHead)
		if err := deleteWhere(levelHead, func(k []byte) bool {
			high := ids.Id(binary.BigEndian.Uint64(k[1:]))
			return high.Group() == ids.NonMaster
		}); err != nil {
			return err
		}

		groupParent := tx.Bucket(bucketGroupParent)
		if err := deleteWhere(groupParent, func(k []byte) bool {
			return ids.Group(k[0]) == ids.NonMaster
		}); err != nil {
			return err
		}

		meta := tx.Bucket(bucketMeta)
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(ids.NonMaster.MinId()))
		return meta.Put([]byte(nextFreeMetaKey(ids.NonMaster)), buf[:])
	})
	if err != nil {
		return serrors.NewBugError(err, "failed to clear non_master indexes")
	}

	s.nextFree.Store(ids.NonMaster, ids.NonMaster.MinId())
	return nil
}

// deleteWhere removes every key in bucket for which match returns true. It
// collects matching keys before deleting, since bbolt cursors are undefined
// after a Delete within the same iteration.
func deleteWhere(bucket *bbolt.Bucket, match func(k []byte) bool) error {
	var toDelete [][]byte
	c := bucket.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		if match(k) {
			toDelete = append(toDelete, append([]byte(nil), k...))
		}
	}
	for _, k := range toDelete {
		if err := bucket.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
