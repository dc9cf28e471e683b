package idmapstore

import (
	"context"
	"encoding/binary"

	"github.com/iamNilotpal/segchangelog/pkg/ids"
	"github.com/iamNilotpal/segchangelog/pkg/serrors"
	"github.com/iamNilotpal/segchangelog/pkg/vertex"
	"go.etcd.io/bbolt"
)

// RemoveNonMaster drops every vertex<->id assignment in the NonMaster group
// and resets its next-free-id counter, mirroring the Segment Store's
// clear_non_master. Its only caller is Repo.RemoveNonMaster; the Updater
// never calls it.
func (s *Store) RemoveNonMaster(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		idToVertex := tx.Bucket(bucketIdToVertex)
		vertexToId := tx.Bucket(bucketVertexToId)
		hexPrefix := tx.Bucket(bucketHexPrefix)

		// Collect first: bbolt cursor state after a mid-iteration Delete is
		// undefined, so mutate only after the scan completes.
		var staleIds [][]byte
		var staleVertexes []vertex.Vertex

		lo := idKey(ids.NonMaster.MinId())
		c := idToVertex.Cursor()
		for k, v := c.Seek(lo); k != nil; k, v = c.Next() {
			id := ids.Id(binary.BigEndian.Uint64(k))
			if id.Group() != ids.NonMaster {
				continue
			}
			staleIds = append(staleIds, append([]byte(nil), k...))
			staleVertexes = append(staleVertexes, vertex.Vertex(v).Clone())
		}

		for i, k := range staleIds {
			if err := idToVertex.Delete(k); err != nil {
				return err
			}
			v := staleVertexes[i]
			if err := vertexToId.Delete(v); err != nil {
				return err
			}
			if err := hexPrefix.Delete([]byte(v.Hex())); err != nil {
				return err
			}
		}

		s.nextFree.Store(ids.NonMaster, ids.NonMaster.MinId())
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(ids.NonMaster.MinId()))
		if err := tx.Bucket(bucketIdMapMeta).Put([]byte(nextFreeMetaKey(ids.NonMaster)), buf[:]); err != nil {
			return err
		}

		return s.bumpVersionTx(tx)
	})
	if err != nil {
		return serrors.NewBugError(err, "failed to clear non-master idmap entries")
	}

	// A bounded LRU has no cheap way to invalidate only the NonMaster subset;
	// dropping the whole cache is simpler than walking it and correct since
	// MASTER entries are re-populated lazily on next lookup.
	s.cache.clear()

	if got := s.NextFreeId(ids.NonMaster); got != ids.NonMaster.MinId() {
		return serrors.NewBugError(nil, "non-master next-free-id did not reset after clear")
	}
	return nil
}
