package idmapstore

import (
	"context"
	"encoding/binary"

	"github.com/iamNilotpal/segchangelog/pkg/ids"
	"github.com/iamNilotpal/segchangelog/pkg/serrors"
	"github.com/iamNilotpal/segchangelog/pkg/vertex"
	"go.etcd.io/bbolt"
)

// Insert writes a (vertex, id) assignment, write-through to the cache. It
// rejects conflicting assignments: the id already mapped to a different
// vertex, or the vertex already mapped to a different id.
func (s *Store) Insert(ctx context.Context, id ids.Id, v vertex.Vertex) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		vertexToId := tx.Bucket(bucketVertexToId)
		idToVertex := tx.Bucket(bucketIdToVertex)

		if existing := vertexToId.Get(v); existing != nil {
			existingId := ids.Id(binary.BigEndian.Uint64(existing))
			if existingId != id {
				return serrors.NewConflictError(v.Hex(), existingId.String(), id.String())
			}
			return nil // idempotent re-insert of the same assignment
		}
		if existing := idToVertex.Get(idKey(id)); existing != nil {
			return serrors.NewConflictError(id.String(), vertex.Vertex(existing).Hex(), v.Hex())
		}

		if err := vertexToId.Put(v, idKey(id)); err != nil {
			return err
		}
		if err := idToVertex.Put(idKey(id), v); err != nil {
			return err
		}
		if err := tx.Bucket(bucketHexPrefix).Put([]byte(v.Hex()), idKey(id)); err != nil {
			return err
		}

		if err := s.advanceNextFreeTx(tx, id); err != nil {
			return err
		}
		return s.bumpVersionTx(tx)
	})
	if err != nil {
		if serrors.IsConflict(err) {
			return err
		}
		return serrors.NewBugError(err, "failed to write idmap entry")
	}

	s.cache.put(vertexCacheKey(v.Hex()), id)
	s.cache.put(idCacheKey(id), v.Clone())
	s.metrics.IdMapInsertsTotal.WithLabelValues(id.Group().String()).Inc()
	return nil
}

// advanceNextFreeTx updates the persisted next-free-id snapshot for id's
// group if id extends past it.
func (s *Store) advanceNextFreeTx(tx *bbolt.Tx, id ids.Id) error {
	group := id.Group()
	candidate := id.Next()

	cur, _ := s.nextFree.Load(group)
	if curId, ok := cur.(ids.Id); !ok || candidate > curId {
		s.nextFree.Store(group, candidate)
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(candidate))
		return tx.Bucket(bucketIdMapMeta).Put([]byte(nextFreeMetaKey(group)), buf[:])
	}
	return nil
}

// bumpVersionTx advances the in-memory version counter and persists it
// within tx, so a version bump can never commit independently of the write
// that caused it.
func (s *Store) bumpVersionTx(tx *bbolt.Tx) error {
	next := s.version.Add(1)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], next)
	return tx.Bucket(bucketIdMapMeta).Put([]byte("version"), buf[:])
}
