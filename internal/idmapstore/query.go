package idmapstore

import (
	"bytes"
	"encoding/binary"

	"github.com/iamNilotpal/segchangelog/pkg/ids"
	"github.com/iamNilotpal/segchangelog/pkg/serrors"
	"github.com/iamNilotpal/segchangelog/pkg/vertex"
	"go.etcd.io/bbolt"
)

// VertexId resolves v to its assigned Id, or a NotFoundError if unassigned.
func (s *Store) VertexId(v vertex.Vertex) (ids.Id, error) {
	if cached, ok := s.cache.get(vertexCacheKey(v.Hex())); ok {
		return cached.(ids.Id), nil
	}

	var id ids.Id
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketVertexToId).Get(v)
		if raw == nil {
			return serrors.NewNotFoundError("vertex not assigned an id").WithVertex(v.Hex())
		}
		id = ids.Id(binary.BigEndian.Uint64(raw))
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.cache.put(vertexCacheKey(v.Hex()), id)
	return id, nil
}

// VertexIdWithMaxGroup resolves v to its assigned Id only if that id's group
// is at most maxGroup, otherwise reporting NotFound.
func (s *Store) VertexIdWithMaxGroup(v vertex.Vertex, maxGroup ids.Group) (ids.Id, error) {
	id, err := s.VertexId(v)
	if err != nil {
		return 0, err
	}
	if id.Group() > maxGroup {
		return 0, serrors.NewNotFoundError("vertex assigned only above the requested max group").WithVertex(v.Hex())
	}
	return id, nil
}

// VertexName resolves id to its assigned Vertex, or a NotFoundError if
// unassigned.
func (s *Store) VertexName(id ids.Id) (vertex.Vertex, error) {
	if cached, ok := s.cache.get(idCacheKey(id)); ok {
		return cached.(vertex.Vertex).Clone(), nil
	}

	var v vertex.Vertex
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketIdToVertex).Get(idKey(id))
		if raw == nil {
			return serrors.NewNotFoundError("id not assigned a vertex").WithId(id.String())
		}
		v = vertex.Vertex(raw).Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.put(idCacheKey(id), v)
	return v, nil
}

// FindManyDagIds resolves each vertex in vertexes, stopping at the first
// unassigned one.
func (s *Store) FindManyDagIds(vertexes []vertex.Vertex) ([]ids.Id, error) {
	out := make([]ids.Id, 0, len(vertexes))
	for _, v := range vertexes {
		id, err := s.VertexId(v)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// FindManyVertexNames resolves each id in idList, stopping at the first
// unassigned one.
func (s *Store) FindManyVertexNames(idList []ids.Id) ([]vertex.Vertex, error) {
	out := make([]vertex.Vertex, 0, len(idList))
	for _, id := range idList {
		v, err := s.VertexName(id)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// VertexesByHexPrefix returns up to limit vertexes whose hex encoding
// begins with prefix, in ascending hex order.
func (s *Store) VertexesByHexPrefix(prefix string, limit int) ([]vertex.Vertex, error) {
	var out []vertex.Vertex
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketHexPrefix).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			if len(out) >= limit {
				return nil
			}
			v, err := vertex.FromHex(string(k))
			if err != nil {
				return serrors.NewBugError(err, "hex prefix index contains malformed hex")
			}
			out = append(out, v)
		}
		return nil
	})
	return out, err
}

// NextFreeId returns the next id group would assign according to this
// store's own bookkeeping. It must agree with the Segment Store's view
// after a successful persist; callers coordinating both stores treat any
// disagreement as a bug.
func (s *Store) NextFreeId(group ids.Group) ids.Id {
	v, ok := s.nextFree.Load(group)
	if !ok {
		return group.MinId()
	}
	return v.(ids.Id)
}
