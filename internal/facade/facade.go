// Package facade implements the read-only public query surface: a
// stateless combination of an IdDag snapshot with an IdMap handle. Every
// method here resolves vertexes to ids (or back) and then delegates the
// ancestry math to internal/iddag; nothing in this package mutates storage.
package facade

import (
	"context"

	"github.com/iamNilotpal/segchangelog/internal/idmapstore"
	"github.com/iamNilotpal/segchangelog/internal/iddag"
	"github.com/iamNilotpal/segchangelog/pkg/dagset"
	"github.com/iamNilotpal/segchangelog/pkg/ids"
	"github.com/iamNilotpal/segchangelog/pkg/segment"
	"github.com/iamNilotpal/segchangelog/pkg/serrors"
	"github.com/iamNilotpal/segchangelog/pkg/vertex"
)

// Location names a commit by its distance behind a known descendant, the
// wire shape location_to_many_changeset_ids resolves and
// many_changeset_ids_to_locations produces.
type Location struct {
	Descendant vertex.Vertex
	Distance   uint64
}

// FlatSegmentData is the wire-level shape of one flat segment, as
// clone_data and pull_fast_forward_master emit it.
type FlatSegmentData struct {
	Low     uint64
	High    uint64
	Parents []uint64
}

// CloneData is the bit-exact payload spec §6 defines: a list of MASTER flat
// segments plus idmap entries for an id set chosen by the producing call
// (CloneData uses the universal ids; PullFastForwardMaster uses the delta
// plus its boundary parents).
type CloneData struct {
	FlatSegments []FlatSegmentData
	IdMap        map[uint64]vertex.Vertex
}

// IdMapChunk is one batch of full_idmap_clone_data's streamed output.
type IdMapChunk struct {
	Entries map[uint64]vertex.Vertex
}

const fullCloneBatchSize = 1000
const fullCloneBufferedBatches = 5

// Facade combines a Segment-Store-backed IdDag view with an IdMap Store
// handle. It is safe for concurrent use. It takes no lock: each call reads
// whatever the stores currently hold, so several calls are not guaranteed a
// consistent view while the Updater is appending.
type Facade struct {
	dag   *iddag.IdDag
	idmap *idmapstore.Store
}

// New builds a Facade over the given IdDag view and IdMap Store.
func New(dag *iddag.IdDag, idmap *idmapstore.Store) *Facade {
	return &Facade{dag: dag, idmap: idmap}
}

// LocationToManyChangesetIds resolves a location — a descendant vertex plus
// a first-parent distance — to the count ids starting at that location and
// walking count-1 further first-parent steps.
func (f *Facade) LocationToManyChangesetIds(ctx context.Context, descendant vertex.Vertex, distance, count uint64) ([]vertex.Vertex, error) {
	if count == 0 {
		return nil, nil
	}

	descId, err := f.idmap.VertexId(descendant)
	if err != nil {
		return nil, err
	}

	start, err := f.dag.FirstAncestorNth(descId, distance)
	if err != nil {
		return nil, err
	}

	out := make([]vertex.Vertex, 0, count)
	cur := start
	for i := uint64(0); i < count; i++ {
		v, err := f.idmap.VertexName(cur)
		if err != nil {
			return nil, err
		}
		out = append(out, v)

		if i+1 == count {
			break
		}

		next, stepErr := f.stepOneFirstParent(cur, i+1)
		if stepErr != nil {
			return nil, stepErr
		}
		cur = next
	}
	return out, nil
}

// stepOneFirstParent advances cur exactly one first-parent step. Within a
// flat segment this is a plain decrement; crossing out of a segment at its
// low id requires exactly one parent, since a boundary with more than one
// parent cannot be crossed unambiguously by a walk of fixed length.
func (f *Facade) stepOneFirstParent(cur ids.Id, distanceSoFar uint64) (ids.Id, error) {
	seg, ok, err := f.dag.FlatSegmentContaining(cur)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, serrors.NewNotFoundError("id not covered by any flat segment").WithId(cur.String())
	}
	if cur > seg.Low {
		return cur.Prev(), nil
	}
	if len(seg.Parents) != 1 {
		return 0, serrors.NewAmbiguousError(cur.String(), distanceSoFar)
	}
	return seg.Parents[0], nil
}

// ManyChangesetIdsToLocations inverts location_to_many_changeset_ids: for
// each queried vertex, it finds the masterHeads whose first-parent chain the
// vertex lies on, and reports the location as the nearest such head plus the
// first-parent distance down to the vertex. A vertex only gets a location if
// it is universally known — an ancestor of every resolved master head, not
// just the one its location happens to anchor on — since a location anchored
// on a head unknown to the rest of the group is useless to a peer that
// hasn't seen it. If no master head resolves at all, the whole batch fails;
// a per-vertex miss only fails that entry.
func (f *Facade) ManyChangesetIdsToLocations(ctx context.Context, masterHeads, csIds []vertex.Vertex) (map[string]LocationResult, error) {
	heads, universal, err := f.universalFromHeads(masterHeads)
	if err != nil {
		return nil, err
	}
	if len(heads) == 0 {
		return nil, serrors.NewNotFoundError("no supplied master head resolved to an id")
	}

	out := make(map[string]LocationResult, len(csIds))
	for _, v := range csIds {
		id, err := f.idmap.VertexId(v)
		if err != nil {
			out[v.Hex()] = LocationResult{Err: err}
			continue
		}
		if !universal.Contains(id) {
			out[v.Hex()] = LocationResult{Err: serrors.NewNotFoundError("no universally-known descendant").WithId(id.String())}
			continue
		}

		loc, err := f.locationRelativeToHeads(heads, id)
		if err != nil {
			out[v.Hex()] = LocationResult{Err: err}
			continue
		}
		out[v.Hex()] = loc
	}
	return out, nil
}

// locationRelativeToHeads tries every resolved head whose first-parent chain
// passes through id and returns the location with the smallest distance; on
// equal distances the head listed first wins.
func (f *Facade) locationRelativeToHeads(heads []resolvedHead, id ids.Id) (LocationResult, error) {
	var best LocationResult
	bestFound := false
	for _, h := range heads {
		distance, found, err := f.dag.FirstParentDistanceTo(h.id, id)
		if err != nil {
			return LocationResult{}, err
		}
		if found && (!bestFound || distance < best.Location.Distance) {
			best = LocationResult{Location: Location{Descendant: h.vertex, Distance: distance}}
			bestFound = true
		}
	}
	if bestFound {
		return best, nil
	}
	return LocationResult{Err: serrors.NewNotFoundError("no supplied master head is a first-parent descendant").WithId(id.String())}, nil
}

// LocationResult is one entry of ManyChangesetIdsToLocations' per-vertex
// result map: either a resolved Location or the error that prevented one.
type LocationResult struct {
	Location Location
	Err      error
}

// resolvedHead pairs a successfully-resolved master head's id with the
// vertex it came from, so a Location can report the descendant in wire
// terms without a second idmap round trip.
type resolvedHead struct {
	id     ids.Id
	vertex vertex.Vertex
}

// universalFromHeads resolves masterHeads to ids and intersects their
// ancestor sets: the ids every resolved head agrees are behind it, which is
// what "universally known" means for a multi-head query. It is seeded from
// the first resolved head's ancestors rather than the empty set, since
// intersecting anything with empty is always empty.
func (f *Facade) universalFromHeads(masterHeads []vertex.Vertex) ([]resolvedHead, *dagset.IdSet, error) {
	var heads []resolvedHead
	var universal *dagset.IdSet

	for _, h := range masterHeads {
		id, err := f.idmap.VertexId(h)
		if err != nil {
			continue
		}
		anc, err := f.dag.Ancestors(dagset.FromIds(id))
		if err != nil {
			return nil, nil, err
		}

		if universal == nil {
			universal = anc
		} else {
			universal = universal.Intersect(anc)
		}
		heads = append(heads, resolvedHead{id: id, vertex: h})
	}

	if universal == nil {
		universal = dagset.Empty()
	}
	return heads, universal, nil
}

// CloneData returns the MASTER group's flat segments plus the idmap
// entries for every id the universal set references.
func (f *Facade) CloneData(ctx context.Context) (CloneData, error) {
	universal, err := f.dag.UniversalIds()
	if err != nil {
		return CloneData{}, err
	}

	segs, err := f.dag.FlatSegments(ids.MASTER)
	if err != nil {
		return CloneData{}, err
	}

	return f.buildCloneData(segs, universal)
}

// PullFastForwardMaster computes the ancestor delta between old and new,
// both of which must resolve and lie in the MASTER group, and returns it as
// a CloneData payload a peer can replay on top of its copy at old.
func (f *Facade) PullFastForwardMaster(ctx context.Context, old, new vertex.Vertex) (CloneData, error) {
	oldId, err := f.idmap.VertexIdWithMaxGroup(old, ids.MASTER)
	if err != nil {
		return CloneData{}, err
	}
	newId, err := f.idmap.VertexIdWithMaxGroup(new, ids.MASTER)
	if err != nil {
		return CloneData{}, err
	}

	isAncestor, err := f.dag.IsAncestor(oldId, newId)
	if err != nil {
		return CloneData{}, err
	}
	if !isAncestor {
		return CloneData{}, serrors.NewGroupViolationError(ids.MASTER.String(), "pull_fast_forward_master",
			"old is not an ancestor of new: this is not a fast-forward")
	}

	ancNew, err := f.dag.Ancestors(dagset.FromIds(newId))
	if err != nil {
		return CloneData{}, err
	}
	ancOld, err := f.dag.Ancestors(dagset.FromIds(oldId))
	if err != nil {
		return CloneData{}, err
	}
	delta := ancNew.Difference(ancOld)

	segs, err := f.dag.IdSetToFlatSegments(delta)
	if err != nil {
		return CloneData{}, err
	}

	// The idmap must also cover every parent referenced at a segment
	// boundary (typically `old` itself), even though that id lies outside
	// delta, so the peer can attach the new segments to its existing graph.
	withParents := dagset.FromSpans(delta.Spans()...)
	for _, seg := range segs {
		for _, p := range seg.Parents {
			withParents.Add(p)
		}
	}

	return f.buildCloneData(segs, withParents)
}

func (f *Facade) buildCloneData(segs []segment.Segment, idset *dagset.IdSet) (CloneData, error) {
	out := CloneData{IdMap: make(map[uint64]vertex.Vertex)}
	for _, seg := range segs {
		parents := make([]uint64, len(seg.Parents))
		for i, p := range seg.Parents {
			parents[i] = uint64(p)
		}
		out.FlatSegments = append(out.FlatSegments, FlatSegmentData{
			Low: uint64(seg.Low), High: uint64(seg.High), Parents: parents,
		})
	}

	for _, sp := range idset.Spans() {
		for id := sp.Low; ; id = id.Next() {
			v, err := f.idmap.VertexName(id)
			if err != nil {
				return CloneData{}, err
			}
			out.IdMap[uint64(id)] = v
			if id == sp.High {
				break
			}
		}
	}
	return out, nil
}

// FullIdmapCloneData streams the entire MASTER id range in fixed-size
// batches, resolving vertex names as it goes. It sends on the returned chunk
// channel and closes it when done, on a lookup error, or when ctx is
// cancelled; up to fullCloneBufferedBatches
// batches may be in flight at once.
func (f *Facade) FullIdmapCloneData(ctx context.Context) (<-chan IdMapChunk, <-chan error) {
	out := make(chan IdMapChunk, fullCloneBufferedBatches)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		next := f.dag.NextFreeId(ids.MASTER)
		cur := ids.MASTER.MinId()

		for cur < next {
			chunk := IdMapChunk{Entries: make(map[uint64]vertex.Vertex, fullCloneBatchSize)}
			for i := 0; i < fullCloneBatchSize && cur < next; i++ {
				v, err := f.idmap.VertexName(cur)
				if err != nil {
					errc <- err
					return
				}
				chunk.Entries[uint64(cur)] = v
				cur = cur.Next()
			}

			select {
			case out <- chunk:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
	}()

	return out, errc
}

// IsAncestor reports whether a is an ancestor of d, or nothing if either
// fails to resolve to an id.
func (f *Facade) IsAncestor(ctx context.Context, a, d vertex.Vertex) (bool, bool, error) {
	aId, err := f.idmap.VertexId(a)
	if serrors.IsNotFound(err) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}

	dId, err := f.idmap.VertexId(d)
	if serrors.IsNotFound(err) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}

	ok, err := f.dag.IsAncestor(aId, dId)
	if err != nil {
		return false, false, err
	}
	return ok, true, nil
}
