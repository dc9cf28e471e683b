// Package iddag implements the pure in-memory ancestry algorithms that run
// over the Segment Store's contents: ancestor walks, first-parent stepping,
// and the universal id set clone payloads anchor on. Nothing here mutates
// storage; the Updater is the only writer, inserting the segments that
// BuildFlatSegments in build.go constructs. There is no higher-level (coarser) segment tier: every ancestry
// walk here already proceeds one flat segment at a time rather than one
// commit at a time, so a level-1+ cache would accelerate a query path that
// doesn't exist yet — building one now would just be persisted dead
// computation.
package iddag

import (
	"github.com/iamNilotpal/segchangelog/internal/segstore"
	"github.com/iamNilotpal/segchangelog/pkg/dagset"
	"github.com/iamNilotpal/segchangelog/pkg/ids"
	"github.com/iamNilotpal/segchangelog/pkg/segment"
	"github.com/iamNilotpal/segchangelog/pkg/serrors"
)

// IdDag is a thin, stateless view over a Segment Store: every query reads
// whatever is currently persisted. It takes no lock of its own, so several
// calls are not guaranteed a consistent snapshot while the Updater appends.
type IdDag struct {
	store *segstore.Store
}

// New wraps store in an IdDag view.
func New(store *segstore.Store) *IdDag {
	return &IdDag{store: store}
}

// Ancestors returns the set of ids reachable, including set itself, by
// walking parent edges from every id in set. The walk proceeds one flat
// segment at a time: since a flat segment is an uninterrupted single-parent
// chain, an entire [segment.Low, id] span is admitted to the result in one
// step rather than one id at a time, so the walk touches O(segments) rather
// than O(commits).
func (d *IdDag) Ancestors(set *dagset.IdSet) (*dagset.IdSet, error) {
	visited := dagset.Empty()
	frontier := flatten(set)

	for len(frontier) > 0 {
		id := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		if visited.Contains(id) {
			continue
		}

		seg, ok, err := d.store.FindFlatSegmentIncludingId(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, serrors.NewNotFoundError("id not covered by any flat segment").WithId(id.String())
		}

		visited.AddSpan(ids.Span{Low: seg.Low, High: id})
		for _, p := range seg.Parents {
			if !visited.Contains(p) {
				frontier = append(frontier, p)
			}
		}
	}
	return visited, nil
}

// IsAncestor reports whether a is an ancestor of d (or equal to it).
func (g *IdDag) IsAncestor(a, d ids.Id) (bool, error) {
	if a == d {
		return true, nil
	}

	visited := dagset.Empty()
	frontier := []ids.Id{d}

	for len(frontier) > 0 {
		cur := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		if visited.Contains(cur) {
			continue
		}

		seg, ok, err := g.store.FindFlatSegmentIncludingId(cur)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, serrors.NewNotFoundError("id not covered by any flat segment").WithId(cur.String())
		}

		if a.Group() == seg.Low.Group() && a >= seg.Low && a <= cur {
			return true, nil
		}

		visited.AddSpan(ids.Span{Low: seg.Low, High: cur})
		for _, p := range seg.Parents {
			if !visited.Contains(p) {
				frontier = append(frontier, p)
			}
		}
	}
	return false, nil
}

// FirstAncestorNth returns the nth ancestor of id along the first-parent
// chain: n=0 is id itself, n=1 is its first parent, and so on. It fails with
// NotFound if the chain runs out of ancestors before n is exhausted.
func (d *IdDag) FirstAncestorNth(id ids.Id, n uint64) (ids.Id, error) {
	cur := id
	for n > 0 {
		seg, ok, err := d.store.FindFlatSegmentIncludingId(cur)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, serrors.NewNotFoundError("id not covered by any flat segment").WithId(cur.String())
		}

		available := uint64(cur) - uint64(seg.Low)
		if n <= available {
			return ids.Id(uint64(cur) - n), nil
		}

		n -= available + 1 // consume the step from seg.Low to its first parent
		if len(seg.Parents) == 0 {
			return 0, serrors.NewNotFoundError("first-parent chain exhausted before reaching the requested distance").WithId(id.String())
		}
		cur = seg.Parents[0]
	}
	return cur, nil
}

// ToFirstAncestorNth walks id's first-parent chain until it lands on a
// member of universal, returning that ancestor and the number of
// first-parent steps taken to reach it. It reports found=false if the chain
// runs out before hitting the set (id is not an ancestor of anything the
// set anchors).
func (d *IdDag) ToFirstAncestorNth(id ids.Id, universal *dagset.IdSet) (ancestor ids.Id, distance uint64, found bool, err error) {
	cur := id
	for {
		if universal.Contains(cur) {
			return cur, distance, true, nil
		}

		seg, ok, serr := d.store.FindFlatSegmentIncludingId(cur)
		if serr != nil {
			return 0, 0, false, serr
		}
		if !ok {
			return 0, 0, false, serrors.NewNotFoundError("id not covered by any flat segment").WithId(cur.String())
		}

		if closest, ok := closestMemberInRange(universal, seg.Low, cur); ok {
			distance += uint64(cur) - uint64(closest)
			return closest, distance, true, nil
		}

		distance += uint64(cur) - uint64(seg.Low) + 1
		if len(seg.Parents) == 0 {
			return 0, 0, false, nil
		}
		cur = seg.Parents[0]
	}
}

// FirstParentDistanceTo walks descendant's first-parent chain looking for
// target, returning the number of first-parent steps from descendant down to
// target. It is the inverse of FirstAncestorNth: whenever found is true,
// FirstAncestorNth(descendant, distance) == target. found is false if
// target does not lie on descendant's first-parent chain at all (it may
// still be an ancestor of descendant through a non-first parent).
func (d *IdDag) FirstParentDistanceTo(descendant, target ids.Id) (distance uint64, found bool, err error) {
	cur := descendant
	for {
		seg, ok, serr := d.store.FindFlatSegmentIncludingId(cur)
		if serr != nil {
			return 0, false, serr
		}
		if !ok {
			return 0, false, serrors.NewNotFoundError("id not covered by any flat segment").WithId(cur.String())
		}

		if target.Group() == seg.Low.Group() && target >= seg.Low && target <= cur {
			distance += uint64(cur) - uint64(target)
			return distance, true, nil
		}

		distance += uint64(cur) - uint64(seg.Low) + 1
		if len(seg.Parents) == 0 {
			return 0, false, nil
		}
		cur = seg.Parents[0]
	}
}

// closestMemberInRange returns the largest id in universal that falls
// within [lo, hi], if any.
func closestMemberInRange(universal *dagset.IdSet, lo, hi ids.Id) (ids.Id, bool) {
	var best ids.Id
	found := false
	for _, sp := range universal.Spans() {
		if sp.High < lo || sp.Low > hi {
			continue
		}
		top := sp.High
		if top > hi {
			top = hi
		}
		if !found || top > best {
			best, found = top, true
		}
	}
	return best, found
}

// FlatSegmentContaining returns the flat segment whose [low, high] interval
// contains id, for callers (the Facade's first-parent walk) that need to
// reason about segment boundaries directly rather than through
// FirstAncestorNth's aggregate jump.
func (d *IdDag) FlatSegmentContaining(id ids.Id) (segment.Segment, bool, error) {
	return d.store.FindFlatSegmentIncludingId(id)
}

// FlatSegments returns every level-0 segment of group, in ascending id
// order.
func (d *IdDag) FlatSegments(group ids.Group) ([]segment.Segment, error) {
	var out []segment.Segment
	err := d.store.IterSegmentsAscending(0, func(seg segment.Segment) bool {
		if seg.Low.Group() == group {
			out = append(out, seg)
		}
		return true
	})
	return out, err
}

// CurrentMasterHeads returns the high id of every MASTER flat segment that
// is not itself a parent of any other flat segment: the current frontier of
// the MASTER DAG. Only a flat segment's High id can be a DAG head, since
// every interior id necessarily has a child within its own segment.
func (d *IdDag) CurrentMasterHeads() ([]ids.Id, error) {
	flats, err := d.FlatSegments(ids.MASTER)
	if err != nil {
		return nil, err
	}

	var heads []ids.Id
	for _, seg := range flats {
		var hasChild bool
		if err := d.store.IterFlatSegmentsWithParent(ids.MASTER, seg.High, func(ids.Id) bool {
			hasChild = true
			return false
		}); err != nil {
			return nil, err
		}
		if !hasChild {
			heads = append(heads, seg.High)
		}
	}
	return heads, nil
}

// UniversalIds returns the ids reachable from every current MASTER head:
// the anchor set clone_data and pull_fast_forward_master express their
// payloads relative to.
func (d *IdDag) UniversalIds() (*dagset.IdSet, error) {
	heads, err := d.CurrentMasterHeads()
	if err != nil {
		return nil, err
	}
	if len(heads) == 0 {
		return dagset.Empty(), nil
	}

	universal, err := d.Ancestors(dagset.FromIds(heads[0]))
	if err != nil {
		return nil, err
	}
	for _, h := range heads[1:] {
		anc, err := d.Ancestors(dagset.FromIds(h))
		if err != nil {
			return nil, err
		}
		universal = universal.Intersect(anc)
	}
	return universal, nil
}

// IdSetToFlatSegments converts set into the minimal list of flat segments
// (trimmed from the store's real, persisted segments) that cover exactly
// set's ids. pull_fast_forward_master uses this to turn an ancestor-delta
// id set into a payload the peer can replay.
func (d *IdDag) IdSetToFlatSegments(set *dagset.IdSet) ([]segment.Segment, error) {
	var out []segment.Segment
	for _, sp := range set.Spans() {
		cur := sp.Low
		for cur <= sp.High {
			seg, ok, err := d.store.FindFlatSegmentIncludingId(cur)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, serrors.NewNotFoundError("id not covered by any flat segment").WithId(cur.String())
			}

			high := seg.High
			if high > sp.High {
				high = sp.High
			}

			var parents []ids.Id
			if cur == seg.Low {
				parents = seg.Parents
			} else {
				parents = []ids.Id{cur.Prev()}
			}

			var flags segment.Flags
			if cur == seg.Low && seg.Flags.HasRoot() {
				flags |= segment.FlagHasRoot
			}
			if high == seg.High && seg.Flags.OnlyHead() {
				flags |= segment.FlagOnlyHead
			}

			out = append(out, segment.Segment{Flags: flags, Level: 0, Low: cur, High: high, Parents: parents})
			if high == sp.High {
				break
			}
			cur = high.Next()
		}
	}
	return out, nil
}

// NextFreeId delegates to the Segment Store: the IdDag holds no id
// bookkeeping of its own.
func (d *IdDag) NextFreeId(group ids.Group) ids.Id {
	return d.store.NextFreeId(group)
}

func flatten(set *dagset.IdSet) []ids.Id {
	var out []ids.Id
	for _, sp := range set.Spans() {
		for id := sp.Low; ; id = id.Next() {
			out = append(out, id)
			if id == sp.High {
				break
			}
		}
	}
	return out
}
