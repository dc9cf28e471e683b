package updater

import (
	"context"

	"github.com/iamNilotpal/segchangelog/internal/iddag"
	"github.com/iamNilotpal/segchangelog/pkg/ids"
	"github.com/iamNilotpal/segchangelog/pkg/serrors"
	"github.com/iamNilotpal/segchangelog/pkg/vertex"
)

// prepareIncrementalUpdate walks back from head over unassigned commits and
// returns them as NewAssignments in a topological order (every parent
// listed, directly or transitively, before its child), ready for
// BuildFlatSegments. order[i] is the vertex assignments[i] names. An empty
// result means head is already assigned.
//
// Only MASTER is supported: the updater has no notion of building a
// non-master head incrementally, since non-master ids are assigned whole by
// the caller that creates them (see removenonmaster.go in idmapstore).
func (u *Updater) prepareIncrementalUpdate(ctx context.Context, head vertex.Vertex, group ids.Group) ([]iddag.NewAssignment, []vertex.Vertex, error) {
	if group != ids.MASTER {
		return nil, nil, serrors.NewGroupViolationError(group.String(), "prepare_incremental_update", "only MASTER is supported")
	}

	var order []vertex.Vertex
	resolved := make(map[string]ids.Id)
	parentsOf := make(map[string][]vertex.Vertex)
	visiting := make(map[string]bool)
	seen := make(map[string]bool)

	var walk func(v vertex.Vertex) error
	walk = func(v vertex.Vertex) error {
		hex := v.Hex()
		if seen[hex] {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if id, err := u.idmap.VertexId(v); err == nil {
			resolved[hex] = id
			seen[hex] = true
			return nil
		} else if !serrors.IsNotFound(err) {
			return err
		}

		if visiting[hex] {
			return serrors.NewBugError(nil, "cycle detected while resolving new commit ancestry")
		}
		visiting[hex] = true

		parents, err := u.fetcher.GetParents(ctx, v)
		if err != nil {
			return serrors.NewExternalError(err, "ChangesetFetcher", "failed to fetch parents")
		}
		parentsOf[hex] = parents

		for _, p := range parents {
			if err := walk(p); err != nil {
				return err
			}
		}

		visiting[hex] = false
		seen[hex] = true
		order = append(order, v)
		return nil
	}

	if err := walk(head); err != nil {
		return nil, nil, err
	}
	if len(order) == 0 {
		return nil, nil, nil
	}

	next := u.idmap.NextFreeId(group)
	assignments := make([]iddag.NewAssignment, 0, len(order))
	for _, v := range order {
		hex := v.Hex()
		parents := parentsOf[hex]

		parentIds := make([]ids.Id, len(parents))
		for i, p := range parents {
			id, ok := resolved[p.Hex()]
			if !ok {
				return nil, nil, serrors.NewBugError(nil, "parent id missing after topological resolution")
			}
			parentIds[i] = id
		}

		id := next
		resolved[hex] = id
		next = id.Next()
		assignments = append(assignments, iddag.NewAssignment{Id: id, Parents: parentIds})
	}

	return assignments, order, nil
}
