package iddag

import (
	"github.com/iamNilotpal/segchangelog/pkg/ids"
	"github.com/iamNilotpal/segchangelog/pkg/segment"
)

// NewAssignment is one freshly IdMap-assigned commit awaiting a flat segment,
// in the order it was assigned (ascending id).
type NewAssignment struct {
	Id      ids.Id
	Parents []ids.Id
}

// BuildFlatSegments walks a contiguous run of freshly assigned ids once,
// cutting a new segment boundary whenever the next id's parent set is not
// exactly {previous id} — the same merge predicate the Segment Store itself
// applies on REWRITE_LAST_FLAT, so an incremental build and a sequence of
// individual InsertSegment calls agree on where boundaries fall. The final
// emitted segment is marked ONLY_HEAD, since it ends at the window's new
// head and is, until a further update extends past it, the sole head of
// that linear run.
func BuildFlatSegments(assignments []NewAssignment) []segment.Segment {
	if len(assignments) == 0 {
		return nil
	}

	var out []segment.Segment
	start := 0
	for i := 1; i <= len(assignments); i++ {
		cut := i == len(assignments)
		if !cut {
			next := assignments[i]
			cut = !(len(next.Parents) == 1 && next.Parents[0] == assignments[i-1].Id)
		}
		if !cut {
			continue
		}

		first := assignments[start]
		last := assignments[i-1]

		var flags segment.Flags
		if len(first.Parents) == 0 {
			flags |= segment.FlagHasRoot
		}
		if i == len(assignments) {
			flags |= segment.FlagOnlyHead
		}

		out = append(out, segment.Segment{
			Flags:   flags,
			Level:   0,
			Low:     first.Id,
			High:    last.Id,
			Parents: first.Parents,
		})
		start = i
	}
	return out
}
