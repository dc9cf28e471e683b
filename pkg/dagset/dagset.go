// Package dagset implements DagIdSet: a run-length-encoded set of Id spans.
// The IdDag uses it to express "universally known" id sets compactly, and to
// compute the ancestor deltas pull_fast_forward_master needs, without ever
// materializing a per-id bitmap.
package dagset

import (
	"sort"

	"github.com/iamNilotpal/segchangelog/pkg/ids"
)

// IdSet is an ordered, non-overlapping, non-adjacent list of Spans. Because
// ids.Id orders MASTER strictly below NON_MASTER (the group tag occupies the
// high bits), a single sorted span list can span both groups without extra
// bookkeeping; callers that only ever want one group filter at the edges.
type IdSet struct {
	spans []ids.Span
}

// Empty returns an empty IdSet.
func Empty() *IdSet {
	return &IdSet{}
}

// FromSpans builds an IdSet from the given spans, normalizing overlaps and
// adjacency.
func FromSpans(spans ...ids.Span) *IdSet {
	s := &IdSet{}
	for _, sp := range spans {
		s.AddSpan(sp)
	}
	return s
}

// FromIds builds an IdSet containing exactly the given ids.
func FromIds(idList ...ids.Id) *IdSet {
	s := &IdSet{}
	for _, id := range idList {
		s.Add(id)
	}
	return s
}

// Add inserts a single id into the set.
func (s *IdSet) Add(id ids.Id) {
	s.AddSpan(ids.Span{Low: id, High: id})
}

// AddSpan inserts a span into the set, merging with any overlapping or
// adjacent existing spans.
func (s *IdSet) AddSpan(sp ids.Span) {
	if sp.High < sp.Low {
		return
	}
	spans := append(s.spans, sp)
	sort.Slice(spans, func(i, j int) bool { return spans[i].Low < spans[j].Low })

	merged := spans[:0]
	for _, cur := range spans {
		if len(merged) > 0 {
			last := &merged[len(merged)-1]
			if uint64(cur.Low) <= uint64(last.High)+1 {
				if cur.High > last.High {
					last.High = cur.High
				}
				continue
			}
		}
		merged = append(merged, cur)
	}
	s.spans = merged
}

// Contains reports whether id is a member of the set.
func (s *IdSet) Contains(id ids.Id) bool {
	i := sort.Search(len(s.spans), func(i int) bool { return s.spans[i].High >= id })
	return i < len(s.spans) && s.spans[i].Contains(id)
}

// Spans returns the set's normalized spans in ascending order. The returned
// slice must not be mutated.
func (s *IdSet) Spans() []ids.Span {
	return s.spans
}

// Len returns the total number of ids the set contains.
func (s *IdSet) Len() uint64 {
	var total uint64
	for _, sp := range s.spans {
		total += sp.Len()
	}
	return total
}

// IsEmpty reports whether the set has no members.
func (s *IdSet) IsEmpty() bool {
	return len(s.spans) == 0
}

// Union returns a new IdSet containing every id in s or other.
func (s *IdSet) Union(other *IdSet) *IdSet {
	out := FromSpans(s.spans...)
	for _, sp := range other.spans {
		out.AddSpan(sp)
	}
	return out
}

// Difference returns a new IdSet containing every id in s that is not in
// other.
func (s *IdSet) Difference(other *IdSet) *IdSet {
	out := &IdSet{}
	for _, sp := range s.spans {
		cur := sp
		for _, osp := range other.spans {
			if osp.High < cur.Low || osp.Low > cur.High {
				continue
			}
			if osp.Low > cur.Low {
				out.AddSpan(ids.Span{Low: cur.Low, High: osp.Low.Prev()})
			}
			cur.Low = osp.High.Next()
			if cur.Low > cur.High {
				break
			}
		}
		if cur.Low <= cur.High {
			out.AddSpan(cur)
		}
	}
	return out
}

// Intersect returns a new IdSet containing every id present in both s and
// other.
func (s *IdSet) Intersect(other *IdSet) *IdSet {
	out := &IdSet{}
	i, j := 0, 0
	for i < len(s.spans) && j < len(other.spans) {
		a, b := s.spans[i], other.spans[j]
		lo := a.Low
		if b.Low > lo {
			lo = b.Low
		}
		hi := a.High
		if b.High < hi {
			hi = b.High
		}
		if lo <= hi {
			out.AddSpan(ids.Span{Low: lo, High: hi})
		}
		if a.High < b.High {
			i++
		} else {
			j++
		}
	}
	return out
}
