package iddag

import (
	"context"
	"testing"

	"github.com/iamNilotpal/segchangelog/internal/segstore"
	"github.com/iamNilotpal/segchangelog/pkg/dagset"
	"github.com/iamNilotpal/segchangelog/pkg/ids"
	"github.com/iamNilotpal/segchangelog/pkg/logger"
	"github.com/iamNilotpal/segchangelog/pkg/metrics"
	"github.com/iamNilotpal/segchangelog/pkg/options"
	"github.com/iamNilotpal/segchangelog/pkg/segment"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *segstore.Store {
	t.Helper()
	dir := t.TempDir()
	opts := options.NewDefaultOptions()
	s, err := segstore.Open(context.Background(), &segstore.Config{
		DataDir: dir,
		Options: &opts,
		Logger:  logger.Nop(),
		Metrics: metrics.NewMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// buildLinearChain inserts a root plus n single-parent commits (Scenario A
// shape): a single flat segment {0..=n}.
func buildLinearChain(t *testing.T, s *segstore.Store, n uint64) {
	t.Helper()
	root := segment.Segment{Flags: segment.FlagHasRoot | segment.FlagOnlyHead, Level: 0, Low: 0, High: 0}
	require.NoError(t, s.InsertSegment(context.Background(), root))
	for i := uint64(1); i <= n; i++ {
		id := ids.MakeId(ids.MASTER, i)
		seg := segment.Segment{
			Flags: segment.FlagOnlyHead, Level: 0, Low: id, High: id,
			Parents: []ids.Id{ids.MakeId(ids.MASTER, i-1)},
		}
		require.NoError(t, s.InsertSegment(context.Background(), seg))
	}
}

// buildFork reproduces Scenario B: A, then B,C both parented on A, then a
// merge M of {B,C}.
func buildFork(t *testing.T, s *segstore.Store) {
	t.Helper()
	a := segment.Segment{Flags: segment.FlagHasRoot, Level: 0, Low: ids.MakeId(ids.MASTER, 0), High: ids.MakeId(ids.MASTER, 0)}
	require.NoError(t, s.InsertSegment(context.Background(), a))
	b := segment.Segment{Level: 0, Low: ids.MakeId(ids.MASTER, 1), High: ids.MakeId(ids.MASTER, 1), Parents: []ids.Id{ids.MakeId(ids.MASTER, 0)}}
	require.NoError(t, s.InsertSegment(context.Background(), b))
	c := segment.Segment{Level: 0, Low: ids.MakeId(ids.MASTER, 2), High: ids.MakeId(ids.MASTER, 2), Parents: []ids.Id{ids.MakeId(ids.MASTER, 0)}}
	require.NoError(t, s.InsertSegment(context.Background(), c))
	m := segment.Segment{
		Flags: segment.FlagOnlyHead, Level: 0,
		Low: ids.MakeId(ids.MASTER, 3), High: ids.MakeId(ids.MASTER, 3),
		Parents: []ids.Id{ids.MakeId(ids.MASTER, 1), ids.MakeId(ids.MASTER, 2)},
	}
	require.NoError(t, s.InsertSegment(context.Background(), m))
}

// Scenario A round-trip: is_ancestor(A,D) and a full first-parent walk.
func TestAncestorsAndIsAncestor_LinearChain(t *testing.T) {
	s := newTestStore(t)
	buildLinearChain(t, s, 3)
	dag := New(s)

	d3 := ids.MakeId(ids.MASTER, 3)
	anc, err := dag.Ancestors(dagset.FromIds(d3))
	require.NoError(t, err)
	require.Equal(t, uint64(4), anc.Len())

	ok, err := dag.IsAncestor(ids.MakeId(ids.MASTER, 0), d3)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = dag.IsAncestor(d3, ids.MakeId(ids.MASTER, 0))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFirstAncestorNth_LinearChain(t *testing.T) {
	s := newTestStore(t)
	buildLinearChain(t, s, 3)
	dag := New(s)

	d3 := ids.MakeId(ids.MASTER, 3)
	got, err := dag.FirstAncestorNth(d3, 0)
	require.NoError(t, err)
	require.Equal(t, d3, got)

	got, err = dag.FirstAncestorNth(d3, 3)
	require.NoError(t, err)
	require.Equal(t, ids.MakeId(ids.MASTER, 0), got)

	_, err = dag.FirstAncestorNth(d3, 4)
	require.Error(t, err)
}

// Scenario B: is_ancestor across the fork, and that the merge's two parents
// are each other's independent ancestors only through the fork point.
func TestAncestors_Fork(t *testing.T) {
	s := newTestStore(t)
	buildFork(t, s)
	dag := New(s)

	m := ids.MakeId(ids.MASTER, 3)
	anc, err := dag.Ancestors(dagset.FromIds(m))
	require.NoError(t, err)
	require.Equal(t, uint64(4), anc.Len())

	okAM, err := dag.IsAncestor(ids.MakeId(ids.MASTER, 0), m)
	require.NoError(t, err)
	require.True(t, okAM)

	okBC, err := dag.IsAncestor(ids.MakeId(ids.MASTER, 1), ids.MakeId(ids.MASTER, 2))
	require.NoError(t, err)
	require.False(t, okBC)
}

func TestCurrentMasterHeadsAndUniversalIds_Fork(t *testing.T) {
	s := newTestStore(t)
	buildFork(t, s)
	dag := New(s)

	heads, err := dag.CurrentMasterHeads()
	require.NoError(t, err)
	require.Equal(t, []ids.Id{ids.MakeId(ids.MASTER, 3)}, heads)

	universal, err := dag.UniversalIds()
	require.NoError(t, err)
	require.Equal(t, uint64(4), universal.Len())
}

func TestToFirstAncestorNth_FindsClosestUniversalMember(t *testing.T) {
	s := newTestStore(t)
	buildLinearChain(t, s, 5)
	dag := New(s)

	universal := dagset.FromSpans(ids.Span{Low: ids.MakeId(ids.MASTER, 0), High: ids.MakeId(ids.MASTER, 2)})
	ancestor, distance, found, err := dag.ToFirstAncestorNth(ids.MakeId(ids.MASTER, 5), universal)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, ids.MakeId(ids.MASTER, 2), ancestor)
	require.Equal(t, uint64(3), distance)
}

func TestIdSetToFlatSegments_TrimsToSpan(t *testing.T) {
	s := newTestStore(t)
	buildLinearChain(t, s, 3) // single merged flat segment {0..=3}
	dag := New(s)

	set := dagset.FromSpans(ids.Span{Low: ids.MakeId(ids.MASTER, 1), High: ids.MakeId(ids.MASTER, 2)})
	segs, err := dag.IdSetToFlatSegments(set)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	require.Equal(t, ids.MakeId(ids.MASTER, 1), segs[0].Low)
	require.Equal(t, ids.MakeId(ids.MASTER, 2), segs[0].High)
	require.Equal(t, []ids.Id{ids.MakeId(ids.MASTER, 0)}, segs[0].Parents)
	require.False(t, segs[0].Flags.HasRoot(), "trimmed segment does not start at the original root")
}

func TestBuildFlatSegments_CutsOnNonLinearParent(t *testing.T) {
	assignments := []NewAssignment{
		{Id: ids.MakeId(ids.MASTER, 0)},
		{Id: ids.MakeId(ids.MASTER, 1), Parents: []ids.Id{ids.MakeId(ids.MASTER, 0)}},
		{Id: ids.MakeId(ids.MASTER, 2), Parents: []ids.Id{ids.MakeId(ids.MASTER, 0)}},
	}
	segs := BuildFlatSegments(assignments)
	require.Len(t, segs, 2)
	require.Equal(t, ids.MakeId(ids.MASTER, 0), segs[0].Low)
	require.Equal(t, ids.MakeId(ids.MASTER, 1), segs[0].High)
	require.True(t, segs[0].Flags.HasRoot())
	require.Equal(t, ids.MakeId(ids.MASTER, 2), segs[1].Low)
	require.True(t, segs[1].Flags.OnlyHead())
}
