package facade

import (
	"context"
	"testing"

	"github.com/iamNilotpal/segchangelog/internal/idmapstore"
	"github.com/iamNilotpal/segchangelog/internal/iddag"
	"github.com/iamNilotpal/segchangelog/internal/segstore"
	"github.com/iamNilotpal/segchangelog/pkg/ids"
	"github.com/iamNilotpal/segchangelog/pkg/logger"
	"github.com/iamNilotpal/segchangelog/pkg/metrics"
	"github.com/iamNilotpal/segchangelog/pkg/options"
	"github.com/iamNilotpal/segchangelog/pkg/segment"
	"github.com/iamNilotpal/segchangelog/pkg/serrors"
	"github.com/iamNilotpal/segchangelog/pkg/vertex"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// testRepo wires a Segment Store, an IdMap Store, and a Facade together, and
// provides a helper to insert a commit into both stores in one step — the
// same two-store write every real caller (the Updater) performs.
type testRepo struct {
	t      *testing.T
	seg    *segstore.Store
	idmap  *idmapstore.Store
	facade *Facade
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	dir := t.TempDir()
	opts := options.NewDefaultOptions()
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	seg, err := segstore.Open(context.Background(), &segstore.Config{DataDir: dir, Options: &opts, Logger: logger.Nop(), Metrics: m})
	require.NoError(t, err)
	t.Cleanup(func() { _ = seg.Close() })

	idmap, err := idmapstore.Open(context.Background(), &idmapstore.Config{DataDir: dir, Options: &opts, Logger: logger.Nop(), Metrics: m})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idmap.Close() })

	dag := iddag.New(seg)
	return &testRepo{t: t, seg: seg, idmap: idmap, facade: New(dag, idmap)}
}

func (r *testRepo) commit(v vertex.Vertex, id ids.Id, flags segment.Flags, parents ...ids.Id) {
	r.t.Helper()
	require.NoError(r.t, r.idmap.Insert(context.Background(), id, v))
	seg := segment.Segment{Flags: flags, Level: 0, Low: id, High: id, Parents: parents}
	require.NoError(r.t, r.seg.InsertSegment(context.Background(), seg))
}

func hv(t *testing.T, s string) vertex.Vertex {
	t.Helper()
	v, err := vertex.FromHex(s)
	require.NoError(t, err)
	return v
}

// Scenario A: linear append, location_to_many_changeset_ids walking back
// from D should return D,C,B,A.
func TestLocationToManyChangesetIds_LinearChain(t *testing.T) {
	r := newTestRepo(t)
	a, b, c, d := hv(t, "aa"), hv(t, "bb"), hv(t, "cc"), hv(t, "dd")

	r.commit(a, ids.MakeId(ids.MASTER, 0), segment.FlagHasRoot)
	r.commit(b, ids.MakeId(ids.MASTER, 1), 0, ids.MakeId(ids.MASTER, 0))
	r.commit(c, ids.MakeId(ids.MASTER, 2), 0, ids.MakeId(ids.MASTER, 1))
	r.commit(d, ids.MakeId(ids.MASTER, 3), segment.FlagOnlyHead, ids.MakeId(ids.MASTER, 2))

	got, err := r.facade.LocationToManyChangesetIds(context.Background(), d, 0, 4)
	require.NoError(t, err)
	require.Len(t, got, 4)
	require.True(t, got[0].Equal(d))
	require.True(t, got[1].Equal(c))
	require.True(t, got[2].Equal(b))
	require.True(t, got[3].Equal(a))
}

func TestLocationToManyChangesetIds_ZeroCountIsEmpty(t *testing.T) {
	r := newTestRepo(t)
	a := hv(t, "aa")
	r.commit(a, ids.MakeId(ids.MASTER, 0), segment.FlagHasRoot|segment.FlagOnlyHead)

	got, err := r.facade.LocationToManyChangesetIds(context.Background(), a, 0, 0)
	require.NoError(t, err)
	require.Empty(t, got)
}

// Scenario B: walking past a merge commit into its two parents is ambiguous.
func TestLocationToManyChangesetIds_AmbiguousAtMergeBoundary(t *testing.T) {
	r := newTestRepo(t)
	a, b, c, m := hv(t, "aa"), hv(t, "bb"), hv(t, "cc"), hv(t, "dd")

	r.commit(a, ids.MakeId(ids.MASTER, 0), segment.FlagHasRoot)
	r.commit(b, ids.MakeId(ids.MASTER, 1), 0, ids.MakeId(ids.MASTER, 0))
	r.commit(c, ids.MakeId(ids.MASTER, 2), 0, ids.MakeId(ids.MASTER, 0))
	r.commit(m, ids.MakeId(ids.MASTER, 3), segment.FlagOnlyHead, ids.MakeId(ids.MASTER, 1), ids.MakeId(ids.MASTER, 2))

	_, err := r.facade.LocationToManyChangesetIds(context.Background(), m, 0, 2)
	require.Error(t, err)
	var ambiguous *serrors.AmbiguousError
	require.ErrorAs(t, err, &ambiguous)
}

func TestManyChangesetIdsToLocations_DistancesFromMasterHead(t *testing.T) {
	r := newTestRepo(t)
	a, b, c := hv(t, "aa"), hv(t, "bb"), hv(t, "cc")
	r.commit(a, ids.MakeId(ids.MASTER, 0), segment.FlagHasRoot)
	r.commit(b, ids.MakeId(ids.MASTER, 1), 0, ids.MakeId(ids.MASTER, 0))
	r.commit(c, ids.MakeId(ids.MASTER, 2), segment.FlagOnlyHead, ids.MakeId(ids.MASTER, 1))

	out, err := r.facade.ManyChangesetIdsToLocations(context.Background(), []vertex.Vertex{c}, []vertex.Vertex{a, b, c})
	require.NoError(t, err)

	require.NoError(t, out[a.Hex()].Err)
	require.Equal(t, uint64(2), out[a.Hex()].Location.Distance)
	require.NoError(t, out[c.Hex()].Err)
	require.Equal(t, uint64(0), out[c.Hex()].Location.Distance)
}

func TestIsAncestor_ResolvesOrReportsUnknown(t *testing.T) {
	r := newTestRepo(t)
	a, b := hv(t, "aa"), hv(t, "bb")
	r.commit(a, ids.MakeId(ids.MASTER, 0), segment.FlagHasRoot)
	r.commit(b, ids.MakeId(ids.MASTER, 1), segment.FlagOnlyHead, ids.MakeId(ids.MASTER, 0))

	ok, known, err := r.facade.IsAncestor(context.Background(), a, b)
	require.NoError(t, err)
	require.True(t, known)
	require.True(t, ok)

	_, known, err = r.facade.IsAncestor(context.Background(), a, hv(t, "ffff"))
	require.NoError(t, err)
	require.False(t, known)
}

// Scenario E: pull_fast_forward_master from A to C over A<-B<-C.
func TestPullFastForwardMaster_ReturnsAncestorDelta(t *testing.T) {
	r := newTestRepo(t)
	a, b, c := hv(t, "aa"), hv(t, "bb"), hv(t, "cc")
	r.commit(a, ids.MakeId(ids.MASTER, 0), segment.FlagHasRoot)
	r.commit(b, ids.MakeId(ids.MASTER, 1), 0, ids.MakeId(ids.MASTER, 0))
	r.commit(c, ids.MakeId(ids.MASTER, 2), segment.FlagOnlyHead, ids.MakeId(ids.MASTER, 1))

	cd, err := r.facade.PullFastForwardMaster(context.Background(), a, c)
	require.NoError(t, err)

	require.Contains(t, cd.IdMap, uint64(ids.MakeId(ids.MASTER, 1)))
	require.Contains(t, cd.IdMap, uint64(ids.MakeId(ids.MASTER, 2)))
	require.Contains(t, cd.IdMap, uint64(ids.MakeId(ids.MASTER, 0)), "boundary parent must be included so the peer can attach the delta")

	var total uint64
	for _, seg := range cd.FlatSegments {
		total += seg.High - seg.Low + 1
	}
	require.Equal(t, uint64(2), total)
}

func TestPullFastForwardMaster_RejectsNonAncestor(t *testing.T) {
	r := newTestRepo(t)
	a, b, c := hv(t, "aa"), hv(t, "bb"), hv(t, "cc")
	r.commit(a, ids.MakeId(ids.MASTER, 0), segment.FlagHasRoot)
	r.commit(b, ids.MakeId(ids.MASTER, 1), segment.FlagOnlyHead, ids.MakeId(ids.MASTER, 0))
	r.commit(c, ids.MakeId(ids.MASTER, 2), segment.FlagOnlyHead, ids.MakeId(ids.MASTER, 0))

	_, err := r.facade.PullFastForwardMaster(context.Background(), b, c)
	require.Error(t, err)
}

func TestCloneData_CoversUniversalIds(t *testing.T) {
	r := newTestRepo(t)
	a, b := hv(t, "aa"), hv(t, "bb")
	r.commit(a, ids.MakeId(ids.MASTER, 0), segment.FlagHasRoot)
	r.commit(b, ids.MakeId(ids.MASTER, 1), segment.FlagOnlyHead, ids.MakeId(ids.MASTER, 0))

	cd, err := r.facade.CloneData(context.Background())
	require.NoError(t, err)
	require.Len(t, cd.FlatSegments, 1)
	require.Len(t, cd.IdMap, 2)
}

func TestFullIdmapCloneData_StreamsAllChunks(t *testing.T) {
	r := newTestRepo(t)
	for i := uint64(0); i < 5; i++ {
		v := hv(t, "aa")
		v = append(v, byte(i))
		flags := segment.Flags(0)
		if i == 0 {
			flags |= segment.FlagHasRoot
		}
		if i == 4 {
			flags |= segment.FlagOnlyHead
		}
		var parents []ids.Id
		if i > 0 {
			parents = []ids.Id{ids.MakeId(ids.MASTER, i-1)}
		}
		r.commit(v, ids.MakeId(ids.MASTER, i), flags, parents...)
	}

	out, errc := r.facade.FullIdmapCloneData(context.Background())
	count := 0
	for chunk := range out {
		count += len(chunk.Entries)
	}
	require.NoError(t, <-errc)
	require.Equal(t, 5, count)
}
