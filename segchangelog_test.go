package segchangelog

import (
	"context"
	"testing"
	"time"

	"github.com/iamNilotpal/segchangelog/pkg/ids"
	"github.com/iamNilotpal/segchangelog/pkg/options"
	"github.com/iamNilotpal/segchangelog/pkg/segment"
	"github.com/iamNilotpal/segchangelog/pkg/vertex"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct{ parents map[string][]vertex.Vertex }

func (f *fakeFetcher) GetParents(ctx context.Context, v vertex.Vertex) ([]vertex.Vertex, error) {
	return f.parents[v.Hex()], nil
}

type fakeBookmarks struct{ name map[string]vertex.Vertex }

func (b *fakeBookmarks) Get(ctx context.Context, name string) (vertex.Vertex, bool, error) {
	v, ok := b.name[name]
	return v, ok, nil
}

func hv(t *testing.T, s string) vertex.Vertex {
	t.Helper()
	v, err := vertex.FromHex(s)
	require.NoError(t, err)
	return v
}

// TestRepo_OpenBuildQueryClose exercises the full lifecycle end to end: open
// a Repo, grow it up to a bookmark, query it through the Facade surface,
// then close it.
func TestRepo_OpenBuildQueryClose(t *testing.T) {
	a, b, c := hv(t, "aa"), hv(t, "bb"), hv(t, "cc")
	fetcher := &fakeFetcher{parents: map[string][]vertex.Vertex{
		b.Hex(): {a},
		c.Hex(): {b},
	}}
	bookmarks := &fakeBookmarks{name: map[string]vertex.Vertex{"master": c}}

	repo, err := Open(context.Background(), "test", Collaborators{Fetcher: fetcher, Bookmarks: bookmarks},
		options.WithDataDir(t.TempDir()), options.WithMetricsRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	defer func() { require.NoError(t, repo.Close()) }()

	require.NoError(t, repo.BuildUpToBookmark(context.Background()))

	ok, known, err := repo.IsAncestor(context.Background(), a, c)
	require.NoError(t, err)
	require.True(t, known)
	require.True(t, ok)

	got, err := repo.LocationToManyChangesetIds(context.Background(), c, 0, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.True(t, got[0].Equal(c))
	require.True(t, got[2].Equal(a))

	cd, err := repo.CloneData(context.Background())
	require.NoError(t, err)
	require.Len(t, cd.IdMap, 3)
}

// TestRepo_PeriodicUpdaterGrowsInBackground confirms a Repo opened with a
// periodic update period converges on the master bookmark without any
// caller explicitly driving BuildUpToBookmark.
func TestRepo_PeriodicUpdaterGrowsInBackground(t *testing.T) {
	a, b := hv(t, "aa"), hv(t, "bb")
	fetcher := &fakeFetcher{parents: map[string][]vertex.Vertex{b.Hex(): {a}}}
	bookmarks := &fakeBookmarks{name: map[string]vertex.Vertex{"master": b}}

	repo, err := Open(context.Background(), "test", Collaborators{Fetcher: fetcher, Bookmarks: bookmarks},
		options.WithDataDir(t.TempDir()), options.WithPeriodicUpdatePeriod(5*time.Millisecond),
		options.WithMetricsRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	defer func() { require.NoError(t, repo.Close()) }()

	require.Eventually(t, func() bool {
		_, known, err := repo.IsAncestor(context.Background(), a, b)
		return err == nil && known
	}, 2*time.Second, 10*time.Millisecond)
}

// TestRepo_RemoveNonMaster wipes a scratch NON_MASTER commit out of both
// backing stores while leaving MASTER untouched.
func TestRepo_RemoveNonMaster(t *testing.T) {
	master := hv(t, "aa")
	draft := hv(t, "bb")

	repo, err := Open(context.Background(), "test",
		Collaborators{Fetcher: &fakeFetcher{}, Bookmarks: &fakeBookmarks{}},
		options.WithDataDir(t.TempDir()), options.WithMetricsRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	defer func() { require.NoError(t, repo.Close()) }()

	masterId := ids.MakeId(ids.MASTER, 0)
	require.NoError(t, repo.idmap.Insert(context.Background(), masterId, master))
	require.NoError(t, repo.seg.InsertSegment(context.Background(), segment.Segment{
		Flags: segment.FlagHasRoot | segment.FlagOnlyHead, Level: 0, Low: masterId, High: masterId,
	}))

	draftId := ids.NonMaster.MinId()
	require.NoError(t, repo.idmap.Insert(context.Background(), draftId, draft))
	require.NoError(t, repo.seg.InsertSegment(context.Background(), segment.Segment{
		Flags: segment.FlagHasRoot | segment.FlagOnlyHead, Level: 0, Low: draftId, High: draftId,
	}))

	_, err = repo.idmap.VertexId(draft)
	require.NoError(t, err)

	require.NoError(t, repo.RemoveNonMaster(context.Background()))

	_, err = repo.idmap.VertexId(draft)
	require.Error(t, err)
	_, err = repo.idmap.VertexId(master)
	require.NoError(t, err)
	require.Equal(t, ids.NonMaster.MinId(), repo.idmap.NextFreeId(ids.NonMaster))
}
