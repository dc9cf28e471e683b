package segstore

import (
	"context"
	"testing"

	"github.com/iamNilotpal/segchangelog/pkg/ids"
	"github.com/iamNilotpal/segchangelog/pkg/logger"
	"github.com/iamNilotpal/segchangelog/pkg/metrics"
	"github.com/iamNilotpal/segchangelog/pkg/options"
	"github.com/iamNilotpal/segchangelog/pkg/segment"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	opts := options.NewDefaultOptions()
	s, err := Open(context.Background(), &Config{
		DataDir: dir,
		Options: &opts,
		Logger:  logger.Nop(),
		Metrics: metrics.NewMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Scenario A: linear append. Inserting a root followed by three single-
// parent commits must merge into one flat segment {0..=3}.
func TestInsertSegment_LinearAppendMerges(t *testing.T) {
	s := newTestStore(t)

	root := segment.Segment{Flags: segment.FlagHasRoot | segment.FlagOnlyHead, Level: 0, Low: 0, High: 0}
	require.NoError(t, s.InsertSegment(context.Background(), root))

	for i := uint64(1); i <= 3; i++ {
		id := ids.MakeId(ids.MASTER, i)
		seg := segment.Segment{
			Flags:   segment.FlagOnlyHead,
			Level:   0,
			Low:     id,
			High:    id,
			Parents: []ids.Id{ids.MakeId(ids.MASTER, i-1)},
		}
		require.NoError(t, s.InsertSegment(context.Background(), seg))
	}

	got, ok, err := s.FindSegmentByHeadAndLevel(ids.MakeId(ids.MASTER, 3), 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ids.MakeId(ids.MASTER, 0), got.Low)
	require.Equal(t, ids.MakeId(ids.MASTER, 3), got.High)
	require.Empty(t, got.Parents)
	require.True(t, got.Flags.HasRoot())

	_, ok, err = s.FindSegmentByHeadAndLevel(ids.MakeId(ids.MASTER, 0), 0)
	require.NoError(t, err)
	require.False(t, ok, "superseded segment must not remain reachable via level-head")

	require.Equal(t, ids.MakeId(ids.MASTER, 4), s.NextFreeId(ids.MASTER))
}

// Scenario B: fork. A then two children B, C of A, then a merge M of
// {B, C}. A and B merge (B is A's sole immediate single-parent successor),
// but C cannot merge into that combined segment (C's parent is A, not the
// combined segment's new high), and M cannot merge into C's segment (M has
// two parents). The merge commit's parents must therefore survive as a
// distinct, un-merged flat segment.
func TestInsertSegment_ForkDoesNotMergeAcrossDifferingParents(t *testing.T) {
	s := newTestStore(t)

	a := segment.Segment{Flags: segment.FlagHasRoot, Level: 0, Low: ids.MakeId(ids.MASTER, 0), High: ids.MakeId(ids.MASTER, 0)}
	require.NoError(t, s.InsertSegment(context.Background(), a))

	b := segment.Segment{Level: 0, Low: ids.MakeId(ids.MASTER, 1), High: ids.MakeId(ids.MASTER, 1), Parents: []ids.Id{ids.MakeId(ids.MASTER, 0)}}
	require.NoError(t, s.InsertSegment(context.Background(), b))

	c := segment.Segment{Level: 0, Low: ids.MakeId(ids.MASTER, 2), High: ids.MakeId(ids.MASTER, 2), Parents: []ids.Id{ids.MakeId(ids.MASTER, 0)}}
	require.NoError(t, s.InsertSegment(context.Background(), c))

	merge := segment.Segment{
		Flags: segment.FlagOnlyHead, Level: 0,
		Low: ids.MakeId(ids.MASTER, 3), High: ids.MakeId(ids.MASTER, 3),
		Parents: []ids.Id{ids.MakeId(ids.MASTER, 1), ids.MakeId(ids.MASTER, 2)},
	}
	require.NoError(t, s.InsertSegment(context.Background(), merge))

	got, ok, err := s.FindSegmentByHeadAndLevel(ids.MakeId(ids.MASTER, 3), 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ids.MakeId(ids.MASTER, 3), got.Low, "merge commit must not have been absorbed into a parent's segment")
	require.Len(t, got.Parents, 2)

	cSeg, ok, err := s.FindSegmentByHeadAndLevel(ids.MakeId(ids.MASTER, 2), 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ids.MakeId(ids.MASTER, 2), cSeg.Low, "C must not have merged with the combined A-B segment")

	var children []ids.Id
	require.NoError(t, s.IterFlatSegmentsWithParent(ids.MASTER, ids.MakeId(ids.MASTER, 0), func(low ids.Id) bool {
		children = append(children, low)
		return true
	}))
	require.Equal(t, []ids.Id{ids.MakeId(ids.MASTER, 2)}, children, "B was absorbed into A's segment, so only C's flat segment still externally references A")
}

// Scenario F: merge-on-append idempotence. Reloading the store from disk
// must see exactly the merged result, not the superseded intermediate
// segments the REWRITE_LAST_FLAT records replaced.
func TestStore_ReplayAfterRestartMergesCorrectly(t *testing.T) {
	dir := t.TempDir()
	opts := options.NewDefaultOptions()

	s1, err := Open(context.Background(), &Config{DataDir: dir, Options: &opts, Logger: logger.Nop(), Metrics: metrics.NewMetrics(prometheus.NewRegistry())})
	require.NoError(t, err)

	a := segment.Segment{Flags: segment.FlagHasRoot | segment.FlagOnlyHead, Level: 0, Low: 0, High: 0}
	require.NoError(t, s1.InsertSegment(context.Background(), a))
	b := segment.Segment{Flags: segment.FlagOnlyHead, Level: 0, Low: ids.MakeId(ids.MASTER, 1), High: ids.MakeId(ids.MASTER, 1), Parents: []ids.Id{ids.MakeId(ids.MASTER, 0)}}
	require.NoError(t, s1.InsertSegment(context.Background(), b))
	c := segment.Segment{Flags: segment.FlagOnlyHead, Level: 0, Low: ids.MakeId(ids.MASTER, 2), High: ids.MakeId(ids.MASTER, 2), Parents: []ids.Id{ids.MakeId(ids.MASTER, 1)}}
	require.NoError(t, s1.InsertSegment(context.Background(), c))
	require.NoError(t, s1.Close())

	s2, err := Open(context.Background(), &Config{DataDir: dir, Options: &opts, Logger: logger.Nop(), Metrics: metrics.NewMetrics(prometheus.NewRegistry())})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s2.Close() })

	got, ok, err := s2.FindSegmentByHeadAndLevel(ids.MakeId(ids.MASTER, 2), 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ids.Id(0), got.Low)

	for _, high := range []ids.Id{0, ids.MakeId(ids.MASTER, 1)} {
		_, ok, err := s2.FindSegmentByHeadAndLevel(high, 0)
		require.NoError(t, err)
		require.False(t, ok)
	}
}

func TestRemoveNonMaster_ClearsOnlyNonMaster(t *testing.T) {
	s := newTestStore(t)

	master := segment.Segment{Flags: segment.FlagHasRoot | segment.FlagOnlyHead, Level: 0, Low: ids.MakeId(ids.MASTER, 0), High: ids.MakeId(ids.MASTER, 0)}
	require.NoError(t, s.InsertSegment(context.Background(), master))

	draft := segment.Segment{Flags: segment.FlagHasRoot | segment.FlagOnlyHead, Level: 0, Low: ids.NonMaster.MinId(), High: ids.NonMaster.MinId()}
	require.NoError(t, s.InsertSegment(context.Background(), draft))

	require.NoError(t, s.RemoveNonMaster(context.Background()))

	_, ok, err := s.FindSegmentByHeadAndLevel(ids.NonMaster.MinId(), 0)
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = s.FindSegmentByHeadAndLevel(ids.MakeId(ids.MASTER, 0), 0)
	require.NoError(t, err)
	require.True(t, ok, "MASTER segments must survive remove_non_master")

	require.Equal(t, ids.NonMaster.MinId(), s.NextFreeId(ids.NonMaster))
}
