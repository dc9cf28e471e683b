// Package updater implements the on-demand update controller: the
// concurrency layer sitting in front of the read-only Facade that grows the
// IdMap and IdDag when a query names a commit they do not yet cover. A
// single in-flight update is shared across concurrent callers via
// golang.org/x/sync/singleflight, mirroring the "ongoing-update slot"
// design: one mutex guards only the decision of who leads, never the I/O
// itself.
package updater

import (
	"context"
	"sync"
	"time"

	"github.com/iamNilotpal/segchangelog/internal/idmapstore"
	"github.com/iamNilotpal/segchangelog/internal/iddag"
	"github.com/iamNilotpal/segchangelog/internal/segstore"
	"github.com/iamNilotpal/segchangelog/pkg/collab"
	"github.com/iamNilotpal/segchangelog/pkg/ids"
	"github.com/iamNilotpal/segchangelog/pkg/metrics"
	"github.com/iamNilotpal/segchangelog/pkg/serrors"
	"github.com/iamNilotpal/segchangelog/pkg/vertex"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const masterBookmarkName = "master"

// Updater drives incremental extension of the IdMap and IdDag from a
// ChangesetFetcher and a Bookmarks collaborator.
type Updater struct {
	seg   *segstore.Store
	idmap *idmapstore.Store
	dag   *iddag.IdDag

	fetcher   collab.ChangesetFetcher
	bookmarks collab.Bookmarks

	// dagMu is the in-process write lock update_iddag holds exclusively
	// while extending the IdMap and appending segments. Query paths never
	// take it; they read whatever is currently persisted.
	dagMu sync.Mutex

	// group implements the ongoing-update slot: concurrent TryUpdate
	// callers collapse onto whichever one's call started the flight, and
	// every other caller blocks on it and shares its result.
	group singleflight.Group

	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
}

// Config holds the collaborators and stores an Updater is built from.
type Config struct {
	SegmentStore *segstore.Store
	IdMapStore   *idmapstore.Store
	Dag          *iddag.IdDag
	Fetcher      collab.ChangesetFetcher
	Bookmarks    collab.Bookmarks
	Logger       *zap.SugaredLogger
	Metrics      *metrics.Metrics
}

// New builds an Updater from cfg.
func New(cfg *Config) *Updater {
	return &Updater{
		seg:       cfg.SegmentStore,
		idmap:     cfg.IdMapStore,
		dag:       cfg.Dag,
		fetcher:   cfg.Fetcher,
		bookmarks: cfg.Bookmarks,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}
}

// TryUpdate is the single-flight primitive: singleflight.Group guarantees
// that only the caller whose Do call actually starts a fresh flight for key
// "update" has its closure invoked, so performed is set from inside that
// closure — every other concurrent caller joins the same flight, never runs
// its own closure, and returns performed=false with the shared result.
func (u *Updater) TryUpdate(ctx context.Context, head vertex.Vertex) (performed bool, err error) {
	_, err, _ = u.group.Do("update", func() (any, error) {
		performed = true
		return nil, u.actualUpdate(ctx, head)
	})
	return performed, err
}

// actualUpdate walks head's unassigned ancestry, then extends the IdMap and
// IdDag with exactly the new commits found. It is a no-op if head is
// already assigned.
func (u *Updater) actualUpdate(ctx context.Context, head vertex.Vertex) error {
	start := time.Now()

	assignments, order, err := u.prepareIncrementalUpdate(ctx, head, ids.MASTER)
	if err != nil {
		return err
	}
	if len(assignments) == 0 {
		return nil
	}

	u.dagMu.Lock()
	defer u.dagMu.Unlock()

	for i, a := range assignments {
		if err := u.idmap.Insert(ctx, a.Id, order[i]); err != nil {
			return err
		}
	}

	flats := iddag.BuildFlatSegments(assignments)
	for _, seg := range flats {
		if err := u.seg.InsertSegment(ctx, seg); err != nil {
			return err
		}
	}

	u.metrics.UpdatesTotal.Inc()
	u.metrics.UpdateDurationSeconds.Observe(time.Since(start).Seconds())
	return nil
}

// BuildUpToCs repeatedly attempts (or waits on) an update until cs resolves
// in the IdMap. Only MASTER is supported. The loop terminates because every
// actual update strictly reduces cs's unassigned-ancestors set.
func (u *Updater) BuildUpToCs(ctx context.Context, cs vertex.Vertex, group ids.Group) error {
	if group != ids.MASTER {
		return serrors.NewGroupViolationError(group.String(), "build_up_to_cs", "only MASTER is supported")
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		performed, err := u.TryUpdate(ctx, cs)
		u.metrics.UpdateTriesTotal.Inc()
		if err != nil {
			return err
		}
		if performed {
			return nil
		}

		if _, err := u.idmap.VertexId(cs); err == nil {
			return nil
		} else if !serrors.IsNotFound(err) {
			return err
		}
	}
}

// BuildUpToBookmark resolves the master bookmark and builds up to it. A
// missing bookmark is a hard error, not a NotFound the caller can retry
// through.
func (u *Updater) BuildUpToBookmark(ctx context.Context) error {
	v, ok, err := u.bookmarks.Get(ctx, masterBookmarkName)
	if err != nil {
		return serrors.NewExternalError(err, "Bookmarks", "failed to read master bookmark")
	}
	if !ok {
		return serrors.NewExternalError(nil, "Bookmarks", "master bookmark not found")
	}
	return u.BuildUpToCs(ctx, v, ids.MASTER)
}

// BuildUpToHeads succeeds immediately if every head already resolves.
// Otherwise it builds up to the master bookmark and re-checks, failing with
// MismatchedHeadsError naming whatever remains unassigned.
func (u *Updater) BuildUpToHeads(ctx context.Context, heads []vertex.Vertex) error {
	if u.allAssigned(heads) {
		return nil
	}
	if err := u.BuildUpToBookmark(ctx); err != nil {
		return err
	}

	var offending []string
	for _, h := range heads {
		if _, err := u.idmap.VertexId(h); err != nil {
			offending = append(offending, h.Hex())
		}
	}
	if len(offending) > 0 {
		return serrors.NewMismatchedHeadsError(offending)
	}
	return nil
}

func (u *Updater) allAssigned(heads []vertex.Vertex) bool {
	for _, h := range heads {
		if _, err := u.idmap.VertexId(h); err != nil {
			return false
		}
	}
	return true
}
