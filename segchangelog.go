// Package segchangelog implements a segmented changelog: a commit-DAG
// ancestry index that answers queries — is-ancestor, location round trips,
// clone payloads — without ever walking the full history, by layering an
// append-only Segment Store and an IdMap Store under a read-only Facade,
// grown on demand by an Updater.
//
// Repo is the package's entry point, the same role pkg/ignite.Instance
// plays over its engine: it owns the stores' lifecycle and re-exports the
// Facade and Updater methods callers need.
package segchangelog

import (
	"context"
	"time"

	"github.com/iamNilotpal/segchangelog/internal/facade"
	"github.com/iamNilotpal/segchangelog/internal/idmapstore"
	"github.com/iamNilotpal/segchangelog/internal/iddag"
	"github.com/iamNilotpal/segchangelog/internal/segstore"
	"github.com/iamNilotpal/segchangelog/internal/updater"
	"github.com/iamNilotpal/segchangelog/pkg/collab"
	"github.com/iamNilotpal/segchangelog/pkg/ids"
	"github.com/iamNilotpal/segchangelog/pkg/logger"
	"github.com/iamNilotpal/segchangelog/pkg/metrics"
	"github.com/iamNilotpal/segchangelog/pkg/options"
	"github.com/iamNilotpal/segchangelog/pkg/vertex"
	"github.com/prometheus/client_golang/prometheus"
)

// Repo is a handle on one segmented changelog instance: its on-disk Segment
// Store and IdMap Store, the read-only Facade over them, and the Updater
// that grows them on demand. It is safe for concurrent use.
type Repo struct {
	seg     *segstore.Store
	idmap   *idmapstore.Store
	dag     *iddag.IdDag
	facade  *facade.Facade
	updater *updater.Updater

	options *options.Options

	cancelPeriodic context.CancelFunc
}

// Collaborators are the external dependencies a Repo needs to grow its IdDag
// on demand: something that knows a commit's parents, and something that
// knows where "master" currently points.
type Collaborators struct {
	Fetcher   collab.ChangesetFetcher
	Bookmarks collab.Bookmarks
}

// Open creates or opens a Repo rooted at the configured data directory,
// replaying any uncommitted log records, and — if PeriodicUpdatePeriod is
// set — starts the background periodic updater.
func Open(ctx context.Context, service string, collaborators Collaborators, opts ...options.OptionFunc) (*Repo, error) {
	defaultOpts := options.NewDefaultOptions()
	for _, opt := range opts {
		opt(&defaultOpts)
	}

	log := logger.New(service)
	reg := defaultOpts.MetricsRegisterer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := metrics.NewMetrics(reg)

	seg, err := segstore.Open(ctx, &segstore.Config{
		DataDir: defaultOpts.DataDir,
		Options: &defaultOpts,
		Logger:  logger.Named(log, "segstore"),
		Metrics: m,
	})
	if err != nil {
		return nil, err
	}

	idmap, err := idmapstore.Open(ctx, &idmapstore.Config{
		DataDir: defaultOpts.DataDir,
		Options: &defaultOpts,
		Logger:  logger.Named(log, "idmapstore"),
		Metrics: m,
	})
	if err != nil {
		_ = seg.Close()
		return nil, err
	}

	dag := iddag.New(seg)
	f := facade.New(dag, idmap)
	u := updater.New(&updater.Config{
		SegmentStore: seg,
		IdMapStore:   idmap,
		Dag:          dag,
		Fetcher:      collaborators.Fetcher,
		Bookmarks:    collaborators.Bookmarks,
		Logger:       logger.Named(log, "updater"),
		Metrics:      m,
	})

	r := &Repo{seg: seg, idmap: idmap, dag: dag, facade: f, updater: u, options: &defaultOpts}

	if defaultOpts.PeriodicUpdatePeriod > 0 {
		periodicCtx, cancel := context.WithCancel(context.Background())
		r.cancelPeriodic = cancel
		go u.RunPeriodic(periodicCtx, defaultOpts.PeriodicUpdatePeriod, nil)
	}

	return r, nil
}

// Close stops the periodic updater, if running, and releases the Segment
// Store's and IdMap Store's file handles.
func (r *Repo) Close() error {
	if r.cancelPeriodic != nil {
		r.cancelPeriodic()
	}
	idmapErr := r.idmap.Close()
	segErr := r.seg.Close()
	if segErr != nil {
		return segErr
	}
	return idmapErr
}

// LocationToManyChangesetIds resolves a location to the count commits
// starting there, walking count-1 further first-parent steps.
func (r *Repo) LocationToManyChangesetIds(ctx context.Context, descendant vertex.Vertex, distance, count uint64) ([]vertex.Vertex, error) {
	return r.facade.LocationToManyChangesetIds(ctx, descendant, distance, count)
}

// ManyChangesetIdsToLocations computes, for each of csIds that is an ancestor
// of every resolved master head, its shortest first-parent location relative
// to one of masterHeads.
func (r *Repo) ManyChangesetIdsToLocations(ctx context.Context, masterHeads, csIds []vertex.Vertex) (map[string]facade.LocationResult, error) {
	return r.facade.ManyChangesetIdsToLocations(ctx, masterHeads, csIds)
}

// IsAncestor reports whether a is an ancestor of d. The second return value
// is false if either vertex does not yet resolve to an id.
func (r *Repo) IsAncestor(ctx context.Context, a, d vertex.Vertex) (bool, bool, error) {
	return r.facade.IsAncestor(ctx, a, d)
}

// CloneData returns the MASTER group's full flat segments and the idmap
// entries needed to reconstruct a Facade from scratch.
func (r *Repo) CloneData(ctx context.Context) (facade.CloneData, error) {
	return r.facade.CloneData(ctx)
}

// PullFastForwardMaster returns the ancestor delta between old and new as a
// payload a peer can replay on top of its copy at old.
func (r *Repo) PullFastForwardMaster(ctx context.Context, old, new vertex.Vertex) (facade.CloneData, error) {
	return r.facade.PullFastForwardMaster(ctx, old, new)
}

// FullIdmapCloneData streams the entire MASTER id range in fixed-size
// batches.
func (r *Repo) FullIdmapCloneData(ctx context.Context) (<-chan facade.IdMapChunk, <-chan error) {
	return r.facade.FullIdmapCloneData(ctx)
}

// BuildUpToCs grows the IdDag and IdMap, on demand, until cs resolves.
func (r *Repo) BuildUpToCs(ctx context.Context, cs vertex.Vertex, group ids.Group) error {
	return r.updater.BuildUpToCs(ctx, cs, group)
}

// BuildUpToBookmark grows the IdDag and IdMap up to the current master
// bookmark.
func (r *Repo) BuildUpToBookmark(ctx context.Context) error {
	return r.updater.BuildUpToBookmark(ctx)
}

// BuildUpToHeads ensures every vertex in heads resolves, building up to the
// master bookmark first if any are missing.
func (r *Repo) BuildUpToHeads(ctx context.Context, heads []vertex.Vertex) error {
	return r.updater.BuildUpToHeads(ctx, heads)
}

// PeriodicUpdatePeriod reports the configured periodic-updater base period,
// zero if disabled.
func (r *Repo) PeriodicUpdatePeriod() time.Duration {
	return r.options.PeriodicUpdatePeriod
}

// RemoveNonMaster logically wipes every NON_MASTER entry from both the
// IdMap Store and the Segment Store, returning the group to its empty
// state. MASTER is untouched. The IdMap Store is cleared first: if the
// process dies between the two, the Segment Store still holds NON_MASTER
// segments whose ids are no longer in the IdMap until RemoveNonMaster is
// called again; the Updater assigns only MASTER ids and does not clear them.
func (r *Repo) RemoveNonMaster(ctx context.Context) error {
	if err := r.idmap.RemoveNonMaster(ctx); err != nil {
		return err
	}
	return r.seg.RemoveNonMaster(ctx)
}
