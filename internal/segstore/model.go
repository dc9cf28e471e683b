// Package segstore implements the Segment Store: a persistent, append-only
// log of encoded Segment records (pkg/segment) plus two bbolt-backed
// secondary indexes (level-head and group-parent). It is the Segment Store
// layer of the segmented changelog, grounded on the ignite ancestor's
// internal/storage append-only recovery logic and on the pack's proglog
// store+index split.
package segstore

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/iamNilotpal/segchangelog/pkg/metrics"
	"github.com/iamNilotpal/segchangelog/pkg/options"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var (
	bucketLevelHead   = []byte("level_head")
	bucketGroupParent = []byte("group_parent")
	bucketMeta        = []byte("meta")
)

const metaKeyMaxLevel = "max_level"

// Store is the Segment Store: an append-only log of segment records with
// two bbolt-backed secondary indexes, guarded by a cross-process wlock and
// an in-process mutex serializing writers within this process.
type Store struct {
	dir       string
	logFile   *os.File
	logSize   int64
	db        *bbolt.DB
	lockFile  *os.File // holds the flock(2) lease on the wlock file while locked

	mu       sync.Mutex // serializes insert/remove within this process
	maxLevel atomic.Int64
	nextFree sync.Map // ids.Group -> ids.Id, the persisted next_free_id_without_dirty snapshot

	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
}

// Config holds the parameters needed to open a Store.
type Config struct {
	DataDir string
	Options *options.Options
	Logger  *zap.SugaredLogger
	Metrics *metrics.Metrics
}
