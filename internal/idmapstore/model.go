// Package idmapstore implements the IdMap Store: a persistent, bidirectional
// mapping between opaque commit Vertexes and dense Ids, sharded by Group. It
// is grounded on the ancestor ignite project's internal/index — an
// RWMutex-guarded in-memory key→pointer map closed via an atomic flag —
// generalized here into a bbolt-backed store fronted by a bounded
// write-through cache, since this map must survive process restarts and can
// outgrow RAM.
package idmapstore

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/iamNilotpal/segchangelog/pkg/ids"
	"github.com/iamNilotpal/segchangelog/pkg/metrics"
	"github.com/iamNilotpal/segchangelog/pkg/options"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var (
	bucketVertexToId = []byte("vertex_to_id")
	bucketIdToVertex = []byte("id_to_vertex")
	bucketHexPrefix  = []byte("hex_prefix")
	bucketIdMapMeta  = []byte("meta")
)

func nextFreeMetaKey(g ids.Group) string {
	if g == ids.MASTER {
		return "next_free_master"
	}
	return "next_free_non_master"
}

// Store is the IdMap Store: a persistent, bidirectional Vertex<->Id map.
type Store struct {
	db       *bbolt.DB
	lockFile *os.File // holds the flock(2) lease on the dedicated lock file while open

	mu       sync.Mutex // serializes insert/remove within this process
	version  atomic.Uint64
	nextFree sync.Map // ids.Group -> ids.Id

	cache *cache

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
