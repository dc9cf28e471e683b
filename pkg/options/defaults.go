package options

const (
	// DefaultDataDir is the default base directory where a Repo will store
	// its data files, if no other directory is specified during
	// initialization.
	DefaultDataDir = "/var/lib/segchangelog"

	// DefaultSegmentLogFile names the append-only segment log.
	DefaultSegmentLogFile = "segments.log"

	// DefaultSegmentIndexFile names the bbolt database backing the
	// level-head and group-parent indexes.
	DefaultSegmentIndexFile = "segments.idx"

	// DefaultSegmentLockFile names the wlock file used for cross-process
	// mutual exclusion.
	DefaultSegmentLockFile = "wlock"

	// DefaultIdMapDBFile names the bbolt database backing the IdMap Store.
	DefaultIdMapDBFile = "idmap.bbolt"

	// DefaultIdMapCacheSize bounds the IdMap Store's in-process cache.
	DefaultIdMapCacheSize = 65536
)

// defaultOptions holds the baseline configuration every Repo starts from
// before functional options are applied.
var defaultOptions = Options{
	DataDir: DefaultDataDir,
	SegmentStoreOptions: &segmentStoreOptions{
		LogFile:   DefaultSegmentLogFile,
		IndexFile: DefaultSegmentIndexFile,
		LockFile:  DefaultSegmentLockFile,
	},
	IdMapStoreOptions: &idMapStoreOptions{
		DBFile:    DefaultIdMapDBFile,
		CacheSize: DefaultIdMapCacheSize,
	},
}

// NewDefaultOptions returns a fresh copy of the baseline configuration.
func NewDefaultOptions() Options {
	opts := defaultOptions
	segCopy := *defaultOptions.SegmentStoreOptions
	idMapCopy := *defaultOptions.IdMapStoreOptions
	opts.SegmentStoreOptions = &segCopy
	opts.IdMapStoreOptions = &idMapCopy
	return opts
}
