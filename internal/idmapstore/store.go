package idmapstore

import (
	"context"
	"encoding/binary"
	"path/filepath"

	"github.com/iamNilotpal/segchangelog/pkg/filesys"
	"github.com/iamNilotpal/segchangelog/pkg/ids"
	"github.com/iamNilotpal/segchangelog/pkg/logger"
	"github.com/iamNilotpal/segchangelog/pkg/metrics"
	"github.com/iamNilotpal/segchangelog/pkg/options"
	"github.com/iamNilotpal/segchangelog/pkg/serrors"
	"go.etcd.io/bbolt"
)

// Open creates or opens an IdMap Store rooted at cfg.DataDir, acquiring its
// dedicated flock lease for this process's lifetime.
func Open(ctx context.Context, cfg *Config) (*Store, error) {
	opts := cfg.Options
	if opts == nil {
		def := options.NewDefaultOptions()
		opts = &def
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.NewMetrics(nil)
	}

	dir := cfg.DataDir
	if dir == "" {
		dir = opts.DataDir
	}
	if err := filesys.CreateDir(dir, 0755); err != nil {
		return nil, serrors.NewBugError(err, "failed to create idmap store directory")
	}

	dbPath := filepath.Join(dir, opts.IdMapStoreOptions.DBFile)
	lockFile, err := lockPath(dbPath + ".lock")
	if err != nil {
		return nil, err
	}

	db, err := bbolt.Open(dbPath, 0644, nil)
	if err != nil {
		unlockFile(lockFile)
		return nil, serrors.NewBugError(err, "failed to open idmap database")
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketVertexToId, bucketIdToVertex, bucketHexPrefix, bucketIdMapMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		unlockFile(lockFile)
		return nil, serrors.NewBugError(err, "failed to initialize idmap buckets")
	}

	s := &Store{
		db:       db,
		lockFile: lockFile,
		cache:    newCache(opts.IdMapStoreOptions.CacheSize),
		logger:   logger.Named(log, "idmapstore"),
		metrics:  m,
	}

	if err := s.loadMeta(); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) loadMeta() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketIdMapMeta)

		if v := meta.Get([]byte("version")); v != nil {
			s.version.Store(binary.BigEndian.Uint64(v))
		}

		for _, g := range []ids.Group{ids.MASTER, ids.NonMaster} {
			next := g.MinId()
			if v := meta.Get([]byte(nextFreeMetaKey(g))); v != nil {
				next = ids.Id(binary.BigEndian.Uint64(v))
			}
			s.nextFree.Store(g, next)
		}
		return nil
	})
}

// Close releases the lock lease and closes the underlying database. It is
// safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	if s.db != nil {
		if err := s.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.db = nil
	}
	if s.lockFile != nil {
		if err := unlockFile(s.lockFile); err != nil && firstErr == nil {
			firstErr = err
		}
		s.lockFile = nil
	}
	return firstErr
}

// Version returns the current value of the monotone version link, bumped on
// every Insert and RemoveNonMaster. Callers holding a cached derivation
// compare tokens to detect staleness.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

func idKey(id ids.Id) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	return buf[:]
}
