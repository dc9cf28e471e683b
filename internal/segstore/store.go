package segstore

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/iamNilotpal/segchangelog/pkg/filesys"
	"github.com/iamNilotpal/segchangelog/pkg/ids"
	"github.com/iamNilotpal/segchangelog/pkg/logger"
	"github.com/iamNilotpal/segchangelog/pkg/metrics"
	"github.com/iamNilotpal/segchangelog/pkg/options"
	"github.com/iamNilotpal/segchangelog/pkg/segment"
	"github.com/iamNilotpal/segchangelog/pkg/serrors"
	"go.etcd.io/bbolt"
)

const metaKeyReplayOffset = "replay_offset"

func nextFreeMetaKey(g ids.Group) string {
	if g == ids.MASTER {
		return "next_free_master"
	}
	return "next_free_non_master"
}

// Open creates or opens a Segment Store rooted at cfg.DataDir, acquiring the
// wlock for this process's lifetime and replaying any log records appended
// since the indexes were last synced. Replay makes the store crash-safe: if
// the process died after appending to the log but before updating bbolt, the
// next Open catches the indexes up from the persisted replay offset.
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
		return nil, serrors.NewBugError(err, "failed to create segment store directory")
	}

	lockFile, err := lockPath(filepath.Join(dir, opts.SegmentStoreOptions.LockFile))
	if err != nil {
		return nil, err
	}

	logPath := filepath.Join(dir, opts.SegmentStoreOptions.LogFile)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		unlockFile(lockFile)
		return nil, serrors.NewBugError(err, "failed to open segment log")
	}

	dbPath := filepath.Join(dir, opts.SegmentStoreOptions.IndexFile)
	db, err := bbolt.Open(dbPath, 0644, nil)
	if err != nil {
		logFile.Close()
		unlockFile(lockFile)
		return nil, serrors.NewBugError(err, "failed to open segment index database")
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketLevelHead, bucketGroupParent, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		logFile.Close()
		unlockFile(lockFile)
		return nil, serrors.NewBugError(err, "failed to initialize segment index buckets")
	}

	s := &Store{
		dir:      dir,
		logFile:  logFile,
		db:       db,
		lockFile: lockFile,
		logger:   logger.Named(log, "segstore"),
		metrics:  m,
	}

	if err := s.loadMeta(); err != nil {
		s.Close()
		return nil, err
	}

	if err := s.replay(); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// loadMeta populates maxLevel and the per-group nextFree snapshot from the
// meta bucket, defaulting to zero values on a fresh store.
func (s *Store) loadMeta() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)

		if v := meta.Get([]byte(metaKeyMaxLevel)); v != nil {
			s.maxLevel.Store(int64(binary.BigEndian.Uint64(v)))
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

// replay reads every record appended to the log since the persisted replay
// offset and applies it to the bbolt indexes, advancing the offset as it
// goes so a crash mid-replay resumes cleanly rather than re-applying
// already-indexed records.
func (s *Store) replay() error {
	var offset int64
	if err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketMeta).Get([]byte(metaKeyReplayOffset)); v != nil {
			offset = int64(binary.BigEndian.Uint64(v))
		}
		return nil
	}); err != nil {
		return serrors.NewBugError(err, "failed to read replay offset")
	}

	info, err := s.logFile.Stat()
	if err != nil {
		return serrors.NewBugError(err, "failed to stat segment log")
	}
	s.logSize = info.Size()

	// Always leave the log file positioned at EOF before returning: writeLocked
	// relies on the file's current offset tracking logSize exactly, and
	// os.OpenFile leaves a freshly opened file positioned at 0.
	defer func() {
		_, _ = s.logFile.Seek(0, io.SeekEnd)
	}()

	if offset > s.logSize {
		return serrors.NewCorruptSegmentError(nil, "replay offset beyond end of log").WithOffset(offset)
	}
	if offset == s.logSize {
		return nil
	}

	if _, err := s.logFile.Seek(offset, io.SeekStart); err != nil {
		return serrors.NewBugError(err, "failed to seek segment log for replay")
	}
	r := bufio.NewReader(s.logFile)

	applied := 0
	for {
		pos := offset
		rec, err := readRecord(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			s.logger.Warnw("segment log replay stopped at truncated record, treating as crash tail",
				"offset", pos, "error", err)
			break
		}

		consumed := recordWireLen(rec)
		offset += consumed

		if err := s.applyRecord(rec, pos); err != nil {
			return err
		}
		applied++
	}

	if applied > 0 {
		s.logger.Infow("replayed segment log records", "count", applied, "offset", offset)
	}
	return s.persistReplayOffset(offset)
}

// recordWireLen returns the number of bytes readRecord consumed producing
// rec, so replay can advance its offset without re-encoding from scratch
// for the common segment case.
func recordWireLen(rec record) int64 {
	switch rec.Kind {
	case recordKindRewriteLastFlat:
		return int64(len(encodeRewriteLastFlat(nil, rec.PreviousHigh, rec.Segment)))
	case recordKindClearNonMaster:
		return int64(len(clearNonMasterLiteral))
	default:
		return int64(len(segment.Encode(nil, rec.Segment)))
	}
}

func (s *Store) persistReplayOffset(offset int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(offset))
		return tx.Bucket(bucketMeta).Put([]byte(metaKeyReplayOffset), buf[:])
	})
}

// Close releases the wlock and closes the log file and index database. It
// is safe to call more than once.
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
	if s.logFile != nil {
		if err := s.logFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.logFile = nil
	}
	if s.lockFile != nil {
		if err := unlockFile(s.lockFile); err != nil && firstErr == nil {
			firstErr = err
		}
		s.lockFile = nil
	}
	return firstErr
}
