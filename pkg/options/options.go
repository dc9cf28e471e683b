// Package options configures a segchangelog Repo: where it persists its
// Segment Store and IdMap Store, how often the periodic updater runs, and
// where it reports metrics. It follows the functional-options pattern used
// throughout this module's ancestor project.
package options

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// segmentStoreOptions configures the on-disk layout of the Segment Store.
type segmentStoreOptions struct {
	// LogFile is the append-only log file holding encoded segment records.
	//
	// Default: "segments.log"
	LogFile string `json:"logFile"`

	// IndexFile is the bbolt database backing the level-head and
	// group-parent secondary indexes.
	//
	// Default: "segments.idx"
	IndexFile string `json:"indexFile"`

	// LockFile is the dedicated wlock file used solely for cross-process
	// mutual exclusion.
	//
	// Default: "wlock"
	LockFile string `json:"lockFile"`
}

// idMapStoreOptions configures the on-disk layout of the IdMap Store.
type idMapStoreOptions struct {
	// DBFile is the bbolt database backing the vertex<->id maps and the
	// hex-prefix index.
	//
	// Default: "idmap.bbolt"
	DBFile string `json:"dbFile"`

	// CacheSize bounds the in-process write-through cache sitting in front
	// of bbolt.
	//
	// Default: 65536 entries.
	CacheSize int `json:"cacheSize"`
}

// Options is the full configuration of a segchangelog Repo.
type Options struct {
	// DataDir is the base directory all store files are created under.
	//
	// Default: "/var/lib/segchangelog"
	DataDir string `json:"dataDir"`

	// PeriodicUpdatePeriod is the base period of the optional periodic
	// updater. A zero value disables the periodic updater entirely.
	//
	// Default: 0 (disabled)
	PeriodicUpdatePeriod time.Duration `json:"periodicUpdatePeriod"`

	// MetricsRegisterer receives the module's prometheus collectors. A nil
	// value falls back to prometheus.DefaultRegisterer.
	MetricsRegisterer prometheus.Registerer `json:"-"`

	SegmentStoreOptions *segmentStoreOptions `json:"segmentStoreOptions"`
	IdMapStoreOptions   *idMapStoreOptions   `json:"idMapStoreOptions"`
}

// OptionFunc mutates an Options in place.
type OptionFunc func(*Options)

// WithDataDir sets the base data directory.
func WithDataDir(dir string) OptionFunc {
	return func(o *Options) {
		dir = strings.TrimSpace(dir)
		if dir != "" {
			o.DataDir = dir
		}
	}
}

// WithPeriodicUpdatePeriod enables the periodic updater with the given base
// period. A non-positive value leaves the periodic updater disabled.
func WithPeriodicUpdatePeriod(period time.Duration) OptionFunc {
	return func(o *Options) {
		if period > 0 {
			o.PeriodicUpdatePeriod = period
		}
	}
}

// WithMetricsRegisterer sets the prometheus.Registerer metrics are published
// to.
func WithMetricsRegisterer(reg prometheus.Registerer) OptionFunc {
	return func(o *Options) {
		if reg != nil {
			o.MetricsRegisterer = reg
		}
	}
}

// WithIdMapCacheSize bounds the IdMap Store's in-process cache.
func WithIdMapCacheSize(size int) OptionFunc {
	return func(o *Options) {
		if size > 0 {
			o.IdMapStoreOptions.CacheSize = size
		}
	}
}

// WithSegmentStoreFiles overrides the Segment Store's file names.
func WithSegmentStoreFiles(logFile, indexFile, lockFile string) OptionFunc {
	return func(o *Options) {
		if logFile != "" {
			o.SegmentStoreOptions.LogFile = logFile
		}
		if indexFile != "" {
			o.SegmentStoreOptions.IndexFile = indexFile
		}
		if lockFile != "" {
			o.SegmentStoreOptions.LockFile = lockFile
		}
	}
}
