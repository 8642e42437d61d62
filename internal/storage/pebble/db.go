package pebblestore

import (
	"context"
	"errors"
	"time"

	"github.com/cockroachdb/pebble"
)

// ErrNotFound is returned by Get for missing keys.
var ErrNotFound = pebble.ErrNotFound

// FsyncMode defines durability behavior for write operations.
type FsyncMode int

const (
	// FsyncModeUnspecified behaves like FsyncModeAlways: a counter that is
	// acknowledged but lost on crash can re-issue identifiers.
	FsyncModeUnspecified FsyncMode = iota
	// FsyncModeAlways syncs the WAL before Set returns.
	FsyncModeAlways
	// FsyncModeInterval lets Pebble coalesce WAL syncs within FsyncInterval.
	// Set still waits for the sync that covers it.
	FsyncModeInterval
	// FsyncModeNever leaves syncing to Pebble. Only safe when another
	// Location provides durability.
	FsyncModeNever
)

// String returns the flag spelling of m.
func (m FsyncMode) String() string {
	switch m {
	case FsyncModeAlways, FsyncModeUnspecified:
		return "always"
	case FsyncModeInterval:
		return "interval"
	case FsyncModeNever:
		return "never"
	}
	return "unknown"
}

// ParseFsyncMode parses always|interval|never.
func ParseFsyncMode(s string) (FsyncMode, error) {
	switch s {
	case "always", "":
		return FsyncModeAlways, nil
	case "interval":
		return FsyncModeInterval, nil
	case "never":
		return FsyncModeNever, nil
	}
	return FsyncModeUnspecified, errors.New("pebble: fsync mode must be always|interval|never")
}

// Options configures the Pebble store wrapper.
type Options struct {
	// DataDir is the path to the Pebble database directory.
	DataDir string
	Fsync   FsyncMode
	// FsyncInterval is the group-commit window for FsyncModeInterval.
	// Defaults to 5ms.
	FsyncInterval time.Duration
	// PebbleOptions allows advanced tuning of Pebble.
	PebbleOptions *pebble.Options
	// Metrics observes read/write latencies and sizes. Optional.
	Metrics MetricsHook
	// Logger receives Pebble's internal log lines. Optional.
	Logger pebble.Logger
}

// MetricsHook is a minimal hook surface for storage observations.
type MetricsHook interface {
	ObserveWrite(elapsed time.Duration, bytes int)
	ObserveRead(elapsed time.Duration, bytes int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveWrite(time.Duration, int) {}
func (noopMetrics) ObserveRead(time.Duration, int)  {}

// DB is a small key/value facade over Pebble for counter records.
type DB struct {
	inner   *pebble.DB
	wo      *pebble.WriteOptions
	metrics MetricsHook
}

// Open creates or opens a Pebble database with the provided options.
func Open(opts Options) (*DB, error) {
	if opts.DataDir == "" {
		return nil, errors.New("pebble: Options.DataDir is required")
	}
	po := opts.PebbleOptions
	if po == nil {
		po = &pebble.Options{}
	}
	wo := pebble.Sync
	switch opts.Fsync {
	case FsyncModeInterval:
		window := opts.FsyncInterval
		if window <= 0 {
			window = 5 * time.Millisecond
		}
		po.WALMinSyncInterval = func() time.Duration { return window }
	case FsyncModeNever:
		wo = pebble.NoSync
	}
	if opts.Logger != nil {
		po.Logger = opts.Logger
	}
	inner, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, err
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &DB{inner: inner, wo: wo, metrics: metrics}, nil
}

// Close closes the Pebble database.
func (db *DB) Close() error {
	if db == nil || db.inner == nil {
		return nil
	}
	return db.inner.Close()
}

// Set writes key honoring the fsync policy.
func (db *DB) Set(ctx context.Context, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	if err := db.inner.Set(key, value, db.wo); err != nil {
		return err
	}
	db.metrics.ObserveWrite(time.Since(start), len(key)+len(value))
	return nil
}

// Get copies the value for key. Missing keys return ErrNotFound.
func (db *DB) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	val, closer, err := db.inner.Get(key)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	buf := append([]byte(nil), val...)
	db.metrics.ObserveRead(time.Since(start), len(buf))
	return buf, nil
}

// Ping opens and closes an iterator to confirm the store is usable.
func (db *DB) Ping(ctx context.Context) error {
	if db == nil || db.inner == nil {
		return errors.New("pebble: db not open")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	it, err := db.inner.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}
