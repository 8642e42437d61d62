package location

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	cfgpkg "github.com/rzbill/gdid/internal/config"
	pebblestore "github.com/rzbill/gdid/internal/storage/pebble"
	"github.com/rzbill/gdid/pkg/instrument"
	logpkg "github.com/rzbill/gdid/pkg/log"
)

// OpenOptions carries settings shared by every location.
type OpenOptions struct {
	DataDir       string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Logger        logpkg.Logger
	Metrics       *instrument.Metrics
}

// Open builds the Location described by cfg.
func Open(ctx context.Context, cfg cfgpkg.LocationConfig, opts OpenOptions) (Location, error) {
	switch cfg.Kind {
	case cfgpkg.KindPebble:
		po := pebblestore.Options{
			DataDir:       cfgpkg.ResolvePath(opts.DataDir, cfg.Path),
			Fsync:         opts.Fsync,
			FsyncInterval: opts.FsyncInterval,
			Metrics:       opts.Metrics.StorageHook(cfg.Name),
		}
		if opts.Logger != nil {
			po.Logger = NewPebbleLogger(opts.Logger.With(logpkg.Str("location", cfg.Name)))
		}
		return OpenPebble(cfg.Name, po)
	case cfgpkg.KindBolt:
		path := cfgpkg.ResolvePath(opts.DataDir, cfg.Path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("location %s: %w", cfg.Name, err)
		}
		return OpenBolt(cfg.Name, path, opts.Fsync == pebblestore.FsyncModeNever)
	case cfgpkg.KindS3:
		return OpenS3(ctx, cfg.Name, S3Options{
			Endpoint: cfg.Endpoint,
			Bucket:   cfg.Bucket,
			Prefix:   cfg.Prefix,
			Region:   cfg.Region,
			Secure:   cfg.Secure,
		})
	case cfgpkg.KindMemory:
		return NewMemory(cfg.Name), nil
	}
	return nil, fmt.Errorf("location %s: unknown kind %q", cfg.Name, cfg.Kind)
}

// OpenAll opens every configured location, closing the ones already opened
// if any fails.
func OpenAll(ctx context.Context, cfgs []cfgpkg.LocationConfig, opts OpenOptions) ([]Location, error) {
	out := make([]Location, 0, len(cfgs))
	for _, c := range cfgs {
		loc, err := Open(ctx, c, opts)
		if err != nil {
			CloseAll(out)
			return nil, err
		}
		out = append(out, loc)
	}
	return out, nil
}

// CloseAll closes every location and returns the first error.
func CloseAll(locs []Location) error {
	var first error
	for _, l := range locs {
		if err := l.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
