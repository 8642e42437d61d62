package serverrun

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	cfgpkg "github.com/rzbill/gdid/internal/config"
	"github.com/rzbill/gdid/internal/runtime"
	grpcserver "github.com/rzbill/gdid/internal/server/grpc"
	httpserver "github.com/rzbill/gdid/internal/server/http"
	pebblestore "github.com/rzbill/gdid/internal/storage/pebble"
	logpkg "github.com/rzbill/gdid/pkg/log"
)

// Options configures an Authority node.
type Options struct {
	DataDir  string
	GRPCAddr string
	// HTTPAddr serves health, sequence listing and /metrics. Empty disables it.
	HTTPAddr      string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
}

// Run opens the runtime, starts the gRPC and HTTP servers and blocks until
// ctx is cancelled or a server fails.
func Run(ctx context.Context, opts Options) error {
	// Layer a local signal context over the provided one so Run is
	// interruptible even when the caller did not install handlers.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}

	procLogger := newLogger(opts.Config.Log)
	// Redirect stdlib logs (e.g., Pebble, grpc) to our logger
	logpkg.RedirectStdLog(procLogger)

	rt, err := runtime.Open(sctx, runtime.Options{
		DataDir: opts.DataDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Config:        opts.Config,
		Logger:        procLogger,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	locs := make([]string, 0, len(opts.Config.Authority.Locations))
	for _, l := range opts.Config.Authority.Locations {
		locs = append(locs, l.Name+"="+l.Kind)
	}
	procLogger.Info("Starting GDID authority",
		logpkg.Str("authority", rt.Authority().Name()),
		logpkg.Str("grpc", opts.GRPCAddr),
		logpkg.Str("http", opts.HTTPAddr),
		logpkg.Str("data_dir", opts.DataDir),
		logpkg.Str("fsync", opts.Fsync.String()),
		logpkg.F("locations", locs),
		logpkg.Uint64("counter_max", rt.Authority().CounterMax()),
	)

	gsrv := grpcserver.New(rt, procLogger)
	var hsrv *httpserver.Server
	if opts.HTTPAddr != "" {
		hsrv = httpserver.New(rt, procLogger)
	}

	g, gctx := errgroup.WithContext(sctx)
	g.Go(func() error { return gsrv.ListenAndServe(gctx, opts.GRPCAddr) })
	if hsrv != nil {
		g.Go(func() error { return hsrv.ListenAndServe(gctx, opts.HTTPAddr) })
	}
	err = g.Wait()
	// Stop the servers before the deferred runtime close releases the Locations.
	gsrv.Close()
	if hsrv != nil {
		hsrv.Close()
	}
	if err != nil {
		procLogger.Error("server stopped", logpkg.Err(err))
		return err
	}
	procLogger.Info("GDID authority stopped")
	return nil
}

func newLogger(cfg logpkg.Config) logpkg.Logger {
	procLogger, err := logpkg.ApplyConfig(&cfg)
	if err == nil {
		return procLogger
	}
	// Fall back to a sane default
	lvl := logpkg.InfoLevel
	if l, e := logpkg.ParseLevel(cfg.Level); e == nil {
		lvl = l
	}
	return logpkg.NewLogger(logpkg.WithLevel(lvl), logpkg.WithFormatter(&logpkg.TextFormatter{}))
}
