package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/rzbill/gdid/internal/authority"
	cfgpkg "github.com/rzbill/gdid/internal/config"
	"github.com/rzbill/gdid/internal/location"
	pebblestore "github.com/rzbill/gdid/internal/storage/pebble"
	"github.com/rzbill/gdid/pkg/gdid"
	"github.com/rzbill/gdid/pkg/instrument"
	logpkg "github.com/rzbill/gdid/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	DataDir       string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
	Logger        logpkg.Logger
	// Registry receives the metrics. A fresh registry with Go and process
	// collectors is created when nil.
	Registry *prometheus.Registry
}

// Runtime wires config, Locations, metrics and the Authority for one node.
type Runtime struct {
	config   cfgpkg.Config
	locs     []location.Location
	auth     *authority.Authority
	names    *gdid.NameValidator
	registry *prometheus.Registry
	metrics  *instrument.Metrics
	logger   logpkg.Logger
}

// Open opens every configured Location and builds the Authority over them.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	names, err := gdid.NewNameValidator(cfg.NameRegex)
	if err != nil {
		return nil, err
	}

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	metrics, err := instrument.NewMetrics(reg)
	if err != nil {
		return nil, err
	}

	locs, err := location.OpenAll(ctx, cfg.Authority.Locations, location.OpenOptions{
		DataDir: opts.DataDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return nil, err
	}

	name := cfg.Authority.Name
	if name == "" {
		name, _ = os.Hostname()
	}
	auth, err := authority.New(authority.Options{
		Name:         name,
		Locations:    locs,
		CounterMax:   cfg.Authority.CounterMax,
		MaxBlockSize: cfg.Authority.MaxBlockSize,
		CallTimeout:  cfg.Authority.CallTimeout(),
		Names:        names,
		Logger:       logger,
		Metrics:      metrics,
	})
	if err != nil {
		_ = location.CloseAll(locs)
		return nil, err
	}
	logger.Info("runtime opened",
		logpkg.Str("authority", auth.Name()),
		logpkg.Int("locations", len(locs)),
		logpkg.Str("data_dir", opts.DataDir))

	return &Runtime{
		config:   cfg,
		locs:     locs,
		auth:     auth,
		names:    names,
		registry: reg,
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// Close stops the Authority and closes every Location.
func (r *Runtime) Close() error {
	var merr *multierror.Error
	if r.auth != nil {
		if err := r.auth.Close(); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if err := location.CloseAll(r.locs); err != nil {
		merr = multierror.Append(merr, err)
	}
	return merr.ErrorOrNil()
}

// LocationStatus is the outcome of pinging one Location.
type LocationStatus struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Locations pings every Location with a short timeout.
func (r *Runtime) Locations(ctx context.Context) []LocationStatus {
	out := make([]LocationStatus, len(r.locs))
	done := make(chan struct{}, len(r.locs))
	for i, loc := range r.locs {
		go func() {
			defer func() { done <- struct{}{} }()
			pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			out[i] = LocationStatus{Name: loc.Name(), OK: true}
			if err := loc.Ping(pctx); err != nil {
				out[i] = LocationStatus{Name: loc.Name(), Error: err.Error()}
			}
		}()
	}
	for range r.locs {
		<-done
	}
	return out
}

// CheckHealth succeeds while at least one Location answers, which is all an
// allocation needs.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	var merr *multierror.Error
	for _, st := range r.Locations(ctx) {
		if st.OK {
			return nil
		}
		merr = multierror.Append(merr, fmt.Errorf("%s: %s", st.Name, st.Error))
	}
	if merr == nil {
		return errors.New("no locations configured")
	}
	return merr
}

// Authority returns the node's Authority.
func (r *Runtime) Authority() *authority.Authority { return r.auth }

// Names returns the scope and sequence name validator.
func (r *Runtime) Names() *gdid.NameValidator { return r.names }

// Registry returns the metrics registry served on /metrics.
func (r *Runtime) Registry() *prometheus.Registry { return r.registry }

// Metrics returns the instrumentation collectors.
func (r *Runtime) Metrics() *instrument.Metrics { return r.metrics }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
