package location

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/rzbill/gdid/internal/storage/pebble"
	logpkg "github.com/rzbill/gdid/pkg/log"
)

// Pebble stores counters in a Pebble database.
type Pebble struct {
	name string
	db   *pebblestore.DB
}

// OpenPebble opens (creating if needed) the database described by opts.
func OpenPebble(name string, opts pebblestore.Options) (*Pebble, error) {
	db, err := pebblestore.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("location %s: %w", name, err)
	}
	return &Pebble{name: name, db: db}, nil
}

func (p *Pebble) Name() string { return p.name }

func (p *Pebble) ReadCounter(ctx context.Context, scope, sequence string) (State, error) {
	b, err := p.db.Get(ctx, counterKey(scope, sequence))
	if errors.Is(err, pebblestore.ErrNotFound) {
		return State{}, nil
	}
	if err != nil {
		return State{}, err
	}
	return decodeState(b)
}

func (p *Pebble) WriteCounter(ctx context.Context, scope, sequence string, st State) error {
	return p.db.Set(ctx, counterKey(scope, sequence), encodeState(st))
}

func (p *Pebble) Ping(ctx context.Context) error { return p.db.Ping(ctx) }

func (p *Pebble) Close() error { return p.db.Close() }

// pebbleLogger routes Pebble's printf-style logging into the facade.
type pebbleLogger struct {
	l logpkg.Logger
}

// NewPebbleLogger adapts l for pebblestore.Options.Logger.
func NewPebbleLogger(l logpkg.Logger) pebble.Logger { return pebbleLogger{l: l} }

func (p pebbleLogger) Infof(format string, args ...interface{}) {
	p.l.Debug(fmt.Sprintf(format, args...))
}

func (p pebbleLogger) Errorf(format string, args ...interface{}) {
	p.l.Error(fmt.Sprintf(format, args...))
}

func (p pebbleLogger) Fatalf(format string, args ...interface{}) {
	p.l.Fatal(fmt.Sprintf(format, args...))
}
