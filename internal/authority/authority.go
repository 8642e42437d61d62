package authority

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/rzbill/gdid/internal/location"
	"github.com/rzbill/gdid/pkg/gdid"
	"github.com/rzbill/gdid/pkg/instrument"
	logpkg "github.com/rzbill/gdid/pkg/log"
)

const (
	// DefaultMaxBlockSize caps a single allocation.
	DefaultMaxBlockSize = 1_000_000
	// DefaultCallTimeout bounds each Location read or write.
	DefaultCallTimeout = 2 * time.Second
)

var (
	// ErrClosed is wrapped by allocations attempted after Close.
	ErrClosed = errors.New("authority closed")
	// ErrNoLocations is returned by New when no Location is configured.
	ErrNoLocations = errors.New("authority requires at least one location")
	// ErrSequenceExhausted is wrapped when the last Era has no counter space left.
	ErrSequenceExhausted = errors.New("sequence exhausted")
)

// Options configures an Authority.
type Options struct {
	// Name identifies the issuer in SequenceInfo. Defaults to "authority-" plus a random suffix.
	Name      string
	Locations []location.Location
	// CounterMax bounds the counter within an Era. Defaults to gdid.DefaultCounterMax.
	CounterMax   uint64
	MaxBlockSize int
	CallTimeout  time.Duration
	Names        *gdid.NameValidator
	Logger       logpkg.Logger
	Metrics      *instrument.Metrics
	// Now is the clock used for IssueUtcDate. Defaults to time.Now.
	Now func() time.Time
}

// Authority is the single allocator of counter blocks for the sequences it
// serves. Allocations for one sequence are serialized; different sequences
// proceed in parallel.
type Authority struct {
	name        string
	locs        []location.Location
	counterMax  uint64
	maxBlock    uint64
	callTimeout time.Duration
	names       *gdid.NameValidator
	logger      logpkg.Logger
	rec         *instrument.Recorder
	metrics     *instrument.Metrics
	now         func() time.Time

	mu     sync.Mutex
	seqs   map[key]*sequence
	closed atomic.Bool
}

// New builds an Authority over opts.Locations. The Authority does not own the
// Locations and never closes them.
func New(opts Options) (*Authority, error) {
	if len(opts.Locations) == 0 {
		return nil, ErrNoLocations
	}
	a := &Authority{
		name:        opts.Name,
		locs:        opts.Locations,
		counterMax:  opts.CounterMax,
		maxBlock:    uint64(opts.MaxBlockSize),
		callTimeout: opts.CallTimeout,
		names:       opts.Names,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		now:         opts.Now,
		seqs:        make(map[key]*sequence),
	}
	if a.name == "" {
		a.name = "authority-" + uuid.NewString()[:8]
	}
	if a.counterMax == 0 {
		a.counterMax = gdid.DefaultCounterMax
	}
	if a.counterMax == math.MaxUint64 {
		return nil, fmt.Errorf("authority: counter max must be below 2^64-1")
	}
	if opts.MaxBlockSize <= 0 {
		a.maxBlock = DefaultMaxBlockSize
	}
	if a.callTimeout <= 0 {
		a.callTimeout = DefaultCallTimeout
	}
	if a.logger == nil {
		a.logger = logpkg.NewNopLogger()
	}
	a.logger = a.logger.WithComponent("authority").With(logpkg.Str("issuer", a.name))
	if a.now == nil {
		a.now = time.Now
	}
	a.rec = instrument.NewRecorder(a.logger, a.metrics)
	return a, nil
}

// Name returns the issuer name recorded in SequenceInfo.
func (a *Authority) Name() string { return a.name }

// CounterMax returns the exclusive upper bound of the counter within an Era.
func (a *Authority) CounterMax() uint64 { return a.counterMax }

// Locations returns the Locations backing this Authority.
func (a *Authority) Locations() []location.Location { return a.locs }

func (a *Authority) sequence(scope, seq string) *sequence {
	k := key{scope: scope, sequence: seq}
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.seqs[k]
	if !ok {
		s = &sequence{}
		a.seqs[k] = s
	}
	return s
}

// State returns the in-memory state of a sequence. Sequences never touched by
// this Authority are Uninitialized.
func (a *Authority) State(scope, seq string) SequenceState {
	a.mu.Lock()
	s, ok := a.seqs[key{scope: scope, sequence: seq}]
	a.mu.Unlock()
	if !ok {
		return StateUninitialized
	}
	return s.getState()
}

// AllocateBlock reserves up to blockSize consecutive counters of one Era for
// the caller. The returned block is durably recorded on at least one Location
// before it is returned.
//
// blockSize <= 0 means 1 and is capped at the configured maximum. A vicinity
// ahead of the current counter moves the allocation forward to it; any other
// vicinity, gdid.VicinityNone included, is ignored. When the Era's space runs
// out the block is truncated and the sequence moves to the next Era with
// counter 0.
func (a *Authority) AllocateBlock(ctx context.Context, scope, seq string, blockSize int, vicinity uint64) (blk gdid.Block, err error) {
	if a.closed.Load() {
		return gdid.Block{}, gdid.NewError(gdid.KindClosed, scope, seq, ErrClosed)
	}
	if err := a.names.Validate(scope, seq); err != nil {
		return gdid.Block{}, err
	}
	started := time.Now()
	defer func() {
		a.metrics.ObserveAllocation("authority", time.Since(started), err)
	}()

	s := a.sequence(scope, seq)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return gdid.Block{}, gdid.NewError(gdid.KindRequestFailure, scope, seq, err)
	}

	cur, err := a.readBest(ctx, scope, seq)
	if err != nil {
		s.setState(StateUnavailable)
		a.rec.Emit(instrument.AuthLocationReadTotalFailure, scope, seq, logpkg.Err(err))
		return gdid.Block{}, gdid.NewError(gdid.KindLocationReadTotalFailure, scope, seq, err)
	}
	if cur.Less(s.floor) {
		a.logger.Warn("Locations behind committed state",
			logpkg.Str("scope", scope), logpkg.Str("sequence", seq),
			logpkg.F("read_era", cur.Era), logpkg.Uint64("read_counter", cur.Counter),
			logpkg.F("floor_era", s.floor.Era), logpkg.Uint64("floor_counter", s.floor.Counter))
		cur = s.floor
	}

	era, counter := cur.Era, cur.Counter
	if era == 0 && counter == 0 {
		// GDID.Zero is reserved.
		counter = 1
	}
	if vicinity != gdid.VicinityNone && vicinity < a.counterMax && vicinity > counter {
		counter = vicinity
	}
	if counter >= a.counterMax {
		// Space ran out without a recorded promotion, e.g. after CounterMax was lowered.
		if era == math.MaxUint32 {
			return gdid.Block{}, gdid.NewError(gdid.KindSequenceExhausted, scope, seq, ErrSequenceExhausted)
		}
		era, counter = era+1, 0
		a.rec.Emit(instrument.AuthEraPromoted, scope, seq, logpkg.F("era", era))
	}

	size := a.clampBlockSize(blockSize)
	count := min(size, a.counterMax-counter)
	next := location.State{Era: era, Counter: counter + count}
	promoting := next.Counter == a.counterMax && era < math.MaxUint32
	if promoting {
		s.setState(StateEraPromoting)
		next = location.State{Era: era + 1, Counter: 0}
	}

	if err := a.writeAll(ctx, scope, seq, next); err != nil {
		s.setState(StateUnavailable)
		a.rec.Emit(instrument.AuthLocationWriteTotalFailure, scope, seq, logpkg.Err(err))
		return gdid.Block{}, gdid.NewError(gdid.KindLocationWriteTotalFailure, scope, seq, err)
	}
	s.floor = next
	s.setState(StateActive)
	if promoting {
		a.rec.Emit(instrument.AuthEraPromoted, scope, seq, logpkg.F("era", next.Era))
	}

	now := a.now().UTC()
	blk = gdid.Block{
		Scope:          scope,
		Sequence:       seq,
		Era:            era,
		StartInclusive: counter,
		Count:          count,
		Authority:      a.name,
		IssuedAt:       now,
	}
	s.setInfo(gdid.SequenceInfo{
		Scope:                   scope,
		Sequence:                seq,
		Era:                     next.Era,
		ApproximateCurrentValue: next.Counter,
		TotalPreallocation:      count,
		RemainingPreallocation:  0,
		IssuerName:              a.name,
		IssueUtcDate:            now,
	})
	a.metrics.ObserveBlock(count)
	a.rec.Emit(instrument.AuthBlockAllocated, scope, seq,
		logpkg.F("era", era), logpkg.Uint64("start", counter), logpkg.Uint64("count", count))
	return blk, nil
}

func (a *Authority) clampBlockSize(n int) uint64 {
	if n <= 0 {
		return 1
	}
	if uint64(n) > a.maxBlock {
		return a.maxBlock
	}
	return uint64(n)
}

// SequenceInfos returns monitoring snapshots of the sequences this Authority
// has issued blocks for, sorted by scope then sequence. An empty scope lists
// every scope.
func (a *Authority) SequenceInfos(scope string) ([]gdid.SequenceInfo, error) {
	if scope != "" {
		if err := a.names.ValidateScope(scope); err != nil {
			return nil, err
		}
	}
	a.mu.Lock()
	seqs := make([]*sequence, 0, len(a.seqs))
	for k, s := range a.seqs {
		if scope == "" || k.scope == scope {
			seqs = append(seqs, s)
		}
	}
	a.mu.Unlock()

	out := make([]gdid.SequenceInfo, 0, len(seqs))
	for _, s := range seqs {
		if info, ok := s.snapshot(); ok {
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Scope != out[j].Scope {
			return out[i].Scope < out[j].Scope
		}
		return out[i].Sequence < out[j].Sequence
	})
	return out, nil
}

// Close stops accepting allocations. In-flight allocations complete.
func (a *Authority) Close() error {
	a.closed.Store(true)
	return nil
}
