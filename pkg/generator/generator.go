package generator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/rzbill/gdid/pkg/gdid"
	"github.com/rzbill/gdid/pkg/instrument"
	logpkg "github.com/rzbill/gdid/pkg/log"
)

const (
	DefaultBlockSize     = 1024
	DefaultLowWaterMark  = 0.25
	DefaultRetryCount    = 5
	DefaultRetryInterval = 200 * time.Millisecond
	DefaultCallTimeout   = 5 * time.Second
)

// Options configures a Generator. Zero values take the defaults above.
type Options struct {
	// ID identifies this generator in logs. Defaults to a random UUID.
	ID       string
	Resolver Resolver
	// DefaultBlockSize is requested when a call passes BlockSize 0.
	DefaultBlockSize int
	// LowWaterMark is the fraction of a block left when a background refill
	// starts. Must be in [0, 1). Negative disables refill ahead of exhaustion.
	LowWaterMark float64
	// RetryCount is the number of retries after the first failed synchronous fetch.
	RetryCount    int
	RetryInterval time.Duration
	// CallTimeout bounds each Authority call.
	CallTimeout time.Duration
	Names       *gdid.NameValidator
	Logger      logpkg.Logger
	Metrics     *instrument.Metrics
}

// Generator hands out identifiers from locally held blocks and talks to the
// Authority only to replace them. It is safe for concurrent use.
type Generator struct {
	id            string
	resolver      Resolver
	blockSize     int
	lwm           float64
	retryCount    int
	retryInterval time.Duration
	callTimeout   time.Duration
	names         *gdid.NameValidator
	logger        logpkg.Logger
	rec           *instrument.Recorder
	metrics       *instrument.Metrics

	states sync.Map // key -> *sequenceState

	// ctx is cancelled by Close and bounds every refill.
	ctx    context.Context
	cancel context.CancelFunc

	// mu orders Close against new refill goroutines and guards testingNode.
	mu          sync.Mutex
	closed      atomic.Bool
	wg          sync.WaitGroup
	testingNode AuthorityClient
	used        atomic.Bool
}

type key struct {
	scope    string
	sequence string
}

// New builds a Generator.
func New(opts Options) (*Generator, error) {
	g := &Generator{
		id:            opts.ID,
		resolver:      opts.Resolver,
		blockSize:     opts.DefaultBlockSize,
		lwm:           opts.LowWaterMark,
		retryCount:    opts.RetryCount,
		retryInterval: opts.RetryInterval,
		callTimeout:   opts.CallTimeout,
		names:         opts.Names,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
	}
	if g.id == "" {
		g.id = uuid.NewString()
	}
	if g.blockSize <= 0 {
		g.blockSize = DefaultBlockSize
	}
	if g.lwm == 0 {
		g.lwm = DefaultLowWaterMark
	}
	if g.lwm >= 1 {
		return nil, fmt.Errorf("generator: low water mark %v must be below 1", g.lwm)
	}
	if g.lwm < 0 {
		g.lwm = 0
	}
	if g.retryCount < 0 {
		return nil, fmt.Errorf("generator: negative retry count %d", g.retryCount)
	}
	if g.retryCount == 0 {
		g.retryCount = DefaultRetryCount
	}
	if g.retryInterval <= 0 {
		g.retryInterval = DefaultRetryInterval
	}
	if g.callTimeout <= 0 {
		g.callTimeout = DefaultCallTimeout
	}
	if g.logger == nil {
		g.logger = logpkg.NewNopLogger()
	}
	g.logger = g.logger.WithComponent("generator").With(logpkg.Str("generator", g.id))
	g.rec = instrument.NewRecorder(g.logger, g.metrics)
	g.ctx, g.cancel = context.WithCancel(context.Background())
	return g, nil
}

// ID returns the generator's identifier.
func (g *Generator) ID() string { return g.id }

// SetTestingAuthorityNode routes every request to client instead of the
// Resolver. It must be called before the first generation call.
func (g *Generator) SetTestingAuthorityNode(client AuthorityClient) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.used.Load() {
		return gdid.ErrAuthorityNodeLocked
	}
	g.testingNode = client
	return nil
}

// GenerateOne returns the next identifier of a sequence. It blocks on the
// Authority only when no local block has values left.
func (g *Generator) GenerateOne(ctx context.Context, scope, sequence string, opts gdid.AllocationOptions) (gdid.GDID, error) {
	st, err := g.enter(scope, sequence)
	if err != nil {
		return gdid.Zero, err
	}
	for {
		b := st.current.Load()
		if b != nil {
			if start, got := b.take(1); got == 1 {
				g.maybeRefill(st, b, opts)
				return gdid.GDID{Era: b.Era, Counter: start}, nil
			}
		}
		if err := g.advance(ctx, st, b, opts); err != nil {
			return gdid.Zero, err
		}
	}
}

// GenerateOneSequenceId returns only the counter of the next identifier. It
// is unique within one Era of the sequence.
func (g *Generator) GenerateOneSequenceId(ctx context.Context, scope, sequence string, opts gdid.AllocationOptions) (uint64, error) {
	id, err := g.GenerateOne(ctx, scope, sequence, opts)
	if err != nil {
		return 0, err
	}
	return id.Counter, nil
}

// TryGenerateManyConsecutive returns up to idCount consecutive identifiers
// as the first one and the count. Values always come from a single block, so
// count may be below idCount; callers needing more call again. When no local
// block has values left one is fetched first.
func (g *Generator) TryGenerateManyConsecutive(ctx context.Context, scope, sequence string, idCount int, opts gdid.AllocationOptions) (gdid.GDID, int, error) {
	if idCount < 0 {
		return gdid.Zero, 0, gdid.NewError(gdid.KindInvalidArgument, scope, sequence,
			fmt.Errorf("negative id count %d", idCount))
	}
	st, err := g.enter(scope, sequence)
	if err != nil {
		return gdid.Zero, 0, err
	}
	if idCount == 0 {
		return gdid.Zero, 0, nil
	}
	for {
		b := st.current.Load()
		if b != nil {
			if start, got := b.take(uint64(idCount)); got > 0 {
				g.maybeRefill(st, b, opts)
				return gdid.GDID{Era: b.Era, Counter: start}, int(got), nil
			}
		}
		if err := g.advance(ctx, st, b, opts); err != nil {
			return gdid.Zero, 0, err
		}
	}
}

// TryGenerateManyConsecutiveSequenceIds is TryGenerateManyConsecutive
// returning the first counter only.
func (g *Generator) TryGenerateManyConsecutiveSequenceIds(ctx context.Context, scope, sequence string, idCount int, opts gdid.AllocationOptions) (uint64, int, error) {
	id, n, err := g.TryGenerateManyConsecutive(ctx, scope, sequence, idCount, opts)
	if err != nil {
		return 0, 0, err
	}
	return id.Counter, n, nil
}

func (g *Generator) enter(scope, sequence string) (*sequenceState, error) {
	if g.closed.Load() {
		return nil, gdid.NewError(gdid.KindClosed, scope, sequence, gdid.ErrClosed)
	}
	if err := g.names.Validate(scope, sequence); err != nil {
		return nil, err
	}
	if !g.used.Load() {
		g.mu.Lock()
		g.used.Store(true)
		g.mu.Unlock()
	}
	k := key{scope: scope, sequence: sequence}
	if v, ok := g.states.Load(k); ok {
		return v.(*sequenceState), nil
	}
	v, _ := g.states.LoadOrStore(k, &sequenceState{scope: scope, sequence: sequence})
	return v.(*sequenceState), nil
}

// maybeRefill starts a background fetch the first time b drops to its low
// water mark. A failed fetch clears the flag so a later call retries once the
// sequence's backoff interval has passed.
func (g *Generator) maybeRefill(st *sequenceState, b *block, opts gdid.AllocationOptions) {
	if opts.NoLowWaterMark || b.remaining() > b.lwm || st.backingOff() {
		return
	}
	if !b.refillRequested.CompareAndSwap(false, true) {
		return
	}

	st.mu.Lock()
	if st.pending != nil || st.refill != nil {
		st.mu.Unlock()
		return
	}
	if st.backingOff() {
		b.refillRequested.Store(false)
		st.mu.Unlock()
		return
	}
	g.mu.Lock()
	if g.closed.Load() {
		g.mu.Unlock()
		st.mu.Unlock()
		return
	}
	g.wg.Add(1)
	g.mu.Unlock()
	task := &refillTask{done: make(chan struct{})}
	st.refill = task
	st.mu.Unlock()

	go func() {
		defer g.wg.Done()
		nb, err := g.fetch(g.ctx, st, opts)

		st.mu.Lock()
		if err == nil {
			st.pending = nb
			st.refillSucceeded()
		} else {
			b.refillRequested.Store(false)
			st.refillFailed(g.retryInterval)
		}
		task.err = err
		st.refill = nil
		close(task.done)
		st.mu.Unlock()

		if err != nil {
			g.rec.Emit(instrument.AllocBlockRequestFailure, st.scope, st.sequence,
				logpkg.Bool("background", true), logpkg.Err(err))
		}
	}()
}

// advance replaces seen, the exhausted current block, with the pending one,
// waits for an in-flight fetch, or fetches synchronously with retries.
func (g *Generator) advance(ctx context.Context, st *sequenceState, seen *block, opts gdid.AllocationOptions) error {
	for {
		st.mu.Lock()
		if st.current.Load() != seen {
			st.mu.Unlock()
			return nil
		}
		if st.pending != nil {
			st.current.Store(st.pending)
			st.pending = nil
			st.mu.Unlock()
			return nil
		}
		task := st.refill
		if task == nil {
			task = &refillTask{done: make(chan struct{}), sync: true}
			st.refill = task
			st.mu.Unlock()

			nb, err := g.fetchWithRetry(ctx, st, opts)

			st.mu.Lock()
			if err == nil {
				st.current.Store(nb)
				st.refillSucceeded()
			}
			task.err = err
			st.refill = nil
			close(task.done)
			st.mu.Unlock()
			return err
		}
		st.mu.Unlock()

		select {
		case <-task.done:
			// A synchronous fetch that exhausted its retries fails its
			// waiters too; a cancelled owner or a background miss does not.
			if task.sync && task.err != nil && gdid.KindOf(task.err) != gdid.KindRequestFailure {
				return task.err
			}
		case <-ctx.Done():
			return gdid.NewError(gdid.KindRequestFailure, st.scope, st.sequence, ctx.Err())
		}
	}
}

func (g *Generator) client(ctx context.Context, scope, sequence string) (AuthorityClient, error) {
	g.mu.Lock()
	node := g.testingNode
	g.mu.Unlock()
	if node != nil {
		return node, nil
	}
	if g.resolver == nil {
		return nil, ErrNoAuthority
	}
	return g.resolver.Resolve(ctx, scope, sequence)
}

// fetch makes one Authority call.
func (g *Generator) fetch(ctx context.Context, st *sequenceState, opts gdid.AllocationOptions) (*block, error) {
	client, err := g.client(ctx, st.scope, st.sequence)
	if err != nil {
		return nil, gdid.NewError(gdid.KindRequestFailure, st.scope, st.sequence, err)
	}
	size := opts.BlockSize
	if size <= 0 {
		size = g.blockSize
	}

	cctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()
	started := time.Now()
	blk, err := client.AllocateBlock(cctx, st.scope, st.sequence, size, opts.Vicinity)
	g.metrics.ObserveAllocation("generator", time.Since(started), err)
	if err != nil {
		var ae *gdid.AllocationError
		if errors.As(err, &ae) {
			return nil, err
		}
		return nil, gdid.NewError(gdid.KindRequestFailure, st.scope, st.sequence, err)
	}
	nb := newBlock(blk, g.lwm)
	if nb.Count == 0 {
		return nil, gdid.NewError(gdid.KindUnknown, st.scope, st.sequence, errors.New("authority returned an empty block"))
	}
	g.rec.Emit(instrument.AllocBlockRefilled, st.scope, st.sequence,
		logpkg.F("era", nb.Era), logpkg.Uint64("start", nb.StartInclusive), logpkg.Uint64("count", nb.Count))
	return nb, nil
}

// fetchWithRetry is the blocking path taken when no block is left. Terminal
// errors stop it at once; retryable ones are retried RetryCount times.
func (g *Generator) fetchWithRetry(ctx context.Context, st *sequenceState, opts gdid.AllocationOptions) (*block, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(g.ctx, cancel)
	defer stop()

	var (
		attempts int
		last     error
	)
	op := func() (*block, error) {
		attempts++
		nb, err := g.fetch(ctx, st, opts)
		if err == nil {
			return nb, nil
		}
		last = err
		if ctx.Err() != nil || !gdid.IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		g.rec.Emit(instrument.AllocBlockRequestFailure, st.scope, st.sequence,
			logpkg.Int("attempt", attempts), logpkg.Err(err))
		return nil, err
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(g.retryInterval), uint64(g.retryCount)), ctx)

	nb, err := backoff.RetryWithData(op, policy)
	if err == nil {
		return nb, nil
	}
	if g.closed.Load() {
		return nil, gdid.NewError(gdid.KindClosed, st.scope, st.sequence, gdid.ErrClosed)
	}
	if ctx.Err() != nil {
		return nil, gdid.NewError(gdid.KindRequestFailure, st.scope, st.sequence, ctx.Err())
	}
	if last != nil && !gdid.IsRetryable(last) {
		return nil, last
	}
	g.rec.Emit(instrument.AllocBlockRetriesExhausted, st.scope, st.sequence,
		logpkg.Int("attempts", attempts), logpkg.Err(last))
	return nil, &gdid.AllocationError{
		Kind: gdid.KindRetriesExhausted, Scope: st.scope, Sequence: st.sequence,
		Attempts: attempts, Err: last,
	}
}

// SequenceSnapshot describes the local state of one sequence.
type SequenceSnapshot struct {
	Scope     string `json:"scope"`
	Sequence  string `json:"sequence"`
	Era       uint32 `json:"era"`
	Next      uint64 `json:"next"`
	Remaining uint64 `json:"remaining"`
	BlockSize uint64 `json:"blockSize"`
	Pending   bool   `json:"pending"`
	Refilling bool   `json:"refilling"`
}

// Sequences returns a snapshot of every sequence this generator has served,
// sorted by scope then sequence.
func (g *Generator) Sequences() []SequenceSnapshot {
	var out []SequenceSnapshot
	g.states.Range(func(_, v any) bool {
		st := v.(*sequenceState)
		snap := SequenceSnapshot{Scope: st.scope, Sequence: st.sequence}
		if b := st.current.Load(); b != nil {
			snap.Era = b.Era
			snap.BlockSize = b.Count
			snap.Remaining = b.remaining()
			snap.Next = b.StartInclusive + b.Count - snap.Remaining
		}
		st.mu.Lock()
		snap.Pending = st.pending != nil
		snap.Refilling = st.refill != nil
		st.mu.Unlock()
		out = append(out, snap)
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Scope != out[j].Scope {
			return out[i].Scope < out[j].Scope
		}
		return out[i].Sequence < out[j].Sequence
	})
	return out
}

// Close cancels in-flight refills and waits for them. Later calls fail with
// KindClosed. Values left in local blocks are abandoned.
func (g *Generator) Close() error {
	g.mu.Lock()
	if g.closed.Load() {
		g.mu.Unlock()
		return nil
	}
	g.closed.Store(true)
	g.mu.Unlock()
	g.cancel()
	g.wg.Wait()
	return nil
}
