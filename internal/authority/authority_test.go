package authority

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/rzbill/gdid/internal/location"
	"github.com/rzbill/gdid/pkg/gdid"
	"github.com/rzbill/gdid/pkg/instrument"
)

func newMems(names ...string) []*location.Memory {
	out := make([]*location.Memory, len(names))
	for i, n := range names {
		out[i] = location.NewMemory(n)
	}
	return out
}

func asLocations(mems []*location.Memory) []location.Location {
	out := make([]location.Location, len(mems))
	for i, m := range mems {
		out[i] = m
	}
	return out
}

func newAuthority(t *testing.T, mems []*location.Memory, mutate func(*Options)) *Authority {
	t.Helper()
	opts := Options{Name: "test-authority", Locations: asLocations(mems), CallTimeout: time.Second}
	if mutate != nil {
		mutate(&opts)
	}
	a, err := New(opts)
	require.NoError(t, err)
	return a
}

func seedAll(mems []*location.Memory, scope, seq string, st location.State) {
	for _, m := range mems {
		m.Seed(scope, seq, st)
	}
}

func peek(t *testing.T, m *location.Memory, scope, seq string) location.State {
	t.Helper()
	st, ok := m.Peek(scope, seq)
	require.True(t, ok, "no state on %s", m.Name())
	return st
}

func TestNewRequiresLocations(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, ErrNoLocations)
}

func TestAllocateFromSharedState(t *testing.T) {
	ctx := context.Background()
	mems := newMems("a", "b")
	seedAll(mems, "billing", "invoice", location.State{Era: 0, Counter: 100})
	a := newAuthority(t, mems, nil)

	blk, err := a.AllocateBlock(ctx, "billing", "invoice", 10, gdid.VicinityNone)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), blk.Era)
	assert.Equal(t, uint64(100), blk.StartInclusive)
	assert.Equal(t, uint64(10), blk.Count)
	assert.Equal(t, "test-authority", blk.Authority)
	for _, m := range mems {
		assert.Equal(t, location.State{Era: 0, Counter: 110}, peek(t, m, "billing", "invoice"))
	}
	assert.Equal(t, StateActive, a.State("billing", "invoice"))
}

func TestEraPromotionOnExhaustion(t *testing.T) {
	ctx := context.Background()
	mems := newMems("a", "b")
	seedAll(mems, "billing", "invoice", location.State{Era: 0, Counter: 110})
	a := newAuthority(t, mems, func(o *Options) { o.CounterMax = 115 })

	blk, err := a.AllocateBlock(ctx, "billing", "invoice", 10, gdid.VicinityNone)
	require.NoError(t, err)
	assert.Equal(t, gdid.Block{
		Scope: "billing", Sequence: "invoice", Era: 0, StartInclusive: 110, Count: 5,
		Authority: "test-authority", IssuedAt: blk.IssuedAt,
	}, blk)
	for _, m := range mems {
		assert.Equal(t, location.State{Era: 1, Counter: 0}, peek(t, m, "billing", "invoice"))
	}

	blk, err = a.AllocateBlock(ctx, "billing", "invoice", 10, gdid.VicinityNone)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), blk.Era)
	assert.Equal(t, uint64(0), blk.StartInclusive)
	assert.Equal(t, uint64(10), blk.Count)
}

func TestExactFitPromotes(t *testing.T) {
	ctx := context.Background()
	mems := newMems("a")
	seedAll(mems, "s", "q", location.State{Era: 2, Counter: 90})
	a := newAuthority(t, mems, func(o *Options) { o.CounterMax = 100 })

	blk, err := a.AllocateBlock(ctx, "s", "q", 10, gdid.VicinityNone)
	require.NoError(t, err)
	assert.Equal(t, uint64(90), blk.StartInclusive)
	assert.Equal(t, uint64(10), blk.Count)
	assert.Equal(t, location.State{Era: 3, Counter: 0}, peek(t, mems[0], "s", "q"))
}

func TestLoweredCounterMaxPromotesBeforeAllocating(t *testing.T) {
	mems := newMems("a")
	seedAll(mems, "s", "q", location.State{Era: 0, Counter: 200})
	a := newAuthority(t, mems, func(o *Options) { o.CounterMax = 115 })

	blk, err := a.AllocateBlock(context.Background(), "s", "q", 10, gdid.VicinityNone)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), blk.Era)
	assert.Equal(t, uint64(0), blk.StartInclusive)
}

func TestSequenceExhausted(t *testing.T) {
	ctx := context.Background()
	mems := newMems("a")
	seedAll(mems, "s", "q", location.State{Era: math.MaxUint32, Counter: 8})
	a := newAuthority(t, mems, func(o *Options) { o.CounterMax = 10 })

	blk, err := a.AllocateBlock(ctx, "s", "q", 5, gdid.VicinityNone)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), blk.Count)

	_, err = a.AllocateBlock(ctx, "s", "q", 5, gdid.VicinityNone)
	require.Error(t, err)
	assert.Equal(t, gdid.KindSequenceExhausted, gdid.KindOf(err))
	assert.ErrorIs(t, err, ErrSequenceExhausted)
	assert.False(t, gdid.IsRetryable(err))
}

func TestTotalWriteFailureDoesNotAdvance(t *testing.T) {
	ctx := context.Background()
	mems := newMems("a", "b")
	seedAll(mems, "billing", "invoice", location.State{Counter: 100})
	a := newAuthority(t, mems, nil)

	for _, m := range mems {
		m.SetFailWrites(true)
	}
	_, err := a.AllocateBlock(ctx, "billing", "invoice", 10, gdid.VicinityNone)
	require.Error(t, err)
	assert.Equal(t, gdid.KindLocationWriteTotalFailure, gdid.KindOf(err))
	assert.True(t, gdid.IsRetryable(err))
	assert.ErrorIs(t, err, location.ErrInjected)
	assert.Equal(t, StateUnavailable, a.State("billing", "invoice"))

	for _, m := range mems {
		m.SetFailWrites(false)
		assert.Equal(t, uint64(100), peek(t, m, "billing", "invoice").Counter)
	}

	blk, err := a.AllocateBlock(ctx, "billing", "invoice", 10, gdid.VicinityNone)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), blk.StartInclusive, "aborted allocation must not consume the range")
	assert.Equal(t, StateActive, a.State("billing", "invoice"))
}

func TestPartialWriteIsTolerated(t *testing.T) {
	ctx := context.Background()
	mems := newMems("a", "b")
	seedAll(mems, "s", "q", location.State{Counter: 100})
	a := newAuthority(t, mems, nil)

	mems[1].SetFailWrites(true)
	blk, err := a.AllocateBlock(ctx, "s", "q", 20, gdid.VicinityNone)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), blk.StartInclusive)
	assert.Equal(t, uint64(120), peek(t, mems[0], "s", "q").Counter)
	assert.Equal(t, uint64(100), peek(t, mems[1], "s", "q").Counter, "lagging location")

	// The lagging location comes back; the next read must adopt the higher value.
	mems[1].SetFailWrites(false)
	blk, err = a.AllocateBlock(ctx, "s", "q", 5, gdid.VicinityNone)
	require.NoError(t, err)
	assert.Equal(t, uint64(120), blk.StartInclusive)
	assert.Equal(t, uint64(125), peek(t, mems[1], "s", "q").Counter)
}

func TestBestOfReads(t *testing.T) {
	tests := []struct {
		name      string
		a, b      location.State
		wantEra   uint32
		wantStart uint64
	}{
		{"higher counter wins", location.State{Counter: 100}, location.State{Counter: 150}, 0, 150},
		{"higher era wins", location.State{Era: 1, Counter: 5}, location.State{Era: 0, Counter: 900}, 1, 5},
		{"equal", location.State{Counter: 7}, location.State{Counter: 7}, 0, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mems := newMems("a", "b")
			mems[0].Seed("s", "q", tt.a)
			mems[1].Seed("s", "q", tt.b)
			a := newAuthority(t, mems, nil)
			blk, err := a.AllocateBlock(context.Background(), "s", "q", 1, gdid.VicinityNone)
			require.NoError(t, err)
			assert.Equal(t, tt.wantEra, blk.Era)
			assert.Equal(t, tt.wantStart, blk.StartInclusive)
		})
	}
}

func TestPartialReadIsTolerated(t *testing.T) {
	mems := newMems("a", "b")
	seedAll(mems, "s", "q", location.State{Counter: 40})
	mems[0].SetFailReads(true)
	a := newAuthority(t, mems, nil)

	blk, err := a.AllocateBlock(context.Background(), "s", "q", 2, gdid.VicinityNone)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), blk.StartInclusive)
	// Writes still go everywhere.
	assert.Equal(t, uint64(42), peek(t, mems[0], "s", "q").Counter)
}

func TestTotalReadFailureAborts(t *testing.T) {
	mems := newMems("a", "b")
	for _, m := range mems {
		m.SetFailReads(true)
	}
	a := newAuthority(t, mems, nil)

	_, err := a.AllocateBlock(context.Background(), "s", "q", 2, gdid.VicinityNone)
	require.Error(t, err)
	assert.Equal(t, gdid.KindLocationReadTotalFailure, gdid.KindOf(err))
	assert.Equal(t, StateUnavailable, a.State("s", "q"))
	for _, m := range mems {
		assert.Equal(t, int64(0), m.Writes(), "nothing may be written without a read")
	}
}

// lateWriteLocation ignores ctx on its first write and lands it after delay.
type lateWriteLocation struct {
	*location.Memory
	delay  time.Duration
	first  atomic.Bool
	landed chan struct{}
}

func (l *lateWriteLocation) WriteCounter(ctx context.Context, scope, seq string, st location.State) error {
	if !l.first.CompareAndSwap(false, true) {
		return l.Memory.WriteCounter(ctx, scope, seq, st)
	}
	defer close(l.landed)
	time.Sleep(l.delay)
	return l.Memory.WriteCounter(context.Background(), scope, seq, st)
}

func TestLateWriteDoesNotLowerCounter(t *testing.T) {
	ctx := context.Background()
	mems := newMems("a", "b")
	seedAll(mems, "s", "q", location.State{Counter: 100})
	late := &lateWriteLocation{Memory: mems[0], delay: 300 * time.Millisecond, landed: make(chan struct{})}
	a, err := New(Options{
		Name:        "test-authority",
		Locations:   []location.Location{late, mems[1]},
		CallTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	b1, err := a.AllocateBlock(ctx, "s", "q", 10, gdid.VicinityNone)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), b1.StartInclusive)

	b2, err := a.AllocateBlock(ctx, "s", "q", 10, gdid.VicinityNone)
	require.NoError(t, err)
	assert.Equal(t, uint64(110), b2.StartInclusive)

	<-late.landed
	require.Equal(t, uint64(110), peek(t, mems[0], "s", "q").Counter, "stale write landed over the newer state")

	mems[1].SetFailReads(true)
	b3, err := a.AllocateBlock(ctx, "s", "q", 10, gdid.VicinityNone)
	require.NoError(t, err)
	assert.Equal(t, uint64(120), b3.StartInclusive)
	assert.False(t, b3.Overlaps(b2), "range issued twice")
	assert.Equal(t, uint64(130), peek(t, mems[0], "s", "q").Counter)
}

func TestSlowLocationTimesOut(t *testing.T) {
	mems := newMems("fast", "slow")
	mems[1].SetDelay(5 * time.Second)
	a := newAuthority(t, mems, func(o *Options) { o.CallTimeout = 20 * time.Millisecond })

	start := time.Now()
	blk, err := a.AllocateBlock(context.Background(), "s", "q", 3, gdid.VicinityNone)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, uint64(1), blk.StartInclusive)

	mems[0].SetDelay(5 * time.Second)
	_, err = a.AllocateBlock(context.Background(), "s", "q", 3, gdid.VicinityNone)
	require.Error(t, err)
	assert.Equal(t, gdid.KindLocationReadTotalFailure, gdid.KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInvalidNamesRejectedBeforeIO(t *testing.T) {
	mems := newMems("a")
	a := newAuthority(t, mems, nil)
	for _, tc := range [][2]string{{"", "q"}, {"s", ""}, {"a/b", "q"}, {"s", "has space"}} {
		_, err := a.AllocateBlock(context.Background(), tc[0], tc[1], 1, gdid.VicinityNone)
		require.Error(t, err, "%q/%q", tc[0], tc[1])
		assert.Equal(t, gdid.KindInvalidName, gdid.KindOf(err))
		assert.ErrorIs(t, err, gdid.ErrInvalidName)
		assert.False(t, gdid.IsRetryable(err))
	}
	assert.Equal(t, int64(0), mems[0].Reads())
}

func TestFreshSequenceSkipsZero(t *testing.T) {
	mems := newMems("a")
	a := newAuthority(t, mems, nil)
	blk, err := a.AllocateBlock(context.Background(), "s", "q", 4, gdid.VicinityNone)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), blk.StartInclusive)
	assert.False(t, blk.At(0).IsZero())
	assert.Equal(t, uint64(5), peek(t, mems[0], "s", "q").Counter)
}

func TestVicinity(t *testing.T) {
	ctx := context.Background()
	mems := newMems("a")
	a := newAuthority(t, mems, func(o *Options) { o.CounterMax = 10_000 })

	blk, err := a.AllocateBlock(ctx, "s", "q", 10, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), blk.StartInclusive)

	// Behind the counter: ignored, never moves backwards.
	blk, err = a.AllocateBlock(ctx, "s", "q", 10, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(1010), blk.StartInclusive)

	// At or beyond CounterMax: ignored.
	blk, err = a.AllocateBlock(ctx, "s", "q", 10, 10_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1020), blk.StartInclusive)
}

func TestBlockSizeClamp(t *testing.T) {
	ctx := context.Background()
	a := newAuthority(t, newMems("a"), func(o *Options) { o.MaxBlockSize = 50 })

	blk, err := a.AllocateBlock(ctx, "s", "q", 0, gdid.VicinityNone)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), blk.Count)

	blk, err = a.AllocateBlock(ctx, "s", "q", -3, gdid.VicinityNone)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), blk.Count)

	blk, err = a.AllocateBlock(ctx, "s", "q", 100, gdid.VicinityNone)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), blk.Count)
}

func TestConcurrentBlocksNeverOverlap(t *testing.T) {
	mems := newMems("a", "b", "c")
	a := newAuthority(t, mems, func(o *Options) { o.CounterMax = 5_000 })

	const workers, perWorker = 16, 40
	var (
		mu     sync.Mutex
		blocks []gdid.Block
		wg     sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				blk, err := a.AllocateBlock(context.Background(), "s", "q", 1+(w+i)%13, gdid.VicinityNone)
				if err != nil {
					t.Errorf("allocate: %v", err)
					return
				}
				mu.Lock()
				blocks = append(blocks, blk)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Len(t, blocks, workers*perWorker)

	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].Era != blocks[j].Era {
			return blocks[i].Era < blocks[j].Era
		}
		return blocks[i].StartInclusive < blocks[j].StartInclusive
	})
	for i := 1; i < len(blocks); i++ {
		prev, cur := blocks[i-1], blocks[i]
		require.False(t, prev.Overlaps(cur), "blocks %d and %d overlap: %+v %+v", i-1, i, prev, cur)
		if prev.Era == cur.Era {
			require.Equal(t, prev.End(), cur.StartInclusive, "gap between consecutive blocks")
		}
	}
}

func TestDifferentSequencesDoNotBlockEachOther(t *testing.T) {
	mems := newMems("a")
	a := newAuthority(t, mems, nil)

	// Hold one sequence's lock; another sequence must still allocate.
	s := a.sequence("s", "held")
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := a.AllocateBlock(ctx, "s", "free", 1, gdid.VicinityNone)
	require.NoError(t, err)
}

func TestCancelledContext(t *testing.T) {
	a := newAuthority(t, newMems("a"), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.AllocateBlock(ctx, "s", "q", 1, gdid.VicinityNone)
	require.Error(t, err)
	assert.Equal(t, gdid.KindRequestFailure, gdid.KindOf(err))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestClosed(t *testing.T) {
	a := newAuthority(t, newMems("a"), nil)
	require.NoError(t, a.Close())
	_, err := a.AllocateBlock(context.Background(), "s", "q", 1, gdid.VicinityNone)
	assert.Equal(t, gdid.KindClosed, gdid.KindOf(err))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSequenceInfos(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mems := newMems("a")
	a := newAuthority(t, mems, func(o *Options) {
		o.Now = func() time.Time { return fixed }
		o.CounterMax = 100
	})

	_, err := a.AllocateBlock(ctx, "billing", "invoice", 10, gdid.VicinityNone)
	require.NoError(t, err)
	_, err = a.AllocateBlock(ctx, "billing", "credit", 99, gdid.VicinityNone)
	require.NoError(t, err)
	_, err = a.AllocateBlock(ctx, "shipping", "parcel", 3, gdid.VicinityNone)
	require.NoError(t, err)

	// A failed allocation does not show up.
	mems[0].SetFailReads(true)
	_, err = a.AllocateBlock(ctx, "billing", "refund", 3, gdid.VicinityNone)
	require.Error(t, err)
	mems[0].SetFailReads(false)

	infos, err := a.SequenceInfos("billing")
	require.NoError(t, err)
	want := []gdid.SequenceInfo{
		{Scope: "billing", Sequence: "credit", Era: 1, ApproximateCurrentValue: 0, TotalPreallocation: 99,
			IssuerName: "test-authority", IssueUtcDate: fixed},
		{Scope: "billing", Sequence: "invoice", Era: 0, ApproximateCurrentValue: 11, TotalPreallocation: 10,
			IssuerName: "test-authority", IssueUtcDate: fixed},
	}
	if diff := cmp.Diff(want, infos); diff != "" {
		t.Fatalf("infos mismatch (-want +got):\n%s", diff)
	}

	all, err := a.SequenceInfos("")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "shipping", all[2].Scope)

	_, err = a.SequenceInfos("bad scope")
	assert.Equal(t, gdid.KindInvalidName, gdid.KindOf(err))
}

func TestMetricsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := instrument.NewMetrics(reg)
	require.NoError(t, err)

	mems := newMems("a", "b")
	mems[1].SetFailWrites(true)
	a := newAuthority(t, mems, func(o *Options) { o.Metrics = m })
	_, err = a.AllocateBlock(context.Background(), "s", "q", 4, gdid.VicinityNone)
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	found := map[string]bool{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			for _, l := range metric.GetLabel() {
				if l.GetName() == "event" {
					found[l.GetValue()] = true
				}
			}
		}
	}
	assert.True(t, found[instrument.AuthLocationWriteFailure.String()], fmt.Sprint(found))
	assert.True(t, found[instrument.AuthBlockAllocated.String()], fmt.Sprint(found))
}
