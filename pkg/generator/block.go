package generator

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/atomic"

	"github.com/rzbill/gdid/pkg/gdid"
)

// block is a granted range being served. next is the offset of the first
// unserved value; it only moves forward.
type block struct {
	gdid.Block
	next atomic.Uint64
	// lwm is the remaining count at or below which a refill is requested.
	lwm             uint64
	refillRequested atomic.Bool
}

func newBlock(b gdid.Block, lwmFraction float64) *block {
	if b.Era == 0 && b.StartInclusive == 0 && b.Count > 0 {
		// GDID.Zero is reserved.
		b.StartInclusive++
		b.Count--
	}
	return &block{Block: b, lwm: uint64(float64(b.Count) * lwmFraction)}
}

// take claims up to n consecutive values and returns the first counter and
// how many were claimed. got is 0 once the block is exhausted.
func (b *block) take(n uint64) (start, got uint64) {
	for {
		cur := b.next.Load()
		if cur >= b.Count {
			return 0, 0
		}
		got = min(n, b.Count-cur)
		if b.next.CompareAndSwap(cur, cur+got) {
			return b.StartInclusive + cur, got
		}
	}
}

func (b *block) remaining() uint64 {
	cur := b.next.Load()
	if cur >= b.Count {
		return 0
	}
	return b.Count - cur
}

// refillTask is one in-flight Authority fetch for a sequence. Fields other
// than done are written before done is closed.
type refillTask struct {
	done chan struct{}
	// sync tasks run in a caller's goroutine with retries; background tasks
	// make a single attempt.
	sync bool
	err  error
}

type sequenceState struct {
	scope    string
	sequence string
	current  atomic.Pointer[block]

	mu      sync.Mutex
	pending *block
	refill  *refillTask
	// refillBackoff spaces background fetches after failures. Guarded by mu.
	refillBackoff *backoff.ExponentialBackOff
	// retryAt is the UnixNano before which no background fetch starts.
	retryAt atomic.Int64
}

// refillFailed pushes retryAt out by the next backoff interval. Callers hold mu.
func (s *sequenceState) refillFailed(initial time.Duration) {
	if s.refillBackoff == nil {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = initial
		bo.MaxElapsedTime = 0
		bo.Reset()
		s.refillBackoff = bo
	}
	d := s.refillBackoff.NextBackOff()
	if d == backoff.Stop {
		d = s.refillBackoff.MaxInterval
	}
	s.retryAt.Store(time.Now().Add(d).UnixNano())
}

// refillSucceeded clears any backoff. Callers hold mu.
func (s *sequenceState) refillSucceeded() {
	if s.refillBackoff != nil {
		s.refillBackoff.Reset()
	}
	s.retryAt.Store(0)
}

func (s *sequenceState) backingOff() bool {
	at := s.retryAt.Load()
	return at != 0 && time.Now().UnixNano() < at
}
