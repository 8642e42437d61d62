package authority

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/rzbill/gdid/internal/location"
	"github.com/rzbill/gdid/pkg/gdid"
)

// SequenceState is the in-memory lifecycle of one sequence on this Authority.
// Only Active is steady; the others are per-call transients.
type SequenceState int32

const (
	StateUninitialized SequenceState = iota
	StateActive
	StateEraPromoting
	StateUnavailable
)

func (s SequenceState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateEraPromoting:
		return "era_promoting"
	case StateUnavailable:
		return "unavailable"
	}
	return "uninitialized"
}

type key struct {
	scope    string
	sequence string
}

// sequence holds the allocation lock for one (scope, sequence). mu is held
// for the whole of one AllocateBlock call, I/O included.
type sequence struct {
	mu    sync.Mutex
	state atomic.Int32
	// floor is the last state this Authority committed. Guarded by mu.
	// Allocation never starts below it, even if every readable Location
	// reports less after a late write landed out of order.
	floor location.State

	infoMu sync.RWMutex
	info   gdid.SequenceInfo
	issued bool
}

func (s *sequence) setState(st SequenceState) { s.state.Store(int32(st)) }

func (s *sequence) getState() SequenceState { return SequenceState(s.state.Load()) }

func (s *sequence) setInfo(info gdid.SequenceInfo) {
	s.infoMu.Lock()
	s.info = info
	s.issued = true
	s.infoMu.Unlock()
}

func (s *sequence) snapshot() (gdid.SequenceInfo, bool) {
	s.infoMu.RLock()
	defer s.infoMu.RUnlock()
	return s.info, s.issued
}
