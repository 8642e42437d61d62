package location

import (
	"context"
	"errors"
)

var (
	// ErrCorrupt is returned when a stored counter record fails validation.
	ErrCorrupt = errors.New("location: corrupt counter record")
	// ErrInjected is returned by Memory when a failure has been injected.
	ErrInjected = errors.New("location: injected failure")
)

// State is the durable high-water mark of one sequence: the next counter
// value to hand out within Era.
type State struct {
	Era     uint32
	Counter uint64
}

// Less orders states by (Era, Counter).
func (s State) Less(o State) bool {
	if s.Era != o.Era {
		return s.Era < o.Era
	}
	return s.Counter < o.Counter
}

// Location is one redundant durable store of sequence counters. A sequence
// that was never written reads as the zero State.
type Location interface {
	Name() string
	ReadCounter(ctx context.Context, scope, sequence string) (State, error)
	WriteCounter(ctx context.Context, scope, sequence string, st State) error
	Ping(ctx context.Context) error
	Close() error
}
