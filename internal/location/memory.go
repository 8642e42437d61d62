package location

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// Memory is a volatile Location with failure injection. It serves tests and
// throwaway development authorities.
type Memory struct {
	name string

	mu   sync.Mutex
	data map[string]State

	failReads  atomic.Bool
	failWrites atomic.Bool
	delay      atomic.Duration
	reads      atomic.Int64
	writes     atomic.Int64
}

// NewMemory returns an empty Memory location.
func NewMemory(name string) *Memory {
	return &Memory{name: name, data: make(map[string]State)}
}

func (m *Memory) Name() string { return m.name }

// SetFailReads makes every read fail until reset.
func (m *Memory) SetFailReads(v bool) { m.failReads.Store(v) }

// SetFailWrites makes every write fail until reset.
func (m *Memory) SetFailWrites(v bool) { m.failWrites.Store(v) }

// SetDelay delays every operation by d, or until the context ends.
func (m *Memory) SetDelay(d time.Duration) { m.delay.Store(d) }

// Seed stores st directly, bypassing failure injection.
func (m *Memory) Seed(scope, sequence string, st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(counterKey(scope, sequence))] = st
}

// Peek returns the stored state, bypassing failure injection.
func (m *Memory) Peek(scope, sequence string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.data[string(counterKey(scope, sequence))]
	return st, ok
}

// Reads returns the number of successful reads.
func (m *Memory) Reads() int64 { return m.reads.Load() }

// Writes returns the number of successful writes.
func (m *Memory) Writes() int64 { return m.writes.Load() }

func (m *Memory) wait(ctx context.Context) error {
	d := m.delay.Load()
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (m *Memory) ReadCounter(ctx context.Context, scope, sequence string) (State, error) {
	if err := m.wait(ctx); err != nil {
		return State{}, err
	}
	if m.failReads.Load() {
		return State{}, ErrInjected
	}
	m.mu.Lock()
	st := m.data[string(counterKey(scope, sequence))]
	m.mu.Unlock()
	m.reads.Inc()
	return st, nil
}

func (m *Memory) WriteCounter(ctx context.Context, scope, sequence string, st State) error {
	if err := m.wait(ctx); err != nil {
		return err
	}
	if m.failWrites.Load() {
		return ErrInjected
	}
	m.mu.Lock()
	m.data[string(counterKey(scope, sequence))] = st
	m.mu.Unlock()
	m.writes.Inc()
	return nil
}

func (m *Memory) Ping(ctx context.Context) error {
	if m.failReads.Load() {
		return ErrInjected
	}
	return ctx.Err()
}

func (m *Memory) Close() error { return nil }
