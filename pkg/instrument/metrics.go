package instrument

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gdid"

// Metrics holds the prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	events        *prometheus.CounterVec
	allocDuration *prometheus.HistogramVec
	blockSize     prometheus.Histogram
	storageOps    *prometheus.HistogramVec
	storageBytes  *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg. A nil reg disables metrics
// and returns a nil *Metrics.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}
	m := &Metrics{}
	var err error
	if m.events, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Allocation protocol events by kind and scope",
	}, []string{"event", "scope"})); err != nil {
		return nil, err
	}
	if m.allocDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "allocate_block_duration_seconds",
		Help:      "Duration of block allocations, by role (authority, generator) and outcome",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{"role", "outcome"})); err != nil {
		return nil, err
	}
	if m.blockSize, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "block_size",
		Help:      "Number of counter values granted per block",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 12),
	})); err != nil {
		return nil, err
	}
	if m.storageOps, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "location_op_duration_seconds",
		Help:      "Duration of storage operations per location",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
	}, []string{"location", "op"})); err != nil {
		return nil, err
	}
	if m.storageBytes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "location_bytes_total",
		Help:      "Bytes read and written per location",
	}, []string{"location", "op"})); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
			return c, fmt.Errorf("instrument: collector already registered with a different type")
		}
		return c, err
	}
	return c, nil
}

// Inc counts one occurrence of ev for scope.
func (m *Metrics) Inc(ev Event, scope string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(ev.String(), scope).Inc()
}

// ObserveAllocation records how long an allocation took.
func (m *Metrics) ObserveAllocation(role string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.allocDuration.WithLabelValues(role, outcome).Observe(elapsed.Seconds())
}

// ObserveBlock records the size of a granted block.
func (m *Metrics) ObserveBlock(count uint64) {
	if m == nil {
		return
	}
	m.blockSize.Observe(float64(count))
}

// StorageHook returns an observer for one location's storage operations.
func (m *Metrics) StorageHook(location string) *StorageHook {
	return &StorageHook{m: m, location: location}
}

// StorageHook adapts Metrics to the storage layer's observation callbacks.
type StorageHook struct {
	m        *Metrics
	location string
}

func (h *StorageHook) observe(op string, elapsed time.Duration, bytes int) {
	if h == nil || h.m == nil {
		return
	}
	h.m.storageOps.WithLabelValues(h.location, op).Observe(elapsed.Seconds())
	h.m.storageBytes.WithLabelValues(h.location, op).Add(float64(bytes))
}

func (h *StorageHook) ObserveWrite(elapsed time.Duration, bytes int) { h.observe("write", elapsed, bytes) }
func (h *StorageHook) ObserveRead(elapsed time.Duration, bytes int)  { h.observe("read", elapsed, bytes) }
