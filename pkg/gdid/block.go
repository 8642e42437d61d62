package gdid

import (
	"math"
	"time"
)

// Block is a contiguous reservation [StartInclusive, StartInclusive+Count) of
// counter values within one Era, granted to exactly one Generator.
type Block struct {
	Scope          string
	Sequence       string
	Era            uint32
	StartInclusive uint64
	Count          uint64
	// Authority names the issuer that granted the block.
	Authority string
	IssuedAt  time.Time
}

// End returns the exclusive upper bound of the block.
func (b Block) End() uint64 { return b.StartInclusive + b.Count }

// Empty reports whether the block holds no values.
func (b Block) Empty() bool { return b.Count == 0 }

// At returns the i-th identifier of the block. It does not bounds-check.
func (b Block) At(i uint64) GDID {
	return GDID{Era: b.Era, Counter: b.StartInclusive + i}
}

// Overlaps reports whether b and o share at least one identifier.
func (b Block) Overlaps(o Block) bool {
	if b.Era != o.Era || b.Empty() || o.Empty() {
		return false
	}
	return b.StartInclusive < o.End() && o.StartInclusive < b.End()
}

// SequenceInfo is informational state kept by the Authority for monitoring.
// It must never be used to construct an identifier.
type SequenceInfo struct {
	Scope                   string    `json:"scope" msgpack:"scope"`
	Sequence                string    `json:"sequence" msgpack:"sequence"`
	Era                     uint32    `json:"era" msgpack:"era"`
	ApproximateCurrentValue uint64    `json:"approximateCurrentValue" msgpack:"approximate_current_value"`
	TotalPreallocation      uint64    `json:"totalPreallocation" msgpack:"total_preallocation"`
	RemainingPreallocation  uint64    `json:"remainingPreallocation" msgpack:"remaining_preallocation"`
	IssuerName              string    `json:"issuerName" msgpack:"issuer_name"`
	IssueUtcDate            time.Time `json:"issueUtcDate" msgpack:"issue_utc_date"`
}

// VicinityNone means "no placement preference" when passed as a vicinity.
const VicinityNone uint64 = math.MaxUint64

// AllocationOptions tunes a single generation call.
//
// The zero value is not the default: Vicinity 0 asks the Authority to place
// the block near zero, which it treats as a no-op. Use DefaultAllocationOptions.
type AllocationOptions struct {
	// BlockSize requested from the Authority on refill; 0 uses the generator default.
	BlockSize int
	// Vicinity hints where on the counter scale the Authority should allocate.
	Vicinity uint64
	// NoLowWaterMark disables background refill for this call.
	NoLowWaterMark bool
}

// DefaultAllocationOptions returns BlockSize=0, Vicinity=VicinityNone and
// low-water-mark refill enabled.
func DefaultAllocationOptions() AllocationOptions {
	return AllocationOptions{Vicinity: VicinityNone}
}
