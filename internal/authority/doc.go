// Package authority implements the allocator that owns each sequence's
// counter timeline.
//
// An allocation takes the sequence lock, reads every Location and trusts the
// highest (Era, Counter) seen, computes the block, writes the new high-water
// mark to every Location and returns once at least one write succeeded. A
// round where every read or every write fails aborts the allocation without
// issuing anything.
//
// One live Authority is assumed per sequence; the lock is in-process only.
package authority
