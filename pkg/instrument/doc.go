// Package instrument turns allocation protocol events into prometheus
// counters and leveled log lines. Transient failures that the protocol
// absorbs are only visible here.
package instrument
