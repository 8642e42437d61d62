package instrument

import logpkg "github.com/rzbill/gdid/pkg/log"

// Event is a named occurrence in the allocation protocol.
type Event int

const (
	// AllocBlockRequestFailure is a failed Generator to Authority call.
	AllocBlockRequestFailure Event = iota
	// AllocBlockRetriesExhausted is the escalation after every attempt failed
	// with no local block left.
	AllocBlockRetriesExhausted
	AllocBlockRefilled
	AuthLocationReadFailure
	AuthLocationReadTotalFailure
	AuthLocationWriteFailure
	AuthLocationWriteTotalFailure
	AuthEraPromoted
	AuthBlockAllocated
)

var eventNames = [...]string{
	AllocBlockRequestFailure:      "alloc_block_request_failure",
	AllocBlockRetriesExhausted:    "alloc_block_retries_exhausted",
	AllocBlockRefilled:            "alloc_block_refilled",
	AuthLocationReadFailure:       "auth_location_read_failure",
	AuthLocationReadTotalFailure:  "auth_location_read_total_failure",
	AuthLocationWriteFailure:      "auth_location_write_failure",
	AuthLocationWriteTotalFailure: "auth_location_write_total_failure",
	AuthEraPromoted:               "auth_era_promoted",
	AuthBlockAllocated:            "auth_block_allocated",
}

func (e Event) String() string {
	if int(e) < len(eventNames) {
		return eventNames[e]
	}
	return "unknown"
}

// Level is the log level an event is reported at.
func (e Event) Level() logpkg.Level {
	switch e {
	case AuthLocationReadTotalFailure, AuthLocationWriteTotalFailure:
		return logpkg.CatastrophicLevel
	case AllocBlockRetriesExhausted:
		return logpkg.ErrorLevel
	case AllocBlockRequestFailure, AuthLocationReadFailure, AuthLocationWriteFailure:
		return logpkg.WarnLevel
	case AuthEraPromoted:
		return logpkg.InfoLevel
	}
	return logpkg.DebugLevel
}
