package gdid

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidName is wrapped by validation failures of scope or sequence names.
	ErrInvalidName = errors.New("invalid scope or sequence name")
	// ErrClosed is returned by a generator after Close.
	ErrClosed = errors.New("generator closed")
	// ErrAuthorityNodeLocked is returned when the testing authority node is
	// changed after the generator served its first request.
	ErrAuthorityNodeLocked = errors.New("testing authority node can only be set before first use")
)

// ErrorKind classifies an AllocationError.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindInvalidName
	KindInvalidArgument
	// KindRequestFailure is a failed Generator to Authority call (network, timeout).
	KindRequestFailure
	// KindLocationReadTotalFailure means no Location could be read.
	KindLocationReadTotalFailure
	// KindLocationWriteTotalFailure means no Location accepted the write; nothing was committed.
	KindLocationWriteTotalFailure
	// KindRetriesExhausted means the generator had no block left and every attempt failed.
	KindRetriesExhausted
	KindClosed
	// KindSequenceExhausted means the last Era's counter space is used up.
	KindSequenceExhausted
)

var kindNames = map[ErrorKind]string{
	KindUnknown:                   "unknown",
	KindInvalidName:               "invalid_name",
	KindInvalidArgument:           "invalid_argument",
	KindRequestFailure:            "request_failure",
	KindLocationReadTotalFailure:  "location_read_total_failure",
	KindLocationWriteTotalFailure: "location_write_total_failure",
	KindRetriesExhausted:          "retries_exhausted",
	KindClosed:                    "closed",
	KindSequenceExhausted:         "sequence_exhausted",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseKind is the inverse of ErrorKind.String. Unrecognized input yields KindUnknown.
func ParseKind(s string) ErrorKind {
	for k, name := range kindNames {
		if name == s {
			return k
		}
	}
	return KindUnknown
}

// AllocationError is the failure half of every generation and allocation result.
type AllocationError struct {
	Kind     ErrorKind
	Scope    string
	Sequence string
	// Attempts is the number of Authority calls made, when known.
	Attempts int
	Err      error
}

func (e *AllocationError) Error() string {
	msg := fmt.Sprintf("gdid: %s for %s/%s", e.Kind, e.Scope, e.Sequence)
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AllocationError) Unwrap() error { return e.Err }

// Retryable reports whether a later Authority call may succeed. Total
// Location failures abort the allocation at the Authority but are retryable
// from the Generator once Locations recover.
func (e *AllocationError) Retryable() bool {
	switch e.Kind {
	case KindRequestFailure, KindLocationReadTotalFailure, KindLocationWriteTotalFailure, KindUnknown:
		return true
	}
	return false
}

// NewError builds an AllocationError.
func NewError(kind ErrorKind, scope, sequence string, err error) *AllocationError {
	return &AllocationError{Kind: kind, Scope: scope, Sequence: sequence, Err: err}
}

// KindOf returns the kind of err, or KindUnknown when err is not an AllocationError.
func KindOf(err error) ErrorKind {
	var ae *AllocationError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err is worth another Authority call.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ae *AllocationError
	if errors.As(err, &ae) {
		return ae.Retryable()
	}
	return true
}
