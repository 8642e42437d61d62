package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/rzbill/gdid/pkg/gdid"
)

// Helper functions for common HTTP responses

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeJSON writes a JSON response with the given data.
func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

// writeJSONStatus writes a JSON response with a non-200 status.
func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeAllocationError maps an allocation error kind to an HTTP status.
func writeAllocationError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch gdid.KindOf(err) {
	case gdid.KindInvalidName, gdid.KindInvalidArgument:
		status = http.StatusBadRequest
	case gdid.KindLocationReadTotalFailure, gdid.KindLocationWriteTotalFailure, gdid.KindClosed:
		status = http.StatusServiceUnavailable
	case gdid.KindSequenceExhausted:
		status = http.StatusConflict
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
		"kind":  gdid.KindOf(err).String(),
	})
}

// parseBool parses a boolean string and returns the boolean value.
//
// Returns true for "true" or "1", false otherwise.
func parseBool(s string) bool {
	return s == "true" || s == "1"
}
