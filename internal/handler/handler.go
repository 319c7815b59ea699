// Package handler contains HTTP request handlers for the shipment tracking API.
package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/shiva/shiptrack/internal/metrics"
	"github.com/shiva/shiptrack/internal/service"
)

// maxBodyBytes caps request bodies; the admin form is the largest payload.
const maxBodyBytes = 1 << 20

// Client-facing error messages. Store errors never reach the client.
const (
	msgNotFound    = "Tracking code not found"
	msgMissingCode = "Shipment code is required"
	msgInvalidJSON = "Invalid JSON body"
	msgInternal    = "Internal Server Error"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// writeJSON is a helper that writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[handler] encode response: %v", err)
	}
}

// decodeJSON reads the request body into dst. On failure it writes a 400
// and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgInvalidJSON})
		return false
	}
	return true
}

// writeServiceError maps service errors onto HTTP responses:
//
//	ValidationError      → 400 {error, field}
//	ErrMissingCode       → 400
//	ErrShipmentNotFound  → 404
//	anything else        → 500, logged, generic message
func writeServiceError(w http.ResponseWriter, op string, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		metrics.ValidationFailuresTotal.WithLabelValues(verr.Field).Inc()
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Message, Field: verr.Field})
	case errors.Is(err, service.ErrMissingCode):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgMissingCode, Field: "code"})
	case errors.Is(err, service.ErrShipmentNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: msgNotFound})
	default:
		log.Printf("[handler] %s error: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgInternal})
	}
}
