package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Veraticus/the-queue-must-flow/internal/common"
)

// Error kinds that exist only at the HTTP boundary.
const (
	kindUnauthenticated = "unauthenticated"
	kindBadRequest      = "bad_request"
	kindRateLimited     = "rate_limited"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind string) int {
	switch kind {
	case "validation":
		return http.StatusUnprocessableEntity
	case "not_found":
		return http.StatusNotFound
	case "invalid_transition", "dangling_reference":
		return http.StatusConflict
	case "forbidden":
		return http.StatusForbidden
	case kindUnauthenticated:
		return http.StatusUnauthorized
	case kindBadRequest:
		return http.StatusBadRequest
	case kindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondKind(w http.ResponseWriter, kind, message string) {
	respondJSON(w, statusFor(kind), errorBody{Error: message, Kind: kind})
}

// respondError writes err using its error kind. Store and internal failures
// are logged and their details withheld.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := common.Kind(err)
	message := err.Error()

	if kind == "store" || kind == "internal" {
		s.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"kind", kind,
			"error", err)
		message = http.StatusText(statusFor(kind))
	}

	respondKind(w, kind, message)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("malformed JSON body: %w", err)
	}
	return nil
}
