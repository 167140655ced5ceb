// Package common holds small HTTP helpers shared by the REST handlers.
package common

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
)

// MaxBodyBytes bounds request bodies accepted by DecodeJSON.
const MaxBodyBytes = 1 << 20

// ErrorBody is the minimal error payload for responses that do not come from
// an AppError.
type ErrorBody struct {
	Error   string `json:"error"`
	ResetIn *int   `json:"resetIn,omitempty"`
}

// RespondJSON sends data as a JSON response
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// RespondError sends {"error": message}
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorBody{Error: message})
}

// RespondRateLimited sends the 429 payload with the seconds until the window resets.
func RespondRateLimited(w http.ResponseWriter, resetIn int) {
	w.Header().Set("Retry-After", strconv.Itoa(resetIn))
	RespondJSON(w, http.StatusTooManyRequests, ErrorBody{Error: "Rate limit exceeded", ResetIn: &resetIn})
}

// DecodeJSON reads a single JSON document from the request body into dst.
// An empty body is reported as io.EOF.
func DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return errors.Wrap(err, "decode request body")
	}
	return nil
}
