// responses.go -- Package-wide HTTP response helpers.
//
// Shared by handlers and middleware. Recognized domain errors serialize as
// {"error": CODE, "message": ...} with their mapped status; everything else
// is logged and collapsed to a generic 500.
package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"
)

// writeJSON serializes v with the given status. Responses that echo stored
// data (emails can legally contain quotes) go through here; fixed-string
// responses keep the literal writers below.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteDomainError serializes err. Unrecognized errors never leak details to
// the client.
func WriteDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var derr *Error
	if !errors.As(err, &derr) {
		InternalServerError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(derr.Status)
	w.Write([]byte(`{"error":"` + derr.Code + `","message":"` + derr.Message + `"}`))
}

// RateLimited writes the 429 response with a Retry-After header derived from
// the limiter's window reset time.
func RateLimited(w http.ResponseWriter, resetAt time.Time) {
	retryAfter := int(time.Until(resetAt).Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"error":"` + ErrRateLimited.Code + `","message":"` + ErrRateLimited.Message + `"}`))
}

// InternalServerError logs the error and returns a generic 500 JSON response.
func InternalServerError(w http.ResponseWriter, r *http.Request, err error) {
	logError(r, "internal server error", "error", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte(`{"message":"internal server error"}`))
}

// BadRequest returns a 400 JSON response with the given message.
// Use for client input validation failures. Messages are fixed ASCII
// strings, never user input.
func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	w.Write([]byte(`{"message":"` + message + `"}`))
}

// Unauthorized returns a 401 JSON response with a generic message.
// Keep the message generic to prevent user enumeration.
func Unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"message":"` + message + `"}`))
}

// OK returns a 200 JSON response with the given message.
func OK(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message":"` + message + `"}`))
}
