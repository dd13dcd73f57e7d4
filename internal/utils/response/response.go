// Package response provides helpers for writing consistent JSON HTTP
// responses from the reference backend.
//
// Success responses may return any JSON shape (a student, a list...).
// Error responses always look like:
//
//	{ "status": "error", "error": "Name must be at least 2 characters" }
//
// which is the envelope the transport client reads its server message from.
package response

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aanand-mishra/students-client/internal/validation"
)

// Response is the standard envelope returned for error cases.
type Response struct {
	Status string                  `json:"status"`
	Error  string                  `json:"error"`
	Fields []validation.FieldError `json:"fields,omitempty"`
}

// StatusError is the "status" of every error envelope.
const StatusError = "error"

// WriteJSON writes a JSON-encoded response with the given HTTP status code.
//
// IMPORTANT ORDER: Header() → WriteHeader() → body writes.
// Once WriteHeader is called (or the first Write), headers are locked.
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// GeneralError wraps any Go error into the standard Response shape.
func GeneralError(err error) Response {
	return Response{
		Status: StatusError,
		Error:  err.Error(),
	}
}

// ValidationError turns a rejected input into a single readable message
// plus the per-field list.
//
//	{ "status": "error",
//	  "error": "Name must be at least 2 characters, Course is required",
//	  "fields": [ {"field":"name", ...}, {"field":"course", ...} ] }
func ValidationError(verr *validation.Error) Response {
	msgs := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		msgs = append(msgs, f.Message)
	}

	return Response{
		Status: StatusError,
		Error:  strings.Join(msgs, ", "),
		Fields: verr.Fields,
	}
}
