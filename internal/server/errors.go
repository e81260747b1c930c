package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"
)

// Client and resource-limit errors. Anything else reaching writeError is
// treated as internal and never shown to the client.
var (
	ErrMissingFile        = errors.New("missing file field")
	ErrEmptyFilename      = errors.New("empty filename")
	ErrMalformedMultipart = errors.New("malformed multipart body")
	ErrPayloadTooLarge    = errors.New("payload too large")
	ErrNoJSONBody         = errors.New("no JSON body")
)

// errorResp is the JSON body of every non-2xx response.
type errorResp struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// statusFor maps an error onto the HTTP status and the message the client sees.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrMissingFile):
		return http.StatusBadRequest, "No file part in the request"
	case errors.Is(err, ErrEmptyFilename):
		return http.StatusBadRequest, "No file selected"
	case errors.Is(err, ErrMalformedMultipart):
		return http.StatusBadRequest, "Malformed multipart body"
	case errors.Is(err, ErrNoJSONBody):
		return http.StatusBadRequest, "Request body must be valid JSON"
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, "File too large"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// writeError logs err and writes the redacted JSON error response.
// Only 5xx errors are logged above debug level.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	log := hlog.FromRequest(r)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request_failed")
	} else {
		log.Debug().Err(err).Int("status", status).Str("path", r.URL.Path).Msg("request_rejected")
	}
	writeJSONError(w, status, msg)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResp{Status: "error", Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, http.StatusNotFound, "Endpoint not found")
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
}
