package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// AnalysisResult is the response of POST /api/analyze. The endpoint is a
// placeholder: the text below is static and the request body is not inspected
// beyond checking that it is JSON.
type AnalysisResult struct {
	Status          string   `json:"status"`
	Analysis        string   `json:"analysis"`
	Recommendations []string `json:"recommendations"`
}

func stubAnalysis() AnalysisResult {
	return AnalysisResult{
		Status:   "success",
		Analysis: "RFP analysis completed. The document structure was received and queued for review.",
		Recommendations: []string{
			"Clarify evaluation criteria and their relative weights",
			"Confirm the required security and compliance standards (e.g. NIST 800-171, CMMC)",
			"Add measurable performance requirements to the statement of work",
			"Check submission deadlines and page limits against the acquisition type",
		},
	}
}

// handleAnalyze handles POST /api/analyze.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	body, err := readJSONBody(w, r, s.cfg.Upload.MaxContentLength)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.metrics.RecordAnalysis()
	s.audit(r, AuditAnalyze, fmt.Sprintf("analysis request of %d bytes", len(body)))

	writeJSON(w, http.StatusOK, stubAnalysis())
}

// readJSONBody returns the request body as an opaque JSON value. An empty
// body, invalid JSON, more than one value or a bare null all count as
// "no JSON body".
func readJSONBody(w http.ResponseWriter, r *http.Request, limit int64) (json.RawMessage, error) {
	if r.ContentLength > limit {
		return nil, ErrPayloadTooLarge
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	dec := json.NewDecoder(r.Body)
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		if isTooLarge(err) {
			return nil, ErrPayloadTooLarge
		}
		if errors.Is(err, io.EOF) {
			return nil, ErrNoJSONBody
		}
		return nil, fmt.Errorf("%w: %v", ErrNoJSONBody, err)
	}
	// Only whitespace may follow the value.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if isTooLarge(err) {
			return nil, ErrPayloadTooLarge
		}
		return nil, fmt.Errorf("%w: trailing data after JSON value", ErrNoJSONBody)
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, ErrNoJSONBody
	}
	return raw, nil
}
