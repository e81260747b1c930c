package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyzeRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAnalyze_Success(t *testing.T) {
	bodies := []string{
		`{"test":"data"}`,
		`{"rfp_text":"Offerors shall submit...","agency":"DoD"}`,
		`[1,2,3]`,
		`"just a string"`,
		"{\"test\":\"data\"}\n\t ",
	}
	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			s, _ := newTestServer(t, nil)

			rr := do(t, s, analyzeRequest(body))
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			res := decode[AnalysisResult](t, rr)
			assert.Equal(t, "success", res.Status)
			assert.NotEmpty(t, res.Analysis)
			assert.NotEmpty(t, res.Recommendations)
		})
	}
}

func TestAnalyze_IgnoresContent(t *testing.T) {
	s, _ := newTestServer(t, nil)

	a := decode[AnalysisResult](t, do(t, s, analyzeRequest(`{"a":1}`)))
	b := decode[AnalysisResult](t, do(t, s, analyzeRequest(`{"completely":"different"}`)))
	assert.Equal(t, a, b)
}

func TestAnalyze_RejectsMissingJSON(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"whitespace", "   \n"},
		{"invalid json", "{not json"},
		{"null", "null"},
		{"form data", "a=1&b=2"},
		{"trailing garbage", `{"test":"data"} not json`},
		{"two values", `{"a":1}{"b":2}`},
		{"unterminated object", `{"a":1`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, nil)

			rr := do(t, s, analyzeRequest(tt.body))
			require.Equal(t, http.StatusBadRequest, rr.Code)

			resp := decode[errorResp](t, rr)
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, "Request body must be valid JSON", resp.Error)
			assert.Zero(t, s.metrics.Snapshot().AnalysesTotal)
		})
	}
}

func TestAnalyze_TooLarge(t *testing.T) {
	s, _ := newTestServer(t, func(c *Config) { c.App.Upload.MaxContentLength = 64 })

	body := `{"text":"` + strings.Repeat("x", 200) + `"}`
	rr := do(t, s, analyzeRequest(body))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)

	req := analyzeRequest(body)
	req.ContentLength = -1
	rr = do(t, s, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestAnalyze_RecordsAudit(t *testing.T) {
	audit := &recordingAudit{}
	s, _ := newTestServer(t, func(c *Config) { c.Audit = audit })

	rr := do(t, s, analyzeRequest(`{"test":"data"}`))
	require.Equal(t, http.StatusOK, rr.Code)

	events := audit.Events()
	require.Len(t, events, 1)
	assert.Equal(t, AuditAnalyze, events[0].Action)
	assert.Equal(t, int64(1), s.metrics.Snapshot().AnalysesTotal)
}
