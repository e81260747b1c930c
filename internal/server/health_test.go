package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rr := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decode[map[string]string](t, rr)
	assert.Equal(t, map[string]string{"status": "healthy", "service": "GovRFP AI"}, resp)
}

func TestHealth_IgnoresBrokenDependencies(t *testing.T) {
	s, _ := newTestServer(t, func(c *Config) {
		c.Store = brokenStore{}
		c.Audit = &recordingAudit{pingErr: errors.New("db down")}
	})

	rr := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestLive(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rr := do(t, s, httptest.NewRequest(http.MethodGet, "/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "alive", decode[map[string]string](t, rr)["status"])
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Config)
		wantStatus int
		wantDown   []string
	}{
		{"all up", nil, http.StatusOK, nil},
		{
			name:       "storage down",
			mutate:     func(c *Config) { c.Store = brokenStore{} },
			wantStatus: http.StatusServiceUnavailable,
			wantDown:   []string{"storage"},
		},
		{
			name:       "database down",
			mutate:     func(c *Config) { c.Audit = &recordingAudit{pingErr: errors.New("connection refused")} },
			wantStatus: http.StatusServiceUnavailable,
			wantDown:   []string{"database"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, tt.mutate)

			rr := do(t, s, httptest.NewRequest(http.MethodGet, "/ready", nil))
			require.Equal(t, tt.wantStatus, rr.Code)

			ready := decode[Readiness](t, rr)
			require.Len(t, ready.Components, 2)
			if tt.wantDown == nil {
				assert.Equal(t, HealthStatusHealthy, ready.Status)
			} else {
				assert.Equal(t, HealthStatusUnhealthy, ready.Status)
			}
			for _, name := range tt.wantDown {
				c := ready.Components[name]
				assert.Equal(t, ComponentStatusDown, c.Status)
				assert.Equal(t, "check failed", c.Message)
			}
			assert.NotContains(t, rr.Body.String(), "/var/secret/path")
		})
	}
}
