package server

import (
	"context"
	"net/http"
	"time"
)

// HealthStatus represents the overall health of the system
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentStatus represents the health of an individual component
type ComponentStatus string

const (
	ComponentStatusUp   ComponentStatus = "up"
	ComponentStatusDown ComponentStatus = "down"
)

type healthResp struct {
	Status  HealthStatus `json:"status"`
	Service string       `json:"service"`
}

// Readiness is the body of GET /ready.
type Readiness struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents the health of a single system component
type ComponentHealth struct {
	Status    ComponentStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	LatencyMs int64           `json:"latency_ms"`
}

// handleHealth is the liveness probe used by external monitors. It does not
// touch any dependency and always succeeds while the process runs.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResp{Status: HealthStatusHealthy, Service: ServiceName})
}

// handleLive provides a liveness probe (is the process running?)
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleReady checks the storage backend and the audit database and returns
// 503 when either is down.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	ready := Readiness{
		Status:     HealthStatusHealthy,
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]ComponentHealth, 2),
	}
	checks := map[string]func(context.Context) error{
		"storage":  s.store.Ready,
		"database": s.auditLog.Ping,
	}

	status := http.StatusOK
	for name, check := range checks {
		c, err := checkComponent(ctx, check)
		ready.Components[name] = c
		if err != nil {
			ready.Status = HealthStatusUnhealthy
			status = http.StatusServiceUnavailable
			s.log.Warn().Err(err).Str("component", name).Msg("readiness_check_failed")
		}
	}

	writeJSON(w, status, ready)
}

// checkComponent runs one check. The probe is unauthenticated, so the error
// goes to the log only.
func checkComponent(ctx context.Context, check func(context.Context) error) (ComponentHealth, error) {
	start := time.Now()
	err := check(ctx)
	c := ComponentHealth{Status: ComponentStatusUp, LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		c.Status = ComponentStatusDown
		c.Message = "check failed"
	}
	return c, err
}
