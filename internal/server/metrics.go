package server

import (
	"sync"
	"time"
)

// Metrics holds in-process counters for the HTTP surface.
type Metrics struct {
	mu sync.RWMutex

	// Upload metrics
	uploadsTotal        int64
	uploadBytesTotal    int64
	uploadRejectedTotal int64
	uploadErrorsTotal   int64
	uploadDurationTotal time.Duration

	// Analysis metrics
	analysesTotal int64

	// System metrics
	requestsTotal    int64
	requestErrors5xx int64
	requestErrors4xx int64
	rateLimitedTotal int64

	startedAt time.Time
}

// MetricsSnapshot is a consistent copy of the counters.
type MetricsSnapshot struct {
	UploadsTotal        int64   `json:"uploads_total"`
	UploadBytesTotal    int64   `json:"upload_bytes_total"`
	UploadRejectedTotal int64   `json:"upload_rejected_total"`
	UploadErrorsTotal   int64   `json:"upload_errors_total"`
	UploadAvgDurationMs float64 `json:"upload_avg_duration_ms"`
	AnalysesTotal       int64   `json:"analyses_total"`
	RequestsTotal       int64   `json:"requests_total"`
	RequestErrors4xx    int64   `json:"request_errors_4xx"`
	RequestErrors5xx    int64   `json:"request_errors_5xx"`
	RateLimitedTotal    int64   `json:"rate_limited_total"`
	UptimeSeconds       float64 `json:"uptime_seconds"`
}

func NewMetrics() *Metrics {
	return &Metrics{startedAt: time.Now()}
}

// RecordUpload records a successful upload
func (m *Metrics) RecordUpload(bytes int64, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadsTotal++
	m.uploadBytesTotal += bytes
	m.uploadDurationTotal += duration
}

// RecordUploadFailure counts a failed upload; client errors and internal
// errors are kept apart.
func (m *Metrics) RecordUploadFailure(clientError bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if clientError {
		m.uploadRejectedTotal++
	} else {
		m.uploadErrorsTotal++
	}
}

func (m *Metrics) RecordAnalysis() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analysesTotal++
}

func (m *Metrics) RecordRateLimited() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimitedTotal++
}

// RecordRequest records an HTTP request
func (m *Metrics) RecordRequest(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++

	if statusCode >= 500 {
		m.requestErrors5xx++
	} else if statusCode >= 400 {
		m.requestErrors4xx++
	}
}

// Snapshot returns a snapshot of current metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MetricsSnapshot{
		UploadsTotal:        m.uploadsTotal,
		UploadBytesTotal:    m.uploadBytesTotal,
		UploadRejectedTotal: m.uploadRejectedTotal,
		UploadErrorsTotal:   m.uploadErrorsTotal,
		UploadAvgDurationMs: avgDuration(m.uploadDurationTotal, m.uploadsTotal),
		AnalysesTotal:       m.analysesTotal,
		RequestsTotal:       m.requestsTotal,
		RequestErrors4xx:    m.requestErrors4xx,
		RequestErrors5xx:    m.requestErrors5xx,
		RateLimitedTotal:    m.rateLimitedTotal,
		UptimeSeconds:       time.Since(m.startedAt).Seconds(),
	}
}

func avgDuration(total time.Duration, count int64) float64 {
	if count == 0 {
		return 0
	}
	return float64(total.Milliseconds()) / float64(count)
}
