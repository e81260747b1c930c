// prometheus.go - Prometheus text exposition of the in-process counters.
package server

import (
	"fmt"
	"net/http"
	"strings"
)

// Handler serves the counters in the Prometheus text format.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := m.Snapshot()

		var out strings.Builder
		writeMetric(&out, "govrfp_requests_total", "counter", "Total number of HTTP requests", snap.RequestsTotal)
		writeMetric(&out, "govrfp_request_errors_4xx_total", "counter", "HTTP responses with a 4xx status", snap.RequestErrors4xx)
		writeMetric(&out, "govrfp_request_errors_5xx_total", "counter", "HTTP responses with a 5xx status", snap.RequestErrors5xx)
		writeMetric(&out, "govrfp_rate_limited_total", "counter", "Requests rejected by the rate limiter", snap.RateLimitedTotal)
		writeMetric(&out, "govrfp_uploads_total", "counter", "Files stored", snap.UploadsTotal)
		writeMetric(&out, "govrfp_upload_bytes_total", "counter", "Bytes stored", snap.UploadBytesTotal)
		writeMetric(&out, "govrfp_upload_rejected_total", "counter", "Uploads rejected for client errors", snap.UploadRejectedTotal)
		writeMetric(&out, "govrfp_upload_errors_total", "counter", "Uploads failed for internal errors", snap.UploadErrorsTotal)
		writeMetric(&out, "govrfp_upload_avg_duration_ms", "gauge", "Mean duration of a successful upload", snap.UploadAvgDurationMs)
		writeMetric(&out, "govrfp_analyses_total", "counter", "Analysis requests served", snap.AnalysesTotal)
		writeMetric(&out, "govrfp_uptime_seconds", "gauge", "Seconds since the process started", snap.UptimeSeconds)

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(out.String()))
	}
}

func writeMetric(b *strings.Builder, name, kind, help string, value any) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s %s\n", name, kind)
	switch v := value.(type) {
	case float64:
		fmt.Fprintf(b, "%s %g\n\n", name, v)
	default:
		fmt.Fprintf(b, "%s %v\n\n", name, v)
	}
}
