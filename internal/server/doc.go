// Package server implements the HTTP surface of the GovRFP AI backend: the
// upload and analysis endpoints, health probes, the index page and the
// middleware around them. It also holds the upload stores (local disk or
// MinIO) and the optional Postgres audit trail.
package server
