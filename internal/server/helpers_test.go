package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"govrfp/internal/config"
)

// newTestServer returns a server backed by a DiskStore in a temp dir, with
// rate limiting off. mutate, if given, adjusts the config first.
func newTestServer(t *testing.T, mutate func(*Config)) (*Server, *DiskStore) {
	t.Helper()

	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	app := config.Default()
	app.Upload.Dir = store.Location()
	app.Limits.RateLimitRPS = 0

	cfg := Config{App: app, Logger: zerolog.Nop(), Store: store}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg), store
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), "body: %s", rr.Body.String())
	return v
}

// multipartBody builds a body with one file part named field.
func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	body, ct := multipartBody(t, "file", filename, content)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", ct)
	return req
}

// recordingAudit keeps every event in memory.
type recordingAudit struct {
	mu      sync.Mutex
	events  []AuditEvent
	pingErr error
}

func (a *recordingAudit) Record(_ context.Context, ev AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
	return nil
}

func (a *recordingAudit) Ping(context.Context) error { return a.pingErr }

func (a *recordingAudit) Events() []AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]AuditEvent(nil), a.events...)
}

// brokenStore fails every operation.
type brokenStore struct{}

var errDiskOnFire = errors.New("disk on fire at /var/secret/path")

func (brokenStore) Save(_ context.Context, _, _ string, r io.Reader) (int64, error) {
	_, _ = io.Copy(io.Discard, r)
	return 0, errDiskOnFire
}
func (brokenStore) Ready(context.Context) error { return errDiskOnFire }
func (brokenStore) Location() string            { return "broken" }
