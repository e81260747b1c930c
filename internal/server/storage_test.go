package server

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govrfp/internal/config"
)

func TestDiskStore_Path(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	p, err := store.Path("rfp.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Location(), "rfp.pdf"), p)

	for _, bad := range []string{"..", "../x", "a/../../x", "", "."} {
		_, err := store.Path(bad)
		assert.ErrorIs(t, err, ErrOutsideUploadDir, bad)
	}
}

func TestDiskStore_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "uploads")
	store, err := NewDiskStore(dir)
	require.NoError(t, err)
	assert.DirExists(t, store.Location())
	assert.True(t, filepath.IsAbs(store.Location()))
}

func TestDiskStore_Save(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	n, err := store.Save(context.Background(), "a.txt", "text/plain", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	got, err := os.ReadFile(filepath.Join(store.Location(), "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

type failingReader struct{ after int }

func (f *failingReader) Read(p []byte) (int, error) {
	if f.after <= 0 {
		return 0, errors.New("connection reset")
	}
	n := min(len(p), f.after)
	for i := range p[:n] {
		p[i] = 'x'
	}
	f.after -= n
	return n, nil
}

func TestDiskStore_SaveFailureLeavesNothing(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save(context.Background(), "a.txt", "", &failingReader{after: 10})
	require.Error(t, err)

	entries, err := os.ReadDir(store.Location())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDiskStore_SaveFailureKeepsPrevious(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save(context.Background(), "a.txt", "", strings.NewReader("v1"))
	require.NoError(t, err)
	_, err = store.Save(context.Background(), "a.txt", "", &failingReader{after: 3})
	require.Error(t, err)

	got, err := os.ReadFile(filepath.Join(store.Location(), "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))
}

func TestDiskStore_SaveCancelled(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Save(ctx, "a.txt", "", strings.NewReader("data"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(store.Location(), "a.txt"))
}

func TestDiskStore_Ready(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Ready(context.Background()))

	require.NoError(t, os.RemoveAll(dir))
	assert.Error(t, store.Ready(context.Background()))
}

func TestOpenStore(t *testing.T) {
	cfg := config.Default()
	cfg.Upload.Dir = t.TempDir()

	s, err := OpenStore(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &DiskStore{}, s)

	cfg.Storage.Backend = "ftp"
	_, err = OpenStore(context.Background(), cfg)
	assert.Error(t, err)

	cfg.Storage.Backend = "minio"
	_, err = OpenStore(context.Background(), cfg)
	assert.ErrorContains(t, err, "incomplete")
}
