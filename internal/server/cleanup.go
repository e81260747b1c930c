package server

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// tempUploadPrefix starts with a byte SanitizeFilename never keeps, so no
// stored upload can be mistaken for a temp file.
const tempUploadPrefix = "~upload-"

// SweepConfig holds configuration for the temp-file sweeper.
type SweepConfig struct {
	Interval time.Duration
	MaxAge   time.Duration
}

// SweepTemp removes temp files older than maxAge from the upload directory.
// They are left behind only when the process dies in the middle of a Save.
func (s *DiskStore) SweepTemp(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), tempUploadPrefix) || !strings.HasSuffix(e.Name(), ".part") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

// RunSweeper sweeps once immediately and then every cfg.Interval until ctx
// is cancelled.
func (s *DiskStore) RunSweeper(ctx context.Context, cfg SweepConfig, log zerolog.Logger) {
	log = log.With().Str("component", "sweeper").Logger()

	sweep := func() {
		n, err := s.SweepTemp(cfg.MaxAge)
		if err != nil {
			log.Warn().Err(err).Msg("sweep_failed")
			return
		}
		if n > 0 {
			log.Info().Int("removed", n).Msg("stale_temp_files_removed")
		}
	}

	sweep()
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
