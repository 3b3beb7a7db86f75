package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const partSuffix = ".part"

// CleanupConfig controls the stale upload sweeper.
type CleanupConfig struct {
	Interval time.Duration // 0 disables the job
	MaxAge   time.Duration
}

// StartCleanupJob periodically removes temp files left behind by uploads that
// never completed (crash, killed process). It blocks until ctx is done.
func (d *Disk) StartCleanupJob(ctx context.Context, cfg CleanupConfig) {
	if cfg.Interval <= 0 {
		d.log.Info("cleanup disabled")
		return
	}

	d.log.Info("cleanup starting", zap.Duration("interval", cfg.Interval), zap.Duration("max_age", cfg.MaxAge))

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	// Run immediately on start
	d.RemoveStaleParts(cfg.MaxAge)

	for {
		select {
		case <-ctx.Done():
			d.log.Info("cleanup shutting down")
			return
		case <-ticker.C:
			d.RemoveStaleParts(cfg.MaxAge)
		}
	}
}

// RemoveStaleParts deletes temp upload files older than maxAge and returns
// how many were removed. In-flight uploads are younger than any sane maxAge.
func (d *Disk) RemoveStaleParts(maxAge time.Duration) int {
	start := time.Now()
	cutoff := start.Add(-maxAge)

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		d.log.Warn("cleanup read dir failed", zap.Error(err))
		return 0
	}

	deleted := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, ".") || !strings.HasSuffix(name, partSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(d.dir, name)); err != nil {
			d.log.Warn("cleanup delete failed", zap.String("file", name), zap.Error(err))
			continue
		}
		deleted++
	}

	if deleted > 0 {
		d.log.Info("cleanup complete", zap.Int("deleted", deleted), zap.Duration("duration", time.Since(start)))
	}
	return deleted
}
