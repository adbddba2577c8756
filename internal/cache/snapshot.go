package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/upmon/internal/domain"
)

// SnapshotError reports a failed snapshot read or write. It is never fatal.
type SnapshotError struct {
	Op   string // "load" or "save"
	Path string
	Err  error
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *SnapshotError) Unwrap() error { return e.Err }

// ReadSnapshot decodes the snapshot file at path.
func ReadSnapshot(path string) ([]domain.CheckResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &SnapshotError{Op: "load", Path: path, Err: err}
	}
	var rs []domain.CheckResult
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, &SnapshotError{Op: "load", Path: path, Err: err}
	}
	return rs, nil
}

// Load builds a cache from the snapshot at path. A missing, unreadable or
// malformed file yields an empty cache.
func Load(path string, logger *zap.Logger) *Cache {
	c := New()
	rs, err := ReadSnapshot(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Info("cache_snapshot_missing", zap.String("path", path))
		} else {
			logger.Warn("cache_snapshot_unreadable", zap.String("path", path), zap.Error(err))
		}
		return c
	}
	c.replaceAll(rs)
	logger.Info("cache_loaded", zap.String("path", path), zap.Int("entries", c.Len()))
	return c
}

// Save writes the whole cache as a pretty JSON array. The file is written to
// a temp file in the same directory, synced, then renamed over path, so
// readers never see a partial file.
func (c *Cache) Save(path string) error {
	data, err := json.MarshalIndent(c.Snapshot(""), "", "  ")
	if err != nil {
		return &SnapshotError{Op: "save", Path: path, Err: err}
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return &SnapshotError{Op: "save", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return &SnapshotError{Op: "save", Path: path, Err: err}
	}

	if _, err := tmp.Write(data); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &SnapshotError{Op: "save", Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &SnapshotError{Op: "save", Path: path, Err: err}
	}
	if err := syncDir(dir); err != nil {
		return &SnapshotError{Op: "save", Path: path, Err: err}
	}
	return nil
}

// syncDir flushes the directory entry so the rename survives a crash.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	if err := d.Sync(); err != nil {
		d.Close()
		return err
	}
	return d.Close()
}

// RunFlusher saves the cache every period until ctx is done, then performs
// one final save and returns.
func (c *Cache) RunFlusher(ctx context.Context, path string, period time.Duration, logger *zap.Logger) {
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := c.Save(path); err != nil {
				logger.Error("cache_final_flush_failed", zap.Error(err))
				return
			}
			logger.Info("cache_final_flush", zap.String("path", path), zap.Int("entries", c.Len()))
			return
		case <-t.C:
			if err := c.Save(path); err != nil {
				logger.Warn("cache_flush_failed", zap.Error(err))
			}
		}
	}
}
