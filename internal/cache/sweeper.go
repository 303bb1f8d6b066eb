package cache

import (
	"context"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/Molvine192/projectM-music/internal/core"
)

// Sweeper periodically removes cache entries older than the TTL. It runs
// independently of request traffic, holds no locks across its directory
// scan, and never exits on sweep errors.
type Sweeper struct {
	fs       afero.Fs
	dir      string
	ttl      time.Duration
	interval time.Duration
	onEvict  func(removed int)
	logger   *zap.Logger

	now func() time.Time
}

// NewSweeper creates a sweeper over the cache directory. onEvict, when
// non-nil, is called after each sweep that removed at least one artifact.
func NewSweeper(fs afero.Fs, cfg *core.CacheConfig, onEvict func(removed int), logger *zap.Logger) *Sweeper {
	return &Sweeper{
		fs:       fs,
		dir:      cfg.Dir,
		ttl:      cfg.TTL,
		interval: cfg.EvictionInterval,
		onEvict:  onEvict,
		logger:   logger,
		now:      time.Now,
	}
}

// Run loops until ctx is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("Starting eviction sweeper",
		zap.Duration("interval", s.interval),
		zap.Duration("ttl", s.ttl))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Eviction sweeper stopped")
			return nil
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep removes every artifact whose age exceeds the TTL, including
// abandoned temporary files from failed resolutions. Deletion failures are
// logged and otherwise ignored.
func (s *Sweeper) sweep() int {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		s.logger.Warn("Failed to scan cache directory", zap.Error(err))
		return 0
	}

	now := s.now()
	removed := 0
	for _, info := range entries {
		if info.IsDir() {
			continue
		}
		if now.Sub(info.ModTime()) < s.ttl {
			continue
		}
		if err := s.fs.Remove(filepath.Join(s.dir, info.Name())); err != nil {
			s.logger.Warn("Failed to evict stale artifact",
				zap.String("name", info.Name()),
				zap.Error(err))
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("Evicted stale artifacts", zap.Int("count", removed))
		if s.onEvict != nil {
			s.onEvict(removed)
		}
	}
	return removed
}
