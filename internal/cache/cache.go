// Package cache stores transcoded artifacts on a filesystem keyed by media
// identifier, with TTL-based freshness, single-flight resolution and a
// background eviction sweep.
package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Molvine192/projectM-music/internal/core"
	"github.com/Molvine192/projectM-music/internal/resolve"
	"github.com/Molvine192/projectM-music/pkg/mediaid"
)

// Resolver runs the resolution cascade for one identifier, writing the
// artifact to destPath on success.
type Resolver interface {
	Resolve(ctx context.Context, identifier, destPath string) (*resolve.Result, error)
}

// EventRecorder receives cache lookup outcomes (hit, miss, coalesced).
// Implemented by the metrics server; a nil recorder disables recording.
type EventRecorder interface {
	RecordCacheEvent(event string)
}

// Entry is the outcome of GetOrResolve: the artifact path plus whatever
// metadata is known for the identifier.
type Entry struct {
	Path     string
	Metadata core.TrackMetadata
	CacheHit bool
}

// ArtifactCache owns the cache directory exclusively: artifacts are written
// to a temporary name and renamed into place, so readers and the sweeper
// never observe a partially written file.
type ArtifactCache struct {
	fs       afero.Fs
	dir      string
	ttl      time.Duration
	resolver Resolver
	meta     *lru.Cache[string, core.TrackMetadata]
	recorder EventRecorder
	logger   *zap.Logger

	flight singleflight.Group
	now    func() time.Time
}

func New(fs afero.Fs, cfg *core.CacheConfig, resolver Resolver, recorder EventRecorder, logger *zap.Logger) (*ArtifactCache, error) {
	if err := fs.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	meta, err := lru.New[string, core.TrackMetadata](cfg.MetadataEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata cache: %w", err)
	}

	return &ArtifactCache{
		fs:       fs,
		dir:      cfg.Dir,
		ttl:      cfg.TTL,
		resolver: resolver,
		meta:     meta,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// PathFor returns the artifact path an identifier maps to.
func (c *ArtifactCache) PathFor(identifier string) string {
	return filepath.Join(c.dir, identifier+".mp3")
}

// GetOrResolve returns the cached artifact for identifier when a fresh copy
// exists, otherwise resolves it through the cascade. Concurrent callers for
// the same identifier coalesce into one resolution and all observe the same
// outcome. A stale entry is treated as absent and re-resolved.
func (c *ArtifactCache) GetOrResolve(ctx context.Context, identifier string) (*Entry, error) {
	if !mediaid.Valid(identifier) {
		return nil, core.ErrInvalidIdentifier
	}

	path := c.PathFor(identifier)
	if c.fresh(path) {
		c.event("hit")
		meta, _ := c.meta.Get(identifier)
		return &Entry{Path: path, Metadata: meta, CacheHit: true}, nil
	}

	v, err, shared := c.flight.Do(identifier, func() (interface{}, error) {
		// A flight that completed between our freshness check and joining
		// the group already refreshed the entry.
		if c.fresh(path) {
			meta, _ := c.meta.Get(identifier)
			return meta, nil
		}

		c.event("miss")

		// An in-flight resolution outlives any single caller: once started
		// it runs to completion or to its own internal timeouts.
		tmp := path + ".part-" + uuid.NewString()
		result, err := c.resolver.Resolve(context.WithoutCancel(ctx), identifier, tmp)
		if err != nil {
			_ = c.fs.Remove(tmp)
			return nil, err
		}

		if err := c.fs.Rename(tmp, path); err != nil {
			_ = c.fs.Remove(tmp)
			return nil, fmt.Errorf("failed to move artifact into place: %w", err)
		}

		c.meta.Add(identifier, result.Metadata)
		c.logger.Info("Artifact cached",
			zap.String("identifier", identifier),
			zap.String("strategy", result.Metadata.Strategy))
		return result.Metadata, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.event("coalesced")
	}

	meta, _ := v.(core.TrackMetadata)
	return &Entry{Path: path, Metadata: meta, CacheHit: false}, nil
}

// Open returns the named artifact file for serving. The name is a bare file
// name inside the cache directory, never a path.
func (c *ArtifactCache) Open(name string) (afero.File, error) {
	return c.fs.Open(filepath.Join(c.dir, filepath.Base(name)))
}

// Len counts the artifacts currently in the cache directory.
func (c *ArtifactCache) Len() int {
	entries, err := afero.ReadDir(c.fs, c.dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, info := range entries {
		if !info.IsDir() && filepath.Ext(info.Name()) == ".mp3" {
			n++
		}
	}
	return n
}

func (c *ArtifactCache) fresh(path string) bool {
	info, err := c.fs.Stat(path)
	if err != nil {
		return false
	}
	return c.now().Sub(info.ModTime()) < c.ttl
}

func (c *ArtifactCache) event(event string) {
	if c.recorder != nil {
		c.recorder.RecordCacheEvent(event)
	}
}
