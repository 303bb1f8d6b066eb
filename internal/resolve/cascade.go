// Package resolve orchestrates the ordered cascade of resolution strategies
// that turns a media identifier into a locally transcoded MP3.
package resolve

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Molvine192/projectM-music/internal/core"
	"github.com/Molvine192/projectM-music/internal/extract"
)

// ProfileExtractor queries the video-info backend as a named client profile.
type ProfileExtractor interface {
	Extract(ctx context.Context, identifier string, profile extract.ClientProfile) (*extract.Extraction, error)
}

// MirrorExtractor queries one mirror API instance.
type MirrorExtractor interface {
	Extract(ctx context.Context, identifier, baseURL string) (*extract.Extraction, error)
}

// Transcoder converts a source stream URL into a local MP3 file.
type Transcoder interface {
	ToMP3(ctx context.Context, sourceURL, destPath string) error
}

// AttemptRecorder receives the outcome of every strategy trial. Implemented
// by the metrics server; a nil recorder disables recording.
type AttemptRecorder interface {
	RecordStrategyAttempt(strategy, status string)
}

// Result describes a successful resolution.
type Result struct {
	Metadata core.TrackMetadata
}

// strategy is one uniform attempt: a name for diagnostics plus a fetch of
// stream candidates. The cascade iterates strategies with a single loop;
// every per-strategy failure is isolated and only moves the loop forward.
type strategy struct {
	name  string
	fetch func(ctx context.Context) (*extract.Extraction, error)
}

// Cascade tries client profiles in their configured order, then mirrors in
// theirs, stopping at the first strategy that yields a transcodable audio
// stream. Ordering is a static observed-reliability ranking fixed at
// construction time.
type Cascade struct {
	profiles     map[string]extract.ClientProfile
	profileOrder []string
	mirrors      []string
	backend      ProfileExtractor
	mirror       MirrorExtractor
	encoder      Transcoder
	recorder     AttemptRecorder
	logger       *zap.Logger
}

func NewCascade(
	cfg *core.ResolverConfig,
	backend ProfileExtractor,
	mirror MirrorExtractor,
	encoder Transcoder,
	recorder AttemptRecorder,
	logger *zap.Logger,
) *Cascade {
	profiles := extract.DefaultProfiles()

	// Unknown profile names in the configured order are dropped up front so
	// Resolve never has to deal with them.
	order := make([]string, 0, len(cfg.ProfileOrder()))
	for _, name := range cfg.ProfileOrder() {
		if _, ok := profiles[name]; !ok {
			logger.Warn("Ignoring unknown client profile", zap.String("profile", name))
			continue
		}
		order = append(order, name)
	}

	return &Cascade{
		profiles:     profiles,
		profileOrder: order,
		mirrors:      cfg.Mirrors,
		backend:      backend,
		mirror:       mirror,
		encoder:      encoder,
		recorder:     recorder,
		logger:       logger,
	}
}

func (c *Cascade) strategies(identifier string) []strategy {
	strategies := make([]strategy, 0, len(c.profileOrder)+len(c.mirrors))
	for _, name := range c.profileOrder {
		profile := c.profiles[name]
		strategies = append(strategies, strategy{
			name: "profile:" + name,
			fetch: func(ctx context.Context) (*extract.Extraction, error) {
				return c.backend.Extract(ctx, identifier, profile)
			},
		})
	}
	for _, baseURL := range c.mirrors {
		mirrorURL := baseURL
		strategies = append(strategies, strategy{
			name: "mirror:" + mirrorURL,
			fetch: func(ctx context.Context) (*extract.Extraction, error) {
				return c.mirror.Extract(ctx, identifier, mirrorURL)
			},
		})
	}
	return strategies
}

// Resolve runs the cascade for identifier, writing the transcoded artifact
// to destPath on success. Strategy failures are swallowed and logged; the
// terminal outcome is either a Result, ErrTranscodeFailed (the winning
// stream could not be encoded), or ErrAllStrategiesExhausted.
func (c *Cascade) Resolve(ctx context.Context, identifier, destPath string) (*Result, error) {
	for _, s := range c.strategies(identifier) {
		extraction, err := s.fetch(ctx)
		if err != nil {
			c.record(s.name, "error")
			c.logger.Debug("Strategy failed",
				zap.String("identifier", identifier),
				zap.String("strategy", s.name),
				zap.Error(err))
			continue
		}

		best, err := extract.SelectBest(extraction.Candidates)
		if err != nil {
			c.record(s.name, "no_audio")
			c.logger.Debug("Strategy yielded no audio-only stream",
				zap.String("identifier", identifier),
				zap.String("strategy", s.name),
				zap.Int("candidates", len(extraction.Candidates)))
			continue
		}

		c.logger.Info("Strategy succeeded",
			zap.String("identifier", identifier),
			zap.String("strategy", s.name),
			zap.Int("bitrate_kbps", best.BitrateKbps))

		if err := c.encoder.ToMP3(ctx, best.URL, destPath); err != nil {
			c.record(s.name, "transcode_failed")
			return nil, fmt.Errorf("strategy %s: %w", s.name, err)
		}

		c.record(s.name, "ok")
		return &Result{
			Metadata: core.TrackMetadata{
				Title:       extraction.Title,
				Uploader:    extraction.Uploader,
				DurationSec: extraction.DurationSec,
				BitrateKbps: best.BitrateKbps,
				Strategy:    s.name,
			},
		}, nil
	}

	c.logger.Warn("All strategies exhausted", zap.String("identifier", identifier))
	return nil, core.ErrAllStrategiesExhausted
}

func (c *Cascade) record(strategy, status string) {
	if c.recorder != nil {
		c.recorder.RecordStrategyAttempt(strategy, status)
	}
}
