// Package transcode converts a source stream URL into a local MP3 file by
// driving an external encoder process.
package transcode

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Molvine192/projectM-music/internal/core"
)

// FFmpeg runs the encoder binary with a hard wall-clock timeout and a fixed
// output bitrate.
type FFmpeg struct {
	binary      string
	timeout     time.Duration
	bitrateKbps int
	logger      *zap.Logger
}

func NewFFmpeg(binary string, timeout time.Duration, bitrateKbps int, logger *zap.Logger) *FFmpeg {
	return &FFmpeg{
		binary:      binary,
		timeout:     timeout,
		bitrateKbps: bitrateKbps,
		logger:      logger,
	}
}

// ToMP3 transcodes sourceURL into an MP3 at destPath, stripping any video
// track. A non-zero exit or timeout is reported as ErrTranscodeFailed and
// any partial output file is removed so it can never be mistaken for a
// valid artifact.
func (f *FFmpeg) ToMP3(ctx context.Context, sourceURL, destPath string) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.binary, f.args(sourceURL, destPath)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		_ = os.Remove(destPath)
		f.logger.Warn("Transcode failed",
			zap.String("dest", destPath),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return fmt.Errorf("%w: %v | %s", core.ErrTranscodeFailed, err, strings.TrimSpace(stderr.String()))
	}

	f.logger.Debug("Transcode finished",
		zap.String("dest", destPath),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (f *FFmpeg) args(sourceURL, destPath string) []string {
	return []string{
		"-y",
		"-loglevel", "error",
		"-nostdin",
		"-i", sourceURL,
		"-vn",
		"-acodec", "libmp3lame",
		"-ar", "44100",
		"-b:a", fmt.Sprintf("%dk", f.bitrateKbps),
		destPath,
	}
}
