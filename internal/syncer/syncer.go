package syncer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ksyasuda/jimaku-dl/internal/config"
)

var (
	commandContext = exec.CommandContext
	lookPath       = exec.LookPath
)

// Syncer aligns subtitle timing against a video's audio track.
type Syncer interface {
	// Sync writes a synchronized copy of subtitlePath and returns its path.
	// On failure the original subtitle path is returned so playback can
	// continue with unsynced timing.
	Sync(ctx context.Context, videoPath, subtitlePath string) (string, error)
}

// Option configures the ffsubsync syncer.
type Option func(*FFSubsyncSyncer)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(s *FFSubsyncSyncer) {
		if binary != "" {
			s.binary = binary
		}
	}
}

// FFSubsyncSyncer wraps the ffsubsync command-line tool.
type FFSubsyncSyncer struct {
	binary string
}

// NewFFSubsyncSyncer constructs a syncer using defaults.
func NewFFSubsyncSyncer(opts ...Option) *FFSubsyncSyncer {
	s := &FFSubsyncSyncer{binary: "ffsubsync"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync runs ffsubsync and returns the synced subtitle path. An already
// synced output that exists on disk is reused without rerunning the tool.
func (s *FFSubsyncSyncer) Sync(ctx context.Context, videoPath, subtitlePath string) (string, error) {
	logger := config.GetLogger()
	outputPath := SyncedPath(subtitlePath)

	if _, err := os.Stat(outputPath); err == nil {
		logger.Info().
			Str("path", outputPath).
			Msg("Reusing existing synced subtitle")
		return outputPath, nil
	}

	if _, err := lookPath(s.binary); err != nil {
		logger.Warn().
			Str("binary", s.binary).
			Msg("Sync tool not installed, using unsynced subtitle")
		return subtitlePath, fmt.Errorf("sync tool %s not found: %w", s.binary, err)
	}

	logger.Info().
		Str("video", videoPath).
		Str("subtitle", subtitlePath).
		Msg("Synchronizing subtitle timing")

	var stderr bytes.Buffer
	cmd := commandContext(ctx, s.binary, videoPath, "-i", subtitlePath, "-o", outputPath)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		logger.Warn().
			Err(err).
			Str("stderr", strings.TrimSpace(stderr.String())).
			Msg("Subtitle sync failed, using unsynced subtitle")
		return subtitlePath, fmt.Errorf("sync failed: %w", err)
	}

	logger.Info().
		Str("path", outputPath).
		Msg("Subtitle synchronized")

	return outputPath, nil
}

// SyncedPath derives the output path for a synchronized subtitle
func SyncedPath(subtitlePath string) string {
	ext := filepath.Ext(subtitlePath)
	return strings.TrimSuffix(subtitlePath, ext) + ".synced" + ext
}
