package player

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/ksyasuda/jimaku-dl/internal/config"
)

var commandContext = exec.CommandContext

// Player launches media playback with subtitles preloaded.
type Player interface {
	// Play starts the player on the media path with the given subtitle files
	// and blocks until playback ends.
	Play(ctx context.Context, mediaPath string, subtitlePaths []string) error
}

// Option configures the mpv player.
type Option func(*MPVPlayer)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(p *MPVPlayer) {
		if binary != "" {
			p.binary = binary
		}
	}
}

// WithSocketPath sets the IPC socket path the player listens on.
func WithSocketPath(path string) Option {
	return func(p *MPVPlayer) {
		if path != "" {
			p.socketPath = path
		}
	}
}

// MPVPlayer wraps the mpv media player.
type MPVPlayer struct {
	binary     string
	socketPath string
}

// NewMPVPlayer constructs a player using defaults.
func NewMPVPlayer(opts ...Option) *MPVPlayer {
	p := &MPVPlayer{
		binary:     "mpv",
		socketPath: "/tmp/mpvsocket",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SocketPath returns the IPC socket path the player is started with.
func (p *MPVPlayer) SocketPath() string {
	return p.socketPath
}

// Play starts mpv with every subtitle attached and the IPC server enabled,
// then waits for the player to exit.
func (p *MPVPlayer) Play(ctx context.Context, mediaPath string, subtitlePaths []string) error {
	args := buildArgs(p.socketPath, mediaPath, subtitlePaths)

	logger := config.GetLogger()
	logger.Info().
		Str("binary", p.binary).
		Str("media", mediaPath).
		Int("subtitles", len(subtitlePaths)).
		Msg("Launching player")

	cmd := commandContext(ctx, p.binary, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("player %s failed: %w", p.binary, err)
	}
	return nil
}

// buildArgs assembles the mpv invocation for a media file with attached
// subtitles and an IPC socket
func buildArgs(socketPath, mediaPath string, subtitlePaths []string) []string {
	args := make([]string, 0, len(subtitlePaths)+2)
	for _, sub := range subtitlePaths {
		args = append(args, "--sub-file="+sub)
	}
	args = append(args, "--input-ipc-server="+socketPath, mediaPath)
	return args
}
