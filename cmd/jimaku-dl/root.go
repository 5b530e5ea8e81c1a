package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"github.com/ksyasuda/jimaku-dl/internal/anilist"
	"github.com/ksyasuda/jimaku-dl/internal/cache"
	"github.com/ksyasuda/jimaku-dl/internal/config"
	"github.com/ksyasuda/jimaku-dl/internal/jimaku"
	"github.com/ksyasuda/jimaku-dl/internal/pipeline"
	"github.com/ksyasuda/jimaku-dl/internal/player"
	"github.com/ksyasuda/jimaku-dl/internal/selector"
	"github.com/ksyasuda/jimaku-dl/internal/services"
	"github.com/ksyasuda/jimaku-dl/internal/syncer"
	"github.com/ksyasuda/jimaku-dl/internal/transport"
)

const version = "2.0.0"

type rootFlags struct {
	dest      string
	token     string
	anilistID int
	logLevel  string
	play      bool
	sync      bool
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:           "jimaku-dl <media-path>",
		Short:         "Download anime subtitles from Jimaku",
		Long:          "Download Japanese subtitles for anime from jimaku.cc, resolving shows through AniList from the media file or directory name.",
		Version:       version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], flags)
		},
	}

	rootCmd.Flags().StringVarP(&flags.dest, "dest", "d", "", "Directory to save subtitles (default: next to the media)")
	rootCmd.Flags().StringVarP(&flags.token, "token", "t", "", "Jimaku API token (or set JIMAKU_API_TOKEN)")
	rootCmd.Flags().IntVarP(&flags.anilistID, "anilist-id", "a", 0, "AniList media id, skips the title search")
	rootCmd.Flags().StringVarP(&flags.logLevel, "log-level", "l", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVarP(&flags.play, "play", "p", false, "Launch mpv with the subtitles loaded")
	rootCmd.Flags().BoolVarP(&flags.sync, "sync", "s", false, "Synchronize subtitle timing with ffsubsync")

	return rootCmd
}

// cacheLogger adapts the zerolog logger to the cache error reporting hook.
type cacheLogger struct{}

func (cacheLogger) Error(msg string, err error) {
	logger := config.GetLogger()
	logger.Error().Err(err).Msg(msg)
}

func run(ctx context.Context, mediaPath string, flags *rootFlags) error {
	logger := config.GetLogger()
	cfg := config.GetConfig()

	if flags.logLevel != "" {
		config.SetLogLevel(flags.logLevel)
	}

	token := cfg.APIToken
	if flags.token != "" {
		token = flags.token
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:     cfg.SentryDSN,
			Release: "jimaku-dl@" + version,
		}); err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize error reporting")
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	timeout, err := time.ParseDuration(cfg.ClientTimeout)
	if err != nil {
		logger.Warn().Str("client_timeout", cfg.ClientTimeout).Msg("Invalid client timeout, using default")
		timeout = 0
	}

	httpClient := transport.NewHTTPClient(transport.Options{
		Timeout:    timeout,
		MaxRetries: 3,
		ProxyURL:   cfg.ProxyURL,
	})

	ttl, err := time.ParseDuration(cfg.Cache.TTL)
	if err != nil {
		ttl = time.Hour
	}
	apiCache, err := cache.New(cfg.Cache.Provider, cache.ProviderConfig{
		Size:          cfg.Cache.Size,
		TTL:           ttl,
		Logger:        cacheLogger{},
		RedisAddress:  cfg.Cache.RedisAddress,
		RedisPassword: cfg.Cache.RedisPassword,
		RedisDB:       cfg.Cache.RedisDB,
	})
	if err != nil {
		return fmt.Errorf("failed to create cache: %w", err)
	}
	defer apiCache.Close()

	pipe := pipeline.New(
		anilist.NewClient(httpClient, cfg.AnilistURL, anilist.WithCache(apiCache)),
		jimaku.NewClient(httpClient, cfg.JimakuURL, token, jimaku.WithCache(apiCache)),
		services.NewSubtitleDownloader(httpClient),
		selector.NewFzfSelector(selector.WithBinary(cfg.Selector.Binary)),
	)

	result, err := pipe.Run(ctx, pipeline.Options{
		MediaPath: mediaPath,
		DestDir:   flags.dest,
		AnilistID: flags.anilistID,
	})
	if err != nil {
		sentry.CaptureException(err)
		return err
	}

	fmt.Printf("Downloaded %d subtitle file(s):\n", len(result.SubtitlePaths))
	for _, path := range result.SubtitlePaths {
		fmt.Println("  " + path)
	}

	if flags.play && result.MediaIsDir {
		logger.Warn().Msg("Playback is not supported in directory mode, skipping")
		return nil
	}

	if !flags.play {
		if flags.sync {
			return syncInline(ctx, cfg, mediaPath, result.SubtitlePaths)
		}
		return nil
	}

	return play(ctx, cfg, mediaPath, result.SubtitlePaths, flags.sync)
}

// syncInline runs the timing sync without playback and reports the output.
func syncInline(ctx context.Context, cfg *config.Config, mediaPath string, subtitlePaths []string) error {
	sync := syncer.NewFFSubsyncSyncer(syncer.WithBinary(cfg.Sync.Binary))
	for _, subtitlePath := range subtitlePaths {
		synced, err := sync.Sync(ctx, mediaPath, subtitlePath)
		if err != nil {
			// Sync failures keep the unsynced file usable
			continue
		}
		fmt.Println("Synchronized: " + synced)
	}
	return nil
}

// play launches the player. With sync enabled the timing alignment runs in
// the background and the synced subtitle is hot-swapped into the running
// player over its IPC socket once ready.
func play(ctx context.Context, cfg *config.Config, mediaPath string, subtitlePaths []string, withSync bool) error {
	logger := config.GetLogger()

	mpv := player.NewMPVPlayer(
		player.WithBinary(cfg.Player.Binary),
		player.WithSocketPath(cfg.Player.SocketPath),
	)

	if withSync && len(subtitlePaths) > 0 {
		go func() {
			sync := syncer.NewFFSubsyncSyncer(syncer.WithBinary(cfg.Sync.Binary))
			synced, err := sync.Sync(ctx, mediaPath, subtitlePaths[0])
			if err != nil || synced == subtitlePaths[0] {
				return
			}

			conn, err := player.DialWait(ctx, mpv.SocketPath(), 30*time.Second)
			if err != nil {
				logger.Warn().Err(err).Msg("Could not reach player to swap synced subtitle")
				return
			}
			defer conn.Close()

			if err := conn.ApplySubtitle(synced); err != nil {
				logger.Warn().Err(err).Msg("Failed to swap synced subtitle")
			}
		}()
	}

	return mpv.Play(ctx, mediaPath, subtitlePaths)
}
