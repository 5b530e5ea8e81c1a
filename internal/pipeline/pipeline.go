package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ksyasuda/jimaku-dl/internal/anilist"
	"github.com/ksyasuda/jimaku-dl/internal/apperrors"
	"github.com/ksyasuda/jimaku-dl/internal/config"
	"github.com/ksyasuda/jimaku-dl/internal/jimaku"
	"github.com/ksyasuda/jimaku-dl/internal/models"
	"github.com/ksyasuda/jimaku-dl/internal/parser"
	"github.com/ksyasuda/jimaku-dl/internal/selector"
	"github.com/ksyasuda/jimaku-dl/internal/services"
)

// Options controls a single download run.
type Options struct {
	// MediaPath is the video file or show directory to find subtitles for.
	MediaPath string
	// DestDir is where subtitles are saved. Empty means next to the media.
	DestDir string
	// AnilistID skips the title search when set.
	AnilistID int
}

// Result reports what a run resolved and downloaded.
type Result struct {
	Media         *models.Media
	Entry         models.Entry
	Episode       int
	MediaIsDir    bool
	SubtitlePaths []string
}

// Pipeline wires the metadata, index, selection and download stages into the
// end-to-end subtitle flow.
type Pipeline struct {
	anilist    anilist.Client
	jimaku     jimaku.Client
	downloader services.SubtitleDownloader
	selector   selector.Selector
}

// New constructs a pipeline from its stage implementations.
func New(anilistClient anilist.Client, jimakuClient jimaku.Client, downloader services.SubtitleDownloader, sel selector.Selector) *Pipeline {
	return &Pipeline{
		anilist:    anilistClient,
		jimaku:     jimakuClient,
		downloader: downloader,
		selector:   sel,
	}
}

// Run executes the full flow: parse the media path, resolve the show, find
// its subtitle entry, filter and pick files, then download them.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	logger := config.GetLogger()

	info, err := os.Stat(opts.MediaPath)
	if err != nil {
		return nil, fmt.Errorf("media path not accessible: %w", err)
	}
	isDir := info.IsDir()

	ref, err := p.parseMediaPath(opts.MediaPath, isDir)
	if err != nil {
		return nil, err
	}

	episode := ref.Episode
	if isDir {
		// Directory mode grabs everything the entry has for the show
		episode = 0
	}

	logger.Info().
		Str("title", ref.Title).
		Int("season", ref.Season).
		Int("episode", episode).
		Bool("directory", isDir).
		Msg("Resolved media reference")

	media, err := p.resolveMedia(ctx, opts.AnilistID, ref)
	if err != nil {
		return nil, err
	}

	entry, err := p.resolveEntry(ctx, media, ref)
	if err != nil {
		return nil, err
	}

	files, err := p.jimaku.ListFiles(ctx, entry.ID)
	if err != nil {
		return nil, err
	}

	filtered := parser.FilterFilesByEpisode(files, episode)
	if len(filtered) == 0 {
		return nil, &apperrors.ErrNoEpisodeMatch{Episode: episode}
	}

	chosen, err := p.chooseFiles(ctx, filtered, isDir)
	if err != nil {
		return nil, err
	}

	destDir := opts.DestDir
	if destDir == "" {
		if isDir {
			destDir = opts.MediaPath
		} else {
			destDir = filepath.Dir(opts.MediaPath)
		}
	}

	paths, err := p.download(ctx, chosen, entry, episode, destDir)
	if err != nil {
		return nil, err
	}

	return &Result{
		Media:         media,
		Entry:         entry,
		Episode:       episode,
		MediaIsDir:    isDir,
		SubtitlePaths: paths,
	}, nil
}

// parseMediaPath derives a show reference from the media path. Files try
// their own name first before consulting the directory structure.
func (p *Pipeline) parseMediaPath(mediaPath string, isDir bool) (models.MediaReference, error) {
	if isDir {
		return parser.FindTitleInPath(mediaPath)
	}

	if ref, err := parser.ParseFilename(filepath.Base(mediaPath)); err == nil {
		return ref, nil
	}
	return parser.FindTitleInPath(filepath.Dir(mediaPath))
}

// resolveMedia turns the parsed reference into AniList metadata. An explicit
// ID wins, a single search hit is taken as-is, and multiple hits go through
// the interactive selector.
func (p *Pipeline) resolveMedia(ctx context.Context, anilistID int, ref models.MediaReference) (*models.Media, error) {
	if anilistID != 0 {
		return p.anilist.GetByID(ctx, anilistID)
	}

	candidates, err := p.anilist.Search(ctx, ref.Title)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 1 {
		return &candidates[0], nil
	}

	options := make([]string, len(candidates))
	for i, candidate := range candidates {
		options[i] = formatMediaOption(candidate)
	}

	indices, err := p.selector.Menu(ctx, "Select show", options, false)
	if err != nil {
		return nil, err
	}
	return &candidates[indices[0]], nil
}

// resolveEntry finds the subtitle index entry for the resolved show.
func (p *Pipeline) resolveEntry(ctx context.Context, media *models.Media, ref models.MediaReference) (models.Entry, error) {
	entries, err := p.jimaku.SearchEntries(ctx, media.ID, ref.Title)
	if err != nil {
		return models.Entry{}, err
	}
	if len(entries) == 0 && media.ID != 0 {
		// Not every entry is tagged with an AniList id, retry by name
		entries, err = p.jimaku.SearchEntries(ctx, 0, media.PreferredTitle())
		if err != nil {
			return models.Entry{}, err
		}
	}
	if len(entries) == 0 {
		return models.Entry{}, &apperrors.ErrNoMatch{Query: media.PreferredTitle()}
	}
	if len(entries) == 1 {
		return entries[0], nil
	}

	options := make([]string, len(entries))
	for i, entry := range entries {
		options[i] = entry.DisplayName()
	}

	indices, err := p.selector.Menu(ctx, "Select entry", options, false)
	if err != nil {
		return models.Entry{}, err
	}
	return entries[indices[0]], nil
}

// chooseFiles narrows filtered files to the ones actually downloaded. A
// single match skips the menu, directory mode allows picking several.
func (p *Pipeline) chooseFiles(ctx context.Context, files []models.File, multi bool) ([]models.File, error) {
	if len(files) == 1 {
		return files, nil
	}

	options := make([]string, len(files))
	for i, file := range files {
		options[i] = file.Name
	}

	indices, err := p.selector.Menu(ctx, "Select subtitles", options, multi)
	if err != nil {
		return nil, err
	}

	chosen := make([]models.File, 0, len(indices))
	for _, index := range indices {
		chosen = append(chosen, files[index])
	}
	return chosen, nil
}

// download fetches every chosen file and writes it into the destination.
func (p *Pipeline) download(ctx context.Context, files []models.File, entry models.Entry, episode int, destDir string) ([]string, error) {
	paths := make([]string, 0, len(files))
	for _, file := range files {
		request := models.DownloadRequest{
			EntryID: entry.ID,
			Episode: episode,
			DestDir: destDir,
		}

		result, err := p.downloader.DownloadSubtitle(ctx, file, request)
		if err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", file.Name, err)
		}

		path, err := services.SaveTo(result, destDir)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// formatMediaOption renders an AniList candidate for the selector menu
func formatMediaOption(media models.Media) string {
	label := media.PreferredTitle()
	if media.Format != "" && media.SeasonYear != 0 {
		return fmt.Sprintf("%s (%s %d)", label, media.Format, media.SeasonYear)
	}
	if media.Format != "" {
		return fmt.Sprintf("%s (%s)", label, media.Format)
	}
	return label
}
