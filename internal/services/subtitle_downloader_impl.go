package services

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/nwaples/rardecode/v2"

	"github.com/ksyasuda/jimaku-dl/internal/apperrors"
	"github.com/ksyasuda/jimaku-dl/internal/config"
	"github.com/ksyasuda/jimaku-dl/internal/models"
	"github.com/ksyasuda/jimaku-dl/internal/parser"
)

// archiveCacheEntry represents a cached season pack with its content
type archiveCacheEntry struct {
	content  []byte
	cachedAt time.Time
}

// DefaultSubtitleDownloader implements SubtitleDownloader with caching
type DefaultSubtitleDownloader struct {
	httpClient   *http.Client
	archiveCache *lru.LRU[string, *archiveCacheEntry]
}

// NewSubtitleDownloader creates a new subtitle downloader with LRU cache
// Cache stores up to 100 archives with 1-hour TTL
func NewSubtitleDownloader(httpClient *http.Client) SubtitleDownloader {
	return &DefaultSubtitleDownloader{
		httpClient:   httpClient,
		archiveCache: lru.NewLRU[string, *archiveCacheEntry](100, nil, time.Hour),
	}
}

// DownloadSubtitle downloads a subtitle file, with support for extracting episodes from season packs
func (d *DefaultSubtitleDownloader) DownloadSubtitle(ctx context.Context, file models.File, req models.DownloadRequest) (*models.DownloadResult, error) {
	logger := config.GetLogger()
	logger.Info().
		Str("url", file.URL).
		Str("name", file.Name).
		Int("episode", req.Episode).
		Msg("Downloading subtitle")

	content, contentType, err := d.downloadFile(ctx, file.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to download subtitle: %w", err)
	}

	kind := archiveKind(file.Name, contentType)

	// If not requesting a specific episode, or if it's not an archive, return as-is
	if req.Episode == 0 || kind == archiveNone {
		if kind == archiveNone {
			content = parser.DecodeToUTF8(content)
		}
		logger.Info().
			Str("contentType", contentType).
			Int("size", len(content)).
			Msg("Returning downloaded file as-is")

		return &models.DownloadResult{
			Filename:    file.Name,
			Content:     content,
			ContentType: contentType,
		}, nil
	}

	// It's a season pack and we need a specific episode - extract it
	logger.Info().
		Int("episode", req.Episode).
		Int("archiveSize", len(content)).
		Msg("Extracting episode from season pack")

	episodeFile, err := d.extractEpisode(kind, content, req.Episode)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("filename", episodeFile.Filename).
		Int("size", len(episodeFile.Content)).
		Msg("Successfully extracted episode from season pack")

	return episodeFile, nil
}

type archiveFormat int

const (
	archiveNone archiveFormat = iota
	archiveZip
	archiveRar
)

// archiveKind classifies the downloaded payload from its name and MIME type
func archiveKind(filename, contentType string) archiveFormat {
	ext := strings.ToLower(filepath.Ext(filename))
	ct := strings.ToLower(contentType)

	switch {
	case ext == ".zip" || strings.Contains(ct, "zip"):
		return archiveZip
	case ext == ".rar" || strings.Contains(ct, "rar"):
		return archiveRar
	default:
		return archiveNone
	}
}

// getContentTypeFromFilename derives MIME type from file extension
func getContentTypeFromFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".srt":
		return "application/x-subrip"
	case ".ass":
		return "application/x-ass"
	case ".vtt":
		return "text/vtt"
	case ".sub":
		return "application/x-sub"
	case ".zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}

// downloadFile downloads a file from the given URL with caching for archives
func (d *DefaultSubtitleDownloader) downloadFile(ctx context.Context, url string) ([]byte, string, error) {
	logger := config.GetLogger()

	if cached, found := d.archiveCache.Get(url); found {
		logger.Debug().
			Str("url", url).
			Time("cachedAt", cached.cachedAt).
			Msg("Retrieved archive from cache")
		return cached.content, "application/octet-stream", nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", config.GetUserAgent())

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	// Cache archives so repeated per-episode extractions reuse one download
	if strings.Contains(contentType, "zip") || strings.Contains(contentType, "rar") {
		d.archiveCache.Add(url, &archiveCacheEntry{
			content:  content,
			cachedAt: time.Now(),
		})
		logger.Debug().
			Str("url", url).
			Int("size", len(content)).
			Msg("Cached archive")
	}

	return content, contentType, nil
}

// extractEpisode extracts a specific episode's subtitle from a season pack archive
func (d *DefaultSubtitleDownloader) extractEpisode(kind archiveFormat, content []byte, episode int) (*models.DownloadResult, error) {
	switch kind {
	case archiveZip:
		return d.extractEpisodeFromZip(content, episode)
	case archiveRar:
		return d.extractEpisodeFromRar(content, episode)
	default:
		return nil, fmt.Errorf("unsupported archive format")
	}
}

// extractEpisodeFromZip extracts a specific episode's subtitle from a season pack ZIP
func (d *DefaultSubtitleDownloader) extractEpisodeFromZip(zipContent []byte, episode int) (*models.DownloadResult, error) {
	logger := config.GetLogger()

	zipReader, err := zip.NewReader(bytes.NewReader(zipContent), int64(len(zipContent)))
	if err != nil {
		return nil, fmt.Errorf("failed to open ZIP archive: %w", err)
	}

	logger.Debug().
		Int("fileCount", len(zipReader.File)).
		Int("episode", episode).
		Msg("Searching for episode in ZIP archive")

	fileCount := 0
	for _, file := range zipReader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		fileCount++

		filename := filepath.Base(file.Name)
		if !memberMatchesEpisode(filename, episode) {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open file %s in ZIP: %w", file.Name, err)
		}
		defer rc.Close()

		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s from ZIP: %w", file.Name, err)
		}

		return newExtractedResult(filename, content), nil
	}

	return nil, &apperrors.ErrEpisodeNotInArchive{Episode: episode, FileCount: fileCount}
}

// extractEpisodeFromRar extracts a specific episode's subtitle from a season pack RAR
func (d *DefaultSubtitleDownloader) extractEpisodeFromRar(rarContent []byte, episode int) (*models.DownloadResult, error) {
	logger := config.GetLogger()

	rarReader, err := rardecode.NewReader(bytes.NewReader(rarContent))
	if err != nil {
		return nil, fmt.Errorf("failed to open RAR archive: %w", err)
	}

	fileCount := 0
	for {
		header, err := rarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read RAR archive: %w", err)
		}
		if header.IsDir {
			continue
		}
		fileCount++

		filename := filepath.Base(header.Name)
		if !memberMatchesEpisode(filename, episode) {
			continue
		}

		content, err := io.ReadAll(rarReader)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s from RAR: %w", header.Name, err)
		}

		logger.Debug().
			Str("filename", filename).
			Int("size", len(content)).
			Msg("Found episode in RAR archive")

		return newExtractedResult(filename, content), nil
	}

	return nil, &apperrors.ErrEpisodeNotInArchive{Episode: episode, FileCount: fileCount}
}

// memberMatchesEpisode reports whether an archive member name carries the
// requested episode number
func memberMatchesEpisode(filename string, episode int) bool {
	n, ok := parser.EpisodeFromName(filename)
	return ok && n == episode
}

// newExtractedResult builds a download result for an extracted archive member,
// transcoding legacy Japanese encodings to UTF-8
func newExtractedResult(filename string, content []byte) *models.DownloadResult {
	return &models.DownloadResult{
		Filename:    filename,
		Content:     parser.DecodeToUTF8(content),
		ContentType: getContentTypeFromFilename(filename),
	}
}

// SaveTo writes a download result into the destination directory and returns
// the full path of the written file
func SaveTo(result *models.DownloadResult, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create destination directory: %w", err)
	}

	path := filepath.Join(destDir, filepath.Base(result.Filename))
	if err := os.WriteFile(path, result.Content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write subtitle file: %w", err)
	}

	logger := config.GetLogger()
	logger.Info().
		Str("path", path).
		Int("size", len(result.Content)).
		Msg("Saved subtitle")

	return path, nil
}
