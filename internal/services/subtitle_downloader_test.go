package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"golang.org/x/text/encoding/japanese"

	"github.com/ksyasuda/jimaku-dl/internal/apperrors"
	"github.com/ksyasuda/jimaku-dl/internal/models"
)

// buildZip assembles an in-memory ZIP archive from name/content pairs
func buildZip(t *testing.T, members map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range members {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("failed to create zip member %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write zip member %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip writer: %v", err)
	}
	return buf.Bytes()
}

// rarFixture is a stored RAR archive holding "Show S01E04.srt" and
// "Show S01E05.srt" with "episode four rar" / "episode five rar" bodies.
const rarFixtureBase64 = "UmFyIRoHAM+QcwAADQAAAAAAAAAot3QAgC8AEAAAABAAAAACBBmTBQAAAFoUMA8AIAAAAFNob3cgUzAxRTA0LnNydGVwaXNvZGUgZm91ciByYXID4HQAgC8AEAAAABAAAAACAhUXMgAAAFoUMA8AIAAAAFNob3cgUzAxRTA1LnNydGVwaXNvZGUgZml2ZSByYXLEPXsAQAcA"

func rarFixture(t *testing.T) []byte {
	t.Helper()
	content, err := base64.StdEncoding.DecodeString(rarFixtureBase64)
	if err != nil {
		t.Fatalf("failed to decode rar fixture: %v", err)
	}
	return content
}

func TestDownloadSubtitlePlainFile(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-subrip")
		_, _ = w.Write([]byte("1\n00:00:01,000 --> 00:00:02,000\nHello\n"))
	}))
	defer server.Close()

	downloader := NewSubtitleDownloader(server.Client())
	result, err := downloader.DownloadSubtitle(context.Background(),
		models.File{URL: server.URL, Name: "Show - 05.srt"},
		models.DownloadRequest{Episode: 5})
	if err != nil {
		t.Fatalf("DownloadSubtitle returned error: %v", err)
	}

	if result.Filename != "Show - 05.srt" {
		t.Errorf("expected filename 'Show - 05.srt', got %q", result.Filename)
	}
	if !bytes.Contains(result.Content, []byte("Hello")) {
		t.Errorf("expected content to survive download, got %q", result.Content)
	}
}

func TestDownloadSubtitleTranscodesShiftJIS(t *testing.T) {
	t.Parallel()

	line := "こんにちは"
	encoded, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte(line))
	if err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-subrip")
		_, _ = w.Write(encoded)
	}))
	defer server.Close()

	downloader := NewSubtitleDownloader(server.Client())
	result, err := downloader.DownloadSubtitle(context.Background(),
		models.File{URL: server.URL, Name: "Show - 01.srt"},
		models.DownloadRequest{Episode: 1})
	if err != nil {
		t.Fatalf("DownloadSubtitle returned error: %v", err)
	}

	if string(result.Content) != line {
		t.Errorf("expected Shift-JIS content transcoded to %q, got %q", line, result.Content)
	}
}

func TestDownloadSubtitleExtractsEpisodeFromZip(t *testing.T) {
	t.Parallel()

	zipContent := buildZip(t, map[string]string{
		"Show S01E04.srt":      "episode four",
		"Show S01E05.srt":      "episode five",
		"extras/Show NCOP.srt": "opening",
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(zipContent)
	}))
	defer server.Close()

	downloader := NewSubtitleDownloader(server.Client())
	result, err := downloader.DownloadSubtitle(context.Background(),
		models.File{URL: server.URL, Name: "Show.S01.zip"},
		models.DownloadRequest{Episode: 5})
	if err != nil {
		t.Fatalf("DownloadSubtitle returned error: %v", err)
	}

	if result.Filename != "Show S01E05.srt" {
		t.Errorf("expected extracted filename 'Show S01E05.srt', got %q", result.Filename)
	}
	if string(result.Content) != "episode five" {
		t.Errorf("expected episode five content, got %q", result.Content)
	}
	if result.ContentType != "application/x-subrip" {
		t.Errorf("expected subrip content type, got %q", result.ContentType)
	}
}

func TestDownloadSubtitleExtractsEpisodeFromRar(t *testing.T) {
	t.Parallel()

	rarContent := rarFixture(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-rar-compressed")
		_, _ = w.Write(rarContent)
	}))
	defer server.Close()

	downloader := NewSubtitleDownloader(server.Client())
	result, err := downloader.DownloadSubtitle(context.Background(),
		models.File{URL: server.URL, Name: "Show.S01.rar"},
		models.DownloadRequest{Episode: 5})
	if err != nil {
		t.Fatalf("DownloadSubtitle returned error: %v", err)
	}

	if result.Filename != "Show S01E05.srt" {
		t.Errorf("expected extracted filename 'Show S01E05.srt', got %q", result.Filename)
	}
	if string(result.Content) != "episode five rar" {
		t.Errorf("expected episode five content, got %q", result.Content)
	}
	if result.ContentType != "application/x-subrip" {
		t.Errorf("expected subrip content type, got %q", result.ContentType)
	}
}

func TestDownloadSubtitleEpisodeMissingFromRar(t *testing.T) {
	t.Parallel()

	rarContent := rarFixture(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-rar-compressed")
		_, _ = w.Write(rarContent)
	}))
	defer server.Close()

	downloader := NewSubtitleDownloader(server.Client())
	_, err := downloader.DownloadSubtitle(context.Background(),
		models.File{URL: server.URL, Name: "Show.S01.rar"},
		models.DownloadRequest{Episode: 9})
	if err == nil {
		t.Fatal("expected error for episode missing from archive")
	}

	var notInArchive *apperrors.ErrEpisodeNotInArchive
	if !errors.As(err, &notInArchive) {
		t.Fatalf("expected ErrEpisodeNotInArchive, got %T: %v", err, err)
	}
	if notInArchive.Episode != 9 || notInArchive.FileCount != 2 {
		t.Errorf("expected episode 9 over 2 files, got %+v", notInArchive)
	}
}

func TestDownloadSubtitleZipWithoutEpisodeRequestedReturnsArchive(t *testing.T) {
	t.Parallel()

	zipContent := buildZip(t, map[string]string{"Show S01E05.srt": "episode five"})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(zipContent)
	}))
	defer server.Close()

	downloader := NewSubtitleDownloader(server.Client())
	result, err := downloader.DownloadSubtitle(context.Background(),
		models.File{URL: server.URL, Name: "Show.S01.zip"},
		models.DownloadRequest{Episode: 0})
	if err != nil {
		t.Fatalf("DownloadSubtitle returned error: %v", err)
	}

	if !bytes.Equal(result.Content, zipContent) {
		t.Error("expected archive returned untouched when no episode requested")
	}
}

func TestDownloadSubtitleEpisodeMissingFromZip(t *testing.T) {
	t.Parallel()

	zipContent := buildZip(t, map[string]string{
		"Show S01E01.srt": "one",
		"Show S01E02.srt": "two",
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(zipContent)
	}))
	defer server.Close()

	downloader := NewSubtitleDownloader(server.Client())
	_, err := downloader.DownloadSubtitle(context.Background(),
		models.File{URL: server.URL, Name: "Show.S01.zip"},
		models.DownloadRequest{Episode: 9})
	if err == nil {
		t.Fatal("expected error for episode missing from archive")
	}

	var notInArchive *apperrors.ErrEpisodeNotInArchive
	if !errors.As(err, &notInArchive) {
		t.Fatalf("expected ErrEpisodeNotInArchive, got %T: %v", err, err)
	}
	if notInArchive.Episode != 9 || notInArchive.FileCount != 2 {
		t.Errorf("expected episode 9 over 2 files, got %+v", notInArchive)
	}
}

func TestDownloadSubtitleCachesArchive(t *testing.T) {
	t.Parallel()

	zipContent := buildZip(t, map[string]string{
		"Show S01E01.srt": "one",
		"Show S01E02.srt": "two",
	})

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(zipContent)
	}))
	defer server.Close()

	downloader := NewSubtitleDownloader(server.Client())
	for _, episode := range []int{1, 2} {
		result, err := downloader.DownloadSubtitle(context.Background(),
			models.File{URL: server.URL, Name: "Show.S01.zip"},
			models.DownloadRequest{Episode: episode})
		if err != nil {
			t.Fatalf("DownloadSubtitle episode %d returned error: %v", episode, err)
		}
		if result.Filename == "" {
			t.Fatalf("episode %d extraction produced empty filename", episode)
		}
	}

	if got := requests.Load(); got != 1 {
		t.Errorf("expected a single upstream download for both extractions, got %d", got)
	}
}

func TestDownloadSubtitleUpstreamFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	downloader := NewSubtitleDownloader(server.Client())
	_, err := downloader.DownloadSubtitle(context.Background(),
		models.File{URL: server.URL, Name: "Show - 01.srt"},
		models.DownloadRequest{Episode: 1})
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestSaveTo(t *testing.T) {
	t.Parallel()

	destDir := filepath.Join(t.TempDir(), "subs")
	result := &models.DownloadResult{
		Filename: "Show S01E05.srt",
		Content:  []byte("episode five"),
	}

	path, err := SaveTo(result, destDir)
	if err != nil {
		t.Fatalf("SaveTo returned error: %v", err)
	}
	if path != filepath.Join(destDir, "Show S01E05.srt") {
		t.Errorf("unexpected saved path %q", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read saved file: %v", err)
	}
	if string(content) != "episode five" {
		t.Errorf("expected saved content 'episode five', got %q", content)
	}
}
