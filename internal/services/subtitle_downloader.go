package services

import (
	"context"

	"github.com/ksyasuda/jimaku-dl/internal/models"
)

// SubtitleDownloader defines the interface for downloading subtitle files
type SubtitleDownloader interface {
	// DownloadSubtitle downloads a subtitle, optionally extracting a specific episode from a season pack archive
	DownloadSubtitle(ctx context.Context, file models.File, req models.DownloadRequest) (*models.DownloadResult, error)
}
