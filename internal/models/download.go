package models

// DownloadRequest describes what the caller wants out of a subtitle download.
// Episode 0 means the whole artifact is wanted as-is; a non-zero episode asks
// the downloader to extract the matching member from season-pack archives.
type DownloadRequest struct {
	EntryID int64
	Episode int
	DestDir string
}

// DownloadResult is a downloaded (and possibly extracted and transcoded)
// subtitle payload ready to be written to disk.
type DownloadResult struct {
	Filename    string
	Content     []byte
	ContentType string
}
