package apperrors

import "fmt"

// ErrParse is returned when a filename or directory name cannot be parsed
// into a usable show title. It is non-fatal: callers fall back to a less
// specific title before giving up.
type ErrParse struct {
	Input string
}

// Error implements the error interface.
func (e *ErrParse) Error() string {
	return fmt.Sprintf("could not parse a show title from %q", e.Input)
}

// Is allows for error checking with errors.Is().
func (e *ErrParse) Is(target error) bool {
	_, ok := target.(*ErrParse)
	return ok
}

// ErrNoMatch is returned when a metadata search yields zero candidates.
type ErrNoMatch struct {
	Query string
}

// Error implements the error interface.
func (e *ErrNoMatch) Error() string {
	return fmt.Sprintf("no AniList results found for %q", e.Query)
}

// Is allows for error checking with errors.Is().
func (e *ErrNoMatch) Is(target error) bool {
	_, ok := target.(*ErrNoMatch)
	return ok
}

// ErrResolution is returned when the metadata service rejects a lookup or
// responds with an error payload. Message carries the upstream error verbatim.
type ErrResolution struct {
	ID      int
	Message string
}

// Error implements the error interface.
func (e *ErrResolution) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("AniList lookup for id %d failed: %s", e.ID, e.Message)
	}
	return fmt.Sprintf("AniList lookup failed: %s", e.Message)
}

// Is allows for error checking with errors.Is().
func (e *ErrResolution) Is(target error) bool {
	_, ok := target.(*ErrResolution)
	return ok
}

// ErrAuth is returned when the subtitle index rejects the API token.
type ErrAuth struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *ErrAuth) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("jimaku rejected the API token (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("jimaku rejected the API token (status %d)", e.Status)
}

// Is allows for error checking with errors.Is().
func (e *ErrAuth) Is(target error) bool {
	_, ok := target.(*ErrAuth)
	return ok
}

// ErrNoFiles is returned when an entry exists on the index but has no files
// attached. This is a normal, non-fatal condition.
type ErrNoFiles struct {
	EntryID int64
}

// Error implements the error interface.
func (e *ErrNoFiles) Error() string {
	return fmt.Sprintf("entry %d has no subtitle files", e.EntryID)
}

// Is allows for error checking with errors.Is().
func (e *ErrNoFiles) Is(target error) bool {
	_, ok := target.(*ErrNoFiles)
	return ok
}

// ErrNoEpisodeMatch is returned when an entry has files but none of them
// plausibly match the requested episode.
type ErrNoEpisodeMatch struct {
	Episode int
}

// Error implements the error interface.
func (e *ErrNoEpisodeMatch) Error() string {
	return fmt.Sprintf("no subtitle file matches episode %d", e.Episode)
}

// Is allows for error checking with errors.Is().
func (e *ErrNoEpisodeMatch) Is(target error) bool {
	_, ok := target.(*ErrNoEpisodeMatch)
	return ok
}

// ErrEpisodeNotInArchive is returned when the requested episode subtitle is
// not found inside a season-pack archive.
type ErrEpisodeNotInArchive struct {
	Episode   int
	FileCount int
}

// Error implements the error interface.
func (e *ErrEpisodeNotInArchive) Error() string {
	return fmt.Sprintf("episode %d not found in season pack (searched %d files)", e.Episode, e.FileCount)
}

// Is allows for error checking with errors.Is().
func (e *ErrEpisodeNotInArchive) Is(target error) bool {
	_, ok := target.(*ErrEpisodeNotInArchive)
	return ok
}

// ErrNoSelection is returned when the user aborts an interactive
// disambiguation prompt without choosing anything.
type ErrNoSelection struct {
	Prompt string
}

// Error implements the error interface.
func (e *ErrNoSelection) Error() string {
	if e.Prompt != "" {
		return fmt.Sprintf("no selection made for %s", e.Prompt)
	}
	return "no selection made"
}

// Is allows for error checking with errors.Is().
func (e *ErrNoSelection) Is(target error) bool {
	_, ok := target.(*ErrNoSelection)
	return ok
}

// ErrSelectorUnavailable is returned when the interactive selector binary
// cannot be found on PATH.
type ErrSelectorUnavailable struct {
	Binary string
}

// Error implements the error interface.
func (e *ErrSelectorUnavailable) Error() string {
	return fmt.Sprintf("interactive selector %q not found on PATH", e.Binary)
}

// Is allows for error checking with errors.Is().
func (e *ErrSelectorUnavailable) Is(target error) bool {
	_, ok := target.(*ErrSelectorUnavailable)
	return ok
}
