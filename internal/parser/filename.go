package parser

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ksyasuda/jimaku-dl/internal/apperrors"
	"github.com/ksyasuda/jimaku-dl/internal/config"
	"github.com/ksyasuda/jimaku-dl/internal/models"
)

var (
	// Bracketed release-group and tag noise: [SubsPlease], [1080p], etc.
	bracketNoiseRegex = regexp.MustCompile(`\[[^]]*]`)

	// Parenthesized groups that are NOT a bare year. A year-like suffix such
	// as "(2023)" is part of the title and must survive cleaning.
	parenNoiseRegex = regexp.MustCompile(`\((?:[^)]*)\)`)
	yearParenRegex  = regexp.MustCompile(`^\((?:19|20)\d{2}\)$`)

	// Free-standing release noise left over once brackets are gone.
	// Patterns grounded on the usual fansub/WEB naming conventions.
	releaseNoiseRegexes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b\d{3,4}[pi]\b`),
		regexp.MustCompile(`(?i)\b(?:4K|UHD|HDR10\+?|HDR|SDR|DV)\b`),
		regexp.MustCompile(`(?i)\b(?:x26[45]|[Hh]\.?26[45]|HEVC|AVC|AV1|XviD)\b`),
		regexp.MustCompile(`(?i)\b(?:BluRay|Blu-ray|BDRip|BDrip|WEB-DL|WEBRip|WEB|HDTV|DVDRip)\b`),
		regexp.MustCompile(`(?i)\b(?:AAC|FLAC|AC3|EAC3|DDP?|DTS|Opus)(?:[.\s]?[257]\.[01])?\b`),
		regexp.MustCompile(`(?i)\b(?:10bit|8bit|Hi10P?|Dual[-\s]?Audio|Multi[-\s]?Sub)\b`),
	}

	videoExtensions = map[string]bool{
		".mkv": true, ".mp4": true, ".avi": true, ".mov": true,
		".webm": true, ".ts": true, ".m2ts": true, ".wmv": true,
	}

	spaceCollapseRegex = regexp.MustCompile(`\s+`)

	// Season/episode markers in priority order.
	seasonEpisodeRegex = regexp.MustCompile(`(?i)\bS(\d{1,2})\s*E(\d{1,4})\b`)
	crossMarkerRegex   = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{1,3})\b`)
	episodeWordRegex   = regexp.MustCompile(`(?i)\bEpisode\s*(\d{1,4})\b`)
	episodeEpRegex     = regexp.MustCompile(`(?i)\bEp\.?\s*(\d{1,4})\b`)
	episodeERegex      = regexp.MustCompile(`(?i)\bE\s?(\d{1,4})\b`)
	episodeHashRegex   = regexp.MustCompile(`#(\d{1,4})`)
	// A dash-number suffix. The separator before the dash is required so that
	// range tokens like "01-12" do not register as episodes.
	dashNumberRegex = regexp.MustCompile(`(?:\s|_)-\s*(\d{1,4})(?:v\d+)?\b`)
)

// isYear reports whether a numeric token should be read as a calendar year.
// Standalone 4-digit numbers in a plausible range are years, never episodes.
func isYear(n int) bool {
	return n >= 1900 && n <= 2100
}

// ParseFilename extracts a show title plus season/episode from a single video
// filename. Bracketed groups and free-standing release tags are stripped;
// parenthesized year suffixes like "Show Name (2023)" stay part of the title.
// Season defaults to 1 and episode to 0 when no marker is found.
func ParseFilename(name string) (models.MediaReference, error) {
	logger := config.GetLogger()

	base := filepath.Base(name)
	if ext := strings.ToLower(filepath.Ext(base)); videoExtensions[ext] || isSubtitleExt(ext) {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}

	cleaned := cleanReleaseNoise(base)
	logger.Debug().Str("input", name).Str("cleaned", cleaned).Msg("Cleaned filename")

	ref := models.MediaReference{Title: cleaned, Season: 1, Episode: 0}
	markerFound := true

	if m := seasonEpisodeRegex.FindStringSubmatchIndex(cleaned); m != nil {
		ref.Season, _ = strconv.Atoi(cleaned[m[2]:m[3]])
		ref.Episode, _ = strconv.Atoi(cleaned[m[4]:m[5]])
		ref.Title = tidyTitle(cleaned[:m[0]])
	} else if m := crossMarkerRegex.FindStringSubmatchIndex(cleaned); m != nil {
		ref.Season, _ = strconv.Atoi(cleaned[m[2]:m[3]])
		ref.Episode, _ = strconv.Atoi(cleaned[m[4]:m[5]])
		ref.Title = tidyTitle(cleaned[:m[0]])
	} else if title, episode, ok := findEpisodeMarker(cleaned); ok {
		ref.Episode = episode
		ref.Title = title
	} else {
		ref.Title = tidyTitle(cleaned)
		markerFound = false
	}

	// A fully numeric name with no marker is noise, but a numeric title next
	// to an explicit marker is a real show ("86 - 05.mkv").
	if ref.Title == "" || (isNumericOnly(ref.Title) && !markerFound) {
		logger.Debug().Str("input", name).Msg("Filename did not yield a usable title")
		return models.MediaReference{}, &apperrors.ErrParse{Input: name}
	}

	logger.Debug().
		Str("title", ref.Title).
		Int("season", ref.Season).
		Int("episode", ref.Episode).
		Msg("Parsed filename")
	return ref, nil
}

// findEpisodeMarker tries the episode-only conventions in priority order:
// "Episode NN", "Ep NN", "E NN", "#NN", then a dash-number suffix.
// Returns the title portion, the episode, and whether anything matched.
func findEpisodeMarker(cleaned string) (string, int, bool) {
	for _, re := range []*regexp.Regexp{episodeWordRegex, episodeEpRegex, episodeERegex, episodeHashRegex} {
		if m := re.FindStringSubmatchIndex(cleaned); m != nil {
			episode, _ := strconv.Atoi(cleaned[m[2]:m[3]])
			return tidyTitle(cleaned[:m[0]]), episode, true
		}
	}

	// Dash-number: favored as an episode because of the separator, except
	// that a 4-digit year keeps its year reading and stays in the title.
	if m := dashNumberRegex.FindStringSubmatchIndex(cleaned); m != nil {
		episode, _ := strconv.Atoi(cleaned[m[2]:m[3]])
		if !isYear(episode) {
			return tidyTitle(cleaned[:m[0]]), episode, true
		}
	}

	return "", 0, false
}

// cleanReleaseNoise strips bracketed groups, non-year parenthesized groups,
// and free-standing release tags, then collapses whitespace.
func cleanReleaseNoise(s string) string {
	s = bracketNoiseRegex.ReplaceAllString(s, " ")
	s = parenNoiseRegex.ReplaceAllStringFunc(s, func(group string) string {
		if yearParenRegex.MatchString(group) {
			return group
		}
		return " "
	})
	for _, re := range releaseNoiseRegexes {
		s = re.ReplaceAllString(s, " ")
	}
	return strings.TrimSpace(spaceCollapseRegex.ReplaceAllString(s, " "))
}

// tidyTitle trims separator leftovers from a title fragment.
func tidyTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "-_.")
	return strings.TrimSpace(spaceCollapseRegex.ReplaceAllString(s, " "))
}

func isNumericOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isSubtitleExt(ext string) bool {
	switch ext {
	case ".srt", ".ass", ".ssa", ".vtt", ".sub":
		return true
	}
	return false
}
