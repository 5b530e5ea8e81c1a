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

// maxAncestorDepth bounds the upward walk in FindTitleInPath so malformed
// paths cannot cause an unbounded traversal.
const maxAncestorDepth = 8

var (
	// Generic container folders that are never a show title.
	genericDirRegexes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(?:season|saison|series)\s*\d*$`),
		regexp.MustCompile(`(?i)^s\d{1,2}$`),
		regexp.MustCompile(`(?i)^(?:anime|animes|movies?|videos?|tv|shows?|downloads?|library|media|subs?|subtitles)$`),
		regexp.MustCompile(`(?i)^(?:winter|spring|summer|fall|autumn)\s+\d{4}$`),
		regexp.MustCompile(`(?i)^(?:ova|ona|specials?|extras?)$`),
		regexp.MustCompile(`^\d{4}$`),
	}

	// A trailing season marker on a directory name, e.g. "Show Name Season 2"
	// or "Show Name S2".
	trailingSeasonRegex = regexp.MustCompile(`(?i)\s+S(?:eason)?\s*(\d{1,2})$`)

	underscoreDotRegex = regexp.MustCompile(`[_.]`)
)

// ParseDirectoryName normalizes a directory's base name (underscores and dots
// become spaces) and applies the same season/episode heuristics as
// ParseFilename. The boolean distinguishes "this looks like a show title"
// from generic container folders such as "Season 1" or "Anime".
func ParseDirectoryName(path string) (bool, models.MediaReference) {
	logger := config.GetLogger()

	base := filepath.Base(filepath.Clean(path))
	if base == "." || base == string(filepath.Separator) || base == "/" {
		return false, models.MediaReference{}
	}

	normalized := underscoreDotRegex.ReplaceAllString(base, " ")
	normalized = strings.TrimSpace(spaceCollapseRegex.ReplaceAllString(normalized, " "))
	if normalized == "" {
		return false, models.MediaReference{}
	}

	for _, re := range genericDirRegexes {
		if re.MatchString(normalized) {
			logger.Debug().Str("dir", base).Msg("Directory name is a generic container, skipping")
			return false, models.MediaReference{}
		}
	}

	season := 1
	if m := trailingSeasonRegex.FindStringSubmatchIndex(normalized); m != nil {
		season, _ = strconv.Atoi(normalized[m[2]:m[3]])
		normalized = tidyTitle(normalized[:m[0]])
		if normalized == "" {
			return false, models.MediaReference{}
		}
	}

	ref, err := ParseFilename(normalized)
	if err != nil {
		return false, models.MediaReference{}
	}
	if season != 1 && ref.Season == 1 {
		ref.Season = season
	}

	logger.Debug().
		Str("dir", base).
		Str("title", ref.Title).
		Int("season", ref.Season).
		Int("episode", ref.Episode).
		Msg("Parsed directory name")
	return true, ref
}

// FindTitleInPath walks from the given path upward through its ancestors,
// returning the first level (closest to the leaf) whose name parses as a show
// title. The walk is an explicit bounded loop, stopping at the filesystem
// root or after maxAncestorDepth levels. When no ancestor parses, the leaf
// name itself is parsed as a filename.
//
// This handles layouts like Library/Anime/Winter 2023/Show Name/Season 1/ep.mkv
// where only "Show Name" is a real title.
func FindTitleInPath(path string) (models.MediaReference, error) {
	logger := config.GetLogger()

	current := filepath.Clean(path)
	for depth := 0; depth < maxAncestorDepth; depth++ {
		if ok, ref := ParseDirectoryName(current); ok {
			logger.Debug().
				Str("path", path).
				Str("matched", current).
				Int("depth", depth).
				Msg("Found show title in path")
			return ref, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	if ref, err := ParseFilename(filepath.Base(path)); err == nil {
		logger.Debug().Str("path", path).Str("title", ref.Title).Msg("Fell back to leaf filename parse")
		return ref, nil
	}

	return models.MediaReference{}, &apperrors.ErrParse{Input: path}
}
