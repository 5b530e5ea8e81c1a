package parser

import (
	"regexp"
	"strconv"

	"github.com/ksyasuda/jimaku-dl/internal/config"
	"github.com/ksyasuda/jimaku-dl/internal/models"
)

// episodeRule is one filename convention for spotting an episode number.
// Rules are evaluated in priority order and the first match wins, so adding
// a new naming convention is a one-line addition to episodeRules.
type episodeRule struct {
	name    string
	pattern *regexp.Regexp
	// extract converts the submatches into an episode number; ok is false
	// when the match should be discarded (e.g. the number reads as a year).
	extract func(groups []string) (episode int, ok bool)
}

func firstGroupEpisode(groups []string) (int, bool) {
	n, err := strconv.Atoi(groups[1])
	return n, err == nil
}

func secondGroupEpisode(groups []string) (int, bool) {
	n, err := strconv.Atoi(groups[2])
	return n, err == nil
}

var episodeRules = []episodeRule{
	{"SxxEyy", regexp.MustCompile(`(?i)\bS(\d{1,2})\s*E(\d{1,4})\b`), secondGroupEpisode},
	{"NxMM", regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{1,3})\b`), secondGroupEpisode},
	{"Episode NN", regexp.MustCompile(`(?i)\bEpisode\s*(\d{1,4})(?:v\d+)?\b`), firstGroupEpisode},
	{"Ep NN", regexp.MustCompile(`(?i)\bEp\.?\s*(\d{1,4})(?:v\d+)?\b`), firstGroupEpisode},
	{"E NN", regexp.MustCompile(`(?i)\bE\s?(\d{1,4})(?:v\d+)?\b`), firstGroupEpisode},
	{"#NN", regexp.MustCompile(`#(\d{1,4})(?:v\d+)?\b`), firstGroupEpisode},
	{"dash NN", regexp.MustCompile(`(?:\s|_)-\s*(\d{1,4})(?:v\d+)?\b`), func(groups []string) (int, bool) {
		n, err := strconv.Atoi(groups[1])
		if err != nil || isYear(n) {
			return 0, false
		}
		return n, true
	}},
	// A bare trailing number with no marker at all ("Show Name 05.srt").
	// Anchored to the tail of the name, allowing only bracket tags and the
	// extension after it, so resolutions and range tokens cannot match.
	{"bare NN", regexp.MustCompile(`(?i)(?:\s|_)(\d{1,4})(?:v\d+)?\s*(?:\[[^]]*]\s*)*(?:\.[a-z0-9]+)?$`), func(groups []string) (int, bool) {
		n, err := strconv.Atoi(groups[1])
		if err != nil || isYear(n) {
			return 0, false
		}
		return n, true
	}},
}

// batchRegexes mark whole-season or batch releases that cover every episode.
var batchRegexes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bcomplete\b`),
	regexp.MustCompile(`(?i)\bbatch\b`),
	regexp.MustCompile(`(?i)\bvol(?:ume)?\.?\s*\d`),
	regexp.MustCompile(`(?i)\+\s*OVA\b`),
	// A season-range token like "01-12" or "01~24" with no specific episode.
	regexp.MustCompile(`\b\d{1,3}\s*[-~]\s*\d{1,3}\b`),
}

// EpisodeFromName runs the rule list against a display name and returns the
// episode number of the first matching convention.
func EpisodeFromName(name string) (int, bool) {
	for _, rule := range episodeRules {
		groups := rule.pattern.FindStringSubmatch(name)
		if groups == nil {
			continue
		}
		if episode, ok := rule.extract(groups); ok {
			return episode, true
		}
	}
	return 0, false
}

// isBatchRelease reports whether a display name looks like a whole-season or
// batch release rather than a single episode.
func isBatchRelease(name string) bool {
	if _, ok := EpisodeFromName(name); ok {
		return false
	}
	for _, re := range batchRegexes {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// FilterFilesByEpisode filters an entry's file list down to the files
// plausibly matching the target episode, preserving the index's order.
// When no per-episode match exists, batch/complete releases are returned as
// a fallback. Episode 0 means "whole directory / unknown" and returns all
// files unfiltered. An empty result is not an error; callers map it to a
// "no subtitle for this episode" message.
func FilterFilesByEpisode(files []models.File, episode int) []models.File {
	if episode == 0 {
		return files
	}

	logger := config.GetLogger()

	matched := make([]models.File, 0, len(files))
	for _, file := range files {
		if n, ok := EpisodeFromName(file.Name); ok && n == episode {
			matched = append(matched, file)
		}
	}
	if len(matched) > 0 {
		logger.Debug().Int("episode", episode).Int("matches", len(matched)).Msg("Found per-episode subtitle files")
		return matched
	}

	for _, file := range files {
		if isBatchRelease(file.Name) {
			matched = append(matched, file)
		}
	}
	logger.Debug().Int("episode", episode).Int("batchMatches", len(matched)).Msg("Fell back to batch releases")
	return matched
}
