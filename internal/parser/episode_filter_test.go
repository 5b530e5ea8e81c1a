package parser

import (
	"testing"

	"github.com/ksyasuda/jimaku-dl/internal/models"
)

func specialPatternFiles() []models.File {
	return []models.File{
		{ID: 1, Name: "Show - 01.srt"},
		{ID: 2, Name: "Show - Episode 02.srt"},
		{ID: 3, Name: "Show - E03.srt"},
		{ID: 4, Name: "Show - Ep 04.srt"},
		{ID: 5, Name: "Show #05.srt"},
		{ID: 6, Name: "Show - 06v2.srt"},
		{ID: 7, Name: "Show (Complete).srt"},
		{ID: 8, Name: "Show - Batch.srt"},
	}
}

func TestFilterFilesByEpisode_SpecialPatterns(t *testing.T) {
	t.Parallel()
	files := specialPatternFiles()

	tests := []struct {
		name    string
		episode int
		wantIDs []int64
	}{
		{"dash number", 1, []int64{1}},
		{"episode word", 2, []int64{2}},
		{"E marker", 3, []int64{3}},
		{"ep abbreviation", 4, []int64{4}},
		{"hash marker", 5, []int64{5}},
		{"version suffix ignored", 6, []int64{6}},
		{"no direct match falls back to batch", 10, []int64{7, 8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := FilterFilesByEpisode(files, tt.episode)
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("FilterFilesByEpisode(episode=%d) returned %d files, want %d: %v",
					tt.episode, len(got), len(tt.wantIDs), got)
			}
			for i, f := range got {
				if f.ID != tt.wantIDs[i] {
					t.Errorf("result[%d].ID = %d, want %d", i, f.ID, tt.wantIDs[i])
				}
			}
		})
	}
}

func TestFilterFilesByEpisode_EpisodeZeroReturnsAll(t *testing.T) {
	t.Parallel()
	files := specialPatternFiles()

	got := FilterFilesByEpisode(files, 0)
	if len(got) != len(files) {
		t.Fatalf("episode 0 should return all %d files, got %d", len(files), len(got))
	}
	for i := range files {
		if got[i].ID != files[i].ID {
			t.Errorf("episode 0 must preserve order; result[%d].ID = %d, want %d", i, got[i].ID, files[i].ID)
		}
	}
}

func TestFilterFilesByEpisode_DuplicatesPreserveOrder(t *testing.T) {
	t.Parallel()
	files := []models.File{
		{ID: 10, Name: "[GroupA] Show - 07.srt"},
		{ID: 11, Name: "[GroupB] Show - 07v2.srt"},
		{ID: 12, Name: "[GroupC] Show - 08.srt"},
	}

	got := FilterFilesByEpisode(files, 7)
	if len(got) != 2 || got[0].ID != 10 || got[1].ID != 11 {
		t.Fatalf("expected both episode-7 uploads in index order, got %v", got)
	}
}

func TestFilterFilesByEpisode_Idempotent(t *testing.T) {
	t.Parallel()
	files := specialPatternFiles()

	first := FilterFilesByEpisode(files, 3)
	second := FilterFilesByEpisode(files, 3)
	if len(first) != len(second) {
		t.Fatalf("repeated calls differ in length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("repeated calls differ at index %d: %d vs %d", i, first[i].ID, second[i].ID)
		}
	}
}

func TestFilterFilesByEpisode_SeasonRangeIsBatch(t *testing.T) {
	t.Parallel()
	files := []models.File{
		{ID: 1, Name: "Show (01-12) [Batch].srt"},
		{ID: 2, Name: "Show - 03.srt"},
	}

	// Range tokens never register as a specific episode.
	got := FilterFilesByEpisode(files, 12)
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("expected the season range file as batch fallback, got %v", got)
	}

	got = FilterFilesByEpisode(files, 3)
	if len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("expected only the per-episode file for episode 3, got %v", got)
	}
}

func TestFilterFilesByEpisode_BareTrailingNumber(t *testing.T) {
	t.Parallel()
	files := []models.File{
		{ID: 1, Name: "Show Name 04.srt"},
		{ID: 2, Name: "Show Name 05.srt"},
		{ID: 3, Name: "Show Name 05 [1080p].srt"},
		{ID: 4, Name: "Show Name 01-12.srt"},
	}

	got := FilterFilesByEpisode(files, 5)
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 3 {
		t.Fatalf("expected the bare episode-5 uploads, got %v", got)
	}

	// The range token is not a bare episode; for an uncovered episode it is
	// the batch fallback.
	got = FilterFilesByEpisode(files, 12)
	if len(got) != 1 || got[0].ID != 4 {
		t.Fatalf("expected the range file as batch fallback, got %v", got)
	}
}

func TestEpisodeFromNameBareNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		input       string
		wantEpisode int
		wantOK      bool
	}{
		{"plain trailing number", "Show Name 05.srt", 5, true},
		{"version suffix", "Show Name 05v2.srt", 5, true},
		{"trailing bracket tag", "Show Name 05 [1080p].srt", 5, true},
		{"year is not an episode", "Show Name 2023.srt", 0, false},
		{"range is not an episode", "Show Name 01-12.srt", 0, false},
		{"resolution is not an episode", "Show Name [720p].srt", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			episode, ok := EpisodeFromName(tt.input)
			if ok != tt.wantOK || episode != tt.wantEpisode {
				t.Errorf("EpisodeFromName(%q) = (%d, %v), want (%d, %v)",
					tt.input, episode, ok, tt.wantEpisode, tt.wantOK)
			}
		})
	}
}

func TestFilterFilesByEpisode_YearIsNotEpisode(t *testing.T) {
	t.Parallel()
	files := []models.File{
		{ID: 1, Name: "Show - 2023.srt"},
	}

	if got := FilterFilesByEpisode(files, 2023); len(got) != 0 {
		t.Fatalf("a 4-digit year must not match as an episode, got %v", got)
	}
}
