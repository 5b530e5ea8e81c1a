package models

// MediaReference is the parser's view of a video file or directory: a show
// title plus the season/episode extracted from its name. Season defaults to 1
// when no marker is present; Episode 0 means "unknown or whole directory".
type MediaReference struct {
	Title   string `json:"title"`
	Season  int    `json:"season"`
	Episode int    `json:"episode"`
}

// MediaTitle holds the localized titles AniList reports for a show.
type MediaTitle struct {
	Romaji  string `json:"romaji"`
	English string `json:"english"`
	Native  string `json:"native"`
}

// Media is the canonical AniList record for a show. ID is the durable
// cross-service key used for all subsequent subtitle-index lookups.
type Media struct {
	ID         int        `json:"id"`
	Title      MediaTitle `json:"title"`
	Synonyms   []string   `json:"synonyms"`
	Format     string     `json:"format"`
	Episodes   int        `json:"episodes"`
	Season     string     `json:"season"`
	SeasonYear int        `json:"seasonYear"`
}

// PreferredTitle returns the best display title: English when available,
// then romaji, then the native title.
func (m Media) PreferredTitle() string {
	switch {
	case m.Title.English != "":
		return m.Title.English
	case m.Title.Romaji != "":
		return m.Title.Romaji
	default:
		return m.Title.Native
	}
}

// SearchKeys returns the titles and synonyms usable as free-text search
// terms, in preference order, with empty values removed.
func (m Media) SearchKeys() []string {
	keys := make([]string, 0, 3+len(m.Synonyms))
	for _, title := range []string{m.Title.English, m.Title.Romaji, m.Title.Native} {
		if title != "" {
			keys = append(keys, title)
		}
	}
	keys = append(keys, m.Synonyms...)
	return keys
}
