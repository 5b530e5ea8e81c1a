package models

import "time"

// Entry is a show-level record on the Jimaku index. Multiple entries may
// exist for one AniList id (duplicate community uploads), so consumers must
// be prepared to disambiguate.
type Entry struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	EnglishName  string `json:"english_name"`
	JapaneseName string `json:"japanese_name"`
	AnilistID    int    `json:"anilist_id"`
}

// DisplayName returns the label shown in disambiguation menus: the English
// name when present, with the Japanese name appended for context.
func (e Entry) DisplayName() string {
	name := e.EnglishName
	if name == "" {
		name = e.Name
	}
	if e.JapaneseName != "" && e.JapaneseName != name {
		return name + " - " + e.JapaneseName
	}
	return name
}

// File is a downloadable subtitle artifact belonging to an Entry.
type File struct {
	ID           int64     `json:"id"`
	URL          string    `json:"url"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}
