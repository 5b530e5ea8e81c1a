package models

// Track is one element of mpv's track-list property, as reported over the
// IPC socket. Only the fields the playback feature inspects are mapped.
type Track struct {
	ID       int    `json:"id"`
	Type     string `json:"type"`
	Lang     string `json:"lang"`
	Title    string `json:"title"`
	Selected bool   `json:"selected"`
}

// IsAudio reports whether the track is an audio track.
func (t Track) IsAudio() bool { return t.Type == "audio" }

// IsSubtitle reports whether the track is a subtitle track.
func (t Track) IsSubtitle() bool { return t.Type == "sub" }

// IsJapanese reports whether the track is tagged with a Japanese language code.
func (t Track) IsJapanese() bool {
	return t.Lang == "ja" || t.Lang == "jpn" || t.Lang == "jp"
}
