package core

import (
	"fmt"
)

// Track is the catalog record for a single song. It is fetched once per
// page view and replaced wholesale on navigation; nothing mutates it in
// place. The JSON tags match the upstream wire format so proxy responses
// serialize identically to what the catalog returned.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Explicit   bool     `json:"explicit"`
	Popularity int      `json:"popularity"`
	Artists    []Artist `json:"artists"`
	Album      AlbumRef `json:"album"`
	DurationMS int      `json:"duration_ms"`
	URI        string   `json:"uri"`
	PreviewURL string   `json:"preview_url"`
}

type Artist struct {
	Name string `json:"name"`
}

// AlbumRef is the album summary embedded in a Track.
type AlbumRef struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Images      []AlbumImage `json:"images"`
	ReleaseDate string       `json:"release_date"`
	TotalTracks int          `json:"total_tracks"`
}

type AlbumImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Album is the full album record, fetched keyed by the track's album id.
type Album struct {
	Name   string      `json:"name"`
	Label  string      `json:"label"`
	Tracks AlbumTracks `json:"tracks"`
}

type AlbumTracks struct {
	Items []AlbumTrack `json:"items"`
}

type AlbumTrack struct {
	Name       string `json:"name"`
	DurationMS int    `json:"duration_ms"`
}

// CoverURL returns the URL of the largest album image, or "" if the
// catalog returned none.
func (t *Track) CoverURL() string {
	if len(t.Album.Images) == 0 {
		return ""
	}
	return t.Album.Images[0].URL
}

// FirstArtist returns the primary artist name, or "" for an empty list.
func (t *Track) FirstArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0].Name
}

// ArtistLine joins all artist names with ", ".
func (t *Track) ArtistLine() string {
	line := ""
	for i, a := range t.Artists {
		if i > 0 {
			line += ", "
		}
		line += a.Name
	}
	return line
}

// TotalDurationMS sums the durations of all album tracks.
func (a *Album) TotalDurationMS() int {
	total := 0
	for _, t := range a.Tracks.Items {
		total += t.DurationMS
	}
	return total
}

// FormatDuration renders a millisecond duration as M:SS with zero-padded
// seconds and no leading zero on minutes, e.g. 4575000 -> "76:15".
func FormatDuration(ms int) string {
	if ms < 0 {
		ms = 0
	}
	totalSecs := ms / 1000
	return fmt.Sprintf("%d:%02d", totalSecs/60, totalSecs%60)
}
