// package models defines the data model shared by the matching engine, the reconciler and the service clients
package models

import (
	"strings"
)

// Track is a source-library entry identified by name and artist list.
type Track struct {
	Name    string   `json:"name"`
	Artists []string `json:"artists"`
}

// FirstArtist returns the first listed artist or an empty string.
func (t Track) FirstArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// Query builds the free-text search query for a track: "<name> <first artist>".
func (t Track) Query() string {
	return strings.TrimSpace(t.Name + " " + t.FirstArtist())
}

// String renders "Artist, Artist - Name" for logs and reports.
func (t Track) String() string {
	if len(t.Artists) == 0 {
		return t.Name
	}
	return strings.Join(t.Artists, ", ") + " - " + t.Name
}

// Valid reports whether the track carries enough data to be searched.
func (t Track) Valid() bool {
	return strings.TrimSpace(t.Name) != "" && len(t.Artists) > 0
}

// Candidate is a destination search result considered as a possible match for a [Track].
//
// PlatformID is the destination-specific addressable identifier (a Spotify URI or a YouTube videoId).
type Candidate struct {
	Name       string   `json:"name"`
	Artists    []string `json:"artists"`
	PlatformID string   `json:"platform_id"`
}

// Playlist is a named, ordered list of tracks as found in a snapshot.
type Playlist struct {
	Name   string  `json:"name"`
	Tracks []Track `json:"tracks"`
}

// PlaylistRef is a destination or source playlist listing entry.
type PlaylistRef struct {
	ID   string
	Name string
}

// MatchResult is produced once per [Track] by the batch processor.
//
// Candidate is nil when no candidate reached the acceptance threshold; Score still carries the best score seen.
// Err is set when the search capability failed for this track. Tracks that were never scored keep Score 0,
// which is why acceptance thresholds must be positive.
type MatchResult struct {
	Track     Track
	Candidate *Candidate
	Score     float64
	Err       error
}

// Matched reports whether the result carries an accepted candidate.
func (r MatchResult) Matched() bool {
	return r.Candidate != nil
}
