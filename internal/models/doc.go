// Package models defines the entities exchanged between the musync engine and its collaborators.
//
//   - [Track] : a source-library entry (name + ordered artists), immutable once read
//   - [Candidate] : a destination search result with its platform identifier
//   - [Playlist] : a named ordered track list from a snapshot
//   - [PlaylistRef] : an id/name pair from a service playlist listing
//   - [MatchResult] : the outcome of resolving one Track against a destination
//   - [Snapshot] : playlists plus liked tracks, read from and written to JSON files
//
// Snapshot files use the shape produced by the export commands:
//
//	playlists.json: [{"name": "...", "tracks": [{"name": "...", "artists": ["..."]}]}]
//	liked.json:     [{"name": "...", "artists": ["..."]}]
package models
