package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrInvalidSnapshot is returned when a snapshot file cannot be decoded.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

const (
	PlaylistsFile = "playlists.json"
	LikedFile     = "liked.json"
)

// Snapshot is the platform-neutral export of a source library.
type Snapshot struct {
	Playlists []Playlist
	Liked     []Track
}

// TrackCount returns the number of tracks across all playlists plus liked tracks.
func (s *Snapshot) TrackCount() int {
	n := len(s.Liked)
	for _, pl := range s.Playlists {
		n += len(pl.Tracks)
	}
	return n
}

// LoadPlaylists reads a playlists snapshot: a JSON array of {name, tracks: [{name, artists}]}.
func LoadPlaylists(path string) ([]Playlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read playlists snapshot: %w", err)
	}

	var playlists []Playlist
	if err := json.Unmarshal(data, &playlists); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSnapshot, path, err)
	}

	for i, pl := range playlists {
		if pl.Name == "" {
			return nil, fmt.Errorf("%w: %s: playlist %d has no name", ErrInvalidSnapshot, path, i)
		}
	}
	return playlists, nil
}

// LoadLiked reads a liked-tracks snapshot: a flat JSON array of {name, artists}.
func LoadLiked(path string) ([]Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read liked snapshot: %w", err)
	}

	var tracks []Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSnapshot, path, err)
	}
	return tracks, nil
}

// LoadSnapshot reads playlists.json and, when present, liked.json from dir.
func LoadSnapshot(dir string) (*Snapshot, error) {
	playlists, err := LoadPlaylists(filepath.Join(dir, PlaylistsFile))
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Playlists: playlists}

	likedPath := filepath.Join(dir, LikedFile)
	if _, err := os.Stat(likedPath); err == nil {
		liked, err := LoadLiked(likedPath)
		if err != nil {
			return nil, err
		}
		snap.Liked = liked
	}
	return snap, nil
}

// WriteSnapshot writes playlists.json and liked.json into dir, creating it if needed.
func WriteSnapshot(dir string, snap *Snapshot) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	playlists := snap.Playlists
	if playlists == nil {
		playlists = []Playlist{}
	}
	if err := writeJSON(filepath.Join(dir, PlaylistsFile), playlists); err != nil {
		return err
	}

	liked := snap.Liked
	if liked == nil {
		liked = []Track{}
	}
	return writeJSON(filepath.Join(dir, LikedFile), liked)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
