package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/tasks"
)

var _ list.Item = playlistItem{}

// playlistItem wraps a snapshot [models.Playlist] to implement [list.Item].
//
// The liked-tracks list is shown as a pseudo playlist with liked set.
type playlistItem struct {
	playlist models.Playlist
	liked    bool
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string       { return i.playlist.Name }
func (i playlistItem) Description() string {
	desc := fmt.Sprintf("%d tracks", len(i.playlist.Tracks))
	if i.liked {
		desc += " • liked"
	}
	return desc
}

func snapshotItems(snap *models.Snapshot) []list.Item {
	items := make([]list.Item, 0, len(snap.Playlists)+1)
	for _, pl := range snap.Playlists {
		items = append(items, playlistItem{playlist: pl})
	}
	if len(snap.Liked) > 0 {
		items = append(items, playlistItem{
			playlist: models.Playlist{Name: tasks.LikedPlaylistName, Tracks: snap.Liked},
			liked:    true,
		})
	}
	return items
}
