package services

import (
	"context"

	"github.com/desertthunder/musync/internal/models"
)

// Destination is the set of capabilities the reconciler needs from a music service it writes to.
type Destination interface {
	// Name returns the service name (e.g., "Spotify", "YouTube Music").
	Name() string

	// Search runs a free-text search for the track and returns candidates in service order.
	Search(ctx context.Context, track models.Track) ([]models.Candidate, error)

	// ListPlaylists returns every playlist in the user's library.
	ListPlaylists(ctx context.Context) ([]models.PlaylistRef, error)

	// CreatePlaylist creates an empty playlist and returns its ID.
	CreatePlaylist(ctx context.Context, name string) (string, error)

	// ListMembership returns the platform IDs of every item in the playlist, following pagination.
	ListMembership(ctx context.Context, playlistID string) ([]string, error)

	// ListLiked returns the platform IDs of every liked item, following pagination.
	ListLiked(ctx context.Context) ([]string, error)

	// AddItems appends platform IDs to a playlist. Callers respect [Destination.WriteCap].
	AddItems(ctx context.Context, playlistID string, ids []string) error

	// AddLikedItem marks a single item as liked.
	AddLikedItem(ctx context.Context, id string) error

	// WriteCap is the maximum number of items accepted by a single AddItems call.
	WriteCap() int
}

// Source is the set of capabilities needed to export a library into a snapshot.
type Source interface {
	Name() string
	ListPlaylists(ctx context.Context) ([]models.PlaylistRef, error)
	PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error)
	LikedTracks(ctx context.Context) ([]models.Track, error)
}

// Service is implemented by clients that can act as both ends of a sync.
type Service interface {
	Source
	Destination

	// Authenticate configures credentials for subsequent requests.
	Authenticate(ctx context.Context, credentials map[string]string) error
}

var (
	_ Service = (*SpotifyService)(nil)
	_ Service = (*YouTubeService)(nil)
)
