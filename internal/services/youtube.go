// YouTube Music API [Service] implementation
//
// Communicates with the FastAPI proxy server (music/) running on port 8080.
// The proxy wraps ytmusicapi Python library for YouTube Music operations.
package services

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/shared"
	"github.com/go-resty/resty/v2"
)

const (
	defaultYTBaseURL string = "http://localhost:8080"

	youtubeWriteCap  = 50
	youtubeSearchMax = 5
)

// YouTubeArtist represents an artist in YouTube Music responses.
type YouTubeArtist struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// YouTubeTrack represents a track/video in YouTube Music responses.
type YouTubeTrack struct {
	VideoID     string          `json:"videoId"`
	Title       string          `json:"title"`
	Artists     []YouTubeArtist `json:"artists"`
	Duration    string          `json:"duration"`
	DurationSec int             `json:"duration_seconds"`
	SetVideoID  string          `json:"setVideoId,omitempty"` // For playlist operations
}

// YouTubePlaylist represents a playlist (or the liked-songs pseudo playlist) from YouTube Music.
type YouTubePlaylist struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Privacy    string         `json:"privacy"`
	TrackCount int            `json:"trackCount"`
	Tracks     []YouTubeTrack `json:"tracks,omitempty"`
}

type youtubeLibraryPlaylist struct {
	PlaylistID string `json:"playlistId"`
	Title      string `json:"title"`
	Count      int    `json:"count"`
}

type youtubeErrorResponse struct {
	Detail string `json:"detail"`
}

// YouTubeService implements [Service] for YouTube Music via proxy.
type YouTubeService struct {
	baseURL  string
	authFile string
	policy   RetryPolicy
	client   *resty.Client
}

// NewYouTubeService creates a new YouTube Music service instance.
func NewYouTubeService(baseURL string) *YouTubeService {
	if baseURL == "" {
		baseURL = defaultYTBaseURL
	}

	y := &YouTubeService{baseURL: baseURL, policy: DefaultRetryPolicy()}
	y.client = newClient(nil, baseURL, y.policy)
	return y
}

// SetRetryPolicy replaces the retry policy used for every proxy call.
func (y *YouTubeService) SetRetryPolicy(p RetryPolicy) {
	y.policy = p
	y.client = newClient(nil, y.baseURL, p)
	y.applyAuth()
}

func (y *YouTubeService) Name() string {
	return "YouTube Music"
}

func (y *YouTubeService) WriteCap() int {
	return youtubeWriteCap
}

// Authenticate stores the authentication file path for subsequent requests.
//
// Expects credentials["auth_file"] to contain the path to browser.json or oauth.json.
func (y *YouTubeService) Authenticate(ctx context.Context, credentials map[string]string) error {
	authFile, ok := credentials["auth_file"]
	if !ok || authFile == "" {
		return fmt.Errorf("%w: missing auth_file in credentials", shared.ErrMissingCredentials)
	}

	y.authFile = authFile
	y.applyAuth()
	return nil
}

func (y *YouTubeService) applyAuth() {
	if y.authFile != "" {
		y.client.SetHeader("X-Auth-File", y.authFile)
	}
}

// check converts proxy responses into the shared error taxonomy, surfacing FastAPI's detail message.
func (y *YouTubeService) check(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: youtube music %s: %v", shared.ErrServiceUnavailable, op, err)
	}
	if !resp.IsError() {
		return nil
	}

	sentinel := shared.ErrAPIRequest
	switch resp.StatusCode() {
	case http.StatusUnauthorized, http.StatusForbidden:
		sentinel = shared.ErrNotAuthenticated
	case http.StatusNotFound:
		sentinel = shared.ErrPlaylistNotFound
	}

	if e, ok := resp.Error().(*youtubeErrorResponse); ok && e.Detail != "" {
		return fmt.Errorf("%w: youtube music %s (status %d): %s", sentinel, op, resp.StatusCode(), e.Detail)
	}
	return fmt.Errorf("%w: youtube music %s: status %d", sentinel, op, resp.StatusCode())
}

func (y *YouTubeService) request(ctx context.Context) *resty.Request {
	return y.client.R().SetContext(ctx).SetError(&youtubeErrorResponse{})
}

// Search queries songs with "<name> <first artist>".
//
// Calls GET /api/search?q=...&filter=songs&limit=5 on the proxy.
func (y *YouTubeService) Search(ctx context.Context, track models.Track) ([]models.Candidate, error) {
	var results []YouTubeTrack
	resp, err := y.request(ctx).
		SetQueryParams(map[string]string{
			"q":      track.Query(),
			"filter": "songs",
			"limit":  strconv.Itoa(youtubeSearchMax),
		}).
		SetResult(&results).
		Get("/api/search")
	if err := y.check("search", resp, err); err != nil {
		return nil, err
	}

	candidates := make([]models.Candidate, 0, len(results))
	for _, r := range results {
		if r.VideoID == "" {
			continue
		}
		candidates = append(candidates, r.candidate())
	}
	return candidates, nil
}

// ListPlaylists retrieves all playlists for the authenticated user.
//
// Calls GET /api/library/playlists on the proxy.
func (y *YouTubeService) ListPlaylists(ctx context.Context) ([]models.PlaylistRef, error) {
	var library []youtubeLibraryPlaylist
	resp, err := y.request(ctx).SetResult(&library).Get("/api/library/playlists")
	if err := y.check("list playlists", resp, err); err != nil {
		return nil, err
	}

	refs := make([]models.PlaylistRef, 0, len(library))
	for _, p := range library {
		refs = append(refs, models.PlaylistRef{ID: p.PlaylistID, Name: p.Title})
	}
	return refs, nil
}

// Playlist retrieves a playlist with all its tracks.
//
// Calls GET /api/playlists/{id} on the proxy, which pages through ytmusicapi internally.
func (y *YouTubeService) Playlist(ctx context.Context, playlistID string) (*YouTubePlaylist, error) {
	var playlist YouTubePlaylist
	resp, err := y.request(ctx).
		SetPathParam("id", playlistID).
		SetResult(&playlist).
		Get("/api/playlists/{id}")
	if err := y.check("get playlist", resp, err); err != nil {
		return nil, err
	}
	return &playlist, nil
}

func (y *YouTubeService) likedSongs(ctx context.Context) (*YouTubePlaylist, error) {
	var liked YouTubePlaylist
	resp, err := y.request(ctx).SetResult(&liked).Get("/api/library/liked-songs")
	if err := y.check("liked songs", resp, err); err != nil {
		return nil, err
	}
	return &liked, nil
}

// CreatePlaylist creates a private playlist.
//
// Calls POST /api/playlists on the proxy.
func (y *YouTubeService) CreatePlaylist(ctx context.Context, name string) (string, error) {
	var created struct {
		PlaylistID string `json:"playlist_id"`
	}
	resp, err := y.request(ctx).
		SetBody(map[string]string{
			"title":          name,
			"description":    "Synced by musync",
			"privacy_status": "PRIVATE",
		}).
		SetResult(&created).
		Post("/api/playlists")
	if err := y.check("create playlist", resp, err); err != nil {
		return "", err
	}
	if created.PlaylistID == "" {
		return "", fmt.Errorf("%w: youtube music create playlist returned no id", shared.ErrAPIRequest)
	}
	return created.PlaylistID, nil
}

// ListMembership returns the video IDs in the playlist.
func (y *YouTubeService) ListMembership(ctx context.Context, playlistID string) ([]string, error) {
	playlist, err := y.Playlist(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	return videoIDs(playlist.Tracks), nil
}

// ListLiked returns the video IDs of every liked song.
func (y *YouTubeService) ListLiked(ctx context.Context) ([]string, error) {
	liked, err := y.likedSongs(ctx)
	if err != nil {
		return nil, err
	}
	return videoIDs(liked.Tracks), nil
}

// AddItems appends up to 50 video IDs to a playlist.
//
// Calls POST /api/playlists/{id}/items on the proxy.
func (y *YouTubeService) AddItems(ctx context.Context, playlistID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) > youtubeWriteCap {
		return fmt.Errorf("%w: at most %d items per call, got %d", shared.ErrInvalidInput, youtubeWriteCap, len(ids))
	}

	resp, err := y.request(ctx).
		SetPathParam("id", playlistID).
		SetBody(map[string][]string{"video_ids": ids}).
		Post("/api/playlists/{id}/items")
	return y.check("add items", resp, err)
}

// AddLikedItem rates a song as LIKE.
//
// Calls POST /api/songs/{videoId}/rating on the proxy.
func (y *YouTubeService) AddLikedItem(ctx context.Context, videoID string) error {
	resp, err := y.request(ctx).
		SetPathParam("videoId", videoID).
		SetBody(map[string]string{"rating": "LIKE"}).
		Post("/api/songs/{videoId}/rating")
	return y.check("rate song", resp, err)
}

// PlaylistTracks returns the tracks of a playlist for snapshot export.
func (y *YouTubeService) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	playlist, err := y.Playlist(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	return youtubeTracks(playlist.Tracks), nil
}

// LikedTracks returns the liked songs for snapshot export.
func (y *YouTubeService) LikedTracks(ctx context.Context) ([]models.Track, error) {
	liked, err := y.likedSongs(ctx)
	if err != nil {
		return nil, err
	}
	return youtubeTracks(liked.Tracks), nil
}

func (t YouTubeTrack) artistNames() []string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return names
}

func (t YouTubeTrack) candidate() models.Candidate {
	return models.Candidate{Name: t.Title, Artists: t.artistNames(), PlatformID: t.VideoID}
}

func youtubeTracks(tracks []YouTubeTrack) []models.Track {
	out := make([]models.Track, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, models.Track{Name: t.Title, Artists: t.artistNames()})
	}
	return out
}

func videoIDs(tracks []YouTubeTrack) []string {
	ids := make([]string, 0, len(tracks))
	for _, t := range tracks {
		if t.VideoID != "" {
			ids = append(ids, t.VideoID)
		}
	}
	return ids
}
