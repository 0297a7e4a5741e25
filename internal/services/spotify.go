// Spotify Web API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/shared"
	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	spotifyWriteCap  = 100
	spotifyPageSize  = 50
	spotifyItemsPage = 100
	spotifySearchMax = 5
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Artists []SpotifyArtist `json:"artists"`
	URI     string          `json:"uri"`
}

// SpotifySavedTrack represents a track within a playlist or the saved-tracks library.
//
// Track is nil for removed or local items.
type SpotifySavedTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks represents a paginated response of playlist items or saved tracks.
type SpotifyPaginatedTracks struct {
	Items  []SpotifySavedTrack `json:"items"`
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
	Next   *string             `json:"next"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items  []SpotifySimplePlaylist `json:"items"`
	Total  int                     `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
	Next   *string                 `json:"next"`
}

type spotifySearchResponse struct {
	Tracks struct {
		Items []SpotifyTrack `json:"items"`
	} `json:"tracks"`
}

// SpotifyService implements [Service] for the Spotify Web API.
//
// Requests go through a resty client layered on the [oauth2] transport, which refreshes expired tokens.
type SpotifyService struct {
	config  *oauth2.Config
	baseURL string
	policy  RetryPolicy
	client  *resty.Client

	mu     sync.Mutex
	userID string
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://localhost:3000/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"playlist-read-private",
			"playlist-read-collaborative",
			"playlist-modify-private",
			"playlist-modify-public",
			"user-library-read",
			"user-library-modify",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	baseURL := credentials["base_url"]
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}

	return &SpotifyService{
		config:  config,
		baseURL: baseURL,
		policy:  DefaultRetryPolicy(),
	}, nil
}

// SetRetryPolicy replaces the retry policy. Takes effect on the next Authenticate.
func (s *SpotifyService) SetRetryPolicy(p RetryPolicy) {
	s.policy = p
}

// Authenticate configures the OAuth2 token.
//
// Accepts "access_token" and/or "refresh_token". With only a refresh token, the first request
// triggers a refresh against the token endpoint.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if credentials["access_token"] == "" && credentials["refresh_token"] == "" {
		return fmt.Errorf("%w: missing access_token or refresh_token", shared.ErrMissingCredentials)
	}

	token := &oauth2.Token{
		AccessToken:  credentials["access_token"],
		RefreshToken: credentials["refresh_token"],
		TokenType:    "Bearer",
	}

	s.client = newClient(s.config.Client(ctx, token), s.baseURL, s.policy)
	return nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

func (s *SpotifyService) WriteCap() int {
	return spotifyWriteCap
}

func (s *SpotifyService) request(ctx context.Context) (*resty.Request, error) {
	if s.client == nil {
		return nil, fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}
	return s.client.R().SetContext(ctx), nil
}

// check converts resty results into the shared error taxonomy.
func (s *SpotifyService) check(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: spotify %s: %v", shared.ErrAPIRequest, op, err)
	}
	switch {
	case resp.StatusCode() == http.StatusUnauthorized:
		return fmt.Errorf("%w: spotify %s: status %d", shared.ErrNotAuthenticated, op, resp.StatusCode())
	case resp.StatusCode() == http.StatusNotFound:
		return fmt.Errorf("%w: spotify %s: status %d", shared.ErrPlaylistNotFound, op, resp.StatusCode())
	case resp.IsError():
		return fmt.Errorf("%w: spotify %s: status %d", shared.ErrAPIRequest, op, resp.StatusCode())
	}
	return nil
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	req, err := s.request(ctx)
	if err != nil {
		return nil, err
	}

	var user SpotifyUser
	resp, err := req.SetResult(&user).Get("/me")
	if err := s.check("profile", resp, err); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *SpotifyService) currentUserID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.userID != "" {
		return s.userID, nil
	}
	user, err := s.UserProfile(ctx)
	if err != nil {
		return "", err
	}
	s.userID = user.ID
	return s.userID, nil
}

// Search queries the track catalog with "<name> <first artist>".
func (s *SpotifyService) Search(ctx context.Context, track models.Track) ([]models.Candidate, error) {
	req, err := s.request(ctx)
	if err != nil {
		return nil, err
	}

	var result spotifySearchResponse
	resp, err := req.
		SetQueryParams(map[string]string{
			"q":     track.Query(),
			"type":  "track",
			"limit": strconv.Itoa(spotifySearchMax),
		}).
		SetResult(&result).
		Get("/search")
	if err := s.check("search", resp, err); err != nil {
		return nil, err
	}

	candidates := make([]models.Candidate, 0, len(result.Tracks.Items))
	for _, item := range result.Tracks.Items {
		candidates = append(candidates, item.candidate())
	}
	return candidates, nil
}

// UserPlaylists retrieves one page of the current user's playlists.
func (s *SpotifyService) UserPlaylists(ctx context.Context, limit, offset int) (*SpotifyPaginatedPlaylists, error) {
	req, err := s.request(ctx)
	if err != nil {
		return nil, err
	}

	var page SpotifyPaginatedPlaylists
	resp, err := req.
		SetQueryParams(pageParams(limit, offset)).
		SetResult(&page).
		Get("/me/playlists")
	if err := s.check("list playlists", resp, err); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListPlaylists retrieves all playlists for the authenticated user.
func (s *SpotifyService) ListPlaylists(ctx context.Context) ([]models.PlaylistRef, error) {
	var refs []models.PlaylistRef
	for offset := 0; ; offset += spotifyPageSize {
		page, err := s.UserPlaylists(ctx, spotifyPageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, p := range page.Items {
			refs = append(refs, models.PlaylistRef{ID: p.ID, Name: p.Name})
		}
		if page.Next == nil || len(page.Items) == 0 {
			return refs, nil
		}
	}
}

// CreatePlaylist creates a private playlist owned by the current user.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, name string) (string, error) {
	userID, err := s.currentUserID(ctx)
	if err != nil {
		return "", err
	}

	req, err := s.request(ctx)
	if err != nil {
		return "", err
	}

	var created SpotifySimplePlaylist
	resp, err := req.
		SetBody(map[string]any{
			"name":        name,
			"public":      false,
			"description": "Synced by musync",
		}).
		SetResult(&created).
		Post("/users/" + userID + "/playlists")
	if err := s.check("create playlist", resp, err); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("%w: spotify create playlist returned no id", shared.ErrAPIRequest)
	}
	return created.ID, nil
}

// tracksPage fetches one page of playlist items or saved tracks from endpoint.
func (s *SpotifyService) tracksPage(ctx context.Context, endpoint string, limit, offset int) (*SpotifyPaginatedTracks, error) {
	req, err := s.request(ctx)
	if err != nil {
		return nil, err
	}

	var page SpotifyPaginatedTracks
	resp, err := req.
		SetQueryParams(pageParams(limit, offset)).
		SetResult(&page).
		Get(endpoint)
	if err := s.check("list tracks", resp, err); err != nil {
		return nil, err
	}
	return &page, nil
}

// allTracks walks every page of endpoint, skipping removed or local items.
func (s *SpotifyService) allTracks(ctx context.Context, endpoint string, limit int) ([]SpotifyTrack, error) {
	var tracks []SpotifyTrack
	for offset := 0; ; offset += limit {
		page, err := s.tracksPage(ctx, endpoint, limit, offset)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			if item.Track != nil && item.Track.URI != "" {
				tracks = append(tracks, *item.Track)
			}
		}
		if page.Next == nil || len(page.Items) == 0 {
			return tracks, nil
		}
	}
}

// ListMembership returns every track URI in the playlist.
func (s *SpotifyService) ListMembership(ctx context.Context, playlistID string) ([]string, error) {
	tracks, err := s.allTracks(ctx, "/playlists/"+playlistID+"/tracks", spotifyItemsPage)
	if err != nil {
		return nil, err
	}
	return trackURIs(tracks), nil
}

// ListLiked returns every saved track URI.
func (s *SpotifyService) ListLiked(ctx context.Context) ([]string, error) {
	tracks, err := s.allTracks(ctx, "/me/tracks", spotifyPageSize)
	if err != nil {
		return nil, err
	}
	return trackURIs(tracks), nil
}

// AddItems appends up to 100 track URIs to a playlist.
func (s *SpotifyService) AddItems(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	if len(uris) > spotifyWriteCap {
		return fmt.Errorf("%w: at most %d items per call, got %d", shared.ErrInvalidInput, spotifyWriteCap, len(uris))
	}

	req, err := s.request(ctx)
	if err != nil {
		return err
	}

	resp, err := req.
		SetBody(map[string]any{"uris": uris}).
		Post("/playlists/" + playlistID + "/tracks")
	return s.check("add items", resp, err)
}

// AddLikedItem saves a track to the user's library. Accepts a track URI or bare ID.
func (s *SpotifyService) AddLikedItem(ctx context.Context, uri string) error {
	req, err := s.request(ctx)
	if err != nil {
		return err
	}

	resp, err := req.
		SetQueryParam("ids", trackID(uri)).
		Put("/me/tracks")
	return s.check("save track", resp, err)
}

// PlaylistTracks returns the tracks of a playlist for snapshot export.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	tracks, err := s.allTracks(ctx, "/playlists/"+playlistID+"/tracks", spotifyItemsPage)
	if err != nil {
		return nil, err
	}
	return toModelTracks(tracks), nil
}

// LikedTracks returns the saved tracks for snapshot export.
func (s *SpotifyService) LikedTracks(ctx context.Context) ([]models.Track, error) {
	tracks, err := s.allTracks(ctx, "/me/tracks", spotifyPageSize)
	if err != nil {
		return nil, err
	}
	return toModelTracks(tracks), nil
}

func (t SpotifyTrack) artistNames() []string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return names
}

func (t SpotifyTrack) candidate() models.Candidate {
	return models.Candidate{Name: t.Name, Artists: t.artistNames(), PlatformID: t.URI}
}

func toModelTracks(tracks []SpotifyTrack) []models.Track {
	out := make([]models.Track, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, models.Track{Name: t.Name, Artists: t.artistNames()})
	}
	return out
}

func trackURIs(tracks []SpotifyTrack) []string {
	uris := make([]string, 0, len(tracks))
	for _, t := range tracks {
		uris = append(uris, t.URI)
	}
	return uris
}

// trackID extracts the ID from "spotify:track:<id>".
func trackID(uri string) string {
	if i := strings.LastIndex(uri, ":"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}

func pageParams(limit, offset int) map[string]string {
	return map[string]string{
		"limit":  strconv.Itoa(limit),
		"offset": strconv.Itoa(offset),
	}
}
