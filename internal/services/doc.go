// Package services defines the capability interfaces the sync engine depends on ([Destination], [Source])
// and implements them for Spotify and YouTube Music.
//
// # Capability Interface
//
// The reconciler only talks to a [Destination]: search, list/create playlists, read membership and liked items,
// append items and like a single item. Export only needs a [Source]. Both concrete clients implement [Service].
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication. The [oauth2.Config.Client] transport refreshes expired
// tokens using the refresh token; requests are issued through resty on top of that transport.
//
// # YouTube Music Implementation
//
// [YouTubeService] communicates with the FastAPI proxy server (music/) wrapping ytmusicapi.
// The auth_file path is sent via X-Auth-File header on each request.
//
// # Retries
//
// A [RetryPolicy] is applied to every client. Transport errors, 429 and 5xx are retried with exponential
// backoff; callers above this package never retry.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called or credentials rejected
//   - [shared.ErrAPIRequest] : non-retryable HTTP failure or retries exhausted
//   - [shared.ErrServiceUnavailable] : YouTube proxy unreachable
//   - [shared.ErrPlaylistNotFound] : playlist ID not found
//   - [shared.ErrInvalidInput] : AddItems called with more than WriteCap items
package services
