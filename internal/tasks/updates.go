package tasks

import (
	"fmt"

	"github.com/desertthunder/musync/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchDest Phase = iota
	ResolvePlaylist
	MatchTracks
	WriteItems
	SyncLiked
	FetchPlaylists
	ExportPlaylist
	FetchLiked
	WriteSnapshot
	Complete
)

func (p Phase) String() string {
	switch p {
	case FetchDest:
		return "fetch_dest"
	case ResolvePlaylist:
		return "resolve_playlist"
	case MatchTracks:
		return "match_tracks"
	case WriteItems:
		return "write_items"
	case SyncLiked:
		return "sync_liked"
	case FetchPlaylists:
		return "fetch_playlists"
	case ExportPlaylist:
		return "export_playlist"
	case FetchLiked:
		return "fetch_liked"
	case WriteSnapshot:
		return "write_snapshot"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

// sendProgress delivers u without blocking; updates are dropped when the receiver is slow.
func sendProgress(ch chan<- ProgressUpdate, u ProgressUpdate) {
	if ch == nil {
		return
	}
	select {
	case ch <- u:
	default:
	}
}

func fetchDestUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchDest,
		Message: fmt.Sprintf("Fetching playlists from %s...", name),
	}
}

func resolvePlaylistUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolvePlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Syncing playlist: %s", step, total, name),
	}
}

func matchUpdate(step, total int, res models.MatchResult, state SyncState) ProgressUpdate {
	mark := "✗"
	if res.Matched() {
		mark = "✓"
	}
	return ProgressUpdate{
		Phase:   MatchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s (%.0f)", step, total, mark, res.Track.String(), res.Score),
		Data:    state,
	}
}

func writeItemsUpdate(n int, target string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteItems,
		Step:    n,
		Total:   n,
		Message: fmt.Sprintf("Adding %d tracks to %s...", n, target),
	}
}

func writeFailedUpdate(n int, target string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteItems,
		Step:    0,
		Total:   n,
		Message: fmt.Sprintf("✗ Failed to add %d tracks to %s: %v", n, target, err),
	}
}

func syncLikedUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncLiked,
		Total:   total,
		Message: fmt.Sprintf("Syncing %d liked tracks...", total),
	}
}

func completeUpdate(state SyncState) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Complete,
		Step:    len(state.Added),
		Total:   len(state.Added) + len(state.Failed),
		Message: fmt.Sprintf("Done: %d added, %d failed", len(state.Added), len(state.Failed)),
		Data:    state,
	}
}

func fetchPlaylistsUpdate(source string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylists,
		Message: fmt.Sprintf("Fetching playlists from %s...", source),
	}
}

func exportCompletedUpdate(step, total int, name string, tracks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d tracks)", step, total, name, tracks),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}

func fetchLikedUpdate(source string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchLiked,
		Message: fmt.Sprintf("Fetching liked tracks from %s...", source),
	}
}

func writeSnapshotUpdate(dir string, snap *models.Snapshot) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteSnapshot,
		Step:    len(snap.Playlists),
		Total:   len(snap.Playlists),
		Message: fmt.Sprintf("Wrote %d playlists and %d liked tracks to %s", len(snap.Playlists), len(snap.Liked), dir),
		Data:    snap,
	}
}
