package tasks

import (
	"github.com/desertthunder/musync/internal/models"
)

// LikedPlaylistName is reported as the current playlist while liked tracks are reconciled.
const LikedPlaylistName = "Liked Songs"

// SyncState is the externally observable progress record of one reconciliation run.
//
// It is owned and mutated by a single [Reconciler]. Readers receive copies through [SyncState.Snapshot]
// (or a [ProgressFunc]) and synchronize those copies themselves.
type SyncState struct {
	CurrentPlaylist string
	Added           []models.Track
	Failed          []models.Track
}

// NewSyncState returns an empty state.
func NewSyncState() *SyncState {
	return &SyncState{}
}

// Reset clears the state at the start of a run.
func (s *SyncState) Reset() {
	s.CurrentPlaylist = ""
	s.Added = nil
	s.Failed = nil
}

// Snapshot returns a read-only copy safe to hand to another goroutine.
//
// The copy shares backing arrays with s but its capacity is clipped, so later appends by the owner
// never become visible through it; removals always allocate new slices.
func (s *SyncState) Snapshot() SyncState {
	return SyncState{
		CurrentPlaylist: s.CurrentPlaylist,
		Added:           s.Added[:len(s.Added):len(s.Added)],
		Failed:          s.Failed[:len(s.Failed):len(s.Failed)],
	}
}

func (s *SyncState) markAdded(t models.Track) {
	s.Added = append(s.Added, t)
}

func (s *SyncState) markFailed(t models.Track) {
	s.Failed = append(s.Failed, t)
}

// demote moves the Added entries at the given ascending positions to Failed.
func (s *SyncState) demote(positions []int) {
	if len(positions) == 0 {
		return
	}

	drop := make(map[int]bool, len(positions))
	for _, p := range positions {
		drop[p] = true
	}

	kept := make([]models.Track, 0, len(s.Added)-len(positions))
	failed := make([]models.Track, len(s.Failed), len(s.Failed)+len(positions))
	copy(failed, s.Failed)

	for i, t := range s.Added {
		if drop[i] {
			failed = append(failed, t)
		} else {
			kept = append(kept, t)
		}
	}
	s.Added = kept
	s.Failed = failed
}
