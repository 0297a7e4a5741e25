// Package ui implements the terminal progress view for sync runs using bubbletea's Elm architecture.
//
// The TUI walks through four views:
//  1. [PlaylistListView] : Browse the snapshot's playlists (and liked tracks)
//  2. [ConfirmView] : Confirm the selection and destination
//  3. [SyncView] : Watch the current playlist, added/failed counts and recent failures with a spinner
//  4. [ResultView] : Final counts and the failed tracks
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// The sync itself runs in a goroutine through a [SyncFunc]; state copies and phase events reach the model over
// buffered channels with non-blocking sends, so a slow terminal never stalls reconciliation.
//
// Pressing q during a sync cancels its context; the reconciler stops at the next track and the result view
// reports the cancellation alongside everything gathered so far.
package ui
