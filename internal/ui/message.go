package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/musync/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgStateUpdate MsgKind = iota
	MsgProgressUpdate
	MsgSyncComplete
)

type syncResult struct {
	state *tasks.SyncState
	err   error
}

// stateUpdateMsg is the constructor for [MsgStateUpdate]
func stateUpdateMsg(s tasks.SyncState) Msg {
	return Msg{kind: MsgStateUpdate, data: s}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// syncCompleteMsg is the constructor for [MsgSyncComplete]
func syncCompleteMsg(state *tasks.SyncState, err error) Msg {
	return Msg{kind: MsgSyncComplete, data: syncResult{state: state, err: err}}
}
