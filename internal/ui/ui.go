package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/tasks"
)

// recentFailures is the number of failed tracks shown while a sync runs.
const recentFailures = 5

// resultFailures is the number of failed tracks listed on the result view.
const resultFailures = 10

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	ConfirmView
	SyncView
	ResultView
)

// SyncFunc reconciles the selected playlists and liked tracks into the destination.
//
// Implementations report state copies through progress and phase events through updates; both must be non-blocking.
type SyncFunc func(
	ctx context.Context,
	playlists []models.Playlist,
	liked []models.Track,
	progress tasks.ProgressFunc,
	updates chan<- tasks.ProgressUpdate,
) (*tasks.SyncState, error)

// Model represents the TUI application state.
type Model struct {
	ctx         context.Context
	cancel      context.CancelFunc
	view        ViewState
	destination string
	snapshot    *models.Snapshot
	run         SyncFunc
	width       int
	height      int
	playlists   list.Model
	selected    []models.Playlist
	liked       []models.Track
	spinner     spinner.Model
	states      chan tasks.SyncState
	updates     chan tasks.ProgressUpdate
	done        chan syncResult
	state       tasks.SyncState
	progress    tasks.ProgressUpdate
	cancelling  bool
	result      *tasks.SyncState
	err         error
	help        help.Model
	keys        keyMap
}

// NewModel creates a new TUI model that syncs snapshot playlists into destination through run.
func NewModel(ctx context.Context, destination string, snap *models.Snapshot, run SyncFunc) *Model {
	playlists := list.New(snapshotItems(snap), list.NewDefaultDelegate(), 0, 0)
	playlists.Title = fmt.Sprintf("Snapshot playlists → %s", destination)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.spinner

	return &Model{
		ctx:         ctx,
		view:        PlaylistListView,
		destination: destination,
		snapshot:    snap,
		run:         run,
		playlists:   playlists,
		spinner:     s,
		help:        help.New(),
		keys:        newKeyMap(),
	}
}

// Init has nothing to load: the snapshot is read before the program starts.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.playlists.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case SyncView:
			return m.handleSyncKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if m.view != SyncView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	if m.view == PlaylistListView {
		var cmd tea.Cmd
		m.playlists, cmd = m.playlists.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case PlaylistListView:
		return m.renderPlaylistList()
	case ConfirmView:
		return m.renderConfirm()
	case SyncView:
		return m.renderSync()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

// Result returns the final state and error once the sync has finished.
func (m *Model) Result() (*tasks.SyncState, error) {
	return m.result, m.err
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgStateUpdate:
		if m.view == SyncView {
			m.state = msg.data.(tasks.SyncState)
		}
		return m, m.waitForProgress()

	case MsgProgressUpdate:
		if m.view == SyncView {
			m.progress = msg.data.(tasks.ProgressUpdate)
		}
		return m, m.waitForProgress()

	case MsgSyncComplete:
		res := msg.data.(syncResult)
		m.result = res.state
		m.err = res.err
		if res.state != nil {
			m.state = *res.state
		}
		m.view = ResultView
		m.cancelling = false
		m.states, m.updates, m.done = nil, nil, nil
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.playlists.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.playlists, cmd = m.playlists.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter":
		if item, ok := m.playlists.SelectedItem().(playlistItem); ok {
			m.selectItem(item)
			m.view = ConfirmView
		}
		return m, nil
	case "a":
		m.selected = m.snapshot.Playlists
		m.liked = m.snapshot.Liked
		m.view = ConfirmView
		return m, nil
	}

	var cmd tea.Cmd
	m.playlists, cmd = m.playlists.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "n", "esc":
		m.view = PlaylistListView
		return m, nil
	case "y":
		m.view = SyncView
		return m, m.startSync()
	}
	return m, nil
}

func (m *Model) handleSyncKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.cancel != nil && !m.cancelling {
			m.cancelling = true
			m.cancel()
		}
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "enter":
		return m, tea.Quit
	case "r":
		m.view = PlaylistListView
		m.selected, m.liked = nil, nil
		m.state = tasks.SyncState{}
		m.progress = tasks.ProgressUpdate{}
		m.result = nil
		m.err = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) selectItem(item playlistItem) {
	if item.liked {
		m.selected = nil
		m.liked = item.playlist.Tracks
		return
	}
	m.selected = []models.Playlist{item.playlist}
	m.liked = nil
}

func (m *Model) startSync() tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.state = tasks.SyncState{}
	m.progress = tasks.ProgressUpdate{}

	states := make(chan tasks.SyncState, 64)
	updates := make(chan tasks.ProgressUpdate, 64)
	done := make(chan syncResult, 1)
	m.states, m.updates, m.done = states, updates, done

	progress := func(s tasks.SyncState) {
		select {
		case states <- s:
		default:
		}
	}

	playlists, liked, run := m.selected, m.liked, m.run
	go func() {
		state, err := run(ctx, playlists, liked, progress, updates)
		done <- syncResult{state: state, err: err}
	}()

	return tea.Batch(m.spinner.Tick, m.waitForProgress())
}

// waitForProgress blocks for the next state, phase event or completion of the running sync.
func (m *Model) waitForProgress() tea.Cmd {
	states, updates, done := m.states, m.updates, m.done
	if done == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case s := <-states:
			return stateUpdateMsg(s)
		case u := <-updates:
			return progressUpdateMsg(u)
		case r := <-done:
			return syncCompleteMsg(r.state, r.err)
		}
	}
}

func (m *Model) renderPlaylistList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.all, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.playlists.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderConfirm() string {
	var target string
	switch {
	case len(m.selected) == 1 && m.liked == nil:
		target = fmt.Sprintf("'%s'", m.selected[0].Name)
	case len(m.selected) == 0:
		target = tasks.LikedPlaylistName
	default:
		target = fmt.Sprintf("%d playlists", len(m.selected))
	}

	tracks := len(m.liked)
	for _, pl := range m.selected {
		tracks += len(pl.Tracks)
	}

	title := styles.title.Render(fmt.Sprintf("Sync %s to %s?", target, m.destination))
	info := fmt.Sprintf("Playlists: %d\nLiked tracks: %d\nTotal tracks: %d\n", len(m.selected), len(m.liked), tracks)
	helpKeys := []key.Binding{m.keys.yes, m.keys.no}

	return fmt.Sprintf("%s\n%s\n%s", title, info, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderSync() string {
	var b strings.Builder

	b.WriteString(styles.title.Render(fmt.Sprintf("Syncing to %s", m.destination)))
	b.WriteString("\n")

	current := m.state.CurrentPlaylist
	if current == "" {
		current = "Preparing..."
	}
	fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), current)
	if m.progress.Message != "" {
		b.WriteString(styles.muted.Render(m.progress.Message))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(styles.Counts(len(m.state.Added), len(m.state.Failed)))
	b.WriteString("\n")

	if failed := m.state.Failed; len(failed) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.warn.Render("Recent failures:"))
		for _, t := range failed[max(0, len(failed)-recentFailures):] {
			fmt.Fprintf(&b, "\n  • %s", t.String())
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.cancelling {
		b.WriteString(styles.warn.Render("Cancelling..."))
	} else {
		b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.cancel}))
	}
	return b.String()
}

func (m *Model) renderResult() string {
	var b strings.Builder

	if m.err != nil {
		b.WriteString(styles.failed.Render(fmt.Sprintf("Sync stopped: %v", m.err)))
	} else {
		b.WriteString(styles.added.Render("✓ Sync Complete!"))
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Destination: %s\n", m.destination)
	b.WriteString(styles.Counts(len(m.state.Added), len(m.state.Failed)))
	b.WriteString("\n")

	if failed := m.state.Failed; len(failed) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.warn.Render(fmt.Sprintf("Failed to sync %d tracks:", len(failed))))
		for _, t := range failed[:min(len(failed), resultFailures)] {
			fmt.Fprintf(&b, "\n  • %s", t.String())
		}
		if extra := len(failed) - resultFailures; extra > 0 {
			fmt.Fprintf(&b, "\n  ... and %d more", extra)
		}
		b.WriteString("\n")
	}

	helpKeys := []key.Binding{m.keys.restart, m.keys.quit}
	fmt.Fprintf(&b, "\n%s", m.help.ShortHelpView(helpKeys))
	return b.String()
}
