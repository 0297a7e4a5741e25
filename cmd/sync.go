package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/musync/internal/formatter"
	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/shared"
	"github.com/desertthunder/musync/internal/tasks"
	"github.com/desertthunder/musync/internal/ui"
	"github.com/urfave/cli/v3"
)

// tuiLogPath receives log output while the terminal UI owns the screen.
const tuiLogPath = "./tmp/musync-tui.log"

type syncMode string

const (
	syncPlaylists syncMode = "playlists"
	syncLiked     syncMode = "liked"
	syncAll       syncMode = "all"
)

// SyncPlaylists reconciles snapshot playlists into the --to service.
func (r *Runner) SyncPlaylists(ctx context.Context, cmd *cli.Command) error {
	return r.sync(ctx, cmd, syncPlaylists)
}

// SyncLiked reconciles snapshot liked tracks into the --to service.
func (r *Runner) SyncLiked(ctx context.Context, cmd *cli.Command) error {
	return r.sync(ctx, cmd, syncLiked)
}

// SyncAll reconciles playlists, then liked tracks.
func (r *Runner) SyncAll(ctx context.Context, cmd *cli.Command) error {
	return r.sync(ctx, cmd, syncAll)
}

func (r *Runner) sync(ctx context.Context, cmd *cli.Command, mode syncMode) error {
	dest, err := serviceName(cmd.String("to"))
	if err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	dir := r.snapshotDir(cmd.String("snapshot"))
	snap, err := loadSnapshot(dir, mode)
	if err != nil {
		return err
	}
	if names := cmd.StringSlice("playlist"); len(names) > 0 {
		if snap.Playlists, err = selectPlaylists(snap.Playlists, names); err != nil {
			return err
		}
	}
	r.logger.Debug("snapshot loaded", "dir", dir, "playlists", len(snap.Playlists), "liked", len(snap.Liked))

	if snap.TrackCount() == 0 {
		r.writePlain("Nothing to sync: %s has no tracks.\n", dir)
		return nil
	}

	var (
		run   *models.Run
		state *tasks.SyncState
	)
	if cmd.Bool("tui") {
		run, state, err = r.syncTUI(ctx, dest, mode, snap)
	} else {
		run, state, err = r.syncConsole(ctx, dest, mode, snap)
	}
	if run == nil {
		return err
	}

	report := &formatter.Report{Run: run}
	if state != nil {
		report.Added = state.Added
		report.Failed = state.Failed
	}

	if !cmd.Bool("tui") {
		r.writeSummary(report)
	}

	if path := cmd.String("report"); path != "" {
		written, werr := formatter.WriteReport(report, format, path)
		if werr != nil {
			r.logger.Error("failed to write report", "error", werr)
		} else {
			r.writePlain("Report written to %s\n", written)
		}
	}

	return err
}

func loadSnapshot(dir string, mode syncMode) (*models.Snapshot, error) {
	switch mode {
	case syncPlaylists:
		playlists, err := models.LoadPlaylists(filepath.Join(dir, models.PlaylistsFile))
		if err != nil {
			return nil, err
		}
		return &models.Snapshot{Playlists: playlists}, nil
	case syncLiked:
		liked, err := models.LoadLiked(filepath.Join(dir, models.LikedFile))
		if err != nil {
			return nil, err
		}
		return &models.Snapshot{Liked: liked}, nil
	default:
		return models.LoadSnapshot(dir)
	}
}

// syncConsole runs the reconciliation with line-oriented progress on the output writer.
func (r *Runner) syncConsole(ctx context.Context, dest string, mode syncMode, snap *models.Snapshot) (*models.Run, *tasks.SyncState, error) {
	r.logger.Info("starting sync", "mode", mode, "destination", dest)
	r.writePlain("Syncing %d playlists and %d liked tracks into %s...\n\n", len(snap.Playlists), len(snap.Liked), dest)

	updates := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range updates {
			r.printUpdate(update)
		}
	}()

	run, state, err := r.reconcile(ctx, "sync "+string(mode), dest, snap.Playlists, snap.Liked, r.logger, tasks.WithUpdates(updates))
	close(updates)
	<-done
	return run, state, err
}

func (r *Runner) printUpdate(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.FetchDest, tasks.FetchPlaylists, tasks.FetchLiked:
		r.writePlain("📥 %s\n", update.Message)
	case tasks.ResolvePlaylist:
		r.writePlain("\n📝 %s\n", update.Message)
	case tasks.SyncLiked:
		r.writePlain("\n❤ %s\n", update.Message)
	case tasks.MatchTracks, tasks.WriteItems, tasks.ExportPlaylist:
		r.writePlain("   %s\n", update.Message)
	case tasks.WriteSnapshot:
		r.writePlain("\n💾 %s\n", update.Message)
	}
}

// syncTUI lets the user pick playlists and follow the run in the terminal UI.
func (r *Runner) syncTUI(ctx context.Context, dest string, mode syncMode, snap *models.Snapshot) (*models.Run, *tasks.SyncState, error) {
	fileLogger, f, err := shared.NewFileLogger(tuiLogPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create file logger: %w", err)
	}
	defer f.Close()

	var (
		mu   sync.Mutex
		last *models.Run
	)
	run := func(ctx context.Context, playlists []models.Playlist, liked []models.Track, progress tasks.ProgressFunc, updates chan<- tasks.ProgressUpdate) (*tasks.SyncState, error) {
		rec, state, err := r.reconcile(ctx, "sync "+string(mode), dest, playlists, liked, fileLogger,
			tasks.WithProgress(progress), tasks.WithUpdates(updates))
		if rec != nil {
			mu.Lock()
			last = rec
			mu.Unlock()
		}
		return state, err
	}

	model := ui.NewModel(ctx, dest, snap, run)
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return nil, nil, fmt.Errorf("error running TUI: %w", err)
	}

	state, err := model.Result()
	mu.Lock()
	defer mu.Unlock()
	return last, state, err
}

// reconcile runs one recorded reconciliation of playlists and liked tracks into dest.
func (r *Runner) reconcile(
	ctx context.Context,
	task, dest string,
	playlists []models.Playlist,
	liked []models.Track,
	logger *log.Logger,
	opts ...tasks.ReconcilerOption,
) (*models.Run, *tasks.SyncState, error) {
	target, err := r.destination(ctx, dest)
	if err != nil {
		return nil, nil, err
	}

	run := &models.Run{Task: task, Destination: dest, StartedAt: time.Now().UTC()}
	recorded := r.startRun(run)

	opts = append([]tasks.ReconcilerOption{tasks.WithLogger(logger)}, opts...)
	rec := tasks.NewReconciler(target, r.policy(dest), opts...)

	state, err := runReconciler(ctx, rec, playlists, liked)
	if state != nil {
		run.Added = len(state.Added)
		run.Failed = len(state.Failed)
		run.Failures = state.Failed
	}
	r.finishRun(run, err, recorded)
	return run, state, err
}

// runReconciler skips the destination playlist listing when only liked tracks are requested.
func runReconciler(ctx context.Context, rec *tasks.Reconciler, playlists []models.Playlist, liked []models.Track) (*tasks.SyncState, error) {
	if len(playlists) > 0 {
		return rec.Reconcile(ctx, playlists, liked)
	}
	return rec.ReconcileLiked(ctx, liked)
}

// selectPlaylists keeps the snapshot playlists named by --playlist, in snapshot order.
func selectPlaylists(playlists []models.Playlist, names []string) ([]models.Playlist, error) {
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}

	var selected []models.Playlist
	for _, pl := range playlists {
		if wanted[pl.Name] {
			selected = append(selected, pl)
			delete(wanted, pl.Name)
		}
	}

	for _, name := range names {
		if wanted[name] {
			return nil, fmt.Errorf("%w: %q is not in the snapshot", shared.ErrPlaylistNotFound, name)
		}
	}
	return selected, nil
}

func (r *Runner) writeSummary(report *formatter.Report) {
	r.writePlain("\n")
	r.writePlainHeader("Sync Complete!")

	text, err := formatter.ToText(report)
	if err != nil {
		r.logger.Error("failed to render summary", "error", err)
		return
	}
	r.writePlain("%s", text)
}
