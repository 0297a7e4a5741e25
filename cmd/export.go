package main

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Export writes a snapshot of the named service's playlists and liked tracks.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	name, err := serviceName(cmd.StringArg("service"))
	if err != nil {
		return err
	}

	opts := tasks.ExportOpts{
		OutputDir:  r.snapshotDir(cmd.String("output")),
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate"),
		SkipLiked:  cmd.Bool("skip-liked"),
	}

	r.logger.Info("starting export", "service", name, "dir", opts.OutputDir)
	r.writePlain("Exporting %s library to %s...\n\n", name, opts.OutputDir)

	updates := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range updates {
			r.printUpdate(update)
		}
	}()

	_, result, err := r.export(ctx, name, opts, r.logger, updates)
	close(updates)
	<-done

	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Export Complete!")
	r.writePlain("Directory: %s\n", result.OutputDir)
	r.writePlain("Playlists: %d\n", len(result.Snapshot.Playlists))
	r.writePlain("Liked tracks: %d\n", len(result.Snapshot.Liked))
	r.writePlain("Total tracks: %d\n", result.Snapshot.TrackCount())

	if len(result.Failures) > 0 {
		r.writePlain("\nFailed to export %d playlists:\n", len(result.Failures))
		for _, f := range result.Failures {
			r.writePlain("  - %s: %v\n", f.PlaylistName, f.Error)
		}
	}
	return nil
}

// export runs one recorded export. Added counts exported tracks; Failed counts playlists that could not be fetched.
func (r *Runner) export(
	ctx context.Context,
	name string,
	opts tasks.ExportOpts,
	logger *log.Logger,
	updates chan<- tasks.ProgressUpdate,
) (*models.Run, *tasks.ExportResult, error) {
	src, err := r.source(ctx, name)
	if err != nil {
		return nil, nil, err
	}

	run := &models.Run{Task: "export", Destination: name, StartedAt: time.Now().UTC()}
	recorded := r.startRun(run)

	result, err := tasks.NewExporter(src, logger).Export(ctx, updates, opts)
	if result != nil {
		run.Added = result.Snapshot.TrackCount()
		run.Failed = len(result.Failures)
	}
	r.finishRun(run, err, recorded)
	return run, result, err
}
