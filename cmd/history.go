package main

import (
	"context"

	"github.com/desertthunder/musync/internal/formatter"
	"github.com/urfave/cli/v3"
)

// History lists recent runs, or shows one run with its failed tracks when --id is set.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	store, err := r.runStore()
	if err != nil {
		return err
	}

	if id := cmd.String("id"); id != "" {
		run, err := store.Get(id)
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return r.writeJSON(run, true)
		}

		format, err := formatter.ParseFormat(cmd.String("format"))
		if err != nil {
			return err
		}
		data, err := formatter.Render(&formatter.Report{Run: run, Failed: run.Failures}, format)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	}

	runs, err := store.List(cmd.Int("limit"))
	if err != nil {
		return err
	}
	r.logger.Debug("loaded run history", "count", len(runs))

	if cmd.Bool("json") {
		return r.writeJSON(runs, true)
	}
	return r.writePlain("%s", formatter.FormatRuns(runs))
}
