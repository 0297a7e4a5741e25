// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles setup operations for configuration and the run history database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write an example config.toml to the --config path",
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize the run history database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Revert the most recent migration",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// exportCommand builds a snapshot from a live library.
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Export playlists and liked tracks from spotify or youtube into a snapshot",
		ArgsUsage: "<spotify|youtube>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "service"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Snapshot directory (default: sync.snapshot_dir)",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent playlist fetches",
				Value: 4,
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Playlist fetches per second",
				Value: 5,
			},
			&cli.BoolFlag{
				Name:  "skip-liked",
				Usage: "Do not export liked tracks",
			},
		},
		Action: r.Export,
	}
}

func syncFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "snapshot",
			Aliases: []string{"s"},
			Usage:   "Snapshot directory (default: sync.snapshot_dir)",
		},
		&cli.StringFlag{
			Name:     "to",
			Aliases:  []string{"t"},
			Usage:    "Destination service (spotify or youtube)",
			Required: true,
		},
		&cli.BoolFlag{
			Name:  "tui",
			Usage: "Select playlists and follow progress in the terminal UI",
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write a run report to this file or directory",
		},
		&cli.StringFlag{
			Name:  "format",
			Usage: "Report format (text, markdown, csv, json)",
			Value: "text",
		},
	}
}

func playlistFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:  "playlist",
		Usage: "Only sync the snapshot playlist with this name (repeatable)",
	}
}

// syncCommand reconciles a snapshot into a destination.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Reconcile a snapshot into a destination service",
		Commands: []*cli.Command{
			{
				Name:   "playlists",
				Usage:  "Sync snapshot playlists",
				Flags:  append(syncFlags(), playlistFlag()),
				Action: r.SyncPlaylists,
			},
			{
				Name:   "liked",
				Usage:  "Sync snapshot liked tracks",
				Flags:  syncFlags(),
				Action: r.SyncLiked,
			},
			{
				Name:   "all",
				Usage:  "Sync playlists, then liked tracks",
				Flags:  append(syncFlags(), playlistFlag()),
				Action: r.SyncAll,
			},
		},
	}
}

// serveCommand starts the status API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the status API and accept background sync requests",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (default: server.host)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (default: server.port)",
			},
		},
		Action: r.Serve,
	}
}

// historyCommand lists recorded runs.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recent sync and export runs",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of runs to show",
				Value:   20,
			},
			&cli.StringFlag{
				Name:  "id",
				Usage: "Show one run with its failed tracks",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Format for --id (text, markdown, csv, json)",
				Value: "text",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.History,
	}
}
