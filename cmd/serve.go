package main

import (
	"context"
	"io"
	"net"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/server"
	"github.com/desertthunder/musync/internal/shared"
	"github.com/desertthunder/musync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Serve runs the status API until the command context is cancelled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	host := cmd.String("host")
	if host == "" {
		host = r.config.Server.Host
	}
	port := cmd.Int("port")
	if port == 0 {
		port = r.config.Server.Port
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	monitor := server.NewMonitor(server.DefaultLogCapacity)
	logger := shared.NewLogger(io.MultiWriter(os.Stderr, monitor))

	router := r.apiRouter(ctx, monitor, logger)

	r.writePlainln("Serving status API on http://%s", addr)
	return server.Serve(ctx, addr, router, logger)
}

func (r *Runner) apiRouter(ctx context.Context, monitor *server.Monitor, logger *log.Logger) *server.BasicRouter {
	router := server.NewBasicRouter()
	router.Use(server.CORS(), server.Logging(logger))
	server.NewAPI(ctx, monitor, r.serverTasks(logger), logger).Register(router)
	return router
}

// serverTasks registers an import and an export task for every service.
//
// Imports reconcile the configured snapshot into the service; exports overwrite it.
func (r *Runner) serverTasks(logger *log.Logger) map[string]server.Task {
	registry := map[string]server.Task{}
	for _, name := range []string{spotifyName, youtubeName} {
		registry[server.TaskKey("import", name)] = server.Task{
			Name: "import " + name,
			Ready: func() error {
				_, err := r.destination(context.Background(), name)
				return err
			},
			Run: func(ctx context.Context, progress tasks.ProgressFunc) error {
				snap, err := models.LoadSnapshot(r.snapshotDir(""))
				if err != nil {
					return err
				}
				_, _, err = r.reconcile(ctx, "sync "+string(syncAll), name, snap.Playlists, snap.Liked, logger, tasks.WithProgress(progress))
				return err
			},
		}

		registry[server.TaskKey("export", name)] = server.Task{
			Name: "export " + name,
			Ready: func() error {
				_, err := r.source(context.Background(), name)
				return err
			},
			Run: func(ctx context.Context, _ tasks.ProgressFunc) error {
				_, _, err := r.export(ctx, name, tasks.ExportOpts{OutputDir: r.snapshotDir("")}, logger, nil)
				return err
			},
		}
	}
	return registry
}
