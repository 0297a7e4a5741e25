package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/server"
	"github.com/desertthunder/musync/internal/services"
	"github.com/desertthunder/musync/internal/shared"
	"github.com/desertthunder/musync/internal/tasks"
	tu "github.com/desertthunder/musync/internal/testing"
	"github.com/urfave/cli/v3"
)

var (
	brightside = models.Track{Name: "Mr. Brightside", Artists: []string{"The Killers"}}
	teardrop   = models.Track{Name: "Teardrop", Artists: []string{"Massive Attack"}}
	unknown    = models.Track{Name: "Obscure B-Side", Artists: []string{"Nobody"}}
)

// testConfig points the run store at an in-memory database and the snapshot at dir.
func testConfig(dir string) *shared.Config {
	config := shared.DefaultConfig()
	config.Database.Path = ":memory:"
	config.Sync.SnapshotDir = dir
	return config
}

func writeTestSnapshot(t *testing.T, dir string) {
	t.Helper()
	snap := &models.Snapshot{
		Playlists: []models.Playlist{{Name: "Roadtrip", Tracks: []models.Track{brightside, unknown}}},
		Liked:     []models.Track{teardrop},
	}
	if err := models.WriteSnapshot(dir, snap); err != nil {
		t.Fatalf("failed to write snapshot: %v", err)
	}
}

func testDestination() *tu.MockDestination {
	dest := tu.NewMockDestination()
	dest.Catalog[brightside.Name] = []models.Candidate{{Name: brightside.Name, Artists: brightside.Artists, PlatformID: "spotify:track:1"}}
	dest.Catalog[teardrop.Name] = []models.Candidate{{Name: teardrop.Name, Artists: teardrop.Artists, PlatformID: "spotify:track:2"}}
	return dest
}

func newTestRunner(t *testing.T, dest *tu.MockDestination) (*Runner, *bytes.Buffer, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "snapshot")
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config:       testConfig(dir),
		Logger:       shared.NewLogger(io.Discard),
		Output:       output,
		Destinations: map[string]services.Destination{spotifyName: dest},
	})
	t.Cleanup(func() { runner.Close() })
	return runner, output, dir
}

// run executes args against a root command holding the runner's commands.
func run(ctx context.Context, r *Runner, args ...string) error {
	app := &cli.Command{Name: "musync", Commands: r.register()}
	return app.Run(ctx, append([]string{"musync"}, args...))
}

func listRuns(t *testing.T, r *Runner) []*models.Run {
	t.Helper()
	store, err := r.runStore()
	if err != nil {
		t.Fatalf("runStore() error = %v", err)
	}
	runs, err := store.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	return runs
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			dest := tu.NewMockDestination()
			src := &tu.MockSource{ServiceName: "mock"}

			runner := NewRunner(RunnerOpts{
				Config:       config,
				ConfigPath:   "/test/path/config.toml",
				Logger:       logger,
				Output:       output,
				Sources:      map[string]services.Source{youtubeName: src},
				Destinations: map[string]services.Destination{spotifyName: dest},
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
			if runner.destinations[spotifyName] != dest {
				t.Error("expected spotify destination to be set")
			}
			if runner.sources[youtubeName] != src {
				t.Error("expected youtube source to be set")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.configPath != "config.toml" {
				t.Errorf("expected default configPath, got %s", runner.configPath)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writeJSON(map[string]string{"key": "value"}, true)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if result := output.String(); result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result := output.String(); result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("writePlainln surrounds text with newlines", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlainln("done"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result := output.String(); result != "\ndone\n" {
				t.Errorf("expected newline-wrapped text, got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		want := []string{"setup", "export", "sync", "serve", "history"}
		if len(commands) != len(want) {
			t.Fatalf("expected %d commands, got %d", len(want), len(commands))
		}
		for i, cmd := range commands {
			if cmd == nil || cmd.Name != want[i] {
				t.Errorf("command %d = %v, want %s", i, cmd, want[i])
			}
		}
	})
}

func TestServiceName(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr error
	}{
		{input: "spotify", want: spotifyName},
		{input: " Spotify ", want: spotifyName},
		{input: "ytmusic", want: youtubeName},
		{input: "yt", want: youtubeName},
		{input: "youtube", want: youtubeName},
		{input: "", wantErr: shared.ErrMissingArgument},
		{input: "tidal", wantErr: shared.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := serviceName(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("serviceName(%q) = %q, %v; want %q", tt.input, got, err, tt.want)
			}
		})
	}
}

func TestPolicies(t *testing.T) {
	t.Run("defaults survive zero config values", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Sync.Spotify = shared.PolicyConfig{}
		runner := NewRunner(RunnerOpts{Config: config})

		if got, want := runner.policy(spotifyName), tasks.SpotifyPolicy(); got != want {
			t.Errorf("policy() = %+v, want %+v", got, want)
		}
	})

	t.Run("configured values override defaults", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Sync.YouTube = shared.PolicyConfig{Threshold: 90, WindowSeconds: 10, WriteCap: 25}
		runner := NewRunner(RunnerOpts{Config: config})

		got := runner.policy(youtubeName)
		if got.Threshold != 90 || got.Window != 10*time.Second || got.WriteCap != 25 {
			t.Errorf("unexpected policy %+v", got)
		}
		if got.Workers != tasks.YouTubePolicy().Workers {
			t.Errorf("expected default workers, got %d", got.Workers)
		}
	})

	t.Run("retry policy", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Sync.Retry = shared.RetryConfig{MaxAttempts: 5, InitialBackoffMS: 100}
		runner := NewRunner(RunnerOpts{Config: config})

		got := runner.retryPolicy()
		if got.MaxAttempts != 5 || got.InitialBackoff != 100*time.Millisecond {
			t.Errorf("unexpected retry policy %+v", got)
		}
		if got.MaxBackoff != services.DefaultRetryPolicy().MaxBackoff {
			t.Errorf("expected default max backoff, got %v", got.MaxBackoff)
		}
	})
}

func TestRunStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want models.RunStatus
	}{
		{name: "success", err: nil, want: models.RunCompleted},
		{name: "cancelled", err: context.Canceled, want: models.RunCancelled},
		{name: "wrapped cancel", err: errors.Join(errors.New("stopped"), context.Canceled), want: models.RunCancelled},
		{name: "failure", err: errors.New("boom"), want: models.RunFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := runStatus(tt.err); got != tt.want {
				t.Errorf("runStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	load := func(t *testing.T, args ...string) (*Runner, error) {
		t.Helper()
		runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard)})
		app := &cli.Command{
			Name: "musync",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "config", Value: "config.toml"},
				&cli.StringFlag{Name: "env-file", Value: ".env"},
				&cli.BoolFlag{Name: "verbose"},
			},
			Before: runner.Load,
			Action: func(context.Context, *cli.Command) error { return nil },
		}
		return runner, app.Run(context.Background(), append([]string{"musync"}, args...))
	}

	t.Run("reads config and env overrides", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "config.toml")
		envPath := filepath.Join(dir, ".env")

		if err := os.WriteFile(configPath, []byte("[server]\nport = 4000\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(envPath, []byte("MUSYNC_PROXY_URL=http://proxy.test:9000\n"), 0644); err != nil {
			t.Fatal(err)
		}
		t.Setenv("MUSYNC_PROXY_URL", "")
		os.Unsetenv("MUSYNC_PROXY_URL")

		runner, err := load(t, "--config", configPath, "--env-file", envPath)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if runner.config.Server.Port != 4000 {
			t.Errorf("expected port 4000, got %d", runner.config.Server.Port)
		}
		if runner.config.Credentials.YouTube.ProxyURL != "http://proxy.test:9000" {
			t.Errorf("expected proxy from env file, got %s", runner.config.Credentials.YouTube.ProxyURL)
		}
		if runner.configPath != configPath {
			t.Errorf("expected configPath %s, got %s", configPath, runner.configPath)
		}
	})

	t.Run("missing config falls back to defaults", func(t *testing.T) {
		dir := t.TempDir()
		runner, err := load(t, "--config", filepath.Join(dir, "absent.toml"), "--env-file", filepath.Join(dir, "absent.env"))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if runner.config.Server.Port != shared.DefaultConfig().Server.Port {
			t.Errorf("expected default port, got %d", runner.config.Server.Port)
		}
	})

	t.Run("invalid config is an error", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[server\nport = "), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := load(t, "--config", configPath)
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestSetup(t *testing.T) {
	t.Run("config writes the example file once", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		runner := NewRunner(RunnerOpts{ConfigPath: configPath, Output: &bytes.Buffer{}, Logger: shared.NewLogger(io.Discard)})

		if err := run(context.Background(), runner, "setup", "config"); err != nil {
			t.Fatalf("setup config error = %v", err)
		}
		if !strings.Contains(tu.MustReadFile(t, configPath), "[sync.spotify]") {
			t.Error("expected the example config to be written")
		}
		if err := run(context.Background(), runner, "setup", "config"); err == nil {
			t.Error("expected an error when the config already exists")
		}
	})

	t.Run("database runs migrations", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "musync.db")
		config := shared.DefaultConfig()
		config.Database.Path = dbPath
		runner := NewRunner(RunnerOpts{Config: config, Output: &bytes.Buffer{}, Logger: shared.NewLogger(io.Discard)})
		defer runner.Close()

		if err := run(context.Background(), runner, "setup", "database"); err != nil {
			t.Fatalf("setup database error = %v", err)
		}
		tu.AssertFileExists(t, dbPath)
	})

	t.Run("database rollback reverts the latest migration", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "musync.db")
		config := shared.DefaultConfig()
		config.Database.Path = dbPath
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Config: config, Output: output, Logger: shared.NewLogger(io.Discard)})
		defer runner.Close()

		if err := run(context.Background(), runner, "setup", "database"); err != nil {
			t.Fatalf("setup database error = %v", err)
		}
		if !strings.Contains(output.String(), "schema version 0000") {
			t.Errorf("expected the schema version to be printed, got %q", output.String())
		}

		if err := run(context.Background(), runner, "setup", "database", "--rollback"); err != nil {
			t.Fatalf("setup database --rollback error = %v", err)
		}
		if !strings.Contains(output.String(), "Rolled back 0000_create_sync_runs") {
			t.Errorf("expected the rolled back migration to be printed, got %q", output.String())
		}

		db, err := runner.database()
		if err != nil {
			t.Fatalf("database() error = %v", err)
		}
		if version, _ := shared.SchemaVersion(db); version != -1 {
			t.Errorf("expected an empty schema after rollback, got version %d", version)
		}
		if err := run(context.Background(), runner, "setup", "database", "--rollback"); !errors.Is(err, shared.ErrNothingApplied) {
			t.Errorf("expected ErrNothingApplied, got %v", err)
		}
	})
}

func TestSync(t *testing.T) {
	t.Run("playlists are reconciled and recorded", func(t *testing.T) {
		dest := testDestination()
		runner, output, dir := newTestRunner(t, dest)
		writeTestSnapshot(t, dir)

		if err := run(context.Background(), runner, "sync", "playlists", "--to", "spotify"); err != nil {
			t.Fatalf("sync playlists error = %v", err)
		}

		if dest.AddedCount() != 1 {
			t.Errorf("expected 1 item written, got %d", dest.AddedCount())
		}
		if len(dest.LikeCalls) != 0 {
			t.Errorf("playlist sync must not like tracks, got %v", dest.LikeCalls)
		}

		out := output.String()
		for _, want := range []string{"Sync Complete!", "Added: 1", "Failed: 1", "Obscure B-Side"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, out)
			}
		}

		runs := listRuns(t, runner)
		if len(runs) != 1 {
			t.Fatalf("expected 1 recorded run, got %d", len(runs))
		}
		if runs[0].Task != "sync playlists" || runs[0].Status != models.RunCompleted || runs[0].Added != 1 || runs[0].Failed != 1 {
			t.Errorf("unexpected run %+v", runs[0])
		}
	})

	t.Run("liked only does not list destination playlists", func(t *testing.T) {
		dest := testDestination()
		dest.ListPlaylistsErr = errors.New("must not be called")
		runner, _, dir := newTestRunner(t, dest)
		writeTestSnapshot(t, dir)

		if err := run(context.Background(), runner, "sync", "liked", "--to", "spotify"); err != nil {
			t.Fatalf("sync liked error = %v", err)
		}
		if len(dest.LikeCalls) != 1 || dest.LikeCalls[0] != "spotify:track:2" {
			t.Errorf("expected one like for Teardrop, got %v", dest.LikeCalls)
		}

		runs := listRuns(t, runner)
		if len(runs) != 1 || runs[0].Status != models.RunCompleted || runs[0].Added != 1 {
			t.Errorf("expected a completed liked run, got %+v", runs)
		}
	})

	t.Run("playlist flag selects snapshot playlists", func(t *testing.T) {
		dest := testDestination()
		runner, _, dir := newTestRunner(t, dest)
		snap := &models.Snapshot{Playlists: []models.Playlist{
			{Name: "Roadtrip", Tracks: []models.Track{brightside}},
			{Name: "Late Night", Tracks: []models.Track{teardrop}},
		}}
		if err := models.WriteSnapshot(dir, snap); err != nil {
			t.Fatal(err)
		}

		if err := run(context.Background(), runner, "sync", "playlists", "--to", "spotify", "--playlist", "Late Night"); err != nil {
			t.Fatalf("sync playlists error = %v", err)
		}
		if len(dest.Created) != 1 || dest.Created[0] != "Late Night" {
			t.Errorf("expected only Late Night to be synced, got %v", dest.Created)
		}

		err := run(context.Background(), runner, "sync", "playlists", "--to", "spotify", "--playlist", "Missing")
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("all writes a report", func(t *testing.T) {
		dest := testDestination()
		runner, output, dir := newTestRunner(t, dest)
		writeTestSnapshot(t, dir)
		reportDir := t.TempDir()

		err := run(context.Background(), runner, "sync", "all", "--to", "spotify", "--report", reportDir, "--format", "csv")
		if err != nil {
			t.Fatalf("sync all error = %v", err)
		}

		matches, _ := filepath.Glob(filepath.Join(reportDir, "report_*.csv"))
		if len(matches) != 1 {
			t.Fatalf("expected one CSV report, got %v", matches)
		}
		report := tu.MustReadFile(t, matches[0])
		if !strings.Contains(report, "added,Teardrop,Massive Attack") {
			t.Errorf("expected Teardrop in report, got:\n%s", report)
		}
		if !strings.Contains(output.String(), "Report written to") {
			t.Error("expected the report path to be printed")
		}
	})

	t.Run("destination listing failure is recorded as failed", func(t *testing.T) {
		dest := testDestination()
		dest.ListPlaylistsErr = errors.New("unauthorized")
		runner, _, dir := newTestRunner(t, dest)
		writeTestSnapshot(t, dir)

		err := run(context.Background(), runner, "sync", "playlists", "--to", "spotify")
		if !errors.Is(err, dest.ListPlaylistsErr) {
			t.Fatalf("expected listing error, got %v", err)
		}

		runs := listRuns(t, runner)
		if len(runs) != 1 || runs[0].Status != models.RunFailed || !strings.Contains(runs[0].Error, "unauthorized") {
			t.Errorf("expected a failed run, got %+v", runs)
		}
	})

	t.Run("argument errors", func(t *testing.T) {
		tests := []struct {
			name    string
			args    []string
			wantErr error
		}{
			{name: "unknown destination", args: []string{"sync", "all", "--to", "tidal"}, wantErr: shared.ErrInvalidArgument},
			{name: "unknown format", args: []string{"sync", "all", "--to", "spotify", "--format", "xml"}, wantErr: shared.ErrInvalidArgument},
			{name: "missing snapshot", args: []string{"sync", "all", "--to", "spotify", "--snapshot", "/nonexistent/snapshot"}, wantErr: os.ErrNotExist},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				runner, _, _ := newTestRunner(t, testDestination())
				if err := run(context.Background(), runner, tt.args...); !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
			})
		}
	})

	t.Run("empty snapshot is a no-op", func(t *testing.T) {
		dest := testDestination()
		runner, output, dir := newTestRunner(t, dest)
		if err := models.WriteSnapshot(dir, &models.Snapshot{}); err != nil {
			t.Fatal(err)
		}

		if err := run(context.Background(), runner, "sync", "all", "--to", "spotify"); err != nil {
			t.Fatalf("sync all error = %v", err)
		}
		if !strings.Contains(output.String(), "Nothing to sync") {
			t.Errorf("expected a nothing-to-sync message, got %q", output.String())
		}
		if len(listRuns(t, runner)) != 0 {
			t.Error("expected no recorded run")
		}
	})
}

func TestExport(t *testing.T) {
	src := &tu.MockSource{
		ServiceName: "mock",
		Playlists:   []models.PlaylistRef{{ID: "p1", Name: "Roadtrip"}, {ID: "p2", Name: "Broken"}},
		Tracks:      map[string][]models.Track{"p1": {brightside}},
		TrackErrs:   map[string]error{"p2": errors.New("playlist unavailable")},
		Liked:       []models.Track{teardrop},
	}

	dir := filepath.Join(t.TempDir(), "export")
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config:  testConfig(dir),
		Logger:  shared.NewLogger(io.Discard),
		Output:  output,
		Sources: map[string]services.Source{youtubeName: src},
	})
	defer runner.Close()

	if err := run(context.Background(), runner, "export", "ytmusic", "--rate", "1000"); err != nil {
		t.Fatalf("export error = %v", err)
	}

	tu.AssertDirExists(t, dir)
	snap, err := models.LoadSnapshot(dir)
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if len(snap.Playlists) != 1 || len(snap.Liked) != 1 {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	out := output.String()
	for _, want := range []string{"Export Complete!", "Total tracks: 2", "Broken: playlist unavailable"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}

	runs := listRuns(t, runner)
	if len(runs) != 1 || runs[0].Task != "export" || runs[0].Destination != youtubeName || runs[0].Added != 2 || runs[0].Failed != 1 {
		t.Errorf("unexpected export run %+v", runs)
	}
}

func TestHistory(t *testing.T) {
	dest := testDestination()
	runner, output, dir := newTestRunner(t, dest)
	writeTestSnapshot(t, dir)

	if err := run(context.Background(), runner, "sync", "playlists", "--to", "spotify"); err != nil {
		t.Fatalf("sync error = %v", err)
	}
	id := listRuns(t, runner)[0].ID

	t.Run("table", func(t *testing.T) {
		output.Reset()
		if err := run(context.Background(), runner, "history"); err != nil {
			t.Fatalf("history error = %v", err)
		}
		out := output.String()
		if !strings.Contains(out, "sync playlists") || !strings.Contains(out, id[:8]) {
			t.Errorf("expected the run in the table, got:\n%s", out)
		}
	})

	t.Run("json", func(t *testing.T) {
		output.Reset()
		if err := run(context.Background(), runner, "history", "--json"); err != nil {
			t.Fatalf("history --json error = %v", err)
		}
		var runs []models.Run
		if err := json.Unmarshal(output.Bytes(), &runs); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(runs) != 1 || runs[0].ID != id {
			t.Errorf("unexpected runs %+v", runs)
		}
	})

	t.Run("single run lists failures", func(t *testing.T) {
		output.Reset()
		if err := run(context.Background(), runner, "history", "--id", id); err != nil {
			t.Fatalf("history --id error = %v", err)
		}
		if !strings.Contains(output.String(), "Obscure B-Side") {
			t.Errorf("expected the failed track, got:\n%s", output.String())
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		err := run(context.Background(), runner, "history", "--id", "missing")
		if !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})
}

func TestServe(t *testing.T) {
	t.Run("registry covers both directions for both services", func(t *testing.T) {
		runner, _, _ := newTestRunner(t, testDestination())
		registry := runner.serverTasks(shared.NewLogger(io.Discard))

		for _, key := range []string{"import/spotify", "export/spotify", "import/youtube", "export/youtube"} {
			if _, ok := registry[key]; !ok {
				t.Errorf("missing task %s", key)
			}
		}
	})

	t.Run("import task reports progress", func(t *testing.T) {
		dest := testDestination()
		runner, _, dir := newTestRunner(t, dest)
		writeTestSnapshot(t, dir)

		task := runner.serverTasks(shared.NewLogger(io.Discard))[server.TaskKey("import", "spotify")]
		if err := task.Ready(); err != nil {
			t.Fatalf("Ready() error = %v", err)
		}

		var calls int
		if err := task.Run(context.Background(), func(tasks.SyncState) { calls++ }); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if calls == 0 {
			t.Error("expected progress callbacks")
		}
		if dest.AddedCount() != 1 || len(dest.LikeCalls) != 1 {
			t.Errorf("expected one playlist item and one like, got %d/%d", dest.AddedCount(), len(dest.LikeCalls))
		}
	})

	t.Run("api starts a background import", func(t *testing.T) {
		dest := testDestination()
		runner, _, dir := newTestRunner(t, dest)
		writeTestSnapshot(t, dir)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		monitor := server.NewMonitor(server.DefaultLogCapacity)
		srv := httptest.NewServer(runner.apiRouter(ctx, monitor, shared.NewLogger(io.Discard)))
		defer srv.Close()

		resp, err := http.Post(srv.URL+"/api/sync/import/spotify", "application/json", nil)
		if err != nil {
			t.Fatalf("POST error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("expected 202, got %d", resp.StatusCode)
		}

		deadline := time.Now().Add(5 * time.Second)
		for monitor.Running() {
			if time.Now().After(deadline) {
				t.Fatal("background import did not finish")
			}
			time.Sleep(10 * time.Millisecond)
		}

		status := monitor.Status(10)
		if status.Added != 2 || status.Failed != 1 {
			t.Errorf("expected 2 added / 1 failed, got %d/%d", status.Added, status.Failed)
		}
		if len(listRuns(t, runner)) != 1 {
			t.Error("expected the background run to be recorded")
		}
	})
}
