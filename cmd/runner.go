package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/repositories"
	"github.com/desertthunder/musync/internal/services"
	"github.com/desertthunder/musync/internal/shared"
	"github.com/desertthunder/musync/internal/tasks"
	"github.com/urfave/cli/v3"
)

const (
	spotifyName = "spotify"
	youtubeName = "youtube"
)

// RunStore records sync and export runs.
type RunStore interface {
	Start(run *models.Run) error
	Finish(run *models.Run) error
	Get(id string) (*models.Run, error)
	List(limit int) ([]*models.Run, error)
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer

	mu           sync.Mutex
	sources      map[string]services.Source
	destinations map[string]services.Destination
	runs         RunStore
	db           *sql.DB
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Sources, Destinations and Runs replace the lazily built services and run store.
type RunnerOpts struct {
	Config       *shared.Config
	ConfigPath   string
	Logger       *log.Logger
	Output       io.Writer
	Sources      map[string]services.Source
	Destinations map[string]services.Destination
	Runs         RunStore
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = "config.toml"
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &Runner{
		config:       opts.Config,
		configPath:   opts.ConfigPath,
		logger:       opts.Logger,
		output:       opts.Output,
		sources:      map[string]services.Source{},
		destinations: map[string]services.Destination{},
		runs:         opts.Runs,
	}
	for name, src := range opts.Sources {
		r.sources[name] = src
	}
	for name, dest := range opts.Destinations {
		r.destinations[name] = dest
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, exportCommand, syncCommand, serveCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Load reads env files and the config file named by the root flags.
//
// A missing config file falls back to the embedded defaults.
func (r *Runner) Load(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	if err := shared.LoadEnvFiles(cmd.String("env-file")); err != nil {
		return ctx, err
	}

	r.configPath = cmd.String("config")
	config, err := shared.LoadConfig(r.configPath)
	switch {
	case errors.Is(err, shared.ErrMissingConfig):
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		config = shared.DefaultConfig()
	case err != nil:
		return ctx, err
	}

	config.ApplyEnv()
	r.config = config
	return ctx, nil
}

// Close releases the run store database.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	r.runs = nil
	return err
}

// serviceName canonicalizes a service argument.
func serviceName(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "spotify", "spot":
		return spotifyName, nil
	case "youtube", "yt", "ytmusic", "ytm":
		return youtubeName, nil
	case "":
		return "", fmt.Errorf("%w: service name", shared.ErrMissingArgument)
	default:
		return "", fmt.Errorf("%w: unknown service %q (want spotify or youtube)", shared.ErrInvalidArgument, name)
	}
}

// connect builds and authenticates the named service, caching it as both a source and a destination.
func (r *Runner) connect(ctx context.Context, name string) (services.Service, error) {
	var (
		svc   services.Service
		creds map[string]string
	)

	switch name {
	case spotifyName:
		creds = r.config.SpotifyCredentials()
		s, err := services.NewSpotifyService(creds)
		if err != nil {
			return nil, err
		}
		s.SetRetryPolicy(r.retryPolicy())
		svc = s
	case youtubeName:
		creds = r.config.YouTubeCredentials()
		y := services.NewYouTubeService(r.config.Credentials.YouTube.ProxyURL)
		y.SetRetryPolicy(r.retryPolicy())
		svc = y
	default:
		return nil, fmt.Errorf("%w: unknown service %q", shared.ErrInvalidArgument, name)
	}

	if err := svc.Authenticate(ctx, creds); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrNotAuthenticated, name, err)
	}

	r.sources[name] = svc
	r.destinations[name] = svc
	return svc, nil
}

func (r *Runner) source(ctx context.Context, name string) (services.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if src, ok := r.sources[name]; ok {
		return src, nil
	}
	return r.connect(ctx, name)
}

func (r *Runner) destination(ctx context.Context, name string) (services.Destination, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if dest, ok := r.destinations[name]; ok {
		return dest, nil
	}
	return r.connect(ctx, name)
}

// runStore opens the configured database on first use.
func (r *Runner) runStore() (RunStore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.runs != nil {
		return r.runs, nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, err
	}
	r.db = db
	r.runs = repositories.NewRunRepository(db)
	return r.runs, nil
}

// database returns the run history database, opening and migrating it on first use.
func (r *Runner) database() (*sql.DB, error) {
	if _, err := r.runStore(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil, fmt.Errorf("%w: run history is not backed by a database", shared.ErrInvalidConfig)
	}
	return r.db, nil
}

// startRun records run as running. History is best effort: failures are logged and the run proceeds unrecorded.
func (r *Runner) startRun(run *models.Run) bool {
	store, err := r.runStore()
	if err != nil {
		r.logger.Warn("run history unavailable", "error", err)
		return false
	}
	if err := store.Start(run); err != nil {
		r.logger.Warn("failed to record run", "task", run.Task, "error", err)
		return false
	}
	return true
}

// finishRun sets the terminal status of run and, when it was recorded, persists the outcome.
func (r *Runner) finishRun(run *models.Run, err error, recorded bool) {
	run.Status = runStatus(err)
	if err != nil {
		run.Error = err.Error()
	}

	if !recorded {
		now := time.Now().UTC()
		run.FinishedAt = &now
		return
	}

	store, serr := r.runStore()
	if serr != nil {
		return
	}
	if ferr := store.Finish(run); ferr != nil {
		r.logger.Warn("failed to finish run", "run", run.ID, "error", ferr)
	}
}

func runStatus(err error) models.RunStatus {
	switch {
	case err == nil:
		return models.RunCompleted
	case errors.Is(err, context.Canceled):
		return models.RunCancelled
	default:
		return models.RunFailed
	}
}

// policy returns the default policy for dest overlaid with configured values.
func (r *Runner) policy(dest string) tasks.Policy {
	switch dest {
	case spotifyName:
		return overlayPolicy(tasks.SpotifyPolicy(), r.config.Sync.Spotify)
	default:
		return overlayPolicy(tasks.YouTubePolicy(), r.config.Sync.YouTube)
	}
}

func overlayPolicy(p tasks.Policy, c shared.PolicyConfig) tasks.Policy {
	if c.Threshold > 0 {
		p.Threshold = c.Threshold
	}
	if c.BatchSize > 0 {
		p.BatchSize = c.BatchSize
	}
	if c.Workers > 0 {
		p.Workers = c.Workers
	}
	if c.MaxCalls > 0 {
		p.MaxCalls = c.MaxCalls
	}
	if c.WindowSeconds > 0 {
		p.Window = time.Duration(c.WindowSeconds) * time.Second
	}
	if c.WriteCap > 0 {
		p.WriteCap = c.WriteCap
	}
	if c.WritesPerSecond > 0 {
		p.WritesPerSecond = c.WritesPerSecond
	}
	return p
}

func (r *Runner) retryPolicy() services.RetryPolicy {
	p := services.DefaultRetryPolicy()
	c := r.config.Sync.Retry
	if c.MaxAttempts > 0 {
		p.MaxAttempts = c.MaxAttempts
	}
	if c.InitialBackoffMS > 0 {
		p.InitialBackoff = time.Duration(c.InitialBackoffMS) * time.Millisecond
	}
	if c.MaxBackoffMS > 0 {
		p.MaxBackoff = time.Duration(c.MaxBackoffMS) * time.Millisecond
	}
	return p
}

func (r *Runner) snapshotDir(flag string) string {
	if flag != "" {
		return flag
	}
	if r.config.Sync.SnapshotDir != "" {
		return r.config.Sync.SnapshotDir
	}
	return "snapshot"
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
