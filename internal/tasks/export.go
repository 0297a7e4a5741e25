package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/services"
	"github.com/desertthunder/musync/internal/shared"
	"golang.org/x/time/rate"
)

// ExportOpts contains configuration for snapshot exports.
type ExportOpts struct {
	OutputDir  string  // Snapshot directory (default: export_{epoch})
	NumWorkers int     // Concurrent workers (default: 5, max 10)
	RateLimit  float64 // Playlist fetches per second (default: 5)
	SkipLiked  bool    // Do not export liked tracks
}

// ExportFailure records a playlist that could not be fetched.
type ExportFailure struct {
	PlaylistID   string
	PlaylistName string
	Error        error
}

// ExportResult summarizes a snapshot export.
type ExportResult struct {
	Snapshot  *models.Snapshot
	OutputDir string
	Failures  []ExportFailure
}

type exportJob struct {
	index int
	ref   models.PlaylistRef
}

type exportOutcome struct {
	index  int
	ref    models.PlaylistRef
	tracks []models.Track
	err    error
}

// Exporter builds snapshots from a [services.Source].
type Exporter struct {
	source services.Source
	logger *log.Logger
}

// NewExporter creates an exporter for src; a nil logger writes to stderr.
func NewExporter(src services.Source, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Exporter{source: src, logger: shared.WithLogger(logger, "source", src.Name())}
}

// Export fetches every playlist and the liked tracks concurrently with rate limiting and writes the snapshot.
//
// Playlists keep the source's listing order. A playlist that fails to load is reported in
// [ExportResult.Failures] and left out of the snapshot; failing to list playlists aborts the export.
func (e *Exporter) Export(ctx context.Context, prog chan<- ProgressUpdate, opts ExportOpts) (*ExportResult, error) {
	if e.source == nil {
		return nil, fmt.Errorf("%w: source not initialized", shared.ErrServiceUnavailable)
	}

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	sendProgress(prog, fetchPlaylistsUpdate(e.source.Name()))
	refs, err := e.source.ListPlaylists(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s playlists: %w", e.source.Name(), err)
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan exportJob, len(refs))
	results := make(chan exportOutcome, len(refs))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, limiter, jobs, results)
	}

	for i, ref := range refs {
		jobs <- exportJob{index: i, ref: ref}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]*models.Playlist, len(refs))
	result := &ExportResult{OutputDir: opts.OutputDir}

	completed := 0
	for res := range results {
		completed++
		if res.err != nil {
			e.logger.Warn("playlist export failed", "playlist", res.ref.Name, "error", res.err)
			result.Failures = append(result.Failures, ExportFailure{
				PlaylistID:   res.ref.ID,
				PlaylistName: res.ref.Name,
				Error:        res.err,
			})
			sendProgress(prog, exportFailedUpdate(completed, len(refs), res.ref.Name, res.err))
			continue
		}
		ordered[res.index] = &models.Playlist{Name: res.ref.Name, Tracks: res.tracks}
		sendProgress(prog, exportCompletedUpdate(completed, len(refs), res.ref.Name, len(res.tracks)))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := &models.Snapshot{Playlists: make([]models.Playlist, 0, len(refs))}
	for _, pl := range ordered {
		if pl != nil {
			snap.Playlists = append(snap.Playlists, *pl)
		}
	}

	if !opts.SkipLiked {
		sendProgress(prog, fetchLikedUpdate(e.source.Name()))
		liked, err := e.source.LikedTracks(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch %s liked tracks: %w", e.source.Name(), err)
		}
		snap.Liked = liked
	}

	if err := models.WriteSnapshot(opts.OutputDir, snap); err != nil {
		return nil, fmt.Errorf("write snapshot: %w", err)
	}

	result.Snapshot = snap
	sendProgress(prog, writeSnapshotUpdate(opts.OutputDir, snap))
	e.logger.Info("export complete",
		"playlists", len(snap.Playlists), "liked", len(snap.Liked), "failed", len(result.Failures), "dir", opts.OutputDir)
	return result, nil
}

// exportWorker fetches playlist tracks from the jobs channel.
func (e *Exporter) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan exportJob,
	results chan<- exportOutcome,
) {
	defer wg.Done()

	for job := range jobs {
		out := exportOutcome{index: job.index, ref: job.ref}

		if err := limiter.Wait(ctx); err != nil {
			out.err = err
			results <- out
			continue
		}

		out.tracks, out.err = e.source.PlaylistTracks(ctx, job.ref.ID)
		results <- out
	}
}
