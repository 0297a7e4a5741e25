package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/musync/internal/limiter"
	"github.com/desertthunder/musync/internal/matching"
	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/services"
	"github.com/desertthunder/musync/internal/shared"
	"golang.org/x/time/rate"
)

const fallbackWriteCap = 50

// Policy holds the per-destination reconciliation settings.
type Policy struct {
	Threshold       float64       // Minimum score for a candidate to be accepted
	BatchSize       int           // Tracks per concurrently resolved chunk
	Workers         int           // Concurrent searches per chunk
	MaxCalls        int           // Search calls allowed per Window
	Window          time.Duration // Sliding window for MaxCalls
	WriteCap        int           // Items per add call (capped by the destination's own limit)
	WritesPerSecond float64       // Pace of add/like calls; <= 0 disables pacing
}

// SpotifyPolicy is the default policy when Spotify is the destination.
func SpotifyPolicy() Policy {
	return Policy{
		Threshold:       80,
		BatchSize:       20,
		Workers:         5,
		MaxCalls:        100,
		Window:          30 * time.Second,
		WriteCap:        100,
		WritesPerSecond: 5,
	}
}

// YouTubePolicy is the default policy when YouTube Music is the destination.
func YouTubePolicy() Policy {
	return Policy{
		Threshold:       75,
		BatchSize:       15,
		Workers:         4,
		MaxCalls:        60,
		Window:          60 * time.Second,
		WriteCap:        50,
		WritesPerSecond: 2,
	}
}

// Validate rejects a policy the engine cannot honor.
//
// Unresolved tracks carry a zero score, so only a positive threshold keeps "has a candidate" equivalent to
// "score reached the threshold".
func (p Policy) Validate() error {
	if p.Threshold <= 0 {
		return fmt.Errorf("%w: threshold must be positive, got %v", shared.ErrInvalidInput, p.Threshold)
	}
	return nil
}

// ProgressFunc receives a copy of the run state after every processed track and at playlist boundaries.
//
// It is invoked synchronously from the goroutine that called [Reconciler.Reconcile].
type ProgressFunc func(SyncState)

// Reconciler applies a source snapshot to a live [services.Destination].
//
// A Reconciler owns its [SyncState]; it is not safe for concurrent runs.
type Reconciler struct {
	dest          services.Destination
	policy        Policy
	state         *SyncState
	batch         *BatchProcessor
	searchLimiter Waiter
	writes        *rate.Limiter
	score         ScoreFunc
	logger        *log.Logger
	progress      ProgressFunc
	updates       chan<- ProgressUpdate
}

// ReconcilerOption configures a [Reconciler].
type ReconcilerOption func(*Reconciler)

// WithLogger sets the logger used by the reconciler and its batch processor.
func WithLogger(l *log.Logger) ReconcilerOption {
	return func(r *Reconciler) { r.logger = l }
}

// WithProgress registers a callback for state snapshots.
func WithProgress(fn ProgressFunc) ReconcilerOption {
	return func(r *Reconciler) { r.progress = fn }
}

// WithUpdates registers a channel for [ProgressUpdate] events. Sends never block.
func WithUpdates(ch chan<- ProgressUpdate) ReconcilerOption {
	return func(r *Reconciler) { r.updates = ch }
}

// WithScorer replaces [matching.ScoreTrack].
func WithScorer(fn ScoreFunc) ReconcilerOption {
	return func(r *Reconciler) { r.score = fn }
}

// WithSearchLimiter replaces the sliding-window limiter built from the policy.
func WithSearchLimiter(w Waiter) ReconcilerOption {
	return func(r *Reconciler) { r.searchLimiter = w }
}

// NewReconciler creates a reconciler for dest.
func NewReconciler(dest services.Destination, policy Policy, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		dest:   dest,
		policy: policy,
		state:  NewSyncState(),
		score:  matching.ScoreTrack,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = shared.NewLogger(nil)
	}
	r.logger = shared.WithLogger(r.logger, "destination", dest.Name())

	if r.searchLimiter == nil {
		r.searchLimiter = limiter.New(policy.MaxCalls, policy.Window)
	}

	limit := rate.Inf
	if policy.WritesPerSecond > 0 {
		limit = rate.Limit(policy.WritesPerSecond)
	}
	r.writes = rate.NewLimiter(limit, 1)
	r.batch = NewBatchProcessor(policy.BatchSize, policy.Workers, r.searchLimiter, r.logger)
	return r
}

// State returns a copy of the current run state.
func (r *Reconciler) State() SyncState {
	return r.state.Snapshot()
}

// Reconcile resets the state and reconciles every playlist, then the liked tracks.
//
// Per-track, per-write and per-playlist failures are recorded in the state and never stop the run.
// Listing destination playlists is required; its failure aborts the run. On cancellation the state
// gathered so far is returned with ctx.Err().
func (r *Reconciler) Reconcile(ctx context.Context, playlists []models.Playlist, liked []models.Track) (*SyncState, error) {
	if err := r.begin(); err != nil {
		return r.state, err
	}

	index, err := r.playlistIndex(ctx)
	if err != nil {
		return r.state, err
	}

	for i, pl := range playlists {
		if err := ctx.Err(); err != nil {
			return r.state, err
		}
		sendProgress(r.updates, resolvePlaylistUpdate(i+1, len(playlists), pl.Name))
		if err := r.reconcilePlaylist(ctx, pl, index); err != nil {
			return r.state, err
		}
	}

	if len(liked) > 0 {
		if err := r.reconcileLiked(ctx, liked); err != nil {
			return r.state, err
		}
	}
	return r.finish(), nil
}

// ReconcileLiked runs a liked-only reconciliation: it resets the state, likes every matched track not
// already liked on the destination and finishes like [Reconciler.Reconcile]. Destination playlists are
// never listed.
func (r *Reconciler) ReconcileLiked(ctx context.Context, liked []models.Track) (*SyncState, error) {
	if err := r.begin(); err != nil {
		return r.state, err
	}
	if err := r.reconcileLiked(ctx, liked); err != nil {
		return r.state, err
	}
	return r.finish(), nil
}

func (r *Reconciler) begin() error {
	r.state.Reset()
	if err := r.policy.Validate(); err != nil {
		return err
	}
	r.publish()
	return nil
}

func (r *Reconciler) finish() *SyncState {
	r.state.CurrentPlaylist = ""
	r.publish()

	snap := r.state.Snapshot()
	sendProgress(r.updates, completeUpdate(snap))
	r.logger.Info("reconciliation complete", "added", len(snap.Added), "failed", len(snap.Failed))
	return r.state
}

func (r *Reconciler) reconcileLiked(ctx context.Context, liked []models.Track) error {
	logger := shared.WithLogger(r.logger, "playlist", LikedPlaylistName)

	r.state.CurrentPlaylist = LikedPlaylistName
	r.publish()
	sendProgress(r.updates, syncLikedUpdate(len(liked)))

	ids, err := r.dest.ListLiked(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logger.Error("could not fetch liked items", "error", err)
		r.failAll(liked)
		return nil
	}

	return r.drain(ctx, logger, liked, toSet(ids), func(ctx context.Context, buf *writeBuffer) error {
		return r.flushLiked(ctx, logger, buf)
	})
}

func (r *Reconciler) playlistIndex(ctx context.Context) (map[string]string, error) {
	sendProgress(r.updates, fetchDestUpdate(r.dest.Name()))

	refs, err := r.dest.ListPlaylists(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s playlists: %w", r.dest.Name(), err)
	}

	index := make(map[string]string, len(refs))
	for _, ref := range refs {
		if _, ok := index[ref.Name]; !ok {
			index[ref.Name] = ref.ID
		}
	}
	return index, nil
}

// reconcilePlaylist returns an error only when ctx is done.
func (r *Reconciler) reconcilePlaylist(ctx context.Context, pl models.Playlist, index map[string]string) error {
	logger := shared.WithLogger(r.logger, "playlist", pl.Name)

	id, present, err := r.locate(ctx, pl.Name, index)

	r.state.CurrentPlaylist = pl.Name
	r.publish()

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logger.Error("could not prepare destination playlist", "error", err)
		r.failAll(pl.Tracks)
		return nil
	}

	return r.drain(ctx, logger, pl.Tracks, present, func(ctx context.Context, buf *writeBuffer) error {
		return r.flushItems(ctx, logger, id, pl.Name, buf)
	})
}

// locate finds the destination playlist by exact name, creating it when absent, and returns its membership set.
func (r *Reconciler) locate(ctx context.Context, name string, index map[string]string) (string, map[string]bool, error) {
	if id, ok := index[name]; ok {
		ids, err := r.dest.ListMembership(ctx, id)
		if err != nil {
			return "", nil, fmt.Errorf("list membership of %q: %w", name, err)
		}
		return id, toSet(ids), nil
	}

	id, err := r.dest.CreatePlaylist(ctx, name)
	if err != nil {
		return "", nil, fmt.Errorf("create playlist %q: %w", name, err)
	}
	index[name] = id
	r.logger.Info("created playlist", "playlist", name, "id", id)
	return id, map[string]bool{}, nil
}

// drain consumes match results in order, queueing new items and flushing whenever the buffer reaches the write cap.
//
// present is the membership fetched from the destination; it is never extended during the run.
func (r *Reconciler) drain(
	ctx context.Context,
	logger *log.Logger,
	tracks []models.Track,
	present map[string]bool,
	flush func(context.Context, *writeBuffer) error,
) error {
	capacity := r.writeCap()
	buf := newWriteBuffer()

	step := 0
	for res := range r.batch.Resolve(ctx, tracks, r.dest.Search, r.score, r.policy.Threshold) {
		if ctx.Err() != nil {
			break
		}
		step++

		r.record(logger, res, present, buf)
		sendProgress(r.updates, matchUpdate(step, len(tracks), res, r.state.Snapshot()))

		if buf.Len() >= capacity {
			if err := flush(ctx, buf); err != nil {
				return err
			}
			buf.reset()
		}
	}

	if err := ctx.Err(); err != nil {
		r.abandon(buf, buf.entries)
		return err
	}
	return flush(ctx, buf)
}

// record sorts one result into the state. Repeats of an item already handled in this container follow the
// first occurrence: they share its write and its outcome.
func (r *Reconciler) record(logger *log.Logger, res models.MatchResult, present map[string]bool, buf *writeBuffer) {
	defer r.publish()

	if !res.Matched() {
		logger.Debug("no acceptable match", "track", res.Track.String(), "score", res.Score, "error", res.Err)
		r.state.markFailed(res.Track)
		return
	}

	id := res.Candidate.PlatformID
	if present[id] {
		logger.Debug("already present", "track", res.Track.String(), "id", id)
		r.state.markFailed(res.Track)
		return
	}

	if buf.outcome(id) == writeFailed {
		logger.Debug("earlier write of this item failed", "track", res.Track.String(), "id", id)
		r.state.markFailed(res.Track)
		return
	}

	r.state.markAdded(res.Track)
	buf.queue(id, len(r.state.Added)-1)
}

// flushItems appends the buffered ids to a playlist in one call. A failed call demotes the queued tracks and the
// run continues.
func (r *Reconciler) flushItems(ctx context.Context, logger *log.Logger, playlistID, name string, buf *writeBuffer) error {
	ids := buf.ids
	if len(ids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		r.abandon(buf, buf.entries)
		return err
	}

	if err := r.writes.Wait(ctx); err != nil {
		r.abandon(buf, buf.entries)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logger.Error("write pacing failed", "count", len(ids), "error", err)
		return nil
	}

	sendProgress(r.updates, writeItemsUpdate(len(ids), name))
	if err := r.dest.AddItems(ctx, playlistID, ids); err != nil {
		r.abandon(buf, buf.entries)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logger.Error("failed to add tracks", "count", len(ids), "error", fmt.Errorf("%w: %v", shared.ErrWriteFailed, err))
		sendProgress(r.updates, writeFailedUpdate(len(ids), name, err))
		return nil
	}

	buf.commit(ids...)
	logger.Info("added tracks", "count", len(ids))
	return nil
}

// flushLiked likes each buffered id individually; only the tracks whose call failed are demoted.
func (r *Reconciler) flushLiked(ctx context.Context, logger *log.Logger, buf *writeBuffer) error {
	if len(buf.ids) == 0 {
		return nil
	}

	failed := make(map[string]bool)
	for _, id := range buf.ids {
		if ctx.Err() != nil {
			failed[id] = true
			continue
		}

		err := r.writes.Wait(ctx)
		if err == nil {
			err = r.dest.AddLikedItem(ctx, id)
		}
		if err != nil {
			if ctx.Err() == nil {
				logger.Error("failed to like track", "id", id, "error", fmt.Errorf("%w: %v", shared.ErrWriteFailed, err))
			}
			failed[id] = true
			continue
		}
		buf.commit(id)
	}

	if len(failed) > 0 {
		var lost []pendingWrite
		for _, e := range buf.entries {
			if failed[e.id] {
				lost = append(lost, e)
			}
		}
		r.abandon(buf, lost)
	}
	logger.Info("liked tracks", "count", len(buf.ids)-len(failed), "failed", len(failed))
	return ctx.Err()
}

// abandon moves the tracks behind entries from Added to Failed and marks their ids as failed.
func (r *Reconciler) abandon(buf *writeBuffer, entries []pendingWrite) {
	if len(entries) == 0 {
		return
	}

	positions := make([]int, len(entries))
	for i, e := range entries {
		positions[i] = e.pos
		buf.fail(e.id)
	}
	r.state.demote(positions)
	r.publish()
}

func (r *Reconciler) failAll(tracks []models.Track) {
	for _, t := range tracks {
		r.state.markFailed(t)
	}
	r.publish()
}

func (r *Reconciler) publish() {
	if r.progress != nil {
		r.progress(r.state.Snapshot())
	}
}

func (r *Reconciler) writeCap() int {
	capacity := r.policy.WriteCap
	if d := r.dest.WriteCap(); d > 0 && (capacity <= 0 || d < capacity) {
		capacity = d
	}
	if capacity <= 0 {
		capacity = fallbackWriteCap
	}
	return capacity
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
