package tasks

import (
	"context"
	"fmt"
	"iter"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/shared"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBatchSize = 20
	defaultWorkers   = 5
)

// SearchFunc is the destination search capability.
type SearchFunc func(ctx context.Context, track models.Track) ([]models.Candidate, error)

// ScoreFunc rates how likely a candidate is the same song as the track.
type ScoreFunc func(track models.Track, candidate models.Candidate) float64

// Waiter admits one outbound call, blocking until the rate budget allows it.
//
// [limiter.SlidingWindow] satisfies it.
type Waiter interface {
	Wait(ctx context.Context) error
}

// BatchProcessor resolves tracks to their best-scoring candidates concurrently.
//
// Tracks are partitioned into chunks of BatchSize; each chunk is searched by at most Workers goroutines
// and its results are yielded in input order before the next chunk starts.
type BatchProcessor struct {
	BatchSize int
	Workers   int
	Limiter   Waiter // optional
	Logger    *log.Logger
}

// NewBatchProcessor returns a processor with the given sizing; non-positive values fall back to 20 and 5.
func NewBatchProcessor(batchSize, workers int, limiter Waiter, logger *log.Logger) *BatchProcessor {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &BatchProcessor{BatchSize: batchSize, Workers: workers, Limiter: limiter, Logger: logger}
}

// Resolve returns a lazy sequence with exactly one [models.MatchResult] per track, in input order.
//
// Search failures never propagate: the track yields a zero-score result with Err set.
// The sequence can be ranged over once; later iterations yield nothing. Chunks are not started
// after ctx is done.
func (b *BatchProcessor) Resolve(
	ctx context.Context,
	tracks []models.Track,
	search SearchFunc,
	score ScoreFunc,
	threshold float64,
) iter.Seq[models.MatchResult] {
	var consumed atomic.Bool

	size := b.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	logger := b.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return func(yield func(models.MatchResult) bool) {
		if consumed.Swap(true) {
			return
		}

		for start := 0; start < len(tracks); start += size {
			if ctx.Err() != nil {
				return
			}

			end := min(start+size, len(tracks))
			for _, res := range b.resolveChunk(ctx, logger, tracks[start:end], search, score, threshold) {
				if !yield(res) {
					return
				}
			}
		}
	}
}

// resolveChunk searches every track of chunk concurrently and returns results indexed like chunk.
func (b *BatchProcessor) resolveChunk(
	ctx context.Context,
	logger *log.Logger,
	chunk []models.Track,
	search SearchFunc,
	score ScoreFunc,
	threshold float64,
) []models.MatchResult {
	workers := b.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	results := make([]models.MatchResult, len(chunk))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, track := range chunk {
		g.Go(func() error {
			results[i] = b.resolveOne(ctx, logger, track, search, score, threshold)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (b *BatchProcessor) resolveOne(
	ctx context.Context,
	logger *log.Logger,
	track models.Track,
	search SearchFunc,
	score ScoreFunc,
	threshold float64,
) models.MatchResult {
	res := models.MatchResult{Track: track}

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	if !track.Valid() {
		res.Err = fmt.Errorf("%w: track is missing a name or artists", shared.ErrInvalidInput)
		return res
	}

	if b.Limiter != nil {
		if err := b.Limiter.Wait(ctx); err != nil {
			res.Err = err
			return res
		}
	}

	candidates, err := search(ctx, track)
	if err != nil {
		logger.Warn("search failed", "track", track.String(), "error", err)
		res.Err = err
		return res
	}
	if len(candidates) == 0 {
		logger.Debug("no candidates", "track", track.String())
		return res
	}

	best, bestScore := candidates[0], score(track, candidates[0])
	for _, c := range candidates[1:] {
		if s := score(track, c); s > bestScore {
			best, bestScore = c, s
		}
	}

	res.Score = bestScore
	if bestScore >= threshold {
		res.Candidate = &best
	} else {
		logger.Debug("best candidate below threshold",
			"track", track.String(), "candidate", best.Name, "score", bestScore, "threshold", threshold)
	}
	return res
}
