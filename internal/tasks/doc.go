// Package tasks implements the batch matching pipeline, destination reconciliation and snapshot export.
//
// # Batch Processing
//
// [BatchProcessor.Resolve] partitions tracks into chunks and searches each chunk with a bounded
// [errgroup.Group]. Every search first passes through a [Waiter] (normally a [limiter.SlidingWindow]).
// Results come back as an [iter.Seq] in input order, one chunk at a time, so callers can act on each
// result immediately. A failed search yields a zero-score result; it never aborts the chunk.
//
// # Reconciliation
//
// [Reconciler.Reconcile] walks the snapshot playlists, then the liked tracks:
//
//  1. Locate the destination playlist by exact name, creating it when missing, and fetch its membership
//  2. Resolve the playlist's tracks through the batch processor
//  3. Queue matched items that are not already present; everything else is recorded as failed
//  4. Flush the queue whenever it reaches the write cap, and once more at the end of the playlist
//
// Liked tracks follow the same steps against the destination's liked set and are written one like at a time.
// Write flushes are paced with a [rate.Limiter]. A failed flush moves its tracks from Added to Failed and the
// run continues. Running twice against an unchanged destination adds nothing the second time.
//
// # Progress Reporting
//
// [SyncState] is owned by the reconciler. A [ProgressFunc] receives a snapshot after every result and at each
// playlist boundary, always from the reconciling goroutine. [ProgressUpdate] events are additionally sent on
// an optional channel using select with default so a slow reader never blocks the run.
//
// # Export
//
// [Exporter.Export] fetches every playlist of a [services.Source] with a worker pool and writes
// playlists.json and liked.json.
package tasks
