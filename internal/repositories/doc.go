// Package repositories implements SQLite persistence for run history.
//
// Key Implementations:
//   - [RunRepository] : sync and export runs with their failed tracks
//
// Runs are keyed by UUID and ordered by start time. Failed tracks live in a child table and are
// replaced wholesale when a run finishes, so a run's failure list always matches its final state.
package repositories
