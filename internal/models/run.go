package models

import "time"

// RunStatus is the lifecycle state of a recorded sync or export run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Run is one recorded invocation of a reconcile or export task.
//
// Failures is only populated when a run is loaded individually.
type Run struct {
	ID          string     `json:"id"`
	Task        string     `json:"task"`
	Destination string     `json:"destination"`
	Status      RunStatus  `json:"status"`
	Added       int        `json:"added"`
	Failed      int        `json:"failed"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Failures    []Track    `json:"failures,omitempty"`
}

// Duration returns how long the run took, or zero while it is still running.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Finished reports whether the run has reached a terminal status.
func (r *Run) Finished() bool {
	return r.Status != RunRunning && r.Status != ""
}
