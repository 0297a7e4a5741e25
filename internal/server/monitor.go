package server

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/musync/internal/shared"
	"github.com/desertthunder/musync/internal/tasks"
)

// DefaultLogCapacity is the number of log lines retained by a [Monitor].
const DefaultLogCapacity = 1000

// Status is the JSON shape returned by the status endpoint.
type Status struct {
	IsRunning       bool     `json:"is_running"`
	CurrentTask     *string  `json:"current_task"`
	CurrentPlaylist *string  `json:"current_playlist"`
	Added           int      `json:"added"`
	Failed          int      `json:"failed"`
	Logs            []string `json:"logs"`
}

// Monitor is the run-scoped view of background work shared with the HTTP handlers.
//
// At most one run is active at a time. The reconciler reports into it through [Monitor.Progress] and
// loggers write into its log ring through [Monitor.Write].
type Monitor struct {
	mu       sync.RWMutex
	running  bool
	task     string
	state    tasks.SyncState
	cancel   context.CancelFunc
	lines    []string
	start    int
	capacity int
	partial  []byte
	now      func() time.Time
}

// NewMonitor creates a Monitor retaining up to capacity log lines.
func NewMonitor(capacity int) *Monitor {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &Monitor{capacity: capacity, now: time.Now}
}

// Begin marks a run as started, clearing the previous run's state and logs.
//
// Returns [shared.ErrRunInProgress] if another run is active. The returned context is cancelled by
// [Monitor.Cancel] or [Monitor.End].
func (m *Monitor) Begin(parent context.Context, task string) (context.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil, fmt.Errorf("%w: %s", shared.ErrRunInProgress, m.task)
	}

	ctx, cancel := context.WithCancel(parent)
	m.running = true
	m.task = task
	m.cancel = cancel
	m.state = tasks.SyncState{}
	m.clearLocked()
	m.appendLocked("Starting: " + task)
	return ctx, nil
}

// End marks the active run as finished and records its outcome in the log.
func (m *Monitor) End(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	if err != nil {
		m.appendLocked("Error: " + err.Error())
	} else {
		m.appendLocked("Completed: " + m.task)
	}
	m.appendLocked(fmt.Sprintf("Added: %d | Failed: %d", len(m.state.Added), len(m.state.Failed)))

	m.cancel()
	m.running = false
	m.task = ""
	m.cancel = nil
}

// Cancel requests cancellation of the active run. It reports whether a run was active.
func (m *Monitor) Cancel() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return false
	}
	m.cancel()
	m.appendLocked("Cancelling: " + m.task)
	return true
}

// Progress records the latest run state. It satisfies [tasks.ProgressFunc].
func (m *Monitor) Progress(s tasks.SyncState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.CurrentPlaylist != "" && s.CurrentPlaylist != m.state.CurrentPlaylist {
		m.appendLocked("Processing: " + s.CurrentPlaylist)
	}
	m.state = s
}

// Status returns the current run status with the most recent tail log lines.
func (m *Monitor) Status(tail int) Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Status{
		IsRunning: m.running,
		Added:     len(m.state.Added),
		Failed:    len(m.state.Failed),
		Logs:      m.logsLocked(tail),
	}
	if m.running {
		task := m.task
		st.CurrentTask = &task
	}
	if m.state.CurrentPlaylist != "" {
		pl := m.state.CurrentPlaylist
		st.CurrentPlaylist = &pl
	}
	return st
}

// State returns the last reported run state.
func (m *Monitor) State() tasks.SyncState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Running reports whether a run is active.
func (m *Monitor) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Logs returns up to n of the most recent log lines, oldest first. n <= 0 returns all of them.
func (m *Monitor) Logs(n int) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.logsLocked(n)
}

// Logf appends a timestamped line to the log ring.
func (m *Monitor) Logf(format string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLocked(fmt.Sprintf(format, args...))
}

// ClearLogs drops every retained log line.
func (m *Monitor) ClearLogs() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked()
}

// Write implements [io.Writer], storing each complete line verbatim.
//
// Incomplete trailing lines are held until the next write.
func (m *Monitor) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data := append(m.partial, p...)
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		if line := bytes.TrimRight(data[:i], "\r"); len(line) > 0 {
			m.pushLocked(string(line))
		}
		data = data[i+1:]
	}
	m.partial = append(m.partial[:0:0], data...)
	return len(p), nil
}

func (m *Monitor) appendLocked(msg string) {
	m.pushLocked(fmt.Sprintf("[%s] %s", m.now().Format("15:04:05"), msg))
}

func (m *Monitor) pushLocked(line string) {
	if len(m.lines) < m.capacity {
		m.lines = append(m.lines, line)
		return
	}
	m.lines[m.start] = line
	m.start = (m.start + 1) % m.capacity
}

func (m *Monitor) logsLocked(n int) []string {
	total := len(m.lines)
	if n <= 0 || n > total {
		n = total
	}

	out := make([]string, 0, n)
	for i := total - n; i < total; i++ {
		out = append(out, m.lines[(m.start+i)%total])
	}
	return out
}

func (m *Monitor) clearLocked() {
	m.lines = nil
	m.start = 0
	m.partial = nil
}
