package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/musync/internal/shared"
	"github.com/desertthunder/musync/internal/tasks"
)

// statusLogTail is the number of log lines included in a status response.
const statusLogTail = 50

// TaskFunc runs one background task, reporting reconciliation progress through progress.
type TaskFunc func(ctx context.Context, progress tasks.ProgressFunc) error

// Task is a background job that can be started over HTTP.
//
// Ready, when set, is consulted before starting; an error means the service is not authenticated.
type Task struct {
	Name  string
	Run   TaskFunc
	Ready func() error
}

// TaskKey builds the registry key for a direction ("import" or "export") and a service name.
func TaskKey(direction, service string) string {
	return strings.ToLower(direction) + "/" + canonicalService(service)
}

// API serves the status, log and task endpoints backed by a [Monitor].
type API struct {
	monitor *Monitor
	tasks   map[string]Task
	logger  *log.Logger
	base    context.Context
}

// NewAPI creates an API. Background runs derive their context from base, so cancelling base stops them.
func NewAPI(base context.Context, monitor *Monitor, registry map[string]Task, logger *log.Logger) *API {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if base == nil {
		base = context.Background()
	}
	return &API{monitor: monitor, tasks: registry, logger: logger, base: base}
}

// Register adds every endpoint to r.
func (a *API) Register(r Router) {
	r.Handle(http.MethodGet, "/api/health", http.HandlerFunc(a.health))
	r.Handle(http.MethodGet, "/api/status", http.HandlerFunc(a.status))
	r.Handle(http.MethodGet, "/api/auth/status", http.HandlerFunc(a.authStatus))
	r.Handle(http.MethodGet, "/api/logs", http.HandlerFunc(a.logs))
	r.Handle(http.MethodPost, "/api/logs/clear", http.HandlerFunc(a.clearLogs))
	r.Handle(http.MethodPost, "/api/sync/cancel", http.HandlerFunc(a.cancel))
	r.Handle(http.MethodPost, "/api/sync/{direction}/{service}", http.HandlerFunc(a.startTask))
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "musync API is running"})
}

func (a *API) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.monitor.Status(statusLogTail))
}

func (a *API) authStatus(w http.ResponseWriter, _ *http.Request) {
	out := map[string]bool{}
	for key, task := range a.tasks {
		_, service, _ := strings.Cut(key, "/")
		ready := task.Ready == nil || task.Ready() == nil
		if prev, seen := out[service]; seen {
			ready = prev && ready
		}
		out[service] = ready
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) logs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"logs": a.monitor.Logs(0)})
}

func (a *API) clearLogs(w http.ResponseWriter, _ *http.Request) {
	a.monitor.ClearLogs()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) cancel(w http.ResponseWriter, _ *http.Request) {
	if !a.monitor.Cancel() {
		writeError(w, http.StatusConflict, "no sync task is running")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

func (a *API) startTask(w http.ResponseWriter, r *http.Request) {
	key := TaskKey(r.PathValue("direction"), r.PathValue("service"))
	task, ok := a.tasks[key]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown task %q; available: %s", key, strings.Join(a.taskKeys(), ", ")))
		return
	}

	if task.Ready != nil {
		if err := task.Ready(); err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
	}

	ctx, err := a.monitor.Begin(a.base, task.Name)
	if errors.Is(err, shared.ErrRunInProgress) {
		writeError(w, http.StatusConflict, "a sync task is already running")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	go a.run(ctx, task)

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started", "task": task.Name})
}

func (a *API) run(ctx context.Context, task Task) {
	logger := shared.WithLogger(a.logger, "task", task.Name)
	logger.Info("starting background task")

	err := task.Run(ctx, a.monitor.Progress)
	if err != nil {
		logger.Error("background task failed", "error", err)
	} else {
		logger.Info("background task completed")
	}
	a.monitor.End(err)
}

func (a *API) taskKeys() []string {
	keys := make([]string, 0, len(a.tasks))
	for k := range a.tasks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// canonicalService maps accepted aliases onto the registry's service names.
func canonicalService(s string) string {
	switch s = strings.ToLower(s); s {
	case "ytmusic", "yt", "youtube-music", "youtubemusic":
		return "youtube"
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
