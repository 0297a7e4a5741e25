// Package server provides HTTP routing, middleware and the status API for background sync runs.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first). [Logging] and [CORS] are provided.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering, so path
// wildcards such as {service} are available through [http.Request.PathValue].
//
// # Monitor
//
// [Monitor] is the run-scoped state shared by the API and the running task. It holds whether a run
// is active, the last [tasks.SyncState] reported by the reconciler and a bounded ring of log lines.
// It implements [io.Writer] so a logger can write straight into the ring.
//
// # Status API
//
// [API] registers:
//   - GET /api/health
//   - GET /api/status : running flag, task, current playlist, counts and the last 50 log lines
//   - GET /api/auth/status : per-service readiness
//   - GET /api/logs, POST /api/logs/clear
//   - POST /api/sync/{direction}/{service} : start a registered [Task] in the background (409 while one runs)
//   - POST /api/sync/cancel
package server
