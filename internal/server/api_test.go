package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/shared"
	"github.com/desertthunder/musync/internal/tasks"
)

func newTestAPI(t *testing.T, registry map[string]Task) (*httptest.Server, *Monitor) {
	t.Helper()

	monitor := NewMonitor(100)
	router := NewBasicRouter()
	router.Use(CORS(), Logging(shared.NewLogger(io.Discard)))
	NewAPI(context.Background(), monitor, registry, shared.NewLogger(io.Discard)).Register(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, monitor
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func post(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp
}

func waitIdle(t *testing.T, m *Monitor) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for m.Running() {
		if time.Now().After(deadline) {
			t.Fatal("task did not finish")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAPI(t *testing.T) {
	t.Run("health", func(t *testing.T) {
		srv, _ := newTestAPI(t, nil)

		resp, err := http.Get(srv.URL + "/api/health")
		if err != nil {
			t.Fatalf("GET failed: %v", err)
		}
		var body map[string]string
		decode(t, resp, &body)

		if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
			t.Errorf("unexpected health response %d %v", resp.StatusCode, body)
		}
		if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
			t.Error("expected CORS header")
		}
	})

	t.Run("method filtering", func(t *testing.T) {
		srv, _ := newTestAPI(t, nil)

		resp := post(t, srv.URL+"/api/health")
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", resp.StatusCode)
		}

		req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/sync/import/spotify", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("OPTIONS failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Errorf("expected preflight 204, got %d", resp.StatusCode)
		}
	})

	t.Run("start task and report status", func(t *testing.T) {
		release := make(chan struct{})
		registry := map[string]Task{
			TaskKey("import", "spotify"): {
				Name: "Import to Spotify",
				Run: func(ctx context.Context, progress tasks.ProgressFunc) error {
					progress(tasks.SyncState{CurrentPlaylist: "Roadtrip", Added: make([]models.Track, 2), Failed: make([]models.Track, 1)})
					<-release
					return nil
				},
			},
		}
		srv, monitor := newTestAPI(t, registry)

		resp := post(t, srv.URL+"/api/sync/import/spotify")
		var started map[string]string
		decode(t, resp, &started)
		if resp.StatusCode != http.StatusAccepted || started["task"] != "Import to Spotify" {
			t.Fatalf("unexpected start response %d %v", resp.StatusCode, started)
		}

		resp = post(t, srv.URL+"/api/sync/import/spotify")
		resp.Body.Close()
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("expected 409 while running, got %d", resp.StatusCode)
		}

		deadline := time.Now().Add(2 * time.Second)
		var st Status
		for {
			resp, err := http.Get(srv.URL + "/api/status")
			if err != nil {
				t.Fatalf("GET status failed: %v", err)
			}
			decode(t, resp, &st)
			if st.Added == 2 || time.Now().After(deadline) {
				break
			}
			time.Sleep(5 * time.Millisecond)
		}

		if !st.IsRunning || st.CurrentPlaylist == nil || *st.CurrentPlaylist != "Roadtrip" || st.Failed != 1 {
			t.Errorf("unexpected status %+v", st)
		}

		close(release)
		waitIdle(t, monitor)

		resp, err := http.Get(srv.URL + "/api/logs")
		if err != nil {
			t.Fatalf("GET logs failed: %v", err)
		}
		var logs map[string][]string
		decode(t, resp, &logs)
		if !strings.Contains(strings.Join(logs["logs"], "\n"), "Completed: Import to Spotify") {
			t.Errorf("expected completion line, got %v", logs["logs"])
		}
	})

	t.Run("service aliases", func(t *testing.T) {
		done := make(chan struct{})
		registry := map[string]Task{
			TaskKey("export", "youtube"): {
				Name: "Export YouTube Music",
				Run: func(ctx context.Context, progress tasks.ProgressFunc) error {
					close(done)
					return nil
				},
			},
		}
		srv, monitor := newTestAPI(t, registry)

		resp := post(t, srv.URL+"/api/sync/export/ytmusic")
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("expected 202, got %d", resp.StatusCode)
		}
		<-done
		waitIdle(t, monitor)
	})

	t.Run("unknown task", func(t *testing.T) {
		srv, _ := newTestAPI(t, map[string]Task{})
		resp := post(t, srv.URL+"/api/sync/import/tidal")
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("unauthenticated task", func(t *testing.T) {
		registry := map[string]Task{
			TaskKey("import", "spotify"): {
				Name:  "Import to Spotify",
				Run:   func(context.Context, tasks.ProgressFunc) error { t.Error("must not run"); return nil },
				Ready: func() error { return shared.ErrNotAuthenticated },
			},
			TaskKey("export", "youtube"): {
				Name: "Export YouTube Music",
				Run:  func(context.Context, tasks.ProgressFunc) error { return nil },
			},
		}
		srv, _ := newTestAPI(t, registry)

		resp := post(t, srv.URL+"/api/sync/import/spotify")
		var body map[string]string
		decode(t, resp, &body)
		if resp.StatusCode != http.StatusUnauthorized || body["error"] == "" {
			t.Errorf("expected 401 with error, got %d %v", resp.StatusCode, body)
		}

		resp, err := http.Get(srv.URL + "/api/auth/status")
		if err != nil {
			t.Fatalf("GET auth status failed: %v", err)
		}
		var auth map[string]bool
		decode(t, resp, &auth)
		if auth["spotify"] || !auth["youtube"] {
			t.Errorf("unexpected auth status %v", auth)
		}
	})

	t.Run("cancel running task", func(t *testing.T) {
		registry := map[string]Task{
			TaskKey("import", "youtube"): {
				Name: "Import to YouTube Music",
				Run: func(ctx context.Context, progress tasks.ProgressFunc) error {
					<-ctx.Done()
					return ctx.Err()
				},
			},
		}
		srv, monitor := newTestAPI(t, registry)

		resp := post(t, srv.URL+"/api/sync/cancel")
		resp.Body.Close()
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("expected 409 with nothing running, got %d", resp.StatusCode)
		}

		resp = post(t, srv.URL+"/api/sync/import/youtube")
		resp.Body.Close()

		resp = post(t, srv.URL+"/api/sync/cancel")
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Errorf("expected 202, got %d", resp.StatusCode)
		}

		waitIdle(t, monitor)
		if logs := strings.Join(monitor.Logs(0), "\n"); !strings.Contains(logs, context.Canceled.Error()) {
			t.Errorf("expected cancellation in logs, got %q", logs)
		}
	})

	t.Run("clear logs", func(t *testing.T) {
		srv, monitor := newTestAPI(t, nil)
		monitor.Logf("something")

		resp := post(t, srv.URL+"/api/logs/clear")
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || len(monitor.Logs(0)) != 0 {
			t.Errorf("expected logs to be cleared, got %d %v", resp.StatusCode, monitor.Logs(0))
		}
	})
}

func TestServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)

	router := NewBasicRouter()
	NewAPI(ctx, NewMonitor(10), nil, shared.NewLogger(io.Discard)).Register(router)

	go func() { errs <- Serve(ctx, "127.0.0.1:0", router, shared.NewLogger(io.Discard)) }()
	cancel()

	select {
	case err := <-errs:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop after cancellation")
	}
}
