package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/shared"
	"github.com/desertthunder/musync/internal/tasks"
)

func fixedMonitor(capacity int) *Monitor {
	m := NewMonitor(capacity)
	m.now = func() time.Time { return time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC) }
	return m
}

func TestMonitor(t *testing.T) {
	t.Run("Begin rejects a second run", func(t *testing.T) {
		m := fixedMonitor(10)
		if _, err := m.Begin(context.Background(), "Import to Spotify"); err != nil {
			t.Fatalf("Begin() error = %v", err)
		}

		if _, err := m.Begin(context.Background(), "Export Spotify"); !errors.Is(err, shared.ErrRunInProgress) {
			t.Errorf("expected ErrRunInProgress, got %v", err)
		}

		m.End(nil)
		if _, err := m.Begin(context.Background(), "Export Spotify"); err != nil {
			t.Errorf("expected Begin to succeed after End, got %v", err)
		}
	})

	t.Run("Begin resets state and logs", func(t *testing.T) {
		m := fixedMonitor(10)
		m.Logf("old line")
		m.Progress(tasks.SyncState{CurrentPlaylist: "Old", Added: []models.Track{{Name: "x"}}})

		if _, err := m.Begin(context.Background(), "Import to Spotify"); err != nil {
			t.Fatalf("Begin() error = %v", err)
		}

		st := m.Status(0)
		if st.Added != 0 || st.CurrentPlaylist != nil {
			t.Errorf("expected clean state, got %+v", st)
		}
		if len(st.Logs) != 1 || st.Logs[0] != "[15:04:05] Starting: Import to Spotify" {
			t.Errorf("unexpected logs %v", st.Logs)
		}
	})

	t.Run("status reflects progress", func(t *testing.T) {
		m := fixedMonitor(10)
		if _, err := m.Begin(context.Background(), "Import to YouTube Music"); err != nil {
			t.Fatalf("Begin() error = %v", err)
		}

		m.Progress(tasks.SyncState{CurrentPlaylist: "Roadtrip", Added: make([]models.Track, 3), Failed: make([]models.Track, 1)})
		m.Progress(tasks.SyncState{CurrentPlaylist: "Roadtrip", Added: make([]models.Track, 4), Failed: make([]models.Track, 1)})

		st := m.Status(50)
		if !st.IsRunning || st.CurrentTask == nil || *st.CurrentTask != "Import to YouTube Music" {
			t.Errorf("unexpected running status %+v", st)
		}
		if st.CurrentPlaylist == nil || *st.CurrentPlaylist != "Roadtrip" {
			t.Errorf("unexpected current playlist %v", st.CurrentPlaylist)
		}
		if st.Added != 4 || st.Failed != 1 {
			t.Errorf("expected 4 added / 1 failed, got %d / %d", st.Added, st.Failed)
		}

		processing := 0
		for _, l := range st.Logs {
			if strings.Contains(l, "Processing: Roadtrip") {
				processing++
			}
		}
		if processing != 1 {
			t.Errorf("expected one playlist transition line, got %d", processing)
		}
	})

	t.Run("End logs outcome and cancels the context", func(t *testing.T) {
		m := fixedMonitor(10)
		ctx, err := m.Begin(context.Background(), "Import to Spotify")
		if err != nil {
			t.Fatalf("Begin() error = %v", err)
		}
		m.Progress(tasks.SyncState{Added: make([]models.Track, 2)})
		m.End(errors.New("boom"))

		if ctx.Err() == nil {
			t.Error("expected run context to be cancelled")
		}

		st := m.Status(0)
		if st.IsRunning || st.CurrentTask != nil {
			t.Errorf("expected idle status, got %+v", st)
		}
		logs := strings.Join(st.Logs, "\n")
		if !strings.Contains(logs, "Error: boom") || !strings.Contains(logs, "Added: 2 | Failed: 0") {
			t.Errorf("unexpected logs %q", logs)
		}
		if st.Added != 2 {
			t.Errorf("expected counts to survive the end of the run, got %d", st.Added)
		}
	})

	t.Run("Cancel", func(t *testing.T) {
		m := fixedMonitor(10)
		if m.Cancel() {
			t.Error("Cancel should report false while idle")
		}

		ctx, _ := m.Begin(context.Background(), "Export Spotify")
		if !m.Cancel() {
			t.Error("Cancel should report true while running")
		}
		if ctx.Err() == nil {
			t.Error("expected context to be cancelled")
		}
		if !m.Running() {
			t.Error("run stays active until End")
		}
	})

	t.Run("log ring keeps the newest lines", func(t *testing.T) {
		m := fixedMonitor(3)
		for i := range 5 {
			fmt.Fprintf(m, "line %d\n", i)
		}

		got := m.Logs(0)
		want := []string{"line 2", "line 3", "line 4"}
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("Logs() = %v, want %v", got, want)
		}

		if tail := m.Logs(2); strings.Join(tail, ",") != "line 3,line 4" {
			t.Errorf("Logs(2) = %v", tail)
		}
	})

	t.Run("Write buffers partial lines", func(t *testing.T) {
		m := fixedMonitor(10)
		m.Write([]byte("hello "))
		if len(m.Logs(0)) != 0 {
			t.Fatal("partial line must not be stored")
		}
		m.Write([]byte("world\r\nsecond\n\n"))

		got := m.Logs(0)
		if len(got) != 2 || got[0] != "hello world" || got[1] != "second" {
			t.Errorf("unexpected lines %q", got)
		}
	})

	t.Run("ClearLogs", func(t *testing.T) {
		m := fixedMonitor(10)
		m.Logf("a")
		m.ClearLogs()
		if len(m.Logs(0)) != 0 {
			t.Error("expected no logs after clear")
		}
	})

	t.Run("default capacity", func(t *testing.T) {
		if m := NewMonitor(0); m.capacity != DefaultLogCapacity {
			t.Errorf("expected capacity %d, got %d", DefaultLogCapacity, m.capacity)
		}
	})
}
