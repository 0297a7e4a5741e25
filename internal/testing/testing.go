// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/musync/internal/models"
)

// MockDestination is an in-memory [services.Destination].
//
// Writes mutate the mock's library so repeated runs observe earlier additions. Safe for concurrent Search calls.
type MockDestination struct {
	mu sync.Mutex

	ServiceName string
	Cap         int

	Catalog     map[string][]models.Candidate      // keyed by track name
	SearchErrs  map[string]error                   // keyed by track name
	SearchDelay func(t models.Track) time.Duration // optional per-track latency

	Playlists []models.PlaylistRef
	Members   map[string][]string
	Liked     []string

	ListPlaylistsErr error
	CreateErr        error
	MembershipErr    error
	ListLikedErr     error
	AddItemsErrs     map[int]error    // keyed by AddItems call index (0-based)
	LikeErrs         map[string]error // keyed by platform ID

	SearchCalls   int
	AddItemsCalls [][]string
	LikeCalls     []string
	Created       []string
}

// NewMockDestination creates an empty destination with a write cap of 100.
func NewMockDestination() *MockDestination {
	return &MockDestination{
		ServiceName: "mock",
		Cap:         100,
		Catalog:     map[string][]models.Candidate{},
		SearchErrs:  map[string]error{},
		Members:     map[string][]string{},
	}
}

func (m *MockDestination) Name() string { return m.ServiceName }

func (m *MockDestination) WriteCap() int { return m.Cap }

func (m *MockDestination) Search(ctx context.Context, track models.Track) ([]models.Candidate, error) {
	if m.SearchDelay != nil {
		select {
		case <-time.After(m.SearchDelay(track)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.SearchCalls++
	if err := m.SearchErrs[track.Name]; err != nil {
		return nil, err
	}
	return m.Catalog[track.Name], nil
}

func (m *MockDestination) ListPlaylists(ctx context.Context) ([]models.PlaylistRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListPlaylistsErr != nil {
		return nil, m.ListPlaylistsErr
	}
	return slices.Clone(m.Playlists), nil
}

func (m *MockDestination) CreatePlaylist(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	id := fmt.Sprintf("pl-%d", len(m.Playlists)+1)
	m.Playlists = append(m.Playlists, models.PlaylistRef{ID: id, Name: name})
	m.Created = append(m.Created, name)
	return id, nil
}

func (m *MockDestination) ListMembership(ctx context.Context, playlistID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MembershipErr != nil {
		return nil, m.MembershipErr
	}
	return slices.Clone(m.Members[playlistID]), nil
}

func (m *MockDestination) ListLiked(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListLikedErr != nil {
		return nil, m.ListLikedErr
	}
	return slices.Clone(m.Liked), nil
}

func (m *MockDestination) AddItems(ctx context.Context, playlistID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := len(m.AddItemsCalls)
	m.AddItemsCalls = append(m.AddItemsCalls, slices.Clone(ids))
	if err := m.AddItemsErrs[call]; err != nil {
		return err
	}
	m.Members[playlistID] = append(m.Members[playlistID], ids...)
	return nil
}

func (m *MockDestination) AddLikedItem(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LikeCalls = append(m.LikeCalls, id)
	if err := m.LikeErrs[id]; err != nil {
		return err
	}
	m.Liked = append(m.Liked, id)
	return nil
}

// AddedCount returns the total number of items written by AddItems calls that succeeded.
func (m *MockDestination) AddedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ids := range m.Members {
		n += len(ids)
	}
	return n
}

// MockSource is an in-memory [services.Source].
type MockSource struct {
	ServiceName string
	Playlists   []models.PlaylistRef
	Tracks      map[string][]models.Track
	Liked       []models.Track

	ListErr   error
	TrackErrs map[string]error
	LikedErr  error
}

func (m *MockSource) Name() string { return m.ServiceName }

func (m *MockSource) ListPlaylists(ctx context.Context) ([]models.PlaylistRef, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Playlists, nil
}

func (m *MockSource) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	if err := m.TrackErrs[playlistID]; err != nil {
		return nil, err
	}
	return m.Tracks[playlistID], nil
}

func (m *MockSource) LikedTracks(ctx context.Context) ([]models.Track, error) {
	if m.LikedErr != nil {
		return nil, m.LikedErr
	}
	return m.Liked, nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
