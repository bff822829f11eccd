// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/tastemixer/internal/models"
)

// Catalog method names recorded by [MockCatalog].
const (
	MethodCurrentUser     = "CurrentUser"
	MethodArtistTopTracks = "ArtistTopTracks"
	MethodRelatedArtists  = "RelatedArtists"
	MethodSearchTracks    = "SearchTracks"
	MethodSearchArtists   = "SearchArtists"
)

// Call is one recorded catalog request.
type Call struct {
	Method string
	Arg    string
	Limit  int
	Offset int
}

// MockCatalog is a test double for services.Catalog. It is safe for concurrent use.
//
// Track searches page through Searches[query] using limit and offset the way the real catalog does. Errors
// are keyed by "Method:arg"; Err applies to every call.
type MockCatalog struct {
	mu sync.Mutex

	User      *models.User
	TopTracks map[string][]models.Track
	Related   map[string][]models.Artist
	Searches  map[string][]models.Track
	Artists   map[string][]models.Artist
	Errors    map[string]error
	Err       error

	calls []Call
}

// NewMockCatalog returns an empty catalog ready for configuration.
func NewMockCatalog() *MockCatalog {
	return &MockCatalog{
		TopTracks: map[string][]models.Track{},
		Related:   map[string][]models.Artist{},
		Searches:  map[string][]models.Track{},
		Artists:   map[string][]models.Artist{},
		Errors:    map[string]error{},
	}
}

func (m *MockCatalog) record(c Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
	if m.Err != nil {
		return m.Err
	}
	return m.Errors[c.Method+":"+c.Arg]
}

func (m *MockCatalog) CurrentUser(ctx context.Context) (*models.User, error) {
	if err := m.record(Call{Method: MethodCurrentUser}); err != nil {
		return nil, err
	}
	if m.User == nil {
		return &models.User{ID: "mock-user", DisplayName: "Mock User"}, nil
	}
	return m.User, nil
}

func (m *MockCatalog) ArtistTopTracks(ctx context.Context, artistID string) ([]models.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.record(Call{Method: MethodArtistTopTracks, Arg: artistID}); err != nil {
		return nil, err
	}
	return clone(m.TopTracks[artistID]), nil
}

func (m *MockCatalog) RelatedArtists(ctx context.Context, artistID string) ([]models.Artist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.record(Call{Method: MethodRelatedArtists, Arg: artistID}); err != nil {
		return nil, err
	}
	return clone(m.Related[artistID]), nil
}

func (m *MockCatalog) SearchTracks(ctx context.Context, query string, limit, offset int) ([]models.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.record(Call{Method: MethodSearchTracks, Arg: query, Limit: limit, Offset: offset}); err != nil {
		return nil, err
	}
	return page(m.Searches[query], limit, offset), nil
}

func (m *MockCatalog) SearchArtists(ctx context.Context, query string, limit int) ([]models.Artist, error) {
	if err := m.record(Call{Method: MethodSearchArtists, Arg: query, Limit: limit}); err != nil {
		return nil, err
	}
	return page(m.Artists[query], limit, 0), nil
}

// Calls returns a copy of every recorded call in order.
func (m *MockCatalog) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsTo returns the recorded calls of one method.
func (m *MockCatalog) CallsTo(method string) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets recorded calls.
func (m *MockCatalog) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func clone[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func page[T any](in []T, limit, offset int) []T {
	if offset >= len(in) || offset < 0 {
		return nil
	}
	end := len(in)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return clone(in[offset:end])
}

// Track builds a track snapshot by one artist.
func Track(id, artistID, artistName string) models.Track {
	return models.Track{
		ID:         id,
		Name:       "Track " + id,
		Artists:    []models.Artist{{ID: artistID, Name: artistName}},
		Album:      models.Album{ID: "album-" + id, Name: "Album " + id, ReleaseDate: "2001-01-01"},
		DurationMS: 200000,
		Popularity: 50,
	}
}

// Tracks builds n tracks by one artist with ids prefix-0 … prefix-(n-1).
func Tracks(prefix, artistID, artistName string, n int) []models.Track {
	out := make([]models.Track, n)
	for i := range n {
		out[i] = Track(fmt.Sprintf("%s-%d", prefix, i), artistID, artistName)
	}
	return out
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

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
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
