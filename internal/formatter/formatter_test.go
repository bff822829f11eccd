package formatter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/tastemixer/internal/models"
	"github.com/desertthunder/tastemixer/internal/shared"
	th "github.com/desertthunder/tastemixer/internal/testing"
)

func testPlaylist() *models.Playlist {
	p := models.NewPlaylist("Test Playlist")
	p.ID = "test123"
	p.Source = models.SourceFavorites

	one := th.Track("track1", "a1", "Artist One")
	one.Name = "Song One"
	one.Album.Name = "Album One"
	one.DurationMS = 180000
	one.ExternalURLs = map[string]string{"spotify": "https://open.spotify.com/track/track1"}

	two := th.Track("track2", "a2", "Artist Two")
	two.Name = "Song Two"
	two.Album.Name = "Album Two"
	two.DurationMS = 240000
	two.Artists = append(two.Artists, models.Artist{ID: "a3", Name: "Guest"})

	p.Add(one)
	p.Add(two)
	return p
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", FormatText},
		{"txt", FormatText},
		{"text", FormatText},
		{"md", FormatMarkdown},
		{"Markdown", FormatMarkdown},
		{" csv ", FormatCSV},
		{"JSON", FormatJSON},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if err != nil {
			t.Fatalf("ParseFormat(%q) failed: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}

	t.Run("Unknown", func(t *testing.T) {
		_, err := ParseFormat("yaml")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(testPlaylist())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "ID,Title,Artists,Album,Released,Duration,Popularity,Explicit,URL") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		for _, want := range []string{"track1", "Song One", "Album One", "3:00", "https://open.spotify.com/track/track1"} {
			if !strings.Contains(output, want) {
				t.Errorf("CSV missing %q", want)
			}
		}
		if !strings.Contains(output, `"Artist Two, Guest"`) {
			t.Errorf("expected quoted multi-artist field, got: %s", output)
		}

		lines := strings.Split(strings.TrimSpace(output), "\n")
		if len(lines) != 3 {
			t.Errorf("expected 3 lines (header + 2 tracks), got %d", len(lines))
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		t.Run("without cover image", func(t *testing.T) {
			data, err := ExportToMarkdown(testPlaylist(), "")
			if err != nil {
				t.Fatalf("ExportToMarkdown failed: %v", err)
			}

			output := string(data)
			if !strings.HasPrefix(output, "# Test Playlist\n") {
				t.Errorf("expected title heading, got: %s", output)
			}
			if strings.Contains(output, "![Cover]") {
				t.Error("expected no cover image reference")
			}
			for _, want := range []string{
				"**Source**: favorites",
				"**Tracks**: 2",
				"**Duration**: 7:00",
				"1. Artist One - [Song One](https://open.spotify.com/track/track1) (Album One) [3:00]",
				"2. Artist Two, Guest - Song Two (Album Two) [4:00]",
			} {
				if !strings.Contains(output, want) {
					t.Errorf("Markdown missing %q, got: %s", want, output)
				}
			}
		})

		t.Run("with cover image", func(t *testing.T) {
			data, err := ExportToMarkdown(testPlaylist(), "cover.jpg")
			if err != nil {
				t.Fatalf("ExportToMarkdown failed: %v", err)
			}
			if !strings.Contains(string(data), "![Cover](cover.jpg)") {
				t.Error("expected cover image reference")
			}
		})
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(testPlaylist())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		expected := "Playlist: Test Playlist\nTracks: 2 (7:00)\n\n1. Artist One - Song One\n2. Artist Two, Guest - Song Two\n"
		if string(data) != expected {
			t.Errorf("expected %q, got %q", expected, string(data))
		}
	})

	t.Run("ExportEmptyPlaylist", func(t *testing.T) {
		p := models.NewPlaylist("Empty")
		data, err := ExportToText(p)
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}
		if !strings.Contains(string(data), "Tracks: 0 (0:00)") {
			t.Errorf("unexpected output: %q", string(data))
		}
	})

	t.Run("ToMetadataJSON", func(t *testing.T) {
		data, err := ToMetadataJSON(testPlaylist())
		if err != nil {
			t.Fatalf("ToMetadataJSON failed: %v", err)
		}

		var meta Metadata
		if err := json.Unmarshal(data, &meta); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if meta.ID != "test123" || meta.TrackCount != 2 || meta.DurationMS != 420000 {
			t.Errorf("unexpected metadata: %+v", meta)
		}
		if strings.Contains(string(data), "Song One") {
			t.Error("metadata should not contain tracks")
		}
	})

	t.Run("Render", func(t *testing.T) {
		p := testPlaylist()
		for _, format := range Formats {
			data, err := Render(p, format)
			if err != nil {
				t.Fatalf("Render(%s) failed: %v", format, err)
			}
			if len(data) == 0 {
				t.Errorf("Render(%s) returned empty output", format)
			}
		}

		data, err := Render(p, "json")
		if err != nil {
			t.Fatalf("Render failed: %v", err)
		}
		var decoded struct {
			Name   string         `json:"name"`
			Tracks []models.Track `json:"tracks"`
		}
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Name != "Test Playlist" || len(decoded.Tracks) != 2 {
			t.Errorf("unexpected decoded playlist: %+v", decoded)
		}

		if _, err := Render(p, "xml"); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}

func TestDownloadImage(t *testing.T) {
	t.Run("EmptyURL", func(t *testing.T) {
		if _, err := DownloadImage(context.Background(), ""); err == nil {
			t.Error("expected error for empty URL")
		}
	})

	t.Run("Success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte("jpegdata"))
		}))
		defer srv.Close()

		data, err := DownloadImage(context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("DownloadImage failed: %v", err)
		}
		if string(data) != "jpegdata" {
			t.Errorf("expected jpegdata, got %q", string(data))
		}
	})

	t.Run("BadStatus", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer srv.Close()

		if _, err := DownloadImage(context.Background(), srv.URL); err == nil {
			t.Error("expected error for 404")
		}
	})
}

func TestWriters(t *testing.T) {
	t.Run("WriteCSVExport", func(t *testing.T) {
		t.Run("WithDefaultPath", func(t *testing.T) {
			tempDir := t.TempDir()
			originalDir := th.MustGetwd(t)
			th.MustChdir(t, tempDir)
			defer th.MustChdir(t, originalDir)

			result, err := WriteCSVExport(testPlaylist(), "")
			if err != nil {
				t.Fatalf("WriteCSVExport failed: %v", err)
			}
			if result.TracksFile != "test123_tracks.csv" {
				t.Errorf("expected test123_tracks.csv, got %s", result.TracksFile)
			}
			th.AssertFileExists(t, result.TracksFile)
			th.AssertFileExists(t, result.MetadataFile)

			if csvContent := th.MustReadFile(t, result.TracksFile); !strings.Contains(csvContent, "Song Two") {
				t.Error("CSV file missing track data")
			}
			if metadataContent := th.MustReadFile(t, result.MetadataFile); !strings.Contains(metadataContent, `"track_count": 2`) {
				t.Errorf("metadata file missing track count, got %s", metadataContent)
			}
		})

		t.Run("WithCustomPath", func(t *testing.T) {
			base := filepath.Join(t.TempDir(), "mix")
			result, err := WriteCSVExport(testPlaylist(), base)
			if err != nil {
				t.Fatalf("WriteCSVExport failed: %v", err)
			}
			if result.TracksFile != base+"_tracks.csv" || result.MetadataFile != base+"_metadata.json" {
				t.Errorf("unexpected paths: %+v", result)
			}
			th.AssertFileExists(t, result.TracksFile)
			th.AssertFileExists(t, result.MetadataFile)
		})

		t.Run("UnwritablePath", func(t *testing.T) {
			base := filepath.Join(t.TempDir(), "missing", "mix")
			if _, err := WriteCSVExport(testPlaylist(), base); err == nil {
				t.Error("expected error for missing directory")
			}
		})
	})

	t.Run("WriteMarkdownExport", func(t *testing.T) {
		t.Run("WithoutImage", func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "mix")
			result, err := WriteMarkdownExport(context.Background(), testPlaylist(), dir, "", nil)
			if err != nil {
				t.Fatalf("WriteMarkdownExport failed: %v", err)
			}
			th.AssertDirExists(t, dir)
			if len(result.Files) != 1 || result.CoverImage != "" {
				t.Errorf("expected README only, got %+v", result)
			}
			th.AssertFileExists(t, filepath.Join(dir, "README.md"))
		})

		t.Run("WithImage", func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("jpegdata"))
			}))
			defer srv.Close()

			dir := filepath.Join(t.TempDir(), "mix")
			result, err := WriteMarkdownExport(context.Background(), testPlaylist(), dir, srv.URL, nil)
			if err != nil {
				t.Fatalf("WriteMarkdownExport failed: %v", err)
			}
			if result.CoverImage == "" {
				t.Fatal("expected cover image to be saved")
			}
			if got := th.MustReadFile(t, result.CoverImage); got != "jpegdata" {
				t.Errorf("expected jpegdata, got %q", got)
			}
			if readme := th.MustReadFile(t, filepath.Join(dir, "README.md")); !strings.Contains(readme, "![Cover](cover.jpg)") {
				t.Error("README missing cover reference")
			}
		})

		t.Run("FailedImageWarns", func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer srv.Close()

			var warnings []error
			dir := filepath.Join(t.TempDir(), "mix")
			result, err := WriteMarkdownExport(context.Background(), testPlaylist(), dir, srv.URL, func(err error) {
				warnings = append(warnings, err)
			})
			if err != nil {
				t.Fatalf("WriteMarkdownExport failed: %v", err)
			}
			if len(warnings) != 1 {
				t.Errorf("expected 1 warning, got %d", len(warnings))
			}
			if result.CoverImage != "" {
				t.Error("expected no cover image")
			}
		})
	})

	t.Run("WriteTextExport", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mix.txt")
		got, err := WriteTextExport(testPlaylist(), path)
		if err != nil {
			t.Fatalf("WriteTextExport failed: %v", err)
		}
		if got != path {
			t.Errorf("expected %s, got %s", path, got)
		}
		if content := th.MustReadFile(t, path); !strings.HasPrefix(content, "Playlist: Test Playlist") {
			t.Errorf("unexpected content: %s", content)
		}
	})

	t.Run("WriteJSONExport", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mix.json")
		if _, err := WriteJSONExport(testPlaylist(), path); err != nil {
			t.Fatalf("WriteJSONExport failed: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if !json.Valid(data) {
			t.Error("expected valid JSON")
		}
	})

	t.Run("WriteManifest", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "manifest.json")
		if err := WriteManifest(map[string]int{"exported": 2}, path); err != nil {
			t.Fatalf("WriteManifest failed: %v", err)
		}
		if content := th.MustReadFile(t, path); !strings.Contains(content, `"exported": 2`) {
			t.Errorf("unexpected manifest: %s", content)
		}
	})
}
