package tasks

import (
	"fmt"

	"github.com/desertthunder/tastemixer/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	TopTracks Phase = iota
	RelatedArtists
	ArtistSearch
	AlbumSearch
	Backfill
	GenreSearch
	Filter
	Sample
	ExportPlaylist
)

func (p Phase) String() string {
	switch p {
	case TopTracks:
		return "top_tracks"
	case RelatedArtists:
		return "related_artists"
	case ArtistSearch:
		return "artist_search"
	case AlbumSearch:
		return "album_search"
	case Backfill:
		return "backfill"
	case GenreSearch:
		return "genre_search"
	case Filter:
		return "filter"
	case Sample:
		return "sample"
	case ExportPlaylist:
		return "export_playlist"
	default:
		return ""
	}
}

func stageUpdate(phase Phase, step, total, pool int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s (%d candidates)", step, total, phase, pool),
		Data:    pool,
	}
}

func filterUpdate(before, after int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Filter,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Filtered %d tracks down to %d", before, after),
	}
}

func sampleUpdate(tracks []models.Track, target int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Sample,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Selected %d of %d tracks", len(tracks), target),
		Data:    tracks,
	}
}

func exportingPlaylistUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, name),
	}
}

func exportCompletedUpdate(step, total int, name string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, name, filesCount),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
