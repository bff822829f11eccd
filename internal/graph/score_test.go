package graph

import (
	"math"
	"slices"
	"testing"

	"github.com/desertthunder/tastemixer/internal/models"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func artists(ids ...string) []models.Artist {
	out := make([]models.Artist, len(ids))
	for i, id := range ids {
		out[i] = models.Artist{ID: id, Name: "Artist " + id}
	}
	return out
}

func TestScore(t *testing.T) {
	t.Run("shared artist alone links the pair", func(t *testing.T) {
		a := models.Track{ID: "a", Name: "Alpha", Artists: artists("x"), Explicit: true}
		b := models.Track{ID: "b", Name: "Something much longer", Artists: artists("x", "y", "z")}

		c := Score(a, b)
		if c.Type != CriterionArtist {
			t.Errorf("expected primary type %q, got %q", CriterionArtist, c.Type)
		}
		if c.Strength < 0.8 {
			t.Errorf("expected strength >= 0.8, got %f", c.Strength)
		}
		if !c.Linked() {
			t.Error("expected pair to be linked")
		}
	})

	t.Run("same album scenario", func(t *testing.T) {
		album := models.Album{ID: "alb", Name: "X"}
		a := models.Track{ID: "a", Name: "A", Artists: artists("p"), Album: album, Popularity: 50, TrackNumber: 1, Explicit: true}
		b := models.Track{ID: "b", Name: "Bbbbbbbbbb", Artists: artists("q", "r", "s"), Album: album, Popularity: 50, TrackNumber: 2}

		c := Score(a, b)
		if c.Type != CriterionAlbum {
			t.Fatalf("expected primary type %q, got %q", CriterionAlbum, c.Type)
		}

		var sum float64
		for _, contrib := range c.Contributions {
			switch contrib.Criterion {
			case CriterionAlbum, CriterionPopularity, CriterionPosition:
				sum += contrib.Weight
			}
		}
		if !approx(sum, 1.3) {
			t.Errorf("expected album+popularity+position = 1.3, got %f", sum)
		}

		want := []string{CriterionAlbum, CriterionPopularity, CriterionPosition, CriterionTier}
		if !slices.Equal(c.Types, want) {
			t.Errorf("expected types %v, got %v", want, c.Types)
		}
		if !approx(c.Strength, 1.5) {
			t.Errorf("expected strength 1.5, got %f", c.Strength)
		}
	})

	t.Run("unrelated tracks do not link", func(t *testing.T) {
		a := models.Track{ID: "a", Name: "A", Artists: artists("p"), Explicit: true}
		b := models.Track{ID: "b", Name: "Bbbbbbbbbb", Artists: artists("q", "r", "s")}

		c := Score(a, b)
		if c.Linked() {
			t.Errorf("expected no link, got strength %f (%v)", c.Strength, c.Types)
		}
		if c.Type != "" {
			t.Errorf("expected empty type, got %q", c.Type)
		}
	})

	t.Run("missing data skips criteria", func(t *testing.T) {
		a := models.Track{ID: "a", Artists: artists("p")}
		b := models.Track{ID: "b", Artists: artists("q")}

		c := Score(a, b)
		for _, ty := range c.Types {
			switch ty {
			case CriterionPopularity, CriterionYear, CriterionDuration, CriterionTier, CriterionDecade, CriterionNameLength, CriterionAlbum:
				t.Errorf("expected %q to be skipped", ty)
			}
		}
	})

	t.Run("year and decade", func(t *testing.T) {
		a := models.Track{ID: "a", Name: "A", Artists: artists("p"), Album: models.Album{ReleaseDate: "1991-02-03"}, Explicit: true}
		b := models.Track{ID: "b", Name: "Bbbbbbbbbb", Artists: artists("q", "r", "s"), Album: models.Album{ReleaseDate: "1993"}}

		c := Score(a, b)
		want := []string{CriterionYear, CriterionDecade}
		if !slices.Equal(c.Types, want) {
			t.Fatalf("expected types %v, got %v", want, c.Types)
		}
		if !approx(c.Strength, 0.4*(1-2.0/5)+0.25) {
			t.Errorf("expected strength %f, got %f", 0.4*(1-2.0/5)+0.25, c.Strength)
		}
	})

	t.Run("album name words", func(t *testing.T) {
		a := models.Track{ID: "a", Name: "A", Artists: artists("p"), Album: models.Album{ID: "1", Name: "Greatest Hits"}, Explicit: true}
		b := models.Track{ID: "b", Name: "Bbbbbbbbbb", Artists: artists("q", "r", "s"), Album: models.Album{ID: "2", Name: "greatest of all"}}

		c := Score(a, b)
		if !slices.Contains(c.Types, CriterionAlbumName) {
			t.Errorf("expected %q in %v", CriterionAlbumName, c.Types)
		}
	})

	t.Run("symmetric", func(t *testing.T) {
		a := models.Track{ID: "a", Name: "Song", Artists: artists("p"), Popularity: 72, DurationMS: 200000, Album: models.Album{ReleaseDate: "2001"}}
		b := models.Track{ID: "b", Name: "Tune", Artists: artists("q", "p"), Popularity: 60, DurationMS: 230000, Album: models.Album{ReleaseDate: "2004"}}

		ab, ba := Score(a, b), Score(b, a)
		if !approx(ab.Strength, ba.Strength) {
			t.Errorf("expected symmetric strength, got %f and %f", ab.Strength, ba.Strength)
		}
	})
}
