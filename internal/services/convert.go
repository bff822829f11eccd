package services

import (
	"github.com/desertthunder/tastemixer/internal/models"
	"github.com/zmb3/spotify/v2"
)

func convertTracks(in []spotify.FullTrack) []models.Track {
	out := make([]models.Track, 0, len(in))
	for _, t := range in {
		if t.ID == "" {
			continue
		}
		out = append(out, convertTrack(t))
	}
	return out
}

func convertTrack(t spotify.FullTrack) models.Track {
	artists := make([]models.Artist, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = models.Artist{ID: string(a.ID), Name: a.Name}
	}
	return models.Track{
		ID:      string(t.ID),
		Name:    t.Name,
		Artists: artists,
		Album: models.Album{
			ID:          string(t.Album.ID),
			Name:        t.Album.Name,
			ReleaseDate: t.Album.ReleaseDate,
			Images:      convertImages(t.Album.Images),
		},
		DurationMS:   int(t.Duration),
		Popularity:   int(t.Popularity),
		Explicit:     t.Explicit,
		TrackNumber:  int(t.TrackNumber),
		ExternalURLs: t.ExternalURLs,
		PreviewURL:   t.PreviewURL,
		URI:          string(t.URI),
	}
}

func convertArtists(in []spotify.FullArtist) []models.Artist {
	out := make([]models.Artist, 0, len(in))
	for _, a := range in {
		if a.ID == "" {
			continue
		}
		out = append(out, models.Artist{
			ID:         string(a.ID),
			Name:       a.Name,
			Genres:     a.Genres,
			Popularity: int(a.Popularity),
			Images:     convertImages(a.Images),
		})
	}
	return out
}

func convertImages(in []spotify.Image) []models.Image {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.Image, len(in))
	for i, img := range in {
		out[i] = models.Image{URL: img.URL, Height: int(img.Height), Width: int(img.Width)}
	}
	return out
}

func convertUser(u *spotify.PrivateUser) models.User {
	return models.User{
		ID:          string(u.ID),
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Country:     u.Country,
		Product:     u.Product,
		Followers:   int(u.Followers.Count),
		Images:      convertImages(u.Images),
	}
}
