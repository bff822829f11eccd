package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tastemixer/internal/formatter"
	"github.com/desertthunder/tastemixer/internal/models"
	"github.com/desertthunder/tastemixer/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
	_ tea.Msg = frameMsg{}
	_ tea.Msg = reloadMsg{}
)

const (
	MsgFavoritesLoaded MsgKind = iota
	MsgFavoriteToggled
	MsgProgressUpdate
	MsgSynthesisComplete
	MsgPlaylistExported
	MsgPlaylistSaved
	MsgSearchResults
)

// frameMsg advances the graph by one frame.
type frameMsg time.Time

// reloadMsg re-reads the stored favorites.
type reloadMsg time.Time

type favoritesResult struct {
	set *models.FavoriteSet
	err error
}

type toggleResult struct {
	set   *models.FavoriteSet
	track models.Track
	added bool
	err   error
}

type synthesisResult struct {
	tracks []models.Track
	err    error
}

type exportResult struct {
	result *formatter.MarkdownExportResult
	err    error
}

type saveResult struct {
	sequence int
	err      error
}

type searchResult struct {
	query  string
	tracks []models.Track
	err    error
}

// favoritesLoadedMsg is the constructor for [MsgFavoritesLoaded]
func favoritesLoadedMsg(set *models.FavoriteSet, err error) Msg {
	return Msg{kind: MsgFavoritesLoaded, data: favoritesResult{set, err}}
}

// favoriteToggledMsg is the constructor for [MsgFavoriteToggled]
func favoriteToggledMsg(set *models.FavoriteSet, t models.Track, added bool, err error) Msg {
	return Msg{kind: MsgFavoriteToggled, data: toggleResult{set, t, added, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// synthesisCompleteMsg is the constructor for [MsgSynthesisComplete]
func synthesisCompleteMsg(tracks []models.Track, err error) Msg {
	return Msg{kind: MsgSynthesisComplete, data: synthesisResult{tracks, err}}
}

func playlistExportedMsg(result *formatter.MarkdownExportResult, err error) Msg {
	return Msg{kind: MsgPlaylistExported, data: exportResult{result, err}}
}

func playlistSavedMsg(sequence int, err error) Msg {
	return Msg{kind: MsgPlaylistSaved, data: saveResult{sequence, err}}
}

func searchResultsMsg(query string, tracks []models.Track, err error) Msg {
	return Msg{kind: MsgSearchResults, data: searchResult{query, tracks, err}}
}
