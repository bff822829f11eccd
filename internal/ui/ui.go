package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/tastemixer/internal/formatter"
	"github.com/desertthunder/tastemixer/internal/graph"
	"github.com/desertthunder/tastemixer/internal/models"
	"github.com/desertthunder/tastemixer/internal/repositories"
	"github.com/desertthunder/tastemixer/internal/shared"
	"github.com/desertthunder/tastemixer/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	GraphView ViewState = iota
	InspectView
	PlaylistView
)

// headerRows is the number of terminal rows above the graph canvas.
const headerRows = 2

// DefaultReload is how often the dashboard re-reads stored favorites to pick up changes made elsewhere.
const DefaultReload = 500 * time.Millisecond

// Deps are the collaborators of a [Model].
type Deps struct {
	Engine    *tasks.PlaylistEngine
	Favorites *repositories.FavoriteRepository
	Playlists *repositories.PlaylistRepository
	Graph     *graph.Loop
	Thumbs    *graph.Thumbnails
	Logger    *log.Logger
	// ExportDir is where markdown exports are written; empty uses the playlist id.
	ExportDir string
	FPS       int
	Reload    time.Duration
}

// Model represents the TUI application state.
type Model struct {
	ctx  context.Context
	deps Deps
	view ViewState

	width  int
	height int

	favorites *models.FavoriteSet
	inspected *models.Track
	returnTo  ViewState
	cursor    int

	playlist     *models.Playlist
	playlistList list.Model
	generating   bool
	progressChan chan tasks.ProgressUpdate
	progress     tasks.ProgressUpdate
	synthesized  []models.Track
	synthErr     error

	searching   bool
	searchInput textinput.Model
	results     []models.Track
	resultIndex int

	status string
	err    error
	help   help.Model
	keys   keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, deps Deps) *Model {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.FPS <= 0 {
		deps.FPS = graph.DefaultFPS
	}
	if deps.Reload <= 0 {
		deps.Reload = DefaultReload
	}
	p := models.NewPlaylist("Taste Mix")
	pl := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	pl.Title = p.Name
	pl.SetShowHelp(false)
	pl.SetFilteringEnabled(false)

	ti := textinput.New()
	ti.Placeholder = "Search tracks"
	ti.CharLimit = 100

	return &Model{
		ctx:          ctx,
		deps:         deps,
		view:         GraphView,
		favorites:    models.NewFavoriteSet(),
		playlist:     p,
		playlistList: pl,
		searchInput:  ti,
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// Init loads the stored favorites and starts the frame and reload clocks.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.loadFavorites(), m.frame(), m.reload())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.playlistList.SetSize(msg.Width-4, msg.Height-8)
		m.resizeGraph()
		return m, nil

	case frameMsg:
		m.deps.Graph.Step(1)
		return m, m.frame()

	case reloadMsg:
		return m, tea.Batch(m.loadFavorites(), m.reload())

	case tea.MouseMsg:
		if m.view == GraphView && msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
			m.click(msg.X, msg.Y)
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) && (!m.typing() || msg.Type == tea.KeyCtrlC) {
			return m, tea.Quit
		}
		switch m.view {
		case GraphView:
			return m.handleGraphKeys(msg)
		case InspectView:
			return m.handleInspectKeys(msg)
		case PlaylistView:
			return m.handlePlaylistKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgFavoritesLoaded:
		r := msg.data.(favoritesResult)
		if r.err != nil {
			m.err = r.err
			return m, nil
		}
		m.setFavorites(r.set)

	case MsgFavoriteToggled:
		r := msg.data.(toggleResult)
		if r.err != nil {
			m.err = r.err
			return m, nil
		}
		m.setFavorites(r.set)
		if r.added {
			m.status = fmt.Sprintf("Added %q to favorites", r.track.Name)
		} else {
			m.status = fmt.Sprintf("Removed %q from favorites", r.track.Name)
		}

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgSynthesisComplete:
		r := msg.data.(synthesisResult)
		m.generating = false
		m.progressChan = nil
		if r.err != nil {
			m.status = ""
			m.err = synthesisError(r.err)
			return m, nil
		}
		m.err = nil
		m.playlist.Source = models.SourceFavorites
		m.playlist.Replace(r.tracks)
		m.refreshPlaylist(0)
		m.status = fmt.Sprintf("Generated %d tracks", len(r.tracks))
		if len(r.tracks) < m.deps.Engine.Target() {
			m.status = styles.warn.Render(fmt.Sprintf("Only found %d of %d tracks", len(r.tracks), m.deps.Engine.Target()))
		}

	case MsgPlaylistExported:
		r := msg.data.(exportResult)
		if r.err != nil {
			m.err = r.err
			return m, nil
		}
		m.status = fmt.Sprintf("Exported to %s", r.result.Directory)

	case MsgPlaylistSaved:
		r := msg.data.(saveResult)
		if r.err != nil {
			m.err = r.err
			return m, nil
		}
		m.status = fmt.Sprintf("Saved as playlist #%d", r.sequence)

	case MsgSearchResults:
		r := msg.data.(searchResult)
		if !m.searching {
			return m, nil
		}
		if r.err != nil {
			m.status = ""
			m.err = synthesisError(r.err)
			return m, nil
		}
		m.err = nil
		m.results = r.tracks
		m.resultIndex = 0
		if len(r.tracks) == 0 {
			m.status = fmt.Sprintf("No tracks match %q", r.query)
		} else {
			m.status = fmt.Sprintf("%d results for %q", len(r.tracks), r.query)
		}
	}
	return m, nil
}

// synthesisError rewrites the insufficient favorites error into the message shown to the user.
func synthesisError(err error) error {
	var insufficient *tasks.InsufficientFavoritesError
	if errors.As(err, &insufficient) {
		return fmt.Errorf("add at least %d favorites to generate a playlist (you have %d)", insufficient.Required, insufficient.Count)
	}
	if errors.Is(err, shared.ErrCredentialInvalid) || errors.Is(err, shared.ErrNotAuthenticated) {
		return fmt.Errorf("spotify rejected the credential; run `tastemixer auth` and restart: %w", err)
	}
	return err
}

// setFavorites stores set and reconciles the graph and thumbnails with it.
func (m *Model) setFavorites(set *models.FavoriteSet) {
	m.favorites = set
	tracks := set.Tracks()
	delta := m.deps.Graph.Reconcile(tracks)
	if m.deps.Thumbs == nil {
		return
	}
	for _, id := range delta.Removed {
		m.deps.Thumbs.Forget(id)
	}
	added := make(map[string]bool, len(delta.Added))
	for _, id := range delta.Added {
		added[id] = true
	}
	for _, t := range tracks {
		if added[t.ID] {
			m.deps.Thumbs.Request(t.ID, t.Thumbnail())
		}
	}
}

// resizeGraph fits the layout height to the canvas aspect, counting a cell as twice as tall as it is wide, so
// the walls and the spiral centre follow the terminal.
func (m *Model) resizeGraph() {
	cols, rows := m.width, m.height-headerRows-2
	if cols <= 0 || rows <= 0 {
		return
	}
	width := m.deps.Graph.Snapshot().Width
	m.deps.Graph.Resize(width, width*float64(2*rows)/float64(cols))
}

func (m *Model) canvas(snap graph.Snapshot) canvas {
	return newCanvas(snap, m.width, m.height-headerRows-2)
}

// click opens the inspect view for the node under terminal cell (x, y).
func (m *Model) click(x, y int) {
	snap := m.deps.Graph.Snapshot()
	c := m.canvas(snap)
	cy := y - headerRows
	if cy < 0 || cy >= c.rows {
		return
	}
	if n, ok := m.deps.Graph.NodeAt(c.point(x, cy)); ok {
		m.inspect(n.Track)
		return
	}
	if n, ok := c.nodeAt(snap, x, cy); ok {
		m.inspect(n.Track)
	}
}

// inspect opens the inspect view for t; esc returns to the view it was opened from.
func (m *Model) inspect(t models.Track) {
	if m.view != InspectView {
		m.returnTo = m.view
	}
	m.inspected = &t
	m.view = InspectView
	m.err = nil
	m.status = ""
}

func (m *Model) handleGraphKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.next):
		nodes := m.deps.Graph.Snapshot().Nodes
		if len(nodes) == 0 {
			m.status = "No favorites yet: search with `tastemixer favorites add`"
			return m, nil
		}
		m.cursor = (m.cursor + 1) % len(nodes)
		m.inspect(nodes[m.cursor].Track)
	case key.Matches(msg, m.keys.playlist):
		m.view = PlaylistView
	case key.Matches(msg, m.keys.generate):
		m.view = PlaylistView
		return m, m.startSynthesis()
	}
	return m, nil
}

func (m *Model) handleInspectKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back):
		m.view = m.returnTo
		m.inspected = nil
	case key.Matches(msg, m.keys.favorite):
		return m, m.toggleFavorite(*m.inspected)
	case key.Matches(msg, m.keys.add):
		if m.playlist.Add(*m.inspected) {
			m.refreshPlaylist(m.playlist.Len() - 1)
			m.status = fmt.Sprintf("Added %q to the playlist", m.inspected.Name)
		} else {
			m.status = "Already in the playlist"
		}
	case key.Matches(msg, m.keys.playlist):
		m.view = PlaylistView
	}
	return m, nil
}

func (m *Model) handlePlaylistKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		return m.handleSearchKeys(msg)
	}

	i := m.playlistList.Index()
	switch {
	case key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.playlist):
		m.view = GraphView
		return m, nil
	case key.Matches(msg, m.keys.generate):
		return m, m.startSynthesis()
	case key.Matches(msg, m.keys.search):
		return m, m.openSearch()
	case key.Matches(msg, m.keys.favorite):
		if item, ok := m.playlistList.SelectedItem().(trackItem); ok {
			return m, m.toggleFavorite(item.track)
		}
		return m, nil
	case key.Matches(msg, m.keys.inspect):
		if item, ok := m.playlistList.SelectedItem().(trackItem); ok {
			m.inspect(item.track)
		}
		return m, nil
	case key.Matches(msg, m.keys.remove):
		if item, ok := m.playlistList.SelectedItem().(trackItem); ok {
			m.playlist.Remove(item.track.ID)
			m.refreshPlaylist(min(i, m.playlist.Len()-1))
		}
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		if i > 0 && m.playlist.Move(i, i-1) == nil {
			m.refreshPlaylist(i - 1)
		}
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		if i < m.playlist.Len()-1 && m.playlist.Move(i, i+1) == nil {
			m.refreshPlaylist(i + 1)
		}
		return m, nil
	case key.Matches(msg, m.keys.clear):
		m.playlist.Clear()
		m.refreshPlaylist(0)
		return m, nil
	case key.Matches(msg, m.keys.export):
		return m, m.exportPlaylist()
	case key.Matches(msg, m.keys.save):
		return m, m.savePlaylist()
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

// handleSearchKeys drives the search prompt: typing a query, then picking from its results.
func (m *Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searchInput.Focused() {
		switch msg.Type {
		case tea.KeyEsc:
			m.closeSearch()
			return m, nil
		case tea.KeyEnter:
			query := strings.TrimSpace(m.searchInput.Value())
			if query == "" {
				return m, nil
			}
			m.searchInput.Blur()
			m.status = "Searching..."
			return m, m.searchTracks(query)
		}
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.back):
		m.closeSearch()
	case key.Matches(msg, m.keys.search):
		return m, m.openSearch()
	case key.Matches(msg, m.keys.up):
		m.resultIndex = max(m.resultIndex-1, 0)
	case key.Matches(msg, m.keys.down):
		m.resultIndex = min(m.resultIndex+1, max(len(m.results)-1, 0))
	case key.Matches(msg, m.keys.inspect), key.Matches(msg, m.keys.add):
		if m.resultIndex >= len(m.results) {
			return m, nil
		}
		t := m.results[m.resultIndex]
		if m.playlist.Add(t) {
			m.refreshPlaylist(m.playlist.Len() - 1)
			m.status = fmt.Sprintf("Added %q to the playlist", t.Name)
		} else {
			m.status = "Already in the playlist"
		}
	case key.Matches(msg, m.keys.favorite):
		if m.resultIndex < len(m.results) {
			return m, m.toggleFavorite(m.results[m.resultIndex])
		}
	}
	return m, nil
}

func (m *Model) openSearch() tea.Cmd {
	m.searching = true
	m.results = nil
	m.resultIndex = 0
	m.searchInput.SetValue("")
	return m.searchInput.Focus()
}

func (m *Model) closeSearch() {
	m.searching = false
	m.results = nil
	m.searchInput.Blur()
	m.status = ""
}

// typing reports whether key presses go to the search prompt.
func (m *Model) typing() bool {
	return m.view == PlaylistView && m.searching && m.searchInput.Focused()
}

// refreshPlaylist rebuilds the list items from the playlist and selects index.
func (m *Model) refreshPlaylist(index int) {
	m.playlistList.SetItems(trackItems(m.playlist.Tracks()))
	m.playlistList.Title = fmt.Sprintf("%s (%d tracks, %s)", m.playlist.Name, m.playlist.Len(), shared.FormatDuration(m.playlist.Duration()))
	if index >= 0 {
		m.playlistList.Select(index)
	}
}

func (m *Model) frame() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.deps.FPS), func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m *Model) reload() tea.Cmd {
	return tea.Tick(m.deps.Reload, func(t time.Time) tea.Msg {
		return reloadMsg(t)
	})
}

func (m *Model) loadFavorites() tea.Cmd {
	return func() tea.Msg {
		set, err := m.deps.Favorites.Load(m.ctx)
		return favoritesLoadedMsg(set, err)
	}
}

func (m *Model) toggleFavorite(t models.Track) tea.Cmd {
	return func() tea.Msg {
		set, added, err := m.deps.Favorites.Toggle(m.ctx, t)
		return favoriteToggledMsg(set, t, added, err)
	}
}

func (m *Model) searchTracks(query string) tea.Cmd {
	return func() tea.Msg {
		tracks, err := m.deps.Engine.SearchTracks(m.ctx, query)
		return searchResultsMsg(query, tracks, err)
	}
}

func (m *Model) startSynthesis() tea.Cmd {
	if m.generating {
		return nil
	}
	m.generating = true
	m.err = nil
	m.status = "Generating..."
	m.progress = tasks.ProgressUpdate{}
	m.progressChan = make(chan tasks.ProgressUpdate, 50)

	favorites := m.favorites.Tracks()
	ch := m.progressChan
	go func() {
		tracks, err := m.deps.Engine.FromFavorites(m.ctx, favorites, ch)
		m.synthesized, m.synthErr = tracks, err
		close(ch)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	ch := m.progressChan
	return func() tea.Msg {
		if ch == nil {
			return synthesisCompleteMsg(m.synthesized, m.synthErr)
		}
		update, ok := <-ch
		if !ok {
			return synthesisCompleteMsg(m.synthesized, m.synthErr)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) exportPlaylist() tea.Cmd {
	if m.playlist.Len() == 0 {
		m.status = "Nothing to export"
		return nil
	}
	p := m.playlistCopy()
	dir := m.deps.ExportDir
	if dir != "" {
		dir = fmt.Sprintf("%s/%s", strings.TrimRight(dir, "/"), p.ID)
	}
	return func() tea.Msg {
		cover, _ := tasks.CoverFromTracks(m.ctx, p)
		result, err := formatter.WriteMarkdownExport(m.ctx, p, dir, cover, func(err error) {
			m.deps.Logger.Warn("cover download failed", "playlist", p.ID, "error", err)
		})
		return playlistExportedMsg(result, err)
	}
}

func (m *Model) savePlaylist() tea.Cmd {
	if m.deps.Playlists == nil || m.playlist.Len() == 0 {
		m.status = "Nothing to save"
		return nil
	}
	p := m.playlistCopy()
	return func() tea.Msg {
		saved, err := m.deps.Playlists.Create(m.ctx, p)
		if err != nil {
			return playlistSavedMsg(0, err)
		}
		return playlistSavedMsg(saved.Sequence, nil)
	}
}

// playlistCopy snapshots the playlist under a fresh id for commands that run off the update loop.
func (m *Model) playlistCopy() *models.Playlist {
	p := models.NewPlaylist(m.playlist.Name)
	p.Source = m.playlist.Source
	p.Replace(m.playlist.Tracks())
	return p
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case GraphView:
		body = m.renderGraph()
	case InspectView:
		body = m.renderInspect()
	case PlaylistView:
		body = m.renderPlaylist()
	}

	footer := m.status
	if m.err != nil {
		footer = styles.err.Render(fmt.Sprintf("Error: %v", m.err))
	}
	return fmt.Sprintf("%s\n%s", body, footer)
}

func (m *Model) renderGraph() string {
	snap := m.deps.Graph.Snapshot()
	title := styles.ok.Render(fmt.Sprintf("Favorites graph: %d tracks, %d connections", len(snap.Nodes), len(snap.Edges)))

	var glyph func(string) string
	if m.deps.Thumbs != nil {
		glyph = m.deps.Thumbs.Glyph
	}
	canvas := m.canvas(snap).render(snap, glyph)
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.next, m.keys.playlist, m.keys.generate, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s\n%s", title, canvas, helpView)
}

func (m *Model) renderInspect() string {
	t := m.inspected
	if t == nil {
		return ""
	}

	heart := "♡"
	if m.favorites.Contains(t.ID) {
		heart = styles.ok.Render("♥")
	}
	title := styles.title.Render(fmt.Sprintf("%s %s", heart, t.Name))

	rows := [][2]string{
		{"Artists", t.ArtistNames()},
		{"Album", t.Album.Name},
		{"Released", t.Album.ReleaseDate},
		{"Duration", shared.FormatDuration(t.DurationMS)},
		{"Popularity", t.PopularityLabel()},
	}
	if t.Explicit {
		rows = append(rows, [2]string{"Explicit", "yes"})
	}
	if url := t.ExternalURL(); url != "" {
		rows = append(rows, [2]string{"Open", url})
	}

	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "%s %s\n", styles.help.Render(fmt.Sprintf("%-11s", r[0])), r[1])
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.favorite, m.keys.add, m.keys.back, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n%s", title, b.String(), helpView)
}

func (m *Model) renderPlaylist() string {
	if m.searching {
		return m.renderSearch()
	}
	if m.generating {
		title := styles.title.Render("Generating playlist")
		phase := m.progress.Message
		if phase == "" {
			phase = "Starting..."
		}
		return fmt.Sprintf("%s\n\n%s", title, phase)
	}

	if m.playlist.Len() == 0 {
		title := styles.title.Render(m.playlist.Name)
		helpView := m.help.ShortHelpView([]key.Binding{m.keys.generate, m.keys.back, m.keys.quit})
		return fmt.Sprintf("%s\n\nThe playlist is empty. Press g to generate one from your favorites or / to search.\n\n%s", title, helpView)
	}

	helpView := m.help.ShortHelpView([]key.Binding{
		m.keys.generate, m.keys.search, m.keys.favorite, m.keys.inspect, m.keys.remove, m.keys.moveUp,
		m.keys.moveDown, m.keys.clear, m.keys.export, m.keys.save, m.keys.back,
	})
	return fmt.Sprintf("%s\n\n%s", m.playlistList.View(), helpView)
}

func (m *Model) renderSearch() string {
	title := styles.title.Render("Add tracks")

	var b strings.Builder
	for i, t := range m.results {
		cursor := "  "
		if i == m.resultIndex {
			cursor = styles.ok.Render("> ")
		}
		heart := "♡"
		if m.favorites.Contains(t.ID) {
			heart = "♥"
		}
		fmt.Fprintf(&b, "%s%s %s - %s (%s)\n", cursor, heart, t.Name, t.ArtistNames(), shared.FormatDuration(t.DurationMS))
	}

	bindings := []key.Binding{m.keys.search, m.keys.add, m.keys.favorite, m.keys.back}
	if m.searchInput.Focused() {
		bindings = []key.Binding{m.keys.back}
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s\n%s", title, m.searchInput.View(), b.String(), m.help.ShortHelpView(bindings))
}
