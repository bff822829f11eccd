package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tastemixer/internal/formatter"
	"github.com/desertthunder/tastemixer/internal/graph"
	"github.com/desertthunder/tastemixer/internal/metrics"
	"github.com/desertthunder/tastemixer/internal/models"
	"github.com/desertthunder/tastemixer/internal/repositories"
	"github.com/desertthunder/tastemixer/internal/services"
	"github.com/desertthunder/tastemixer/internal/shared"
	"github.com/desertthunder/tastemixer/internal/tasks"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
)

const (
	maxBodyBytes     = 1 << 20
	defaultStreamFPS = 20
	streamWriteWait  = 5 * time.Second
	listLimit        = 100
)

var validate = validator.New()

// DashboardDeps are the collaborators of a [DashboardHandler].
type DashboardDeps struct {
	Catalog   services.Catalog
	Engine    *tasks.PlaylistEngine
	Favorites *repositories.FavoriteRepository
	Playlists *repositories.PlaylistRepository
	Graph     *graph.Loop
	Thumbs    *graph.Thumbnails
	Metrics   *metrics.Metrics
	Logger    *log.Logger

	// AllowedOrigins restricts websocket upgrades; empty allows any origin.
	AllowedOrigins []string
	StreamFPS      int
}

// DashboardHandler serves the JSON API under /api/.
type DashboardHandler struct {
	deps     DashboardDeps
	mux      *http.ServeMux
	upgrader websocket.Upgrader
	logger   *log.Logger

	// mu serializes favorite mutations with the graph reconcile that follows them.
	mu sync.Mutex
}

func NewDashboardHandler(deps DashboardDeps) *DashboardHandler {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.StreamFPS <= 0 {
		deps.StreamFPS = defaultStreamFPS
	}

	h := &DashboardHandler{
		deps:   deps,
		mux:    http.NewServeMux(),
		logger: shared.WithLogger(deps.Logger, "component", "api"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      h.checkOrigin,
	}

	h.mux.HandleFunc("GET /api/me", h.me)
	h.mux.HandleFunc("GET /api/favorites", h.listFavorites)
	h.mux.HandleFunc("POST /api/favorites", h.addFavorite)
	h.mux.HandleFunc("DELETE /api/favorites/{id}", h.removeFavorite)
	h.mux.HandleFunc("GET /api/graph", h.graphSnapshot)
	h.mux.HandleFunc("POST /api/graph/click", h.graphClick)
	h.mux.HandleFunc("GET /api/graph/stream", h.graphStream)
	h.mux.HandleFunc("GET /api/thumbs/{id}", h.thumbnail)
	h.mux.HandleFunc("POST /api/playlist/favorites", h.generateFromFavorites)
	h.mux.HandleFunc("POST /api/playlist/preferences", h.generateFromPreferences)
	h.mux.HandleFunc("POST /api/previews/{kind}", h.preview)
	h.mux.HandleFunc("GET /api/search/tracks", h.searchTracks)
	h.mux.HandleFunc("GET /api/search/artists", h.searchArtists)
	h.mux.HandleFunc("GET /api/vocabulary", h.vocabulary)
	h.mux.HandleFunc("GET /api/playlists", h.listPlaylists)
	h.mux.HandleFunc("POST /api/playlists", h.createPlaylist)
	h.mux.HandleFunc("GET /api/playlists/{id}", h.getPlaylist)
	h.mux.HandleFunc("DELETE /api/playlists/{id}", h.deletePlaylist)
	h.mux.HandleFunc("GET /api/playlists/{id}/export", h.exportPlaylist)
	return h
}

func (h *DashboardHandler) Routes() []string {
	return []string{"/api/"}
}

func (h *DashboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Sync loads the stored favorites into the graph. Call it once before serving.
func (h *DashboardHandler) Sync(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, err := h.deps.Favorites.Load(ctx)
	if err != nil {
		return err
	}
	h.reconcile(set)
	return nil
}

// reconcile brings the graph and the thumbnail cache in line with set. Callers hold h.mu.
func (h *DashboardHandler) reconcile(set *models.FavoriteSet) {
	if h.deps.Graph == nil {
		return
	}
	tracks := set.Tracks()
	delta := h.deps.Graph.Reconcile(tracks)
	if h.deps.Thumbs != nil {
		for _, id := range delta.Removed {
			h.deps.Thumbs.Forget(id)
		}
		for _, t := range tracks {
			if slices.Contains(delta.Added, t.ID) {
				h.deps.Thumbs.Request(t.ID, t.Thumbnail())
			}
		}
	}
	snap := h.deps.Graph.Snapshot()
	h.deps.Metrics.SetGraphSize(len(snap.Nodes), len(snap.Edges))
}

type apiError struct {
	Error    string `json:"error"`
	Detail   string `json:"detail,omitempty"`
	Count    *int   `json:"count,omitempty"`
	Required *int   `json:"required,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps err onto an HTTP status and the sentinel it matched.
func statusFor(err error) (int, error) {
	switch {
	case errors.Is(err, shared.ErrCredentialInvalid):
		return http.StatusUnauthorized, shared.ErrCredentialInvalid
	case errors.Is(err, shared.ErrNotAuthenticated):
		return http.StatusUnauthorized, shared.ErrNotAuthenticated
	case errors.Is(err, shared.ErrInsufficientFavorites):
		return http.StatusUnprocessableEntity, shared.ErrInsufficientFavorites
	case errors.Is(err, shared.ErrInvalidSelection):
		return http.StatusBadRequest, shared.ErrInvalidSelection
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrInvalidArgument):
		return http.StatusBadRequest, shared.ErrInvalidInput
	case errors.Is(err, shared.ErrPlaylistNotFound):
		return http.StatusNotFound, shared.ErrPlaylistNotFound
	case errors.Is(err, shared.ErrTrackNotFound):
		return http.StatusNotFound, shared.ErrTrackNotFound
	case errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, shared.ErrServiceUnavailable
	case errors.Is(err, shared.ErrQueryFailure):
		return http.StatusBadGateway, shared.ErrQueryFailure
	default:
		return http.StatusInternalServerError, errors.New("internal error")
	}
}

func (h *DashboardHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, sentinel := statusFor(err)
	body := apiError{Error: sentinel.Error(), Detail: err.Error()}

	var insufficient *tasks.InsufficientFavoritesError
	if errors.As(err, &insufficient) {
		body.Count = &insufficient.Count
		body.Required = &insufficient.Required
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "error", err, "request_id", RequestIDFrom(r.Context()))
	}
	writeJSON(w, status, body)
}

// decode reads a JSON body into v and validates it. An empty body leaves v untouched when allowEmpty is set.
func decode(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (h *DashboardHandler) me(w http.ResponseWriter, r *http.Request) {
	if h.deps.Catalog == nil {
		h.writeError(w, r, shared.ErrNotAuthenticated)
		return
	}
	user, err := h.deps.Catalog.CurrentUser(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *DashboardHandler) listFavorites(w http.ResponseWriter, r *http.Request) {
	set, err := h.deps.Favorites.Load(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

type favoriteRequest struct {
	Track *models.Track `json:"track" validate:"required"`
}

type favoriteResponse struct {
	Changed   bool                `json:"changed"`
	Favorites *models.FavoriteSet `json:"favorites"`
}

func (h *DashboardHandler) addFavorite(w http.ResponseWriter, r *http.Request) {
	var req favoriteRequest
	if err := decode(w, r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := validate.Var(req.Track.ID, "required"); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: track id: %v", shared.ErrInvalidInput, err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	set, added, err := h.deps.Favorites.Add(r.Context(), *req.Track)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.reconcile(set)

	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, status, favoriteResponse{Changed: added, Favorites: set})
}

func (h *DashboardHandler) removeFavorite(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	h.mu.Lock()
	defer h.mu.Unlock()
	set, removed, err := h.deps.Favorites.Remove(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !removed {
		h.writeError(w, r, fmt.Errorf("%w: %s is not a favorite", shared.ErrTrackNotFound, id))
		return
	}
	h.reconcile(set)
	writeJSON(w, http.StatusOK, favoriteResponse{Changed: true, Favorites: set})
}

func (h *DashboardHandler) graphSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.deps.Graph == nil {
		h.writeError(w, r, fmt.Errorf("%w: graph not running", shared.ErrServiceUnavailable))
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Graph.Snapshot())
}

type clickRequest struct {
	X *float64 `json:"x" validate:"required"`
	Y *float64 `json:"y" validate:"required"`
}

func (h *DashboardHandler) graphClick(w http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if err := decode(w, r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	if h.deps.Graph == nil {
		h.writeError(w, r, fmt.Errorf("%w: graph not running", shared.ErrServiceUnavailable))
		return
	}
	node, ok := h.deps.Graph.NodeAt(graph.Vec{X: *req.X, Y: *req.Y})
	if !ok {
		h.writeError(w, r, fmt.Errorf("%w: no node at (%.1f, %.1f)", shared.ErrTrackNotFound, *req.X, *req.Y))
		return
	}
	writeJSON(w, http.StatusOK, node.Track)
}

func (h *DashboardHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.deps.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(h.deps.AllowedOrigins, origin)
}

// graphStream pushes a snapshot to a websocket client at the configured rate until either side goes away.
func (h *DashboardHandler) graphStream(w http.ResponseWriter, r *http.Request) {
	if h.deps.Graph == nil {
		h.writeError(w, r, fmt.Errorf("%w: graph not running", shared.ErrServiceUnavailable))
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second / time.Duration(h.deps.StreamFPS))
	defer ticker.Stop()
	for {
		conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(h.deps.Graph.Snapshot()); err != nil {
			h.logger.Debug("graph stream closed", "error", err)
			return
		}
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(streamWriteWait))
			return
		case <-ticker.C:
		}
	}
}

type thumbResponse struct {
	State string `json:"state"`
	Glyph string `json:"glyph"`
}

// thumbnail serves the artwork of a favorite once loaded; until then it reports the load state with the
// placeholder glyph.
func (h *DashboardHandler) thumbnail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if h.deps.Thumbs == nil {
		h.writeError(w, r, fmt.Errorf("%w: thumbnails disabled", shared.ErrServiceUnavailable))
		return
	}
	if data, ctype, ok := h.deps.Thumbs.Image(id); ok {
		if ctype != "" {
			w.Header().Set("Content-Type", ctype)
		}
		w.Header().Set("Cache-Control", "max-age=3600")
		w.Write(data)
		return
	}

	set, err := h.deps.Favorites.Load(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	t, ok := set.Get(id)
	if !ok {
		h.writeError(w, r, fmt.Errorf("%w: %s is not a favorite", shared.ErrTrackNotFound, id))
		return
	}
	h.deps.Thumbs.Request(id, t.Thumbnail())

	state := h.deps.Thumbs.State(id)
	status := http.StatusAccepted
	if state == graph.ThumbFailed {
		status = http.StatusOK
	}
	writeJSON(w, status, thumbResponse{State: state.String(), Glyph: h.deps.Thumbs.Glyph(id)})
}

type generateRequest struct {
	Name      string           `json:"name" validate:"max=100"`
	Save      bool             `json:"save"`
	Selection models.Selection `json:"selection"`
}

type playlistResponse struct {
	Playlist *models.Playlist `json:"playlist"`
	Sequence int              `json:"sequence,omitempty"`
}

func (h *DashboardHandler) generateFromFavorites(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decode(w, r, &req, true); err != nil {
		h.writeError(w, r, err)
		return
	}
	set, err := h.deps.Favorites.Load(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	start := time.Now()
	tracks, err := h.deps.Engine.FromFavorites(r.Context(), set.Tracks(), nil)
	h.deps.Metrics.ObserveSynthesis(models.SourceFavorites, time.Since(start), len(tracks), err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondPlaylist(w, r, req, models.SourceFavorites, "From your favorites", tracks)
}

func (h *DashboardHandler) generateFromPreferences(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decode(w, r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	start := time.Now()
	tracks, err := h.deps.Engine.FromPreferences(r.Context(), req.Selection, nil)
	h.deps.Metrics.ObserveSynthesis(models.SourcePreferences, time.Since(start), len(tracks), err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondPlaylist(w, r, req, models.SourcePreferences, "From your preferences", tracks)
}

func (h *DashboardHandler) respondPlaylist(w http.ResponseWriter, r *http.Request, req generateRequest, source, name string, tracks []models.Track) {
	if req.Name != "" {
		name = req.Name
	}
	p := models.NewPlaylist(name)
	p.Source = source
	p.Replace(tracks)

	if !req.Save {
		writeJSON(w, http.StatusOK, playlistResponse{Playlist: p})
		return
	}
	saved, err := h.deps.Playlists.Create(r.Context(), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, playlistResponse{Playlist: saved.Playlist, Sequence: saved.Sequence})
}

type previewRequest struct {
	Selection models.Selection `json:"selection"`
	Limit     int              `json:"limit" validate:"gte=0,lte=50"`
	Offset    int              `json:"offset" validate:"gte=0,lte=1000"`
}

func (h *DashboardHandler) preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decode(w, r, &req, true); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := req.Selection.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, sel := r.Context(), req.Selection
	var (
		tracks []models.Track
		err    error
	)
	switch kind := r.PathValue("kind"); kind {
	case "artists":
		tracks, err = h.deps.Engine.PreviewArtists(ctx, sel.ArtistIDs(), req.Limit)
	case "genres":
		tracks, err = h.deps.Engine.PreviewGenres(ctx, sel.Genres, req.Limit, req.Offset)
	case "decades":
		tracks, err = h.deps.Engine.PreviewDecades(ctx, sel.Decades, req.Limit, req.Offset)
	case "popularity":
		if sel.Popularity == nil {
			err = fmt.Errorf("%w: popularity range required", shared.ErrInvalidInput)
			break
		}
		tracks, err = h.deps.Engine.PreviewPopularity(ctx, *sel.Popularity, req.Limit, req.Offset)
	case "mood":
		if sel.Mood == nil {
			err = fmt.Errorf("%w: mood required", shared.ErrInvalidInput)
			break
		}
		tracks, err = h.deps.Engine.PreviewMood(ctx, *sel.Mood, req.Limit)
	default:
		err = fmt.Errorf("%w: unknown preview %q", shared.ErrInvalidInput, kind)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(tracks))
}

func (h *DashboardHandler) searchTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.deps.Engine.SearchTracks(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(tracks))
}

func (h *DashboardHandler) searchArtists(w http.ResponseWriter, r *http.Request) {
	artists, err := h.deps.Engine.SearchArtists(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(artists))
}

type vocabulary struct {
	Genres     []string                    `json:"genres"`
	Decades    []int                       `json:"decades"`
	Popularity []models.PopularityCategory `json:"popularity"`
	Moods      []models.MoodPreset         `json:"moods"`
	Caps       map[string]int              `json:"caps"`
}

func (h *DashboardHandler) vocabulary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, vocabulary{
		Genres:     models.Genres,
		Decades:    models.Decades,
		Popularity: models.PopularityCategories,
		Moods:      models.MoodPresets,
		Caps: map[string]int{
			"artists": models.MaxArtists,
			"genres":  models.MaxGenres,
			"decades": models.MaxDecades,
			"tracks":  models.MaxTracks,
		},
	})
}

func (h *DashboardHandler) listPlaylists(w http.ResponseWriter, r *http.Request) {
	limit := listLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			err = validate.Var(n, "gte=1,lte=100")
		}
		if err != nil {
			h.writeError(w, r, fmt.Errorf("%w: limit: %v", shared.ErrInvalidInput, err))
			return
		}
		limit = n
	}
	saved, err := h.deps.Playlists.List(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(saved))
}

type createPlaylistRequest struct {
	Name   string         `json:"name" validate:"required,max=100"`
	Source string         `json:"source" validate:"omitempty,oneof=favorites preferences manual"`
	Tracks []models.Track `json:"tracks" validate:"max=500"`
}

func (h *DashboardHandler) createPlaylist(w http.ResponseWriter, r *http.Request) {
	var req createPlaylistRequest
	if err := decode(w, r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	p := models.NewPlaylist(req.Name)
	if req.Source != "" {
		p.Source = req.Source
	}
	for _, t := range req.Tracks {
		p.Add(t)
	}
	saved, err := h.deps.Playlists.Create(r.Context(), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (h *DashboardHandler) getPlaylist(w http.ResponseWriter, r *http.Request) {
	saved, err := h.deps.Playlists.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *DashboardHandler) deletePlaylist(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Playlists.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var exportContentTypes = map[string]string{
	"csv":      "text/csv; charset=utf-8",
	"markdown": "text/markdown; charset=utf-8",
	"text":     "text/plain; charset=utf-8",
	"json":     "application/json",
}

func (h *DashboardHandler) exportPlaylist(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	format, err := formatter.ParseFormat(format)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	saved, err := h.deps.Playlists.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	data, err := formatter.Render(saved.Playlist, format)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if ctype, ok := exportContentTypes[format]; ok {
		w.Header().Set("Content-Type", ctype)
	}
	w.Write(data)
}
