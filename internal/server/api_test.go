package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/tastemixer/internal/graph"
	"github.com/desertthunder/tastemixer/internal/metrics"
	"github.com/desertthunder/tastemixer/internal/models"
	"github.com/desertthunder/tastemixer/internal/repositories"
	"github.com/desertthunder/tastemixer/internal/shared"
	"github.com/desertthunder/tastemixer/internal/tasks"
	th "github.com/desertthunder/tastemixer/internal/testing"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type testEnv struct {
	catalog *th.MockCatalog
	handler *DashboardHandler
	router  *BasicRouter
	graph   *graph.Loop
	thumbs  *graph.Thumbnails
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := shared.NewLogger(io.Discard)
	cat := th.NewMockCatalog()
	loop := graph.NewLoop(graph.NewSimulation(800, 500, rand.New(rand.NewPCG(1, 2))), 0, logger)
	thumbs := graph.NewThumbnails(t.Context(), nil, logger)
	m := metrics.New()

	h := NewDashboardHandler(DashboardDeps{
		Catalog:   cat,
		Engine:    tasks.NewPlaylistEngine(cat, tasks.WithRand(rand.New(rand.NewPCG(1, 2))), tasks.WithLogger(logger)),
		Favorites: repositories.NewFavoriteRepository(repositories.NewKVStore(db), logger),
		Playlists: repositories.NewPlaylistRepository(db),
		Graph:     loop,
		Thumbs:    thumbs,
		Metrics:   m,
		Logger:    logger,
		StreamFPS: 50,
	})

	router := NewBasicRouter()
	router.Use(RequestID(), Recover(logger), Metrics(m))
	router.Handler(h)

	return &testEnv{catalog: cat, handler: h, router: router, graph: loop, thumbs: thumbs, metrics: m}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

// favoriteTracks returns n tracks by n distinct artists.
func favoriteTracks(n int) []models.Track {
	out := make([]models.Track, n)
	for i := range n {
		out[i] = th.Track(fmt.Sprintf("fav%d", i), fmt.Sprintf("artist%d", i), fmt.Sprintf("Artist %d", i))
	}
	return out
}

type favoritesBody struct {
	Changed   bool           `json:"changed"`
	Favorites []models.Track `json:"favorites"`
}

type playlistBody struct {
	Playlist struct {
		ID     string         `json:"id"`
		Name   string         `json:"name"`
		Source string         `json:"source"`
		Tracks []models.Track `json:"tracks"`
	} `json:"playlist"`
	Sequence int `json:"sequence"`
}

func TestDashboardProfile(t *testing.T) {
	t.Run("returns the current user", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, "GET", "/api/me", nil)
		expectStatus(t, rec, http.StatusOK)

		user := decodeBody[models.User](t, rec)
		if user.ID != "mock-user" {
			t.Errorf("expected mock-user, got %s", user.ID)
		}
	})

	t.Run("rejected credential is 401", func(t *testing.T) {
		env := newTestEnv(t)
		env.catalog.Err = fmt.Errorf("%w: token expired", shared.ErrCredentialInvalid)

		rec := env.do(t, "GET", "/api/me", nil)
		expectStatus(t, rec, http.StatusUnauthorized)
		body := decodeBody[apiError](t, rec)
		if body.Error != "credential invalid" {
			t.Errorf("expected credential invalid, got %q", body.Error)
		}
	})

	t.Run("wrong method is 405", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, "POST", "/api/vocabulary", nil)
		expectStatus(t, rec, http.StatusMethodNotAllowed)
	})
}

func TestDashboardFavorites(t *testing.T) {
	t.Run("add, list and remove", func(t *testing.T) {
		env := newTestEnv(t)
		tr := th.Track("t1", "a1", "Artist")

		rec := env.do(t, "POST", "/api/favorites", map[string]any{"track": tr})
		expectStatus(t, rec, http.StatusCreated)
		if body := decodeBody[favoritesBody](t, rec); !body.Changed || len(body.Favorites) != 1 {
			t.Errorf("expected one added favorite, got %+v", body)
		}

		rec = env.do(t, "POST", "/api/favorites", map[string]any{"track": tr})
		expectStatus(t, rec, http.StatusOK)
		if body := decodeBody[favoritesBody](t, rec); body.Changed {
			t.Error("expected duplicate add to report no change")
		}

		snap := env.graph.Snapshot()
		if len(snap.Nodes) != 1 || snap.Nodes[0].ID != "t1" {
			t.Errorf("expected graph node t1, got %+v", snap.Nodes)
		}
		if got := testutil.ToFloat64(env.metrics.GraphNodes); got != 1 {
			t.Errorf("expected graph_nodes 1, got %v", got)
		}

		rec = env.do(t, "GET", "/api/favorites", nil)
		expectStatus(t, rec, http.StatusOK)
		if list := decodeBody[[]models.Track](t, rec); len(list) != 1 {
			t.Errorf("expected 1 favorite, got %d", len(list))
		}

		rec = env.do(t, "DELETE", "/api/favorites/t1", nil)
		expectStatus(t, rec, http.StatusOK)
		if n := len(env.graph.Snapshot().Nodes); n != 0 {
			t.Errorf("expected empty graph, got %d nodes", n)
		}
	})

	t.Run("removing an unknown id is 404", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, "DELETE", "/api/favorites/missing", nil)
		expectStatus(t, rec, http.StatusNotFound)
	})

	t.Run("invalid bodies are 400", func(t *testing.T) {
		env := newTestEnv(t)
		for _, body := range []string{`{`, `{}`, `{"track":{"name":"no id"}}`} {
			rec := env.do(t, "POST", "/api/favorites", body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("body %s: expected 400, got %d", body, rec.Code)
			}
		}
	})

	t.Run("sync loads stored favorites into the graph", func(t *testing.T) {
		env := newTestEnv(t)
		for _, tr := range favoriteTracks(3) {
			if _, _, err := env.handler.deps.Favorites.Add(t.Context(), tr); err != nil {
				t.Fatalf("failed to add favorite: %v", err)
			}
		}
		if err := env.handler.Sync(t.Context()); err != nil {
			t.Fatalf("Sync failed: %v", err)
		}
		if n := len(env.graph.Snapshot().Nodes); n != 3 {
			t.Errorf("expected 3 nodes, got %d", n)
		}
	})
}

func TestDashboardGraph(t *testing.T) {
	env := newTestEnv(t)
	for _, tr := range favoriteTracks(2) {
		expectStatus(t, env.do(t, "POST", "/api/favorites", map[string]any{"track": tr}), http.StatusCreated)
	}

	t.Run("snapshot", func(t *testing.T) {
		rec := env.do(t, "GET", "/api/graph", nil)
		expectStatus(t, rec, http.StatusOK)
		snap := decodeBody[graph.Snapshot](t, rec)
		if len(snap.Nodes) != 2 {
			t.Errorf("expected 2 nodes, got %d", len(snap.Nodes))
		}
	})

	t.Run("click on a node", func(t *testing.T) {
		node := env.graph.Snapshot().Nodes[0]
		rec := env.do(t, "POST", "/api/graph/click", map[string]float64{"x": node.Pos.X, "y": node.Pos.Y})
		expectStatus(t, rec, http.StatusOK)
		if got := decodeBody[models.Track](t, rec); got.ID != node.ID {
			t.Errorf("expected %s, got %s", node.ID, got.ID)
		}
	})

	t.Run("click on empty space", func(t *testing.T) {
		rec := env.do(t, "POST", "/api/graph/click", map[string]float64{"x": -500, "y": -500})
		expectStatus(t, rec, http.StatusNotFound)
	})

	t.Run("click requires both coordinates", func(t *testing.T) {
		rec := env.do(t, "POST", "/api/graph/click", `{"x": 1}`)
		expectStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("stream pushes snapshots", func(t *testing.T) {
		srv := httptest.NewServer(env.router)
		defer srv.Close()

		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/graph/stream"
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("failed to dial stream: %v", err)
		}
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		for range 2 {
			var snap graph.Snapshot
			if err := conn.ReadJSON(&snap); err != nil {
				t.Fatalf("failed to read snapshot: %v", err)
			}
			if len(snap.Nodes) != 2 {
				t.Errorf("expected 2 nodes, got %d", len(snap.Nodes))
			}
		}
	})
}

func TestDashboardThumbnails(t *testing.T) {
	img := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png"))
	}))
	defer img.Close()

	env := newTestEnv(t)
	withArt := th.Track("art", "a1", "A")
	withArt.Album.Images = []models.Image{{URL: img.URL + "/cover.png", Width: 64, Height: 64}}
	noArt := th.Track("plain", "a2", "B")
	for _, tr := range []models.Track{withArt, noArt} {
		expectStatus(t, env.do(t, "POST", "/api/favorites", map[string]any{"track": tr}), http.StatusCreated)
	}
	env.thumbs.Wait()

	t.Run("ready image is served", func(t *testing.T) {
		rec := env.do(t, "GET", "/api/thumbs/art", nil)
		expectStatus(t, rec, http.StatusOK)
		if rec.Body.String() != "png" {
			t.Errorf("expected png body, got %q", rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("expected image/png, got %s", ct)
		}
	})

	t.Run("missing artwork falls back to the glyph", func(t *testing.T) {
		rec := env.do(t, "GET", "/api/thumbs/plain", nil)
		expectStatus(t, rec, http.StatusOK)
		body := decodeBody[thumbResponse](t, rec)
		if body.Glyph != graph.Placeholder || body.State != graph.ThumbFailed.String() {
			t.Errorf("expected failed placeholder, got %+v", body)
		}
	})

	t.Run("unknown track is 404", func(t *testing.T) {
		expectStatus(t, env.do(t, "GET", "/api/thumbs/nope", nil), http.StatusNotFound)
	})
}

func TestDashboardSynthesis(t *testing.T) {
	t.Run("insufficient favorites reports the count", func(t *testing.T) {
		env := newTestEnv(t)
		for _, tr := range favoriteTracks(3) {
			env.do(t, "POST", "/api/favorites", map[string]any{"track": tr})
		}

		rec := env.do(t, "POST", "/api/playlist/favorites", nil)
		expectStatus(t, rec, http.StatusUnprocessableEntity)
		body := decodeBody[apiError](t, rec)
		if body.Error != "insufficient favorites" {
			t.Errorf("expected insufficient favorites, got %q", body.Error)
		}
		if body.Count == nil || *body.Count != 3 {
			t.Errorf("expected count 3, got %v", body.Count)
		}
		if body.Required == nil || *body.Required != 5 {
			t.Errorf("expected required 5, got %v", body.Required)
		}
		if n := len(env.catalog.Calls()); n != 0 {
			t.Errorf("expected no catalog calls, got %d", n)
		}
		if got := testutil.ToFloat64(env.metrics.SynthesisRuns.WithLabelValues("favorites", metrics.OutcomeInsufficient)); got != 1 {
			t.Errorf("expected 1 insufficient run recorded, got %v", got)
		}
	})

	t.Run("favorites playlist is generated and saved", func(t *testing.T) {
		env := newTestEnv(t)
		for i, tr := range favoriteTracks(5) {
			env.do(t, "POST", "/api/favorites", map[string]any{"track": tr})
			artist := fmt.Sprintf("artist%d", i)
			env.catalog.TopTracks[artist] = th.Tracks(artist, artist, artist, 10)
		}

		rec := env.do(t, "POST", "/api/playlist/favorites", map[string]any{"name": "Mix", "save": true})
		expectStatus(t, rec, http.StatusCreated)
		body := decodeBody[playlistBody](t, rec)
		if len(body.Playlist.Tracks) != tasks.DefaultTarget {
			t.Errorf("expected %d tracks, got %d", tasks.DefaultTarget, len(body.Playlist.Tracks))
		}
		if body.Playlist.Name != "Mix" || body.Playlist.Source != models.SourceFavorites {
			t.Errorf("unexpected playlist header %+v", body.Playlist)
		}
		if body.Sequence != 1 {
			t.Errorf("expected sequence 1, got %d", body.Sequence)
		}
		for _, tr := range body.Playlist.Tracks {
			if strings.HasPrefix(tr.ID, "fav") {
				t.Errorf("favorite %s leaked into the playlist", tr.ID)
			}
		}

		rec = env.do(t, "GET", "/api/playlists", nil)
		expectStatus(t, rec, http.StatusOK)
		if list := decodeBody[[]json.RawMessage](t, rec); len(list) != 1 {
			t.Errorf("expected 1 saved playlist, got %d", len(list))
		}
	})

	t.Run("preferences playlist", func(t *testing.T) {
		env := newTestEnv(t)
		env.catalog.Searches[`genre:"rock"`] = th.Tracks("rock", "r", "R", 20)

		rec := env.do(t, "POST", "/api/playlist/preferences", map[string]any{
			"selection": models.Selection{Genres: []string{"rock"}},
		})
		expectStatus(t, rec, http.StatusOK)
		body := decodeBody[playlistBody](t, rec)
		if len(body.Playlist.Tracks) != 20 || body.Playlist.ID == "" {
			t.Errorf("expected 20 tracks in an unsaved playlist, got %d", len(body.Playlist.Tracks))
		}
		if body.Sequence != 0 {
			t.Errorf("expected unsaved playlist, got sequence %d", body.Sequence)
		}
	})

	t.Run("invalid selection is 400", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, "POST", "/api/playlist/preferences", map[string]any{
			"selection": map[string]any{"genres": []string{"not-a-genre"}},
		})
		expectStatus(t, rec, http.StatusBadRequest)
		if body := decodeBody[apiError](t, rec); body.Error != "invalid selection" {
			t.Errorf("expected invalid selection, got %q", body.Error)
		}
	})
}

func TestDashboardPreviews(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.Searches[`genre:"jazz"`] = th.Tracks("jazz", "j", "J", 20)

	t.Run("genres", func(t *testing.T) {
		rec := env.do(t, "POST", "/api/previews/genres", map[string]any{
			"selection": models.Selection{Genres: []string{"jazz"}},
			"limit":     5,
		})
		expectStatus(t, rec, http.StatusOK)
		if got := decodeBody[[]models.Track](t, rec); len(got) != 5 {
			t.Errorf("expected 5 tracks, got %d", len(got))
		}
	})

	t.Run("empty selection is an empty list", func(t *testing.T) {
		rec := env.do(t, "POST", "/api/previews/decades", nil)
		expectStatus(t, rec, http.StatusOK)
		if rec.Body.String() != "[]\n" {
			t.Errorf("expected [], got %q", rec.Body.String())
		}
	})

	t.Run("popularity needs a range", func(t *testing.T) {
		expectStatus(t, env.do(t, "POST", "/api/previews/popularity", `{}`), http.StatusBadRequest)
	})

	t.Run("unknown kind", func(t *testing.T) {
		expectStatus(t, env.do(t, "POST", "/api/previews/tempo", `{}`), http.StatusBadRequest)
	})

	t.Run("limit is validated", func(t *testing.T) {
		expectStatus(t, env.do(t, "POST", "/api/previews/genres", `{"limit": 500}`), http.StatusBadRequest)
	})
}

func TestDashboardSearchAndVocabulary(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.Searches["daft"] = th.Tracks("d", "x", "Daft", 30)

	t.Run("tracks", func(t *testing.T) {
		rec := env.do(t, "GET", "/api/search/tracks?q=daft", nil)
		expectStatus(t, rec, http.StatusOK)
		if got := decodeBody[[]models.Track](t, rec); len(got) != 10 {
			t.Errorf("expected 10 results, got %d", len(got))
		}
	})

	t.Run("empty query", func(t *testing.T) {
		rec := env.do(t, "GET", "/api/search/artists?q=", nil)
		expectStatus(t, rec, http.StatusOK)
		if rec.Body.String() != "[]\n" {
			t.Errorf("expected [], got %q", rec.Body.String())
		}
	})

	t.Run("vocabulary", func(t *testing.T) {
		rec := env.do(t, "GET", "/api/vocabulary", nil)
		expectStatus(t, rec, http.StatusOK)
		v := decodeBody[vocabulary](t, rec)
		if len(v.Genres) != len(models.Genres) || v.Caps["decades"] != models.MaxDecades {
			t.Errorf("unexpected vocabulary %+v", v)
		}
	})
}

func TestDashboardSavedPlaylists(t *testing.T) {
	env := newTestEnv(t)
	tracks := []models.Track{th.Track("s1", "a", "A"), th.Track("s2", "b", "B")}

	rec := env.do(t, "POST", "/api/playlists", map[string]any{"name": "Road Trip", "tracks": tracks})
	expectStatus(t, rec, http.StatusCreated)
	created := decodeBody[struct {
		Playlist struct {
			ID string `json:"id"`
		} `json:"playlist"`
	}](t, rec)
	id := created.Playlist.ID

	t.Run("get", func(t *testing.T) {
		rec := env.do(t, "GET", "/api/playlists/"+id, nil)
		expectStatus(t, rec, http.StatusOK)
		if body := decodeBody[playlistBody](t, rec); len(body.Playlist.Tracks) != 2 {
			t.Errorf("expected 2 tracks, got %d", len(body.Playlist.Tracks))
		}
	})

	t.Run("export csv", func(t *testing.T) {
		rec := env.do(t, "GET", "/api/playlists/"+id+"/export?format=csv", nil)
		expectStatus(t, rec, http.StatusOK)
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
			t.Errorf("expected text/csv, got %s", ct)
		}
		if !strings.Contains(rec.Body.String(), "Track s2") {
			t.Errorf("expected track in export, got %q", rec.Body.String())
		}
	})

	t.Run("export unknown format", func(t *testing.T) {
		expectStatus(t, env.do(t, "GET", "/api/playlists/"+id+"/export?format=xml", nil), http.StatusBadRequest)
	})

	t.Run("create requires a name", func(t *testing.T) {
		expectStatus(t, env.do(t, "POST", "/api/playlists", `{"tracks": []}`), http.StatusBadRequest)
	})

	t.Run("delete then 404", func(t *testing.T) {
		expectStatus(t, env.do(t, "DELETE", "/api/playlists/"+id, nil), http.StatusNoContent)
		expectStatus(t, env.do(t, "GET", "/api/playlists/"+id, nil), http.StatusNotFound)
		expectStatus(t, env.do(t, "DELETE", "/api/playlists/"+id, nil), http.StatusNotFound)
	})

	t.Run("requests are counted by route", func(t *testing.T) {
		got := testutil.ToFloat64(env.metrics.HTTPRequests.WithLabelValues("GET", "GET /api/playlists/{id}", "200"))
		if got != 1 {
			t.Errorf("expected 1 counted request, got %v", got)
		}
	})
}
