package graph

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Placeholder is shown for nodes whose thumbnail is missing or failed to load.
const Placeholder = "♪"

// ThumbState is the load state of a node thumbnail.
type ThumbState int

const (
	ThumbMissing ThumbState = iota
	ThumbPending
	ThumbReady
	ThumbFailed
)

func (s ThumbState) String() string {
	switch s {
	case ThumbPending:
		return "pending"
	case ThumbReady:
		return "ready"
	case ThumbFailed:
		return "failed"
	default:
		return "missing"
	}
}

// maxThumbBytes bounds a single image download.
const maxThumbBytes = 1 << 20

type thumb struct {
	state ThumbState
	data  []byte
	ctype string
}

// Thumbnails fetches node images in the background. Each id is requested at most once.
type Thumbnails struct {
	mu      sync.RWMutex
	entries map[string]*thumb
	client  *http.Client
	logger  *log.Logger
	ctx     context.Context
	wg      sync.WaitGroup
}

// NewThumbnails creates a fetcher whose downloads are bound to ctx.
func NewThumbnails(ctx context.Context, client *http.Client, logger *log.Logger) *Thumbnails {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Thumbnails{entries: make(map[string]*thumb), client: client, logger: logger, ctx: ctx}
}

// Request starts loading url for id unless a load was already started. An empty url marks the id failed.
func (t *Thumbnails) Request(id, url string) {
	t.mu.Lock()
	if _, ok := t.entries[id]; ok {
		t.mu.Unlock()
		return
	}
	if url == "" {
		t.entries[id] = &thumb{state: ThumbFailed}
		t.mu.Unlock()
		return
	}
	pending := &thumb{state: ThumbPending}
	t.entries[id] = pending
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		data, ctype, err := t.fetch(url)

		t.mu.Lock()
		defer t.mu.Unlock()
		// Forgotten or re-requested while in flight.
		if t.entries[id] != pending {
			return
		}
		if err != nil {
			t.logger.Debug("thumbnail failed", "id", id, "error", err)
			t.entries[id] = &thumb{state: ThumbFailed}
			return
		}
		t.entries[id] = &thumb{state: ThumbReady, data: data, ctype: ctype}
	}()
}

func (t *Thumbnails) fetch(url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(t.ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxThumbBytes))
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// State reports the load state for id.
func (t *Thumbnails) State(id string) ThumbState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if e, ok := t.entries[id]; ok {
		return e.state
	}
	return ThumbMissing
}

// Image returns the loaded bytes and content type when the thumbnail is ready.
func (t *Thumbnails) Image(id string) ([]byte, string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[id]
	if !ok || e.state != ThumbReady {
		return nil, "", false
	}
	return e.data, e.ctype, true
}

// Glyph is the text rendered for id: empty once an image is ready, the placeholder otherwise.
func (t *Thumbnails) Glyph(id string) string {
	if t.State(id) == ThumbReady {
		return ""
	}
	return Placeholder
}

// Forget drops the entry for id so a later Request fetches again.
func (t *Thumbnails) Forget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}

// Wait blocks until all in-flight fetches have finished.
func (t *Thumbnails) Wait() { t.wg.Wait() }
