package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/tastemixer/internal/shared"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, OutcomeOK},
		{fmt.Errorf("%w: 401", shared.ErrCredentialInvalid), OutcomeCredentialInvalid},
		{shared.ErrInsufficientFavorites, OutcomeInsufficient},
		{errors.New("boom"), OutcomeError},
	}
	for _, tt := range tests {
		if got := Outcome(tt.err); got != tt.want {
			t.Errorf("Outcome(%v): expected %s, got %s", tt.err, tt.want, got)
		}
	}
}

func TestMetrics(t *testing.T) {
	t.Run("catalog", func(t *testing.T) {
		m := New()
		m.ObserveCatalog("search_tracks", 10*time.Millisecond, nil)
		m.ObserveCatalog("search_tracks", 10*time.Millisecond, shared.ErrQueryFailure)
		m.ObserveCatalog("search_tracks", 10*time.Millisecond, nil)

		if got := testutil.ToFloat64(m.CatalogQueries.WithLabelValues("search_tracks", OutcomeOK)); got != 2 {
			t.Errorf("expected 2 ok queries, got %v", got)
		}
		if got := testutil.ToFloat64(m.CatalogQueries.WithLabelValues("search_tracks", OutcomeError)); got != 1 {
			t.Errorf("expected 1 failed query, got %v", got)
		}
	})

	t.Run("breaker state", func(t *testing.T) {
		m := New()
		m.SetBreakerState("open")
		if got := testutil.ToFloat64(m.BreakerState.WithLabelValues("open")); got != 1 {
			t.Errorf("expected open=1, got %v", got)
		}
		m.SetBreakerState("closed")
		if got := testutil.ToFloat64(m.BreakerState.WithLabelValues("open")); got != 0 {
			t.Errorf("expected open=0, got %v", got)
		}
	})

	t.Run("synthesis and graph", func(t *testing.T) {
		m := New()
		m.ObserveSynthesis("favorites", time.Second, 30, nil)
		m.ObserveSynthesis("favorites", time.Millisecond, 0, shared.ErrInsufficientFavorites)
		m.SetGraphSize(6, 15)

		if got := testutil.ToFloat64(m.SynthesisRuns.WithLabelValues("favorites", OutcomeInsufficient)); got != 1 {
			t.Errorf("expected 1 insufficient run, got %v", got)
		}
		if got := testutil.ToFloat64(m.GraphEdges); got != 15 {
			t.Errorf("expected 15 edges, got %v", got)
		}
	})

	t.Run("handler exposes collectors", func(t *testing.T) {
		m := New()
		m.ObserveHTTP("GET", "/api/graph", 200, time.Millisecond)

		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
		body, _ := io.ReadAll(rec.Body)
		if !strings.Contains(string(body), `tastemixer_http_requests_total{method="GET",route="/api/graph",status="200"} 1`) {
			t.Errorf("expected request counter in output, got:\n%s", body)
		}
	})

	t.Run("nil is a no-op", func(t *testing.T) {
		var m *Metrics
		m.ObserveCatalog("x", 0, nil)
		m.SetBreakerState("open")
		m.ObserveSynthesis("x", 0, 0, nil)
		m.SetGraphSize(1, 1)
		m.ObserveHTTP("GET", "/", 200, 0)
		if m.Registry() != nil {
			t.Error("expected nil registry")
		}
	})
}
