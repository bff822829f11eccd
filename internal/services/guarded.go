package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tastemixer/internal/metrics"
	"github.com/desertthunder/tastemixer/internal/models"
	"github.com/desertthunder/tastemixer/internal/shared"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// GuardOptions configures a [GuardedCatalog].
type GuardOptions struct {
	// RequestsPerSecond paces outgoing requests; zero or less disables pacing.
	RequestsPerSecond float64
	Burst             int

	// BreakerFailures is the number of consecutive failures that opens the breaker.
	BreakerFailures uint32
	// BreakerCooldown is how long the breaker stays open before letting a trial request through.
	BreakerCooldown time.Duration

	Logger  *log.Logger
	Metrics *metrics.Metrics
}

// GuardedCatalog wraps a [Catalog] with a rate limiter and a circuit breaker.
type GuardedCatalog struct {
	inner   Catalog
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[any]
	logger  *log.Logger
	metrics *metrics.Metrics
}

// NewGuardedCatalog decorates inner. Zero options fall back to 5 failures and a 30 second cooldown.
func NewGuardedCatalog(inner Catalog, opts GuardOptions) *GuardedCatalog {
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = 30 * time.Second
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	g := &GuardedCatalog{
		inner:   inner,
		limiter: rate.NewLimiter(limit, opts.Burst),
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	g.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: 1,
		Timeout:     opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			g.metrics.SetBreakerState(to.String())
		},
		IsSuccessful: countsAsSuccess,
	})
	g.metrics.SetBreakerState(g.breaker.State().String())
	return g
}

// countsAsSuccess keeps caller-side errors from tripping the breaker.
func countsAsSuccess(err error) bool {
	return err == nil ||
		errors.Is(err, shared.ErrCredentialInvalid) ||
		errors.Is(err, shared.ErrInvalidInput) ||
		errors.Is(err, shared.ErrNotAuthenticated) ||
		errors.Is(err, context.Canceled)
}

// State reports the breaker state ("closed", "half-open" or "open").
func (g *GuardedCatalog) State() string {
	return g.breaker.State().String()
}

func guard[T any](ctx context.Context, g *GuardedCatalog, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	start := time.Now()
	v, err := guardOnce(ctx, g, op, fn)
	g.metrics.ObserveCatalog(op, time.Since(start), err)
	if err != nil {
		return zero, err
	}
	return v, nil
}

func guardOnce[T any](ctx context.Context, g *GuardedCatalog, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := g.limiter.Wait(ctx); err != nil {
		return zero, fmt.Errorf("%w: %s: %w", shared.ErrQueryFailure, op, err)
	}

	v, err := g.breaker.Execute(func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%w: %s: %w", shared.ErrQueryFailure, op, err)
		}
		return zero, err
	}
	return v.(T), nil
}

func (g *GuardedCatalog) CurrentUser(ctx context.Context) (*models.User, error) {
	return guard(ctx, g, "current user", g.inner.CurrentUser)
}

func (g *GuardedCatalog) ArtistTopTracks(ctx context.Context, artistID string) ([]models.Track, error) {
	return guard(ctx, g, "top tracks", func(ctx context.Context) ([]models.Track, error) {
		return g.inner.ArtistTopTracks(ctx, artistID)
	})
}

func (g *GuardedCatalog) RelatedArtists(ctx context.Context, artistID string) ([]models.Artist, error) {
	return guard(ctx, g, "related artists", func(ctx context.Context) ([]models.Artist, error) {
		return g.inner.RelatedArtists(ctx, artistID)
	})
}

func (g *GuardedCatalog) SearchTracks(ctx context.Context, query string, limit, offset int) ([]models.Track, error) {
	return guard(ctx, g, "search tracks", func(ctx context.Context) ([]models.Track, error) {
		return g.inner.SearchTracks(ctx, query, limit, offset)
	})
}

func (g *GuardedCatalog) SearchArtists(ctx context.Context, query string, limit int) ([]models.Artist, error) {
	return guard(ctx, g, "search artists", func(ctx context.Context) ([]models.Artist, error) {
		return g.inner.SearchArtists(ctx, query, limit)
	})
}
