package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tastemixer/internal/metrics"
	"github.com/desertthunder/tastemixer/internal/repositories"
	"github.com/desertthunder/tastemixer/internal/services"
	"github.com/desertthunder/tastemixer/internal/shared"
	"github.com/desertthunder/tastemixer/internal/tasks"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	catalog    services.Catalog
	spotify    services.OAuthService
	db         *sql.DB
	favorites  *repositories.FavoriteRepository
	playlists  *repositories.PlaylistRepository
	metrics    *metrics.Metrics
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	engine     *tasks.PlaylistEngine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	// Catalog is the (usually guarded) catalog the engine queries.
	Catalog services.Catalog
	// Spotify is used for interactive (re)authorization; nil disables it.
	Spotify    services.OAuthService
	DB         *sql.DB
	Metrics    *metrics.Metrics
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		catalog:    opts.Catalog,
		spotify:    opts.Spotify,
		db:         opts.DB,
		metrics:    opts.Metrics,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
	if opts.DB != nil {
		r.favorites = repositories.NewFavoriteRepository(repositories.NewKVStore(opts.DB), opts.Logger)
		r.playlists = repositories.NewPlaylistRepository(opts.DB)
	}
	r.engine = r.newEngine(0)
	return r
}

// newEngine builds a playlist engine from the synthesis and catalog config. A non-zero seed makes shuffles
// reproducible. Without a catalog the engine can still export saved playlists.
func (r *Runner) newEngine(seed uint64) *tasks.PlaylistEngine {
	opts := []tasks.EngineOption{
		tasks.WithTarget(r.config.Synthesis.Target),
		tasks.WithMinFavorites(r.config.Synthesis.MinFavorites),
		tasks.WithConcurrency(r.config.Catalog.Concurrency),
		tasks.WithTimeout(r.config.Catalog.RequestTimeout()),
		tasks.WithLogger(shared.WithLogger(r.logger, "component", "engine")),
	}
	if seed != 0 {
		opts = append(opts, tasks.WithRand(rand.New(rand.NewPCG(seed, seed))))
	}
	return tasks.NewPlaylistEngine(r.catalog, opts...)
}

// SetLogger swaps the logger used by the runner and its engine.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
	r.engine = r.newEngine(0)
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, meCommand, favoritesCommand, generateCommand, previewCommand,
		playlistsCommand, graphCommand, dashboardCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// requireCatalog reports a missing catalog (no client credentials configured) as a service error.
func (r *Runner) requireCatalog() error {
	if r.catalog == nil {
		return fmt.Errorf("%w: Spotify is not configured; set client_id and client_secret in %s", shared.ErrServiceUnavailable, r.configName())
	}
	return nil
}

func (r *Runner) requireStore() error {
	if r.favorites == nil || r.playlists == nil {
		return fmt.Errorf("%w: database not initialized; run `tastemixer setup`", shared.ErrServiceUnavailable)
	}
	return nil
}

func (r *Runner) configName() string {
	if r.configPath == "" {
		return "config.toml"
	}
	return r.configPath
}

// saveTokens stores token in the config and writes it back to disk.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	if r.config == nil {
		return fmt.Errorf("%w: no configuration loaded", shared.ErrMissingConfig)
	}
	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}
	if err := shared.SaveConfig(r.configName(), r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// needsAuth reports whether err means the catalog has no usable credential.
func needsAuth(err error) bool {
	return errors.Is(err, shared.ErrCredentialInvalid) || errors.Is(err, shared.ErrNotAuthenticated)
}

// withReauth runs fn and, when the catalog lacks or rejects the credential, reauthorizes interactively and runs
// it once more.
func (r *Runner) withReauth(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || !needsAuth(err) || r.spotify == nil {
		return err
	}

	r.writePlainln("⚠ Spotify rejected the stored credential. Starting reauthorization...")
	if err := r.authorize(ctx, "reauthorization"); err != nil {
		return fmt.Errorf("reauthorization failed: %w", err)
	}
	r.writePlain("✓ Reauthorized. Retrying...\n\n")
	return fn()
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// writeTable renders rows under header as a text table.
func (r *Runner) writeTable(header []string, rows [][]string) error {
	table := tablewriter.NewWriter(r.output)
	table.Header(header)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}

// readJSONFile decodes the JSON file at path into v.
func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s is not valid JSON: %v", shared.ErrInvalidInput, path, err)
	}
	return nil
}
