// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/tastemixer/internal/formatter"
	"github.com/desertthunder/tastemixer/internal/tasks"
	"github.com/urfave/cli/v3"
)

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
			Value: true,
		},
	}
}

// selectionFlags are the preference widgets as flags.
func selectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "artist",
			Usage: "Artist name, resolved to the best catalog match (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "genre",
			Usage: "Genre from the vocabulary (repeatable)",
		},
		&cli.IntSliceFlag{
			Name:  "decade",
			Usage: "Decade such as 1990 (repeatable)",
		},
		&cli.StringFlag{
			Name:  "popularity",
			Usage: "Mainstream, Popular, Underground or a min-max range",
		},
		&cli.StringFlag{
			Name:  "mood",
			Usage: "Mood preset (Happy, Sad, Energetic, Calm, Party, Chill)",
		},
	}
}

// outputFlags control how a generated playlist is written.
func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: text, markdown, csv or json",
			Value:   formatter.FormatText,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write to a file instead of stdout",
		},
		&cli.StringFlag{
			Name:  "name",
			Usage: "Playlist name",
			Value: "Taste Mix",
		},
		&cli.BoolFlag{
			Name:  "save",
			Usage: "Store the playlist in the database",
		},
		&cli.IntFlag{
			Name:  "seed",
			Usage: "Seed for reproducible shuffles (0 is random)",
		},
	}
}

// setupCommand initializes the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml if missing, initialize database and run migrations",
		Action: r.Setup,
	}
}

// authCommand runs the Spotify authorization flow.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "auth",
		Usage:  "Authenticate with Spotify using OAuth2",
		Action: r.Auth,
	}
}

func meCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "me",
		Usage:  "Show the authenticated Spotify profile",
		Flags:  jsonFlags(),
		Action: r.Me,
	}
}

// favoritesCommand handles favorites CRUD.
func favoritesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "favorites",
		Aliases: []string{"fav"},
		Usage:   "Manage favorite tracks",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List favorite tracks",
				Flags:  jsonFlags(),
				Action: r.FavoritesList,
			},
			{
				Name:  "add",
				Usage: "Search for a track and favorite one of the results",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "query"},
				},
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "pick",
						Usage: "Favorite the Nth search result (0 lists the results)",
					},
				},
				Action: r.FavoritesAdd,
			},
			{
				Name:  "remove",
				Usage: "Remove a favorite by track id",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.FavoritesRemove,
			},
			{
				Name:  "import",
				Usage: "Import favorites from a JSON array of tracks",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "replace",
						Usage: "Replace the stored favorites instead of merging",
					},
				},
				Action: r.FavoritesImport,
			},
			{
				Name:  "export",
				Usage: "Export favorites as a JSON array of tracks",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file (default: stdout)",
					},
				},
				Action: r.FavoritesExport,
			},
		},
	}
}

// generateCommand handles playlist synthesis.
func generateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "generate",
		Aliases: []string{"gen"},
		Usage:   "Generate a playlist",
		Commands: []*cli.Command{
			{
				Name:   "favorites",
				Usage:  "Generate a playlist from your favorites",
				Flags:  outputFlags(),
				Action: r.GenerateFavorites,
			},
			{
				Name:   "preferences",
				Usage:  "Generate a playlist from artists, genres, decades and popularity",
				Flags:  append(outputFlags(), selectionFlags()...),
				Action: r.GeneratePreferences,
			},
		},
	}
}

func previewCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "preview",
		Usage: "Preview one preference widget (artists, genres, decades, popularity, mood)",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "kind"},
		},
		Flags: append(append([]cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Number of preview tracks",
				Value: tasks.DefaultPreviewLimit,
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Paging offset",
			},
		}, selectionFlags()...), jsonFlags()...),
		Action: r.Preview,
	}
}

// playlistsCommand handles saved playlists.
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "Manage saved playlists",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List saved playlists",
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of playlists to return (0 for all)",
						Value: 50,
					},
				}, jsonFlags()...),
				Action: r.PlaylistsList,
			},
			{
				Name:  "show",
				Usage: "Print a saved playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: text, markdown, csv or json",
						Value:   formatter.FormatText,
					},
				},
				Action: r.PlaylistsShow,
			},
			{
				Name:  "delete",
				Usage: "Delete a saved playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.PlaylistsDelete,
			},
			{
				Name:  "export",
				Usage: "Export saved playlists to a directory with a manifest",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "id",
						Usage: "Playlist id to export (repeatable; default: all)",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: json, csv, markdown or text",
						Value:   formatter.FormatJSON,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: tastemixer_export_{epoch})",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent export workers",
						Value: 5,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the export manifest as JSON",
					},
				},
				Action: r.PlaylistsExport,
			},
		},
	}
}

func graphCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "graph",
		Usage: "Lay out the favorites similarity graph and print it",
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:  "ticks",
				Usage: "Simulation frames to run before printing",
				Value: 120,
			},
			&cli.IntFlag{
				Name:  "seed",
				Usage: "Seed for reproducible layouts (0 is random)",
			},
			&cli.StringFlag{
				Name:  "click",
				Usage: "Resolve the node under layout point x,y",
			},
		}, jsonFlags()...),
		Action: r.Graph,
	}
}

// dashboardCommand returns the top-level TUI command.
func dashboardCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "dashboard",
		Aliases: []string{"tui", "ui"},
		Usage:   "Launch the interactive terminal dashboard",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "fps",
				Usage: "Graph animation frames per second",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  "export-dir",
				Usage: "Directory for markdown exports",
				Value: "exports",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where dashboard logs are written",
				Value: "./tmp/tastemixer-tui.log",
			},
		},
		Action: r.Dashboard,
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the dashboard JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default: [server] host:port)",
			},
		},
		Action: r.Serve,
	}
}
