package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/desertthunder/tastemixer/internal/graph"
	"github.com/desertthunder/tastemixer/internal/models"
	"github.com/desertthunder/tastemixer/internal/shared"
	"github.com/urfave/cli/v3"
)

// newSimulation builds a simulation sized from the graph config. A zero seed picks a random layout.
func (r *Runner) newSimulation(seed uint64) *graph.Simulation {
	var rng *rand.Rand
	if seed != 0 {
		rng = rand.New(rand.NewPCG(seed, seed))
	}
	return graph.NewSimulation(r.config.Graph.Width, r.config.Graph.Height, rng)
}

// parsePoint parses "x,y" in layout coordinates.
func parsePoint(s string) (graph.Vec, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return graph.Vec{}, fmt.Errorf("%w: expected x,y, got %q", shared.ErrInvalidArgument, s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return graph.Vec{}, fmt.Errorf("%w: bad x %q", shared.ErrInvalidArgument, xs)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return graph.Vec{}, fmt.Errorf("%w: bad y %q", shared.ErrInvalidArgument, ys)
	}
	return graph.Vec{X: x, Y: y}, nil
}

// Graph lays out the favorites graph, runs it for a number of frames and prints the result. With --click it
// reports the node under a point instead.
func (r *Runner) Graph(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	set, err := r.favorites.Load(ctx)
	if err != nil {
		return err
	}

	loop := graph.NewLoop(r.newSimulation(uint64(cmd.Int("seed"))), r.config.Graph.FPS, r.logger)
	loop.Reconcile(set.Tracks())
	loop.Step(cmd.Int("ticks"))
	snap := loop.Snapshot()

	if click := cmd.String("click"); click != "" {
		p, err := parsePoint(click)
		if err != nil {
			return err
		}
		n, ok := loop.NodeAt(p)
		if !ok {
			return fmt.Errorf("%w: no node at %.1f,%.1f", shared.ErrTrackNotFound, p.X, p.Y)
		}
		if cmd.Bool("json") {
			return r.writeJSON(n.Track, true)
		}
		return r.writeTable(trackHeader, trackRows([]models.Track{n.Track}))
	}

	if cmd.Bool("json") {
		return r.writeJSON(snap, cmd.Bool("pretty"))
	}

	r.writePlain("%d nodes, %d edges after %d ticks (t=%.2f)\n", len(snap.Nodes), len(snap.Edges), cmd.Int("ticks"), snap.Time)
	rows := make([][]string, len(snap.Nodes))
	for i, n := range snap.Nodes {
		rows[i] = []string{
			n.Track.Name,
			n.Track.ArtistNames(),
			n.Track.Tier(),
			strconv.FormatFloat(n.Pos.X, 'f', 1, 64),
			strconv.FormatFloat(n.Pos.Y, 'f', 1, 64),
			n.ID,
		}
	}
	if err := r.writeTable([]string{"Title", "Artists", "Tier", "X", "Y", "ID"}, rows); err != nil {
		return err
	}

	if len(snap.Edges) == 0 {
		return nil
	}
	names := make(map[string]string, len(snap.Nodes))
	for _, n := range snap.Nodes {
		names[n.ID] = n.Track.Name
	}
	edges := make([][]string, len(snap.Edges))
	for i, e := range snap.Edges {
		edges[i] = []string{names[e.Source], names[e.Target], e.Type, strconv.FormatFloat(e.Strength, 'f', 2, 64)}
	}
	return r.writeTable([]string{"From", "To", "Similarity", "Strength"}, edges)
}
