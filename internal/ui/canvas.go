package ui

import (
	"math"
	"strings"

	"github.com/desertthunder/tastemixer/internal/graph"
)

const (
	nodeGlyph  = "●"
	imageGlyph = "◉"
	edgeGlyph  = "·"
	labelWidth = 14
)

// canvas maps a layout snapshot onto a cols×rows character grid.
type canvas struct {
	cols, rows int
	width      float64
	height     float64
}

func newCanvas(snap graph.Snapshot, cols, rows int) canvas {
	return canvas{cols: max(cols, 1), rows: max(rows, 1), width: snap.Width, height: snap.Height}
}

// cell returns the grid cell holding layout point p, clamped to the grid.
func (c canvas) cell(p graph.Vec) (int, int) {
	x := int(p.X / c.width * float64(c.cols))
	y := int(p.Y / c.height * float64(c.rows))
	return min(max(x, 0), c.cols-1), min(max(y, 0), c.rows-1)
}

// point returns the layout point at the centre of cell (x, y).
func (c canvas) point(x, y int) graph.Vec {
	return graph.Vec{
		X: (float64(x) + 0.5) / float64(c.cols) * c.width,
		Y: (float64(y) + 0.5) / float64(c.rows) * c.height,
	}
}

// nodeAt finds the node drawn in cell (x, y).
func (c canvas) nodeAt(snap graph.Snapshot, x, y int) (graph.Node, bool) {
	for _, n := range snap.Nodes {
		if cx, cy := c.cell(n.Pos); cx == x && cy == y {
			return n, true
		}
	}
	return graph.Node{}, false
}

// render draws edges first, then nodes with a short label. glyph returns the thumbnail placeholder for a node
// id, or "" when its artwork has loaded.
func (c canvas) render(snap graph.Snapshot, glyph func(id string) string) string {
	grid := make([][]string, c.rows)
	for y := range grid {
		grid[y] = make([]string, c.cols)
		for x := range grid[y] {
			grid[y][x] = " "
		}
	}

	pos := make(map[string]graph.Vec, len(snap.Nodes))
	for _, n := range snap.Nodes {
		pos[n.ID] = n.Pos
	}
	for _, e := range snap.Edges {
		a, okA := pos[e.Source]
		b, okB := pos[e.Target]
		if !okA || !okB {
			continue
		}
		c.line(grid, a, b)
	}

	for _, n := range snap.Nodes {
		x, y := c.cell(n.Pos)
		g := nodeGlyph
		if glyph != nil {
			if glyph(n.ID) == "" {
				g = imageGlyph
			} else {
				g = glyph(n.ID)
			}
		}
		grid[y][x] = tierStyle(n.Track.Tier()).Render(g)

		label := []rune(n.Track.Name)
		if len(label) > labelWidth {
			label = append(label[:labelWidth-1], '…')
		}
		for i, r := range label {
			lx := x + 2 + i
			if lx >= c.cols || grid[y][lx] != " " && grid[y][lx] != edgeStyle.Render(edgeGlyph) {
				break
			}
			grid[y][lx] = string(r)
		}
	}

	var b strings.Builder
	for y, row := range grid {
		if y > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.Join(row, ""))
	}
	return b.String()
}

// line plots a dotted segment between two layout points, leaving the end cells for the nodes.
func (c canvas) line(grid [][]string, a, b graph.Vec) {
	ax, ay := c.cell(a)
	bx, by := c.cell(b)
	steps := max(abs(bx-ax), abs(by-ay))
	for i := 1; i < steps; i++ {
		t := float64(i) / float64(steps)
		x := int(math.Round(float64(ax) + t*float64(bx-ax)))
		y := int(math.Round(float64(ay) + t*float64(by-ay)))
		if grid[y][x] == " " {
			grid[y][x] = edgeStyle.Render(edgeGlyph)
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
