package graph

import (
	"math"
	"math/rand/v2"

	"github.com/desertthunder/tastemixer/internal/models"
)

// Layout and physics parameters.
const (
	DefaultWidth  = 800.0
	DefaultHeight = 500.0
	NodeRadius    = 30.0

	spiralRadius = 150.0
	spiralGrowth = 30.0
	spiralStep   = math.Pi / 4
	cameraStep   = math.Pi / 6

	timeStep          = 0.016
	repulsionRange    = 100.0
	repulsionStrength = 2000.0
	linkDistance      = 100.0
	linkStrength      = 0.08
	anchorStrength    = 0.05
	wallMargin        = 60.0
	wallStrength      = 0.1
	forceScale        = 0.005
	damping           = 0.98
	driftStrength     = 0.1
)

// Vec is a 2D point or vector in layout units.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one favorite track in the layout.
type Node struct {
	ID     string       `json:"id"`
	Track  models.Track `json:"track"`
	Anchor Vec          `json:"anchor"`
	Pos    Vec          `json:"pos"`
	Vel    Vec          `json:"vel"`
	Radius float64      `json:"radius"`

	// ambient drift, fixed at creation
	driftX, driftY float64
	speed, phase   float64
}

// Contains reports whether p lies within the node's radius.
func (n *Node) Contains(p Vec) bool {
	return math.Hypot(p.X-n.Pos.X, p.Y-n.Pos.Y) <= n.Radius
}

// Edge links two nodes whose similarity exceeds [EdgeThreshold].
type Edge struct {
	Source   string   `json:"source"`
	Target   string   `json:"target"`
	Strength float64  `json:"strength"`
	Type     string   `json:"type"`
	Types    []string `json:"types"`
}

// Delta describes a reconciliation batch.
type Delta struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// Changed reports whether membership changed.
func (d Delta) Changed() bool { return len(d.Added) > 0 || len(d.Removed) > 0 }

// Snapshot is a copy of the graph state safe to hand to renderers.
type Snapshot struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Time   float64 `json:"time"`
	Camera float64 `json:"camera"`
	Nodes  []Node  `json:"nodes"`
	Edges  []Edge  `json:"edges"`
}

// Simulation is the state of one favorites graph. It is not safe for concurrent use; see [Loop].
type Simulation struct {
	width, height float64
	nodes         []*Node
	edges         []Edge
	camera        float64
	time          float64
	rng           *rand.Rand
}

// NewSimulation creates an empty simulation for a width×height viewport. Non-positive dimensions fall back
// to 800×500. rng drives node drift parameters; nil uses a randomly seeded source.
func NewSimulation(width, height float64, rng *rand.Rand) *Simulation {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Simulation{width: width, height: height, rng: rng}
}

// Reconcile brings the node set in line with favorites.
//
// Nodes whose track left the set are dropped with their edges. New tracks are placed on a spiral around the
// viewport centre that starts at the current camera angle, which turns by 30° for every batch with
// additions. Edges are then recomputed over all pairs.
func (s *Simulation) Reconcile(favorites []models.Track) Delta {
	current := make(map[string]struct{}, len(favorites))
	for _, t := range favorites {
		current[t.ID] = struct{}{}
	}

	var delta Delta
	kept := s.nodes[:0]
	for _, n := range s.nodes {
		if _, ok := current[n.ID]; ok {
			kept = append(kept, n)
		} else {
			delta.Removed = append(delta.Removed, n.ID)
		}
	}
	for i := len(kept); i < len(s.nodes); i++ {
		s.nodes[i] = nil
	}
	s.nodes = kept

	present := make(map[string]struct{}, len(s.nodes))
	for _, n := range s.nodes {
		present[n.ID] = struct{}{}
	}

	var added []models.Track
	for _, t := range favorites {
		if _, ok := present[t.ID]; ok || t.ID == "" {
			continue
		}
		present[t.ID] = struct{}{}
		added = append(added, t)
	}

	if len(added) > 0 {
		s.camera += cameraStep
		cx, cy := s.width/2, s.height/2
		for k, t := range added {
			angle := s.camera + float64(k)*spiralStep
			radius := spiralRadius + float64(k)*spiralGrowth
			anchor := Vec{X: cx + math.Cos(angle)*radius, Y: cy + math.Sin(angle)*radius}
			s.nodes = append(s.nodes, &Node{
				ID:     t.ID,
				Track:  t,
				Anchor: anchor,
				Pos:    anchor,
				Radius: NodeRadius,
				driftX: s.rng.Float64()*20 - 10,
				driftY: s.rng.Float64()*20 - 10,
				speed:  0.5 + s.rng.Float64()*0.5,
				phase:  s.rng.Float64() * 2 * math.Pi,
			})
			delta.Added = append(delta.Added, t.ID)
		}
	}

	if delta.Changed() {
		s.edges = ComputeEdges(s.nodes)
	}
	return delta
}

// ComputeEdges scores every unordered pair of nodes once.
func ComputeEdges(nodes []*Node) []Edge {
	var edges []Edge
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			c := Score(nodes[i].Track, nodes[j].Track)
			if !c.Linked() {
				continue
			}
			edges = append(edges, Edge{
				Source:   nodes[i].ID,
				Target:   nodes[j].ID,
				Strength: c.Strength,
				Type:     c.Type,
				Types:    c.Types,
			})
		}
	}
	return edges
}

// Tick advances the layout by one frame.
//
// Nodes are updated in place and in order, so later nodes see the positions already moved this frame.
func (s *Simulation) Tick() {
	s.time += timeStep

	neighbours := make(map[string][]neighbour, len(s.nodes))
	byID := make(map[string]*Node, len(s.nodes))
	for _, n := range s.nodes {
		byID[n.ID] = n
	}
	for _, e := range s.edges {
		src, dst := byID[e.Source], byID[e.Target]
		if src == nil || dst == nil {
			continue
		}
		neighbours[e.Source] = append(neighbours[e.Source], neighbour{node: dst, strength: e.Strength})
		neighbours[e.Target] = append(neighbours[e.Target], neighbour{node: src, strength: e.Strength})
	}

	for i, n := range s.nodes {
		var f Vec

		for j, other := range s.nodes {
			if i == j {
				continue
			}
			dx, dy := n.Pos.X-other.Pos.X, n.Pos.Y-other.Pos.Y
			d := distance(dx, dy)
			if d < repulsionRange {
				force := repulsionStrength / (d*d + 1)
				f.X += dx / d * force
				f.Y += dy / d * force
			}
		}

		for _, nb := range neighbours[n.ID] {
			dx, dy := nb.node.Pos.X-n.Pos.X, nb.node.Pos.Y-n.Pos.Y
			d := distance(dx, dy)
			force := (d - linkDistance) * linkStrength * nb.strength
			f.X += dx / d * force
			f.Y += dy / d * force
		}

		f.X += (n.Anchor.X - n.Pos.X) * anchorStrength
		f.Y += (n.Anchor.Y - n.Pos.Y) * anchorStrength

		f.X += wallForce(n.Pos.X, s.width)
		f.Y += wallForce(n.Pos.Y, s.height)

		drift := n.drift(s.time)

		n.Vel.X = (n.Vel.X + f.X*forceScale) * damping
		n.Vel.Y = (n.Vel.Y + f.Y*forceScale) * damping
		n.Pos.X += n.Vel.X + drift.X
		n.Pos.Y += n.Vel.Y + drift.Y
	}
}

type neighbour struct {
	node     *Node
	strength float64
}

func (n *Node) drift(t float64) Vec {
	return Vec{
		X: math.Sin(t*n.speed+n.phase) * n.driftX * driftStrength,
		Y: math.Cos(t*n.speed*0.7+n.phase) * n.driftY * driftStrength,
	}
}

// distance is the Euclidean length, with coincident points treated as one unit apart.
func distance(dx, dy float64) float64 {
	d := math.Hypot(dx, dy)
	if d == 0 {
		return 1
	}
	return d
}

// wallForce pushes a coordinate back inside [margin, limit-margin].
func wallForce(v, limit float64) float64 {
	switch {
	case v < wallMargin:
		return (wallMargin - v) * wallStrength
	case v > limit-wallMargin:
		return -(v - (limit - wallMargin)) * wallStrength
	}
	return 0
}

// NodeAt resolves a click to the first node, in node order, whose radius contains p.
func (s *Simulation) NodeAt(p Vec) (*Node, bool) {
	for _, n := range s.nodes {
		if n.Contains(p) {
			return n, true
		}
	}
	return nil, false
}

// Resize changes the viewport used by the boundary walls and future spiral placement.
func (s *Simulation) Resize(width, height float64) {
	if width > 0 {
		s.width = width
	}
	if height > 0 {
		s.height = height
	}
}

// Snapshot copies the current state.
func (s *Simulation) Snapshot() Snapshot {
	snap := Snapshot{
		Width:  s.width,
		Height: s.height,
		Time:   s.time,
		Camera: s.camera,
		Nodes:  make([]Node, len(s.nodes)),
		Edges:  make([]Edge, len(s.edges)),
	}
	for i, n := range s.nodes {
		snap.Nodes[i] = *n
	}
	copy(snap.Edges, s.edges)
	return snap
}

// Len is the number of nodes.
func (s *Simulation) Len() int { return len(s.nodes) }

// Edges returns a copy of the current edge set.
func (s *Simulation) Edges() []Edge {
	out := make([]Edge, len(s.edges))
	copy(out, s.edges)
	return out
}

// Camera is the current spiral start angle in radians.
func (s *Simulation) Camera() float64 { return s.camera }

// Time is the accumulated simulation time.
func (s *Simulation) Time() float64 { return s.time }
