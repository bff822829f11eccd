// Package graph maintains the favorites similarity graph and its force layout.
//
// # Scoring
//
// [Score] compares two tracks against a fixed, ordered list of criteria. Each criterion that holds adds
// its weight to the connection strength. The first criterion that contributes names the connection's
// primary type. A pair is linked when the summed strength exceeds [EdgeThreshold].
//
// # Simulation
//
// [Simulation] holds nodes, edges, the camera angle and the time accumulator for one graph. It has no
// goroutines of its own: [Simulation.Tick] advances it one step. [Loop] owns a simulation, ticks it at a
// fixed rate and serializes access for concurrent readers such as HTTP handlers.
//
// Membership changes go through [Simulation.Reconcile], which diffs the favorite set against the
// current nodes, places new nodes on a spiral and recomputes every edge.
package graph
