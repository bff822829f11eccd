// Package ui implements the interactive dashboard using bubbletea's Elm architecture.
//
// The TUI has three views:
//  1. [GraphView] : the favorites similarity graph, drawn as a character canvas and stepped on a frame clock
//  2. [InspectView] : details of a clicked (or cycled to) track, with favorite and add-to-playlist actions
//  3. [PlaylistView] : the working playlist, with synthesis, reordering, markdown export and save
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Synthesis progress flows through a channel from the PlaylistEngine, so the canvas keeps animating while a playlist is built.
//
// Mouse clicks are mapped from terminal cells back to layout coordinates and resolved against the graph's hit test.
package ui
