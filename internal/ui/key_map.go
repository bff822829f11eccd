package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up       key.Binding
	down     key.Binding
	next     key.Binding
	back     key.Binding
	playlist key.Binding
	favorite key.Binding
	inspect  key.Binding
	search   key.Binding
	add      key.Binding
	generate key.Binding
	remove   key.Binding
	moveUp   key.Binding
	moveDown key.Binding
	clear    key.Binding
	export   key.Binding
	save     key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		next:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "inspect next")),
		back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		playlist: key.NewBinding(key.WithKeys("p", "tab"), key.WithHelp("p", "playlist")),
		favorite: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "toggle favorite")),
		inspect:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "inspect")),
		search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		add:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add to playlist")),
		generate: key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "generate")),
		remove:   key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "remove")),
		moveUp:   key.NewBinding(key.WithKeys("K"), key.WithHelp("K", "move up")),
		moveDown: key.NewBinding(key.WithKeys("J"), key.WithHelp("J", "move down")),
		clear:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear")),
		export:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export markdown")),
		save:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.next, k.back},
		{k.playlist, k.favorite, k.inspect, k.search, k.add, k.generate},
		{k.remove, k.moveUp, k.moveDown, k.clear},
		{k.export, k.save, k.quit},
	}
}
