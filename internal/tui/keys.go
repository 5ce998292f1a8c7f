package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the admin screen key bindings with built-in help text.
type KeyMap struct {
	Quit      key.Binding
	ForceQuit key.Binding
	Help      key.Binding

	NextCollection key.Binding
	PrevCollection key.Binding
	NextGroup      key.Binding
	PrevGroup      key.Binding
	Up             key.Binding
	Down           key.Binding

	MoveUp     key.Binding
	MoveDown   key.Binding
	MoveTop    key.Binding
	MoveBottom key.Binding

	Feature key.Binding
	Visible key.Binding
	Reload  key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "force quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		NextCollection: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next collection"),
		),
		PrevCollection: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "prev collection"),
		),
		NextGroup: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "next group"),
		),
		PrevGroup: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "prev group"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		MoveUp: key.NewBinding(
			key.WithKeys("K", "shift+up"),
			key.WithHelp("K", "move up"),
		),
		MoveDown: key.NewBinding(
			key.WithKeys("J", "shift+down"),
			key.WithHelp("J", "move down"),
		),
		MoveTop: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "move to top"),
		),
		MoveBottom: key.NewBinding(
			key.WithKeys("G"),
			key.WithHelp("G", "move to bottom"),
		),
		Feature: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "featured"),
		),
		Visible: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "visible"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.MoveUp, k.MoveDown, k.Feature, k.Visible, k.NextCollection, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.NextGroup, k.PrevGroup, k.NextCollection, k.PrevCollection},
		{k.MoveUp, k.MoveDown, k.MoveTop, k.MoveBottom},
		{k.Feature, k.Visible, k.Reload, k.Help, k.Quit, k.ForceQuit},
	}
}
