package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds every global and pane shortcut. Plain letters are left to
// the list filters, so file operations sit on function keys.
type keyMap struct {
	Quit      key.Binding
	ForceQuit key.Binding
	NextPane  key.Binding
	PrevPane  key.Binding
	Up        key.Binding
	Down      key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
	Top       key.Binding
	Bottom    key.Binding
	Select    key.Binding
	Back      key.Binding
	Escape    key.Binding
	Backspace key.Binding
	Refresh   key.Binding
	Rename    key.Binding
	Download  key.Binding
	Upload    key.Binding
	Mkdir     key.Binding
	Delete    key.Binding
	Chmod     key.Binding
	Run       key.Binding
	Filter    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit:      key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "exit")),
		ForceQuit: key.NewBinding(key.WithKeys("ctrl+c")),
		NextPane:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch pane")),
		PrevPane:  key.NewBinding(key.WithKeys("shift+tab")),
		Up:        key.NewBinding(key.WithKeys("up")),
		Down:      key.NewBinding(key.WithKeys("down")),
		PageUp:    key.NewBinding(key.WithKeys("pgup")),
		PageDown:  key.NewBinding(key.WithKeys("pgdown")),
		Top:       key.NewBinding(key.WithKeys("home", "g")),
		Bottom:    key.NewBinding(key.WithKeys("end", "G")),
		Select:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		Back:      key.NewBinding(key.WithKeys("left")),
		Escape:    key.NewBinding(key.WithKeys("esc")),
		Backspace: key.NewBinding(key.WithKeys("backspace")),
		Refresh:   key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("^R", "refresh")),
		Rename:    key.NewBinding(key.WithKeys("f2"), key.WithHelp("F2", "rename")),
		Download:  key.NewBinding(key.WithKeys("f5"), key.WithHelp("F5", "download")),
		Upload:    key.NewBinding(key.WithKeys("f6"), key.WithHelp("F6", "upload")),
		Mkdir:     key.NewBinding(key.WithKeys("f7"), key.WithHelp("F7", "mkdir")),
		Delete:    key.NewBinding(key.WithKeys("f8"), key.WithHelp("F8", "delete")),
		Chmod:     key.NewBinding(key.WithKeys("f9"), key.WithHelp("F9", "chmod")),
		Run:       key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("^X", "run command")),
		Filter:    key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
	}
}
