package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap 快捷键；Allow/Deny 只在授权弹窗打开时生效
// KeyMap holds the TUI bindings. Allow and Deny apply only while the consent
// dialog is open; every other binding is ignored then.
type KeyMap struct {
	Quit        key.Binding
	SwitchPanel key.Binding
	Submit      key.Binding
	// Suggest picks a suggestion chip of the latest agent message by number.
	Suggest    key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	PageUp     key.Binding
	PageDown   key.Binding

	Allow key.Binding
	Deny  key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit:        key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "quit")),
		SwitchPanel: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "panel")),
		Submit:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		Suggest: key.NewBinding(
			key.WithKeys("alt+1", "alt+2", "alt+3", "alt+4", "alt+5", "alt+6", "alt+7", "alt+8", "alt+9"),
			key.WithHelp("alt+1…9", "suggestion"),
		),
		ScrollUp:   key.NewBinding(key.WithKeys("ctrl+up"), key.WithHelp("ctrl+↑", "scroll")),
		ScrollDown: key.NewBinding(key.WithKeys("ctrl+down"), key.WithHelp("ctrl+↓", "scroll")),
		PageUp:     key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "page up")),
		PageDown:   key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "page down")),

		Allow: key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "allow")),
		Deny:  key.NewBinding(key.WithKeys("n", "N", "esc"), key.WithHelp("n", "deny")),
	}
}

// suggestionIndex maps "alt+3" to 3.
func suggestionIndex(k string) int {
	if len(k) == 0 {
		return 0
	}
	d := k[len(k)-1]
	if d < '1' || d > '9' {
		return 0
	}
	return int(d - '0')
}
