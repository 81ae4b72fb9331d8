package explore

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

type keyMap struct {
	Up, Down, Left, Right   key.Binding
	PageUp, PageDown        key.Binding
	Home, End               key.Binding
	FocusFilters, FocusHits key.Binding
	FocusDetails            key.Binding
	ToggleFilter            key.Binding
	ResetFilter             key.Binding
	ToggleFilters           key.Binding
	SortNext, SortReverse   key.Binding
	ShowTree, OpenTrace     key.Binding
	ToggleHelp              key.Binding
	Quit, ForceQuit         key.Binding
}

func bind(help, desc string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(help, desc))
}

var defaultKeys = keyMap{
	Up:            bind("k/up", "move up", "up", "k"),
	Down:          bind("j/down", "move down", "down", "j"),
	Left:          bind("h/left", "previous evidence, fold facet", "left", "h"),
	Right:         bind("l/right", "next evidence, unfold facet", "right", "l"),
	PageUp:        bind("C-b", "page up", "pgup", "ctrl+b"),
	PageDown:      bind("C-f", "page down", "pgdown", "ctrl+f"),
	Home:          bind("g", "top", "home", "g"),
	End:           bind("G", "bottom", "end", "G"),
	FocusFilters:  bind("F1", "focus filters", "f1"),
	FocusHits:     bind("f", "focus hits", "f"),
	FocusDetails:  bind("d", "focus details", "d"),
	ToggleFilter:  bind("x/space", "toggle facet value", "x", " ", "enter"),
	ResetFilter:   bind("C-r", "reset filters", "ctrl+r"),
	ToggleFilters: bind("F7", "show/hide filters", "f7"),
	SortNext:      bind("s", "cycle sort column", "s"),
	SortReverse:   bind("S", "reverse sort", "S"),
	ShowTree:      bind("t", "result tree", "t"),
	OpenTrace:     bind("o", "open trace in $PAGER", "o"),
	ToggleHelp:    bind("?", "help", "?"),
	Quit:          bind("q", "quit, close overlay", "q"),
	ForceQuit:     bind("C-c", "quit", "ctrl+c"),
}

// helpSections groups the bindings shown on the help overlay.
func (k keyMap) helpSections() []helpSection {
	return []helpSection{
		{"NAVIGATION", []key.Binding{k.Up, k.Down, k.Left, k.Right, k.PageDown, k.PageUp, k.Home, k.End}},
		{"FOCUS", []key.Binding{k.FocusFilters, k.FocusHits, k.FocusDetails, k.ToggleFilters}},
		{"FILTERS", []key.Binding{k.ToggleFilter, k.ResetFilter}},
		{"VIEWS", []key.Binding{k.SortNext, k.SortReverse, k.ShowTree, k.OpenTrace, k.ToggleHelp}},
		{"QUIT", []key.Binding{k.Quit, k.ForceQuit}},
	}
}

type helpSection struct {
	Title    string
	Bindings []key.Binding
}

// renderHelp lists every binding by section.
func renderHelp() string {
	var b strings.Builder
	b.WriteString("capmatch explore - Interactive Hit Browser\n")
	for _, s := range defaultKeys.helpSections() {
		fmt.Fprintf(&b, "\n%s\n", s.Title)
		for _, kb := range s.Bindings {
			h := kb.Help()
			fmt.Fprintf(&b, "  %-12s %s\n", h.Key, h.Desc)
		}
	}
	return b.String()
}
