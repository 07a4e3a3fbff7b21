package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit          key.Binding
	Search        key.Binding
	FilterRule    key.Binding
	Sort          key.Binding
	Copy          key.Binding
	ClearFilter   key.Binding
	Unlabeled     key.Binding
	TruePositive  key.Binding
	FalsePositive key.Binding
	Informational key.Binding
	Unclassify    key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Search: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "search"),
	),
	FilterRule: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "filter rule"),
	),
	Sort: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "cycle sort"),
	),
	Copy: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "copy fingerprint"),
	),
	ClearFilter: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "clear"),
	),
	Unlabeled: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "unlabeled only"),
	),
	TruePositive: key.NewBinding(
		key.WithKeys("t", "1"),
		key.WithHelp("t", "true positive"),
	),
	FalsePositive: key.NewBinding(
		key.WithKeys("f", "2"),
		key.WithHelp("f", "false positive"),
	),
	Informational: key.NewBinding(
		key.WithKeys("i", "3"),
		key.WithHelp("i", "informational"),
	),
	Unclassify: key.NewBinding(
		key.WithKeys("u", "0"),
		key.WithHelp("u", "unclassify"),
	),
}
