// Package tui is an interactive Rete inspector: a live view of every
// node's tuple buffer plus the firing history recorded by
// internal/trace, used to debug a rule set against the mock host
// without digging through raw JSON audit logs.
//
// A list+viewport composition (Styles indirection,
// SetSize-on-WindowSizeMsg pattern): a list of selectable items on the
// left, a detail viewport on the right, here showing Rete nodes and
// firing events.
package tui

import (
	"fmt"
	"strings"

	"github.com/Alon769/lity/internal/facts"
	"github.com/Alon769/lity/internal/rete"
	"github.com/Alon769/lity/internal/trace"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Styles bundles the few lipgloss styles this inspector uses.
type Styles struct {
	Title   lipgloss.Style
	Header  lipgloss.Style
	Match   lipgloss.Style
	NoMatch lipgloss.Style
}

// DefaultStyles returns a reasonable default palette.
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		Match:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		NoMatch: lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	}
}

// nodeItem adapts one Rete node to list.Item.
type nodeItem struct {
	id   rete.NodeID
	kind string
	desc string
	size int
}

func (i nodeItem) Title() string { return fmt.Sprintf("#%d %s", i.id, i.kind) }
func (i nodeItem) Description() string {
	return fmt.Sprintf("%s — %d tuple(s)", i.desc, i.size)
}
func (i nodeItem) FilterValue() string { return i.desc }

// Model is the Bubble Tea model for the inspector: a node list on the
// left, a tuple/firing-history viewport on the right.
type Model struct {
	width, height int
	list          list.Model
	viewport      viewport.Model
	styles        Styles

	graph    *rete.Graph
	recorder *trace.Recorder
	selected *nodeItem
}

// New builds an inspector model over graph's current node set, with
// recorder supplying the firing history shown alongside each node's
// buffer (recorder may be nil, in which case no history is shown).
func New(graph *rete.Graph, recorder *trace.Recorder, ruleNames map[rete.NodeID]string) Model {
	l := list.New(buildItems(graph, ruleNames), list.NewDefaultDelegate(), 0, 0)
	l.Title = "Rete nodes"
	l.SetShowHelp(true)
	l.SetFilteringEnabled(true)

	vp := viewport.New(0, 0)
	vp.SetContent("Select a node to inspect its tuple buffer.")

	return Model{
		list:     l,
		viewport: vp,
		styles:   DefaultStyles(),
		graph:    graph,
		recorder: recorder,
	}
}

func buildItems(graph *rete.Graph, ruleNames map[rete.NodeID]string) []list.Item {
	var items []list.Item
	for id := rete.NodeID(0); ; id++ {
		n := safeNode(graph, id)
		if n == nil {
			break
		}
		kind, size := describeNode(n)
		desc := ruleNames[id]
		if desc == "" {
			desc = kind
		}
		items = append(items, nodeItem{id: id, kind: kind, desc: desc, size: size})
	}
	return items
}

// safeNode recovers from Graph.Node's implicit bounds panic so the
// builder can walk the arena without knowing its length up front.
func safeNode(graph *rete.Graph, id rete.NodeID) (n *rete.Node) {
	defer func() { recover() }()
	return graph.Node(id)
}

func describeNode(n *rete.Node) (kind string, size int) {
	switch n.Kind {
	case rete.KindAlpha:
		return fmt.Sprintf("alpha(%s)", n.FactType), len(n.AlphaBuffer())
	case rete.KindBeta:
		return "beta", len(n.TupleBuffer())
	case rete.KindTerminal:
		return fmt.Sprintf("terminal(%s)", n.RuleName), len(n.TupleBuffer())
	default:
		return "?", 0
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	if item, ok := m.list.SelectedItem().(nodeItem); ok {
		m.viewport.SetContent(m.renderDetail(item))
	}
	return m, cmd
}

func (m *Model) SetSize(w, h int) {
	m.width, m.height = w, h
	listW := w / 2
	m.list.SetSize(listW, h-2)
	m.viewport.Width = w - listW - 2
	m.viewport.Height = h - 2
}

func (m Model) View() string {
	left := m.list.View()
	right := m.viewport.View()
	return lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
}

func (m Model) renderDetail(item nodeItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", m.styles.Header.Render(item.Title()))
	n := m.graph.Node(item.id)
	switch n.Kind {
	case rete.KindAlpha:
		renderHandles(&b, n.AlphaBuffer())
	default:
		renderTuples(&b, n.TupleBuffer())
	}
	if m.recorder != nil {
		fmt.Fprintf(&b, "\n%s\n", m.styles.Header.Render("recent firings"))
		events := m.recorder.Events()
		start := 0
		if len(events) > 10 {
			start = len(events) - 10
		}
		for _, e := range events[start:] {
			fmt.Fprintf(&b, "  %s on %v\n", e.RuleName, e.Tuple)
		}
	}
	return b.String()
}

func renderHandles(b *strings.Builder, hs []facts.Handle) {
	if len(hs) == 0 {
		fmt.Fprintln(b, "  (empty)")
		return
	}
	for _, h := range hs {
		fmt.Fprintf(b, "  #%d\n", h)
	}
}

func renderTuples(b *strings.Builder, tuples [][]facts.Handle) {
	if len(tuples) == 0 {
		fmt.Fprintln(b, "  (empty)")
		return
	}
	for _, t := range tuples {
		fmt.Fprintf(b, "  %v\n", t)
	}
}
