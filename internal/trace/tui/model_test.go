package tui

import (
	"testing"

	"github.com/Alon769/lity/internal/facts"
	"github.com/Alon769/lity/internal/hostiface"
	"github.com/Alon769/lity/internal/rete"
	"github.com/Alon769/lity/internal/trace"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

// buildOneRulePersonGraph wires a single alpha node filtering Person
// facts with age >= 65, terminated directly (no join), mirroring the
// smallest possible compiled rule shape. The table is left empty so
// Refresh never needs to dereference storage.
func buildOneRulePersonGraph(t *testing.T) (*rete.Graph, *facts.Table) {
	t.Helper()
	g := rete.NewGraph()
	table := facts.NewTable()

	age65 := rete.Bin{Op: rete.OpGe, L: rete.FieldAt{Pos: 0, Field: "age"}, R: rete.Lit{Val: hostiface.Int(65)}}
	alpha := g.AddAlpha("Person", age65, "age>=65")
	_, err := g.AddTerminal("OldEnough", alpha)
	require.NoError(t, err)

	return g, table
}

func TestNewBuildsOneItemPerNode(t *testing.T) {
	g, table := buildOneRulePersonGraph(t)
	require.NoError(t, g.Refresh(table, nil))

	names := map[rete.NodeID]string{0: "alpha(Person)", 1: "terminal(OldEnough)"}
	m := New(g, nil, names)
	require.Equal(t, 2, len(m.list.Items()))
}

func TestUpdateHandlesWindowSizeMsg(t *testing.T) {
	g, _ := buildOneRulePersonGraph(t)
	m := New(g, nil, nil)

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	mm := updated.(Model)
	require.Equal(t, 100, mm.width)
	require.Equal(t, 40, mm.height)
}

func TestRenderDetailIncludesRecentFirings(t *testing.T) {
	g, _ := buildOneRulePersonGraph(t)
	rec := trace.NewRecorder(10)
	rec.Record(trace.Event{SessionID: "s1", Sequence: 0, RuleName: "OldEnough", Tuple: []facts.Handle{1}})

	m := New(g, rec, nil)
	out := m.renderDetail(nodeItem{id: 1, kind: "terminal(OldEnough)", desc: "terminal(OldEnough)"})
	require.Contains(t, out, "OldEnough")
	require.Contains(t, out, "recent firings")
}

func TestQuitKeyReturnsQuitCmd(t *testing.T) {
	g, _ := buildOneRulePersonGraph(t)
	m := New(g, nil, nil)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
}
