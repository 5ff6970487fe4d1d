package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/yamlviz/pkg/graph"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listNodeStyle     = lipgloss.NewStyle().Foreground(colorGreen)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// OutlineModel - Interactive document outline
// =============================================================================

// outlineRow is one visible line of the outline.
type outlineRow struct {
	node  *graph.TreeNode
	key   string // position in the tree, stable across collapsing
	depth int
}

// OutlineModel is the bubbletea model of `yamlviz browse`. Entries with
// children can be folded; enter picks an entry and quits.
type OutlineModel struct {
	Title    string
	Tree     []graph.TreeNode
	Cursor   int
	Height   int
	Offset   int
	Selected *graph.TreeNode

	collapsed map[string]bool
	rows      []outlineRow
}

// NewOutlineModel creates an outline over tree with every entry expanded.
func NewOutlineModel(title string, tree []graph.TreeNode) OutlineModel {
	m := OutlineModel{
		Title:     title,
		Tree:      tree,
		Height:    20,
		collapsed: make(map[string]bool),
	}
	m.rows = m.flatten()
	return m
}

func (m OutlineModel) flatten() []outlineRow {
	var rows []outlineRow
	var walk func(nodes []graph.TreeNode, prefix string, depth int)
	walk = func(nodes []graph.TreeNode, prefix string, depth int) {
		for i := range nodes {
			key := fmt.Sprintf("%s/%d", prefix, i)
			rows = append(rows, outlineRow{node: &nodes[i], key: key, depth: depth})
			if !m.collapsed[key] {
				walk(nodes[i].Children, key, depth+1)
			}
		}
	}
	walk(m.Tree, "", 0)
	return rows
}

func (m OutlineModel) Init() tea.Cmd {
	return nil
}

func (m OutlineModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
			}
		case "down", "j":
			if m.Cursor < len(m.rows)-1 {
				m.Cursor++
			}
		case "left", "h":
			m = m.setCollapsed(true)
		case "right", "l":
			m = m.setCollapsed(false)
		case " ", "tab":
			if len(m.rows) > 0 {
				m = m.setCollapsed(!m.collapsed[m.rows[m.Cursor].key])
			}
		case "enter":
			if len(m.rows) == 0 {
				return m, nil
			}
			m.Selected = m.rows[m.Cursor].node
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-6, 5)
	}
	m = m.scroll()
	return m, nil
}

// setCollapsed folds or unfolds the entry under the cursor.
func (m OutlineModel) setCollapsed(folded bool) OutlineModel {
	if len(m.rows) == 0 {
		return m
	}
	row := m.rows[m.Cursor]
	if len(row.node.Children) == 0 {
		return m
	}
	collapsed := make(map[string]bool, len(m.collapsed)+1)
	for k, v := range m.collapsed {
		collapsed[k] = v
	}
	collapsed[row.key] = folded
	m.collapsed = collapsed
	m.rows = m.flatten()
	return m
}

func (m OutlineModel) scroll() OutlineModel {
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
	if m.Cursor >= m.Offset+m.Height {
		m.Offset = m.Cursor - m.Height + 1
	}
	return m
}

func (m OutlineModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(m.Title))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ←/→ fold  ⏎ select  q quit"))
	b.WriteString("\n\n")

	if len(m.rows) == 0 {
		b.WriteString(listDimStyle.Render("  (empty document)"))
		b.WriteString("\n")
		return b.String()
	}

	end := min(m.Offset+m.Height, len(m.rows))
	for i := m.Offset; i < end; i++ {
		row := m.rows[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		fold := "  "
		if len(row.node.Children) > 0 {
			fold = "▾ "
			if m.collapsed[row.key] {
				fold = "▸ "
			}
		}
		line := cursor + strings.Repeat("  ", row.depth) + fold + row.node.Label
		loc := listDimStyle.Render(fmt.Sprintf("  :%d", row.node.Range.Start.Line))

		switch {
		case i == m.Cursor:
			b.WriteString(listSelectedStyle.Render(line))
		case row.node.NodeID != "":
			b.WriteString(listNodeStyle.Render(line))
		default:
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString(loc)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.rows))))
	return b.String()
}
