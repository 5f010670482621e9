package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/pypifeed/pkg/integrations/pypi"
)

// List styles
var (
	listDimStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// FeedListModel - Interactive feed item selection
// =============================================================================

// FeedListModel is the bubbletea model for picking an item from a feed.
type FeedListModel struct {
	Title    string
	Items    []pypi.FeedItem
	Cursor   int
	Selected *pypi.FeedItem
	Height   int
	Offset   int

	now time.Time
}

// NewFeedListModel creates a new feed list model.
func NewFeedListModel(title string, items []pypi.FeedItem) FeedListModel {
	return FeedListModel{
		Title:  title,
		Items:  items,
		Cursor: 0,
		Height: 15,
		Offset: 0,
		now:    time.Now(),
	}
}

func (m FeedListModel) Init() tea.Cmd {
	return nil
}

func (m FeedListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Items)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "home", "g":
			m.Cursor, m.Offset = 0, 0
		case "end", "G":
			m.Cursor = len(m.Items) - 1
			if m.Cursor >= m.Height {
				m.Offset = m.Cursor - m.Height + 1
			}
		case "enter":
			if len(m.Items) == 0 {
				return m, nil
			}
			item := m.Items[m.Cursor]
			m.Selected = &item
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 6
		if m.Height < 5 {
			m.Height = 5
		}
		if m.Cursor >= m.Offset+m.Height {
			m.Offset = m.Cursor - m.Height + 1
		}
	}
	return m, nil
}

func (m FeedListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(m.Title))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ show package  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Items))

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		it := m.Items[i]

		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}

		version := it.Version
		if version == "" {
			version = iconNone
		}

		rows = append(rows, []string{cursor, it.Name, version, formatRelativeTime(it.Published, m.now), truncate(it.Description, 50)})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleBorder).
		Headers("", "Package", "Version", "Published", "Summary").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}

			isCurrent := m.Offset+row == m.Cursor
			base := lipgloss.NewStyle()
			if col == 3 || col == 4 {
				if isCurrent {
					return base.Foreground(colorGray).Bold(true)
				}
				return base.Foreground(colorDim)
			}
			if isCurrent {
				return base.Foreground(colorGreen).Bold(true)
			}
			return base.Foreground(colorWhite)
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Items))))

	return b.String()
}
