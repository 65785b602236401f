package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bunchhieng/gdaes/internal/model"
	"github.com/bunchhieng/gdaes/internal/storage"
)

const listPaneWidth = 28

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Background(lipgloss.Color("236")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("230")).
			Padding(0, 1)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	urlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33"))

	heldStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Bold(true)

	inputStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("230")).
			Padding(0, 1)

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	focusedPaneStyle = paneStyle.
				BorderForeground(lipgloss.Color("62"))
)

func (m appModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	if m.mode != inputNone {
		b.WriteString(inputStyle.Width(max(m.width-2, 10)).Render(m.input.View()))
		b.WriteString("\n")
	}

	if m.confirmDelete {
		b.WriteString(m.renderDeleteConfirmation())
	} else {
		b.WriteString(m.renderPanes())
	}
	b.WriteString("\n")

	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m appModel) renderHeader() string {
	header := fmt.Sprintf("gdaes  [%d lists]  [%d links]", len(m.data.Order), m.data.LinkCount())
	if m.query != "" {
		header += fmt.Sprintf("  [filter: %s]", m.query)
	}
	out := headerStyle.Render(header)

	if m.source != storage.SourcePrimary {
		out += warnStyle.Render(fmt.Sprintf("  loaded from %s", m.source))
	}
	if m.held != nil {
		out += heldStyle.Render("  holding " + describePayload(m.held))
	}
	return out
}

func describePayload(p model.DragPayload) string {
	switch v := p.(type) {
	case model.URLPayload:
		return truncate(v.Link().DisplayTitle(), 40)
	case model.ListPayload:
		return "list " + v.SourceList
	case model.TabPayload:
		return truncate(v.Link().DisplayTitle(), 40)
	default:
		return string(p.Kind())
	}
}

func (m appModel) paneHeight() int {
	return max(m.height-6, 3)
}

func (m appModel) renderPanes() string {
	left, right := paneStyle, paneStyle
	if m.focus == paneLists {
		left = focusedPaneStyle
	} else {
		right = focusedPaneStyle
	}

	rightWidth := max(m.width-listPaneWidth-6, 20)
	height := m.paneHeight()

	return lipgloss.JoinHorizontal(lipgloss.Top,
		left.Width(listPaneWidth).Height(height).Render(m.renderLists(height)),
		right.Width(rightWidth).Height(height).Render(m.renderLinks(height, rightWidth)),
	)
}

func (m appModel) renderLists(height int) string {
	if len(m.data.Order) == 0 {
		return dimStyle.Render("No lists. Press n to create one.")
	}

	start := scrollStart(m.listIdx, len(m.data.Order), height)
	var b strings.Builder
	for i := start; i < len(m.data.Order) && i < start+height; i++ {
		name := m.data.Order[i]
		line := fmt.Sprintf("%s %s", truncate(name, listPaneWidth-8), dimStyle.Render(fmt.Sprintf("(%d)", len(m.data.Lists[name]))))
		if i == m.listIdx {
			line = selectedStyle.Render(line)
		} else {
			line = " " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m appModel) renderLinks(height, width int) string {
	name := m.currentList()
	if name == "" {
		return ""
	}
	links := m.data.Lists[name]
	visible := m.visibleLinks()
	if len(visible) == 0 {
		if m.query != "" {
			return dimStyle.Render("No links match the filter.")
		}
		return dimStyle.Render("No links. Press a to add one.")
	}

	start := scrollStart(m.linkIdx, len(visible), height)
	var b strings.Builder
	for row := start; row < len(visible) && row < start+height; row++ {
		b.WriteString(m.renderLink(visible[row], links[visible[row]], row == m.linkIdx && m.focus == paneLinks, width))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m appModel) renderLink(index int, link model.Link, selected bool, width int) string {
	title := truncate(link.DisplayTitle(), max(width/2, 10))
	url := truncate(link.URL, max(width-len([]rune(title))-8, 10))

	line := fmt.Sprintf("%s %s %s",
		dimStyle.Render(fmt.Sprintf("%2d", index+1)),
		titleStyle.Render(title),
		urlStyle.Render(url),
	)
	if link.Validate() != nil {
		line += warnStyle.Render(" !")
	}

	if selected {
		return selectedStyle.Render(line)
	}
	return " " + line
}

func (m appModel) renderStatusBar() string {
	var parts []string

	if m.statusMsg != "" {
		parts = append(parts, m.statusMsg)
	} else {
		parts = append(parts, fmt.Sprintf("%s %d/%d", m.currentList(), m.linkIdx+1, len(m.visibleLinks())))
	}
	if m.busy {
		parts = append(parts, "saving...")
	}

	parts = append(parts, "[space]pick [p]drop [J/K]move [n]ew [r]ename [d]elete [a]dd [?]help [q]uit")

	return statusBarStyle.Width(m.width).Render(strings.Join(parts, "  |  "))
}

func (m appModel) renderDeleteConfirmation() string {
	var confirmText string
	if m.deleteLink < 0 {
		count := len(m.data.Lists[m.deleteList])
		confirmText = fmt.Sprintf("Delete list %s and its %d link(s)?\n\n[y]es / [n]o", m.deleteList, count)
	} else {
		var title string
		if links := m.data.Lists[m.deleteList]; m.deleteLink < len(links) {
			title = truncate(links[m.deleteLink].DisplayTitle(), 50)
		}
		confirmText = fmt.Sprintf("Delete link: %s?\n\n[y]es / [n]o", title)
	}
	return selectedStyle.Width(max(m.width-4, 20)).Padding(1, 2).Render(confirmText)
}

// scrollStart keeps the cursor inside a window of height rows.
func scrollStart(cursor, total, height int) int {
	if total <= height || cursor < height {
		return 0
	}
	return min(cursor-height+1, total-height)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
