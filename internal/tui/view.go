package tui

import (
	"fmt"
	"strconv"
	"strings"

	"folio/internal/docs"
	"folio/internal/model"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

func (m *appModel) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	height := m.height
	if height <= 0 {
		height = 24
	}

	if m.showHelp {
		body, _ := docs.Get("keys")
		out := docs.Render(body, markdownStyle(), width-2) + "\n\n" + m.help.FullHelpView(m.keys.FullHelp())
		return normalizePane(out, width, height)
	}

	header := m.viewCollectionTabs(width) + "\n" + m.viewGroupBar(width)
	footer := m.viewFooter(width)

	bodyHeight := height - lipgloss.Height(header) - lipgloss.Height(footer)
	body := normalizePane(m.viewBody(width, bodyHeight), width, bodyHeight)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m *appModel) viewCollectionTabs(width int) string {
	tabs := make([]string, 0, len(m.collections))
	for i, k := range m.collections {
		label := k
		if c := m.ctrls[k]; c != nil && c.Pending() > 0 {
			label += " " + glyphPending()
		}
		if i == m.colIdx {
			tabs = append(tabs, styleTabActive().Render(label))
		} else {
			tabs = append(tabs, styleTab().Render(label))
		}
	}
	return truncate(lipgloss.JoinHorizontal(lipgloss.Top, tabs...), width)
}

func (m *appModel) viewGroupBar(width int) string {
	groups := m.currentGroups()
	cur := m.currentGroup()
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		if g == cur {
			parts = append(parts, lipgloss.NewStyle().Bold(true).Underline(true).Render(g))
		} else {
			parts = append(parts, styleMuted().Render(g))
		}
	}
	line := " " + strings.Join(parts, " "+glyphSep()+" ")
	if caps := m.viewCapSummary(); caps != "" {
		line += "   " + styleMuted().Render(caps)
	}
	if ctrl := m.current(); ctrl != nil && ctrl.LanePending(model.OrderLane(m.currentKey(), cur)) {
		line += "   " + styleMuted().Render("saving order"+glyphPending())
	}
	return truncate(line, width) + "\n" + styleMuted().Render(strings.Repeat(glyphHRule(), width))
}

// viewCapSummary shows "featured 2/3" for each limit that applies to the current group.
func (m *appModel) viewCapSummary() string {
	ctrl := m.current()
	if ctrl == nil {
		return ""
	}
	key, group := m.currentKey(), m.currentGroup()
	var parts []string
	for _, r := range m.caps {
		if r.Collection != key || (r.Group != "" && r.Group != group) {
			continue
		}
		n := ctrl.Collection().CountFlag(r.Flag, r.Group)
		parts = append(parts, fmt.Sprintf("%s %d/%d", r.Flag, n, r.Max))
	}
	return strings.Join(parts, "  ")
}

func (m *appModel) viewBody(width, height int) string {
	key := m.currentKey()
	if err := m.loadErr[key]; err != nil {
		return "\n " + styleFlash(true).Render("could not load "+key+": "+err.Error()) + "\n " + styleMuted().Render("press r to retry")
	}
	ctrl := m.current()
	if ctrl == nil {
		return "\n " + styleMuted().Render("loading "+key+glyphPending())
	}
	items := m.currentItems()
	if len(items) == 0 {
		return "\n " + styleMuted().Render("no items in "+key+"/"+m.currentGroup())
	}

	// Scroll so the cursor stays visible.
	cur := m.cursorPos()
	start := 0
	if height > 0 && cur >= height {
		start = cur - height + 1
	}
	end := len(items)
	if height > 0 && start+height < end {
		end = start + height
	}

	numWidth := len(strconv.Itoa(len(items)))
	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		lines = append(lines, m.viewRow(ctrl.LanePending, items[i], i == cur, numWidth, width))
	}
	return strings.Join(lines, "\n")
}

func (m *appModel) viewRow(lanePending func(string) bool, it model.Item, selected bool, numWidth, width int) string {
	cursor := " "
	if selected {
		cursor = glyphCursor()
	}
	feat := lipgloss.NewStyle().Foreground(colorFeatured).Render(glyphFeatured(it.Featured))
	vis := lipgloss.NewStyle().Foreground(colorVisible).Render(glyphVisible(it.Visible))

	pending := " "
	for _, f := range []model.Flag{model.FlagFeatured, model.FlagVisible} {
		if lanePending(model.ToggleLane(it.Collection, it.ID, f)) {
			pending = glyphPending()
			break
		}
	}

	prefix := fmt.Sprintf("%s %*d %s %s %s ", cursor, numWidth, it.Position+1, feat, vis, pending)
	room := width - xansi.StringWidth(prefix)
	text := it.Title
	if it.Subtitle != "" {
		text += "  " + styleMuted().Render(it.Subtitle)
	}
	row := prefix + truncate(text, room)
	if selected {
		if w := xansi.StringWidth(row); w < width {
			row += strings.Repeat(" ", width-w)
		}
		return styleSelectedRow().Render(row)
	}
	return row
}

func (m *appModel) viewFooter(width int) string {
	status := ""
	if m.flash != "" {
		status = styleFlash(m.flashErr).Render(truncate(m.flash, width-1))
	} else if n := m.pendingTotal(); n > 0 {
		status = styleMuted().Render(fmt.Sprintf("%d pending", n))
	}
	return " " + status + "\n" + truncate(m.help.ShortHelpView(m.keys.ShortHelp()), width)
}
