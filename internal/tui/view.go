package tui

import (
	"fmt"
	"image/color"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/evanschultz/kanboard/internal/app"
	"github.com/evanschultz/kanboard/internal/domain"
)

// columnAccent maps a column color name to a terminal color.
func columnAccent(c domain.Color) color.Color {
	switch c {
	case domain.ColorRed:
		return lipgloss.Color("203")
	case domain.ColorYellow:
		return lipgloss.Color("221")
	case domain.ColorGreen:
		return lipgloss.Color("114")
	case domain.ColorBlue:
		return lipgloss.Color("75")
	case domain.ColorIndigo:
		return lipgloss.Color("105")
	case domain.ColorPurple:
		return lipgloss.Color("141")
	case domain.ColorPink:
		return lipgloss.Color("212")
	default:
		return lipgloss.Color("245")
	}
}

func priorityAccent(p domain.Priority) color.Color {
	switch p {
	case domain.PriorityHigh:
		return lipgloss.Color("203")
	case domain.PriorityLow:
		return lipgloss.Color("114")
	default:
		return lipgloss.Color("221")
	}
}

// View handles view.
func (m Model) View() tea.View {
	view := tea.NewView(m.render())
	view.AltScreen = true
	return view
}

// render draws the full screen as text.
func (m Model) render() string {
	if !m.ready {
		return "loading..."
	}

	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dim)

	stats := m.board.Stats()
	header := titleStyle.Render("kanboard") + "  " + m.boardTitle
	header += statusStyle.Render(fmt.Sprintf("  %d tasks • %d done", stats.TotalTasks, stats.CompletedTasks))
	header += statusStyle.Render("  [" + m.modeLabel() + "]")
	if m.filter.Active() {
		header += statusStyle.Render("  filter: " + m.filterSummary())
	}

	var body string
	if len(m.columns) == 0 {
		body = lipgloss.NewStyle().Foreground(muted).Render("This board has no columns yet.")
	} else {
		body = m.renderColumns(accent, muted, dim, stats)
	}

	sections := []string{header}
	if m.mode == modeSearch {
		sections = append(sections, m.searchInput.View())
	}
	sections = append(sections, "", body)
	if toasts := m.renderToasts(); toasts != "" {
		sections = append(sections, toasts)
	}
	if strings.TrimSpace(m.status) != "" && m.status != "ready" {
		sections = append(sections, statusStyle.Render(m.status))
	}
	content := strings.Join(sections, "\n")

	helpBubble := m.help
	helpBubble.ShowAll = false
	helpBubble.SetWidth(max(0, m.width-2))
	helpText := helpBubble.View(m.keys)
	if m.mode == modeDrag {
		helpText = helpBubble.ShortHelpView(m.keys.dragHelp())
	}
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpText)

	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(helpLine)))
	}
	fullContent := content + "\n" + helpLine
	if overlay := m.renderModeOverlay(accent, muted, m.width-8); overlay != "" {
		overlayHeight := lipgloss.Height(fullContent)
		if m.height > 0 {
			overlayHeight = m.height
		}
		fullContent = overlayOnContent(fullContent, overlay, max(1, m.width), max(1, overlayHeight))
	}
	return fullContent
}

// renderColumns lays out every column side by side.
func (m Model) renderColumns(accent, muted, dim color.Color, stats domain.BoardStats) string {
	colWidth := m.columnWidthFor(m.width)
	colHeight := m.columnHeight()
	baseColStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dim).
		Padding(1, 2).
		MarginRight(1).
		Width(colWidth)
	selectedTaskStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	ghostStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Background(lipgloss.Color("237")).Bold(true)
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	subStyle := lipgloss.NewStyle().Foreground(muted)
	warningStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))

	focusColumn := m.selectedColumn
	if m.drag != nil {
		focusColumn = m.drag.column
	}

	views := make([]string, 0, len(m.columns))
	for colIdx, column := range m.columns {
		colAccent := columnAccent(column.Color)
		visible := m.board.VisibleTasks(column.ID, m.filter)
		total := stats.PerColumn[column.ID]

		colHeader := fmt.Sprintf("%s (%d)", column.Title, total)
		if column.TaskLimit > 0 {
			colHeader = fmt.Sprintf("%s (%d/%d)", column.Title, total, column.TaskLimit)
		}
		if m.filter.Active() && len(visible) != total {
			colHeader += fmt.Sprintf(" • %d shown", len(visible))
		}
		headerLines := []string{lipgloss.NewStyle().Bold(true).Foreground(colAccent).Render(colHeader)}
		if column.TaskLimit > 0 && total >= column.TaskLimit {
			headerLines = append(headerLines, warningStyle.Render("column full"))
		}

		rows := visible
		if m.drag != nil {
			rows = make([]domain.Task, 0, len(visible))
			for _, task := range visible {
				if task.ID != m.drag.taskID {
					rows = append(rows, task)
				}
			}
		}
		ghostAt := -1
		if m.drag != nil && colIdx == m.drag.column {
			ghostAt = clamp(m.drag.index, 0, len(rows))
		}
		ghost := func() string {
			return ghostStyle.Render("▸ " + truncate(m.drag.title, max(1, colWidth-6)))
		}

		taskLines := make([]string, 0, max(1, len(rows)*3))
		selectedStart, selectedEnd := -1, -1
		for taskIdx, task := range rows {
			if taskIdx == ghostAt {
				selectedStart = len(taskLines)
				taskLines = append(taskLines, ghost(), "")
				selectedEnd = len(taskLines) - 1
			}
			selected := m.drag == nil && colIdx == m.selectedColumn && taskIdx == m.selectedTask
			prefix := "   "
			if selected {
				prefix = "│  "
			}
			title := prefix + truncate(task.Title, max(1, colWidth-6))
			if selected {
				title = selectedTaskStyle.Render(title)
			}
			rowStart := len(taskLines)
			taskLines = append(taskLines, title)
			if sub := m.taskListSecondary(task, colWidth-6); sub != "" {
				taskLines = append(taskLines, prefix+subStyle.Render(sub))
			}
			if taskIdx < len(rows)-1 || ghostAt == len(rows) {
				taskLines = append(taskLines, "")
			}
			if selected {
				selectedStart = rowStart
				selectedEnd = len(taskLines) - 1
			}
		}
		if ghostAt == len(rows) {
			selectedStart = len(taskLines)
			taskLines = append(taskLines, ghost())
			selectedEnd = selectedStart
		}
		if len(taskLines) == 0 {
			label := "(empty)"
			if m.filter.Active() && total > 0 {
				label = "(no matches)"
			}
			taskLines = append(taskLines, emptyStyle.Render(label))
		}

		innerHeight := max(1, colHeight-4)
		windowHeight := max(1, innerHeight-len(headerLines))
		scrollTop := 0
		if colIdx == focusColumn && selectedStart >= 0 {
			if selectedEnd >= windowHeight {
				scrollTop = selectedEnd - windowHeight + 1
			}
			scrollTop = min(scrollTop, selectedStart)
		}
		scrollTop = clamp(scrollTop, 0, max(0, len(taskLines)-windowHeight))
		if len(taskLines) > windowHeight {
			taskLines = taskLines[scrollTop : scrollTop+windowHeight]
		}

		lines := append(append([]string{}, headerLines...), taskLines...)
		style := baseColStyle
		if colIdx == focusColumn {
			style = style.BorderForeground(accent)
		}
		views = append(views, style.Render(fitLines(strings.Join(lines, "\n"), innerHeight)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, views...)
}

// taskListSecondary renders the enabled card fields under a title.
func (m Model) taskListSecondary(task domain.Task, width int) string {
	parts := make([]string, 0, 4)
	if m.taskFields.ShowPriority {
		parts = append(parts, lipgloss.NewStyle().Foreground(priorityAccent(task.Priority)).Render(string(task.Priority)))
	}
	if m.taskFields.ShowDueDate && task.DueAt != nil {
		parts = append(parts, dueLabel(domain.DueInDays(*task.DueAt, m.clock())))
	}
	if m.taskFields.ShowAssignee && task.Assignee != "" {
		parts = append(parts, "@"+task.Assignee)
	}
	if m.taskFields.ShowTags && len(task.Tags) > 0 {
		parts = append(parts, "#"+strings.Join(task.Tags, " #"))
	}
	if len(parts) == 0 {
		return ""
	}
	return truncate(strings.Join(parts, " • "), max(1, width))
}

// dueLabel describes a whole-day distance to a due date.
func dueLabel(days int) string {
	switch {
	case days < 0:
		return fmt.Sprintf("overdue %dd", -days)
	case days == 0:
		return "due today"
	case days == 1:
		return "due tomorrow"
	default:
		return fmt.Sprintf("due in %dd", days)
	}
}

// renderToasts renders the toast stack, newest last.
func (m Model) renderToasts() string {
	if len(m.toasts) == 0 {
		return ""
	}
	success := lipgloss.NewStyle().Foreground(lipgloss.Color("114")).Bold(true)
	failure := lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	lines := make([]string, 0, len(m.toasts))
	for _, t := range m.toasts {
		if t.kind == app.NotificationError {
			lines = append(lines, failure.Render("✗ "+t.message))
			continue
		}
		lines = append(lines, success.Render("✓ "+t.message))
	}
	return strings.Join(lines, "\n")
}

// renderModeOverlay renders the modal for the active input mode, if any.
func (m Model) renderModeOverlay(accent, muted color.Color, maxWidth int) string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 1)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	hintStyle := lipgloss.NewStyle().Foreground(muted)

	switch {
	case m.help.ShowAll && m.mode == modeNone:
		helpBubble := m.help
		helpBubble.SetWidth(clamp(maxWidth, 40, 110))
		return boxStyle.Render(titleStyle.Render("Keys") + "\n" + helpBubble.FullHelpView(m.keys.FullHelp()))

	case m.mode == modeAddTask || m.mode == modeEditTask:
		width := clamp(maxWidth, 40, 80)
		title := "New Task"
		if m.mode == modeEditTask {
			title = "Edit Task"
		}
		lines := []string{titleStyle.Render(title)}
		for i, in := range m.formInputs {
			label := fmt.Sprintf("%-12s", taskFormLabels[i]+":")
			if i == m.formFocus {
				label = titleStyle.Render(label)
			} else {
				label = hintStyle.Render(label)
			}
			lines = append(lines, label+" "+in.View())
		}
		lines = append(lines, "", hintStyle.Render("tab next • enter save • esc cancel"))
		return boxStyle.Width(width).Render(strings.Join(lines, "\n"))

	case m.mode == modeTaskInfo:
		task, ok := m.board.Task(m.infoTaskID)
		if !ok {
			return ""
		}
		width := clamp(maxWidth, 40, 90)
		rendered := m.md.render(taskMarkdown(task, m.columnTitle(task.Status)), width-4)
		hint := hintStyle.Render("e edit • y copy • esc close")
		return boxStyle.Width(width).Render(rendered + "\n\n" + hint)

	case m.mode == modeConfirmHardDelete:
		task, ok := m.board.Task(m.pendingDeleteID)
		if !ok {
			return ""
		}
		warn := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
		lines := []string{
			warn.Render("Hard delete task?"),
			truncate(task.Title, 60),
			"",
			hintStyle.Render("y confirm • n cancel"),
		}
		return boxStyle.BorderForeground(lipgloss.Color("203")).Render(strings.Join(lines, "\n"))
	}
	return ""
}

// modeLabel names the active mode for the header.
func (m Model) modeLabel() string {
	switch m.mode {
	case modeDrag:
		return "drag"
	case modeSearch:
		return "search"
	case modeAddTask:
		return "add"
	case modeEditTask:
		return "edit"
	case modeTaskInfo:
		return "info"
	case modeConfirmHardDelete:
		return "confirm"
	default:
		return "normal"
	}
}

// filterSummary describes the active filter, or "none".
func (m Model) filterSummary() string {
	parts := make([]string, 0, 4)
	if q := strings.TrimSpace(m.filter.Search); q != "" {
		parts = append(parts, fmt.Sprintf("%q", q))
	}
	if m.filter.Priority != "" {
		parts = append(parts, "priority="+string(m.filter.Priority))
	}
	if m.filter.Assignee != "" {
		parts = append(parts, "assignee="+m.filter.Assignee)
	}
	if m.filter.Due != "" && m.filter.Due != domain.DueAll {
		parts = append(parts, "due="+string(m.filter.Due))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}

func (m Model) columnWidthFor(boardWidth int) int {
	if len(m.columns) == 0 {
		return 24
	}
	w := 28
	if boardWidth > 0 {
		// Per-column overhead: left/right border (2), horizontal padding (4), margin-right (1)
		const colOverhead = 7
		usable := boardWidth - len(m.columns)*colOverhead
		if candidate := usable / len(m.columns); candidate > 0 {
			w = candidate
		}
	}
	return clamp(w, 20, 42)
}

func (m Model) columnHeight() int {
	const headerLines, footerLines = 3, 4
	h := m.height - headerLines - footerLines - len(m.toasts)
	if h < 12 {
		return 12
	}
	return h
}

func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		lines = append(lines, make([]string, maxLines-len(lines))...)
	}
	return strings.Join(lines, "\n")
}

func overlayOnContent(base, overlay string, width, height int) string {
	if width <= 0 || height <= 0 {
		if strings.TrimSpace(overlay) == "" {
			return base
		}
		return overlay + "\n\n" + base
	}

	base = fitLines(base, height)
	canvas := lipgloss.NewCanvas(width, height)
	baseLayer := lipgloss.NewLayer(base).X(0).Y(0).Z(0)
	centeredOverlay := lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		overlay,
	)
	overlayLayer := lipgloss.NewLayer(centeredOverlay).X(0).Y(0).Z(10)

	canvas.Compose(baseLayer)
	canvas.Compose(overlayLayer)
	return canvas.Render()
}
