package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/evanschultz/kanboard/internal/domain"
)

// markdownRenderer renders markdown for terminal views and recreates the renderer when wrap width changes.
type markdownRenderer struct {
	width    int
	renderer *glamour.TermRenderer
}

// render converts markdown input into ANSI-styled terminal text with the requested wrap width.
func (r *markdownRenderer) render(markdown string, width int) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}

	wrapWidth := max(width, 24)
	if r.renderer == nil || r.width != wrapWidth {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(wrapWidth),
		)
		if err != nil {
			return markdown
		}
		r.renderer = renderer
		r.width = wrapWidth
	}

	rendered, err := r.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(rendered, "\n")
}

// taskMarkdown formats one task as a markdown card. The same text is what
// the copy action puts on the clipboard.
func taskMarkdown(task domain.Task, columnTitle string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", task.Title)
	fmt.Fprintf(&b, "- **Column:** %s\n", columnTitle)
	fmt.Fprintf(&b, "- **Priority:** %s\n", task.Priority)
	if task.Assignee != "" {
		fmt.Fprintf(&b, "- **Assignee:** %s\n", task.Assignee)
	}
	if task.DueAt != nil {
		fmt.Fprintf(&b, "- **Due:** %s\n", formatDueValue(task.DueAt))
	}
	if len(task.Tags) > 0 {
		fmt.Fprintf(&b, "- **Tags:** %s\n", strings.Join(task.Tags, ", "))
	}
	if task.ArchivedAt != nil {
		b.WriteString("- **Archived**\n")
	}
	if desc := strings.TrimSpace(task.Description); desc != "" {
		b.WriteString("\n")
		b.WriteString(desc)
		b.WriteString("\n")
	}
	return b.String()
}
