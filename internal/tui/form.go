package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"

	"github.com/evanschultz/kanboard/internal/app"
	"github.com/evanschultz/kanboard/internal/domain"
)

// task-form field indexes used throughout keyboard/update logic.
const (
	taskFieldTitle = iota
	taskFieldDescription
	taskFieldAssignee
	taskFieldPriority
	taskFieldDue
	taskFieldTags
)

// taskFormLabels stores task-form field labels in display order.
var taskFormLabels = []string{"title", "description", "assignee", "priority", "due", "tags"}

func newModalInput(prompt, placeholder, value string, limit int) textinput.Model {
	in := textinput.New()
	in.Prompt = prompt
	in.Placeholder = placeholder
	in.CharLimit = limit
	if value != "" {
		in.SetValue(value)
	}
	return in
}

// startTaskForm opens the add form, or the edit form when task is non-nil.
func (m *Model) startTaskForm(task *domain.Task) tea.Cmd {
	m.formInputs = []textinput.Model{
		newModalInput("", "task title (required)", "", domain.MaxTaskTitleLen),
		newModalInput("", "markdown description", "", domain.MaxTaskDescriptionLen),
		newModalInput("", "name", "", 120),
		newModalInput("", "low | medium | high", "", 16),
		newModalInput("", "YYYY-MM-DD[THH:MM] or -", "", 32),
		newModalInput("", "csv tags", "", 200),
	}
	if task != nil {
		m.formInputs[taskFieldTitle].SetValue(task.Title)
		m.formInputs[taskFieldDescription].SetValue(task.Description)
		m.formInputs[taskFieldAssignee].SetValue(task.Assignee)
		m.formInputs[taskFieldPriority].SetValue(string(task.Priority))
		if task.DueAt != nil {
			m.formInputs[taskFieldDue].SetValue(formatDueValue(task.DueAt))
		}
		if len(task.Tags) > 0 {
			m.formInputs[taskFieldTags].SetValue(strings.Join(task.Tags, ","))
		}
		m.mode = modeEditTask
		m.editingTaskID = task.ID
		m.status = "edit task"
	} else {
		m.formInputs[taskFieldPriority].Placeholder = "medium"
		m.mode = modeAddTask
		m.editingTaskID = ""
		m.status = "new task"
	}
	return m.focusTaskFormField(0)
}

func (m *Model) focusTaskFormField(idx int) tea.Cmd {
	if len(m.formInputs) == 0 {
		return nil
	}
	idx = clamp(idx, 0, len(m.formInputs)-1)
	m.formFocus = idx
	for i := range m.formInputs {
		m.formInputs[i].Blur()
	}
	return m.formInputs[idx].Focus()
}

// submitTaskForm validates the form and issues the add or update.
func (m Model) submitTaskForm() (tea.Model, tea.Cmd) {
	value := func(idx int) string { return strings.TrimSpace(m.formInputs[idx].Value()) }

	title := value(taskFieldTitle)
	if title == "" {
		m.status = "title is required"
		return m, nil
	}
	priority, err := domain.ParsePriority(value(taskFieldPriority))
	if err != nil {
		m.status = "priority must be low, medium or high"
		return m, nil
	}

	var current *domain.Task
	if m.mode == modeEditTask {
		task, ok := m.board.Task(m.editingTaskID)
		if !ok {
			m.mode = modeNone
			m.status = "task no longer exists"
			return m, nil
		}
		current = &task
	}
	var currentDue *time.Time
	var currentTags []string
	if current != nil {
		currentDue = current.DueAt
		currentTags = current.Tags
	}
	dueAt, err := parseDueInput(value(taskFieldDue), currentDue)
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	tags := parseTagsInput(value(taskFieldTags), currentTags)

	board := m.board
	description := value(taskFieldDescription)
	assignee := value(taskFieldAssignee)
	m.formInputs = nil
	if current != nil {
		taskID := current.ID
		m.mode = modeNone
		m.editingTaskID = ""
		m.status = "saving..."
		return m, func() tea.Msg {
			task, err := board.UpdateTask(context.Background(), app.UpdateTaskInput{
				TaskID:      taskID,
				Title:       title,
				Description: description,
				Assignee:    assignee,
				Priority:    priority,
				DueAt:       dueAt,
				Tags:        tags,
			})
			if err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{status: "updated " + truncate(task.Title, 32), focusTaskID: task.ID}
		}
	}

	columnID, _ := m.currentColumnID()
	m.mode = modeNone
	m.status = "saving..."
	return m, func() tea.Msg {
		task, err := board.AddTask(context.Background(), app.AddTaskInput{
			Status:      columnID,
			Title:       title,
			Description: description,
			Assignee:    assignee,
			Priority:    priority,
			DueAt:       dueAt,
			Tags:        tags,
		})
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "added " + truncate(task.Title, 32), focusTaskID: task.ID}
	}
}

// parseDueInput parses a due date. Empty keeps current and "-" clears it.
func parseDueInput(raw string, current *time.Time) (*time.Time, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return current, nil
	}
	if text == "-" {
		return nil, nil
	}
	layouts := []string{
		"2006-01-02",
		"2006-01-02T15:04",
		"2006-01-02 15:04",
		time.RFC3339,
	}
	for _, layout := range layouts {
		parsed, err := time.Parse(layout, text)
		if err == nil {
			ts := parsed.UTC()
			return &ts, nil
		}
	}
	return nil, fmt.Errorf("due date must be YYYY-MM-DD, YYYY-MM-DDTHH:MM, RFC3339, or -")
}

func formatDueValue(dueAt *time.Time) string {
	if dueAt == nil {
		return "-"
	}
	due := dueAt.UTC()
	if due.Hour() == 0 && due.Minute() == 0 {
		return due.Format("2006-01-02")
	}
	return due.Format("2006-01-02 15:04")
}

// parseTagsInput splits csv tags. Empty keeps current and "-" clears them.
func parseTagsInput(raw string, current []string) []string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return current
	}
	if text == "-" {
		return nil
	}
	parts := strings.Split(text, ",")
	out := make([]string, 0, len(parts))
	for _, tag := range parts {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}
