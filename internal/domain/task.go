package domain

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

// Field limits enforced when tasks are created or edited.
const (
	MaxTaskTitleLen       = 100
	MaxTaskDescriptionLen = 500
	MaxTaskTags           = 10
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var validPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// ParsePriority normalizes raw input into a known priority. Empty input means medium.
func ParsePriority(raw string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(raw)))
	if p == "" {
		return PriorityMedium, nil
	}
	if !slices.Contains(validPriorities, p) {
		return "", ErrInvalidPriority
	}
	return p, nil
}

// Task is a single card on a board. Status names the column holding the task and
// Order is its position within that column.
type Task struct {
	ID          string
	BoardID     string
	Status      string
	Order       int
	Title       string
	Description string
	Assignee    string
	Priority    Priority
	DueAt       *time.Time
	Tags        []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ArchivedAt  *time.Time
}

type TaskInput struct {
	ID          string
	BoardID     string
	Status      string
	Order       int
	Title       string
	Description string
	Assignee    string
	Priority    Priority
	DueAt       *time.Time
	Tags        []string
}

func NewTask(in TaskInput, now time.Time) (Task, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.BoardID = strings.TrimSpace(in.BoardID)
	in.Status = strings.TrimSpace(in.Status)

	if in.ID == "" {
		return Task{}, ErrInvalidID
	}
	if in.BoardID == "" {
		return Task{}, ErrInvalidID
	}
	if in.Status == "" {
		return Task{}, ErrInvalidColumnID
	}
	if in.Order < 0 {
		return Task{}, ErrInvalidPosition
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}

	t := Task{
		ID:        in.ID,
		BoardID:   in.BoardID,
		Status:    in.Status,
		Order:     in.Order,
		CreatedAt: now.UTC(),
	}
	if err := t.UpdateDetails(in.Title, in.Description, in.Assignee, in.Priority, in.DueAt, in.Tags, now); err != nil {
		return Task{}, err
	}
	return t, nil
}

// Move places the task in a column at the given order.
func (t *Task) Move(status string, order int, now time.Time) error {
	status = strings.TrimSpace(status)
	if status == "" {
		return ErrInvalidColumnID
	}
	if order < 0 {
		return ErrInvalidPosition
	}
	t.Status = status
	t.Order = order
	t.UpdatedAt = now.UTC()
	return nil
}

func (t *Task) UpdateDetails(title, description, assignee string, priority Priority, dueAt *time.Time, tags []string, now time.Time) error {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" {
		return ErrInvalidTitle
	}
	if utf8.RuneCountInString(title) > MaxTaskTitleLen {
		return ErrTitleTooLong
	}
	if utf8.RuneCountInString(description) > MaxTaskDescriptionLen {
		return ErrDescriptionTooLong
	}
	if !slices.Contains(validPriorities, priority) {
		return ErrInvalidPriority
	}
	normalized := normalizeTags(tags)
	if len(normalized) > MaxTaskTags {
		return ErrTooManyTags
	}
	t.Title = title
	t.Description = description
	t.Assignee = strings.TrimSpace(assignee)
	t.Priority = priority
	t.DueAt = normalizeDueAt(dueAt)
	t.Tags = normalized
	t.UpdatedAt = now.UTC()
	return nil
}

func (t *Task) Archive(now time.Time) {
	ts := now.UTC()
	t.ArchivedAt = &ts
	t.UpdatedAt = ts
}

func (t *Task) Restore(now time.Time) {
	t.ArchivedAt = nil
	t.UpdatedAt = now.UTC()
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (t Task) Clone() Task {
	out := t
	if t.DueAt != nil {
		ts := *t.DueAt
		out.DueAt = &ts
	}
	if t.ArchivedAt != nil {
		ts := *t.ArchivedAt
		out.ArchivedAt = &ts
	}
	if t.Tags != nil {
		out.Tags = slices.Clone(t.Tags)
	}
	return out
}

// CloneTasks deep-copies a task collection.
func CloneTasks(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	for i := range tasks {
		out[i] = tasks[i].Clone()
	}
	return out
}

func normalizeDueAt(dueAt *time.Time) *time.Time {
	if dueAt == nil {
		return nil
	}
	ts := dueAt.UTC().Truncate(time.Second)
	return &ts
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]struct{}{}
	for _, raw := range tags {
		tag := strings.TrimSpace(raw)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
