package domain

import (
	"math"
	"slices"
	"strings"
	"time"
)

// DueFilter buckets tasks by how far away their due date is.
type DueFilter string

const (
	DueAll      DueFilter = "all"
	DueOverdue  DueFilter = "overdue"
	DueToday    DueFilter = "today"
	DueTomorrow DueFilter = "tomorrow"
	DueThisWeek DueFilter = "this-week"
	DueNoDate   DueFilter = "no-date"
)

// DueFilters lists the buckets in the order a picker cycles through them.
var DueFilters = []DueFilter{DueAll, DueOverdue, DueToday, DueTomorrow, DueThisWeek, DueNoDate}

// ParseDueFilter validates a due bucket name. Empty input means all.
func ParseDueFilter(raw string) (DueFilter, error) {
	f := DueFilter(strings.ToLower(strings.TrimSpace(raw)))
	if f == "" {
		return DueAll, nil
	}
	if !slices.Contains(DueFilters, f) {
		return "", ErrInvalidDueFilter
	}
	return f, nil
}

// ViewFilter narrows the tasks shown in a column. Zero values match everything.
type ViewFilter struct {
	Search   string
	Priority Priority
	Assignee string
	Due      DueFilter
}

// FilterAll is the option value that disables a priority or assignee filter.
const FilterAll = "all"

// ParseViewFilter builds a filter from raw option values. Empty input or "all"
// (any case) leaves that dimension unfiltered.
func ParseViewFilter(search, priority, assignee, due string) (ViewFilter, error) {
	f := ViewFilter{Search: strings.TrimSpace(search)}
	if raw := strings.TrimSpace(priority); raw != "" && !strings.EqualFold(raw, FilterAll) {
		p, err := ParsePriority(raw)
		if err != nil {
			return ViewFilter{}, err
		}
		f.Priority = p
	}
	if raw := strings.TrimSpace(assignee); !strings.EqualFold(raw, FilterAll) {
		f.Assignee = raw
	}
	d, err := ParseDueFilter(due)
	if err != nil {
		return ViewFilter{}, err
	}
	f.Due = d
	return f, nil
}

// Active reports whether any narrowing is in effect.
func (f ViewFilter) Active() bool {
	return strings.TrimSpace(f.Search) != "" || f.Priority != "" || f.Assignee != "" || (f.Due != "" && f.Due != DueAll)
}

// Predicates returns the independent checks this filter applies, search first.
func (f ViewFilter) Predicates(now time.Time) []func(Task) bool {
	var preds []func(Task) bool
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		preds = append(preds, func(t Task) bool {
			return strings.Contains(strings.ToLower(t.Title), q) ||
				strings.Contains(strings.ToLower(t.Description), q) ||
				strings.Contains(strings.ToLower(t.Assignee), q)
		})
	}
	if f.Priority != "" {
		want := f.Priority
		preds = append(preds, func(t Task) bool { return t.Priority == want })
	}
	if f.Assignee != "" {
		want := f.Assignee
		preds = append(preds, func(t Task) bool { return t.Assignee == want })
	}
	if f.Due != "" && f.Due != DueAll {
		bucket := f.Due
		preds = append(preds, func(t Task) bool { return MatchesDue(t.DueAt, bucket, now) })
	}
	return preds
}

// Matches reports whether t passes every predicate.
func (f ViewFilter) Matches(t Task, now time.Time) bool {
	for _, pred := range f.Predicates(now) {
		if !pred(t) {
			return false
		}
	}
	return true
}

// VisibleTasks projects the active tasks of column through f, in visual order.
func VisibleTasks(all []Task, column string, f ViewFilter, now time.Time) []Task {
	preds := f.Predicates(now)
	out := make([]Task, 0)
	for _, t := range ColumnTasks(all, column) {
		keep := true
		for _, pred := range preds {
			if !pred(t) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, t)
		}
	}
	return out
}

// DueInDays is the whole-day distance from now to due, rounded up.
func DueInDays(due, now time.Time) int {
	return int(math.Ceil(due.Sub(now).Hours() / 24))
}

// MatchesDue applies a due bucket. Only tasks without a due date match no-date.
func MatchesDue(due *time.Time, bucket DueFilter, now time.Time) bool {
	if bucket == "" || bucket == DueAll {
		return true
	}
	if due == nil {
		return bucket == DueNoDate
	}
	days := DueInDays(*due, now)
	switch bucket {
	case DueOverdue:
		return days < 0
	case DueToday:
		return days == 0
	case DueTomorrow:
		return days == 1
	case DueThisWeek:
		return days >= 0 && days <= 7
	default:
		return false
	}
}

// UniqueAssignees lists the distinct non-empty assignees in first-seen order.
func UniqueAssignees(tasks []Task) []string {
	out := make([]string, 0)
	seen := map[string]struct{}{}
	for _, t := range tasks {
		if t.Assignee == "" || t.ArchivedAt != nil {
			continue
		}
		if _, ok := seen[t.Assignee]; ok {
			continue
		}
		seen[t.Assignee] = struct{}{}
		out = append(out, t.Assignee)
	}
	return out
}

// ResolveDrag translates a drop expressed against filtered views into indices
// against full column subsequences. The destination becomes "before the task
// visible at the drop index", or "after the last visible task" when dropped past
// the end. An empty filtered destination appends to the column.
func ResolveDrag(all []Task, result DragResult, f ViewFilter, now time.Time) (DragLocation, *DragLocation, error) {
	src := result.Source
	visible := VisibleTasks(all, src.DroppableID, f, now)
	if src.Index < 0 || src.Index >= len(visible) {
		return DragLocation{}, nil, ErrIndexOutOfRange
	}
	if visible[src.Index].ID != result.DraggableID {
		return DragLocation{}, nil, ErrDragMismatch
	}
	full := ColumnTasks(all, src.DroppableID)
	srcIdx := indexOfTask(full, result.DraggableID)
	if srcIdx < 0 {
		return DragLocation{}, nil, ErrTaskNotInColumn
	}
	resolvedSrc := DragLocation{DroppableID: src.DroppableID, Index: srcIdx}
	if result.Destination == nil {
		return resolvedSrc, nil, nil
	}

	dst := *result.Destination
	dstVisible := VisibleTasks(all, dst.DroppableID, f, now)
	dstFull := ColumnTasks(all, dst.DroppableID)
	if dst.DroppableID == src.DroppableID {
		dstVisible = removeTask(dstVisible, result.DraggableID)
		dstFull = removeTask(dstFull, result.DraggableID)
	}

	d := clampIndex(dst.Index, len(dstVisible))
	var fullIdx int
	switch {
	case d < len(dstVisible):
		fullIdx = indexOfTask(dstFull, dstVisible[d].ID)
	case len(dstVisible) > 0:
		fullIdx = indexOfTask(dstFull, dstVisible[len(dstVisible)-1].ID) + 1
	default:
		fullIdx = len(dstFull)
	}
	return resolvedSrc, &DragLocation{DroppableID: dst.DroppableID, Index: fullIdx}, nil
}

func indexOfTask(tasks []Task, id string) int {
	return slices.IndexFunc(tasks, func(t Task) bool { return t.ID == id })
}

func removeTask(tasks []Task, id string) []Task {
	return slices.DeleteFunc(tasks, func(t Task) bool { return t.ID == id })
}
