package domain

import (
	"slices"
	"strings"
)

// OrderPolicy selects how order values are maintained on cross-column moves.
type OrderPolicy string

const (
	// OrderPolicyRenumber renumbers both the source and destination columns.
	OrderPolicyRenumber OrderPolicy = "renumber"
	// OrderPolicyLegacy changes only the moved task's status and leaves order values stale.
	OrderPolicyLegacy OrderPolicy = "legacy"
)

// ParseOrderPolicy normalizes a configured policy name. Empty input means renumber.
func ParseOrderPolicy(raw string) (OrderPolicy, bool) {
	switch OrderPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", OrderPolicyRenumber:
		return OrderPolicyRenumber, true
	case OrderPolicyLegacy:
		return OrderPolicyLegacy, true
	default:
		return "", false
	}
}

// DragLocation addresses a slot inside one column.
type DragLocation struct {
	DroppableID string
	Index       int
}

// DragResult is what a drag source reports when the user releases a task.
// A nil Destination means the drop landed outside any column.
type DragResult struct {
	DraggableID string
	Source      DragLocation
	Destination *DragLocation
}

// Noop reports whether the drop leaves the board as it was.
func (r DragResult) Noop() bool {
	if r.Destination == nil {
		return true
	}
	return r.Destination.DroppableID == r.Source.DroppableID && r.Destination.Index == r.Source.Index
}

// CrossColumn reports whether the drop changes the task's status.
func (r DragResult) CrossColumn() bool {
	return r.Destination != nil && r.Destination.DroppableID != r.Source.DroppableID
}

// ColumnTasks returns copies of the active tasks in column, in visual order.
func ColumnTasks(tasks []Task, column string) []Task {
	slots := columnSlots(tasks, column)
	out := make([]Task, 0, len(slots))
	for _, i := range slots {
		out = append(out, tasks[i].Clone())
	}
	return out
}

// NextOrder returns the order value for a task appended to the end of column.
func NextOrder(tasks []Task, column string) int {
	next := 0
	for _, t := range tasks {
		if t.Status == column && t.ArchivedAt == nil && t.Order >= next {
			next = t.Order + 1
		}
	}
	return next
}

// Reorder applies a drop to a task collection and returns the new collection.
// Indices address the full column subsequence, not a filtered view. The input is
// never modified. Destination indices past the end of a column are clamped.
func Reorder(tasks []Task, src DragLocation, dst *DragLocation, policy OrderPolicy) ([]Task, error) {
	out := CloneTasks(tasks)
	if dst == nil {
		return out, nil
	}
	if strings.TrimSpace(dst.DroppableID) == "" {
		return nil, ErrInvalidColumnID
	}

	srcSlots := columnSlots(out, src.DroppableID)
	if src.Index < 0 || src.Index >= len(srcSlots) {
		return nil, ErrIndexOutOfRange
	}
	movedSlot := srcSlots[src.Index]

	if src.DroppableID == dst.DroppableID {
		seq := gather(out, srcSlots)
		moved := seq[src.Index]
		seq = slices.Delete(seq, src.Index, src.Index+1)
		seq = slices.Insert(seq, clampIndex(dst.Index, len(seq)), moved)
		scatter(out, sortedCopy(srcSlots), seq)
		return out, nil
	}

	if policy == OrderPolicyLegacy {
		out[movedSlot].Status = dst.DroppableID
		return out, nil
	}

	srcSeq := gather(out, srcSlots)
	moved := srcSeq[src.Index]
	srcSeq = slices.Delete(srcSeq, src.Index, src.Index+1)
	moved.Status = dst.DroppableID

	dstSlots := columnSlots(out, dst.DroppableID)
	dstSeq := gather(out, dstSlots)
	dstSeq = slices.Insert(dstSeq, clampIndex(dst.Index, len(dstSeq)), moved)

	remaining := slices.DeleteFunc(sortedCopy(srcSlots), func(i int) bool { return i == movedSlot })
	grown := append(sortedCopy(dstSlots), movedSlot)
	slices.Sort(grown)

	scatter(out, remaining, srcSeq)
	scatter(out, grown, dstSeq)
	return out, nil
}

// RenumberColumn rewrites a column's order values to 0..n-1 in visual order.
func RenumberColumn(tasks []Task, column string) []Task {
	out := CloneTasks(tasks)
	slots := columnSlots(out, column)
	scatter(out, sortedCopy(slots), gather(out, slots))
	return out
}

// columnSlots returns collection indices of the column's active tasks in visual
// order: ascending Order, ties kept in collection order.
func columnSlots(tasks []Task, column string) []int {
	slots := make([]int, 0)
	for i, t := range tasks {
		if t.Status == column && t.ArchivedAt == nil {
			slots = append(slots, i)
		}
	}
	slices.SortStableFunc(slots, func(a, b int) int {
		return tasks[a].Order - tasks[b].Order
	})
	return slots
}

func gather(tasks []Task, slots []int) []Task {
	out := make([]Task, len(slots))
	for i, slot := range slots {
		out[i] = tasks[slot]
	}
	return out
}

// scatter writes seq into slots, assigning order values by position.
func scatter(tasks []Task, slots []int, seq []Task) {
	for i, t := range seq {
		t.Order = i
		tasks[slots[i]] = t
	}
}

func sortedCopy(in []int) []int {
	out := slices.Clone(in)
	slices.Sort(out)
	return out
}

func clampIndex(idx, n int) int {
	if idx < 0 {
		return 0
	}
	if idx > n {
		return n
	}
	return idx
}
