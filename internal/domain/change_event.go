package domain

import "time"

// ChangeOperation describes a persisted activity operation for a task.
type ChangeOperation string

// ChangeOperation values used by the activity ledger.
const (
	ChangeOperationCreate  ChangeOperation = "create"
	ChangeOperationUpdate  ChangeOperation = "update"
	ChangeOperationMove    ChangeOperation = "move"
	ChangeOperationArchive ChangeOperation = "archive"
	ChangeOperationRestore ChangeOperation = "restore"
	ChangeOperationDelete  ChangeOperation = "delete"
)

// ChangeEvent represents a single activity-log entry for a board task.
type ChangeEvent struct {
	ID         int64
	BoardID    string
	TaskID     string
	Operation  ChangeOperation
	Metadata   map[string]string
	OccurredAt time.Time
}

// BoardStats summarizes task counts for a board header.
type BoardStats struct {
	TotalTasks     int
	CompletedTasks int
	PerColumn      map[string]int
}

// ComputeStats counts active tasks per column. Tasks in the last column count as completed.
func ComputeStats(columns []Column, tasks []Task) BoardStats {
	stats := BoardStats{PerColumn: make(map[string]int, len(columns))}
	last := ""
	lastPos := -1
	for _, c := range columns {
		stats.PerColumn[c.ID] = 0
		if c.Position > lastPos {
			lastPos = c.Position
			last = c.ID
		}
	}
	for _, t := range tasks {
		if t.ArchivedAt != nil {
			continue
		}
		stats.TotalTasks++
		stats.PerColumn[t.Status]++
		if t.Status == last {
			stats.CompletedTasks++
		}
	}
	return stats
}
