package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/evanschultz/kanboard/internal/domain"
)

func seedSnapshotBoard(t *testing.T) (*fakeRepo, *Service, domain.Board) {
	t.Helper()
	repo := newFakeRepo()
	svc := newTestService(t, repo, ServiceConfig{})
	ctx := context.Background()
	owner, err := svc.RegisterUser(ctx, RegisterUserInput{Email: "o@example.com", Name: "Owner", Password: "pw"})
	if err != nil {
		t.Fatalf("RegisterUser() error = %v", err)
	}
	board, err := svc.CreateBoard(ctx, CreateBoardInput{OwnerID: owner.ID, Title: "Launch"})
	if err != nil {
		t.Fatalf("CreateBoard() error = %v", err)
	}
	now := time.Date(2026, 2, 22, 10, 0, 0, 0, time.UTC)
	archived := now.Add(time.Hour)
	_ = repo.SaveBoardState(ctx, board.ID, []domain.Task{
		{ID: "t2", BoardID: board.ID, Status: "todo", Order: 1, Title: "Second", Priority: domain.PriorityLow, CreatedAt: now},
		{ID: "t1", BoardID: board.ID, Status: "todo", Order: 0, Title: "First", Priority: domain.PriorityHigh, Tags: []string{"ship"}, CreatedAt: now},
		{ID: "t3", BoardID: board.ID, Status: "done", Order: 0, Title: "Gone", Priority: domain.PriorityMedium, CreatedAt: now, ArchivedAt: &archived},
	})
	return repo, svc, board
}

func TestExportSnapshotOrdersAndFiltersArchived(t *testing.T) {
	_, svc, board := seedSnapshotBoard(t)
	ctx := context.Background()

	active, err := svc.ExportSnapshot(ctx, board.ID, false)
	if err != nil {
		t.Fatalf("ExportSnapshot(active) error = %v", err)
	}
	if active.Version != SnapshotVersion || active.Board.ID != board.ID {
		t.Fatalf("unexpected header %#v", active)
	}
	if len(active.Columns) != 3 || active.Columns[0].ID != "todo" {
		t.Fatalf("unexpected columns %#v", active.Columns)
	}
	if len(active.Tasks) != 2 || active.Tasks[0].ID != "t1" || active.Tasks[1].ID != "t2" {
		t.Fatalf("expected active tasks in column order, got %#v", active.Tasks)
	}

	all, err := svc.ExportSnapshot(ctx, board.ID, true)
	if err != nil {
		t.Fatalf("ExportSnapshot(all) error = %v", err)
	}
	if len(all.Tasks) != 3 {
		t.Fatalf("expected archived task included, got %d", len(all.Tasks))
	}
	if _, err := svc.ExportSnapshot(ctx, "missing", false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestImportSnapshotRoundTripsThroughJSON(t *testing.T) {
	repo, svc, board := seedSnapshotBoard(t)
	ctx := context.Background()

	snap, err := svc.ExportSnapshot(ctx, board.ID, true)
	if err != nil {
		t.Fatalf("ExportSnapshot() error = %v", err)
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	var decoded Snapshot
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}

	decoded.Board.Title = "Launch v2"
	decoded.Tasks = decoded.Tasks[:1]
	if err := svc.ImportSnapshot(ctx, decoded); err != nil {
		t.Fatalf("ImportSnapshot() error = %v", err)
	}
	got, _ := repo.GetBoard(ctx, board.ID)
	if got.Title != "Launch v2" {
		t.Fatalf("expected board updated, got %q", got.Title)
	}
	tasks, _ := repo.LoadBoardState(ctx, board.ID)
	if len(tasks) != 1 || tasks[0].Tags[0] != "ship" {
		t.Fatalf("expected task collection replaced, got %#v", tasks)
	}

	decoded.Board.ID = "board-copy"
	if err := svc.ImportSnapshot(ctx, decoded); err != nil {
		t.Fatalf("ImportSnapshot(new board) error = %v", err)
	}
	columns, _ := repo.ListColumns(ctx, "board-copy", true)
	if len(columns) != 3 {
		t.Fatalf("expected columns created for new board, got %d", len(columns))
	}
}

func TestSnapshotValidateRejectsBadInput(t *testing.T) {
	base := func() Snapshot {
		return Snapshot{
			Version: SnapshotVersion,
			Board:   SnapshotBoard{ID: "b1", Title: "Board", OwnerID: "u1"},
			Columns: []SnapshotColumn{{ID: "todo", Title: "To Do"}},
			Tasks:   []SnapshotTask{{ID: "t1", Status: "todo", Title: "Task", Priority: domain.PriorityLow}},
		}
	}
	tests := []struct {
		name   string
		mutate func(*Snapshot)
		want   error
	}{
		{name: "version", mutate: func(s *Snapshot) { s.Version = "v0" }},
		{name: "board id", mutate: func(s *Snapshot) { s.Board.ID = "" }, want: domain.ErrInvalidID},
		{name: "board title", mutate: func(s *Snapshot) { s.Board.Title = " " }, want: domain.ErrInvalidTitle},
		{name: "unknown column", mutate: func(s *Snapshot) { s.Tasks[0].Status = "done" }, want: ErrUnknownColumn},
		{name: "duplicate task", mutate: func(s *Snapshot) { s.Tasks = append(s.Tasks, s.Tasks[0]) }},
		{name: "bad priority", mutate: func(s *Snapshot) { s.Tasks[0].Priority = "urgent" }, want: domain.ErrInvalidPriority},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := base()
			tt.mutate(&snap)
			err := snap.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
	valid := base()
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid snapshot, got %v", err)
	}
}
