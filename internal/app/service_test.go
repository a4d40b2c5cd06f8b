package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/evanschultz/kanboard/internal/domain"
)

type fakeRepo struct {
	mu      sync.Mutex
	users   map[string]domain.User
	boards  map[string]domain.Board
	columns map[string]domain.Column
	tasks   map[string][]domain.Task
	events  []domain.ChangeEvent
	loads   int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:   map[string]domain.User{},
		boards:  map[string]domain.Board{},
		columns: map[string]domain.Column{},
		tasks:   map[string][]domain.Task{},
	}
}

func columnKey(boardID, columnID string) string {
	return boardID + "/" + columnID
}

func (f *fakeRepo) CreateUser(_ context.Context, u domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
	return nil
}

func (f *fakeRepo) GetUser(_ context.Context, id string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return u, nil
}

func (f *fakeRepo) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, ErrNotFound
}

func (f *fakeRepo) ListUsers(_ context.Context) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeRepo) CreateBoard(_ context.Context, b domain.Board) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.boards[b.ID] = b
	return nil
}

func (f *fakeRepo) UpdateBoard(_ context.Context, b domain.Board) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.boards[b.ID]; !ok {
		return ErrNotFound
	}
	f.boards[b.ID] = b
	return nil
}

func (f *fakeRepo) GetBoard(_ context.Context, id string) (domain.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	b, ok := f.boards[id]
	if !ok {
		return domain.Board{}, ErrNotFound
	}
	return b, nil
}

func (f *fakeRepo) ListBoards(_ context.Context, includeArchived bool) ([]domain.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Board, 0, len(f.boards))
	for _, b := range f.boards {
		if !includeArchived && b.ArchivedAt != nil {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) DeleteBoard(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.boards, id)
	delete(f.tasks, id)
	return nil
}

func (f *fakeRepo) CreateColumn(_ context.Context, c domain.Column) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.columns[columnKey(c.BoardID, c.ID)] = c
	return nil
}

func (f *fakeRepo) UpdateColumn(_ context.Context, c domain.Column) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.columns[columnKey(c.BoardID, c.ID)] = c
	return nil
}

func (f *fakeRepo) ListColumns(_ context.Context, boardID string, includeArchived bool) ([]domain.Column, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Column, 0)
	for _, c := range f.columns {
		if c.BoardID != boardID {
			continue
		}
		if !includeArchived && c.ArchivedAt != nil {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (f *fakeRepo) SaveBoardState(_ context.Context, boardID string, tasks []domain.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[boardID] = domain.CloneTasks(tasks)
	return nil
}

func (f *fakeRepo) LoadBoardState(_ context.Context, boardID string) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.CloneTasks(f.tasks[boardID]), nil
}

func (f *fakeRepo) ListBoardChangeEvents(_ context.Context, boardID string, limit int) ([]domain.ChangeEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ChangeEvent, 0)
	for _, e := range f.events {
		if e.BoardID == boardID && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("empty password")
	}
	return "hashed:" + password, nil
}

func (plainHasher) Compare(hash, password string) error {
	if hash != "hashed:"+password {
		return errors.New("mismatch")
	}
	return nil
}

func sequentialIDs(prefix string) IDGenerator {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

func newTestService(t *testing.T, repo *fakeRepo, cfg ServiceConfig) *Service {
	t.Helper()
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	return NewService(repo, plainHasher{}, sequentialIDs("id-"), func() time.Time { return now }, cfg)
}

func TestRegisterAndAuthenticate(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo, ServiceConfig{})
	ctx := context.Background()

	user, err := svc.RegisterUser(ctx, RegisterUserInput{Email: " Ann@Example.com ", Name: "Ann", Password: "secret"})
	if err != nil {
		t.Fatalf("RegisterUser() error = %v", err)
	}
	if user.Email != "ann@example.com" || user.PasswordHash != "hashed:secret" {
		t.Fatalf("unexpected user %#v", user)
	}
	if _, err := svc.RegisterUser(ctx, RegisterUserInput{Email: "ann@example.com", Name: "Ann", Password: "x"}); err != ErrEmailTaken {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "ANN@example.com", "secret"); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if _, err := svc.Authenticate(ctx, "ann@example.com", "wrong"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody@example.com", "secret"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestCreateBoardSeedsDefaultColumnsAndWelcomeTask(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo, ServiceConfig{WelcomeTask: true})
	ctx := context.Background()
	owner, err := svc.RegisterUser(ctx, RegisterUserInput{Email: "o@example.com", Name: "Owner", Password: "pw"})
	if err != nil {
		t.Fatalf("RegisterUser() error = %v", err)
	}

	board, err := svc.CreateBoard(ctx, CreateBoardInput{OwnerID: owner.ID, Title: "Roadmap"})
	if err != nil {
		t.Fatalf("CreateBoard() error = %v", err)
	}
	columns, err := svc.ListColumns(ctx, board.ID, false)
	if err != nil {
		t.Fatalf("ListColumns() error = %v", err)
	}
	got := make([]string, 0, len(columns))
	for _, c := range columns {
		got = append(got, c.ID+":"+c.Title)
	}
	if strings.Join(got, ",") != "todo:To Do,inprogress:In Progress,done:Done" {
		t.Fatalf("unexpected default columns %v", got)
	}
	tasks, _ := repo.LoadBoardState(ctx, board.ID)
	if len(tasks) != 1 || tasks[0].Status != "todo" {
		t.Fatalf("expected welcome task in todo, got %#v", tasks)
	}
}

func TestCreateBoardUsesConfiguredTemplates(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo, ServiceConfig{ColumnTemplates: []ColumnTemplate{
		{Title: "Backlog"},
		{ID: "review", Title: "Review", TaskLimit: 3},
		{ID: "review", Title: "Duplicate"},
		{Title: "   "},
	}})
	ctx := context.Background()
	owner, _ := svc.RegisterUser(ctx, RegisterUserInput{Email: "o@example.com", Name: "Owner", Password: "pw"})
	board, err := svc.CreateBoard(ctx, CreateBoardInput{OwnerID: owner.ID, Title: "Custom"})
	if err != nil {
		t.Fatalf("CreateBoard() error = %v", err)
	}
	columns, _ := svc.ListColumns(ctx, board.ID, false)
	if len(columns) != 2 || columns[0].ID != "backlog" || columns[1].TaskLimit != 3 {
		t.Fatalf("unexpected columns %#v", columns)
	}
}

func TestAuthorizeAndMembership(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo, ServiceConfig{})
	ctx := context.Background()
	owner, _ := svc.RegisterUser(ctx, RegisterUserInput{Email: "o@example.com", Name: "Owner", Password: "pw"})
	viewer, _ := svc.RegisterUser(ctx, RegisterUserInput{Email: "v@example.com", Name: "Viewer", Password: "pw"})
	board, _ := svc.CreateBoard(ctx, CreateBoardInput{OwnerID: owner.ID, Title: "Team"})

	if _, err := svc.Authorize(ctx, board.ID, viewer.ID, AccessRead); err != ErrForbidden {
		t.Fatalf("expected ErrForbidden before membership, got %v", err)
	}
	if _, err := svc.AddMember(ctx, board.ID, viewer.ID, "o@example.com", domain.RoleAdmin); err != ErrForbidden {
		t.Fatalf("expected non-member to be blocked from adding members, got %v", err)
	}
	if _, err := svc.AddMember(ctx, board.ID, owner.ID, "v@example.com", domain.RoleViewer); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	if _, err := svc.Authorize(ctx, board.ID, viewer.ID, AccessRead); err != nil {
		t.Fatalf("expected viewer read access, got %v", err)
	}
	if _, err := svc.Authorize(ctx, board.ID, viewer.ID, AccessWrite); err != ErrForbidden {
		t.Fatalf("expected viewer write denial, got %v", err)
	}
	boards, err := svc.ListBoards(ctx, viewer.ID, false)
	if err != nil || len(boards) != 1 {
		t.Fatalf("expected viewer to list one board, got %d %v", len(boards), err)
	}
	if err := svc.DeleteBoard(ctx, board.ID, viewer.ID, DeleteModeArchive); err != ErrForbidden {
		t.Fatalf("expected only owner to delete, got %v", err)
	}
	if err := svc.DeleteBoard(ctx, board.ID, owner.ID, ""); err != nil {
		t.Fatalf("DeleteBoard() error = %v", err)
	}
	if boards, _ := svc.ListBoards(ctx, owner.ID, false); len(boards) != 0 {
		t.Fatalf("expected archived board to be hidden, got %d", len(boards))
	}
}

func TestColumnManagement(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo, ServiceConfig{})
	ctx := context.Background()
	owner, _ := svc.RegisterUser(ctx, RegisterUserInput{Email: "o@example.com", Name: "Owner", Password: "pw"})
	board, _ := svc.CreateBoard(ctx, CreateBoardInput{OwnerID: owner.ID, Title: "Team"})

	col, err := svc.CreateColumn(ctx, CreateColumnInput{BoardID: board.ID, Title: "Code Review", Color: domain.ColorPurple, TaskLimit: 2})
	if err != nil {
		t.Fatalf("CreateColumn() error = %v", err)
	}
	if col.ID != "codereview" || col.Position != 3 {
		t.Fatalf("unexpected column %#v", col)
	}
	if _, err := svc.CreateColumn(ctx, CreateColumnInput{BoardID: board.ID, Title: "code review"}); !errors.Is(err, ErrColumnExists) {
		t.Fatalf("expected ErrColumnExists, got %v", err)
	}
	title, limit, color := "Review", 0, domain.ColorRed
	updated, err := svc.UpdateColumn(ctx, UpdateColumnInput{BoardID: board.ID, ColumnID: col.ID, Title: &title, TaskLimit: &limit, Color: &color})
	if err != nil {
		t.Fatalf("UpdateColumn() error = %v", err)
	}
	if updated.Title != "Review" || updated.TaskLimit != 0 || updated.Color != domain.ColorRed {
		t.Fatalf("unexpected updated column %#v", updated)
	}
	reordered, err := svc.ReorderColumns(ctx, board.ID, []string{"codereview", "todo", "inprogress", "done"})
	if err != nil {
		t.Fatalf("ReorderColumns() error = %v", err)
	}
	if reordered[0].ID != "codereview" || reordered[0].Position != 0 {
		t.Fatalf("unexpected reorder %#v", reordered)
	}
	if _, err := svc.ReorderColumns(ctx, board.ID, []string{"todo"}); !errors.Is(err, domain.ErrInvalidPosition) {
		t.Fatalf("expected ErrInvalidPosition, got %v", err)
	}

	_ = repo.SaveBoardState(ctx, board.ID, []domain.Task{{ID: "t1", BoardID: board.ID, Status: "todo", Title: "x"}})
	if err := svc.ArchiveColumn(ctx, board.ID, "todo"); !errors.Is(err, ErrColumnNotEmpty) {
		t.Fatalf("expected ErrColumnNotEmpty, got %v", err)
	}
	if err := svc.ArchiveColumn(ctx, board.ID, "done"); err != nil {
		t.Fatalf("ArchiveColumn() error = %v", err)
	}
	active, _ := svc.ListColumns(ctx, board.ID, false)
	if len(active) != 3 {
		t.Fatalf("expected 3 active columns, got %d", len(active))
	}
}

func TestParseDeleteMode(t *testing.T) {
	if mode, err := ParseDeleteMode(" HARD "); err != nil || mode != DeleteModeHard {
		t.Fatalf("expected hard, got %q %v", mode, err)
	}
	if _, err := ParseDeleteMode("shred"); err != ErrInvalidDeleteMode {
		t.Fatalf("expected ErrInvalidDeleteMode, got %v", err)
	}
}
