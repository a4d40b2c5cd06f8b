package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/evanschultz/kanboard/internal/domain"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "kanboard.board.v1"

// Snapshot is a portable JSON copy of one board.
type Snapshot struct {
	Version    string           `json:"version"`
	ExportedAt time.Time        `json:"exported_at"`
	Board      SnapshotBoard    `json:"board"`
	Columns    []SnapshotColumn `json:"columns"`
	Tasks      []SnapshotTask   `json:"tasks"`
}

// SnapshotBoard represents snapshot board data used by this package.
type SnapshotBoard struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	OwnerID       string           `json:"owner_id"`
	Members       []SnapshotMember `json:"members,omitempty"`
	Public        bool             `json:"public"`
	AllowComments bool             `json:"allow_comments"`
	Theme         domain.Theme     `json:"theme"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	ArchivedAt    *time.Time       `json:"archived_at,omitempty"`
}

// SnapshotMember represents snapshot member data used by this package.
type SnapshotMember struct {
	UserID   string      `json:"user_id"`
	Role     domain.Role `json:"role"`
	JoinedAt time.Time   `json:"joined_at"`
}

// SnapshotColumn represents snapshot column data used by this package.
type SnapshotColumn struct {
	ID         string       `json:"id"`
	Title      string       `json:"title"`
	Position   int          `json:"position"`
	TaskLimit  int          `json:"task_limit"`
	Color      domain.Color `json:"color"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
	ArchivedAt *time.Time   `json:"archived_at,omitempty"`
}

// SnapshotTask represents snapshot task data used by this package.
type SnapshotTask struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	Order       int             `json:"order"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Assignee    string          `json:"assignee,omitempty"`
	Priority    domain.Priority `json:"priority"`
	DueAt       *time.Time      `json:"due_at,omitempty"`
	Tags        []string        `json:"tags"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	ArchivedAt  *time.Time      `json:"archived_at,omitempty"`
}

// ExportSnapshot copies a board, its columns and its tasks.
func (s *Service) ExportSnapshot(ctx context.Context, boardID string, includeArchived bool) (Snapshot, error) {
	board, err := s.repo.GetBoard(ctx, boardID)
	if err != nil {
		return Snapshot{}, err
	}
	columns, err := s.repo.ListColumns(ctx, boardID, includeArchived)
	if err != nil {
		return Snapshot{}, err
	}
	tasks, err := s.repo.LoadBoardState(ctx, boardID)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
		Board:      snapshotBoardFromDomain(board),
		Columns:    make([]SnapshotColumn, 0, len(columns)),
		Tasks:      make([]SnapshotTask, 0, len(tasks)),
	}
	for _, c := range columns {
		snap.Columns = append(snap.Columns, snapshotColumnFromDomain(c))
	}
	for _, t := range tasks {
		if !includeArchived && t.ArchivedAt != nil {
			continue
		}
		snap.Tasks = append(snap.Tasks, snapshotTaskFromDomain(t))
	}
	snap.sort()
	return snap, nil
}

// ImportSnapshot upserts the board, its columns and replaces its task collection.
// The board owner must already exist.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	if _, err := s.repo.GetUser(ctx, snap.Board.OwnerID); err != nil {
		return fmt.Errorf("snapshot owner %q: %w", snap.Board.OwnerID, err)
	}

	board := snap.Board.toDomain()
	if _, err := s.repo.GetBoard(ctx, board.ID); err == nil {
		if err := s.repo.UpdateBoard(ctx, board); err != nil {
			return fmt.Errorf("update board %q: %w", board.ID, err)
		}
	} else if errors.Is(err, ErrNotFound) {
		if err := s.repo.CreateBoard(ctx, board); err != nil {
			return fmt.Errorf("create board %q: %w", board.ID, err)
		}
	} else {
		return err
	}

	existing, err := s.repo.ListColumns(ctx, board.ID, true)
	if err != nil {
		return err
	}
	for _, sc := range snap.Columns {
		column := sc.toDomain(board.ID)
		if _, ok := domain.FindColumn(existing, column.ID); ok {
			err = s.repo.UpdateColumn(ctx, column)
		} else {
			err = s.repo.CreateColumn(ctx, column)
		}
		if err != nil {
			return fmt.Errorf("upsert column %q: %w", column.ID, err)
		}
	}

	tasks := make([]domain.Task, 0, len(snap.Tasks))
	for _, st := range snap.Tasks {
		tasks = append(tasks, st.toDomain(board.ID))
	}
	if err := s.repo.SaveBoardState(ctx, board.ID, tasks); err != nil {
		return fmt.Errorf("save board tasks: %w", err)
	}
	return nil
}

// Validate checks version, identifiers and cross-references.
func (s *Snapshot) Validate() error {
	if strings.TrimSpace(s.Version) != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version %q", s.Version)
	}
	if strings.TrimSpace(s.Board.ID) == "" || strings.TrimSpace(s.Board.OwnerID) == "" {
		return fmt.Errorf("snapshot board: %w", domain.ErrInvalidID)
	}
	if strings.TrimSpace(s.Board.Title) == "" {
		return fmt.Errorf("snapshot board: %w", domain.ErrInvalidTitle)
	}
	columnIDs := map[string]struct{}{}
	for i, c := range s.Columns {
		if _, err := domain.NewColumn(domain.ColumnInput{
			ID:        c.ID,
			BoardID:   s.Board.ID,
			Title:     c.Title,
			Position:  c.Position,
			TaskLimit: c.TaskLimit,
			Color:     c.Color,
		}, c.CreatedAt); err != nil {
			return fmt.Errorf("columns[%d]: %w", i, err)
		}
		if _, dup := columnIDs[c.ID]; dup {
			return fmt.Errorf("columns[%d]: duplicate id %q", i, c.ID)
		}
		columnIDs[c.ID] = struct{}{}
	}
	taskIDs := map[string]struct{}{}
	for i, t := range s.Tasks {
		if _, err := domain.NewTask(domain.TaskInput{
			ID:          t.ID,
			BoardID:     s.Board.ID,
			Status:      t.Status,
			Order:       t.Order,
			Title:       t.Title,
			Description: t.Description,
			Assignee:    t.Assignee,
			Priority:    t.Priority,
			DueAt:       t.DueAt,
			Tags:        t.Tags,
		}, t.CreatedAt); err != nil {
			return fmt.Errorf("tasks[%d]: %w", i, err)
		}
		if _, ok := columnIDs[t.Status]; !ok {
			return fmt.Errorf("tasks[%d]: %w: %s", i, ErrUnknownColumn, t.Status)
		}
		if _, dup := taskIDs[t.ID]; dup {
			return fmt.Errorf("tasks[%d]: duplicate id %q", i, t.ID)
		}
		taskIDs[t.ID] = struct{}{}
	}
	return nil
}

func (s *Snapshot) sort() {
	slices.SortStableFunc(s.Columns, func(a, b SnapshotColumn) int { return a.Position - b.Position })
	slices.SortStableFunc(s.Tasks, func(a, b SnapshotTask) int {
		if a.Status != b.Status {
			return strings.Compare(a.Status, b.Status)
		}
		return a.Order - b.Order
	})
}

func snapshotBoardFromDomain(b domain.Board) SnapshotBoard {
	members := make([]SnapshotMember, 0, len(b.Members))
	for _, m := range b.Members {
		members = append(members, SnapshotMember{UserID: m.UserID, Role: m.Role, JoinedAt: m.JoinedAt})
	}
	return SnapshotBoard{
		ID:            b.ID,
		Title:         b.Title,
		Description:   b.Description,
		OwnerID:       b.OwnerID,
		Members:       members,
		Public:        b.Settings.Public,
		AllowComments: b.Settings.AllowComments,
		Theme:         b.Settings.Theme,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
		ArchivedAt:    copyTimePtr(b.ArchivedAt),
	}
}

func snapshotColumnFromDomain(c domain.Column) SnapshotColumn {
	return SnapshotColumn{
		ID:         c.ID,
		Title:      c.Title,
		Position:   c.Position,
		TaskLimit:  c.TaskLimit,
		Color:      c.Color,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
		ArchivedAt: copyTimePtr(c.ArchivedAt),
	}
}

func snapshotTaskFromDomain(t domain.Task) SnapshotTask {
	return SnapshotTask{
		ID:          t.ID,
		Status:      t.Status,
		Order:       t.Order,
		Title:       t.Title,
		Description: t.Description,
		Assignee:    t.Assignee,
		Priority:    t.Priority,
		DueAt:       copyTimePtr(t.DueAt),
		Tags:        slices.Clone(t.Tags),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		ArchivedAt:  copyTimePtr(t.ArchivedAt),
	}
}

func (b SnapshotBoard) toDomain() domain.Board {
	members := make([]domain.Member, 0, len(b.Members))
	for _, m := range b.Members {
		members = append(members, domain.Member{UserID: m.UserID, Role: m.Role, JoinedAt: m.JoinedAt.UTC()})
	}
	theme := b.Theme
	if theme == "" {
		theme = domain.ThemeLight
	}
	return domain.Board{
		ID:          strings.TrimSpace(b.ID),
		Title:       strings.TrimSpace(b.Title),
		Description: strings.TrimSpace(b.Description),
		OwnerID:     strings.TrimSpace(b.OwnerID),
		Members:     members,
		Settings:    domain.BoardSettings{Public: b.Public, AllowComments: b.AllowComments, Theme: theme},
		CreatedAt:   b.CreatedAt.UTC(),
		UpdatedAt:   b.UpdatedAt.UTC(),
		ArchivedAt:  copyTimePtr(b.ArchivedAt),
	}
}

func (c SnapshotColumn) toDomain(boardID string) domain.Column {
	color := c.Color
	if color == "" {
		color = domain.ColorGray
	}
	return domain.Column{
		ID:         strings.TrimSpace(c.ID),
		BoardID:    boardID,
		Title:      strings.TrimSpace(c.Title),
		Position:   c.Position,
		TaskLimit:  c.TaskLimit,
		Color:      color,
		CreatedAt:  c.CreatedAt.UTC(),
		UpdatedAt:  c.UpdatedAt.UTC(),
		ArchivedAt: copyTimePtr(c.ArchivedAt),
	}
}

func (t SnapshotTask) toDomain(boardID string) domain.Task {
	priority := t.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	return domain.Task{
		ID:          strings.TrimSpace(t.ID),
		BoardID:     boardID,
		Status:      strings.TrimSpace(t.Status),
		Order:       t.Order,
		Title:       strings.TrimSpace(t.Title),
		Description: strings.TrimSpace(t.Description),
		Assignee:    strings.TrimSpace(t.Assignee),
		Priority:    priority,
		DueAt:       copyTimePtr(t.DueAt),
		Tags:        slices.Clone(t.Tags),
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
		ArchivedAt:  copyTimePtr(t.ArchivedAt),
	}
}

func copyTimePtr(in *time.Time) *time.Time {
	if in == nil {
		return nil
	}
	ts := in.UTC()
	return &ts
}
