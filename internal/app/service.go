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

// DeleteMode represents a selectable mode.
type DeleteMode string

// DeleteModeArchive and related constants define package defaults.
const (
	DeleteModeArchive DeleteMode = "archive"
	DeleteModeHard    DeleteMode = "hard"
)

// ParseDeleteMode validates a delete mode. Empty input is returned as-is so callers can apply their default.
func ParseDeleteMode(raw string) (DeleteMode, error) {
	mode := DeleteMode(strings.ToLower(strings.TrimSpace(raw)))
	switch mode {
	case "", DeleteModeArchive, DeleteModeHard:
		return mode, nil
	default:
		return "", ErrInvalidDeleteMode
	}
}

// Access is the permission level a caller needs on a board.
type Access int

const (
	AccessRead Access = iota
	AccessWrite
	AccessAdmin
)

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	DefaultDeleteMode DeleteMode
	ColumnTemplates   []ColumnTemplate
	WelcomeTask       bool
}

// ColumnTemplate seeds one column on every new board.
type ColumnTemplate struct {
	ID        string
	Title     string
	Color     domain.Color
	TaskLimit int
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service manages users, boards and columns. Task mutations go through a board's Coordinator.
type Service struct {
	repo              Repository
	hasher            PasswordHasher
	idGen             IDGenerator
	clock             Clock
	defaultDeleteMode DeleteMode
	columnTemplates   []ColumnTemplate
	welcomeTask       bool
}

// NewService constructs a new value for this package.
func NewService(repo Repository, hasher PasswordHasher, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.DefaultDeleteMode == "" {
		cfg.DefaultDeleteMode = DeleteModeArchive
	}
	templates := sanitizeColumnTemplates(cfg.ColumnTemplates)
	if len(templates) == 0 {
		templates = DefaultColumnTemplates()
	}

	return &Service{
		repo:              repo,
		hasher:            hasher,
		idGen:             idGen,
		clock:             clock,
		defaultDeleteMode: cfg.DefaultDeleteMode,
		columnTemplates:   templates,
		welcomeTask:       cfg.WelcomeTask,
	}
}

// DefaultDeleteMode reports the configured delete mode.
func (s *Service) DefaultDeleteMode() DeleteMode {
	return s.defaultDeleteMode
}

// RegisterUserInput holds input values for register user operations.
type RegisterUserInput struct {
	Email    string
	Name     string
	Password string
}

// RegisterUser creates an account with a hashed password.
func (s *Service) RegisterUser(ctx context.Context, in RegisterUserInput) (domain.User, error) {
	if s.hasher == nil {
		return domain.User{}, errors.New("password hasher is not configured")
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return domain.User{}, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return domain.User{}, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := domain.NewUser(s.idGen(), email, in.Name, hash, s.clock())
	if err != nil {
		return domain.User{}, err
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// Authenticate verifies credentials. Unknown emails and bad passwords both yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	if s.hasher == nil {
		return domain.User{}, errors.New("password hasher is not configured")
	}
	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, ErrNotFound) {
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, err
	}
	if !user.Active {
		return domain.User{}, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// GetUser returns one user.
func (s *Service) GetUser(ctx context.Context, userID string) (domain.User, error) {
	return s.repo.GetUser(ctx, userID)
}

// ListUsers lists users.
func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.repo.ListUsers(ctx)
}

// CreateBoardInput holds input values for create board operations.
type CreateBoardInput struct {
	OwnerID     string
	Title       string
	Description string
}

// CreateBoard creates a board with the configured default columns.
func (s *Service) CreateBoard(ctx context.Context, in CreateBoardInput) (domain.Board, error) {
	if _, err := s.repo.GetUser(ctx, in.OwnerID); err != nil {
		return domain.Board{}, err
	}
	now := s.clock()
	board, err := domain.NewBoard(s.idGen(), in.Title, in.Description, in.OwnerID, now)
	if err != nil {
		return domain.Board{}, err
	}
	if err := s.repo.CreateBoard(ctx, board); err != nil {
		return domain.Board{}, err
	}
	columns, err := s.createDefaultColumns(ctx, board.ID, now)
	if err != nil {
		return domain.Board{}, err
	}
	if s.welcomeTask && len(columns) > 0 {
		task, err := domain.NewTask(domain.TaskInput{
			ID:          s.idGen(),
			BoardID:     board.ID,
			Status:      columns[0].ID,
			Title:       "Welcome to " + board.Title,
			Description: "Drag this card between columns to try the board.",
			Priority:    domain.PriorityLow,
		}, now)
		if err != nil {
			return domain.Board{}, err
		}
		if err := s.repo.SaveBoardState(ctx, board.ID, []domain.Task{task}); err != nil {
			return domain.Board{}, err
		}
	}
	return board, nil
}

// GetBoard returns one board.
func (s *Service) GetBoard(ctx context.Context, boardID string) (domain.Board, error) {
	return s.repo.GetBoard(ctx, boardID)
}

// ListBoards lists boards visible to userID. An empty userID lists every board.
func (s *Service) ListBoards(ctx context.Context, userID string, includeArchived bool) ([]domain.Board, error) {
	boards, err := s.repo.ListBoards(ctx, includeArchived)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return boards, nil
	}
	return slices.DeleteFunc(boards, func(b domain.Board) bool { return b.RoleFor(userID) == domain.RoleNone }), nil
}

// Authorize loads a board and checks that userID holds the needed access.
func (s *Service) Authorize(ctx context.Context, boardID, userID string, need Access) (domain.Board, error) {
	board, err := s.repo.GetBoard(ctx, boardID)
	if err != nil {
		return domain.Board{}, err
	}
	var ok bool
	switch need {
	case AccessAdmin:
		ok = board.CanAdmin(userID)
	case AccessWrite:
		ok = board.CanWrite(userID)
	default:
		ok = board.CanRead(userID)
	}
	if !ok {
		return domain.Board{}, ErrForbidden
	}
	return board, nil
}

// UpdateBoardInput holds input values for update board operations.
type UpdateBoardInput struct {
	BoardID     string
	ActorID     string
	Title       string
	Description string
	Settings    *domain.BoardSettings
}

// UpdateBoard updates board details and optionally settings.
func (s *Service) UpdateBoard(ctx context.Context, in UpdateBoardInput) (domain.Board, error) {
	board, err := s.Authorize(ctx, in.BoardID, in.ActorID, AccessAdmin)
	if err != nil {
		return domain.Board{}, err
	}
	now := s.clock()
	if err := board.UpdateDetails(in.Title, in.Description, now); err != nil {
		return domain.Board{}, err
	}
	if in.Settings != nil {
		if err := board.UpdateSettings(*in.Settings, now); err != nil {
			return domain.Board{}, err
		}
	}
	if err := s.repo.UpdateBoard(ctx, board); err != nil {
		return domain.Board{}, err
	}
	return board, nil
}

// AddMember grants a role on a board to the user registered under email.
func (s *Service) AddMember(ctx context.Context, boardID, actorID, email string, role domain.Role) (domain.Board, error) {
	board, err := s.Authorize(ctx, boardID, actorID, AccessAdmin)
	if err != nil {
		return domain.Board{}, err
	}
	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return domain.Board{}, err
	}
	if err := board.AddMember(user.ID, role, s.clock()); err != nil {
		return domain.Board{}, err
	}
	if err := s.repo.UpdateBoard(ctx, board); err != nil {
		return domain.Board{}, err
	}
	return board, nil
}

// RemoveMember revokes a member's access.
func (s *Service) RemoveMember(ctx context.Context, boardID, actorID, userID string) (domain.Board, error) {
	board, err := s.Authorize(ctx, boardID, actorID, AccessAdmin)
	if err != nil {
		return domain.Board{}, err
	}
	board.RemoveMember(userID, s.clock())
	if err := s.repo.UpdateBoard(ctx, board); err != nil {
		return domain.Board{}, err
	}
	return board, nil
}

// DeleteBoard archives or removes a board. Only the owner may delete.
func (s *Service) DeleteBoard(ctx context.Context, boardID, actorID string, mode DeleteMode) error {
	if mode == "" {
		mode = s.defaultDeleteMode
	}
	board, err := s.repo.GetBoard(ctx, boardID)
	if err != nil {
		return err
	}
	if board.RoleFor(actorID) != domain.RoleOwner {
		return ErrForbidden
	}
	switch mode {
	case DeleteModeArchive:
		board.Archive(s.clock())
		return s.repo.UpdateBoard(ctx, board)
	case DeleteModeHard:
		return s.repo.DeleteBoard(ctx, boardID)
	default:
		return ErrInvalidDeleteMode
	}
}

// CreateColumnInput holds input values for create column operations.
type CreateColumnInput struct {
	BoardID   string
	ID        string
	Title     string
	Color     domain.Color
	TaskLimit int
}

// CreateColumn appends a column to a board. The id defaults to a slug of the title.
func (s *Service) CreateColumn(ctx context.Context, in CreateColumnInput) (domain.Column, error) {
	columns, err := s.repo.ListColumns(ctx, in.BoardID, true)
	if err != nil {
		return domain.Column{}, err
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = columnSlug(in.Title)
	}
	if id == "" {
		id = s.idGen()
	}
	position := 0
	for _, col := range columns {
		if col.ID == id {
			return domain.Column{}, fmt.Errorf("%w: %s", ErrColumnExists, id)
		}
		if col.Position >= position {
			position = col.Position + 1
		}
	}
	column, err := domain.NewColumn(domain.ColumnInput{
		ID:        id,
		BoardID:   in.BoardID,
		Title:     in.Title,
		Position:  position,
		TaskLimit: in.TaskLimit,
		Color:     in.Color,
	}, s.clock())
	if err != nil {
		return domain.Column{}, err
	}
	if err := s.repo.CreateColumn(ctx, column); err != nil {
		return domain.Column{}, err
	}
	return column, nil
}

// UpdateColumnInput holds input values for update column operations. Nil fields are left unchanged.
type UpdateColumnInput struct {
	BoardID   string
	ColumnID  string
	Title     *string
	Color     *domain.Color
	TaskLimit *int
}

// UpdateColumn edits column details.
func (s *Service) UpdateColumn(ctx context.Context, in UpdateColumnInput) (domain.Column, error) {
	column, err := s.getColumn(ctx, in.BoardID, in.ColumnID)
	if err != nil {
		return domain.Column{}, err
	}
	now := s.clock()
	if in.Title != nil {
		if err := column.Rename(*in.Title, now); err != nil {
			return domain.Column{}, err
		}
	}
	if in.TaskLimit != nil {
		if err := column.SetTaskLimit(*in.TaskLimit, now); err != nil {
			return domain.Column{}, err
		}
	}
	if in.Color != nil {
		updated, err := domain.NewColumn(domain.ColumnInput{
			ID:        column.ID,
			BoardID:   column.BoardID,
			Title:     column.Title,
			Position:  column.Position,
			TaskLimit: column.TaskLimit,
			Color:     *in.Color,
		}, now)
		if err != nil {
			return domain.Column{}, err
		}
		column.Color = updated.Color
		column.UpdatedAt = now.UTC()
	}
	if err := s.repo.UpdateColumn(ctx, column); err != nil {
		return domain.Column{}, err
	}
	return column, nil
}

// ReorderColumns assigns positions following the order of columnIDs.
func (s *Service) ReorderColumns(ctx context.Context, boardID string, columnIDs []string) ([]domain.Column, error) {
	columns, err := s.repo.ListColumns(ctx, boardID, false)
	if err != nil {
		return nil, err
	}
	if len(columnIDs) != len(columns) {
		return nil, fmt.Errorf("%w: expected %d column ids, got %d", domain.ErrInvalidPosition, len(columns), len(columnIDs))
	}
	now := s.clock()
	out := make([]domain.Column, 0, len(columns))
	for position, id := range columnIDs {
		column, ok := domain.FindColumn(columns, id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, id)
		}
		if err := column.SetPosition(position, now); err != nil {
			return nil, err
		}
		if err := s.repo.UpdateColumn(ctx, column); err != nil {
			return nil, err
		}
		out = append(out, column)
	}
	return out, nil
}

// ArchiveColumn hides an empty column.
func (s *Service) ArchiveColumn(ctx context.Context, boardID, columnID string) error {
	column, err := s.getColumn(ctx, boardID, columnID)
	if err != nil {
		return err
	}
	tasks, err := s.repo.LoadBoardState(ctx, boardID)
	if err != nil {
		return err
	}
	if n := len(domain.ColumnTasks(tasks, columnID)); n > 0 {
		return fmt.Errorf("%w: %s has %d", ErrColumnNotEmpty, columnID, n)
	}
	column.Archive(s.clock())
	return s.repo.UpdateColumn(ctx, column)
}

// ListColumns lists columns.
func (s *Service) ListColumns(ctx context.Context, boardID string, includeArchived bool) ([]domain.Column, error) {
	columns, err := s.repo.ListColumns(ctx, boardID, includeArchived)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(columns, func(a, b domain.Column) int { return a.Position - b.Position })
	return columns, nil
}

// ListActivity returns the newest change events for a board.
func (s *Service) ListActivity(ctx context.Context, boardID string, limit int) ([]domain.ChangeEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListBoardChangeEvents(ctx, boardID, limit)
}

func (s *Service) getColumn(ctx context.Context, boardID, columnID string) (domain.Column, error) {
	columns, err := s.repo.ListColumns(ctx, boardID, true)
	if err != nil {
		return domain.Column{}, err
	}
	column, ok := domain.FindColumn(columns, columnID)
	if !ok {
		return domain.Column{}, ErrNotFound
	}
	return column, nil
}

func (s *Service) createDefaultColumns(ctx context.Context, boardID string, now time.Time) ([]domain.Column, error) {
	out := make([]domain.Column, 0, len(s.columnTemplates))
	for position, tmpl := range s.columnTemplates {
		column, err := domain.NewColumn(domain.ColumnInput{
			ID:        tmpl.ID,
			BoardID:   boardID,
			Title:     tmpl.Title,
			Position:  position,
			TaskLimit: tmpl.TaskLimit,
			Color:     tmpl.Color,
		}, now)
		if err != nil {
			return nil, err
		}
		if err := s.repo.CreateColumn(ctx, column); err != nil {
			return nil, err
		}
		out = append(out, column)
	}
	return out, nil
}

// DefaultColumnTemplates returns the To Do, In Progress and Done columns.
func DefaultColumnTemplates() []ColumnTemplate {
	return []ColumnTemplate{
		{ID: "todo", Title: "To Do", Color: domain.ColorGray},
		{ID: "inprogress", Title: "In Progress", Color: domain.ColorBlue},
		{ID: "done", Title: "Done", Color: domain.ColorGreen},
	}
}

func sanitizeColumnTemplates(in []ColumnTemplate) []ColumnTemplate {
	out := make([]ColumnTemplate, 0, len(in))
	seen := map[string]struct{}{}
	for _, tmpl := range in {
		tmpl.Title = strings.TrimSpace(tmpl.Title)
		tmpl.ID = strings.TrimSpace(tmpl.ID)
		if tmpl.ID == "" {
			tmpl.ID = columnSlug(tmpl.Title)
		}
		if tmpl.ID == "" || tmpl.Title == "" {
			continue
		}
		if _, ok := seen[tmpl.ID]; ok {
			continue
		}
		if tmpl.TaskLimit < 0 {
			tmpl.TaskLimit = 0
		}
		seen[tmpl.ID] = struct{}{}
		out = append(out, tmpl)
	}
	return out
}

// columnSlug keeps lowercase letters and digits, so "In Progress" becomes "inprogress".
func columnSlug(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
