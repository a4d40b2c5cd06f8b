package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/evanschultz/kanboard/internal/app"
	"github.com/evanschultz/kanboard/internal/domain"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// Repository stores users, boards, columns, tasks and the change ledger in SQLite.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens a file-backed database, creating parent directories as needed.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	return openDSN("file:"+path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", 0)
}

// OpenInMemory opens a private in-memory database. Shared-cache memory databases
// lock whole tables, so access is serialized over one connection.
func OpenInMemory() (*Repository, error) {
	return openDSN("file:kanboard-"+uuid.NewString()+"?mode=memory&cache=shared&_pragma=foreign_keys(1)", 1)
}

func openDSN(dsn string, maxConns int) (*Repository, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}
	repo := &Repository{db: db, now: time.Now}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping reports whether the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS boards (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			owner_id TEXT NOT NULL,
			members_json TEXT NOT NULL DEFAULT '[]',
			public INTEGER NOT NULL DEFAULT 0,
			allow_comments INTEGER NOT NULL DEFAULT 1,
			theme TEXT NOT NULL DEFAULT 'light',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			archived_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS board_columns (
			board_id TEXT NOT NULL,
			id TEXT NOT NULL,
			title TEXT NOT NULL,
			position INTEGER NOT NULL,
			task_limit INTEGER NOT NULL DEFAULT 0,
			color TEXT NOT NULL DEFAULT 'gray',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			archived_at TEXT,
			PRIMARY KEY(board_id, id),
			FOREIGN KEY(board_id) REFERENCES boards(id) ON DELETE CASCADE
		);`,
		// seq keeps the collection order, which breaks ties between equal order values.
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			board_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			status TEXT NOT NULL,
			sort_order INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			assignee TEXT NOT NULL DEFAULT '',
			priority TEXT NOT NULL,
			due_at TEXT,
			tags_json TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			archived_at TEXT,
			FOREIGN KEY(board_id) REFERENCES boards(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS change_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			board_id TEXT NOT NULL,
			task_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			metadata_json TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			FOREIGN KEY(board_id) REFERENCES boards(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_board_columns_position ON board_columns(board_id, position);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_board_seq ON tasks(board_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_change_events_board_created_at ON change_events(board_id, created_at DESC, id DESC);`,
	}

	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// CreateUser inserts a user. A duplicate email yields app.ErrEmailTaken.
func (r *Repository) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users(id, email, name, password_hash, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Email, u.Name, u.PasswordHash, boolInt(u.Active), ts(u.CreatedAt), ts(u.UpdatedAt))
	if isUniqueErr(err) && strings.Contains(err.Error(), "users.email") {
		return app.ErrEmailTaken
	}
	return err
}

// GetUser returns one user.
func (r *Repository) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, active, created_at, updated_at
		FROM users
		WHERE id = ?
	`, id)
	return scanUser(row)
}

// GetUserByEmail returns the user registered under email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, active, created_at, updated_at
		FROM users
		WHERE email = ?
	`, strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

// ListUsers lists users.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, name, password_hash, active, created_at, updated_at
		FROM users
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// CreateBoard creates board.
func (r *Repository) CreateBoard(ctx context.Context, b domain.Board) error {
	membersJSON, err := encodeMembers(b.Members)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO boards(id, title, description, owner_id, members_json, public, allow_comments, theme, created_at, updated_at, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.Title, b.Description, b.OwnerID, membersJSON, boolInt(b.Settings.Public), boolInt(b.Settings.AllowComments),
		string(b.Settings.Theme), ts(b.CreatedAt), ts(b.UpdatedAt), nullableTS(b.ArchivedAt))
	return err
}

// UpdateBoard updates state for the requested operation.
func (r *Repository) UpdateBoard(ctx context.Context, b domain.Board) error {
	membersJSON, err := encodeMembers(b.Members)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE boards
		SET title = ?, description = ?, owner_id = ?, members_json = ?, public = ?, allow_comments = ?, theme = ?, updated_at = ?, archived_at = ?
		WHERE id = ?
	`, b.Title, b.Description, b.OwnerID, membersJSON, boolInt(b.Settings.Public), boolInt(b.Settings.AllowComments),
		string(b.Settings.Theme), ts(b.UpdatedAt), nullableTS(b.ArchivedAt), b.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetBoard returns board.
func (r *Repository) GetBoard(ctx context.Context, id string) (domain.Board, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, description, owner_id, members_json, public, allow_comments, theme, created_at, updated_at, archived_at
		FROM boards
		WHERE id = ?
	`, id)
	return scanBoard(row)
}

// ListBoards lists boards.
func (r *Repository) ListBoards(ctx context.Context, includeArchived bool) ([]domain.Board, error) {
	query := `
		SELECT id, title, description, owner_id, members_json, public, allow_comments, theme, created_at, updated_at, archived_at
		FROM boards
	`
	if !includeArchived {
		query += ` WHERE archived_at IS NULL`
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Board{}
	for rows.Next() {
		b, err := scanBoard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// DeleteBoard removes a board with its columns, tasks and events.
func (r *Repository) DeleteBoard(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range []string{
		`DELETE FROM change_events WHERE board_id = ?`,
		`DELETE FROM tasks WHERE board_id = ?`,
		`DELETE FROM board_columns WHERE board_id = ?`,
	} {
		if _, err = tx.ExecContext(ctx, stmt, id); err != nil {
			return err
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM boards WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err = translateNoRows(res); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// CreateColumn creates column.
func (r *Repository) CreateColumn(ctx context.Context, c domain.Column) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO board_columns(board_id, id, title, position, task_limit, color, created_at, updated_at, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.BoardID, c.ID, c.Title, c.Position, c.TaskLimit, string(c.Color), ts(c.CreatedAt), ts(c.UpdatedAt), nullableTS(c.ArchivedAt))
	if isUniqueErr(err) {
		return fmt.Errorf("%w: %s", app.ErrColumnExists, c.ID)
	}
	return err
}

// UpdateColumn updates state for the requested operation.
func (r *Repository) UpdateColumn(ctx context.Context, c domain.Column) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE board_columns
		SET title = ?, position = ?, task_limit = ?, color = ?, updated_at = ?, archived_at = ?
		WHERE board_id = ? AND id = ?
	`, c.Title, c.Position, c.TaskLimit, string(c.Color), ts(c.UpdatedAt), nullableTS(c.ArchivedAt), c.BoardID, c.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// ListColumns lists columns.
func (r *Repository) ListColumns(ctx context.Context, boardID string, includeArchived bool) ([]domain.Column, error) {
	query := `
		SELECT board_id, id, title, position, task_limit, color, created_at, updated_at, archived_at
		FROM board_columns
		WHERE board_id = ?
	`
	if !includeArchived {
		query += ` AND archived_at IS NULL`
	}
	query += ` ORDER BY position ASC`

	rows, err := r.db.QueryContext(ctx, query, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Column{}
	for rows.Next() {
		var (
			c          domain.Column
			color      string
			createdRaw string
			updatedRaw string
			archived   sql.NullString
		)
		if err := rows.Scan(&c.BoardID, &c.ID, &c.Title, &c.Position, &c.TaskLimit, &color, &createdRaw, &updatedRaw, &archived); err != nil {
			return nil, err
		}
		c.Color = domain.Color(color)
		c.CreatedAt = parseTS(createdRaw)
		c.UpdatedAt = parseTS(updatedRaw)
		c.ArchivedAt = parseNullTS(archived)
		out = append(out, c)
	}
	return out, rows.Err()
}

// LoadBoardState returns a board's tasks in collection order.
func (r *Repository) LoadBoardState(ctx context.Context, boardID string) ([]domain.Task, error) {
	return loadTasks(ctx, r.db, boardID)
}

// SaveBoardState replaces a board's task collection in one transaction. Rows are
// upserted in collection order, rows missing from tasks are deleted, and a change
// event is written for every task whose content, column or lifecycle changed.
func (r *Repository) SaveBoardState(ctx context.Context, boardID string, tasks []domain.Task) (err error) {
	boardID = strings.TrimSpace(boardID)
	if boardID == "" {
		return domain.ErrInvalidID
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists int
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM boards WHERE id = ?`, boardID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		err = app.ErrNotFound
		return err
	}

	previous, err := loadTasks(ctx, tx, boardID)
	if err != nil {
		return err
	}
	prevByID := make(map[string]domain.Task, len(previous))
	for _, t := range previous {
		prevByID[t.ID] = t
	}

	now := r.now().UTC()
	seen := make(map[string]struct{}, len(tasks))
	for seq, t := range tasks {
		t.BoardID = boardID
		if _, dup := seen[t.ID]; dup {
			err = fmt.Errorf("duplicate task id %q in board state", t.ID)
			return err
		}
		seen[t.ID] = struct{}{}

		prev, had := prevByID[t.ID]
		if err = upsertTask(ctx, tx, seq, t); err != nil {
			return err
		}
		var (
			op       domain.ChangeOperation
			metadata map[string]string
			record   bool
		)
		if !had {
			op, record = domain.ChangeOperationCreate, true
			metadata = map[string]string{
				"status": t.Status,
				"order":  strconv.Itoa(t.Order),
				"title":  t.Title,
			}
		} else {
			op, metadata, record = classifyTaskTransition(prev, t)
		}
		if !record {
			continue
		}
		err = insertChangeEvent(ctx, tx, domain.ChangeEvent{
			BoardID:    boardID,
			TaskID:     t.ID,
			Operation:  op,
			Metadata:   metadata,
			OccurredAt: now,
		})
		if err != nil {
			return err
		}
	}

	for _, prev := range previous {
		if _, ok := seen[prev.ID]; ok {
			continue
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, prev.ID); err != nil {
			return err
		}
		err = insertChangeEvent(ctx, tx, domain.ChangeEvent{
			BoardID:   boardID,
			TaskID:    prev.ID,
			Operation: domain.ChangeOperationDelete,
			Metadata: map[string]string{
				"status": prev.Status,
				"title":  prev.Title,
			},
			OccurredAt: now,
		})
		if err != nil {
			return err
		}
	}

	err = tx.Commit()
	return err
}

// ListBoardChangeEvents lists recent board events for activity-log consumption.
func (r *Repository) ListBoardChangeEvents(ctx context.Context, boardID string, limit int) ([]domain.ChangeEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, board_id, task_id, operation, metadata_json, created_at
		FROM change_events
		WHERE board_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, boardID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ChangeEvent, 0)
	for rows.Next() {
		var (
			event       domain.ChangeEvent
			opRaw       string
			metadataRaw string
			createdRaw  string
		)
		if err := rows.Scan(&event.ID, &event.BoardID, &event.TaskID, &opRaw, &metadataRaw, &createdRaw); err != nil {
			return nil, err
		}
		event.Operation = normalizeChangeOperation(opRaw)
		event.OccurredAt = parseTS(createdRaw)
		if strings.TrimSpace(metadataRaw) == "" {
			metadataRaw = "{}"
		}
		if err := json.Unmarshal([]byte(metadataRaw), &event.Metadata); err != nil {
			return nil, fmt.Errorf("decode change_events.metadata_json: %w", err)
		}
		if event.Metadata == nil {
			event.Metadata = map[string]string{}
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// queryer represents a read-only DB contract used by DB and Tx implementations.
type queryer interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}

// execerContext represents a write-only DB contract used by DB and Tx implementations.
type execerContext interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

func loadTasks(ctx context.Context, q queryer, boardID string) ([]domain.Task, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, board_id, status, sort_order, title, description, assignee, priority, due_at, tags_json, created_at, updated_at, archived_at
		FROM tasks
		WHERE board_id = ?
		ORDER BY seq ASC
	`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func upsertTask(ctx context.Context, execer execerContext, seq int, t domain.Task) error {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("encode task tags: %w", err)
	}
	_, err = execer.ExecContext(ctx, `
		INSERT INTO tasks(id, board_id, seq, status, sort_order, title, description, assignee, priority, due_at, tags_json, created_at, updated_at, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			board_id = excluded.board_id,
			seq = excluded.seq,
			status = excluded.status,
			sort_order = excluded.sort_order,
			title = excluded.title,
			description = excluded.description,
			assignee = excluded.assignee,
			priority = excluded.priority,
			due_at = excluded.due_at,
			tags_json = excluded.tags_json,
			updated_at = excluded.updated_at,
			archived_at = excluded.archived_at
	`,
		t.ID,
		t.BoardID,
		seq,
		t.Status,
		t.Order,
		t.Title,
		t.Description,
		t.Assignee,
		string(t.Priority),
		nullableTS(t.DueAt),
		string(tagsJSON),
		ts(t.CreatedAt),
		ts(t.UpdatedAt),
		nullableTS(t.ArchivedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert task %s: %w", t.ID, err)
	}
	return nil
}

// insertChangeEvent inserts a change-event ledger record.
func insertChangeEvent(ctx context.Context, execer execerContext, event domain.ChangeEvent) error {
	metadataJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("encode change event metadata: %w", err)
	}
	_, err = execer.ExecContext(ctx, `
		INSERT INTO change_events(board_id, task_id, operation, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		event.BoardID,
		event.TaskID,
		string(event.Operation),
		string(metadataJSON),
		ts(event.OccurredAt),
	)
	if err != nil {
		return fmt.Errorf("insert change event: %w", err)
	}
	return nil
}

// classifyTaskTransition derives the operation for a task that existed before.
// Order shifts of tasks that were not themselves touched are not recorded.
func classifyTaskTransition(prev, next domain.Task) (domain.ChangeOperation, map[string]string, bool) {
	if prev.ArchivedAt == nil && next.ArchivedAt != nil {
		return domain.ChangeOperationArchive, map[string]string{"status": next.Status}, true
	}
	if prev.ArchivedAt != nil && next.ArchivedAt == nil {
		return domain.ChangeOperationRestore, map[string]string{"status": next.Status}, true
	}
	if prev.Status != next.Status || (prev.Order != next.Order && !prev.UpdatedAt.Equal(next.UpdatedAt)) {
		return domain.ChangeOperationMove, map[string]string{
			"from_status": prev.Status,
			"to_status":   next.Status,
			"from_order":  strconv.Itoa(prev.Order),
			"to_order":    strconv.Itoa(next.Order),
		}, true
	}
	fields := changedTaskFields(prev, next)
	if len(fields) == 0 {
		return "", nil, false
	}
	return domain.ChangeOperationUpdate, map[string]string{"changed_fields": strings.Join(fields, ",")}, true
}

// changedTaskFields identifies a deterministic set of meaningful changes for metadata.
func changedTaskFields(prev, next domain.Task) []string {
	changed := make([]string, 0)
	if prev.Title != next.Title {
		changed = append(changed, "title")
	}
	if prev.Description != next.Description {
		changed = append(changed, "description")
	}
	if prev.Assignee != next.Assignee {
		changed = append(changed, "assignee")
	}
	if prev.Priority != next.Priority {
		changed = append(changed, "priority")
	}
	if !equalNullableTimes(prev.DueAt, next.DueAt) {
		changed = append(changed, "due_at")
	}
	if !slices.Equal(prev.Tags, next.Tags) {
		changed = append(changed, "tags")
	}
	return changed
}

func equalNullableTimes(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func normalizeChangeOperation(raw string) domain.ChangeOperation {
	switch op := domain.ChangeOperation(strings.TrimSpace(strings.ToLower(raw))); op {
	case domain.ChangeOperationCreate, domain.ChangeOperationUpdate, domain.ChangeOperationMove,
		domain.ChangeOperationArchive, domain.ChangeOperationRestore, domain.ChangeOperationDelete:
		return op
	default:
		return domain.ChangeOperationUpdate
	}
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (domain.User, error) {
	var (
		u          domain.User
		active     int
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &active, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, app.ErrNotFound
		}
		return domain.User{}, err
	}
	u.Active = active != 0
	u.CreatedAt = parseTS(createdRaw)
	u.UpdatedAt = parseTS(updatedRaw)
	return u, nil
}

func scanBoard(s scanner) (domain.Board, error) {
	var (
		b             domain.Board
		membersRaw    string
		public        int
		allowComments int
		theme         string
		createdRaw    string
		updatedRaw    string
		archived      sql.NullString
	)
	if err := s.Scan(&b.ID, &b.Title, &b.Description, &b.OwnerID, &membersRaw, &public, &allowComments, &theme, &createdRaw, &updatedRaw, &archived); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Board{}, app.ErrNotFound
		}
		return domain.Board{}, err
	}
	members, err := decodeMembers(membersRaw)
	if err != nil {
		return domain.Board{}, err
	}
	b.Members = members
	b.Settings = domain.BoardSettings{Public: public != 0, AllowComments: allowComments != 0, Theme: domain.Theme(theme)}
	b.CreatedAt = parseTS(createdRaw)
	b.UpdatedAt = parseTS(updatedRaw)
	b.ArchivedAt = parseNullTS(archived)
	return b, nil
}

func scanTask(s scanner) (domain.Task, error) {
	var (
		t          domain.Task
		priority   string
		dueRaw     sql.NullString
		tagsRaw    string
		createdRaw string
		updatedRaw string
		archived   sql.NullString
	)
	if err := s.Scan(&t.ID, &t.BoardID, &t.Status, &t.Order, &t.Title, &t.Description, &t.Assignee, &priority, &dueRaw, &tagsRaw, &createdRaw, &updatedRaw, &archived); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Task{}, app.ErrNotFound
		}
		return domain.Task{}, err
	}
	t.Priority = domain.Priority(priority)
	t.DueAt = parseNullTS(dueRaw)
	if strings.TrimSpace(tagsRaw) != "" {
		if err := json.Unmarshal([]byte(tagsRaw), &t.Tags); err != nil {
			return domain.Task{}, fmt.Errorf("decode tasks.tags_json: %w", err)
		}
	}
	if len(t.Tags) == 0 {
		t.Tags = nil
	}
	t.CreatedAt = parseTS(createdRaw)
	t.UpdatedAt = parseTS(updatedRaw)
	t.ArchivedAt = parseNullTS(archived)
	return t, nil
}

type memberRow struct {
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	JoinedAt string `json:"joined_at"`
}

func encodeMembers(members []domain.Member) (string, error) {
	rows := make([]memberRow, 0, len(members))
	for _, m := range members {
		rows = append(rows, memberRow{UserID: m.UserID, Role: string(m.Role), JoinedAt: ts(m.JoinedAt)})
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("encode board members: %w", err)
	}
	return string(raw), nil
}

func decodeMembers(raw string) ([]domain.Member, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var rows []memberRow
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, fmt.Errorf("decode boards.members_json: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	out := make([]domain.Member, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Member{UserID: row.UserID, Role: domain.Role(row.Role), JoinedAt: parseTS(row.JoinedAt)})
	}
	return out, nil
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// nullableTS handles nullable ts.
func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// parseNullTS parses input into a normalized form.
func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	ts := parseTS(v.String)
	return &ts
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func isUniqueErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
