package app

import (
	"context"

	"github.com/evanschultz/kanboard/internal/domain"
)

// BoardStateStore persists whole task collections keyed by board id.
// SaveBoardState is an upsert: tasks missing from the collection are removed.
type BoardStateStore interface {
	SaveBoardState(ctx context.Context, boardID string, tasks []domain.Task) error
	LoadBoardState(ctx context.Context, boardID string) ([]domain.Task, error)
}

// Repository represents repository data used by this package.
type Repository interface {
	BoardStateStore

	CreateUser(context.Context, domain.User) error
	GetUser(context.Context, string) (domain.User, error)
	GetUserByEmail(context.Context, string) (domain.User, error)
	ListUsers(context.Context) ([]domain.User, error)

	CreateBoard(context.Context, domain.Board) error
	UpdateBoard(context.Context, domain.Board) error
	GetBoard(context.Context, string) (domain.Board, error)
	ListBoards(context.Context, bool) ([]domain.Board, error)
	DeleteBoard(context.Context, string) error

	CreateColumn(context.Context, domain.Column) error
	UpdateColumn(context.Context, domain.Column) error
	ListColumns(context.Context, string, bool) ([]domain.Column, error)

	ListBoardChangeEvents(context.Context, string, int) ([]domain.ChangeEvent, error)
}

// PasswordHasher hashes and verifies user passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// MoveLocker grants at most one in-flight mutation per task id.
type MoveLocker interface {
	TryLock(ctx context.Context, taskID string) (bool, error)
	Unlock(ctx context.Context, taskID string) error
}

// Notifier receives user-facing success and error messages. Delivery is fire-and-forget.
type Notifier interface {
	Notify(kind NotificationKind, message string)
}

// Logger is the structured logging surface used by long-running components.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Info(msg any, keyvals ...any)
	Warn(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}
