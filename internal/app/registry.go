package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/evanschultz/kanboard/internal/domain"
	"golang.org/x/sync/singleflight"
)

// RegistryConfig configures the coordinators a Registry builds.
type RegistryConfig struct {
	Repo           Repository
	Store          BoardStateStore
	Locker         MoveLocker
	Notifiers      func(boardID string) Notifier
	Policy         domain.OrderPolicy
	PersistTimeout time.Duration
	DeleteMode     DeleteMode
	Clock          Clock
	IDGen          IDGenerator
	Logger         Logger
}

// Registry lazily builds one Coordinator per board. Concurrent first loads of the
// same board share a single repository read.
type Registry struct {
	cfg   RegistryConfig
	group singleflight.Group

	mu     sync.Mutex
	boards map[string]*Coordinator
	closed bool
}

// NewRegistry constructs a registry. Store defaults to Repo.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Store == nil {
		cfg.Store = cfg.Repo
	}
	if cfg.Locker == nil {
		cfg.Locker = NewMemoryLocker()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Registry{cfg: cfg, boards: map[string]*Coordinator{}}
}

// Get returns the coordinator for boardID, loading it on first use.
func (r *Registry) Get(ctx context.Context, boardID string) (*Coordinator, error) {
	if c, ok := r.lookup(boardID); ok {
		return c, nil
	}
	// The load outlives any single caller, so it runs detached from ctx and each
	// caller waits on its own context.
	ch := r.group.DoChan(boardID, func() (any, error) {
		if c, ok := r.lookup(boardID); ok {
			return c, nil
		}
		return r.load(context.WithoutCancel(ctx), boardID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			r.cfg.Logger.Debug("board load shared", "board_id", boardID)
		}
		return res.Val.(*Coordinator), nil
	}
}

// RefreshColumns reloads a board's columns into its live coordinator, if one exists.
func (r *Registry) RefreshColumns(ctx context.Context, boardID string) error {
	c, ok := r.lookup(boardID)
	if !ok {
		return nil
	}
	columns, err := r.cfg.Repo.ListColumns(ctx, boardID, false)
	if err != nil {
		return fmt.Errorf("reload columns for board %s: %w", boardID, err)
	}
	c.SetColumns(columns)
	return nil
}

// Evict flushes and stops one board's coordinator.
func (r *Registry) Evict(ctx context.Context, boardID string) error {
	r.mu.Lock()
	c, ok := r.boards[boardID]
	delete(r.boards, boardID)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	flushErr := c.Flush(ctx)
	return errors.Join(flushErr, c.Close())
}

// Close stops every coordinator after draining its queued saves.
func (r *Registry) Close() error {
	r.mu.Lock()
	r.closed = true
	boards := make([]*Coordinator, 0, len(r.boards))
	for _, c := range r.boards {
		boards = append(boards, c)
	}
	r.boards = map[string]*Coordinator{}
	r.mu.Unlock()

	var errs []error
	for _, c := range boards {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func (r *Registry) lookup(boardID string) (*Coordinator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.boards[boardID]
	return c, ok
}

func (r *Registry) load(ctx context.Context, boardID string) (*Coordinator, error) {
	if _, err := r.cfg.Repo.GetBoard(ctx, boardID); err != nil {
		return nil, err
	}
	columns, err := r.cfg.Repo.ListColumns(ctx, boardID, false)
	if err != nil {
		return nil, fmt.Errorf("load columns for board %s: %w", boardID, err)
	}
	tasks, err := r.cfg.Store.LoadBoardState(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("load tasks for board %s: %w", boardID, err)
	}

	var notifier Notifier
	if r.cfg.Notifiers != nil {
		notifier = r.cfg.Notifiers(boardID)
	}
	c, err := NewCoordinator(CoordinatorConfig{
		BoardID:        boardID,
		Columns:        columns,
		Tasks:          tasks,
		Store:          r.cfg.Store,
		Notifier:       notifier,
		Locker:         r.cfg.Locker,
		Policy:         r.cfg.Policy,
		PersistTimeout: r.cfg.PersistTimeout,
		DeleteMode:     r.cfg.DeleteMode,
		Clock:          r.cfg.Clock,
		IDGen:          r.cfg.IDGen,
		Logger:         r.cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = c.Close()
		return nil, ErrCoordinatorClosed
	}
	r.boards[boardID] = c
	r.mu.Unlock()
	r.cfg.Logger.Info("board coordinator loaded", "board_id", boardID, "columns", len(columns), "tasks", len(tasks))
	return c, nil
}
