package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/evanschultz/kanboard/internal/domain"
)

// DefaultPersistTimeout bounds one SaveBoardState call when no timeout is configured.
const DefaultPersistTimeout = 5 * time.Second

// errNoop marks a mutation that leaves the collection unchanged.
var errNoop = errors.New("noop")

// CoordinatorConfig holds the collaborators and initial state for one board.
type CoordinatorConfig struct {
	BoardID        string
	Columns        []domain.Column
	Tasks          []domain.Task
	Store          BoardStateStore
	Notifier       Notifier
	Locker         MoveLocker
	Policy         domain.OrderPolicy
	PersistTimeout time.Duration
	DeleteMode     DeleteMode
	Clock          Clock
	IDGen          IDGenerator
	Logger         Logger
}

// Coordinator owns the live task collection of one board. Mutations commit
// optimistically and are persisted in commit order by a single background worker.
// A failed save restores the last persisted collection and drops every save queued
// behind it.
type Coordinator struct {
	boardID    string
	store      BoardStateStore
	notifier   Notifier
	locker     MoveLocker
	policy     domain.OrderPolicy
	timeout    time.Duration
	deleteMode DeleteMode
	clock      Clock
	idGen      IDGenerator
	logger     Logger

	mu           sync.Mutex
	columns      []domain.Column
	tasks        []domain.Task
	confirmed    []domain.Task
	seq          uint64
	abortThrough uint64
	queue        []saveJob
	pending      int
	idle         chan struct{}
	closed       bool

	wake chan struct{}
	done chan struct{}
}

type saveJob struct {
	seq     uint64
	op      string
	tasks   []domain.Task
	locks   []string
	success string
	failure string
}

type mutation struct {
	op      string
	lockIDs []string
	failure string
	// apply receives a private copy of the current collection and returns the
	// next collection plus the success message to emit once it is persisted.
	apply func(current []domain.Task, columns []domain.Column) ([]domain.Task, string, error)
}

// MoveOutcome describes a handled drop.
type MoveOutcome struct {
	Noop        bool
	Task        domain.Task
	From        domain.DragLocation
	To          domain.DragLocation
	CrossColumn bool
}

// NewCoordinator validates cfg and starts the persistence worker.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	cfg.BoardID = strings.TrimSpace(cfg.BoardID)
	if cfg.BoardID == "" {
		return nil, domain.ErrInvalidID
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("coordinator %s: board state store is required", cfg.BoardID)
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NotifierFunc(nil)
	}
	if cfg.Locker == nil {
		cfg.Locker = NewMemoryLocker()
	}
	if cfg.Policy == "" {
		cfg.Policy = domain.OrderPolicyRenumber
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = DefaultPersistTimeout
	}
	if cfg.DeleteMode == "" {
		cfg.DeleteMode = DeleteModeArchive
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.IDGen == nil {
		return nil, fmt.Errorf("coordinator %s: id generator is required", cfg.BoardID)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	c := &Coordinator{
		boardID:    cfg.BoardID,
		store:      cfg.Store,
		notifier:   cfg.Notifier,
		locker:     cfg.Locker,
		policy:     cfg.Policy,
		timeout:    cfg.PersistTimeout,
		deleteMode: cfg.DeleteMode,
		clock:      cfg.Clock,
		idGen:      cfg.IDGen,
		logger:     cfg.Logger,
		columns:    sortColumns(cfg.Columns),
		tasks:      domain.CloneTasks(cfg.Tasks),
		confirmed:  domain.CloneTasks(cfg.Tasks),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	go c.run()
	return c, nil
}

// BoardID returns the board this coordinator owns.
func (c *Coordinator) BoardID() string {
	return c.boardID
}

// Snapshot returns a copy of the current, possibly unpersisted, collection.
func (c *Coordinator) Snapshot() []domain.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.CloneTasks(c.tasks)
}

// Columns returns the board's active columns ordered by position.
func (c *Coordinator) Columns() []domain.Column {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.columns)
}

// SetColumns replaces the known columns after they change in storage.
func (c *Coordinator) SetColumns(columns []domain.Column) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.columns = sortColumns(columns)
}

// Task looks up one task in the current collection.
func (c *Coordinator) Task(taskID string) (domain.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.tasks {
		if t.ID == taskID {
			return t.Clone(), true
		}
	}
	return domain.Task{}, false
}

// VisibleTasks projects the current collection for one column.
func (c *Coordinator) VisibleTasks(column string, filter domain.ViewFilter) []domain.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.VisibleTasks(c.tasks, column, filter, c.clock())
}

// Stats summarizes the current collection.
func (c *Coordinator) Stats() domain.BoardStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.ComputeStats(c.columns, c.tasks)
}

// HandleDragEnd applies a drop reported against the filtered view described by filter.
func (c *Coordinator) HandleDragEnd(ctx context.Context, result domain.DragResult, filter domain.ViewFilter) (MoveOutcome, error) {
	if result.Destination == nil {
		c.logger.Debug("drop outside any column", "board_id", c.boardID, "task_id", result.DraggableID)
		return MoveOutcome{Noop: true}, nil
	}

	var outcome MoveOutcome
	err := c.commit(ctx, mutation{
		op:      "move",
		lockIDs: []string{result.DraggableID},
		failure: "Failed to move task",
		apply: func(current []domain.Task, columns []domain.Column) ([]domain.Task, string, error) {
			if _, ok := domain.FindColumn(columns, result.Source.DroppableID); !ok {
				return nil, "", fmt.Errorf("%w: %s", ErrUnknownColumn, result.Source.DroppableID)
			}
			dstColumn, ok := domain.FindColumn(columns, result.Destination.DroppableID)
			if !ok {
				return nil, "", fmt.Errorf("%w: %s", ErrUnknownColumn, result.Destination.DroppableID)
			}
			src, dst, err := domain.ResolveDrag(current, result, filter, c.clock())
			if err != nil {
				return nil, "", err
			}
			if src.DroppableID == dst.DroppableID && src.Index == dst.Index {
				return nil, "", errNoop
			}
			cross := src.DroppableID != dst.DroppableID
			if cross && !dstColumn.CanAcceptTask(len(domain.ColumnTasks(current, dst.DroppableID))) {
				return nil, "", fmt.Errorf("%w: %s", ErrColumnFull, dstColumn.Title)
			}
			next, err := domain.Reorder(current, src, dst, c.policy)
			if err != nil {
				return nil, "", err
			}
			now := c.clock().UTC()
			for i := range next {
				if next[i].ID == result.DraggableID {
					next[i].UpdatedAt = now
					outcome.Task = next[i].Clone()
					break
				}
			}
			outcome.From, outcome.To, outcome.CrossColumn = src, *dst, cross
			if !cross {
				return next, "", nil
			}
			return next, fmt.Sprintf("Task moved to %s!", dstColumn.Title), nil
		},
	})
	if errors.Is(err, errNoop) {
		return MoveOutcome{Noop: true}, nil
	}
	if err != nil {
		c.logger.Warn("move rejected", "board_id", c.boardID, "task_id", result.DraggableID, "err", err)
		c.notifier.Notify(NotificationError, fmt.Sprintf("Failed to move task: %v", err))
		return MoveOutcome{}, err
	}
	c.logger.Debug("move committed", "board_id", c.boardID, "task_id", result.DraggableID, "from", outcome.From.DroppableID, "to", outcome.To.DroppableID, "index", outcome.To.Index)
	return outcome, nil
}

// AddTaskInput holds input values for add task operations.
type AddTaskInput struct {
	Status      string
	Title       string
	Description string
	Assignee    string
	Priority    domain.Priority
	DueAt       *time.Time
	Tags        []string
}

// AddTask appends a new task to the end of its column.
func (c *Coordinator) AddTask(ctx context.Context, in AddTaskInput) (domain.Task, error) {
	id := c.idGen()
	var created domain.Task
	err := c.commit(ctx, mutation{
		op:      "add",
		lockIDs: []string{id},
		failure: "Failed to add task",
		apply: func(current []domain.Task, columns []domain.Column) ([]domain.Task, string, error) {
			column, ok := domain.FindColumn(columns, strings.TrimSpace(in.Status))
			if !ok {
				return nil, "", fmt.Errorf("%w: %s", ErrUnknownColumn, in.Status)
			}
			if !column.CanAcceptTask(len(domain.ColumnTasks(current, column.ID))) {
				return nil, "", fmt.Errorf("%w: %s", ErrColumnFull, column.Title)
			}
			task, err := domain.NewTask(domain.TaskInput{
				ID:          id,
				BoardID:     c.boardID,
				Status:      column.ID,
				Order:       domain.NextOrder(current, column.ID),
				Title:       in.Title,
				Description: in.Description,
				Assignee:    in.Assignee,
				Priority:    in.Priority,
				DueAt:       in.DueAt,
				Tags:        in.Tags,
			}, c.clock())
			if err != nil {
				return nil, "", err
			}
			created = task.Clone()
			return append(current, task), "Task added successfully!", nil
		},
	})
	if err != nil {
		return domain.Task{}, err
	}
	return created, nil
}

// UpdateTaskInput holds input values for update task operations.
// An empty Priority keeps the current priority.
type UpdateTaskInput struct {
	TaskID      string
	Title       string
	Description string
	Assignee    string
	Priority    domain.Priority
	DueAt       *time.Time
	Tags        []string
}

// UpdateTask edits task details in place.
func (c *Coordinator) UpdateTask(ctx context.Context, in UpdateTaskInput) (domain.Task, error) {
	var updated domain.Task
	err := c.commit(ctx, mutation{
		op:      "update",
		lockIDs: []string{in.TaskID},
		failure: "Failed to update task",
		apply: func(current []domain.Task, _ []domain.Column) ([]domain.Task, string, error) {
			idx := indexOfTask(current, in.TaskID)
			if idx < 0 {
				return nil, "", ErrNotFound
			}
			priority := in.Priority
			if priority == "" {
				priority = current[idx].Priority
			}
			if err := current[idx].UpdateDetails(in.Title, in.Description, in.Assignee, priority, in.DueAt, in.Tags, c.clock()); err != nil {
				return nil, "", err
			}
			updated = current[idx].Clone()
			return current, "Task updated successfully!", nil
		},
	})
	if err != nil {
		return domain.Task{}, err
	}
	return updated, nil
}

// DeleteTask archives or removes a task and closes the gap in its column.
func (c *Coordinator) DeleteTask(ctx context.Context, taskID string, mode DeleteMode) error {
	if mode == "" {
		mode = c.deleteMode
	}
	if mode != DeleteModeArchive && mode != DeleteModeHard {
		return ErrInvalidDeleteMode
	}
	return c.commit(ctx, mutation{
		op:      "delete",
		lockIDs: []string{taskID},
		failure: "Failed to delete task",
		apply: func(current []domain.Task, _ []domain.Column) ([]domain.Task, string, error) {
			idx := indexOfTask(current, taskID)
			if idx < 0 {
				return nil, "", ErrNotFound
			}
			status := current[idx].Status
			if mode == DeleteModeArchive {
				current[idx].Archive(c.clock())
			} else {
				current = slices.Delete(current, idx, idx+1)
			}
			return domain.RenumberColumn(current, status), "Task deleted successfully!", nil
		},
	})
}

// RestoreTask brings an archived task back at the end of its column.
func (c *Coordinator) RestoreTask(ctx context.Context, taskID string) (domain.Task, error) {
	var restored domain.Task
	err := c.commit(ctx, mutation{
		op:      "restore",
		lockIDs: []string{taskID},
		failure: "Failed to restore task",
		apply: func(current []domain.Task, columns []domain.Column) ([]domain.Task, string, error) {
			idx := indexOfTask(current, taskID)
			if idx < 0 || current[idx].ArchivedAt == nil {
				return nil, "", ErrNotFound
			}
			column, ok := domain.FindColumn(columns, current[idx].Status)
			if !ok {
				return nil, "", fmt.Errorf("%w: %s", ErrUnknownColumn, current[idx].Status)
			}
			if !column.CanAcceptTask(len(domain.ColumnTasks(current, column.ID))) {
				return nil, "", fmt.Errorf("%w: %s", ErrColumnFull, column.Title)
			}
			current[idx].Order = domain.NextOrder(current, column.ID)
			current[idx].Restore(c.clock())
			restored = current[idx].Clone()
			return current, "Task restored successfully!", nil
		},
	})
	if err != nil {
		return domain.Task{}, err
	}
	return restored, nil
}

// Flush blocks until every queued save has finished or ctx ends.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()
	if idle == nil {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains queued saves and stops the worker. Later mutations fail with ErrCoordinatorClosed.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.signal()
	<-c.done
	return nil
}

func (c *Coordinator) commit(ctx context.Context, m mutation) error {
	locked, err := c.lockAll(ctx, m.lockIDs)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.unlockAll(locked)
		return ErrCoordinatorClosed
	}
	next, success, err := m.apply(domain.CloneTasks(c.tasks), c.columns)
	if err != nil {
		c.mu.Unlock()
		c.unlockAll(locked)
		return err
	}
	c.tasks = next
	c.seq++
	c.queue = append(c.queue, saveJob{
		seq:     c.seq,
		op:      m.op,
		tasks:   domain.CloneTasks(next),
		locks:   locked,
		success: success,
		failure: m.failure,
	})
	if c.pending == 0 {
		c.idle = make(chan struct{})
	}
	c.pending++
	c.mu.Unlock()

	c.signal()
	return nil
}

func (c *Coordinator) lockAll(ctx context.Context, ids []string) ([]string, error) {
	locked := make([]string, 0, len(ids))
	for _, id := range ids {
		ok, err := c.locker.TryLock(ctx, id)
		if err != nil {
			c.unlockAll(locked)
			return nil, fmt.Errorf("lock task %s: %w", id, err)
		}
		if !ok {
			c.unlockAll(locked)
			return nil, ErrMoveInFlight
		}
		locked = append(locked, id)
	}
	return locked, nil
}

func (c *Coordinator) unlockAll(ids []string) {
	if len(ids) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	for _, id := range ids {
		if err := c.locker.Unlock(ctx, id); err != nil {
			c.logger.Warn("release task lock failed", "board_id", c.boardID, "task_id", id, "err", err)
		}
	}
}

func (c *Coordinator) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Coordinator) run() {
	defer close(c.done)
	for {
		job, ok := c.next()
		if !ok {
			return
		}
		c.process(job)
	}
}

// next pops the oldest queued save. Queued saves drain before a close takes effect.
func (c *Coordinator) next() (saveJob, bool) {
	for {
		c.mu.Lock()
		if len(c.queue) > 0 {
			job := c.queue[0]
			c.queue = c.queue[1:]
			c.mu.Unlock()
			return job, true
		}
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return saveJob{}, false
		}
		<-c.wake
	}
}

func (c *Coordinator) process(job saveJob) {
	defer c.finish(job)

	c.mu.Lock()
	aborted := job.seq <= c.abortThrough
	c.mu.Unlock()
	if aborted {
		c.logger.Debug("save dropped after rollback", "board_id", c.boardID, "seq", job.seq, "op", job.op)
		return
	}

	if err := c.save(job); err != nil {
		c.mu.Lock()
		c.tasks = domain.CloneTasks(c.confirmed)
		c.abortThrough = c.seq
		// Every save still queued was built on the failed state.
		discarded := len(c.queue)
		c.mu.Unlock()
		c.logger.Error("board save failed, rolled back", "board_id", c.boardID, "seq", job.seq, "op", job.op, "discarded", discarded, "err", err)
		c.notifier.Notify(NotificationError, fmt.Sprintf("%s: %v", job.failure, err))
		if discarded > 0 {
			c.notifier.Notify(NotificationError, discardedMessage(discarded))
		}
		return
	}

	c.mu.Lock()
	c.confirmed = job.tasks
	c.mu.Unlock()
	c.logger.Debug("board saved", "board_id", c.boardID, "seq", job.seq, "op", job.op, "tasks", len(job.tasks))
	if job.success != "" {
		c.notifier.Notify(NotificationSuccess, job.success)
	}
}

// save runs one persistence call. Expiry of the timeout counts as failure even
// when the store ignores ctx.
func (c *Coordinator) save(job saveJob) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.store.SaveBoardState(ctx, c.boardID, job.tasks)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrPersistTimeout, c.timeout)
		}
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w after %s", ErrPersistTimeout, c.timeout)
	}
}

func (c *Coordinator) finish(job saveJob) {
	c.unlockAll(job.locks)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending--
	if c.pending == 0 && c.idle != nil {
		close(c.idle)
		c.idle = nil
	}
}

func discardedMessage(n int) string {
	if n == 1 {
		return "1 later change discarded"
	}
	return fmt.Sprintf("%d later changes discarded", n)
}

func indexOfTask(tasks []domain.Task, id string) int {
	return slices.IndexFunc(tasks, func(t domain.Task) bool { return t.ID == id })
}

func sortColumns(columns []domain.Column) []domain.Column {
	out := make([]domain.Column, 0, len(columns))
	for _, col := range columns {
		if col.ArchivedAt == nil {
			out = append(out, col)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Column) int { return a.Position - b.Position })
	return out
}
