package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"

	"github.com/evanschultz/kanboard/internal/app"
	"github.com/evanschultz/kanboard/internal/domain"
)

// Board is the live board the model reads from and mutates. *app.Coordinator satisfies it.
type Board interface {
	BoardID() string
	Columns() []domain.Column
	Snapshot() []domain.Task
	Task(taskID string) (domain.Task, bool)
	VisibleTasks(column string, filter domain.ViewFilter) []domain.Task
	Stats() domain.BoardStats
	HandleDragEnd(ctx context.Context, result domain.DragResult, filter domain.ViewFilter) (app.MoveOutcome, error)
	AddTask(ctx context.Context, in app.AddTaskInput) (domain.Task, error)
	UpdateTask(ctx context.Context, in app.UpdateTaskInput) (domain.Task, error)
	DeleteTask(ctx context.Context, taskID string, mode app.DeleteMode) error
	RestoreTask(ctx context.Context, taskID string) (domain.Task, error)
}

// Notifications is the toast source. *app.Feed satisfies it.
type Notifications interface {
	Since(after uint64) []app.Notification
}

// inputMode represents a selectable mode.
type inputMode int

// modeNone and related constants define package defaults.
const (
	modeNone inputMode = iota
	modeDrag
	modeSearch
	modeAddTask
	modeEditTask
	modeTaskInfo
	modeConfirmHardDelete
)

// toastPollInterval is how often the model drains the notification feed.
const toastPollInterval = 250 * time.Millisecond

// defaultToastDuration keeps a toast visible after it arrives.
const defaultToastDuration = 4 * time.Second

// maxToasts bounds the toast stack.
const maxToasts = 3

// priorityFilterCycle is the order the priority filter steps through. Empty means any.
var priorityFilterCycle = []domain.Priority{"", domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh}

// dragState tracks one keyboard drag. source indexes the filtered view the drag
// started in; column and index address the drop slot in the filtered destination.
type dragState struct {
	taskID string
	title  string
	source domain.DragLocation
	column int
	index  int
}

// toast is one on-screen notification.
type toast struct {
	kind    app.NotificationKind
	message string
	at      time.Time
}

// Model is the bubbletea model for one board.
type Model struct {
	board Board
	notes Notifications

	ready  bool
	width  int
	height int

	status string

	help help.Model
	keys keyMap

	taskFields        TaskFieldConfig
	defaultDeleteMode app.DeleteMode
	boardTitle        string
	clock             app.Clock
	copyText          func(string) error
	toastDuration     time.Duration

	columns        []domain.Column
	selectedColumn int
	selectedTask   int
	filter         domain.ViewFilter

	mode        inputMode
	searchInput textinput.Model
	formInputs  []textinput.Model
	formFocus   int

	editingTaskID      string
	infoTaskID         string
	pendingDeleteID    string
	lastArchivedTaskID string
	drag               *dragState

	lastSeq uint64
	toasts  []toast
	md      *markdownRenderer
}

// actionMsg carries the result of one task mutation.
type actionMsg struct {
	err            error
	status         string
	focusTaskID    string
	archivedTaskID string
}

// moveResultMsg carries the result of one drop.
type moveResultMsg struct {
	outcome app.MoveOutcome
	err     error
}

// toastTickMsg triggers one notification drain.
type toastTickMsg time.Time

// NewModel constructs a model over board. notes may be nil to disable toasts.
func NewModel(board Board, notes Notifications, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	searchInput := textinput.New()
	searchInput.Prompt = "/ "
	searchInput.Placeholder = "title, description, assignee"
	searchInput.CharLimit = 120
	m := Model{
		board:             board,
		notes:             notes,
		status:            "loading...",
		help:              h,
		keys:              newKeyMap(),
		taskFields:        DefaultTaskFieldConfig(),
		defaultDeleteMode: app.DeleteModeArchive,
		boardTitle:        "board",
		clock:             time.Now,
		copyText:          defaultClipboard,
		toastDuration:     defaultToastDuration,
		searchInput:       searchInput,
		md:                &markdownRenderer{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	m.refresh()
	return m
}

// Init handles init.
func (m Model) Init() tea.Cmd {
	return toastTick()
}

func toastTick() tea.Cmd {
	return tea.Tick(toastPollInterval, func(t time.Time) tea.Msg { return toastTickMsg(t) })
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case toastTickMsg:
		m.pullToasts()
		m.expireToasts()
		m.refresh()
		return m, toastTick()

	case actionMsg:
		m.refresh()
		if msg.err != nil {
			m.status = "error: " + msg.err.Error()
			return m, nil
		}
		if msg.status != "" {
			m.status = msg.status
		}
		if msg.archivedTaskID != "" {
			m.lastArchivedTaskID = msg.archivedTaskID
		}
		if msg.focusTaskID != "" {
			m.focusTaskByID(msg.focusTaskID)
		}
		m.pullToasts()
		return m, nil

	case moveResultMsg:
		m.refresh()
		m.pullToasts()
		if msg.err != nil {
			m.status = "move rejected: " + msg.err.Error()
			if errIsConflict(msg.err) {
				m.status = "board changed under the drag; try again"
			}
			return m, nil
		}
		if msg.outcome.Noop {
			m.status = "drag cancelled"
			return m, nil
		}
		m.focusTaskByID(msg.outcome.Task.ID)
		m.status = fmt.Sprintf("moved %q", truncate(msg.outcome.Task.Title, 32))
		return m, nil

	case tea.KeyPressMsg:
		m.refresh()
		switch m.mode {
		case modeNone:
			return m.handleNormalModeKey(msg)
		case modeDrag:
			return m.handleDragKey(msg)
		default:
			return m.handleInputModeKey(msg)
		}

	default:
		return m, nil
	}
}

// refresh re-reads columns from the live board and keeps selections in range.
func (m *Model) refresh() {
	if m.board == nil {
		return
	}
	m.columns = m.board.Columns()
	if m.status == "loading..." {
		m.status = "ready"
	}
	m.clampSelections()
}

func (m *Model) clampSelections() {
	if len(m.columns) == 0 {
		m.selectedColumn = 0
		m.selectedTask = 0
		return
	}
	m.selectedColumn = clamp(m.selectedColumn, 0, len(m.columns)-1)
	m.selectedTask = clamp(m.selectedTask, 0, len(m.currentColumnTasks())-1)
}

// currentColumnID returns the selected column id.
func (m Model) currentColumnID() (string, bool) {
	if len(m.columns) == 0 {
		return "", false
	}
	return m.columns[clamp(m.selectedColumn, 0, len(m.columns)-1)].ID, true
}

// currentColumnTasks returns the filtered view of the selected column.
func (m Model) currentColumnTasks() []domain.Task {
	columnID, ok := m.currentColumnID()
	if !ok {
		return nil
	}
	return m.board.VisibleTasks(columnID, m.filter)
}

// selectedTaskInCurrentColumn returns the highlighted task, if any.
func (m Model) selectedTaskInCurrentColumn() (domain.Task, bool) {
	tasks := m.currentColumnTasks()
	if len(tasks) == 0 {
		return domain.Task{}, false
	}
	return tasks[clamp(m.selectedTask, 0, len(tasks)-1)], true
}

// focusTaskByID moves the selection onto taskID when it is visible.
func (m *Model) focusTaskByID(taskID string) bool {
	for colIdx, column := range m.columns {
		for taskIdx, task := range m.board.VisibleTasks(column.ID, m.filter) {
			if task.ID == taskID {
				m.selectedColumn = colIdx
				m.selectedTask = taskIdx
				return true
			}
		}
	}
	return false
}

func (m Model) columnTitle(columnID string) string {
	if col, ok := domain.FindColumn(m.columns, columnID); ok {
		return col.Title
	}
	return columnID
}

// handleNormalModeKey handles board navigation and task actions.
func (m Model) handleNormalModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.moveLeft):
		if m.selectedColumn > 0 {
			m.selectedColumn--
			m.selectedTask = 0
		}
		m.clampSelections()
		return m, nil

	case key.Matches(msg, m.keys.moveRight):
		if m.selectedColumn < len(m.columns)-1 {
			m.selectedColumn++
			m.selectedTask = 0
		}
		m.clampSelections()
		return m, nil

	case key.Matches(msg, m.keys.moveUp):
		if m.selectedTask > 0 {
			m.selectedTask--
		}
		return m, nil

	case key.Matches(msg, m.keys.moveDown):
		if m.selectedTask < len(m.currentColumnTasks())-1 {
			m.selectedTask++
		}
		return m, nil

	case key.Matches(msg, m.keys.grab):
		return m.startDrag()

	case key.Matches(msg, m.keys.addTask):
		if len(m.columns) == 0 {
			m.status = "board has no columns"
			return m, nil
		}
		return m, m.startTaskForm(nil)

	case key.Matches(msg, m.keys.taskInfo):
		task, ok := m.selectedTaskInCurrentColumn()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		m.infoTaskID = task.ID
		m.mode = modeTaskInfo
		m.status = "task info"
		return m, nil

	case key.Matches(msg, m.keys.editTask):
		task, ok := m.selectedTaskInCurrentColumn()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		return m, m.startTaskForm(&task)

	case key.Matches(msg, m.keys.hardDeleteTask):
		return m.confirmHardDelete()

	case key.Matches(msg, m.keys.deleteTask):
		if m.defaultDeleteMode == app.DeleteModeHard {
			return m.confirmHardDelete()
		}
		return m.deleteSelectedTask(app.DeleteModeArchive)

	case key.Matches(msg, m.keys.restoreTask):
		return m.restoreLastArchived()

	case key.Matches(msg, m.keys.copyTask):
		task, ok := m.selectedTaskInCurrentColumn()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		return m.copyTaskToClipboard(task)

	case key.Matches(msg, m.keys.search):
		m.mode = modeSearch
		m.searchInput.SetValue(m.filter.Search)
		m.searchInput.CursorEnd()
		m.status = "search"
		return m, m.searchInput.Focus()

	case key.Matches(msg, m.keys.cyclePriority):
		idx := slices.Index(priorityFilterCycle, m.filter.Priority)
		m.filter.Priority = priorityFilterCycle[wrapIndex(idx, 1, len(priorityFilterCycle))]
		m.afterFilterChange()
		return m, nil

	case key.Matches(msg, m.keys.cycleDue):
		current := m.filter.Due
		if current == "" {
			current = domain.DueAll
		}
		idx := slices.Index(domain.DueFilters, current)
		m.filter.Due = domain.DueFilters[wrapIndex(idx, 1, len(domain.DueFilters))]
		m.afterFilterChange()
		return m, nil

	case key.Matches(msg, m.keys.cycleAssignee):
		options := append([]string{""}, m.assignees()...)
		idx := slices.Index(options, m.filter.Assignee)
		m.filter.Assignee = options[wrapIndex(idx, 1, len(options))]
		m.afterFilterChange()
		return m, nil

	case key.Matches(msg, m.keys.clearFilters):
		m.filter = domain.ViewFilter{}
		m.afterFilterChange()
		m.status = "filters cleared"
		return m, nil

	default:
		return m, nil
	}
}

// afterFilterChange keeps the selection valid for the new view.
func (m *Model) afterFilterChange() {
	m.selectedTask = 0
	m.clampSelections()
	m.status = "filter: " + m.filterSummary()
}

// assignees lists the distinct assignees of active tasks, sorted.
func (m Model) assignees() []string {
	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, task := range m.board.Snapshot() {
		if task.ArchivedAt != nil || task.Assignee == "" {
			continue
		}
		if _, ok := seen[task.Assignee]; ok {
			continue
		}
		seen[task.Assignee] = struct{}{}
		out = append(out, task.Assignee)
	}
	slices.Sort(out)
	return out
}

// startDrag grabs the selected task.
func (m Model) startDrag() (tea.Model, tea.Cmd) {
	task, ok := m.selectedTaskInCurrentColumn()
	if !ok {
		m.status = "no task to grab"
		return m, nil
	}
	columnID, _ := m.currentColumnID()
	m.drag = &dragState{
		taskID: task.ID,
		title:  task.Title,
		source: domain.DragLocation{DroppableID: columnID, Index: m.selectedTask},
		column: m.selectedColumn,
		index:  m.selectedTask,
	}
	m.mode = modeDrag
	m.status = fmt.Sprintf("dragging %q • enter drop • esc cancel", truncate(task.Title, 32))
	return m, nil
}

// dropSlots is the number of drop positions in a column while dragging: every
// visible task other than the dragged one, plus the end.
func (m Model) dropSlots(colIdx int) int {
	if m.drag == nil || colIdx < 0 || colIdx >= len(m.columns) {
		return 0
	}
	n := 0
	for _, task := range m.board.VisibleTasks(m.columns[colIdx].ID, m.filter) {
		if task.ID != m.drag.taskID {
			n++
		}
	}
	return n
}

// handleDragKey moves the drop slot, drops, or cancels.
func (m Model) handleDragKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if m.drag == nil {
		m.mode = modeNone
		return m, nil
	}
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit

	case key.Matches(msg, m.keys.cancel):
		result := domain.DragResult{DraggableID: m.drag.taskID, Source: m.drag.source}
		m.drag = nil
		m.mode = modeNone
		return m, m.moveCmd(result)

	case key.Matches(msg, m.keys.drop):
		result := domain.DragResult{
			DraggableID: m.drag.taskID,
			Source:      m.drag.source,
			Destination: &domain.DragLocation{
				DroppableID: m.columns[m.drag.column].ID,
				Index:       m.drag.index,
			},
		}
		m.drag = nil
		m.mode = modeNone
		m.status = "saving move..."
		return m, m.moveCmd(result)

	case key.Matches(msg, m.keys.moveLeft):
		if m.drag.column > 0 {
			m.drag.column--
		}
		m.drag.index = clamp(m.drag.index, 0, m.dropSlots(m.drag.column))
		return m, nil

	case key.Matches(msg, m.keys.moveRight):
		if m.drag.column < len(m.columns)-1 {
			m.drag.column++
		}
		m.drag.index = clamp(m.drag.index, 0, m.dropSlots(m.drag.column))
		return m, nil

	case key.Matches(msg, m.keys.moveUp):
		if m.drag.index > 0 {
			m.drag.index--
		}
		return m, nil

	case key.Matches(msg, m.keys.moveDown):
		if m.drag.index < m.dropSlots(m.drag.column) {
			m.drag.index++
		}
		return m, nil

	default:
		return m, nil
	}
}

// moveCmd hands one drop to the board. The filter is captured at drop time so the
// board resolves indices against the same view the user saw.
func (m Model) moveCmd(result domain.DragResult) tea.Cmd {
	board := m.board
	filter := m.filter
	return func() tea.Msg {
		outcome, err := board.HandleDragEnd(context.Background(), result, filter)
		return moveResultMsg{outcome: outcome, err: err}
	}
}

func (m Model) deleteSelectedTask(mode app.DeleteMode) (tea.Model, tea.Cmd) {
	task, ok := m.selectedTaskInCurrentColumn()
	if !ok {
		m.status = "no task selected"
		return m, nil
	}
	return m, m.deleteCmd(task, mode)
}

func (m Model) deleteCmd(task domain.Task, mode app.DeleteMode) tea.Cmd {
	board := m.board
	return func() tea.Msg {
		if err := board.DeleteTask(context.Background(), task.ID, mode); err != nil {
			return actionMsg{err: err}
		}
		out := actionMsg{status: "deleted " + truncate(task.Title, 32)}
		if mode == app.DeleteModeArchive {
			out.status = "archived " + truncate(task.Title, 32) + " • u to restore"
			out.archivedTaskID = task.ID
		}
		return out
	}
}

func (m Model) confirmHardDelete() (tea.Model, tea.Cmd) {
	task, ok := m.selectedTaskInCurrentColumn()
	if !ok {
		m.status = "no task selected"
		return m, nil
	}
	m.pendingDeleteID = task.ID
	m.mode = modeConfirmHardDelete
	m.status = "confirm hard delete"
	return m, nil
}

func (m Model) restoreLastArchived() (tea.Model, tea.Cmd) {
	taskID := m.lastArchivedTaskID
	if taskID == "" {
		m.status = "nothing to restore"
		return m, nil
	}
	board := m.board
	m.lastArchivedTaskID = ""
	return m, func() tea.Msg {
		task, err := board.RestoreTask(context.Background(), taskID)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "restored " + truncate(task.Title, 32), focusTaskID: task.ID}
	}
}

func (m Model) copyTaskToClipboard(task domain.Task) (tea.Model, tea.Cmd) {
	if err := m.copyText(taskMarkdown(task, m.columnTitle(task.Status))); err != nil {
		m.status = "copy failed: " + err.Error()
		return m, nil
	}
	m.status = "copied " + truncate(task.Title, 32)
	return m, nil
}

// handleInputModeKey routes keys for search, forms, task info, and confirmation.
func (m Model) handleInputModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	switch m.mode {
	case modeSearch:
		switch msg.String() {
		case "esc":
			m.searchInput.Blur()
			m.searchInput.SetValue("")
			m.filter.Search = ""
			m.mode = modeNone
			m.afterFilterChange()
			return m, nil
		case "enter":
			m.searchInput.Blur()
			m.mode = modeNone
			m.filter.Search = strings.TrimSpace(m.searchInput.Value())
			m.afterFilterChange()
			return m, nil
		}
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		m.filter.Search = strings.TrimSpace(m.searchInput.Value())
		m.selectedTask = 0
		m.clampSelections()
		return m, cmd

	case modeAddTask, modeEditTask:
		switch msg.String() {
		case "esc":
			m.mode = modeNone
			m.formInputs = nil
			m.editingTaskID = ""
			m.status = "cancelled"
			return m, nil
		case "tab", "down":
			return m, m.focusTaskFormField(wrapIndex(m.formFocus, 1, len(m.formInputs)))
		case "shift+tab", "up":
			return m, m.focusTaskFormField(wrapIndex(m.formFocus, -1, len(m.formInputs)))
		case "enter":
			return m.submitTaskForm()
		}
		var cmd tea.Cmd
		m.formInputs[m.formFocus], cmd = m.formInputs[m.formFocus].Update(msg)
		return m, cmd

	case modeTaskInfo:
		task, ok := m.board.Task(m.infoTaskID)
		switch {
		case key.Matches(msg, m.keys.copyTask) && ok:
			m.mode = modeNone
			return m.copyTaskToClipboard(task)
		case key.Matches(msg, m.keys.editTask) && ok:
			return m, m.startTaskForm(&task)
		case msg.String() == "esc", key.Matches(msg, m.keys.taskInfo), key.Matches(msg, m.keys.quit):
			m.mode = modeNone
			m.infoTaskID = ""
			m.status = "ready"
		}
		return m, nil

	case modeConfirmHardDelete:
		switch msg.String() {
		case "y", "Y", "enter":
			task, ok := m.board.Task(m.pendingDeleteID)
			m.mode = modeNone
			m.pendingDeleteID = ""
			if !ok {
				m.status = "task no longer exists"
				return m, nil
			}
			return m, m.deleteCmd(task, app.DeleteModeHard)
		case "n", "N", "esc":
			m.mode = modeNone
			m.pendingDeleteID = ""
			m.status = "cancelled"
		}
		return m, nil
	}
	return m, nil
}

// pullToasts drains new notifications from the feed.
func (m *Model) pullToasts() {
	if m.notes == nil {
		return
	}
	for _, n := range m.notes.Since(m.lastSeq) {
		m.lastSeq = max(m.lastSeq, n.Seq)
		m.toasts = append(m.toasts, toast{kind: n.Kind, message: n.Message, at: m.clock()})
	}
	if len(m.toasts) > maxToasts {
		m.toasts = slices.Clone(m.toasts[len(m.toasts)-maxToasts:])
	}
}

// expireToasts drops toasts older than the display duration.
func (m *Model) expireToasts() {
	now := m.clock()
	m.toasts = slices.DeleteFunc(m.toasts, func(t toast) bool {
		return now.Sub(t.at) >= m.toastDuration
	})
}

// errIsConflict reports whether err means the board moved under the user.
func errIsConflict(err error) bool {
	return errors.Is(err, domain.ErrDragMismatch) || errors.Is(err, app.ErrMoveInFlight)
}

// wrapIndex steps current by delta and wraps within [0,total).
func wrapIndex(current int, delta int, total int) int {
	if total <= 0 {
		return 0
	}
	next := (current + delta) % total
	if next < 0 {
		next += total
	}
	return next
}

// clamp bounds v to [minV,maxV]. When maxV < minV it returns minV.
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// truncate shortens s to at most max runes with a trailing ellipsis.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	if max <= 1 {
		return string(rs[:max])
	}
	return string(rs[:max-1]) + "…"
}
