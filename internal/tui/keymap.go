package tui

import "charm.land/bubbles/v2/key"

// keyMap represents key map data used by this package.
type keyMap struct {
	quit           key.Binding
	toggleHelp     key.Binding
	moveLeft       key.Binding
	moveRight      key.Binding
	moveUp         key.Binding
	moveDown       key.Binding
	grab           key.Binding
	drop           key.Binding
	cancel         key.Binding
	addTask        key.Binding
	taskInfo       key.Binding
	editTask       key.Binding
	deleteTask     key.Binding
	hardDeleteTask key.Binding
	restoreTask    key.Binding
	copyTask       key.Binding
	search         key.Binding
	cyclePriority  key.Binding
	cycleDue       key.Binding
	cycleAssignee  key.Binding
	clearFilters   key.Binding
}

// newKeyMap constructs key map.
func newKeyMap() keyMap {
	return keyMap{
		quit:           key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		toggleHelp:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveLeft:       key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "column left")),
		moveRight:      key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "column right")),
		moveUp:         key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "task up")),
		moveDown:       key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "task down")),
		grab:           key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "grab task")),
		drop:           key.NewBinding(key.WithKeys("enter", " ", "space"), key.WithHelp("enter", "drop task")),
		cancel:         key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel drag")),
		addTask:        key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new task")),
		taskInfo:       key.NewBinding(key.WithKeys("i", "enter"), key.WithHelp("i/enter", "task info")),
		editTask:       key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit task")),
		deleteTask:     key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete (default)")),
		hardDeleteTask: key.NewBinding(key.WithKeys("D", "shift+d"), key.WithHelp("D", "hard delete")),
		restoreTask:    key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "restore task")),
		copyTask:       key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy task")),
		search:         key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		cyclePriority:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "priority filter")),
		cycleDue:       key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "due filter")),
		cycleAssignee:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "assignee filter")),
		clearFilters:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear filters")),
	}
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.grab, k.addTask, k.taskInfo, k.editTask, k.search, k.cyclePriority, k.toggleHelp, k.quit,
	}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.moveLeft, k.moveRight, k.moveUp, k.moveDown, k.grab, k.drop, k.cancel},
		{k.addTask, k.taskInfo, k.editTask, k.copyTask, k.deleteTask, k.hardDeleteTask, k.restoreTask},
		{k.search, k.cyclePriority, k.cycleDue, k.cycleAssignee, k.clearFilters, k.toggleHelp, k.quit},
	}
}

// dragHelp lists the bindings active while a task is grabbed.
func (k keyMap) dragHelp() []key.Binding {
	return []key.Binding{k.moveLeft, k.moveRight, k.moveUp, k.moveDown, k.drop, k.cancel}
}
