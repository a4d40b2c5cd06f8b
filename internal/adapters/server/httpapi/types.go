package httpapi

import (
	"time"

	"github.com/evanschultz/kanboard/internal/app"
	"github.com/evanschultz/kanboard/internal/domain"
)

// registerRequest is the POST /auth/register body.
type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,max=120"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// loginRequest is the POST /auth/login body.
type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type createBoardRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

type updateBoardRequest struct {
	Title       string         `json:"title" validate:"required,max=200"`
	Description string         `json:"description" validate:"max=2000"`
	Settings    *boardSettings `json:"settings,omitempty"`
}

type addMemberRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"omitempty,oneof=admin member viewer"`
}

type createColumnRequest struct {
	ID        string `json:"id" validate:"omitempty,max=64"`
	Title     string `json:"title" validate:"required,max=100"`
	Color     string `json:"color"`
	TaskLimit int    `json:"task_limit" validate:"gte=0"`
}

type updateColumnRequest struct {
	Title     *string `json:"title,omitempty" validate:"omitempty,max=100"`
	Color     *string `json:"color,omitempty"`
	TaskLimit *int    `json:"task_limit,omitempty" validate:"omitempty,gte=0"`
}

type reorderColumnsRequest struct {
	ColumnIDs []string `json:"column_ids" validate:"required,min=1,dive,required"`
}

type taskRequest struct {
	Status      string     `json:"status"`
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=5000"`
	Assignee    string     `json:"assignee" validate:"max=120"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	Tags        []string   `json:"tags,omitempty" validate:"max=10,dive,max=40"`
}

type locationPayload struct {
	Column string `json:"column" validate:"required"`
	Index  int    `json:"index" validate:"gte=0"`
}

type filterPayload struct {
	Search   string `json:"search,omitempty"`
	Priority string `json:"priority,omitempty"`
	Assignee string `json:"assignee,omitempty"`
	Due      string `json:"due,omitempty"`
}

// moveRequest is the drop report of one drag gesture. A null destination means
// the task was released outside every column.
type moveRequest struct {
	TaskID      string           `json:"task_id" validate:"required"`
	Source      locationPayload  `json:"source"`
	Destination *locationPayload `json:"destination"`
	Filter      filterPayload    `json:"filter"`
}

type boardSettings struct {
	Public        bool   `json:"public"`
	AllowComments bool   `json:"allow_comments"`
	Theme         string `json:"theme"`
}

type memberView struct {
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

type userView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type boardView struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	OwnerID     string        `json:"owner_id"`
	Members     []memberView  `json:"members"`
	Settings    boardSettings `json:"settings"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	ArchivedAt  *time.Time    `json:"archived_at,omitempty"`
}

type columnView struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Position  int    `json:"position"`
	TaskLimit int    `json:"task_limit"`
	Color     string `json:"color"`
}

type taskView struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	Order       int        `json:"order"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Assignee    string     `json:"assignee,omitempty"`
	Priority    string     `json:"priority"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	Tags        []string   `json:"tags"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
}

type statsView struct {
	TotalTasks     int            `json:"total_tasks"`
	CompletedTasks int            `json:"completed_tasks"`
	PerColumn      map[string]int `json:"per_column"`
}

type boardDetailView struct {
	Board   boardView    `json:"board"`
	Columns []columnView `json:"columns"`
	Stats   statsView    `json:"stats"`
}

type moveView struct {
	Noop        bool         `json:"noop"`
	Task        *taskView    `json:"task,omitempty"`
	From        *locationOut `json:"from,omitempty"`
	To          *locationOut `json:"to,omitempty"`
	CrossColumn bool         `json:"cross_column"`
}

type locationOut struct {
	Column string `json:"column"`
	Index  int    `json:"index"`
}

type notificationView struct {
	Seq     uint64    `json:"seq"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type eventView struct {
	ID         int64             `json:"id"`
	TaskID     string            `json:"task_id"`
	Operation  string            `json:"operation"`
	Metadata   map[string]string `json:"metadata"`
	OccurredAt time.Time         `json:"occurred_at"`
}

func newUserView(u domain.User) userView {
	return userView{ID: u.ID, Email: u.Email, Name: u.Name, CreatedAt: u.CreatedAt}
}

func newBoardView(b domain.Board) boardView {
	members := make([]memberView, 0, len(b.Members))
	for _, m := range b.Members {
		members = append(members, memberView{UserID: m.UserID, Role: string(m.Role), JoinedAt: m.JoinedAt})
	}
	return boardView{
		ID:          b.ID,
		Title:       b.Title,
		Description: b.Description,
		OwnerID:     b.OwnerID,
		Members:     members,
		Settings: boardSettings{
			Public:        b.Settings.Public,
			AllowComments: b.Settings.AllowComments,
			Theme:         string(b.Settings.Theme),
		},
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
		ArchivedAt: b.ArchivedAt,
	}
}

func newColumnViews(columns []domain.Column) []columnView {
	out := make([]columnView, 0, len(columns))
	for _, c := range columns {
		out = append(out, columnView{ID: c.ID, Title: c.Title, Position: c.Position, TaskLimit: c.TaskLimit, Color: string(c.Color)})
	}
	return out
}

func newTaskView(t domain.Task) taskView {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	return taskView{
		ID:          t.ID,
		Status:      t.Status,
		Order:       t.Order,
		Title:       t.Title,
		Description: t.Description,
		Assignee:    t.Assignee,
		Priority:    string(t.Priority),
		DueAt:       t.DueAt,
		Tags:        tags,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		ArchivedAt:  t.ArchivedAt,
	}
}

func newTaskViews(tasks []domain.Task) []taskView {
	out := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, newTaskView(t))
	}
	return out
}

func newMoveView(o app.MoveOutcome) moveView {
	if o.Noop {
		return moveView{Noop: true}
	}
	task := newTaskView(o.Task)
	return moveView{
		Task:        &task,
		From:        &locationOut{Column: o.From.DroppableID, Index: o.From.Index},
		To:          &locationOut{Column: o.To.DroppableID, Index: o.To.Index},
		CrossColumn: o.CrossColumn,
	}
}

func newNotificationViews(items []app.Notification) []notificationView {
	out := make([]notificationView, 0, len(items))
	for _, n := range items {
		out = append(out, notificationView{Seq: n.Seq, Kind: string(n.Kind), Message: n.Message, At: n.At})
	}
	return out
}

func newEventViews(events []domain.ChangeEvent) []eventView {
	out := make([]eventView, 0, len(events))
	for _, e := range events {
		out = append(out, eventView{ID: e.ID, TaskID: e.TaskID, Operation: string(e.Operation), Metadata: e.Metadata, OccurredAt: e.OccurredAt})
	}
	return out
}

func (f filterPayload) toDomain() (domain.ViewFilter, error) {
	return domain.ParseViewFilter(f.Search, f.Priority, f.Assignee, f.Due)
}

func (m moveRequest) toDomain() domain.DragResult {
	result := domain.DragResult{
		DraggableID: m.TaskID,
		Source:      domain.DragLocation{DroppableID: m.Source.Column, Index: m.Source.Index},
	}
	if m.Destination != nil {
		result.Destination = &domain.DragLocation{DroppableID: m.Destination.Column, Index: m.Destination.Index}
	}
	return result
}
