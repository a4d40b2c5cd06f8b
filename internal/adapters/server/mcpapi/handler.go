// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/evanschultz/kanboard/internal/app"
	"github.com/evanschultz/kanboard/internal/domain"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Dependencies are the app collaborators the MCP tools call into.
type Dependencies struct {
	Service  *app.Service
	Registry *app.Registry
	Feeds    *app.Feeds
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing board read and move tools.
func NewHandler(cfg Config, deps Dependencies) (*Handler, error) {
	switch {
	case deps.Service == nil:
		return nil, fmt.Errorf("board service is required")
	case deps.Registry == nil:
		return nil, fmt.Errorf("coordinator registry is required")
	case deps.Feeds == nil:
		return nil, fmt.Errorf("notification feeds are required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	t := tools{deps: deps}
	t.registerListColumns(mcpSrv)
	t.registerVisibleTasks(mcpSrv)
	t.registerMoveTask(mcpSrv)
	t.registerNotifications(mcpSrv)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "kanboard"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

type tools struct {
	deps Dependencies
}

// boardArgs declares the board and caller arguments every tool takes.
func boardArgs() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("board_id", mcp.Required(), mcp.Description("Board identifier")),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Acting user identifier; must be a board member")),
	}
}

// filterArgs declares the view filter arguments shared by visible_tasks and move_task.
func filterArgs() []mcp.ToolOption {
	dueValues := make([]string, 0, len(domain.DueFilters))
	for _, f := range domain.DueFilters {
		dueValues = append(dueValues, string(f))
	}
	return []mcp.ToolOption{
		mcp.WithString("search", mcp.Description("Case-insensitive match on title, description or assignee")),
		mcp.WithString("priority", mcp.Description("Only tasks with this priority"), mcp.Enum(domain.FilterAll, "low", "medium", "high")),
		mcp.WithString("assignee", mcp.Description("Only tasks assigned to this name; \"all\" matches everyone")),
		mcp.WithString("due", mcp.Description("Due date bucket"), mcp.Enum(dueValues...)),
	}
}

// coordinatorFor authorizes the caller and returns the board's live coordinator.
func (t tools) coordinatorFor(ctx context.Context, req mcp.CallToolRequest, need app.Access) (*app.Coordinator, error) {
	boardID, err := req.RequireString("board_id")
	if err != nil {
		return nil, errors.Join(errInvalidArguments, err)
	}
	userID, err := req.RequireString("user_id")
	if err != nil {
		return nil, errors.Join(errInvalidArguments, err)
	}
	if _, err := t.deps.Service.Authorize(ctx, boardID, userID, need); err != nil {
		return nil, err
	}
	return t.deps.Registry.Get(ctx, boardID)
}

// registerListColumns registers the `kanboard.list_columns` tool.
func (t tools) registerListColumns(srv *mcpserver.MCPServer) {
	srv.AddTool(
		mcp.NewTool(
			"kanboard.list_columns",
			append([]mcp.ToolOption{
				mcp.WithDescription("List a board's columns in display order with per-column task counts."),
			}, boardArgs()...)...,
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			coord, err := t.coordinatorFor(ctx, req, app.AccessRead)
			if err != nil {
				return toolResultFromError(err), nil
			}
			stats := coord.Stats()
			columns := coord.Columns()
			out := make([]columnView, 0, len(columns))
			for _, col := range columns {
				out = append(out, columnView{
					ID:        col.ID,
					Title:     col.Title,
					Position:  col.Position,
					Color:     string(col.Color),
					TaskLimit: col.TaskLimit,
					TaskCount: stats.PerColumn[col.ID],
				})
			}
			return jsonResult(map[string]any{
				"columns":         out,
				"total_tasks":     stats.TotalTasks,
				"completed_tasks": stats.CompletedTasks,
			})
		},
	)
}

// registerVisibleTasks registers the `kanboard.visible_tasks` tool.
func (t tools) registerVisibleTasks(srv *mcpserver.MCPServer) {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Return one column's tasks as a filtered view sees them. Indices in the result are the ones kanboard.move_task expects."),
	}
	opts = append(opts, boardArgs()...)
	opts = append(opts, mcp.WithString("column", mcp.Required(), mcp.Description("Column identifier")))
	opts = append(opts, filterArgs()...)
	srv.AddTool(
		mcp.NewTool("kanboard.visible_tasks", opts...),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			column, err := req.RequireString("column")
			if err != nil {
				return toolResultFromError(errors.Join(errInvalidArguments, err)), nil
			}
			filter, err := filterFromRequest(req)
			if err != nil {
				return toolResultFromError(err), nil
			}
			coord, err := t.coordinatorFor(ctx, req, app.AccessRead)
			if err != nil {
				return toolResultFromError(err), nil
			}
			if _, found := domain.FindColumn(coord.Columns(), column); !found {
				return toolResultFromError(app.ErrUnknownColumn), nil
			}
			visible := coord.VisibleTasks(column, filter)
			out := make([]taskView, 0, len(visible))
			for i, task := range visible {
				out = append(out, newTaskView(task, i))
			}
			return jsonResult(map[string]any{
				"column": column,
				"tasks":  out,
			})
		},
	)
}

// registerMoveTask registers the `kanboard.move_task` tool.
func (t tools) registerMoveTask(srv *mcpserver.MCPServer) {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Drop a task at a position in a filtered column view. Omit destination_column to cancel the drag."),
	}
	opts = append(opts, boardArgs()...)
	opts = append(opts,
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Dragged task identifier")),
		mcp.WithString("source_column", mcp.Required(), mcp.Description("Column the drag started in")),
		mcp.WithNumber("source_index", mcp.Required(), mcp.Description("Index of the task in the filtered source view")),
		mcp.WithString("destination_column", mcp.Description("Column the task was dropped on")),
		mcp.WithNumber("destination_index", mcp.Description("Drop index in the filtered destination view")),
	)
	opts = append(opts, filterArgs()...)
	srv.AddTool(
		mcp.NewTool("kanboard.move_task", opts...),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return toolResultFromError(errors.Join(errInvalidArguments, err)), nil
			}
			sourceColumn, err := req.RequireString("source_column")
			if err != nil {
				return toolResultFromError(errors.Join(errInvalidArguments, err)), nil
			}
			sourceIndex, err := req.RequireInt("source_index")
			if err != nil {
				return toolResultFromError(errors.Join(errInvalidArguments, err)), nil
			}
			filter, err := filterFromRequest(req)
			if err != nil {
				return toolResultFromError(err), nil
			}
			drag := domain.DragResult{
				DraggableID: taskID,
				Source:      domain.DragLocation{DroppableID: sourceColumn, Index: sourceIndex},
			}
			if dest := strings.TrimSpace(req.GetString("destination_column", "")); dest != "" {
				drag.Destination = &domain.DragLocation{
					DroppableID: dest,
					Index:       req.GetInt("destination_index", 0),
				}
			}

			coord, err := t.coordinatorFor(ctx, req, app.AccessWrite)
			if err != nil {
				return toolResultFromError(err), nil
			}
			outcome, err := coord.HandleDragEnd(ctx, drag, filter)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult(moveView{
				Noop:        outcome.Noop,
				CrossColumn: outcome.CrossColumn,
				Task:        newTaskView(outcome.Task, outcome.To.Index),
				From:        locationView{Column: outcome.From.DroppableID, Index: outcome.From.Index},
				To:          locationView{Column: outcome.To.DroppableID, Index: outcome.To.Index},
			})
		},
	)
}

// registerNotifications registers the `kanboard.notifications` tool.
func (t tools) registerNotifications(srv *mcpserver.MCPServer) {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Return board notifications newer than a sequence number."),
	}
	opts = append(opts, boardArgs()...)
	opts = append(opts, mcp.WithNumber("after", mcp.Description("Only notifications with a larger sequence number")))
	srv.AddTool(
		mcp.NewTool("kanboard.notifications", opts...),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			coord, err := t.coordinatorFor(ctx, req, app.AccessRead)
			if err != nil {
				return toolResultFromError(err), nil
			}
			after := req.GetInt("after", 0)
			if after < 0 {
				return toolResultFromError(fmt.Errorf("after must be non-negative: %w", errInvalidArguments)), nil
			}
			items := t.deps.Feeds.For(coord.BoardID()).Since(uint64(after))
			out := make([]notificationView, 0, len(items))
			for _, n := range items {
				out = append(out, notificationView{Seq: n.Seq, Kind: string(n.Kind), Message: n.Message, At: n.At})
			}
			return jsonResult(map[string]any{"notifications": out})
		},
	)
}

// filterFromRequest reads the shared view filter arguments.
func filterFromRequest(req mcp.CallToolRequest) (domain.ViewFilter, error) {
	return domain.ParseViewFilter(
		req.GetString("search", ""),
		req.GetString("priority", ""),
		req.GetString("assignee", ""),
		req.GetString("due", ""),
	)
}

// jsonResult wraps one structured payload as a tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return result, nil
}

// errInvalidArguments marks missing or malformed tool arguments.
var errInvalidArguments = errors.New("invalid arguments")

// toolResultFromError maps app and domain errors into coded tool failures.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, app.ErrForbidden):
		return mcp.NewToolResultError("forbidden: " + err.Error())
	case errors.Is(err, app.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, domain.ErrDragMismatch),
		errors.Is(err, app.ErrMoveInFlight),
		errors.Is(err, app.ErrColumnFull):
		return mcp.NewToolResultError("conflict: " + err.Error())
	case errors.Is(err, app.ErrCoordinatorClosed):
		return mcp.NewToolResultError("unavailable: " + err.Error())
	case errors.Is(err, errInvalidArguments),
		errors.Is(err, app.ErrUnknownColumn),
		errors.Is(err, domain.ErrIndexOutOfRange),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidDueFilter),
		errors.Is(err, domain.ErrTaskNotInColumn):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}

type columnView struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Position  int    `json:"position"`
	Color     string `json:"color"`
	TaskLimit int    `json:"task_limit,omitempty"`
	TaskCount int    `json:"task_count"`
}

type taskView struct {
	ID       string     `json:"id"`
	Column   string     `json:"column"`
	Index    int        `json:"index"`
	Order    int        `json:"order"`
	Title    string     `json:"title"`
	Assignee string     `json:"assignee,omitempty"`
	Priority string     `json:"priority"`
	DueAt    *time.Time `json:"due_at,omitempty"`
	Tags     []string   `json:"tags,omitempty"`
}

func newTaskView(t domain.Task, index int) taskView {
	return taskView{
		ID:       t.ID,
		Column:   t.Status,
		Index:    index,
		Order:    t.Order,
		Title:    t.Title,
		Assignee: t.Assignee,
		Priority: string(t.Priority),
		DueAt:    t.DueAt,
		Tags:     t.Tags,
	}
}

type locationView struct {
	Column string `json:"column"`
	Index  int    `json:"index"`
}

type moveView struct {
	Noop        bool         `json:"noop"`
	CrossColumn bool         `json:"cross_column"`
	Task        taskView     `json:"task"`
	From        locationView `json:"from"`
	To          locationView `json:"to"`
}

type notificationView struct {
	Seq     uint64    `json:"seq"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}
