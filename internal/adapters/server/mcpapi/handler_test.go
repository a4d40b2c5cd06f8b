package mcpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/crypto/bcrypt"

	"github.com/evanschultz/kanboard/internal/adapters/storage/sqlite"
	"github.com/evanschultz/kanboard/internal/app"
	"github.com/evanschultz/kanboard/internal/auth"
	"github.com/evanschultz/kanboard/internal/domain"
)

// jsonRPCResponse models minimal JSON-RPC response fields used in MCP adapter tests.
type jsonRPCResponse struct {
	ID     float64        `json:"id"`
	Result map[string]any `json:"result"`
}

// mcpFixture serves the MCP handler over an in-memory board with three todo tasks.
type mcpFixture struct {
	server   *httptest.Server
	registry *app.Registry
	feeds    *app.Feeds
	ownerID  string
	boardID  string
	taskIDs  map[string]string
}

func newMCPFixture(t *testing.T) *mcpFixture {
	t.Helper()
	ctx := context.Background()
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	feeds := app.NewFeeds(0, nil)
	service := app.NewService(repo, auth.BcryptHasher{Cost: bcrypt.MinCost}, uuid.NewString, nil, app.ServiceConfig{})
	registry := app.NewRegistry(app.RegistryConfig{
		Repo:      repo,
		Notifiers: func(boardID string) app.Notifier { return feeds.For(boardID) },
		IDGen:     uuid.NewString,
	})
	t.Cleanup(func() { _ = registry.Close() })

	owner, err := service.RegisterUser(ctx, app.RegisterUserInput{Email: "ada@example.com", Name: "Ada", Password: "secret-pass"})
	if err != nil {
		t.Fatalf("RegisterUser() error = %v", err)
	}
	board, err := service.CreateBoard(ctx, app.CreateBoardInput{OwnerID: owner.ID, Title: "Launch"})
	if err != nil {
		t.Fatalf("CreateBoard() error = %v", err)
	}
	coord, err := registry.Get(ctx, board.ID)
	if err != nil {
		t.Fatalf("registry.Get() error = %v", err)
	}
	ids := map[string]string{}
	for _, in := range []app.AddTaskInput{
		{Status: "todo", Title: "Write docs", Priority: domain.PriorityLow},
		{Status: "todo", Title: "Fix login", Priority: domain.PriorityHigh},
		{Status: "todo", Title: "Ship", Priority: domain.PriorityHigh},
	} {
		task, err := coord.AddTask(ctx, in)
		if err != nil {
			t.Fatalf("AddTask(%q) error = %v", in.Title, err)
		}
		ids[in.Title] = task.ID
	}
	if err := coord.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	handler, err := NewHandler(Config{}, Dependencies{Service: service, Registry: registry, Feeds: feeds})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	return &mcpFixture{server: server, registry: registry, feeds: feeds, ownerID: owner.ID, boardID: board.ID, taskIDs: ids}
}

// call invokes one tool with the fixture's board and owner filled in.
func (f *mcpFixture) call(t *testing.T, toolName string, args map[string]any) map[string]any {
	t.Helper()
	merged := map[string]any{"board_id": f.boardID, "user_id": f.ownerID}
	for k, v := range args {
		merged[k] = v
	}
	_, resp := postJSONRPC(t, f.server.Client(), f.server.URL, callToolRequest(3, toolName, merged))
	if resp.Result == nil {
		t.Fatalf("%s returned no result", toolName)
	}
	return resp.Result
}

// callToolRequest constructs one deterministic tools/call JSON-RPC request payload.
func callToolRequest(id int, toolName string, arguments map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": arguments,
		},
	}
}

// toolResultText decodes the first text entry from one tool-call result payload.
func toolResultText(t *testing.T, result map[string]any) string {
	t.Helper()

	contentRaw, ok := result["content"].([]any)
	if !ok || len(contentRaw) == 0 {
		t.Fatalf("content missing in tool result: %#v", result)
	}
	first, ok := contentRaw[0].(map[string]any)
	if !ok {
		t.Fatalf("first content entry has unexpected type: %#v", contentRaw[0])
	}
	text, ok := first["text"].(string)
	if !ok {
		t.Fatalf("content text missing in tool result: %#v", first)
	}
	return text
}

// toolResultStructured decodes structuredContent as one map for stable assertions.
func toolResultStructured(t *testing.T, result map[string]any) map[string]any {
	t.Helper()
	structured, ok := result["structuredContent"].(map[string]any)
	if !ok {
		t.Fatalf("structuredContent missing in tool result: %#v", result)
	}
	return structured
}

// postJSONRPC sends one JSON-RPC payload and decodes the response body.
func postJSONRPC(t *testing.T, client *http.Client, url string, payload any) (*http.Response, jsonRPCResponse) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	var decoded jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return resp, decoded
}

// initializeRequest builds a deterministic MCP initialize request payload.
func initializeRequest() map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
			"clientInfo": map[string]any{
				"name":    "kanboard-test",
				"version": "1.0.0",
			},
		},
	}
}

// taskTitles extracts titles from a structured task list.
func taskTitles(t *testing.T, raw any) []string {
	t.Helper()
	rows, ok := raw.([]any)
	if !ok {
		t.Fatalf("tasks payload has unexpected type %T", raw)
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		m, _ := row.(map[string]any)
		title, _ := m["title"].(string)
		out = append(out, title)
	}
	return out
}

// TestHandlerUsesStatelessTransport verifies MCP transport does not issue session ids.
func TestHandlerUsesStatelessTransport(t *testing.T) {
	f := newMCPFixture(t)

	resp, decoded := postJSONRPC(t, f.server.Client(), f.server.URL, initializeRequest())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if decoded.ID != 1 {
		t.Fatalf("id = %v, want 1", decoded.ID)
	}
	if got := resp.Header.Get("Mcp-Session-Id"); got != "" {
		t.Fatalf("Mcp-Session-Id header = %q, want empty (stateless transport)", got)
	}
}

// TestHandlerRegistersBoardTools verifies tool discovery lists every board tool.
func TestHandlerRegistersBoardTools(t *testing.T) {
	f := newMCPFixture(t)
	_, toolsResp := postJSONRPC(t, f.server.Client(), f.server.URL, map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/list",
	})

	toolsRaw, ok := toolsResp.Result["tools"].([]any)
	if !ok {
		t.Fatalf("tools list payload missing tools: %#v", toolsResp.Result)
	}
	toolNames := make([]string, 0, len(toolsRaw))
	for _, toolRaw := range toolsRaw {
		toolMap, ok := toolRaw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := toolMap["name"].(string)
		toolNames = append(toolNames, name)
	}
	for _, want := range []string{"kanboard.list_columns", "kanboard.visible_tasks", "kanboard.move_task", "kanboard.notifications"} {
		if !slices.Contains(toolNames, want) {
			t.Fatalf("tool list missing %s: %#v", want, toolNames)
		}
	}
}

// TestListColumnsToolCall verifies columns come back in order with live counts.
func TestListColumnsToolCall(t *testing.T) {
	f := newMCPFixture(t)

	structured := toolResultStructured(t, f.call(t, "kanboard.list_columns", nil))
	rows, ok := structured["columns"].([]any)
	if !ok || len(rows) != 3 {
		t.Fatalf("columns = %#v, want three rows", structured["columns"])
	}
	first, _ := rows[0].(map[string]any)
	if first["id"] != "todo" || first["task_count"] != float64(3) {
		t.Fatalf("first column = %#v, want todo with three tasks", first)
	}
	if structured["total_tasks"] != float64(3) {
		t.Fatalf("total_tasks = %v, want 3", structured["total_tasks"])
	}
}

// TestVisibleTasksToolCallAppliesFilter verifies filtered views re-index from zero.
func TestVisibleTasksToolCallAppliesFilter(t *testing.T) {
	f := newMCPFixture(t)

	structured := toolResultStructured(t, f.call(t, "kanboard.visible_tasks", map[string]any{
		"column":   "todo",
		"priority": "high",
	}))
	got := taskTitles(t, structured["tasks"])
	if strings.Join(got, ",") != "Fix login,Ship" {
		t.Fatalf("titles = %v, want [Fix login Ship]", got)
	}
	rows := structured["tasks"].([]any)
	second, _ := rows[1].(map[string]any)
	if second["index"] != float64(1) || second["order"] != float64(2) {
		t.Fatalf("second row = %#v, want view index 1 and order 2", second)
	}
}

// TestVisibleTasksToolCallAllOptionMatchesEveryTask verifies "all" disables priority and assignee filtering.
func TestVisibleTasksToolCallAllOptionMatchesEveryTask(t *testing.T) {
	f := newMCPFixture(t)

	unfiltered := taskTitles(t, toolResultStructured(t, f.call(t, "kanboard.visible_tasks", map[string]any{
		"column": "todo",
	}))["tasks"])
	all := taskTitles(t, toolResultStructured(t, f.call(t, "kanboard.visible_tasks", map[string]any{
		"column":   "todo",
		"priority": "all",
		"assignee": "all",
		"due":      "all",
	}))["tasks"])
	if len(unfiltered) < 3 || strings.Join(all, ",") != strings.Join(unfiltered, ",") {
		t.Fatalf("all filter titles = %v, want %v", all, unfiltered)
	}

	structured := toolResultStructured(t, f.call(t, "kanboard.move_task", map[string]any{
		"task_id":            f.taskIDs["Ship"],
		"source_column":      "todo",
		"source_index":       len(unfiltered) - 1,
		"destination_column": "done",
		"destination_index":  0,
		"priority":           "all",
		"assignee":           "all",
	}))
	if structured["noop"] == true {
		t.Fatalf("expected a move, got %#v", structured)
	}
	task, _ := structured["task"].(map[string]any)
	if task["column"] != "done" {
		t.Fatalf("moved task = %#v, want column done", task)
	}
}

// TestMoveTaskToolCallMovesAcrossColumns verifies a filtered drop lands and notifies.
func TestMoveTaskToolCallMovesAcrossColumns(t *testing.T) {
	f := newMCPFixture(t)

	structured := toolResultStructured(t, f.call(t, "kanboard.move_task", map[string]any{
		"task_id":            f.taskIDs["Ship"],
		"source_column":      "todo",
		"source_index":       1,
		"destination_column": "done",
		"destination_index":  0,
		"priority":           "high",
	}))
	if structured["cross_column"] != true || structured["noop"] != false {
		t.Fatalf("move = %#v, want cross-column move", structured)
	}
	from, _ := structured["from"].(map[string]any)
	if from["column"] != "todo" || from["index"] != float64(2) {
		t.Fatalf("from = %#v, want todo full index 2", from)
	}

	coord, err := f.registry.Get(context.Background(), f.boardID)
	if err != nil {
		t.Fatalf("registry.Get() error = %v", err)
	}
	if err := coord.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	done := toolResultStructured(t, f.call(t, "kanboard.visible_tasks", map[string]any{"column": "done"}))
	if got := taskTitles(t, done["tasks"]); len(got) != 1 || got[0] != "Ship" {
		t.Fatalf("done titles = %v, want [Ship]", got)
	}

	notes := toolResultStructured(t, f.call(t, "kanboard.notifications", map[string]any{"after": 0}))
	rows, _ := notes["notifications"].([]any)
	found := false
	for _, row := range rows {
		m, _ := row.(map[string]any)
		if m["message"] == "Task moved to Done!" && m["kind"] == "success" {
			found = true
		}
	}
	if !found {
		t.Fatalf("notifications = %#v, want move toast", rows)
	}
}

// TestMoveTaskToolCallWithoutDestinationIsNoop verifies a cancelled drag changes nothing.
func TestMoveTaskToolCallWithoutDestinationIsNoop(t *testing.T) {
	f := newMCPFixture(t)

	structured := toolResultStructured(t, f.call(t, "kanboard.move_task", map[string]any{
		"task_id":       f.taskIDs["Write docs"],
		"source_column": "todo",
		"source_index":  0,
	}))
	if structured["noop"] != true {
		t.Fatalf("noop = %v, want true", structured["noop"])
	}
}

// TestToolCallErrorPaths verifies tool failures carry stable code prefixes.
func TestToolCallErrorPaths(t *testing.T) {
	cases := []struct {
		name       string
		tool       string
		args       func(f *mcpFixture) map[string]any
		wantPrefix string
	}{
		{
			name:       "stranger is forbidden",
			tool:       "kanboard.list_columns",
			args:       func(*mcpFixture) map[string]any { return map[string]any{"user_id": "stranger"} },
			wantPrefix: "forbidden:",
		},
		{
			name:       "missing board",
			tool:       "kanboard.list_columns",
			args:       func(*mcpFixture) map[string]any { return map[string]any{"board_id": "nope"} },
			wantPrefix: "not_found:",
		},
		{
			name:       "unknown column",
			tool:       "kanboard.visible_tasks",
			args:       func(*mcpFixture) map[string]any { return map[string]any{"column": "later"} },
			wantPrefix: "invalid_request:",
		},
		{
			name:       "bad due bucket",
			tool:       "kanboard.visible_tasks",
			args:       func(*mcpFixture) map[string]any { return map[string]any{"column": "todo", "due": "someday"} },
			wantPrefix: "invalid_request:",
		},
		{
			name: "source index out of range",
			tool: "kanboard.move_task",
			args: func(f *mcpFixture) map[string]any {
				return map[string]any{
					"task_id": f.taskIDs["Ship"], "source_column": "todo", "source_index": 7,
					"destination_column": "done", "destination_index": 0,
				}
			},
			wantPrefix: "invalid_request:",
		},
		{
			name: "stale drag",
			tool: "kanboard.move_task",
			args: func(f *mcpFixture) map[string]any {
				return map[string]any{
					"task_id": f.taskIDs["Ship"], "source_column": "todo", "source_index": 0,
					"destination_column": "done", "destination_index": 0,
				}
			},
			wantPrefix: "conflict:",
		},
		{
			name:       "missing task id",
			tool:       "kanboard.move_task",
			args:       func(*mcpFixture) map[string]any { return map[string]any{"source_column": "todo", "source_index": 0} },
			wantPrefix: "invalid_request:",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newMCPFixture(t)
			result := f.call(t, tc.tool, tc.args(f))
			if isErr, _ := result["isError"].(bool); !isErr {
				t.Fatalf("isError = false, want true: %#v", result)
			}
			if text := toolResultText(t, result); !strings.HasPrefix(text, tc.wantPrefix) {
				t.Fatalf("text = %q, want prefix %q", text, tc.wantPrefix)
			}
		})
	}
}

// TestNewHandlerRequiresDependencies verifies constructor validation.
func TestNewHandlerRequiresDependencies(t *testing.T) {
	if _, err := NewHandler(Config{}, Dependencies{}); err == nil {
		t.Fatal("NewHandler() error = nil, want missing dependency error")
	}
}

// TestNormalizeConfig verifies deterministic config defaults and endpoint normalization.
func TestNormalizeConfig(t *testing.T) {
	cases := []struct {
		name string
		in   Config
		want Config
	}{
		{
			name: "defaults",
			in:   Config{},
			want: Config{ServerName: "kanboard", ServerVersion: "dev", EndpointPath: "/mcp"},
		},
		{
			name: "trims and prefixes",
			in:   Config{ServerName: "  board ", ServerVersion: " 1.2.0 ", EndpointPath: "tools/mcp/"},
			want: Config{ServerName: "board", ServerVersion: "1.2.0", EndpointPath: "/tools/mcp"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizeConfig(tc.in); got != tc.want {
				t.Fatalf("normalizeConfig() = %#v, want %#v", got, tc.want)
			}
		})
	}
}

// TestHandlerServeHTTPUnavailable verifies nil handlers fail closed.
func TestHandlerServeHTTPUnavailable(t *testing.T) {
	var h *Handler
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

// TestToolResultFromErrorMapping verifies error classes map to stable prefixes.
func TestToolResultFromErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantPrefix string
	}{
		{name: "nil error", err: nil, wantPrefix: "unknown error"},
		{name: "forbidden", err: app.ErrForbidden, wantPrefix: "forbidden:"},
		{name: "not found", err: errors.Join(app.ErrNotFound, errors.New("board")), wantPrefix: "not_found:"},
		{name: "drag mismatch", err: domain.ErrDragMismatch, wantPrefix: "conflict:"},
		{name: "move in flight", err: app.ErrMoveInFlight, wantPrefix: "conflict:"},
		{name: "closed", err: app.ErrCoordinatorClosed, wantPrefix: "unavailable:"},
		{name: "index", err: domain.ErrIndexOutOfRange, wantPrefix: "invalid_request:"},
		{name: "unknown", err: errors.New("disk on fire"), wantPrefix: "internal_error:"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := toolResultFromError(tc.err)
			if !result.IsError {
				t.Fatal("IsError = false, want true")
			}
			text, ok := result.Content[0].(mcp.TextContent)
			if !ok {
				t.Fatalf("content[0] has unexpected type %T", result.Content[0])
			}
			if !strings.HasPrefix(text.Text, tc.wantPrefix) {
				t.Fatalf("text = %q, want prefix %q", text.Text, tc.wantPrefix)
			}
		})
	}
}
