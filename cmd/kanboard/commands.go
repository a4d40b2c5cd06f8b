package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	serveradapter "github.com/evanschultz/kanboard/internal/adapters/server"
	"github.com/evanschultz/kanboard/internal/adapters/server/httpapi"
	"github.com/evanschultz/kanboard/internal/app"
	"github.com/evanschultz/kanboard/internal/auth"
	"github.com/evanschultz/kanboard/internal/domain"
	"github.com/evanschultz/kanboard/internal/platform"
	"github.com/evanschultz/kanboard/internal/tui"
)

// tuiOptions holds flags for the board TUI.
type tuiOptions struct {
	boardID string
}

func bindTUIFlags(cmd *cobra.Command, o *tuiOptions) {
	cmd.Flags().StringVar(&o.boardID, "board", "", "board id to open (defaults to the first board)")
}

func newTUICommand(opts *rootOptions) *cobra.Command {
	o := &tuiOptions{}
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open a board in the terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), opts, o)
		},
	}
	bindTUIFlags(cmd, o)
	return cmd
}

// runTUI runs the board TUI until the user quits, then drains pending saves.
func runTUI(ctx context.Context, opts *rootOptions, o *tuiOptions) error {
	env, err := openRuntime(ctx, opts, "tui")
	if err != nil {
		return err
	}
	defer env.close()

	board, err := resolveBoard(ctx, env.svc, o.boardID)
	if err != nil {
		return err
	}
	boards, err := env.openBoards(ctx)
	if err != nil {
		return err
	}
	coord, err := boards.registry.Get(ctx, board.ID)
	if err != nil {
		return fmt.Errorf("load board %s: %w", board.ID, err)
	}

	m := tui.NewModel(
		coord,
		boards.feeds.For(board.ID),
		tui.WithBoardTitle(board.Title),
		tui.WithDefaultDeleteMode(env.svc.DefaultDeleteMode()),
	)
	env.logger.Info("starting tui program loop", "board_id", board.ID)
	if _, err := programFactory(m).Run(); err != nil {
		env.logger.Error("tui program terminated with error", "err", err)
		return fmt.Errorf("run tui program: %w", err)
	}
	env.logger.Info("command flow complete", "command", "tui")
	return nil
}

// resolveBoard returns the requested board, or the first active board when id is empty.
func resolveBoard(ctx context.Context, svc *app.Service, id string) (domain.Board, error) {
	if id = strings.TrimSpace(id); id != "" {
		board, err := svc.GetBoard(ctx, id)
		if err != nil {
			return domain.Board{}, fmt.Errorf("get board %s: %w", id, err)
		}
		return board, nil
	}
	boards, err := svc.ListBoards(ctx, "", false)
	if err != nil {
		return domain.Board{}, fmt.Errorf("list boards: %w", err)
	}
	if len(boards) == 0 {
		return domain.Board{}, errors.New("no boards yet: create one with `kanboard board create`")
	}
	return boards[0], nil
}

// serveOptions holds flags for the serve command.
type serveOptions struct {
	httpBind    string
	apiEndpoint string
	mcpEndpoint string
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	o := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and MCP tools over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts, o)
		},
	}
	cmd.Flags().StringVar(&o.httpBind, "http", "", "HTTP listen address (default from config)")
	cmd.Flags().StringVar(&o.apiEndpoint, "api-endpoint", "", "HTTP API base endpoint (default from config)")
	cmd.Flags().StringVar(&o.mcpEndpoint, "mcp-endpoint", "", "MCP streamable HTTP endpoint (default from config)")
	return cmd
}

// runServe wires storage, the board registry, and auth into the HTTP server.
func runServe(ctx context.Context, opts *rootOptions, o *serveOptions) error {
	env, err := openRuntime(ctx, opts, "serve")
	if err != nil {
		return err
	}
	defer env.close()

	boards, err := env.openBoards(ctx)
	if err != nil {
		return err
	}
	secret := strings.TrimSpace(env.cfg.Auth.JWTSecret)
	if secret == "" {
		secret = strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
		env.logger.Warn("auth.jwt_secret not set, using a per-process secret; tokens will not survive a restart")
	}
	issuer, err := auth.NewIssuer(secret, env.cfg.Auth.TokenLifetimeDuration(), time.Now)
	if err != nil {
		return fmt.Errorf("configure token issuer: %w", err)
	}

	cfg := serveradapter.Config{
		HTTPBind:      firstNonEmpty(o.httpBind, env.cfg.Server.Bind),
		APIEndpoint:   firstNonEmpty(o.apiEndpoint, env.cfg.Server.APIEndpoint),
		MCPEndpoint:   firstNonEmpty(o.mcpEndpoint, env.cfg.Server.MCPEndpoint),
		ServerName:    platform.AppName,
		ServerVersion: version,
	}
	env.logger.Info("command flow start", "command", "serve", "http", cfg.HTTPBind, "api", cfg.APIEndpoint, "mcp", cfg.MCPEndpoint)
	err = serveCommandRunner(ctx, cfg, serveradapter.Dependencies{
		API: httpapi.Dependencies{
			Service:  env.svc,
			Registry: boards.registry,
			Feeds:    boards.feeds,
			Tokens:   issuer,
			Logger:   env.logger,
			Clock:    time.Now,
		},
		Ready: boards.ready,
	})
	if err != nil {
		env.logger.Error("command flow failed", "command", "serve", "err", err)
		return fmt.Errorf("run serve command: %w", err)
	}
	env.logger.Info("command flow complete", "command", "serve")
	return nil
}

// redisPinger adapts a redis client to the readiness probe.
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func newPathsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, data, and database paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := resolvePaths(opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", platform.AppName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(out, "log_dir: %s\n", paths.LogDir)
			return nil
		},
	}
}

func newUserCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	var email, name, password string
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a user (password is read from stdin when --password is omitted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := openRuntime(cmd.Context(), opts, "user add")
			if err != nil {
				return err
			}
			defer env.close()

			if password == "" {
				password, err = readLine(opts.stdin)
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
			}
			user, err := env.svc.RegisterUser(cmd.Context(), app.RegisterUserInput{Email: email, Name: name, Password: password})
			if err != nil {
				return fmt.Errorf("register user: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "user %s %s\n", user.ID, user.Email)
			return nil
		},
	}
	add.Flags().StringVar(&email, "email", "", "login email")
	add.Flags().StringVar(&name, "name", "", "display name")
	add.Flags().StringVar(&password, "password", "", "password")
	_ = add.MarkFlagRequired("email")
	_ = add.MarkFlagRequired("name")
	cmd.AddCommand(add)
	return cmd
}

func newBoardCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Create, inspect, export, and import boards",
	}
	cmd.AddCommand(
		newBoardCreateCommand(opts),
		newBoardListCommand(opts),
		newBoardShowCommand(opts),
		newBoardExportCommand(opts),
		newBoardImportCommand(opts),
	)
	return cmd
}

func newBoardCreateCommand(opts *rootOptions) *cobra.Command {
	var owner, title, description string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a board with the configured default columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := openRuntime(cmd.Context(), opts, "board create")
			if err != nil {
				return err
			}
			defer env.close()

			user, err := findUserByEmail(cmd.Context(), env.svc, owner)
			if err != nil {
				return err
			}
			board, err := env.svc.CreateBoard(cmd.Context(), app.CreateBoardInput{OwnerID: user.ID, Title: title, Description: description})
			if err != nil {
				return fmt.Errorf("create board: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "board %s %s\n", board.ID, board.Title)
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner email")
	cmd.Flags().StringVar(&title, "title", "", "board title")
	cmd.Flags().StringVar(&description, "description", "", "board description")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newBoardListCommand(opts *rootOptions) *cobra.Command {
	var includeArchived bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List boards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := openRuntime(cmd.Context(), opts, "board list")
			if err != nil {
				return err
			}
			defer env.close()

			boards, err := env.svc.ListBoards(cmd.Context(), "", includeArchived)
			if err != nil {
				return fmt.Errorf("list boards: %w", err)
			}
			if len(boards) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no boards")
				return nil
			}
			rows := make([][]string, 0, len(boards))
			for _, b := range boards {
				state := "active"
				if b.ArchivedAt != nil {
					state = "archived"
				}
				rows = append(rows, []string{b.ID, b.Title, strconv.Itoa(len(b.Members)), state, b.UpdatedAt.Format(time.DateTime)})
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Title", "Members", "State", "Updated"}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&includeArchived, "include-archived", false, "include archived boards")
	return cmd
}

func newBoardShowCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <board-id>",
		Short: "Show a board's columns and task counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openRuntime(cmd.Context(), opts, "board show")
			if err != nil {
				return err
			}
			defer env.close()

			ctx := cmd.Context()
			board, err := env.svc.GetBoard(ctx, args[0])
			if err != nil {
				return fmt.Errorf("get board %s: %w", args[0], err)
			}
			columns, err := env.svc.ListColumns(ctx, board.ID, false)
			if err != nil {
				return fmt.Errorf("list columns: %w", err)
			}
			tasks, err := env.repo.LoadBoardState(ctx, board.ID)
			if err != nil {
				return fmt.Errorf("load tasks: %w", err)
			}
			stats := domain.ComputeStats(columns, tasks)

			rows := make([][]string, 0, len(columns))
			for _, col := range columns {
				limit := "-"
				if col.TaskLimit > 0 {
					limit = strconv.Itoa(col.TaskLimit)
				}
				rows = append(rows, []string{col.ID, col.Title, strconv.Itoa(stats.PerColumn[col.ID]), limit, string(col.Color)})
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s (%s)\n", board.Title, board.ID)
			_, _ = fmt.Fprintf(out, "%d tasks, %d done\n", stats.TotalTasks, stats.CompletedTasks)
			_, _ = fmt.Fprintln(out, renderTable([]string{"ID", "Column", "Tasks", "Limit", "Color"}, rows))
			return nil
		},
	}
}

func newBoardExportCommand(opts *rootOptions) *cobra.Command {
	var boardID, outPath string
	var includeArchived bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a board snapshot as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := openRuntime(cmd.Context(), opts, "board export")
			if err != nil {
				return err
			}
			defer env.close()

			snap, err := env.svc.ExportSnapshot(cmd.Context(), boardID, includeArchived)
			if err != nil {
				return fmt.Errorf("export snapshot: %w", err)
			}
			encoded, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return fmt.Errorf("encode snapshot json: %w", err)
			}
			encoded = append(encoded, '\n')

			if outPath == "-" {
				if _, err := cmd.OutOrStdout().Write(encoded); err != nil {
					return fmt.Errorf("write snapshot to stdout: %w", err)
				}
				return nil
			}
			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return fmt.Errorf("create export output dir: %w", err)
			}
			if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
				return fmt.Errorf("write export file: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&boardID, "board", "", "board id")
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	cmd.Flags().BoolVar(&includeArchived, "include-archived", true, "include archived columns and tasks")
	_ = cmd.MarkFlagRequired("board")
	return cmd
}

func newBoardImportCommand(opts *rootOptions) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a board snapshot, replacing a board with the same id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			content, err := os.ReadFile(inPath)
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}
			var snap app.Snapshot
			if err := json.Unmarshal(content, &snap); err != nil {
				return fmt.Errorf("decode snapshot json: %w", err)
			}

			env, err := openRuntime(cmd.Context(), opts, "board import")
			if err != nil {
				return err
			}
			defer env.close()
			if err := env.svc.ImportSnapshot(cmd.Context(), snap); err != nil {
				return fmt.Errorf("import snapshot: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported board %s (%d columns, %d tasks)\n", snap.Board.ID, len(snap.Columns), len(snap.Tasks))
			return nil
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input snapshot JSON file")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

// findUserByEmail looks an account up by its login email.
func findUserByEmail(ctx context.Context, svc *app.Service, email string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	users, err := svc.ListUsers(ctx)
	if err != nil {
		return domain.User{}, fmt.Errorf("list users: %w", err)
	}
	for _, u := range users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, fmt.Errorf("no user with email %q: add one with `kanboard user add`", email)
}

// renderTable draws rows with a rounded border and a bold header.
func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("62"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		String()
}

// readLine reads one trimmed line, accepting a final line without a newline.
func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.New("empty input")
	}
	return line, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
