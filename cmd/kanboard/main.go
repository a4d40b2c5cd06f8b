package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	serveradapter "github.com/evanschultz/kanboard/internal/adapters/server"
	"github.com/evanschultz/kanboard/internal/adapters/storage/redisstore"
	"github.com/evanschultz/kanboard/internal/adapters/storage/sqlite"
	"github.com/evanschultz/kanboard/internal/app"
	"github.com/evanschultz/kanboard/internal/auth"
	"github.com/evanschultz/kanboard/internal/config"
	"github.com/evanschultz/kanboard/internal/domain"
	"github.com/evanschultz/kanboard/internal/platform"
)

// version stores a package-level helper value.
var version = "dev"

// program represents program data used by this package.
type program interface {
	Run() (tea.Model, error)
}

// programFactory builds the TUI program. Tests replace it.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveCommandRunner starts the HTTP+MCP serve flow. Tests replace it.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

// main handles main.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root := newRootCommand(os.Stdin, os.Stdout, os.Stderr)
	if err := fang.Execute(ctx, root, fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

// run executes one command line without fang styling.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	root := newRootCommand(stdin, stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	dbPath     string
	devMode    bool

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// newRootCommand builds the command tree. Running the root opens the board TUI.
func newRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	opts := &rootOptions{stdin: stdin, stdout: stdout, stderr: stderr}
	defaultDevMode := version == "dev"
	if env := strings.TrimSpace(os.Getenv(platform.EnvDevMode)); env != "" {
		defaultDevMode = platform.DevModeFromEnv(os.Getenv)
	}

	tuiFlags := &tuiOptions{}
	root := &cobra.Command{
		Use:           platform.AppName,
		Short:         "Kanban boards with drag and drop reordering",
		Long:          "kanboard keeps kanban boards in a local sqlite database and serves them over a terminal UI, a REST API and MCP.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), opts, tuiFlags)
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config TOML")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	root.PersistentFlags().BoolVar(&opts.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")
	bindTUIFlags(root, tuiFlags)

	root.AddCommand(
		newTUICommand(opts),
		newServeCommand(opts),
		newPathsCommand(opts),
		newUserCommand(opts),
		newBoardCommand(opts),
	)
	return root
}

// runtimeEnv is the resolved configuration and open storage for one command.
type runtimeEnv struct {
	paths      platform.Paths
	configPath string
	cfg        config.Config
	logger     *runtimeLogger
	repo       *sqlite.Repository
	svc        *app.Service
	closers    []func()
}

// resolvePaths applies flag and environment overrides to the platform defaults.
func resolvePaths(opts *rootOptions) (platform.Paths, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{AppName: platform.AppName, DevMode: opts.devMode})
	if err != nil {
		return platform.Paths{}, err
	}
	paths = platform.ApplyEnv(paths, os.Getenv)
	if v := strings.TrimSpace(opts.configPath); v != "" {
		paths.ConfigPath = v
	}
	if v := strings.TrimSpace(opts.dbPath); v != "" {
		paths.DBPath = v
	}
	return paths, nil
}

// openRuntime loads config, configures logging, and opens the repository.
func openRuntime(ctx context.Context, opts *rootOptions, command string) (*runtimeEnv, error) {
	paths, err := resolvePaths(opts)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(paths.ConfigPath, config.Default(paths.DBPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", paths.ConfigPath, err)
	}
	if strings.TrimSpace(opts.dbPath) != "" || strings.TrimSpace(os.Getenv(platform.EnvDBPath)) != "" {
		cfg.Database.Path = paths.DBPath
	}

	logger, err := newRuntimeLogger(opts.stderr, platform.AppName, opts.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	if command == "tui" {
		// Runtime logs stay in the dev-file sink while the board is on screen.
		logger.SetConsoleEnabled(false)
	}
	env := &runtimeEnv{paths: paths, configPath: paths.ConfigPath, cfg: cfg, logger: logger}
	env.closers = append(env.closers, func() {
		if closeErr := logger.Close(); closeErr != nil && logger.consoleEnabled() {
			_, _ = fmt.Fprintf(opts.stderr, "warning: close runtime log sink: %v\n", closeErr)
		}
	})

	logger.Info("startup configuration resolved", "dev_mode", opts.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", paths.ConfigPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	logger.Info("opening sqlite repository", "db_path", cfg.Database.Path)
	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		env.close()
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	env.repo = repo
	env.closers = append(env.closers, func() {
		if closeErr := repo.Close(); closeErr != nil {
			logger.Warn("sqlite close failed", "db_path", cfg.Database.Path, "err", closeErr)
		}
	})
	logger.Info("sqlite repository ready", "db_path", cfg.Database.Path, "migrations", "ensured")

	env.svc = app.NewService(repo, auth.NewBcryptHasher(), uuid.NewString, time.Now, app.ServiceConfig{
		DefaultDeleteMode: app.DeleteMode(cfg.Delete.DefaultMode),
		ColumnTemplates:   columnTemplates(cfg.Board.Columns),
		WelcomeTask:       cfg.Board.WelcomeTask,
	})
	logger.Debug("application service initialized", "default_delete_mode", cfg.Delete.DefaultMode)
	return env, nil
}

// close releases resources in reverse acquisition order.
func (e *runtimeEnv) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

// boardRuntime is the live-board machinery shared by the TUI and serve flows.
type boardRuntime struct {
	registry *app.Registry
	feeds    *app.Feeds
	ready    []serveradapter.Pinger
}

// openBoards builds the coordinator registry, adding the Redis lock and cache when configured.
func (e *runtimeEnv) openBoards(ctx context.Context) (*boardRuntime, error) {
	policy, ok := domain.ParseOrderPolicy(e.cfg.Moves.CrossColumnOrder)
	if !ok {
		return nil, fmt.Errorf("invalid moves.cross_column_order %q", e.cfg.Moves.CrossColumnOrder)
	}
	feeds := app.NewFeeds(0, time.Now)
	regCfg := app.RegistryConfig{
		Repo: e.repo,
		Notifiers: func(boardID string) app.Notifier {
			return app.FanOut{feeds.For(boardID), app.LogNotifier{Logger: e.logger, BoardID: boardID}}
		},
		Policy:         policy,
		PersistTimeout: e.cfg.Moves.PersistTimeoutDuration(),
		DeleteMode:     app.DeleteMode(e.cfg.Delete.DefaultMode),
		Clock:          time.Now,
		IDGen:          uuid.NewString,
		Logger:         e.logger,
	}
	ready := []serveradapter.Pinger{e.repo}

	if e.cfg.Redis.Enabled() {
		e.logger.Info("connecting redis", "url", redactURL(e.cfg.Redis.URL))
		client, err := redisstore.Connect(ctx, e.cfg.Redis.URL)
		if err != nil {
			e.logger.Error("redis connect failed", "err", err)
			return nil, err
		}
		e.closers = append(e.closers, func() {
			if closeErr := client.Close(); closeErr != nil {
				e.logger.Warn("redis close failed", "err", closeErr)
			}
		})
		regCfg.Locker = redisstore.NewMoveLocker(client, platform.AppName, e.cfg.Redis.LockTTLDuration())
		regCfg.Store = redisstore.NewBoardCache(e.repo, client, platform.AppName, e.cfg.Redis.CacheTTLDuration(), e.logger)
		ready = append(ready, redisPinger{client: client})
		e.logger.Info("redis move lock and board cache enabled", "lock_ttl", e.cfg.Redis.LockTTL, "cache_ttl", e.cfg.Redis.CacheTTL)
	}

	registry := app.NewRegistry(regCfg)
	e.closers = append(e.closers, func() {
		if closeErr := registry.Close(); closeErr != nil {
			e.logger.Warn("board registry close failed", "err", closeErr)
		}
	})
	return &boardRuntime{registry: registry, feeds: feeds, ready: ready}, nil
}

// columnTemplates maps configured columns onto new-board templates.
func columnTemplates(cols []config.ColumnConfig) []app.ColumnTemplate {
	out := make([]app.ColumnTemplate, 0, len(cols))
	for _, col := range cols {
		out = append(out, app.ColumnTemplate{
			ID:        col.ID,
			Title:     col.Title,
			Color:     domain.Color(col.Color),
			TaskLimit: col.TaskLimit,
		})
	}
	return out
}

// redactURL hides credentials in a connection URL for logging.
func redactURL(raw string) string {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return raw
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = "***@" + rest[at+1:]
	}
	return scheme + "://" + rest
}
