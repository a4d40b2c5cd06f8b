package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

type DeleteMode string

const (
	DeleteModeArchive DeleteMode = "archive"
	DeleteModeHard    DeleteMode = "hard"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Delete   DeleteConfig   `toml:"delete"`
	Board    BoardConfig    `toml:"board"`
	Moves    MovesConfig    `toml:"moves"`
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Redis    RedisConfig    `toml:"redis"`
	Logging  LoggingConfig  `toml:"logging"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type DeleteConfig struct {
	DefaultMode DeleteMode `toml:"default_mode"`
}

type BoardConfig struct {
	Columns     []ColumnConfig `toml:"columns"`
	WelcomeTask bool           `toml:"welcome_task"`
}

type ColumnConfig struct {
	ID        string `toml:"id"`
	Title     string `toml:"title"`
	Color     string `toml:"color"`
	TaskLimit int    `toml:"task_limit"`
}

type MovesConfig struct {
	CrossColumnOrder string `toml:"cross_column_order"` // renumber | legacy
	PersistTimeout   string `toml:"persist_timeout"`
}

type ServerConfig struct {
	Bind        string `toml:"bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

type AuthConfig struct {
	JWTSecret     string `toml:"jwt_secret"`
	TokenLifetime string `toml:"token_lifetime"`
}

// RedisConfig enables the shared move lock and board cache when URL is set.
type RedisConfig struct {
	URL      string `toml:"url"`
	LockTTL  string `toml:"lock_ttl"`
	CacheTTL string `toml:"cache_ttl"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

func defaultColumns() []ColumnConfig {
	return []ColumnConfig{
		{ID: "todo", Title: "To Do", Color: "gray"},
		{ID: "inprogress", Title: "In Progress", Color: "blue"},
		{ID: "done", Title: "Done", Color: "green"},
	}
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Delete: DeleteConfig{
			DefaultMode: DeleteModeArchive,
		},
		Board: BoardConfig{
			Columns:     defaultColumns(),
			WelcomeTask: true,
		},
		Moves: MovesConfig{
			CrossColumnOrder: "renumber",
			PersistTimeout:   "5s",
		},
		Server: ServerConfig{
			Bind:        "127.0.0.1:5437",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
		Auth: AuthConfig{
			TokenLifetime: "24h",
		},
		Redis: RedisConfig{
			LockTTL:  "30s",
			CacheTTL: "10m",
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: false,
				Dir:     ".kanboard/log",
			},
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	// Array tables decode into existing slice elements, so a file listing fewer
	// columns than the defaults would keep the trailing defaults.
	defaultCols := cfg.Board.Columns
	cfg.Board.Columns = nil
	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}
	if len(cfg.Board.Columns) == 0 {
		cfg.Board.Columns = defaultCols
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}

	switch c.Delete.DefaultMode {
	case DeleteModeArchive, DeleteModeHard:
	default:
		return fmt.Errorf("invalid delete.default_mode: %q", c.Delete.DefaultMode)
	}

	if len(c.Board.Columns) == 0 {
		return errors.New("board.columns must include at least one column")
	}
	seen := map[string]struct{}{}
	for idx, col := range c.Board.Columns {
		id := strings.TrimSpace(strings.ToLower(col.ID))
		if strings.TrimSpace(col.Title) == "" {
			return fmt.Errorf("board.columns[%d].title is required", idx)
		}
		if col.TaskLimit < 0 {
			return fmt.Errorf("board.columns[%d].task_limit must be >= 0", idx)
		}
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("board.columns[%d].id is duplicated: %s", idx, id)
		}
		seen[id] = struct{}{}
	}

	switch strings.TrimSpace(strings.ToLower(c.Moves.CrossColumnOrder)) {
	case "", "renumber", "legacy":
	default:
		return fmt.Errorf("invalid moves.cross_column_order: %q", c.Moves.CrossColumnOrder)
	}

	durations := []struct {
		key   string
		value string
	}{
		{"moves.persist_timeout", c.Moves.PersistTimeout},
		{"auth.token_lifetime", c.Auth.TokenLifetime},
		{"redis.lock_ttl", c.Redis.LockTTL},
		{"redis.cache_ttl", c.Redis.CacheTTL},
	}
	for _, d := range durations {
		if _, err := parseDuration(d.value); err != nil {
			return fmt.Errorf("invalid %s: %w", d.key, err)
		}
	}

	if !strings.HasPrefix(c.Server.APIEndpoint, "/") || !strings.HasPrefix(c.Server.MCPEndpoint, "/") {
		return errors.New("server endpoints must start with /")
	}

	switch strings.TrimSpace(strings.ToLower(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	return nil
}

// PersistTimeoutDuration returns the save timeout. Zero means use the coordinator default.
func (m MovesConfig) PersistTimeoutDuration() time.Duration {
	d, _ := parseDuration(m.PersistTimeout)
	return d
}

func (a AuthConfig) TokenLifetimeDuration() time.Duration {
	d, _ := parseDuration(a.TokenLifetime)
	if d <= 0 {
		return 24 * time.Hour
	}
	return d
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != ""
}

func (r RedisConfig) LockTTLDuration() time.Duration {
	d, _ := parseDuration(r.LockTTL)
	return d
}

func (r RedisConfig) CacheTTLDuration() time.Duration {
	d, _ := parseDuration(r.CacheTTL)
	return d
}

func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q must not be negative", raw)
	}
	return d, nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
