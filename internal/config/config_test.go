package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/kanboard.db")
	if cfg.Database.Path != "/tmp/kanboard.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Delete.DefaultMode != DeleteModeArchive {
		t.Fatalf("unexpected delete mode %q", cfg.Delete.DefaultMode)
	}
	if len(cfg.Board.Columns) != 3 || cfg.Board.Columns[0].ID != "todo" {
		t.Fatalf("unexpected default columns %#v", cfg.Board.Columns)
	}
	if cfg.Moves.CrossColumnOrder != "renumber" || cfg.Moves.PersistTimeoutDuration() != 5*time.Second {
		t.Fatalf("unexpected move defaults %#v", cfg.Moves)
	}
	if cfg.Redis.Enabled() {
		t.Fatal("expected redis disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	defaults := Default("/tmp/kanboard.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != defaults.Database.Path {
		t.Fatalf("expected default db path, got %q", cfg.Database.Path)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[database]
path = "/custom/kanboard.db"

[delete]
default_mode = "hard"

[moves]
cross_column_order = "legacy"
persist_timeout = "750ms"

[auth]
jwt_secret = "s3cret"
token_lifetime = "2h"

[redis]
url = "redis://localhost:6379/0"
lock_ttl = "5s"

[[board.columns]]
id = "backlog"
title = "Backlog"
task_limit = 20

[[board.columns]]
title = "Shipped"
color = "green"
`)
	cfg, err := Load(path, Default("/tmp/default.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/custom/kanboard.db" || cfg.Delete.DefaultMode != DeleteModeHard {
		t.Fatalf("unexpected overrides %#v", cfg)
	}
	if cfg.Moves.CrossColumnOrder != "legacy" || cfg.Moves.PersistTimeoutDuration() != 750*time.Millisecond {
		t.Fatalf("unexpected moves %#v", cfg.Moves)
	}
	if cfg.Auth.TokenLifetimeDuration() != 2*time.Hour {
		t.Fatalf("unexpected token lifetime %v", cfg.Auth.TokenLifetimeDuration())
	}
	if !cfg.Redis.Enabled() || cfg.Redis.LockTTLDuration() != 5*time.Second || cfg.Redis.CacheTTLDuration() != 10*time.Minute {
		t.Fatalf("unexpected redis config %#v", cfg.Redis)
	}
	if len(cfg.Board.Columns) != 2 || cfg.Board.Columns[0].TaskLimit != 20 {
		t.Fatalf("expected columns replaced, got %#v", cfg.Board.Columns)
	}
	if cfg.Server.APIEndpoint != "/api/v1" {
		t.Fatalf("expected untouched server defaults, got %#v", cfg.Server)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "delete mode", content: "[delete]\ndefault_mode = \"weird\"\n", want: "delete.default_mode"},
		{name: "order policy", content: "[moves]\ncross_column_order = \"shuffle\"\n", want: "cross_column_order"},
		{name: "timeout", content: "[moves]\npersist_timeout = \"soon\"\n", want: "moves.persist_timeout"},
		{name: "negative ttl", content: "[redis]\nlock_ttl = \"-1s\"\n", want: "redis.lock_ttl"},
		{name: "column limit", content: "[[board.columns]]\ntitle = \"X\"\ntask_limit = -1\n", want: "task_limit"},
		{name: "duplicate column", content: "[[board.columns]]\nid = \"a\"\ntitle = \"A\"\n[[board.columns]]\nid = \"A\"\ntitle = \"B\"\n", want: "duplicated"},
		{name: "endpoint", content: "[server]\napi_endpoint = \"api\"\n", want: "endpoints"},
		{name: "log level", content: "[logging]\nlevel = \"loud\"\n", want: "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content), Default("/tmp/default.db"))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestEnsureConfigDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a", "b", "config.toml")
	if err := EnsureConfigDir(target); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	if _, err := os.Stat(filepath.Dir(target)); err != nil {
		t.Fatalf("expected dir to exist, stat error %v", err)
	}
}
