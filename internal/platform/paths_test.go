package platform

import (
	"path/filepath"
	"testing"
)

func TestPathsFor(t *testing.T) {
	tests := []struct {
		name       string
		goos       string
		env        map[string]string
		config     string
		data       string
		wantConfig string
		wantDB     string
	}{
		{
			name:       "linux xdg",
			goos:       "linux",
			env:        map[string]string{"XDG_CONFIG_HOME": "/xdg/config", "XDG_DATA_HOME": "/xdg/data"},
			config:     "/fallback/config",
			data:       "/fallback/data",
			wantConfig: filepath.Join("/xdg/config", "kanboard", "config.toml"),
			wantDB:     filepath.Join("/xdg/data", "kanboard", "kanboard.db"),
		},
		{
			name:       "linux fallback",
			goos:       "linux",
			env:        map[string]string{},
			config:     "/home/me/.config",
			data:       "/home/me/.local/share",
			wantConfig: filepath.Join("/home/me/.config", "kanboard", "config.toml"),
			wantDB:     filepath.Join("/home/me/.local/share", "kanboard", "kanboard.db"),
		},
		{
			name:       "windows appdata",
			goos:       "windows",
			env:        map[string]string{"APPDATA": `C:\Roaming`, "LOCALAPPDATA": `C:\Local`},
			config:     `C:\fallback\config`,
			data:       `C:\fallback\data`,
			wantConfig: filepath.Join(`C:\Roaming`, "kanboard", "config.toml"),
			wantDB:     filepath.Join(`C:\Local`, "kanboard", "kanboard.db"),
		},
		{
			name:       "darwin ignores xdg",
			goos:       "darwin",
			env:        map[string]string{"XDG_CONFIG_HOME": "/ignored"},
			config:     "/Users/me/Library/Application Support",
			data:       "/Users/me/Library/Application Support",
			wantConfig: filepath.Join("/Users/me/Library/Application Support", "kanboard", "config.toml"),
			wantDB:     filepath.Join("/Users/me/Library/Application Support", "kanboard", "kanboard.db"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := PathsFor(tt.goos, tt.env, tt.config, tt.data, AppName)
			if err != nil {
				t.Fatalf("PathsFor() error = %v", err)
			}
			if p.ConfigPath != tt.wantConfig {
				t.Fatalf("unexpected config path %q", p.ConfigPath)
			}
			if p.DBPath != tt.wantDB {
				t.Fatalf("unexpected db path %q", p.DBPath)
			}
			if p.LogDir != filepath.Join(filepath.Dir(tt.wantDB), "log") {
				t.Fatalf("unexpected log dir %q", p.LogDir)
			}
		})
	}
}

func TestPathsForEmptyInputsFail(t *testing.T) {
	if _, err := PathsFor("darwin", nil, "", "/tmp/data", AppName); err == nil {
		t.Fatal("expected error for empty dirs")
	}
	if _, err := PathsFor("darwin", nil, "/cfg", "/data", " "); err == nil {
		t.Fatal("expected error for empty app name")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	base, _ := PathsFor("linux", nil, "/cfg", "/data", AppName)
	env := map[string]string{EnvConfigPath: "/etc/kanboard.toml", EnvDBPath: "/var/lib/kb/board.db"}
	p := ApplyEnv(base, func(k string) string { return env[k] })
	if p.ConfigPath != "/etc/kanboard.toml" || p.DBPath != "/var/lib/kb/board.db" || p.DataDir != "/var/lib/kb" {
		t.Fatalf("unexpected overrides %#v", p)
	}
	if same := ApplyEnv(base, func(string) string { return "" }); same != base {
		t.Fatalf("expected no overrides, got %#v", same)
	}
}

func TestDevModeFromEnv(t *testing.T) {
	for raw, want := range map[string]bool{"1": true, "TRUE": true, "on": true, "": false, "0": false} {
		if got := DevModeFromEnv(func(string) string { return raw }); got != want {
			t.Fatalf("DevModeFromEnv(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestDefaultPathsWithOptionsDevMode(t *testing.T) {
	p, err := DefaultPathsWithOptions(Options{DevMode: true})
	if err != nil {
		t.Fatalf("DefaultPathsWithOptions() error = %v", err)
	}
	if filepath.Base(filepath.Dir(p.ConfigPath)) != "kanboard-dev" {
		t.Fatalf("expected dev config dir suffix, got %q", p.ConfigPath)
	}
	if filepath.Base(p.DBPath) != "kanboard-dev.db" {
		t.Fatalf("expected dev db name, got %q", p.DBPath)
	}
}
