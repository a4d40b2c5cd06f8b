package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"

	"github.com/evanschultz/kanboard/internal/config"
)

// logSink is one charm logger plus whether it currently receives events.
type logSink struct {
	name    string
	logger  *charmLog.Logger
	enabled bool
}

// runtimeLogger fans log events out to the console and, in dev mode, a daily logfmt file.
// It satisfies app.Logger so coordinators and servers share the same sinks.
type runtimeLogger struct {
	sinks   []*logSink
	console *logSink
	file    *os.File
	devLog  string
}

// newRuntimeLogger builds the sinks described by cfg. An empty level means info.
func newRuntimeLogger(stderr io.Writer, appName string, devMode bool, cfg config.LoggingConfig, now func() time.Time) (*runtimeLogger, error) {
	level := charmLog.InfoLevel
	if name := strings.TrimSpace(cfg.Level); name != "" {
		parsed, err := charmLog.ParseLevel(name)
		if err != nil {
			return nil, fmt.Errorf("parse logging level %q: %w", cfg.Level, err)
		}
		level = parsed
	}
	if now == nil {
		now = time.Now
	}
	if stderr == nil {
		stderr = io.Discard
	}

	newSink := func(name string, w io.Writer, formatter charmLog.Formatter) *logSink {
		return &logSink{
			name:    name,
			enabled: true,
			logger: charmLog.NewWithOptions(w, charmLog.Options{
				Level:           level,
				Prefix:          appName,
				ReportTimestamp: true,
				TimeFormat:      time.RFC3339,
				Formatter:       formatter,
			}),
		}
	}

	rl := &runtimeLogger{console: newSink("console", stderr, charmLog.TextFormatter)}
	rl.sinks = append(rl.sinks, rl.console)
	if !devMode || !cfg.DevFile.Enabled {
		return rl, nil
	}

	path, err := devLogFilePath(cfg.DevFile.Dir, appName, now().UTC())
	if err != nil {
		return nil, fmt.Errorf("resolve dev log file path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dev log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open dev log file: %w", err)
	}
	// logfmt so the file stays greppable while the board owns the terminal.
	rl.sinks = append(rl.sinks, newSink("dev-file", f, charmLog.LogfmtFormatter))
	rl.file = f
	rl.devLog = path
	return rl, nil
}

// DevLogPath returns the dev log file path, or "" when file logging is off.
func (l *runtimeLogger) DevLogPath() string {
	if l == nil {
		return ""
	}
	return l.devLog
}

// Close closes the dev log file if one is open.
func (l *runtimeLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// SetConsoleEnabled mutes or unmutes the console sink.
func (l *runtimeLogger) SetConsoleEnabled(enabled bool) {
	if l == nil || l.console == nil {
		return
	}
	l.console.enabled = enabled
}

// consoleEnabled reports whether console output is live.
func (l *runtimeLogger) consoleEnabled() bool {
	return l != nil && l.console != nil && l.console.enabled
}

func (l *runtimeLogger) emit(level charmLog.Level, msg any, keyvals ...any) {
	if l == nil {
		return
	}
	for _, s := range l.sinks {
		if s.enabled {
			s.logger.Log(level, msg, keyvals...)
		}
	}
}

func (l *runtimeLogger) Debug(msg any, keyvals ...any) { l.emit(charmLog.DebugLevel, msg, keyvals...) }

func (l *runtimeLogger) Info(msg any, keyvals ...any) { l.emit(charmLog.InfoLevel, msg, keyvals...) }

func (l *runtimeLogger) Warn(msg any, keyvals ...any) { l.emit(charmLog.WarnLevel, msg, keyvals...) }

func (l *runtimeLogger) Error(msg any, keyvals ...any) { l.emit(charmLog.ErrorLevel, msg, keyvals...) }

// devLogFilePath places <stem>-YYYYMMDD.log under dir, resolving relative dirs
// against the enclosing workspace root.
func devLogFilePath(dir, appName string, day time.Time) (string, error) {
	base := strings.TrimSpace(dir)
	if base == "" {
		base = filepath.Join(".kanboard", "log")
	}
	if !filepath.IsAbs(base) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working dir: %w", err)
		}
		base = filepath.Join(workspaceRootFrom(cwd), base)
	}
	name := sanitizeLogFileStem(appName) + "-" + day.Format("20060102") + ".log"
	return filepath.Join(filepath.Clean(base), name), nil
}

// workspaceRootFrom returns the nearest ancestor holding go.mod or .git, or start itself.
func workspaceRootFrom(start string) string {
	start = filepath.Clean(strings.TrimSpace(start))
	for dir := start; ; {
		if hasWorkspaceMarker(dir) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

func hasWorkspaceMarker(dir string) bool {
	for _, marker := range []string{"go.mod", ".git"} {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

var logStemReplacer = strings.NewReplacer("/", "-", "\\", "-", ":", "-", " ", "-")

// sanitizeLogFileStem turns an app name into a file-name segment.
func sanitizeLogFileStem(appName string) string {
	stem := strings.Trim(logStemReplacer.Replace(strings.TrimSpace(appName)), "-")
	if stem == "" {
		return "kanboard"
	}
	return stem
}
