package tui

import (
	"strings"
	"time"

	"github.com/atotto/clipboard"

	"github.com/evanschultz/kanboard/internal/app"
)

// TaskFieldConfig controls which secondary fields a card shows under its title.
type TaskFieldConfig struct {
	ShowPriority bool
	ShowDueDate  bool
	ShowAssignee bool
	ShowTags     bool
}

type Option func(*Model)

func DefaultTaskFieldConfig() TaskFieldConfig {
	return TaskFieldConfig{
		ShowPriority: true,
		ShowDueDate:  true,
		ShowAssignee: true,
		ShowTags:     false,
	}
}

func WithTaskFieldConfig(cfg TaskFieldConfig) Option {
	return func(m *Model) {
		m.taskFields = cfg
	}
}

func WithDefaultDeleteMode(mode app.DeleteMode) Option {
	return func(m *Model) {
		switch mode {
		case app.DeleteModeArchive, app.DeleteModeHard:
			m.defaultDeleteMode = mode
		}
	}
}

// WithBoardTitle sets the header title.
func WithBoardTitle(title string) Option {
	return func(m *Model) {
		if title = strings.TrimSpace(title); title != "" {
			m.boardTitle = title
		}
	}
}

// WithClock overrides the time source used for due buckets and toast expiry.
func WithClock(clock app.Clock) Option {
	return func(m *Model) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithClipboard overrides how copied task text reaches the system clipboard.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copyText = write
		}
	}
}

// WithToastDuration sets how long a notification stays on screen.
func WithToastDuration(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.toastDuration = d
		}
	}
}

// defaultClipboard writes through the platform clipboard.
func defaultClipboard(text string) error {
	return clipboard.WriteAll(text)
}
