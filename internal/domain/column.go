package domain

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxColumnTitleLen bounds column titles.
const MaxColumnTitleLen = 50

// Color is the accent color rendered for a column header.
type Color string

const (
	ColorGray   Color = "gray"
	ColorRed    Color = "red"
	ColorYellow Color = "yellow"
	ColorGreen  Color = "green"
	ColorBlue   Color = "blue"
	ColorIndigo Color = "indigo"
	ColorPurple Color = "purple"
	ColorPink   Color = "pink"
)

var validColors = []Color{ColorGray, ColorRed, ColorYellow, ColorGreen, ColorBlue, ColorIndigo, ColorPurple, ColorPink}

// Column represents one status lane on a board. Its ID doubles as the task status value.
type Column struct {
	ID         string
	BoardID    string
	Title      string
	Position   int
	TaskLimit  int
	Color      Color
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ArchivedAt *time.Time
}

// ColumnInput holds the values used to construct a column.
type ColumnInput struct {
	ID        string
	BoardID   string
	Title     string
	Position  int
	TaskLimit int
	Color     Color
}

// NewColumn validates input and constructs a column.
func NewColumn(in ColumnInput, now time.Time) (Column, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.BoardID = strings.TrimSpace(in.BoardID)
	in.Title = strings.TrimSpace(in.Title)
	if in.ID == "" {
		return Column{}, ErrInvalidColumnID
	}
	if in.BoardID == "" {
		return Column{}, ErrInvalidID
	}
	if err := validateColumnTitle(in.Title); err != nil {
		return Column{}, err
	}
	if in.Position < 0 {
		return Column{}, ErrInvalidPosition
	}
	if in.TaskLimit < 0 {
		return Column{}, ErrInvalidTaskLimit
	}
	if in.Color == "" {
		in.Color = ColorGray
	}
	if !slices.Contains(validColors, in.Color) {
		return Column{}, ErrInvalidColor
	}

	return Column{
		ID:        in.ID,
		BoardID:   in.BoardID,
		Title:     in.Title,
		Position:  in.Position,
		TaskLimit: in.TaskLimit,
		Color:     in.Color,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// Rename changes the column title.
func (c *Column) Rename(title string, now time.Time) error {
	title = strings.TrimSpace(title)
	if err := validateColumnTitle(title); err != nil {
		return err
	}
	c.Title = title
	c.UpdatedAt = now.UTC()
	return nil
}

// SetPosition moves the column among its siblings.
func (c *Column) SetPosition(position int, now time.Time) error {
	if position < 0 {
		return ErrInvalidPosition
	}
	c.Position = position
	c.UpdatedAt = now.UTC()
	return nil
}

// SetTaskLimit updates the limit. Zero disables it.
func (c *Column) SetTaskLimit(limit int, now time.Time) error {
	if limit < 0 {
		return ErrInvalidTaskLimit
	}
	c.TaskLimit = limit
	c.UpdatedAt = now.UTC()
	return nil
}

// CanAcceptTask reports whether a column holding count tasks has room for one more.
func (c Column) CanAcceptTask(count int) bool {
	if c.TaskLimit <= 0 {
		return true
	}
	return count < c.TaskLimit
}

func (c *Column) Archive(now time.Time) {
	ts := now.UTC()
	c.ArchivedAt = &ts
	c.UpdatedAt = ts
}

func (c *Column) Restore(now time.Time) {
	c.ArchivedAt = nil
	c.UpdatedAt = now.UTC()
}

// FindColumn returns the column with the given id.
func FindColumn(columns []Column, id string) (Column, bool) {
	for _, c := range columns {
		if c.ID == id {
			return c, true
		}
	}
	return Column{}, false
}

func validateColumnTitle(title string) error {
	if title == "" {
		return ErrInvalidName
	}
	if utf8.RuneCountInString(title) > MaxColumnTitleLen {
		return ErrTitleTooLong
	}
	return nil
}
