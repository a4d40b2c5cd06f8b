package domain

import "errors"

var (
	ErrInvalidID          = errors.New("invalid id")
	ErrInvalidName        = errors.New("invalid name")
	ErrInvalidTitle       = errors.New("invalid title")
	ErrTitleTooLong       = errors.New("title too long")
	ErrDescriptionTooLong = errors.New("description too long")
	ErrTooManyTags        = errors.New("too many tags")
	ErrInvalidPriority    = errors.New("invalid priority")
	ErrInvalidPosition    = errors.New("invalid position")
	ErrInvalidColumnID    = errors.New("invalid column id")
	ErrInvalidColor       = errors.New("invalid color")
	ErrInvalidTaskLimit   = errors.New("invalid task limit")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidTheme       = errors.New("invalid theme")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidDueFilter   = errors.New("invalid due filter")
	ErrIndexOutOfRange    = errors.New("index out of range")
	ErrTaskNotInColumn    = errors.New("task not in column")
	ErrDragMismatch       = errors.New("dragged task does not match source position")
)
