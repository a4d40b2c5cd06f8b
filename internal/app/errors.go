package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidDeleteMode   = errors.New("invalid delete mode")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrEmailTaken          = errors.New("email already registered")
	ErrUnknownColumn       = errors.New("unknown column")
	ErrColumnExists        = errors.New("column already exists")
	ErrColumnFull          = errors.New("column task limit reached")
	ErrColumnNotEmpty      = errors.New("column still holds tasks")
	ErrMoveInFlight        = errors.New("task move already in flight")
	ErrPersistTimeout      = errors.New("persist timed out")
	ErrCoordinatorClosed   = errors.New("coordinator closed")
	ErrSaveAborted         = errors.New("save aborted after earlier failure")
	ErrInvalidNotification = errors.New("invalid notification kind")
)
