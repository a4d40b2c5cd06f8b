package domain

import (
	"net/mail"
	"strings"
	"time"
)

// User is an account that can own or join boards.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser validates identity fields. The password hash is produced by the caller.
func NewUser(id, email, name, passwordHash string, now time.Time) (User, error) {
	id = strings.TrimSpace(id)
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if id == "" {
		return User{}, ErrInvalidID
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return User{}, ErrInvalidEmail
	}
	if name == "" {
		return User{}, ErrInvalidName
	}
	if passwordHash == "" {
		return User{}, ErrInvalidID
	}
	return User{
		ID:           id,
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		Active:       true,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}, nil
}
