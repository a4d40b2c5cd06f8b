package domain

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

// Board limits.
const (
	MaxBoardTitleLen       = 100
	MaxBoardDescriptionLen = 500
)

// Role is a board member's access level.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
	RoleNone   Role = ""
)

var assignableRoles = []Role{RoleAdmin, RoleMember, RoleViewer}

// ParseRole validates a role that may be granted to a member.
func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	if r == "" {
		return RoleMember, nil
	}
	if !slices.Contains(assignableRoles, r) {
		return RoleNone, ErrInvalidRole
	}
	return r, nil
}

// Theme is the board's display theme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemeBlue  Theme = "blue"
	ThemeGreen Theme = "green"
)

var validThemes = []Theme{ThemeLight, ThemeDark, ThemeBlue, ThemeGreen}

// BoardSettings holds per-board display and sharing flags.
type BoardSettings struct {
	Public        bool
	AllowComments bool
	Theme         Theme
}

// Member grants a user a role on a board.
type Member struct {
	UserID   string
	Role     Role
	JoinedAt time.Time
}

// Board groups columns and tasks under one owner.
type Board struct {
	ID          string
	Title       string
	Description string
	OwnerID     string
	Members     []Member
	Settings    BoardSettings
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ArchivedAt  *time.Time
}

// NewBoard constructs a board owned by ownerID.
func NewBoard(id, title, description, ownerID string, now time.Time) (Board, error) {
	id = strings.TrimSpace(id)
	ownerID = strings.TrimSpace(ownerID)
	if id == "" || ownerID == "" {
		return Board{}, ErrInvalidID
	}
	b := Board{
		ID:        id,
		OwnerID:   ownerID,
		Settings:  BoardSettings{AllowComments: true, Theme: ThemeLight},
		CreatedAt: now.UTC(),
	}
	if err := b.UpdateDetails(title, description, now); err != nil {
		return Board{}, err
	}
	return b, nil
}

// UpdateDetails validates and applies title and description.
func (b *Board) UpdateDetails(title, description string, now time.Time) error {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" {
		return ErrInvalidTitle
	}
	if utf8.RuneCountInString(title) > MaxBoardTitleLen {
		return ErrTitleTooLong
	}
	if utf8.RuneCountInString(description) > MaxBoardDescriptionLen {
		return ErrDescriptionTooLong
	}
	b.Title = title
	b.Description = description
	b.UpdatedAt = now.UTC()
	return nil
}

// UpdateSettings validates and applies board settings.
func (b *Board) UpdateSettings(settings BoardSettings, now time.Time) error {
	if settings.Theme == "" {
		settings.Theme = ThemeLight
	}
	if !slices.Contains(validThemes, settings.Theme) {
		return ErrInvalidTheme
	}
	b.Settings = settings
	b.UpdatedAt = now.UTC()
	return nil
}

// AddMember grants or updates a role. The owner cannot be demoted through membership.
func (b *Board) AddMember(userID string, role Role, now time.Time) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrInvalidID
	}
	if !slices.Contains(assignableRoles, role) {
		return ErrInvalidRole
	}
	if userID == b.OwnerID {
		return nil
	}
	for i := range b.Members {
		if b.Members[i].UserID == userID {
			b.Members[i].Role = role
			b.UpdatedAt = now.UTC()
			return nil
		}
	}
	b.Members = append(b.Members, Member{UserID: userID, Role: role, JoinedAt: now.UTC()})
	b.UpdatedAt = now.UTC()
	return nil
}

// RemoveMember revokes a member's access.
func (b *Board) RemoveMember(userID string, now time.Time) {
	b.Members = slices.DeleteFunc(b.Members, func(m Member) bool { return m.UserID == userID })
	b.UpdatedAt = now.UTC()
}

// RoleFor returns the effective role of userID. The owner always resolves to RoleOwner.
func (b Board) RoleFor(userID string) Role {
	if userID != "" && userID == b.OwnerID {
		return RoleOwner
	}
	for _, m := range b.Members {
		if m.UserID == userID {
			return m.Role
		}
	}
	return RoleNone
}

// CanRead reports whether userID may view the board.
func (b Board) CanRead(userID string) bool {
	return b.Settings.Public || b.RoleFor(userID) != RoleNone
}

// CanWrite reports whether userID may mutate tasks.
func (b Board) CanWrite(userID string) bool {
	switch b.RoleFor(userID) {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	default:
		return false
	}
}

// CanAdmin reports whether userID may manage columns and members.
func (b Board) CanAdmin(userID string) bool {
	switch b.RoleFor(userID) {
	case RoleOwner, RoleAdmin:
		return true
	default:
		return false
	}
}

func (b *Board) Archive(now time.Time) {
	ts := now.UTC()
	b.ArchivedAt = &ts
	b.UpdatedAt = ts
}

func (b *Board) Restore(now time.Time) {
	b.ArchivedAt = nil
	b.UpdatedAt = now.UTC()
}
