// AngelaMos | 2026
// chat.go

package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"
)

var (
	ErrNotFound  = errors.New("chat: not found")
	ErrForbidden = errors.New("chat: forbidden")
)

// RateLimitError is a transient platform refusal. RetryAfter is zero when
// the platform did not say.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("chat: rate limited, retry after %s", e.RetryAfter)
}

// IsTerminal reports failures that will not go away on retry.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden)
}

func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}

type Member struct {
	UserID    string
	Username  string
	AvatarURL string
	RoleIDs   []string
	Bot       bool
}

func (m *Member) HasRole(roleID string) bool {
	return slices.Contains(m.RoleIDs, roleID)
}

type Role struct {
	ID       string
	Name     string
	Color    int
	Position int
}

type Field struct {
	Name   string
	Value  string
	Inline bool
}

type Embed struct {
	Title        string
	Description  string
	Color        int
	Fields       []Field
	Footer       string
	ThumbnailURL string
}

type Message struct {
	Content string
	Embed   *Embed
}

// Reply is the answer to a slash command.
type Reply struct {
	Content   string
	Embed     *Embed
	Ephemeral bool
}

const (
	ColorGreen  = 0x2ecc71
	ColorRed    = 0xe74c3c
	ColorBlue   = 0x3498db
	ColorGold   = 0xf1c40f
	ColorPurple = 0x9b59b6
	ColorOrange = 0xe67e22
)

// Adapter is everything the economy needs from the chat platform. An
// adapter is bound to one guild.
type Adapter interface {
	Member(ctx context.Context, userID string) (*Member, error)
	Role(ctx context.Context, roleID string) (*Role, error)
	AssignableRoles(ctx context.Context) ([]Role, error)
	MembersWithRole(ctx context.Context, roleID string) ([]Member, error)
	IsAdmin(ctx context.Context, userID string) (bool, error)
	SendChannel(ctx context.Context, channelID string, msg Message) error
	SendDM(ctx context.Context, userID string, msg Message) error
	AddRole(ctx context.Context, userID, roleID string) error
	RemoveRole(ctx context.Context, userID, roleID string) error
	SetPresence(ctx context.Context, status string) error
}
