// AngelaMos | 2026
// fake.go

// Package chattest provides an in-memory chat.Adapter for tests.
package chattest

import (
	"context"
	"slices"
	"sync"

	"github.com/carterperez-dev/pitchfork-economy/internal/chat"
)

type Sent struct {
	ChannelID string
	UserID    string
	Message   chat.Message
}

// Adapter is a programmable fake guild. AddRoleErrors are returned, in
// order, by the next AddRole calls before the grant succeeds.
type Adapter struct {
	mu sync.Mutex

	members map[string]*chat.Member
	roles   map[string]chat.Role
	admins  map[string]bool

	AddRoleErrors []error
	AdminErr      error
	DMErr         error

	Channel  []Sent
	DMs      []Sent
	Presence string
	AddCalls int
}

func New() *Adapter {
	return &Adapter{
		members: make(map[string]*chat.Member),
		roles:   make(map[string]chat.Role),
		admins:  make(map[string]bool),
	}
}

func (a *Adapter) AddMember(userID, username string, roleIDs ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.members[userID] = &chat.Member{
		UserID:   userID,
		Username: username,
		RoleIDs:  slices.Clone(roleIDs),
	}
}

func (a *Adapter) AddGuildRole(id, name string) {
	a.mu.Lock()
	a.roles[id] = chat.Role{ID: id, Name: name, Position: len(a.roles) + 1}
	a.mu.Unlock()
}

func (a *Adapter) SetAdmin(userID string, admin bool) {
	a.mu.Lock()
	a.admins[userID] = admin
	a.mu.Unlock()
}

func (a *Adapter) Member(_ context.Context, userID string) (*chat.Member, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.members[userID]
	if !ok {
		return nil, chat.ErrNotFound
	}
	cp := *m
	cp.RoleIDs = slices.Clone(m.RoleIDs)
	return &cp, nil
}

func (a *Adapter) Role(_ context.Context, roleID string) (*chat.Role, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.roles[roleID]
	if !ok {
		return nil, chat.ErrNotFound
	}
	return &r, nil
}

// AssignableRoles returns every guild role, newest first.
func (a *Adapter) AssignableRoles(context.Context) ([]chat.Role, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]chat.Role, 0, len(a.roles))
	for _, r := range a.roles {
		out = append(out, r)
	}
	slices.SortFunc(out, func(x, y chat.Role) int { return y.Position - x.Position })
	return out, nil
}

func (a *Adapter) MembersWithRole(_ context.Context, roleID string) ([]chat.Member, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []chat.Member
	for _, m := range a.members {
		if m.HasRole(roleID) {
			cp := *m
			cp.RoleIDs = slices.Clone(m.RoleIDs)
			out = append(out, cp)
		}
	}
	slices.SortFunc(out, func(x, y chat.Member) int {
		switch {
		case x.UserID < y.UserID:
			return -1
		case x.UserID > y.UserID:
			return 1
		}
		return 0
	})
	return out, nil
}

func (a *Adapter) IsAdmin(_ context.Context, userID string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.AdminErr != nil {
		return false, a.AdminErr
	}
	return a.admins[userID], nil
}

func (a *Adapter) SendChannel(_ context.Context, channelID string, msg chat.Message) error {
	a.mu.Lock()
	a.Channel = append(a.Channel, Sent{ChannelID: channelID, Message: msg})
	a.mu.Unlock()
	return nil
}

func (a *Adapter) SendDM(_ context.Context, userID string, msg chat.Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.DMErr != nil {
		return a.DMErr
	}
	a.DMs = append(a.DMs, Sent{UserID: userID, Message: msg})
	return nil
}

func (a *Adapter) AddRole(_ context.Context, userID, roleID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.AddCalls++
	if len(a.AddRoleErrors) > 0 {
		err := a.AddRoleErrors[0]
		a.AddRoleErrors = a.AddRoleErrors[1:]
		return err
	}

	m, ok := a.members[userID]
	if !ok {
		return chat.ErrNotFound
	}
	if _, ok := a.roles[roleID]; !ok {
		return chat.ErrNotFound
	}
	if !m.HasRole(roleID) {
		m.RoleIDs = append(m.RoleIDs, roleID)
	}
	return nil
}

func (a *Adapter) RemoveRole(_ context.Context, userID, roleID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	m, ok := a.members[userID]
	if !ok {
		return chat.ErrNotFound
	}
	m.RoleIDs = slices.DeleteFunc(m.RoleIDs, func(r string) bool { return r == roleID })
	return nil
}

func (a *Adapter) SetPresence(_ context.Context, status string) error {
	a.mu.Lock()
	a.Presence = status
	a.mu.Unlock()
	return nil
}

func (a *Adapter) DMsTo(userID string) []Sent {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []Sent
	for _, s := range a.DMs {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out
}

func (a *Adapter) ChannelPosts() []Sent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.Channel)
}

var _ chat.Adapter = (*Adapter)(nil)
