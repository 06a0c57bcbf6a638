// AngelaMos | 2026
// adapter.go

// Package discord binds the chat contract to a Discord guild through
// discordgo.
package discord

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/carterperez-dev/pitchfork-economy/internal/chat"
	"github.com/carterperez-dev/pitchfork-economy/internal/config"
)

const (
	membersPageSize = 1000
	embedFieldLimit = 25

	adminPermissions = discordgo.PermissionAdministrator | discordgo.PermissionManageServer
)

// Adapter implements chat.Adapter for one guild.
type Adapter struct {
	session *discordgo.Session
	guildID string
	timeout time.Duration
}

// New opens nothing; call Gateway.Open to connect. Rate limits are
// surfaced to callers instead of being retried inside discordgo.
func New(cfg config.DiscordConfig) (*Adapter, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}

	session.ShouldRetryOnRateLimit = false
	session.MaxRestRetries = cfg.RateLimitRetries
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsGuildVoiceStates
	session.State.TrackMembers = true
	session.State.TrackRoles = true
	session.State.TrackVoice = true

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Adapter{
		session: session,
		guildID: cfg.GuildID,
		timeout: timeout,
	}, nil
}

func (a *Adapter) Session() *discordgo.Session {
	return a.session
}

func (a *Adapter) GuildID() string {
	return a.guildID
}

func (a *Adapter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.timeout)
}

func (a *Adapter) Member(ctx context.Context, userID string) (*chat.Member, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	m, err := a.member(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := toMember(m)
	return &out, nil
}

func (a *Adapter) member(ctx context.Context, userID string) (*discordgo.Member, error) {
	if m, err := a.session.State.Member(a.guildID, userID); err == nil {
		return m, nil
	}

	m, err := a.session.GuildMember(a.guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify("get member", err)
	}
	return m, nil
}

func (a *Adapter) Role(ctx context.Context, roleID string) (*chat.Role, error) {
	if r, err := a.session.State.Role(a.guildID, roleID); err == nil {
		return &chat.Role{ID: r.ID, Name: r.Name}, nil
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	roles, err := a.session.GuildRoles(a.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify("list roles", err)
	}
	for _, r := range roles {
		if r.ID == roleID {
			return &chat.Role{ID: r.ID, Name: r.Name}, nil
		}
	}
	return nil, fmt.Errorf("role %s: %w", roleID, chat.ErrNotFound)
}

// AssignableRoles lists the roles sitting below the bot's highest role,
// highest first. The everyone role and integration roles are left out.
func (a *Adapter) AssignableRoles(ctx context.Context) ([]chat.Role, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	roles, err := a.session.GuildRoles(a.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify("list roles", err)
	}

	var botID string
	if a.session.State.User != nil {
		botID = a.session.State.User.ID
	}
	if botID == "" {
		self, err := a.session.User("@me", discordgo.WithContext(ctx))
		if err != nil {
			return nil, classify("get bot user", err)
		}
		botID = self.ID
	}

	me, err := a.member(ctx, botID)
	if err != nil {
		return nil, err
	}

	top := 0
	for _, r := range roles {
		if slices.Contains(me.Roles, r.ID) && r.Position > top {
			top = r.Position
		}
	}

	out := make([]chat.Role, 0, len(roles))
	for _, r := range roles {
		if r.ID == a.guildID || r.Managed || r.Position >= top {
			continue
		}
		out = append(out, chat.Role{ID: r.ID, Name: r.Name, Color: r.Color, Position: r.Position})
	}
	slices.SortFunc(out, func(x, y chat.Role) int {
		return cmp.Compare(y.Position, x.Position)
	})
	return out, nil
}

// MembersWithRole pages through the whole guild member list.
func (a *Adapter) MembersWithRole(ctx context.Context, roleID string) ([]chat.Member, error) {
	var out []chat.Member
	after := ""

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pageCtx, cancel := a.withTimeout(ctx)
		page, err := a.session.GuildMembers(a.guildID, after, membersPageSize, discordgo.WithContext(pageCtx))
		cancel()
		if err != nil {
			return nil, classify("list members", err)
		}

		for _, m := range page {
			member := toMember(m)
			if member.HasRole(roleID) {
				out = append(out, member)
			}
		}

		if len(page) < membersPageSize {
			return out, nil
		}
		after = page[len(page)-1].User.ID
	}
}

// IsAdmin reports Administrator or Manage Server through any role, or
// guild ownership.
func (a *Adapter) IsAdmin(ctx context.Context, userID string) (bool, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	m, err := a.member(ctx, userID)
	if err != nil {
		return false, err
	}

	guild, err := a.session.State.Guild(a.guildID)
	if err != nil {
		guild, err = a.session.Guild(a.guildID, discordgo.WithContext(ctx))
		if err != nil {
			return false, classify("get guild", err)
		}
	}
	if guild.OwnerID == userID {
		return true, nil
	}

	roles := guild.Roles
	if len(roles) == 0 {
		roles, err = a.session.GuildRoles(a.guildID, discordgo.WithContext(ctx))
		if err != nil {
			return false, classify("list roles", err)
		}
	}

	held := make(map[string]struct{}, len(m.Roles)+1)
	held[a.guildID] = struct{}{}
	for _, id := range m.Roles {
		held[id] = struct{}{}
	}

	var perms int64
	for _, r := range roles {
		if _, ok := held[r.ID]; ok {
			perms |= r.Permissions
		}
	}

	return perms&adminPermissions != 0, nil
}

func (a *Adapter) SendChannel(ctx context.Context, channelID string, msg chat.Message) error {
	if channelID == "" {
		return fmt.Errorf("send channel: no channel: %w", chat.ErrNotFound)
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	_, err := a.session.ChannelMessageSendComplex(channelID, toMessageSend(msg), discordgo.WithContext(ctx))
	return classify("send channel message", err)
}

func (a *Adapter) SendDM(ctx context.Context, userID string, msg chat.Message) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	ch, err := a.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return classify("open dm", err)
	}

	_, err = a.session.ChannelMessageSendComplex(ch.ID, toMessageSend(msg), discordgo.WithContext(ctx))
	return classify("send dm", err)
}

func (a *Adapter) AddRole(ctx context.Context, userID, roleID string) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	err := a.session.GuildMemberRoleAdd(a.guildID, userID, roleID, discordgo.WithContext(ctx))
	return classify("add role", err)
}

func (a *Adapter) RemoveRole(ctx context.Context, userID, roleID string) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	err := a.session.GuildMemberRoleRemove(a.guildID, userID, roleID, discordgo.WithContext(ctx))
	return classify("remove role", err)
}

func (a *Adapter) SetPresence(_ context.Context, status string) error {
	return classify("set presence", a.session.UpdateWatchStatus(0, status))
}

// classify maps discordgo failures onto the chat error kinds. Anything
// not recognised stays transient.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var rl *discordgo.RateLimitError
	if errors.As(err, &rl) {
		var wait time.Duration
		if rl.RateLimit != nil && rl.TooManyRequests != nil {
			wait = rl.RetryAfter
		}
		return fmt.Errorf("%s: %w", op, &chat.RateLimitError{RetryAfter: wait})
	}

	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		switch rest.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", op, chat.ErrNotFound)
		case http.StatusForbidden:
			return fmt.Errorf("%s: %w", op, chat.ErrForbidden)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%s: %w", op, &chat.RateLimitError{})
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}

func toMember(m *discordgo.Member) chat.Member {
	out := chat.Member{RoleIDs: m.Roles}
	if m.User != nil {
		out.UserID = m.User.ID
		out.Username = displayName(m)
		out.AvatarURL = m.User.AvatarURL("")
		out.Bot = m.User.Bot
	}
	return out
}

func displayName(m *discordgo.Member) string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}

func toMessageSend(msg chat.Message) *discordgo.MessageSend {
	out := &discordgo.MessageSend{Content: msg.Content}
	if msg.Embed != nil {
		out.Embeds = []*discordgo.MessageEmbed{toEmbed(msg.Embed)}
	}
	return out
}

func toEmbed(e *chat.Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	for i, f := range e.Fields {
		if i == embedFieldLimit {
			break
		}
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	if e.Footer != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	if e.ThumbnailURL != "" {
		out.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: e.ThumbnailURL}
	}
	return out
}

func isImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}

var _ chat.Adapter = (*Adapter)(nil)
