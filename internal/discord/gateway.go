// AngelaMos | 2026
// gateway.go

package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/carterperez-dev/pitchfork-economy/internal/chat"
)

const eventTimeout = 30 * time.Second

// EventSink receives normalised guild events.
type EventSink interface {
	OnMessage(ctx context.Context, e chat.MessageEvent)
	OnReaction(ctx context.Context, e chat.ReactionEvent)
	OnVoiceState(ctx context.Context, e chat.VoiceStateEvent)
	OnMemberUpdate(ctx context.Context, e chat.MemberUpdateEvent)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, inv chat.Invocation) chat.Reply
}

// Gateway owns the websocket connection and turns discordgo callbacks
// into chat events and command invocations.
type Gateway struct {
	adapter  *Adapter
	sink     EventSink
	commands Dispatcher
	register bool
	presence string
	logger   *slog.Logger
	ctx      context.Context
}

func NewGateway(
	adapter *Adapter,
	sink EventSink,
	commands Dispatcher,
	registerCommands bool,
	logger *slog.Logger,
) *Gateway {
	return &Gateway{
		adapter:  adapter,
		sink:     sink,
		commands: commands,
		register: registerCommands,
		logger:   logger.With("component", "gateway"),
		ctx:      context.Background(),
	}
}

// SetPresence sets the watching status shown once the gateway is ready.
func (g *Gateway) SetPresence(text string) {
	g.presence = text
}

// Open connects and blocks until ctx is cancelled.
func (g *Gateway) Open(ctx context.Context) error {
	g.ctx = ctx
	s := g.adapter.session

	s.AddHandler(g.onReady)
	s.AddHandler(g.onMessage)
	s.AddHandler(g.onReaction)
	s.AddHandler(g.onVoiceState)
	s.AddHandler(g.onMemberUpdate)
	s.AddHandler(g.onInteraction)

	if err := s.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	g.logger.Info("gateway connected", "guild_id", g.adapter.guildID)

	<-ctx.Done()

	if err := s.Close(); err != nil {
		g.logger.Warn("gateway close failed", "error", err)
	}
	return nil
}

func (g *Gateway) eventContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(g.ctx, eventTimeout)
}

func (g *Gateway) onReady(s *discordgo.Session, r *discordgo.Ready) {
	g.logger.Info("gateway ready", "user", r.User.Username, "guilds", len(r.Guilds))

	if g.presence != "" {
		if err := g.adapter.SetPresence(g.ctx, g.presence); err != nil {
			g.logger.Warn("set presence failed", "error", err)
		}
	}

	if !g.register {
		return
	}

	registered, err := s.ApplicationCommandBulkOverwrite(r.User.ID, g.adapter.guildID, Commands())
	if err != nil {
		g.logger.Error("register slash commands failed", "error", err)
		return
	}
	g.logger.Info("slash commands registered", "count", len(registered))
}

func (g *Gateway) inGuild(guildID string) bool {
	return guildID == g.adapter.guildID
}

func (g *Gateway) onMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || !g.inGuild(m.GuildID) {
		return
	}

	ctx, cancel := g.eventContext()
	defer cancel()

	g.sink.OnMessage(ctx, chat.MessageEvent{
		MessageID:  m.ID,
		ChannelID:  m.ChannelID,
		AuthorID:   m.Author.ID,
		AuthorName: m.Author.Username,
		AuthorBot:  m.Author.Bot,
		InGuild:    true,
	})
}

func (g *Gateway) onReaction(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if !g.inGuild(r.GuildID) {
		return
	}

	ctx, cancel := g.eventContext()
	defer cancel()

	e := chat.ReactionEvent{
		MessageID: r.MessageID,
		ChannelID: r.ChannelID,
		ReactorID: r.UserID,
		Emoji:     r.Emoji.Name,
	}
	if r.Member != nil && r.Member.User != nil {
		e.ReactorName = displayName(r.Member)
		e.ReactorBot = r.Member.User.Bot
	}

	msg, err := s.ChannelMessage(r.ChannelID, r.MessageID, discordgo.WithContext(ctx))
	if err != nil {
		g.logger.Warn("resolve reacted message failed",
			"message_id", r.MessageID,
			"error", classify("get message", err),
		)
	} else if msg.Author != nil {
		e.AuthorID = msg.Author.ID
		e.AuthorName = msg.Author.Username
		e.AuthorBot = msg.Author.Bot
		for _, att := range msg.Attachments {
			if isImage(att.ContentType) {
				e.HasImage = true
				break
			}
		}
	}

	g.sink.OnReaction(ctx, e)
}

func (g *Gateway) onVoiceState(_ *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.VoiceState == nil || !g.inGuild(v.GuildID) {
		return
	}

	ctx, cancel := g.eventContext()
	defer cancel()

	e := chat.VoiceStateEvent{
		UserID:         v.UserID,
		AfterChannelID: v.ChannelID,
	}
	if v.BeforeUpdate != nil {
		e.BeforeChannelID = v.BeforeUpdate.ChannelID
	}
	if v.Member != nil && v.Member.User != nil {
		e.Username = displayName(v.Member)
		e.Bot = v.Member.User.Bot
	}

	g.sink.OnVoiceState(ctx, e)
}

func (g *Gateway) onMemberUpdate(_ *discordgo.Session, m *discordgo.GuildMemberUpdate) {
	if m.Member == nil || m.User == nil || !g.inGuild(m.GuildID) {
		return
	}

	ctx, cancel := g.eventContext()
	defer cancel()

	after := toMember(m.Member)
	e := chat.MemberUpdateEvent{
		UserID:     after.UserID,
		Username:   after.Username,
		AvatarURL:  after.AvatarURL,
		Bot:        after.Bot,
		AfterRoles: after.RoleIDs,
	}
	if m.BeforeUpdate != nil {
		e.BeforeRoles = m.BeforeUpdate.Roles
	}

	g.sink.OnMemberUpdate(ctx, e)
}

func (g *Gateway) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	ctx, cancel := g.eventContext()
	defer cancel()

	data := i.ApplicationCommandData()
	inv := chat.Invocation{
		Command: data.Name,
		Options: make(map[string]string, len(data.Options)),
	}

	caller := i.User
	if i.Member != nil {
		caller = i.Member.User
		inv.Username = displayName(i.Member)
	}
	if caller != nil {
		inv.UserID = caller.ID
		inv.AvatarURL = caller.AvatarURL("")
		if inv.Username == "" {
			inv.Username = caller.Username
		}
	}

	for _, opt := range data.Options {
		inv.Options[opt.Name] = optionValue(opt)
	}

	reply := g.commands.Dispatch(ctx, inv)

	resp := &discordgo.InteractionResponseData{Content: reply.Content}
	if reply.Embed != nil {
		resp.Embeds = []*discordgo.MessageEmbed{toEmbed(reply.Embed)}
	}
	if reply.Ephemeral {
		resp.Flags = discordgo.MessageFlagsEphemeral
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: resp,
	}, discordgo.WithContext(ctx)); err != nil {
		g.logger.Error("interaction respond failed",
			"command", inv.Command,
			"user_id", inv.UserID,
			"error", classify("respond", err),
		)
	}
}

func optionValue(opt *discordgo.ApplicationCommandInteractionDataOption) string {
	switch opt.Type {
	case discordgo.ApplicationCommandOptionInteger:
		return strconv.FormatInt(opt.IntValue(), 10)
	case discordgo.ApplicationCommandOptionString:
		return opt.StringValue()
	default:
		return fmt.Sprint(opt.Value)
	}
}
