// AngelaMos | 2026
// commands.go

package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/carterperez-dev/pitchfork-economy/internal/achievement"
	"github.com/carterperez-dev/pitchfork-economy/internal/chat"
	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/ledger"
	"github.com/carterperez-dev/pitchfork-economy/internal/limiter"
	"github.com/carterperez-dev/pitchfork-economy/internal/settings"
	"github.com/carterperez-dev/pitchfork-economy/internal/user"
)

const footer = "Pitchfork Economy"

type Toggler interface {
	Enable(ctx context.Context) (*settings.ToggleResult, error)
	Disable(ctx context.Context) (*settings.ToggleResult, error)
}

type Commands struct {
	users        *user.Service
	ledger       *ledger.Service
	achievements *achievement.Service
	toggle       Toggler
	logger       *slog.Logger
}

func NewCommands(
	users *user.Service,
	ledgerSvc *ledger.Service,
	achievements *achievement.Service,
	toggle Toggler,
	logger *slog.Logger,
) *Commands {
	return &Commands{
		users:        users,
		ledger:       ledgerSvc,
		achievements: achievements,
		toggle:       toggle,
		logger:       logger.With("component", "commands"),
	}
}

type handlerFunc func(ctx context.Context, inv chat.Invocation) (chat.Reply, error)

// Dispatch runs one slash command. Store failures are logged and the
// member sees a generic apology.
func (c *Commands) Dispatch(ctx context.Context, inv chat.Invocation) chat.Reply {
	if inv.UserID == "" {
		return ephemeral("Could not identify you.")
	}

	if _, err := c.users.Ensure(ctx, user.Profile{
		ID:        inv.UserID,
		Username:  inv.Username,
		AvatarURL: inv.AvatarURL,
	}); err != nil {
		return c.failed(inv, err)
	}

	handler, admin := c.route(inv.Command)
	if handler == nil {
		return ephemeral("Unknown command.")
	}

	if admin {
		ok, err := c.users.VerifyAdmin(ctx, inv.UserID)
		if err != nil {
			return c.failed(inv, err)
		}
		if !ok {
			return ephemeral("You need admin permission to use this command.")
		}
	}

	reply, err := handler(ctx, inv)
	if err != nil {
		return c.failed(inv, err)
	}
	return reply
}

func (c *Commands) route(name string) (handlerFunc, bool) {
	switch name {
	case "balance":
		return c.balance, false
	case "daily":
		return c.daily, false
	case "achievements":
		return c.listAchievements, false
	case "leaderboard":
		return c.leaderboard, false
	case "limits":
		return c.limits, false
	case "birthday":
		return c.birthday, false
	case "help":
		return c.help, false
	case "give":
		return c.give, true
	case "give_all":
		return c.giveAll, true
	case "economy":
		return c.economy, true
	}
	return nil, false
}

func (c *Commands) failed(inv chat.Invocation, err error) chat.Reply {
	c.logger.Error("command failed",
		"command", inv.Command,
		"user_id", inv.UserID,
		"error", err,
	)
	return ephemeral("Something went wrong. Please try again later.")
}

func (c *Commands) balance(ctx context.Context, inv chat.Invocation) (chat.Reply, error) {
	u, err := c.users.GetUser(ctx, inv.UserID)
	if err != nil {
		return chat.Reply{}, err
	}

	return chat.Reply{Embed: &chat.Embed{
		Title: u.DisplayName() + "'s Balance",
		Color: chat.ColorBlue,
		Fields: []chat.Field{
			{Name: "Balance", Value: fmt.Sprintf("%d points", u.Balance), Inline: true},
			{Name: "Total Earned", Value: fmt.Sprintf("%d points", u.PointsEarned), Inline: true},
		},
		ThumbnailURL: u.AvatarURL,
		Footer:       footer,
	}}, nil
}

func (c *Commands) daily(ctx context.Context, inv chat.Invocation) (chat.Reply, error) {
	res, err := c.ledger.ClaimDaily(ctx, inv.UserID)
	switch {
	case errors.Is(err, core.ErrEconomyDisabled):
		return disabledReply(), nil
	case errors.Is(err, core.ErrCapReached):
		return chat.Reply{Ephemeral: true, Embed: &chat.Embed{
			Title:       "Daily Limit Reached",
			Description: fmt.Sprintf("You have claimed all %d daily rewards.", limiter.MaxDailyClaims),
			Color:       chat.ColorRed,
			Footer:      footer,
		}}, nil
	case errors.Is(err, core.ErrCooldown):
		return ephemeral("You already claimed today. Come back in " + formatWait(res.Wait) + "."), nil
	case err != nil:
		return chat.Reply{}, err
	}

	if _, err := c.achievements.EvaluateAll(ctx, inv.UserID); err != nil {
		c.logger.Error("evaluate after daily failed", "user_id", inv.UserID, "error", err)
	}

	return chat.Reply{Embed: &chat.Embed{
		Title:       "Daily Reward Claimed!",
		Description: fmt.Sprintf("You earned **%d** points.", res.Amount),
		Color:       chat.ColorGreen,
		Fields: []chat.Field{
			{Name: "Balance", Value: fmt.Sprintf("%d points", res.Balance), Inline: true},
			{Name: "Claims Left", Value: fmt.Sprintf("%d", res.Remaining), Inline: true},
		},
		Footer: footer,
	}}, nil
}

func (c *Commands) listAchievements(ctx context.Context, inv chat.Invocation) (chat.Reply, error) {
	held, err := c.achievements.ListForUser(ctx, inv.UserID)
	if err != nil {
		return chat.Reply{}, err
	}
	all, err := c.achievements.List(ctx)
	if err != nil {
		return chat.Reply{}, err
	}

	embed := &chat.Embed{
		Title:  "Your Achievements",
		Color:  chat.ColorPurple,
		Footer: fmt.Sprintf("%d of %d earned", len(held), len(all)),
	}
	if len(held) == 0 {
		embed.Description = "No achievements yet. Keep chatting, reacting and joining voice!"
	}
	for _, h := range held {
		embed.Fields = append(embed.Fields, chat.Field{
			Name:  h.Name,
			Value: fmt.Sprintf("%s (+%d)", h.Description, h.Points),
		})
	}

	return chat.Reply{Embed: embed, Ephemeral: true}, nil
}

func (c *Commands) leaderboard(ctx context.Context, _ chat.Invocation) (chat.Reply, error) {
	entries, err := c.users.Leaderboard(ctx, user.LeaderboardSize)
	if err != nil {
		return chat.Reply{}, err
	}

	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "**%d.** %s: %d points\n", e.Rank, e.Username, e.Balance)
	}
	if b.Len() == 0 {
		b.WriteString("Nobody has earned points yet.")
	}

	return chat.Reply{Embed: &chat.Embed{
		Title:       "Leaderboard",
		Description: b.String(),
		Color:       chat.ColorGold,
		Footer:      footer,
	}}, nil
}

func (c *Commands) limits(ctx context.Context, inv chat.Invocation) (chat.Reply, error) {
	l, err := c.ledger.Limits(ctx, inv.UserID, c.achievements)
	if err != nil {
		return chat.Reply{}, err
	}

	embed := &chat.Embed{
		Title: "Your Earning Limits",
		Color: chat.ColorOrange,
		Description: fmt.Sprintf(
			"Balance **%d**, still earnable **%d**, theoretical max **%d**.",
			l.Balance, l.RemainingEarnable, l.TheoreticalMax,
		),
		Footer: fmt.Sprintf("Achievements %d/%d", l.AchievementsHeld, l.AchievementsTotal),
	}
	for _, s := range l.Sources {
		value := fmt.Sprintf("%d/%d used", s.Used, s.Cap)
		if s.NextAt != nil {
			value += ", next " + s.NextAt.UTC().Format("Jan 2 15:04 MST")
		}
		embed.Fields = append(embed.Fields, chat.Field{Name: sourceTitle(s.Source), Value: value, Inline: true})
	}
	for _, s := range l.Activity {
		embed.Fields = append(embed.Fields, chat.Field{
			Name:   sourceTitle(s.Source),
			Value:  fmt.Sprintf("%d/%d", s.Used, s.Cap),
			Inline: true,
		})
	}

	return chat.Reply{Embed: embed, Ephemeral: true}, nil
}

func (c *Commands) birthday(ctx context.Context, inv chat.Invocation) (chat.Reply, error) {
	month, okM := inv.Int("month")
	day, okD := inv.Int("day")
	if !okM || !okD {
		return ephemeral("Give a month and a day."), nil
	}

	res, err := c.ledger.SetBirthday(ctx, inv.UserID, int(month), int(day))
	if errors.Is(err, core.ErrInvalidInput) {
		return ephemeral("That date does not exist."), nil
	}
	if err != nil {
		return chat.Reply{}, err
	}

	date := time.Date(2024, time.Month(month), int(day), 0, 0, 0, 0, time.UTC).Format("January 2")
	msg := "Birthday set to " + date + "."
	if res.Applied {
		msg += fmt.Sprintf(" You earned %d points for setting it!", res.Amount)

		awards, err := c.achievements.Evaluate(ctx, inv.UserID, achievement.TypeSpecial, 0)
		if err != nil {
			c.logger.Error("evaluate after birthday failed", "user_id", inv.UserID, "error", err)
		}
		for _, a := range awards {
			msg += " Achievement unlocked: " + a.Achievement.Name + "!"
		}
	}
	return ephemeral(msg), nil
}

func (c *Commands) help(context.Context, chat.Invocation) (chat.Reply, error) {
	return chat.Reply{Ephemeral: true, Embed: &chat.Embed{
		Title: "How to Earn Points",
		Color: chat.ColorBlue,
		Fields: []chat.Field{
			{Name: "/daily", Value: fmt.Sprintf("%d points once every 24 hours, up to %d times", limiter.DailyAmount, limiter.MaxDailyClaims)},
			{Name: "Daily engagement", Value: fmt.Sprintf("%d points when an admin approves your post", limiter.EngagementAmount)},
			{Name: "Campus pictures", Value: fmt.Sprintf("%d points per approved picture, up to %d", limiter.CampusPhotoAmount, limiter.MaxCampusPhotos)},
			{Name: "Enrollment deposit", Value: fmt.Sprintf("%d points, once", limiter.EnrollmentDepositAmount)},
			{Name: "/birthday", Value: fmt.Sprintf("%d points for setting it, %d on the day", limiter.BirthdaySetupAmount, limiter.BirthdayGiftAmount)},
			{Name: "Achievements", Value: "Chat, react and join voice to unlock bonus points"},
			{Name: "Spending", Value: "Visit the web store to redeem points"},
		},
		Footer: footer,
	}}, nil
}

func (c *Commands) give(ctx context.Context, inv chat.Invocation) (chat.Reply, error) {
	target := inv.String("user")
	amount, ok := inv.Int("amount")
	if target == "" || !ok || amount <= 0 {
		return ephemeral("Give a member and a positive amount."), nil
	}

	if _, err := c.users.Ensure(ctx, user.Profile{ID: target}); err != nil {
		return chat.Reply{}, err
	}

	res, err := c.ledger.Give(ctx, target, amount)
	if errors.Is(err, core.ErrEconomyDisabled) {
		return disabledReply(), nil
	}
	if err != nil {
		return chat.Reply{}, err
	}

	c.logger.Info("admin give", "admin_id", inv.UserID, "user_id", target, "amount", amount)
	return chat.Reply{Content: fmt.Sprintf(
		"Gave %d points to <@%s>. New balance: %d.", amount, target, res.Balance,
	)}, nil
}

func (c *Commands) giveAll(ctx context.Context, inv chat.Invocation) (chat.Reply, error) {
	amount, ok := inv.Int("amount")
	if !ok || amount <= 0 {
		return ephemeral("Give a positive amount."), nil
	}

	n, err := c.ledger.GiveAll(ctx, amount)
	if errors.Is(err, core.ErrEconomyDisabled) {
		return disabledReply(), nil
	}
	if err != nil {
		return chat.Reply{}, err
	}

	c.logger.Info("admin give all", "admin_id", inv.UserID, "amount", amount, "users", n)
	return chat.Reply{Content: fmt.Sprintf("Gave %d points to %d members.", amount, n)}, nil
}

func (c *Commands) economy(ctx context.Context, inv chat.Invocation) (chat.Reply, error) {
	var (
		res *settings.ToggleResult
		err error
	)

	switch inv.String("action") {
	case "enable":
		res, err = c.toggle.Enable(ctx)
	case "disable":
		res, err = c.toggle.Disable(ctx)
	default:
		return ephemeral("Choose enable or disable."), nil
	}
	if errors.Is(err, core.ErrChatUnavailable) {
		return ephemeral("The first enable needs the bot connected to the guild."), nil
	}
	if err != nil {
		return chat.Reply{}, err
	}

	state := "disabled"
	if res.Settings.Enabled {
		state = "enabled"
	}

	msg := "The economy is now " + state + "."
	if !res.Changed {
		msg = "The economy was already " + state + "."
	}
	if res.BootstrapStarted {
		msg += " Existing role holders are being credited in the background."
	}

	c.logger.Info("economy toggled", "admin_id", inv.UserID, "state", state, "changed", res.Changed)
	return chat.Reply{Content: msg}, nil
}

func ephemeral(content string) chat.Reply {
	return chat.Reply{Content: content, Ephemeral: true}
}

func disabledReply() chat.Reply {
	return ephemeral("The economy is currently disabled.")
}

func formatWait(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}

func sourceTitle(s limiter.Source) string {
	words := strings.Split(string(s), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
