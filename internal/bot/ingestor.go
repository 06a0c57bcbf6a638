// AngelaMos | 2026
// ingestor.go

// Package bot turns chat activity into ledger and achievement updates and
// answers slash commands.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/carterperez-dev/pitchfork-economy/internal/achievement"
	"github.com/carterperez-dev/pitchfork-economy/internal/chat"
	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/ledger"
	"github.com/carterperez-dev/pitchfork-economy/internal/limiter"
	"github.com/carterperez-dev/pitchfork-economy/internal/notify"
	"github.com/carterperez-dev/pitchfork-economy/internal/settings"
	"github.com/carterperez-dev/pitchfork-economy/internal/user"
)

// Emojis names the custom reactions admins use to approve submissions.
type Emojis struct {
	CampusPhoto  string
	DailyEngage  string
	DepositCheck string
}

func DefaultEmojis() Emojis {
	return Emojis{
		CampusPhoto:  "campus_photo",
		DailyEngage:  "daily_engage",
		DepositCheck: "deposit_check",
	}
}

type approval int

const (
	approveNone approval = iota
	approveCampusPhoto
	approveEngagement
	approveDeposit
)

type SettingsReader interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

type Ingestor struct {
	users        *user.Service
	ledger       *ledger.Service
	achievements *achievement.Service
	settings     SettingsReader
	chat         chat.Adapter
	notifier     notify.Notifier
	emojis       Emojis
	guard        RoleGuard
	logger       *slog.Logger
}

// RoleGuard keeps Restricted off members who hold BlockedBy. Either id
// empty turns the guard off.
type RoleGuard struct {
	Restricted string
	BlockedBy  string
}

func (g RoleGuard) enabled() bool {
	return g.Restricted != "" && g.BlockedBy != ""
}

func NewIngestor(
	users *user.Service,
	ledgerSvc *ledger.Service,
	achievements *achievement.Service,
	settingsReader SettingsReader,
	adapter chat.Adapter,
	notifier notify.Notifier,
	emojis Emojis,
	logger *slog.Logger,
) *Ingestor {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &Ingestor{
		users:        users,
		ledger:       ledgerSvc,
		achievements: achievements,
		settings:     settingsReader,
		chat:         adapter,
		notifier:     notifier,
		emojis:       emojis,
		logger:       logger.With("component", "ingestor"),
	}
}

func (i *Ingestor) SetRoleGuard(g RoleGuard) {
	i.guard = g
}

func (i *Ingestor) ensure(ctx context.Context, id, name, avatar string) bool {
	if _, err := i.users.Ensure(ctx, user.Profile{ID: id, Username: name, AvatarURL: avatar}); err != nil {
		i.logger.Error("ensure user failed", "user_id", id, "error", err)
		return false
	}
	return true
}

// OnMessage counts one guild message for a human author.
func (i *Ingestor) OnMessage(ctx context.Context, e chat.MessageEvent) {
	if e.AuthorBot || !e.InGuild || e.AuthorID == "" {
		return
	}
	if !i.ensure(ctx, e.AuthorID, e.AuthorName, "") {
		return
	}

	res, err := i.ledger.RecordActivity(ctx, e.AuthorID, limiter.SourceMessages, 1)
	i.afterActivity(ctx, e.AuthorID, achievement.TypeMessage, res, err)
}

// OnReaction handles admin approvals first, then counts the reaction for
// the member who reacted.
func (i *Ingestor) OnReaction(ctx context.Context, e chat.ReactionEvent) {
	if e.ReactorBot || e.ReactorID == "" {
		return
	}
	if !i.ensure(ctx, e.ReactorID, e.ReactorName, "") {
		return
	}

	if kind := i.approvalFor(e.Emoji); kind != approveNone {
		i.approve(ctx, e, kind)
	}

	res, err := i.ledger.RecordActivity(ctx, e.ReactorID, limiter.SourceReactions, 1)
	i.afterActivity(ctx, e.ReactorID, achievement.TypeReaction, res, err)
}

// OnVoiceState counts a join as one voice minute.
func (i *Ingestor) OnVoiceState(ctx context.Context, e chat.VoiceStateEvent) {
	if e.Bot || !e.Joined() || e.UserID == "" {
		return
	}
	if !i.ensure(ctx, e.UserID, e.Username, "") {
		return
	}

	res, err := i.ledger.RecordActivity(ctx, e.UserID, limiter.SourceVoice, 1)
	i.afterActivity(ctx, e.UserID, achievement.TypeVoice, res, err)
}

// OnMemberUpdate pays role bonuses for newly added verified or onboarding
// roles.
func (i *Ingestor) OnMemberUpdate(ctx context.Context, e chat.MemberUpdateEvent) {
	if e.Bot || e.UserID == "" {
		return
	}

	added := e.AddedRoles()
	if len(added) == 0 {
		return
	}

	i.enforceGuard(ctx, e)

	st, err := i.settings.Get(ctx)
	if err != nil {
		i.logger.Error("load settings failed", "error", err)
		return
	}
	if !st.Enabled {
		return
	}

	var kinds []ledger.BonusKind
	onboarding := false
	for _, roleID := range added {
		if st.VerifiedRoleID != "" && roleID == st.VerifiedRoleID {
			kinds = append(kinds, ledger.BonusVerified)
		}
		if st.IsOnboardingRole(roleID) && !onboarding {
			kinds = append(kinds, ledger.BonusOnboarding)
			onboarding = true
		}
	}
	if len(kinds) == 0 {
		return
	}

	if !i.ensure(ctx, e.UserID, e.Username, e.AvatarURL) {
		return
	}

	awarded := false
	for _, kind := range kinds {
		res, err := i.ledger.ApplyRoleBonus(ctx, e.UserID, kind, false)
		if err != nil {
			i.logIgnored("role bonus", e.UserID, err, "kind", kind)
			continue
		}
		if !res.Applied {
			continue
		}

		awarded = true
		i.logger.Info("role bonus applied",
			"user_id", e.UserID,
			"kind", kind,
			"amount", res.Amount,
		)
		notify.Send(ctx, i.notifier, notify.BonusApplied(e.UserID, e.Username, notify.BonusPayload{
			Source:  string(kind.Source()),
			Amount:  res.Amount,
			Balance: res.Balance,
		}))
	}

	if awarded {
		i.evaluate(ctx, e.UserID, achievement.TypeSpecial, 0)
	}
}

// enforceGuard strips the restricted role from a member who also holds
// the blocking role, whichever of the two arrived last.
func (i *Ingestor) enforceGuard(ctx context.Context, e chat.MemberUpdateEvent) {
	if !i.guard.enabled() {
		return
	}
	if !slices.Contains(e.AfterRoles, i.guard.Restricted) || !slices.Contains(e.AfterRoles, i.guard.BlockedBy) {
		return
	}

	if err := i.chat.RemoveRole(ctx, e.UserID, i.guard.Restricted); err != nil {
		i.logger.Error("remove restricted role failed",
			"user_id", e.UserID,
			"role_id", i.guard.Restricted,
			"error", err,
		)
		return
	}
	i.logger.Warn("restricted role removed",
		"user_id", e.UserID,
		"role_id", i.guard.Restricted,
		"blocked_by", i.guard.BlockedBy,
	)
}

func (i *Ingestor) approvalFor(emoji string) approval {
	switch emoji {
	case "":
		return approveNone
	case i.emojis.CampusPhoto:
		return approveCampusPhoto
	case i.emojis.DailyEngage:
		return approveEngagement
	case i.emojis.DepositCheck:
		return approveDeposit
	}
	return approveNone
}

// approve credits the message author when the reactor is an admin right
// now. Campus photos also need an image on the message.
func (i *Ingestor) approve(ctx context.Context, e chat.ReactionEvent, kind approval) {
	if e.AuthorID == "" || e.AuthorBot {
		return
	}

	admin, err := i.users.VerifyAdmin(ctx, e.ReactorID)
	if err != nil {
		i.logger.Error("admin check failed", "user_id", e.ReactorID, "error", err)
		return
	}
	if !admin {
		return
	}

	if kind == approveCampusPhoto && !e.HasImage {
		i.logger.Info("campus photo approval ignored, no image",
			"message_id", e.MessageID,
			"author_id", e.AuthorID,
		)
		return
	}

	if !i.ensure(ctx, e.AuthorID, e.AuthorName, "") {
		return
	}

	var res ledger.Result
	switch kind {
	case approveCampusPhoto:
		res, err = i.ledger.RecordCampusPhoto(ctx, e.AuthorID)
	case approveEngagement:
		res, err = i.ledger.RecordEngagement(ctx, e.AuthorID)
	case approveDeposit:
		res, err = i.ledger.RecordEnrollmentDeposit(ctx, e.AuthorID)
	}
	if err != nil {
		i.logIgnored("admin approval", e.AuthorID, err, "approved_by", e.ReactorID)
		return
	}
	if !res.Applied {
		i.logger.Info("admin approval already applied",
			"user_id", e.AuthorID,
			"approved_by", e.ReactorID,
		)
		return
	}

	i.logger.Info("admin approval credited",
		"user_id", e.AuthorID,
		"approved_by", e.ReactorID,
		"amount", res.Amount,
	)

	if err := i.chat.SendDM(ctx, e.AuthorID, chat.Message{Embed: approvalEmbed(kind, res)}); err != nil {
		i.logger.Warn("approval dm failed", "user_id", e.AuthorID, "error", err)
	}

	if kind == approveDeposit {
		i.evaluate(ctx, e.AuthorID, achievement.TypeSpecial, 0)
	}
}

func (i *Ingestor) afterActivity(
	ctx context.Context,
	userID string,
	t achievement.Type,
	res ledger.ActivityResult,
	err error,
) {
	if err != nil {
		i.logIgnored("record activity", userID, err, "type", t)
		return
	}
	if !res.Moved {
		return
	}
	i.evaluate(ctx, userID, t, res.Count)
}

func (i *Ingestor) evaluate(ctx context.Context, userID string, t achievement.Type, count int) {
	if _, err := i.achievements.Evaluate(ctx, userID, t, count); err != nil {
		i.logger.Error("evaluate achievements failed",
			"user_id", userID,
			"type", t,
			"error", err,
		)
	}
}

// logIgnored keeps policy refusals at info; everything else is an error.
func (i *Ingestor) logIgnored(op, userID string, err error, attrs ...any) {
	attrs = append(attrs, "user_id", userID, "error", err)
	switch {
	case errors.Is(err, core.ErrEconomyDisabled):
		return
	case errors.Is(err, core.ErrCapReached), errors.Is(err, core.ErrCooldown):
		i.logger.Info(op+" refused", attrs...)
	default:
		i.logger.Error(op+" failed", attrs...)
	}
}

func approvalEmbed(kind approval, res ledger.Result) *chat.Embed {
	title := "Submission Approved"
	color := chat.ColorBlue
	switch kind {
	case approveCampusPhoto:
		title = "Campus Picture Approved!"
	case approveEngagement:
		title = "Daily Engagement Approved!"
		color = chat.ColorGreen
	case approveDeposit:
		title = "Enrollment Deposit Confirmed!"
		color = chat.ColorGold
	}

	return &chat.Embed{
		Title:       title,
		Description: fmt.Sprintf("An admin approved your post.\n\n**Points Earned:** %d", res.Amount),
		Color:       color,
		Footer:      fmt.Sprintf("New balance: %d points", res.Balance),
	}
}
