// AngelaMos | 2026
// ingestor_test.go

package bot_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/pitchfork-economy/internal/achievement"
	"github.com/carterperez-dev/pitchfork-economy/internal/bot"
	"github.com/carterperez-dev/pitchfork-economy/internal/chat"
	"github.com/carterperez-dev/pitchfork-economy/internal/chat/chattest"
	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/ledger"
	"github.com/carterperez-dev/pitchfork-economy/internal/limiter"
	"github.com/carterperez-dev/pitchfork-economy/internal/memstore"
	"github.com/carterperez-dev/pitchfork-economy/internal/notify"
	"github.com/carterperez-dev/pitchfork-economy/internal/settings"
	"github.com/carterperez-dev/pitchfork-economy/internal/user"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixture struct {
	store        *memstore.Store
	clock        *core.ManualClock
	adapter      *chattest.Adapter
	recorder     *notify.Recorder
	users        *user.Service
	ledger       *ledger.Service
	achievements *achievement.Service
	settings     *settings.Service
	ingestor     *bot.Ingestor
	commands     *bot.Commands
}

func newFixture(t *testing.T, enabled bool) *fixture {
	t.Helper()

	clock := core.NewManualClock(time.Date(2026, 2, 3, 18, 0, 0, 0, time.UTC))
	store := memstore.New(clock)
	store.SeedAchievements()
	store.SetEconomy(func(s *settings.Settings) {
		s.Enabled = enabled
		s.FirstTimeEnabled = enabled
		s.VerifiedRoleID = "verified"
		s.OnboardingRoleIDs = settings.RoleIDs{"ob-1", "ob-2"}
	})

	adapter := chattest.New()
	adapter.SetAdmin("admin", true)
	rec := &notify.Recorder{}

	users := user.NewService(store.Users(nil), memstore.NewCache(clock), time.Minute)
	users.SetAdminSource(adapter)

	ledgerSvc := ledger.NewService(store, store.DB(), store.Ledger, store.Settings, clock, 3)
	achievements := achievement.NewService(store, store.DB(), store.Achievements, ledgerSvc, rec, 3)
	settingsSvc := settings.NewService(store, store.DB(), store.Settings, clock, true)

	return &fixture{
		store:        store,
		clock:        clock,
		adapter:      adapter,
		recorder:     rec,
		users:        users,
		ledger:       ledgerSvc,
		achievements: achievements,
		settings:     settingsSvc,
		ingestor: bot.NewIngestor(
			users, ledgerSvc, achievements, settingsSvc, adapter, rec, bot.DefaultEmojis(), quiet,
		),
		commands: bot.NewCommands(users, ledgerSvc, achievements, settingsSvc, quiet),
	}
}

func (f *fixture) user(t *testing.T, id string) user.User {
	t.Helper()
	u, ok := f.store.User(id)
	require.True(t, ok, "user %s missing", id)
	return u
}

func TestOnMessageCountsGuildMessagesFromHumans(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.ingestor.OnMessage(ctx, chat.MessageEvent{AuthorID: "bot", AuthorBot: true, InGuild: true})
	f.ingestor.OnMessage(ctx, chat.MessageEvent{AuthorID: "u1", AuthorName: "uma", InGuild: false})
	_, ok := f.store.User("bot")
	require.False(t, ok)

	f.ingestor.OnMessage(ctx, chat.MessageEvent{AuthorID: "u1", AuthorName: "uma", InGuild: true})
	f.ingestor.OnMessage(ctx, chat.MessageEvent{AuthorID: "u1", AuthorName: "uma", InGuild: true})

	u := f.user(t, "u1")
	require.Equal(t, "uma", u.Username)
	require.Equal(t, 2, u.MessageCount)
	require.Equal(t, 1, f.store.HeldCount("u1"))
	require.Equal(t, int64(10), u.Balance)
}

func TestMessagesIgnoredWhileDisabled(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	f.ingestor.OnMessage(ctx, chat.MessageEvent{AuthorID: "u1", InGuild: true})

	u := f.user(t, "u1")
	require.Zero(t, u.MessageCount)
	require.Zero(t, u.Balance)
	require.Zero(t, f.store.HeldCount("u1"))
}

func TestOnVoiceStateCountsJoinsOnly(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.ingestor.OnVoiceState(ctx, chat.VoiceStateEvent{UserID: "u1", AfterChannelID: "lounge"})
	f.ingestor.OnVoiceState(ctx, chat.VoiceStateEvent{UserID: "u1", BeforeChannelID: "lounge", AfterChannelID: "study"})
	f.ingestor.OnVoiceState(ctx, chat.VoiceStateEvent{UserID: "u1", BeforeChannelID: "study"})
	f.ingestor.OnVoiceState(ctx, chat.VoiceStateEvent{UserID: "b1", Bot: true, AfterChannelID: "lounge"})

	require.Equal(t, 1, f.user(t, "u1").VoiceMinutes)
}

func TestCampusPhotoApproval(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	react := func(reactor string, image bool) {
		f.ingestor.OnReaction(ctx, chat.ReactionEvent{
			MessageID:  "m1",
			ReactorID:  reactor,
			AuthorID:   "author",
			AuthorName: "ari",
			HasImage:   image,
			Emoji:      "campus_photo",
		})
	}

	react("member", true)
	react("admin", false)
	_, ok := f.store.User("author")
	require.False(t, ok)

	react("admin", true)
	author := f.user(t, "author")
	require.Equal(t, limiter.CampusPhotoAmount, author.Balance)
	require.Equal(t, 1, author.CampusPhotosCount)

	dms := f.adapter.DMsTo("author")
	require.Len(t, dms, 1)
	require.Equal(t, "Campus Picture Approved!", dms[0].Message.Embed.Title)

	require.Equal(t, 2, f.user(t, "admin").ReactionCount)
	require.Equal(t, 1, f.user(t, "member").ReactionCount)
}

func TestDepositApprovalPaysOnce(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		f.ingestor.OnReaction(ctx, chat.ReactionEvent{
			ReactorID: "admin",
			AuthorID:  "author",
			Emoji:     "deposit_check",
		})
	}

	author := f.user(t, "author")
	require.True(t, author.EnrollmentDepositReceived)
	require.GreaterOrEqual(t, author.Balance, limiter.EnrollmentDepositAmount)
	require.Len(t, f.adapter.DMsTo("author"), 1)
}

func TestApprovalFallsBackWhenAdminLookupFails(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.store.PutUser(user.User{ID: "admin", IsAdmin: false})
	f.adapter.AdminErr = context.DeadlineExceeded

	f.ingestor.OnReaction(ctx, chat.ReactionEvent{ReactorID: "admin", AuthorID: "author", Emoji: "daily_engage"})
	_, ok := f.store.User("author")
	require.False(t, ok)
}

func TestMemberUpdatePaysRoleBonuses(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.ingestor.OnMemberUpdate(ctx, chat.MemberUpdateEvent{
		UserID:      "u1",
		Username:    "uma",
		BeforeRoles: []string{"ob-1"},
		AfterRoles:  []string{"ob-1", "verified"},
	})

	u := f.user(t, "u1")
	require.True(t, u.VerifiedBonusReceived)
	require.False(t, u.OnboardingBonusReceived)
	require.Equal(t, 1, f.recorder.Count(notify.KindBonusApplied))
	require.Equal(t, 1, f.recorder.Count(notify.KindAchievementAwarded))

	f.ingestor.OnMemberUpdate(ctx, chat.MemberUpdateEvent{
		UserID:      "u1",
		BeforeRoles: []string{"verified"},
		AfterRoles:  []string{"verified", "ob-1", "ob-2"},
	})

	u = f.user(t, "u1")
	require.True(t, u.OnboardingBonusReceived)
	require.Equal(t, limiter.DefaultVerifiedBonus+limiter.DefaultOnboardingBonus+welcomeAboardPoints, u.Balance)
	require.Equal(t, 2, f.recorder.Count(notify.KindBonusApplied))
}

func TestMemberUpdateIgnoredWhileDisabled(t *testing.T) {
	f := newFixture(t, false)

	f.ingestor.OnMemberUpdate(context.Background(), chat.MemberUpdateEvent{
		UserID:     "u1",
		AfterRoles: []string{"verified"},
	})

	_, ok := f.store.User("u1")
	require.False(t, ok)
	require.Zero(t, f.recorder.Count(notify.KindBonusApplied))
}

func TestRoleGuardStripsRestrictedRole(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.ingestor.SetRoleGuard(bot.RoleGuard{Restricted: "committed", BlockedBy: "unverified"})

	f.adapter.AddMember("u1", "uma", "unverified", "committed")
	f.ingestor.OnMemberUpdate(ctx, chat.MemberUpdateEvent{
		UserID:      "u1",
		BeforeRoles: []string{"unverified"},
		AfterRoles:  []string{"unverified", "committed"},
	})

	m, err := f.adapter.Member(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, []string{"unverified"}, m.RoleIDs)

	f.adapter.AddMember("u2", "ugo", "committed", "verified")
	f.ingestor.OnMemberUpdate(ctx, chat.MemberUpdateEvent{
		UserID:      "u2",
		BeforeRoles: []string{"committed"},
		AfterRoles:  []string{"committed", "verified"},
	})

	m, err = f.adapter.Member(ctx, "u2")
	require.NoError(t, err)
	require.Equal(t, []string{"committed", "verified"}, m.RoleIDs)
}
