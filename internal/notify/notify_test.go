// AngelaMos | 2026
// notify_test.go

package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/pitchfork-economy/internal/chat"
	"github.com/carterperez-dev/pitchfork-economy/internal/chat/chattest"
	"github.com/carterperez-dev/pitchfork-economy/internal/notify"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type failing struct{}

func (failing) Notify(context.Context, notify.Event) error {
	return errors.New("chat down")
}

func TestEventValidate(t *testing.T) {
	ev := notify.AchievementAwarded("u1", "alice", notify.AchievementPayload{Name: "First Steps", Points: 10})
	require.NoError(t, ev.Validate())
	require.NotEmpty(t, ev.ID)

	ev.Achievement = nil
	require.Error(t, ev.Validate())

	require.Error(t, notify.Event{Kind: "bogus", UserID: "u1"}.Validate())
	require.Error(t, notify.Event{Kind: notify.KindBonusApplied}.Validate())
}

func TestConsumerHandle(t *testing.T) {
	rec := &notify.Recorder{}
	c := notify.NewConsumer(notify.ConsumerConfig{Queue: "q"}, rec, discard())
	ctx := context.Background()

	ev := notify.BonusApplied("u1", "alice", notify.BonusPayload{Source: "campus_photo", Amount: 100, Balance: 100})
	body, err := json.Marshal(ev)
	require.NoError(t, err)

	require.Equal(t, notify.OutcomeAck, c.Handle(ctx, body))
	require.Equal(t, 1, rec.Count(notify.KindBonusApplied))

	require.Equal(t, notify.OutcomeDrop, c.Handle(ctx, []byte("{not json")))
	require.Equal(t, notify.OutcomeDrop, c.Handle(ctx, []byte(`{"kind":"role.granted","user_id":"u1"}`)))
	require.Len(t, rec.Events(), 1)

	broken := notify.NewConsumer(notify.ConsumerConfig{Queue: "q"}, failing{}, discard())
	require.Equal(t, notify.OutcomeRetry, broken.Handle(ctx, body))
}

func TestChatNotifierRouting(t *testing.T) {
	fake := chattest.New()
	n := notify.NewChatNotifier(fake, "general", "admin", discard())
	ctx := context.Background()

	require.NoError(t, n.Notify(ctx, notify.AchievementAwarded("u1", "alice",
		notify.AchievementPayload{Name: "Chatterbox", Points: 50, Balance: 60})))
	posts := fake.ChannelPosts()
	require.Len(t, posts, 1)
	require.Equal(t, "general", posts[0].ChannelID)
	require.Contains(t, posts[0].Message.Embed.Description, "Chatterbox")

	stock := 0
	require.NoError(t, n.Notify(ctx, notify.PurchaseCreated("u1", "alice", notify.PurchasePayload{
		PurchaseID:  7,
		ProductName: "Sticker",
		ProductType: "physical",
		PointsSpent: 100,
		Status:      "completed",
		StockLeft:   &stock,
	})))
	require.Len(t, fake.DMsTo("admin"), 1)
	require.Len(t, fake.DMsTo("u1"), 1)
	require.Equal(t, "🧾 Purchase Receipt", fake.DMsTo("u1")[0].Message.Embed.Title)

	require.NoError(t, n.Notify(ctx, notify.RoleGranted("u1", notify.RolePayload{RoleID: "r1", PurchaseID: 7})))
	require.Len(t, fake.DMsTo("u1"), 2)
}

func TestChatNotifierClosedDMsOnReceipt(t *testing.T) {
	fake := chattest.New()
	fake.DMErr = chat.ErrForbidden
	n := notify.NewChatNotifier(fake, "", "", discard())

	err := n.Notify(context.Background(), notify.PurchaseCreated("u1", "", notify.PurchasePayload{
		PurchaseID:  1,
		ProductName: "Sticker",
		ProductType: "physical",
		Status:      "completed",
	}))
	require.NoError(t, err)
}
