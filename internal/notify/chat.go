// AngelaMos | 2026
// chat.go

package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/carterperez-dev/pitchfork-economy/internal/chat"
)

const footerText = "Pitchfork Economy"

// ChatNotifier renders events as chat messages: achievements go to the
// general channel, purchases to the admin and the buyer, everything else
// to the member by DM.
type ChatNotifier struct {
	adapter          chat.Adapter
	generalChannelID string
	adminUserID      string
	logger           *slog.Logger
}

func NewChatNotifier(
	adapter chat.Adapter,
	generalChannelID, adminUserID string,
	logger *slog.Logger,
) *ChatNotifier {
	return &ChatNotifier{
		adapter:          adapter,
		generalChannelID: generalChannelID,
		adminUserID:      adminUserID,
		logger:           logger.With("component", "chat_notifier"),
	}
}

func (n *ChatNotifier) Notify(ctx context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}

	switch e.Kind {
	case KindAchievementAwarded:
		return n.achievement(ctx, e)
	case KindPurchaseCreated:
		return n.purchase(ctx, e)
	case KindRoleGranted:
		return n.adapter.SendDM(ctx, e.UserID, chat.Message{Embed: roleEmbed(e)})
	case KindBonusApplied:
		return n.adapter.SendDM(ctx, e.UserID, chat.Message{Embed: bonusEmbed(e)})
	}
	return nil
}

func (n *ChatNotifier) achievement(ctx context.Context, e Event) error {
	msg := chat.Message{Embed: achievementEmbed(e)}
	if n.generalChannelID != "" {
		return n.adapter.SendChannel(ctx, n.generalChannelID, msg)
	}
	return n.adapter.SendDM(ctx, e.UserID, msg)
}

func (n *ChatNotifier) purchase(ctx context.Context, e Event) error {
	var errs []error

	if n.adminUserID != "" {
		err := n.adapter.SendDM(ctx, n.adminUserID, chat.Message{Embed: purchaseAlertEmbed(e)})
		if err != nil {
			errs = append(errs, fmt.Errorf("admin alert: %w", err))
		}
	}

	if err := n.adapter.SendDM(ctx, e.UserID, chat.Message{Embed: receiptEmbed(e)}); err != nil {
		if errors.Is(err, chat.ErrForbidden) {
			n.logger.Info("buyer has DMs closed", "user_id", e.UserID)
		} else {
			errs = append(errs, fmt.Errorf("receipt: %w", err))
		}
	}

	return errors.Join(errs...)
}

func displayName(e Event) string {
	if e.Username != "" {
		return e.Username
	}
	return "<@" + e.UserID + ">"
}

func achievementEmbed(e Event) *chat.Embed {
	a := e.Achievement
	desc := a.Description
	if desc == "" {
		desc = "Great job!"
	}

	return &chat.Embed{
		Title: "🏆 Achievement Unlocked!",
		Description: fmt.Sprintf(
			"Congratulations %s! You've unlocked the **%s** achievement!",
			displayName(e), a.Name,
		),
		Color: chat.ColorGold,
		Fields: []chat.Field{
			{Name: "💰 Points Earned", Value: fmt.Sprintf("+%d pitchforks", a.Points), Inline: true},
			{Name: "💎 New Balance", Value: fmt.Sprintf("%d pitchforks", a.Balance), Inline: true},
			{Name: "🎯 Description", Value: desc},
		},
		Footer: footerText,
	}
}

func purchaseAlertEmbed(e Event) *chat.Embed {
	p := e.Purchase

	fields := []chat.Field{
		{Name: "👤 Customer", Value: fmt.Sprintf("%s (ID: %s)", displayName(e), e.UserID), Inline: true},
		{Name: "🛍️ Product", Value: p.ProductName, Inline: true},
		{Name: "💰 Price", Value: fmt.Sprintf("%d pitchforks", p.PointsSpent), Inline: true},
		{Name: "📋 Product Type", Value: titleCase(p.ProductType), Inline: true},
		{Name: "📦 Purchase ID", Value: fmt.Sprintf("#%d", p.PurchaseID), Inline: true},
		{Name: "🕐 Timestamp", Value: fmt.Sprintf("<t:%d:F>", e.OccurredAt.Unix()), Inline: true},
	}

	if p.StockLeft != nil {
		stock := "Out of stock"
		if *p.StockLeft > 0 {
			stock = fmt.Sprintf("%d items", *p.StockLeft)
		}
		fields = append(fields, chat.Field{Name: "📊 Remaining Stock", Value: stock, Inline: true})
	}

	return &chat.Embed{
		Title:       "🛒 New Purchase Alert!",
		Description: "A new purchase has been made in the store!",
		Color:       chat.ColorBlue,
		Fields:      fields,
		Footer:      footerText,
	}
}

func receiptEmbed(e Event) *chat.Embed {
	p := e.Purchase

	fields := []chat.Field{
		{Name: "🛍️ Product", Value: p.ProductName, Inline: true},
		{Name: "💰 Spent", Value: fmt.Sprintf("%d pitchforks", p.PointsSpent), Inline: true},
		{Name: "📦 Status", Value: titleCase(p.Status), Inline: true},
	}
	if p.DeliveryInfo != "" {
		fields = append(fields, chat.Field{Name: "📬 Delivery", Value: truncate(p.DeliveryInfo, 1024)})
	}

	return &chat.Embed{
		Title:       "🧾 Purchase Receipt",
		Description: fmt.Sprintf("Thanks for your purchase! Order #%d.", p.PurchaseID),
		Color:       chat.ColorGreen,
		Fields:      fields,
		Footer:      footerText,
	}
}

func roleEmbed(e Event) *chat.Embed {
	role := e.Role.RoleName
	if role == "" {
		role = "<@&" + e.Role.RoleID + ">"
	}

	return &chat.Embed{
		Title:       "🎉 Role Delivered!",
		Description: fmt.Sprintf("You've been given the %s role from order #%d.", role, e.Role.PurchaseID),
		Color:       chat.ColorPurple,
		Footer:      footerText,
	}
}

var bonusTitles = map[string]string{
	"campus_photo":       "📸 Campus Photo Approved!",
	"daily_engagement":   "📚 Daily Engagement Approved!",
	"enrollment_deposit": "🎉 Enrollment Deposit Approved!",
	"verified_bonus":     "✅ Verification Bonus!",
	"onboarding_bonus":   "👋 Onboarding Bonus!",
	"birthday_gift":      "🎂 Happy Birthday!",
}

func bonusEmbed(e Event) *chat.Embed {
	b := e.Bonus
	title, ok := bonusTitles[b.Source]
	if !ok {
		title = "💰 Points Awarded!"
	}

	return &chat.Embed{
		Title:       title,
		Description: fmt.Sprintf("Nice work %s!", displayName(e)),
		Color:       chat.ColorGreen,
		Fields: []chat.Field{
			{Name: "💰 Points Earned", Value: fmt.Sprintf("+%d pitchforks", b.Amount), Inline: true},
			{Name: "💎 New Balance", Value: fmt.Sprintf("%d pitchforks", b.Balance), Inline: true},
		},
		Footer: footerText,
	}
}

func titleCase(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
