package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Gopher0727/GroupKeeper/internal/apperr"
	"github.com/Gopher0727/GroupKeeper/internal/models"
	"github.com/Gopher0727/GroupKeeper/internal/pkg/panel"
	"github.com/Gopher0727/GroupKeeper/internal/pkg/telegram"
	logger "github.com/Gopher0727/GroupKeeper/middleware/log"
)

const (
	menuTitle    = "📋 Menu"
	menuProfile  = "menu:profile"
	menuRelation = "menu:relation"
	menuTop      = "menu:top"
	menuStatus   = "menu:status"

	notYours    = "⛔ This panel belongs to someone else."
	clockLayout = "2006-01-02 15:04"
)

func rootRows() [][]panel.Button {
	return [][]panel.Button{
		{{Text: "👤 Profile", CallbackData: menuProfile}, {Text: "💞 Relationship", CallbackData: menuRelation}},
		{{Text: "🏆 Today's top", CallbackData: menuTop}, {Text: "📅 Subscription", CallbackData: menuStatus}},
	}
}

func (b *Bot) onCallback(ctx context.Context, q *telegram.CallbackQuery) {
	log := logger.For(ctx, b.log)
	answer := func(text string, alert bool) {
		if err := b.Transport.AnswerCallbackQuery(ctx, q.ID, text, alert); err != nil {
			log.Warn("Failed to answer callback", zap.Error(err))
		}
	}
	if q.Message == nil || !q.Message.Chat.IsGroup() {
		answer("", false)
		return
	}

	ref := panel.Ref{ChatID: q.Message.Chat.ID, MessageID: q.Message.MessageID}
	if !b.Panels.Authorize(ref, q.From.ID) {
		answer(notYours, true)
		return
	}

	switch q.Data {
	case panel.CallbackClose:
		b.Panels.Close(ctx, ref)
		answer("", false)
		return
	case panel.CallbackBack:
		b.Panels.Back(ctx, ref)
		answer("", false)
		return
	}
	if !strings.HasPrefix(q.Data, "menu:") {
		answer("", false)
		return
	}

	text, err := b.menuView(ctx, q)
	if err != nil {
		log.Debug("Menu view failed", zap.String("data", q.Data), zap.Error(err))
		answer(apperr.UserMessage(err), true)
		return
	}
	if _, err := b.Panels.Open(ctx, ref.ChatID, text, nil, false, q.From.ID); err != nil {
		log.Warn("Failed to open panel", zap.Error(err))
		answer(apperr.UserMessage(err), true)
		return
	}
	answer("", false)
}

// menuView renders the sub-panel behind one root menu button. Expired groups
// only show their subscription status to non-privileged members.
func (b *Bot) menuView(ctx context.Context, q *telegram.CallbackQuery) (string, error) {
	group, err := b.Ledger.EnsureGroup(ctx, q.Message.Chat.ID, q.Message.Chat.Title)
	if err != nil {
		return "", err
	}
	if q.Data == menuStatus {
		return b.statusText(group), nil
	}
	if !b.Ledger.IsActive(group) {
		privileged, err := b.Access.IsPrivileged(ctx, group.ChatID, q.From.ID)
		if err != nil {
			return "", err
		}
		if !privileged {
			return "", apperr.ErrExpired
		}
	}

	user, err := b.Users.Touch(ctx, group.ChatID, member(&q.From))
	if err != nil {
		return "", err
	}
	switch q.Data {
	case menuProfile:
		return b.profileText(ctx, user)
	case menuRelation:
		return b.relationText(ctx, user)
	case menuTop:
		return b.topText(ctx, group)
	}
	return "", apperr.Invalid("unknown menu entry %q", q.Data)
}

func (b *Bot) statusText(g *models.Group) string {
	switch {
	case g.ExpiresAt == nil:
		return "⌛ This group has no subscription."
	case b.Ledger.IsActive(g):
		return "📅 Subscription active until " + g.ExpiresAt.In(g.Location()).Format(clockLayout)
	default:
		return "⌛ Subscription expired on " + g.ExpiresAt.In(g.Location()).Format(clockLayout)
	}
}

func (b *Bot) topText(ctx context.Context, g *models.Group) (string, error) {
	ranks, err := b.Stats.TopToday(ctx, g, 3)
	if err != nil {
		return "", err
	}
	if len(ranks) == 0 {
		return "🏆 No replies counted today yet.", nil
	}
	var sb strings.Builder
	sb.WriteString("🏆 Today so far")
	for i, r := range ranks {
		fmt.Fprintf(&sb, "\n%d. %s: %d", i+1, r.User.DisplayName(), r.Count)
	}
	return sb.String(), nil
}

func (b *Bot) profileText(ctx context.Context, u *models.User) (string, error) {
	admirers, err := b.Relations.Admirers(ctx, u)
	if err != nil {
		return "", err
	}
	birthday := "not set"
	if u.Birthdate != nil {
		birthday = b.formatDate(*u.Birthdate)
	}
	return fmt.Sprintf("👤 %s\nGender: %s\nBirthday: %s\nSecret admirers: %d",
		u.DisplayName(), u.Gender, birthday, len(admirers)), nil
}

func (b *Bot) relationText(ctx context.Context, u *models.User) (string, error) {
	rel, err := b.Relations.Relations.FindRelationship(ctx, u.GroupID, u.ID)
	if err != nil {
		if isNotFound(err) {
			return "💔 You are single.", nil
		}
		return "", err
	}
	partner, err := b.Users.Users.GetByID(ctx, rel.Partner(u.ID))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("💞 Together with %s since %s", partner.DisplayName(), b.formatDate(rel.StartedOn)), nil
}

// formatDate shows a stored Gregorian date next to its secondary-calendar
// rendering.
func (b *Bot) formatDate(d time.Time) string {
	greg := d.Format(time.DateOnly)
	alt, err := b.Calendar.FromGregorian(d)
	if err != nil {
		return greg
	}
	return fmt.Sprintf("%s (%s)", greg, alt)
}
