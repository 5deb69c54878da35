package handlers

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Gopher0727/GroupKeeper/internal/apperr"
	"github.com/Gopher0727/GroupKeeper/internal/models"
	"github.com/Gopher0727/GroupKeeper/internal/pkg/telegram"
	"github.com/Gopher0727/GroupKeeper/internal/utils"
	logger "github.com/Gopher0727/GroupKeeper/middleware/log"
	"github.com/Gopher0727/GroupKeeper/utils/ratelimit"
)

func (b *Bot) onMessage(ctx context.Context, msg *telegram.Message) {
	if msg.From == nil || msg.From.IsBot {
		return
	}
	if msg.Chat.Type == "private" {
		b.onPrivate(ctx, msg)
		return
	}
	if !msg.Chat.IsGroup() {
		return
	}
	log := logger.For(ctx, b.log)

	group, err := b.Ledger.EnsureGroup(ctx, msg.Chat.ID, msg.Chat.Title)
	if err != nil {
		log.Error("Failed to ensure group", zap.Error(err))
		return
	}
	user, err := b.Users.Touch(ctx, group.ChatID, member(msg.From))
	if err != nil {
		log.Error("Failed to touch user", zap.Error(err))
		return
	}

	active := b.Ledger.IsActive(group)
	if active {
		b.countReply(ctx, group, user, msg)
	}

	name, args, ok := utils.ParseCommand(msg.Text, b.Me.Username)
	if !ok {
		return
	}
	cmd, known := b.commands[name]
	if !known || cmd.scope == inPrivate {
		return
	}
	// Only dispatch is rate limited; bookkeeping above sees every message.
	if !b.allow(ctx, msg) {
		return
	}
	req := &request{msg: msg, group: group, user: user, args: args}

	if !active {
		privileged, err := b.Access.IsPrivileged(ctx, group.ChatID, user.TelegramID)
		if err != nil {
			b.fail(ctx, name, req, err)
			return
		}
		if !privileged {
			b.countCommand(name, "expired")
			b.reply(ctx, msg, apperr.UserMessage(apperr.ErrExpired))
			return
		}
	}
	b.run(ctx, name, cmd, req)
}

func (b *Bot) onPrivate(ctx context.Context, msg *telegram.Message) {
	name, args, ok := utils.ParseCommand(msg.Text, b.Me.Username)
	if !ok {
		return
	}
	cmd, known := b.commands[name]
	if !known || cmd.scope == inGroup {
		b.reply(ctx, msg, "ℹ️ Add me to a group and send /menu there.")
		return
	}
	req := &request{msg: msg, args: args}
	if cmd.groupArg {
		if err := b.bindGroup(ctx, req); err != nil {
			b.fail(ctx, name, req, err)
			return
		}
	}
	b.run(ctx, name, cmd, req)
}

// allow applies per-member flood control to commands. Limiter errors fail open or closed
// according to the limiter's own policy.
func (b *Bot) allow(ctx context.Context, msg *telegram.Message) bool {
	if b.Limiter == nil {
		return true
	}
	ok, err := b.Limiter.Allow(ctx, ratelimit.FloodKey(msg.Chat.ID, msg.From.ID))
	if err != nil {
		logger.For(ctx, b.log).Warn("Flood check failed", zap.Error(err))
	}
	if !ok && err == nil && b.Metrics != nil {
		b.Metrics.RateLimited.Inc()
	}
	return ok
}

// countReply credits the author of the replied-to message.
func (b *Bot) countReply(ctx context.Context, group *models.Group, replier *models.User, msg *telegram.Message) {
	parent := msg.ReplyToMessage
	if parent == nil || parent.From == nil || parent.From.IsBot || parent.From.ID == msg.From.ID {
		return
	}
	log := logger.For(ctx, b.log)
	target, err := b.Users.Touch(ctx, group.ChatID, member(parent.From))
	if err != nil {
		log.Warn("Failed to touch reply target", zap.Error(err))
		return
	}
	if err := b.Stats.RecordReply(ctx, group, replier, target); err != nil {
		log.Warn("Failed to record reply", zap.Error(err))
	}
}

func (b *Bot) onMembership(ctx context.Context, msg *telegram.Message) {
	if !msg.Chat.IsGroup() {
		return
	}
	log := logger.For(ctx, b.log)

	if msg.LeftChatMember != nil {
		log.Debug("Member left", zap.Int64("telegram_id", msg.LeftChatMember.ID))
		return
	}

	group, err := b.Ledger.EnsureGroup(ctx, msg.Chat.ID, msg.Chat.Title)
	if err != nil {
		log.Error("Failed to ensure group", zap.Error(err))
		return
	}
	for i := range msg.NewChatMembers {
		u := &msg.NewChatMembers[i]
		if u.IsBot {
			continue
		}
		if _, err := b.Users.Touch(ctx, group.ChatID, member(u)); err != nil {
			log.Warn("Failed to register new member", zap.Int64("telegram_id", u.ID), zap.Error(err))
		}
	}
}

func (b *Bot) onMyChatMember(ctx context.Context, upd *telegram.ChatMemberUpdated) {
	if !upd.Chat.IsGroup() {
		return
	}
	log := logger.For(ctx, b.log)
	switch upd.NewChatMember.Status {
	case "member", "administrator":
		if _, err := b.Ledger.EnsureGroup(ctx, upd.Chat.ID, upd.Chat.Title); err != nil {
			log.Error("Failed to ensure group", zap.Error(err))
		}
	case "left", "kicked":
		log.Info("Removed from group", zap.String("status", upd.NewChatMember.Status))
	}
}

// reply answers msg. Replies in groups are transient and scheduled for
// deletion; private replies stay.
func (b *Bot) reply(ctx context.Context, msg *telegram.Message, text string) {
	sent, err := b.Transport.SendMessage(ctx, telegram.OutgoingMessage{
		ChatID:           msg.Chat.ID,
		Text:             text,
		ReplyToMessageID: msg.MessageID,
	})
	if err != nil {
		logger.For(ctx, b.log).Warn("Failed to send reply", zap.Error(err))
		return
	}
	if msg.Chat.IsGroup() && b.Deletes != nil {
		b.Deletes.Schedule(sent.Chat.ID, sent.MessageID, b.ReplyTTL)
	}
}

func (b *Bot) fail(ctx context.Context, name string, req *request, err error) {
	log := logger.For(ctx, b.log).With(zap.String("command", name))
	outcome := "rejected"
	switch {
	case errors.Is(err, apperr.ErrPermissionDenied):
		outcome = "denied"
	case errors.Is(err, apperr.ErrInvalidInput), errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrConflict):
	default:
		outcome = "error"
		log.Error("Command failed", zap.Error(err))
	}
	if outcome != "error" {
		log.Debug("Command rejected", zap.Error(err))
	}
	b.countCommand(name, outcome)
	b.reply(ctx, req.msg, apperr.UserMessage(err))
}

func (b *Bot) countCommand(name, outcome string) {
	if b.Metrics != nil {
		b.Metrics.Commands.WithLabelValues(name, outcome).Inc()
	}
}

func isNotFound(err error) bool { return errors.Is(err, apperr.ErrNotFound) }
