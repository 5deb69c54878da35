// Package handlers turns inbound updates into service calls and chat replies.
package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Gopher0727/GroupKeeper/internal/metrics"
	"github.com/Gopher0727/GroupKeeper/internal/pkg/calendar"
	"github.com/Gopher0727/GroupKeeper/internal/pkg/panel"
	"github.com/Gopher0727/GroupKeeper/internal/pkg/telegram"
	"github.com/Gopher0727/GroupKeeper/internal/services"
	logger "github.com/Gopher0727/GroupKeeper/middleware/log"
	"github.com/Gopher0727/GroupKeeper/utils/ratelimit"
)

// Transport is the part of the Bot API the dispatcher calls directly.
type Transport interface {
	SendMessage(ctx context.Context, msg telegram.OutgoingMessage) (*telegram.Message, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	LeaveChat(ctx context.Context, chatID int64) error
	AnswerCallbackQuery(ctx context.Context, queryID, text string, alert bool) error
}

// Deleter schedules transient replies for removal.
type Deleter interface {
	Schedule(chatID int64, messageID int, delay time.Duration)
}

type Deps struct {
	Me        telegram.User
	OwnerID   int64
	Transport Transport
	Panels    *panel.Manager
	Deletes   Deleter
	Limiter   ratelimit.Limiter
	Metrics   *metrics.Metrics
	Calendar  calendar.Converter

	Ledger    *services.SubscriptionLedger
	Access    *services.AccessResolver
	Users     *services.UserService
	Relations *services.RelationService
	Stats     *services.StatsService
	Sellers   *services.SellerService

	// ReplyTTL is how long transient replies stay visible.
	ReplyTTL time.Duration
}

type Bot struct {
	Deps

	log      *zap.Logger
	commands map[string]command
}

func NewBot(deps Deps, log *zap.Logger) *Bot {
	if deps.ReplyTTL <= 0 {
		deps.ReplyTTL = time.Minute
	}
	if deps.Calendar == nil {
		deps.Calendar = calendar.Jalali{}
	}
	b := &Bot{Deps: deps, log: log}
	b.commands = b.commandTable()
	return b
}

// Handle is the poller's entry point. Every error is recovered here; nothing
// an update does can stop the poller.
func (b *Bot) Handle(ctx context.Context, u telegram.Update) {
	kind := u.Kind()
	if b.Metrics != nil {
		b.Metrics.Updates.WithLabelValues(kind).Inc()
	}

	switch kind {
	case "membership":
		ctx = logger.WithUpdate(ctx, u.Message.Chat.ID, senderID(u.Message))
		b.onMembership(ctx, u.Message)
	case "message":
		ctx = logger.WithUpdate(ctx, u.Message.Chat.ID, senderID(u.Message))
		b.onMessage(ctx, u.Message)
	case "callback":
		var chatID int64
		if u.CallbackQuery.Message != nil {
			chatID = u.CallbackQuery.Message.Chat.ID
		}
		ctx = logger.WithUpdate(ctx, chatID, u.CallbackQuery.From.ID)
		b.onCallback(ctx, u.CallbackQuery)
	case "my_chat_member":
		ctx = logger.WithUpdate(ctx, u.MyChatMember.Chat.ID, u.MyChatMember.From.ID)
		b.onMyChatMember(ctx, u.MyChatMember)
	}
}

func senderID(m *telegram.Message) int64 {
	if m.From == nil {
		return 0
	}
	return m.From.ID
}

func member(u *telegram.User) services.Member {
	return services.Member{
		TelegramID: u.ID,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Username:   u.Username,
	}
}
