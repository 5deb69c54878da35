package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Gopher0727/GroupKeeper/internal/apperr"
	"github.com/Gopher0727/GroupKeeper/internal/models"
	logger "github.com/Gopher0727/GroupKeeper/middleware/log"
)

const day = 24 * time.Hour

// LedgerConfig carries the process-wide values a new group is created with.
type LedgerConfig struct {
	OwnerID         int64
	DefaultTimezone string
	TrialDays       int
}

// SubscriptionLedger owns a group's active/expired state and the billing log.
type SubscriptionLedger struct {
	Groups    GroupStore
	Notifier  Notifier
	Publisher BillingPublisher

	cfg LedgerConfig
	log *zap.Logger
	now func() time.Time
}

func NewSubscriptionLedger(groups GroupStore, notifier Notifier, publisher BillingPublisher, cfg LedgerConfig, log *zap.Logger) *SubscriptionLedger {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &SubscriptionLedger{
		Groups:    groups,
		Notifier:  notifier,
		Publisher: publisher,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// NextExpiry is the extension rule: time bought for an expired group counts
// from now, time bought for an active group stacks onto what remains.
func NextExpiry(current *time.Time, now time.Time, days int) time.Time {
	base := now
	if current != nil && current.After(now) {
		base = *current
	}
	return base.Add(time.Duration(days) * day)
}

// EnsureGroup returns the group for chatID, creating it with a trial window
// on first contact. Concurrent first contacts create exactly one row; only the
// creator logs the trial and notifies the owner.
func (l *SubscriptionLedger) EnsureGroup(ctx context.Context, chatID int64, title string) (*models.Group, error) {
	group, err := l.Groups.Get(ctx, chatID)
	if err == nil {
		if title != "" && group.Title != title {
			if err := l.Groups.UpdateTitle(ctx, chatID, title); err != nil {
				logger.For(ctx, l.log).Warn("Failed to refresh group title", zap.Error(err))
			} else {
				group.Title = title
			}
		}
		return group, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	now := l.now()
	expires := now.Add(time.Duration(l.cfg.TrialDays) * day)
	group = &models.Group{
		ChatID:         chatID,
		Title:          title,
		Timezone:       l.cfg.DefaultTimezone,
		TrialStartedAt: now,
		ExpiresAt:      &expires,
	}
	trial := &models.SubscriptionLog{Action: models.ActionTrialStart, Days: l.cfg.TrialDays}

	created, err := l.Groups.CreateIfAbsent(ctx, group, trial)
	if err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	if !created {
		return l.Groups.Get(ctx, chatID)
	}

	log := logger.For(ctx, l.log)
	log.Info("Group created with trial", zap.Int64("chat_id", chatID), zap.Time("expires_at", expires))

	if err := l.Notifier.Notify(ctx, l.cfg.OwnerID, newGroupNotice(group)); err != nil {
		log.Warn("Failed to notify owner about new group", zap.Error(err))
	}
	l.publish(ctx, BillingEvent{
		ChatID:    chatID,
		Action:    models.ActionTrialStart,
		Days:      l.cfg.TrialDays,
		ExpiresAt: expires,
		At:        now,
	})
	return group, nil
}

// Extend adds days to chatID's subscription and returns the new expiry.
// actorID is nil for automated paths; the log row is written either way.
func (l *SubscriptionLedger) Extend(ctx context.Context, chatID int64, actorID *int64, days int) (time.Time, error) {
	if days <= 0 {
		return time.Time{}, apperr.Invalid("days must be positive, got %d", days)
	}
	now := l.now()
	entry := &models.SubscriptionLog{Action: models.ActionExtend, ActorID: actorID, Days: days}
	expiry, err := l.Groups.UpdateExpiry(ctx, chatID, func(current *time.Time) time.Time {
		return NextExpiry(current, now, days)
	}, entry)
	if err != nil {
		return time.Time{}, err
	}

	logger.For(ctx, l.log).Info("Subscription extended",
		zap.Int64("chat_id", chatID),
		zap.Int("days", days),
		zap.Time("expires_at", expiry),
	)
	l.publish(ctx, BillingEvent{
		ChatID:    chatID,
		Action:    models.ActionExtend,
		ActorID:   actorID,
		Days:      days,
		ExpiresAt: expiry,
		At:        now,
	})
	return expiry, nil
}

// Group looks up a known group without creating it.
func (l *SubscriptionLedger) Group(ctx context.Context, chatID int64) (*models.Group, error) {
	return l.Groups.Get(ctx, chatID)
}

func (l *SubscriptionLedger) IsActive(group *models.Group) bool {
	return group.IsActive(l.now())
}

// Wipe deletes every member and admin row of the group. The group row and
// its billing log survive.
func (l *SubscriptionLedger) Wipe(ctx context.Context, chatID int64) error {
	if err := l.Groups.Wipe(ctx, chatID); err != nil {
		return err
	}
	logger.For(ctx, l.log).Info("Group wiped", zap.Int64("chat_id", chatID))
	return nil
}

// ToggleBlockedSeller flips sellerID in the group's blocked list and reports
// whether the seller is blocked afterwards.
func (l *SubscriptionLedger) ToggleBlockedSeller(ctx context.Context, chatID, sellerID int64) (bool, error) {
	var blocked bool
	_, err := l.Groups.UpdateSettings(ctx, chatID, func(s *models.GroupSettings) {
		blocked = s.ToggleBlocked(sellerID)
	})
	if err != nil {
		return false, err
	}
	return blocked, nil
}

func (l *SubscriptionLedger) publish(ctx context.Context, event BillingEvent) {
	if err := l.Publisher.PublishBilling(ctx, event); err != nil {
		logger.For(ctx, l.log).Warn("Failed to publish billing event",
			zap.String("action", string(event.Action)),
			zap.Error(err),
		)
	}
}
