package services

import (
	"context"
	"time"

	"github.com/Gopher0727/GroupKeeper/internal/models"
)

type StatsService struct {
	Stats StatsStore

	now func() time.Time
}

func NewStatsService(stats StatsStore) *StatsService {
	return &StatsService{Stats: stats, now: time.Now}
}

// RecordReply counts one reply to target's message on today's date in the
// group's timezone. Self-replies are ignored; the caller filters bots.
func (s *StatsService) RecordReply(ctx context.Context, group *models.Group, replier, target *models.User) error {
	if replier.ID == target.ID {
		return nil
	}
	today := models.DateOf(s.now(), group.Location())
	return s.Stats.IncrementReply(ctx, group.ChatID, today, target.ID)
}

// TopToday returns the day's ranking in the group's timezone.
func (s *StatsService) TopToday(ctx context.Context, group *models.Group, limit int) ([]models.ReplyRank, error) {
	return s.Stats.TopRepliers(ctx, group.ChatID, models.DateOf(s.now(), group.Location()), limit)
}
