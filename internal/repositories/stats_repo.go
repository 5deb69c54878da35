package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gopher0727/GroupKeeper/internal/models"
)

// StatsRepository stores daily reply counters and the ship history.
type StatsRepository struct {
	db *gorm.DB
}

func NewStatsRepository(db *gorm.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// IncrementReply bumps the (group, day, user) counter with a single upsert.
func (r *StatsRepository) IncrementReply(ctx context.Context, groupID int64, day time.Time, userID uint) error {
	stat := models.ReplyStatDaily{GroupID: groupID, StatDate: day, UserID: userID, Count: 1}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "group_id"}, {Name: "stat_date"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{"count": gorm.Expr("reply_stats_daily.count + 1")}),
	}).Create(&stat).Error
	return translate("increment reply", err)
}

func (r *StatsRepository) TopRepliers(ctx context.Context, groupID int64, day time.Time, limit int) ([]models.ReplyRank, error) {
	var rows []struct {
		models.User
		ReplyCount int
	}
	err := r.db.WithContext(ctx).Table("reply_stats_daily AS s").
		Select("users.*, s.count AS reply_count").
		Joins("JOIN users ON users.id = s.user_id").
		Where("s.group_id = ? AND s.stat_date = ? AND s.count > 0", groupID, day).
		Order("s.count DESC, users.id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, translate("top repliers", err)
	}
	ranks := make([]models.ReplyRank, 0, len(rows))
	for _, row := range rows {
		ranks = append(ranks, models.ReplyRank{User: row.User, Count: row.ReplyCount})
	}
	return ranks, nil
}

func (r *StatsRepository) CreateShip(ctx context.Context, ship *models.ShipHistory) error {
	return translate("create ship", r.db.WithContext(ctx).Create(ship).Error)
}

func (r *StatsRepository) GetShip(ctx context.Context, groupID int64, day time.Time) (*models.ShipHistory, error) {
	var ship models.ShipHistory
	err := r.db.WithContext(ctx).Where("group_id = ? AND ship_date = ?", groupID, day).First(&ship).Error
	if err != nil {
		return nil, translate("get ship", err)
	}
	return &ship, nil
}
