package repositories

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gopher0727/GroupKeeper/internal/models"
)

// GroupRepository stores groups and their billing log.
type GroupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// CreateIfAbsent inserts the group unless its chat id already exists. The
// trial log row is written in the same transaction, only when the insert won.
func (r *GroupRepository) CreateIfAbsent(ctx context.Context, group *models.Group, trial *models.SubscriptionLog) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(group)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true
		if trial != nil {
			trial.GroupID = group.ChatID
			return tx.Create(trial).Error
		}
		return nil
	})
	return created, translate("create group", err)
}

func (r *GroupRepository) Get(ctx context.Context, chatID int64) (*models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).First(&group, "chat_id = ?", chatID).Error; err != nil {
		return nil, translate("get group", err)
	}
	return &group, nil
}

func (r *GroupRepository) List(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.WithContext(ctx).Order("chat_id").Find(&groups).Error
	return groups, translate("list groups", err)
}

func (r *GroupRepository) UpdateTitle(ctx context.Context, chatID int64, title string) error {
	err := r.db.WithContext(ctx).Model(&models.Group{}).
		Where("chat_id = ?", chatID).
		Update("title", title).Error
	return translate("update group title", err)
}

// UpdateExpiry locks the group row, computes the new expiry from the current
// one and writes it together with the audit entry, so concurrent extensions
// of one group serialize instead of losing an update.
func (r *GroupRepository) UpdateExpiry(ctx context.Context, chatID int64, next func(current *time.Time) time.Time, entry *models.SubscriptionLog) (time.Time, error) {
	var expiry time.Time
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group models.Group
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&group, "chat_id = ?", chatID).Error; err != nil {
			return err
		}
		expiry = next(group.ExpiresAt)
		if err := tx.Model(&models.Group{}).Where("chat_id = ?", chatID).Update("expires_at", expiry).Error; err != nil {
			return err
		}
		if entry != nil {
			entry.GroupID = chatID
			return tx.Create(entry).Error
		}
		return nil
	})
	if err != nil {
		return time.Time{}, translate("update expiry", err)
	}
	return expiry, nil
}

// UpdateSettings applies mutate to the settings blob under a row lock.
func (r *GroupRepository) UpdateSettings(ctx context.Context, chatID int64, mutate func(*models.GroupSettings)) (models.GroupSettings, error) {
	var settings models.GroupSettings
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group models.Group
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&group, "chat_id = ?", chatID).Error; err != nil {
			return err
		}
		settings = group.Settings.Data()
		mutate(&settings)
		return tx.Model(&models.Group{}).Where("chat_id = ?", chatID).Update("settings", datatypes.NewJSONType(settings)).Error
	})
	return settings, translate("update settings", err)
}

func (r *GroupRepository) ListLogs(ctx context.Context, chatID int64) ([]models.SubscriptionLog, error) {
	var logs []models.SubscriptionLog
	err := r.db.WithContext(ctx).Where("group_id = ?", chatID).Order("id").Find(&logs).Error
	return logs, translate("list subscription logs", err)
}

func (r *GroupRepository) SellerStats(ctx context.Context, sellerID int64) (models.SellerStats, error) {
	var row struct {
		Sales      int64
		TotalDays  int64
		GroupCount int64
	}
	err := r.db.WithContext(ctx).Model(&models.SubscriptionLog{}).
		Select("COUNT(*) AS sales, COALESCE(SUM(days), 0) AS total_days, COUNT(DISTINCT group_id) AS group_count").
		Where("action = ? AND actor_id = ?", models.ActionExtend, sellerID).
		Scan(&row).Error
	if err != nil {
		return models.SellerStats{}, translate("seller stats", err)
	}
	return models.SellerStats{SellerID: sellerID, Sales: row.Sales, TotalDays: row.TotalDays, Groups: row.GroupCount}, nil
}

// Wipe removes every member and admin of the group. The group row and its
// billing log are kept.
func (r *GroupRepository) Wipe(ctx context.Context, chatID int64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&models.Crush{}, &models.Relationship{}, &models.ReplyStatDaily{}, &models.User{}, &models.GroupAdmin{}} {
			if err := tx.Where("group_id = ?", chatID).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return translate("wipe group", err)
}
