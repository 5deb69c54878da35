package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gopher0727/GroupKeeper/internal/apperr"
	"github.com/Gopher0727/GroupKeeper/internal/models"
)

// UserRepository stores per-group members and admin grants.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetOrCreate returns the member identified by (GroupID, TelegramID), inserting
// user when absent. Concurrent first contacts resolve through the unique index.
func (r *UserRepository) GetOrCreate(ctx context.Context, user *models.User) (*models.User, bool, error) {
	db := r.db.WithContext(ctx)
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(user)
	if res.Error != nil {
		return nil, false, translate("create user", res.Error)
	}
	if res.RowsAffected == 1 {
		return user, true, nil
	}
	existing, err := r.Get(ctx, user.GroupID, user.TelegramID)
	return existing, false, err
}

func (r *UserRepository) Get(ctx context.Context, groupID, telegramID int64) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND telegram_id = ?", groupID, telegramID).
		First(&user).Error
	if err != nil {
		return nil, translate("get user", err)
	}
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate("get user by id", err)
	}
	return &user, nil
}

func (r *UserRepository) ListByGroup(ctx context.Context, groupID int64) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Where("group_id = ?", groupID).Order("id").Find(&users).Error
	return users, translate("list users", err)
}

func (r *UserRepository) UpdateNames(ctx context.Context, id uint, first, last, username string) error {
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]any{
		"first_name": first,
		"last_name":  last,
		"username":   username,
	}).Error
	return translate("update user names", err)
}

func (r *UserRepository) SetGender(ctx context.Context, id uint, gender models.Gender) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("gender", gender)
	if res.Error == nil && res.RowsAffected == 0 {
		return translate("set gender", gorm.ErrRecordNotFound)
	}
	return translate("set gender", res.Error)
}

func (r *UserRepository) SetBirthdate(ctx context.Context, id uint, birthdate *time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("birthdate", birthdate)
	if res.Error == nil && res.RowsAffected == 0 {
		return translate("set birthdate", gorm.ErrRecordNotFound)
	}
	return translate("set birthdate", res.Error)
}

// Erase deletes the member and every crush, relationship and reply stat that
// references it. Rows of other members are untouched.
func (r *UserRepository) Erase(ctx context.Context, groupID, telegramID int64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("group_id = ? AND telegram_id = ?", groupID, telegramID).First(&user).Error; err != nil {
			return err
		}
		if err := tx.Where("from_user_id = ? OR to_user_id = ?", user.ID, user.ID).Delete(&models.Crush{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_a_id = ? OR user_b_id = ?", user.ID, user.ID).Delete(&models.Relationship{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.ReplyStatDaily{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	return translate("erase user", err)
}

func (r *UserRepository) IsAdmin(ctx context.Context, groupID, telegramID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.GroupAdmin{}).
		Where("group_id = ? AND telegram_id = ?", groupID, telegramID).
		Count(&count).Error
	return count > 0, translate("check admin", err)
}

func (r *UserRepository) GrantAdmin(ctx context.Context, admin *models.GroupAdmin) error {
	return translate("grant admin", r.db.WithContext(ctx).Create(admin).Error)
}

func (r *UserRepository) RevokeAdmin(ctx context.Context, groupID, telegramID int64) error {
	res := r.db.WithContext(ctx).
		Where("group_id = ? AND telegram_id = ?", groupID, telegramID).
		Delete(&models.GroupAdmin{})
	if res.Error != nil {
		return translate("revoke admin", res.Error)
	}
	if res.RowsAffected == 0 {
		return translate("revoke admin", apperr.ErrNotFound)
	}
	return nil
}
