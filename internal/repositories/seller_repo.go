package repositories

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gopher0727/GroupKeeper/internal/models"
)

type SellerRepository struct {
	db *gorm.DB
}

func NewSellerRepository(db *gorm.DB) *SellerRepository {
	return &SellerRepository{db: db}
}

func (r *SellerRepository) Get(ctx context.Context, telegramID int64) (*models.Seller, error) {
	var seller models.Seller
	if err := r.db.WithContext(ctx).First(&seller, "telegram_id = ?", telegramID).Error; err != nil {
		return nil, translate("get seller", err)
	}
	return &seller, nil
}

// Upsert registers the seller, re-activating an existing row.
func (r *SellerRepository) Upsert(ctx context.Context, seller *models.Seller) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "telegram_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_active", "updated_at"}),
	}).Create(seller).Error
	return translate("upsert seller", err)
}

func (r *SellerRepository) SetActive(ctx context.Context, telegramID int64, active bool) error {
	res := r.db.WithContext(ctx).Model(&models.Seller{}).
		Where("telegram_id = ?", telegramID).
		Update("is_active", active)
	if res.Error == nil && res.RowsAffected == 0 {
		return translate("set seller active", gorm.ErrRecordNotFound)
	}
	return translate("set seller active", res.Error)
}

func (r *SellerRepository) List(ctx context.Context) ([]models.Seller, error) {
	var sellers []models.Seller
	err := r.db.WithContext(ctx).Order("telegram_id").Find(&sellers).Error
	return sellers, translate("list sellers", err)
}
