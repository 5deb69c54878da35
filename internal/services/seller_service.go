package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/Gopher0727/GroupKeeper/internal/models"
	logger "github.com/Gopher0727/GroupKeeper/middleware/log"
)

// SellerService manages the global seller roster. Callers enforce that only
// the owner reaches it.
type SellerService struct {
	Sellers SellerStore
	Groups  GroupStore

	log *zap.Logger
}

func NewSellerService(sellers SellerStore, groups GroupStore, log *zap.Logger) *SellerService {
	return &SellerService{Sellers: sellers, Groups: groups, log: log}
}

// Add registers or reactivates a seller.
func (s *SellerService) Add(ctx context.Context, telegramID, addedBy int64) error {
	if err := s.Sellers.Upsert(ctx, &models.Seller{TelegramID: telegramID, IsActive: true, AddedBy: addedBy}); err != nil {
		return err
	}
	logger.For(ctx, s.log).Info("Seller added", zap.Int64("seller_id", telegramID))
	return nil
}

func (s *SellerService) Deactivate(ctx context.Context, telegramID int64) error {
	if err := s.Sellers.SetActive(ctx, telegramID, false); err != nil {
		return err
	}
	logger.For(ctx, s.log).Info("Seller deactivated", zap.Int64("seller_id", telegramID))
	return nil
}

func (s *SellerService) List(ctx context.Context) ([]models.Seller, error) {
	return s.Sellers.List(ctx)
}

// Stats aggregates the seller's extend actions from the billing log.
func (s *SellerService) Stats(ctx context.Context, telegramID int64) (models.SellerStats, error) {
	if _, err := s.Sellers.Get(ctx, telegramID); err != nil {
		return models.SellerStats{}, err
	}
	return s.Groups.SellerStats(ctx, telegramID)
}
