package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/Gopher0727/GroupKeeper/internal/models"
)

// RelationRepository stores relationships and crushes. Duplicate rows are
// rejected by unique indexes and surface as apperr.ErrConflict.
type RelationRepository struct {
	db *gorm.DB
}

func NewRelationRepository(db *gorm.DB) *RelationRepository {
	return &RelationRepository{db: db}
}

func (r *RelationRepository) CreateRelationship(ctx context.Context, rel *models.Relationship) error {
	rel.UserAID, rel.UserBID = models.CanonicalPair(rel.UserAID, rel.UserBID)
	return translate("create relationship", r.db.WithContext(ctx).Create(rel).Error)
}

// FindRelationship returns the relationship userID takes part in.
func (r *RelationRepository) FindRelationship(ctx context.Context, groupID int64, userID uint) (*models.Relationship, error) {
	var rel models.Relationship
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND (user_a_id = ? OR user_b_id = ?)", groupID, userID, userID).
		First(&rel).Error
	if err != nil {
		return nil, translate("find relationship", err)
	}
	return &rel, nil
}

func (r *RelationRepository) DeleteRelationship(ctx context.Context, id uint) error {
	return translate("delete relationship", r.db.WithContext(ctx).Delete(&models.Relationship{}, id).Error)
}

func (r *RelationRepository) ListRelationships(ctx context.Context, groupID int64) ([]models.Relationship, error) {
	var rels []models.Relationship
	err := r.db.WithContext(ctx).Where("group_id = ?", groupID).Order("id").Find(&rels).Error
	return rels, translate("list relationships", err)
}

func (r *RelationRepository) CreateCrush(ctx context.Context, crush *models.Crush) error {
	return translate("create crush", r.db.WithContext(ctx).Create(crush).Error)
}

func (r *RelationRepository) DeleteCrush(ctx context.Context, groupID int64, from, to uint) error {
	res := r.db.WithContext(ctx).
		Where("group_id = ? AND from_user_id = ? AND to_user_id = ?", groupID, from, to).
		Delete(&models.Crush{})
	if res.Error == nil && res.RowsAffected == 0 {
		return translate("delete crush", gorm.ErrRecordNotFound)
	}
	return translate("delete crush", res.Error)
}

func (r *RelationRepository) ListCrushesOn(ctx context.Context, groupID int64, to uint) ([]models.Crush, error) {
	var crushes []models.Crush
	err := r.db.WithContext(ctx).Where("group_id = ? AND to_user_id = ?", groupID, to).Find(&crushes).Error
	return crushes, translate("list crushes", err)
}
