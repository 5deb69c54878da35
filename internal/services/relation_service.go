package services

import (
	"context"
	"time"

	"github.com/Gopher0727/GroupKeeper/internal/apperr"
	"github.com/Gopher0727/GroupKeeper/internal/models"
)

type RelationService struct {
	Relations RelationStore
	Users     UserStore

	now func() time.Time
}

func NewRelationService(relations RelationStore, users UserStore) *RelationService {
	return &RelationService{Relations: relations, Users: users, now: time.Now}
}

// Marry pairs a and b. Both must be members of the same group and neither may
// already be in a relationship there.
func (s *RelationService) Marry(ctx context.Context, a, b *models.User, loc *time.Location) (*models.Relationship, error) {
	if a.ID == b.ID {
		return nil, apperr.WithReason(apperr.ErrInvalidInput, "💍 You cannot marry yourself.")
	}
	if a.GroupID != b.GroupID {
		return nil, apperr.Invalid("users belong to different groups")
	}
	for _, u := range []*models.User{a, b} {
		_, err := s.Relations.FindRelationship(ctx, u.GroupID, u.ID)
		if err == nil {
			return nil, apperr.WithReason(apperr.ErrConflict, "💔 "+u.DisplayName()+" is already in a relationship.")
		}
		if !isNotFound(err) {
			return nil, err
		}
	}

	rel := &models.Relationship{
		GroupID:   a.GroupID,
		UserAID:   a.ID,
		UserBID:   b.ID,
		StartedOn: models.DateOf(s.now(), loc),
	}
	if err := s.Relations.CreateRelationship(ctx, rel); err != nil {
		return nil, err
	}
	return rel, nil
}

// Divorce ends u's relationship and returns the former partner's row id.
func (s *RelationService) Divorce(ctx context.Context, u *models.User) (uint, error) {
	rel, err := s.Relations.FindRelationship(ctx, u.GroupID, u.ID)
	if err != nil {
		return 0, err
	}
	if err := s.Relations.DeleteRelationship(ctx, rel.ID); err != nil {
		return 0, err
	}
	return rel.Partner(u.ID), nil
}

// Partner returns u's partner, or ErrNotFound.
func (s *RelationService) Partner(ctx context.Context, u *models.User) (*models.User, error) {
	rel, err := s.Relations.FindRelationship(ctx, u.GroupID, u.ID)
	if err != nil {
		return nil, err
	}
	return s.Users.GetByID(ctx, rel.Partner(u.ID))
}

// Crush records from's one-way crush on to. Repeating it reports ErrConflict.
func (s *RelationService) Crush(ctx context.Context, from, to *models.User) error {
	if from.ID == to.ID {
		return apperr.WithReason(apperr.ErrInvalidInput, "🙃 A crush on yourself does not count.")
	}
	if from.GroupID != to.GroupID {
		return apperr.Invalid("users belong to different groups")
	}
	return s.Relations.CreateCrush(ctx, &models.Crush{GroupID: from.GroupID, FromUserID: from.ID, ToUserID: to.ID})
}

func (s *RelationService) Uncrush(ctx context.Context, from, to *models.User) error {
	return s.Relations.DeleteCrush(ctx, from.GroupID, from.ID, to.ID)
}

// Admirers lists the members with a crush on u.
func (s *RelationService) Admirers(ctx context.Context, u *models.User) ([]models.User, error) {
	crushes, err := s.Relations.ListCrushesOn(ctx, u.GroupID, u.ID)
	if err != nil {
		return nil, err
	}
	users := make([]models.User, 0, len(crushes))
	for _, c := range crushes {
		admirer, err := s.Users.GetByID(ctx, c.FromUserID)
		if err != nil {
			return nil, err
		}
		users = append(users, *admirer)
	}
	return users, nil
}
