package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Gopher0727/GroupKeeper/internal/apperr"
	"github.com/Gopher0727/GroupKeeper/internal/models"
	logger "github.com/Gopher0727/GroupKeeper/middleware/log"
)

// Member is the platform identity of someone seen in a chat.
type Member struct {
	TelegramID int64
	FirstName  string
	LastName   string
	Username   string
}

type UserService struct {
	Users UserStore

	log *zap.Logger
}

func NewUserService(users UserStore, log *zap.Logger) *UserService {
	return &UserService{Users: users, log: log}
}

// Touch returns the member's row in chatID, creating it on first sight and
// refreshing the display-name fields when they changed.
func (s *UserService) Touch(ctx context.Context, chatID int64, m Member) (*models.User, error) {
	user, created, err := s.Users.GetOrCreate(ctx, &models.User{
		GroupID:    chatID,
		TelegramID: m.TelegramID,
		FirstName:  m.FirstName,
		LastName:   m.LastName,
		Username:   m.Username,
		Gender:     models.GenderUnknown,
	})
	if err != nil {
		return nil, err
	}
	if created || user.SameNames(m.FirstName, m.LastName, m.Username) {
		return user, nil
	}
	if err := s.Users.UpdateNames(ctx, user.ID, m.FirstName, m.LastName, m.Username); err != nil {
		logger.For(ctx, s.log).Warn("Failed to refresh user names", zap.Uint("user_id", user.ID), zap.Error(err))
		return user, nil
	}
	user.FirstName, user.LastName, user.Username = m.FirstName, m.LastName, m.Username
	return user, nil
}

func (s *UserService) SetGender(ctx context.Context, user *models.User, gender models.Gender) error {
	if err := s.Users.SetGender(ctx, user.ID, gender); err != nil {
		return err
	}
	user.Gender = gender
	return nil
}

// SetBirthdate stores a Gregorian date; a nil date clears it.
func (s *UserService) SetBirthdate(ctx context.Context, user *models.User, birthdate *time.Time) error {
	if birthdate != nil {
		d := time.Date(birthdate.Year(), birthdate.Month(), birthdate.Day(), 0, 0, 0, 0, time.UTC)
		if d.After(time.Now()) {
			return apperr.Invalid("birthdate is in the future")
		}
		birthdate = &d
	}
	if err := s.Users.SetBirthdate(ctx, user.ID, birthdate); err != nil {
		return err
	}
	user.Birthdate = birthdate
	return nil
}

// Erase deletes the member and every relationship, crush and reply counter
// referencing them in chatID.
func (s *UserService) Erase(ctx context.Context, chatID, telegramID int64) error {
	if err := s.Users.Erase(ctx, chatID, telegramID); err != nil {
		return err
	}
	logger.For(ctx, s.log).Info("User erased", zap.Int64("telegram_id", telegramID))
	return nil
}

// GrantAdmin is idempotent: granting an existing admin succeeds.
func (s *UserService) GrantAdmin(ctx context.Context, chatID, telegramID, grantedBy int64) error {
	err := s.Users.GrantAdmin(ctx, &models.GroupAdmin{GroupID: chatID, TelegramID: telegramID, GrantedBy: grantedBy})
	if err != nil && !isConflict(err) {
		return err
	}
	return nil
}

func (s *UserService) RevokeAdmin(ctx context.Context, chatID, telegramID int64) error {
	return s.Users.RevokeAdmin(ctx, chatID, telegramID)
}
