package services

import (
	"context"
	"time"

	"github.com/Gopher0727/GroupKeeper/internal/models"
)

// GroupStore persists groups, their settings blob and the billing log.
type GroupStore interface {
	CreateIfAbsent(ctx context.Context, group *models.Group, trial *models.SubscriptionLog) (bool, error)
	Get(ctx context.Context, chatID int64) (*models.Group, error)
	List(ctx context.Context) ([]models.Group, error)
	UpdateTitle(ctx context.Context, chatID int64, title string) error
	UpdateExpiry(ctx context.Context, chatID int64, next func(current *time.Time) time.Time, entry *models.SubscriptionLog) (time.Time, error)
	UpdateSettings(ctx context.Context, chatID int64, mutate func(*models.GroupSettings)) (models.GroupSettings, error)
	SellerStats(ctx context.Context, sellerID int64) (models.SellerStats, error)
	Wipe(ctx context.Context, chatID int64) error
}

// UserStore persists members and admin grants.
type UserStore interface {
	GetOrCreate(ctx context.Context, user *models.User) (*models.User, bool, error)
	Get(ctx context.Context, groupID, telegramID int64) (*models.User, error)
	GetByID(ctx context.Context, id uint) (*models.User, error)
	ListByGroup(ctx context.Context, groupID int64) ([]models.User, error)
	UpdateNames(ctx context.Context, id uint, first, last, username string) error
	SetGender(ctx context.Context, id uint, gender models.Gender) error
	SetBirthdate(ctx context.Context, id uint, birthdate *time.Time) error
	Erase(ctx context.Context, groupID, telegramID int64) error

	IsAdmin(ctx context.Context, groupID, telegramID int64) (bool, error)
	GrantAdmin(ctx context.Context, admin *models.GroupAdmin) error
	RevokeAdmin(ctx context.Context, groupID, telegramID int64) error
}

type SellerStore interface {
	Get(ctx context.Context, telegramID int64) (*models.Seller, error)
	Upsert(ctx context.Context, seller *models.Seller) error
	SetActive(ctx context.Context, telegramID int64, active bool) error
	List(ctx context.Context) ([]models.Seller, error)
}

type RelationStore interface {
	CreateRelationship(ctx context.Context, rel *models.Relationship) error
	FindRelationship(ctx context.Context, groupID int64, userID uint) (*models.Relationship, error)
	DeleteRelationship(ctx context.Context, id uint) error
	ListRelationships(ctx context.Context, groupID int64) ([]models.Relationship, error)
	CreateCrush(ctx context.Context, crush *models.Crush) error
	DeleteCrush(ctx context.Context, groupID int64, from, to uint) error
	ListCrushesOn(ctx context.Context, groupID int64, to uint) ([]models.Crush, error)
}

type StatsStore interface {
	IncrementReply(ctx context.Context, groupID int64, day time.Time, userID uint) error
	TopRepliers(ctx context.Context, groupID int64, day time.Time, limit int) ([]models.ReplyRank, error)
	CreateShip(ctx context.Context, ship *models.ShipHistory) error
	GetShip(ctx context.Context, groupID int64, day time.Time) (*models.ShipHistory, error)
}

// Notifier delivers a plain text message to a chat. Callers treat delivery
// as best effort.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// BillingEvent is published for every ledger mutation.
type BillingEvent struct {
	ChatID    int64                     `json:"chat_id"`
	Action    models.SubscriptionAction `json:"action"`
	ActorID   *int64                    `json:"actor_id,omitempty"`
	Days      int                       `json:"days"`
	ExpiresAt time.Time                 `json:"expires_at"`
	At        time.Time                 `json:"at"`
}

type BillingPublisher interface {
	PublishBilling(ctx context.Context, event BillingEvent) error
}

type noopPublisher struct{}

func (noopPublisher) PublishBilling(context.Context, BillingEvent) error { return nil }
