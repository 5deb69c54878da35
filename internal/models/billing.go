package models

import "time"

// Seller is a global operator allowed to sell subscription time into groups.
type Seller struct {
	TelegramID int64     `gorm:"primaryKey;autoIncrement:false" json:"telegram_id"`
	IsActive   bool      `gorm:"not null;default:true" json:"is_active"`
	AddedBy    int64     `json:"added_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Seller) TableName() string {
	return "sellers"
}

type SubscriptionAction string

const (
	ActionTrialStart SubscriptionAction = "trial_start"
	ActionExtend     SubscriptionAction = "extend"
)

// SubscriptionLog is the append-only audit trail of billing actions. Rows are
// never updated or deleted, including by a group wipe.
type SubscriptionLog struct {
	ID        uint               `gorm:"primaryKey" json:"id"`
	GroupID   int64              `gorm:"not null;index" json:"group_id"`
	Action    SubscriptionAction `gorm:"type:varchar(32);not null" json:"action"`
	ActorID   *int64             `gorm:"index" json:"actor_id,omitempty"`
	Days      int                `gorm:"not null" json:"days"`
	CreatedAt time.Time          `json:"created_at"`
}

func (SubscriptionLog) TableName() string {
	return "subscription_logs"
}

// SellerStats aggregates a seller's extend actions.
type SellerStats struct {
	SellerID  int64 `json:"seller_id"`
	Sales     int64 `json:"sales"`
	TotalDays int64 `json:"total_days"`
	Groups    int64 `json:"groups"`
}
