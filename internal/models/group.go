package models

import (
	"slices"
	"time"

	"gorm.io/datatypes"
)

// Group is a chat the bot operates in; the billing and data-isolation unit.
type Group struct {
	ChatID         int64      `gorm:"primaryKey;autoIncrement:false" json:"chat_id"`
	Title          string     `gorm:"type:varchar(255)" json:"title"`
	OwnerUserID    *int64     `json:"owner_user_id,omitempty"`
	Timezone       string     `gorm:"type:varchar(64);not null" json:"timezone"`
	TrialStartedAt time.Time  `json:"trial_started_at"`
	ExpiresAt      *time.Time `gorm:"index" json:"expires_at,omitempty"`

	Settings datatypes.JSONType[GroupSettings] `gorm:"type:jsonb" json:"settings"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Group) TableName() string {
	return "groups"
}

// IsActive is derived from ExpiresAt and never stored.
func (g *Group) IsActive(now time.Time) bool {
	return g.ExpiresAt != nil && g.ExpiresAt.After(now)
}

// Location returns the group's configured timezone, falling back to UTC
// when the stored name cannot be loaded.
func (g *Group) Location() *time.Location {
	if loc, err := time.LoadLocation(g.Timezone); err == nil {
		return loc
	}
	return time.UTC
}

// GroupSettings is the open settings blob stored with a group.
type GroupSettings struct {
	BlockedSellers []int64 `json:"blocked_sellers,omitempty"`
}

func (s GroupSettings) IsBlocked(sellerID int64) bool {
	return slices.Contains(s.BlockedSellers, sellerID)
}

// ToggleBlocked flips sellerID's membership in the blocked list and reports
// whether the seller is blocked afterwards.
func (s *GroupSettings) ToggleBlocked(sellerID int64) bool {
	if i := slices.Index(s.BlockedSellers, sellerID); i >= 0 {
		s.BlockedSellers = slices.Delete(s.BlockedSellers, i, i+1)
		return false
	}
	s.BlockedSellers = append(s.BlockedSellers, sellerID)
	return true
}
