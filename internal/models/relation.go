package models

import "time"

// Relationship is an unordered pair stored as (min, max) of the user row ids,
// so one pair has at most one row per group.
type Relationship struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	GroupID   int64     `gorm:"not null;uniqueIndex:idx_relationships_pair" json:"group_id"`
	UserAID   uint      `gorm:"not null;uniqueIndex:idx_relationships_pair" json:"user_a_id"`
	UserBID   uint      `gorm:"not null;uniqueIndex:idx_relationships_pair;index" json:"user_b_id"`
	StartedOn time.Time `gorm:"type:date;not null" json:"started_on"`
	CreatedAt time.Time `json:"created_at"`

	UserA *User `gorm:"foreignKey:UserAID;constraint:OnDelete:CASCADE" json:"-"`
	UserB *User `gorm:"foreignKey:UserBID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Relationship) TableName() string {
	return "relationships"
}

// CanonicalPair orders two user row ids as stored in a Relationship.
func CanonicalPair(a, b uint) (uint, uint) {
	if a > b {
		return b, a
	}
	return a, b
}

// Involves reports whether userID is either endpoint.
func (r *Relationship) Involves(userID uint) bool {
	return r.UserAID == userID || r.UserBID == userID
}

// Partner returns the other endpoint.
func (r *Relationship) Partner(userID uint) uint {
	if r.UserAID == userID {
		return r.UserBID
	}
	return r.UserAID
}

// Crush is directional and needs no reciprocity.
type Crush struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	GroupID    int64     `gorm:"not null;uniqueIndex:idx_crushes_edge" json:"group_id"`
	FromUserID uint      `gorm:"not null;uniqueIndex:idx_crushes_edge" json:"from_user_id"`
	ToUserID   uint      `gorm:"not null;uniqueIndex:idx_crushes_edge;index" json:"to_user_id"`
	CreatedAt  time.Time `json:"created_at"`

	FromUser *User `gorm:"foreignKey:FromUserID;constraint:OnDelete:CASCADE" json:"-"`
	ToUser   *User `gorm:"foreignKey:ToUserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Crush) TableName() string {
	return "crushes"
}
