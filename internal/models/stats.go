package models

import "time"

// ReplyStatDaily counts how often other members replied to UserID's messages
// on StatDate, a calendar date in the group's timezone.
type ReplyStatDaily struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	GroupID  int64     `gorm:"not null;uniqueIndex:idx_reply_stats_day_user" json:"group_id"`
	StatDate time.Time `gorm:"type:date;not null;uniqueIndex:idx_reply_stats_day_user" json:"stat_date"`
	UserID   uint      `gorm:"not null;uniqueIndex:idx_reply_stats_day_user;index" json:"user_id"`
	Count    int       `gorm:"not null;default:0" json:"count"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (ReplyStatDaily) TableName() string {
	return "reply_stats_daily"
}

// ShipHistory records the nightly pairing. The (group, date) unique index
// makes the selection idempotent per day. User ids are kept as history
// and are not foreign keys.
type ShipHistory struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	GroupID      int64     `gorm:"not null;uniqueIndex:idx_ship_history_day" json:"group_id"`
	ShipDate     time.Time `gorm:"type:date;not null;uniqueIndex:idx_ship_history_day" json:"ship_date"`
	MaleUserID   uint      `gorm:"not null" json:"male_user_id"`
	FemaleUserID uint      `gorm:"not null" json:"female_user_id"`
	CreatedAt    time.Time `json:"created_at"`
}

func (ShipHistory) TableName() string {
	return "ship_history"
}

// ReplyRank is one row of a daily popularity ranking.
type ReplyRank struct {
	User  User
	Count int
}

// DateOf truncates t to its calendar date in loc, returned as midnight UTC so
// it compares equal to values read back from a DATE column.
func DateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
