package models

import (
	"strings"
	"time"
)

type Gender string

const (
	GenderUnknown Gender = "unknown"
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
)

func ParseGender(s string) (Gender, bool) {
	switch g := Gender(strings.ToLower(strings.TrimSpace(s))); g {
	case GenderUnknown, GenderMale, GenderFemale:
		return g, true
	}
	return "", false
}

// User is a member as seen in one group. The same platform account has a
// separate row in every group it talks in.
type User struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	GroupID    int64  `gorm:"not null;uniqueIndex:idx_users_group_tg" json:"group_id"`
	TelegramID int64  `gorm:"not null;uniqueIndex:idx_users_group_tg" json:"telegram_id"`
	FirstName  string `gorm:"type:varchar(128)" json:"first_name"`
	LastName   string `gorm:"type:varchar(128)" json:"last_name"`
	Username   string `gorm:"type:varchar(64)" json:"username"`
	Gender     Gender `gorm:"type:varchar(16);not null;default:unknown" json:"gender"`
	// Birthdate is a plain Gregorian calendar date.
	Birthdate *time.Time `gorm:"type:date" json:"birthdate,omitempty"`

	Group *Group `gorm:"foreignKey:GroupID;references:ChatID;constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// DisplayName is the name used in notifications.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" && u.Username != "" {
		return "@" + u.Username
	}
	if name == "" {
		return "someone"
	}
	return name
}

// SameNames reports whether the display-name fields already match.
func (u *User) SameNames(first, last, username string) bool {
	return u.FirstName == first && u.LastName == last && u.Username == username
}

// GroupAdmin is a bot-level capability grant, independent of the platform's
// own admin concept.
type GroupAdmin struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	GroupID    int64     `gorm:"not null;uniqueIndex:idx_group_admins_group_tg" json:"group_id"`
	TelegramID int64     `gorm:"not null;uniqueIndex:idx_group_admins_group_tg" json:"telegram_id"`
	GrantedBy  int64     `json:"granted_by"`
	CreatedAt  time.Time `json:"created_at"`

	Group *Group `gorm:"foreignKey:GroupID;references:ChatID;constraint:OnDelete:CASCADE" json:"-"`
}

func (GroupAdmin) TableName() string {
	return "group_admins"
}
