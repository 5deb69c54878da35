package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGroupIsActive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	assert.False(t, (&Group{}).IsActive(now))
	assert.True(t, (&Group{ExpiresAt: &future}).IsActive(now))
	assert.False(t, (&Group{ExpiresAt: &past}).IsActive(now))
	assert.False(t, (&Group{ExpiresAt: &now}).IsActive(now))
}

func TestGroupSettingsToggleBlocked(t *testing.T) {
	var s GroupSettings
	assert.True(t, s.ToggleBlocked(7))
	assert.True(t, s.IsBlocked(7))
	assert.True(t, s.ToggleBlocked(8))
	assert.False(t, s.ToggleBlocked(7))
	assert.False(t, s.IsBlocked(7))
	assert.Equal(t, []int64{8}, s.BlockedSellers)
}

func TestCanonicalPair(t *testing.T) {
	a, b := CanonicalPair(9, 3)
	assert.Equal(t, uint(3), a)
	assert.Equal(t, uint(9), b)

	a, b = CanonicalPair(3, 9)
	assert.Equal(t, uint(3), a)
	assert.Equal(t, uint(9), b)

	r := Relationship{UserAID: 3, UserBID: 9}
	assert.True(t, r.Involves(9))
	assert.False(t, r.Involves(4))
	assert.Equal(t, uint(3), r.Partner(9))
}

func TestParseGender(t *testing.T) {
	g, ok := ParseGender(" Female ")
	assert.True(t, ok)
	assert.Equal(t, GenderFemale, g)

	_, ok = ParseGender("robot")
	assert.False(t, ok)
}

func TestDateOf(t *testing.T) {
	tehran, err := time.LoadLocation("Asia/Tehran")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 22:00 UTC on March 20 is already March 21 in Tehran.
	instant := time.Date(2026, 3, 20, 22, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 21, 0, 0, 0, 0, time.UTC), DateOf(instant, tehran))
	assert.Equal(t, time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC), DateOf(instant, time.UTC))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", (&User{FirstName: "Ada", LastName: "Lovelace"}).DisplayName())
	assert.Equal(t, "@ada", (&User{Username: "ada"}).DisplayName())
	assert.Equal(t, "someone", (&User{}).DisplayName())
}
