package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/GroupKeeper/internal/apperr"
	"github.com/Gopher0727/GroupKeeper/internal/models"
)

func TestTouch(t *testing.T) {
	f := newFixture(t)
	f.group(t, chatID)

	u, err := f.users.Touch(f.ctx, chatID, Member{TelegramID: 5, FirstName: "Old"})
	require.NoError(t, err)
	assert.Equal(t, models.GenderUnknown, u.Gender)

	again, err := f.users.Touch(f.ctx, chatID, Member{TelegramID: 5, FirstName: "New", Username: "nu"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
	assert.Equal(t, "New", again.FirstName)

	stored, err := f.store.Users().GetByID(f.ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "nu", stored.Username)

	t.Run("same platform id in another group is another row", func(t *testing.T) {
		f.group(t, chatID-1)
		other, err := f.users.Touch(f.ctx, chatID-1, Member{TelegramID: 5, FirstName: "New"})
		require.NoError(t, err)
		assert.NotEqual(t, u.ID, other.ID)
	})
}

func TestSetBirthdate(t *testing.T) {
	f := newFixture(t)
	f.group(t, chatID)
	u := f.member(t, chatID, 5, "a", models.GenderUnknown)

	bd := time.Date(1991, time.June, 11, 15, 30, 0, 0, time.Local)
	require.NoError(t, f.users.SetBirthdate(f.ctx, u, &bd))
	assert.Equal(t, time.Date(1991, time.June, 11, 0, 0, 0, 0, time.UTC), *u.Birthdate)

	future := time.Now().AddDate(1, 0, 0)
	assert.ErrorIs(t, f.users.SetBirthdate(f.ctx, u, &future), apperr.ErrInvalidInput)

	require.NoError(t, f.users.SetBirthdate(f.ctx, u, nil))
	assert.Nil(t, u.Birthdate)
}

func TestEraseCascadesOnlyForThatUser(t *testing.T) {
	f := newFixture(t)
	g := f.group(t, chatID)
	a := f.member(t, chatID, 1, "a", models.GenderMale)
	b := f.member(t, chatID, 2, "b", models.GenderFemale)
	c := f.member(t, chatID, 3, "c", models.GenderFemale)
	d := f.member(t, chatID, 4, "d", models.GenderMale)

	_, err := f.relations.Marry(f.ctx, a, b, time.UTC)
	require.NoError(t, err)
	_, err = f.relations.Marry(f.ctx, c, d, time.UTC)
	require.NoError(t, err)
	require.NoError(t, f.relations.Crush(f.ctx, c, a))
	require.NoError(t, f.relations.Crush(f.ctx, a, c))
	require.NoError(t, f.relations.Crush(f.ctx, d, c))
	require.NoError(t, f.stats.RecordReply(f.ctx, g, b, a))
	require.NoError(t, f.stats.RecordReply(f.ctx, g, a, c))

	require.NoError(t, f.users.Erase(f.ctx, chatID, a.TelegramID))

	_, err = f.store.Users().GetByID(f.ctx, a.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	rels, err := f.store.Relations().ListRelationships(f.ctx, chatID)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.True(t, rels[0].Involves(c.ID))

	onA, err := f.store.Relations().ListCrushesOn(f.ctx, chatID, a.ID)
	require.NoError(t, err)
	assert.Empty(t, onA)
	onC, err := f.store.Relations().ListCrushesOn(f.ctx, chatID, c.ID)
	require.NoError(t, err)
	require.Len(t, onC, 1)
	assert.Equal(t, d.ID, onC[0].FromUserID)

	today := models.DateOf(f.now, g.Location())
	assert.Zero(t, f.store.ReplyCount(chatID, today, a.ID))
	assert.Equal(t, 1, f.store.ReplyCount(chatID, today, c.ID))

	assert.ErrorIs(t, f.users.Erase(f.ctx, chatID, a.TelegramID), apperr.ErrNotFound)
}

func TestAdminGrants(t *testing.T) {
	f := newFixture(t)
	f.group(t, chatID)

	require.NoError(t, f.users.GrantAdmin(f.ctx, chatID, 9, ownerID))
	require.NoError(t, f.users.GrantAdmin(f.ctx, chatID, 9, ownerID))
	require.NoError(t, f.users.RevokeAdmin(f.ctx, chatID, 9))
	assert.ErrorIs(t, f.users.RevokeAdmin(f.ctx, chatID, 9), apperr.ErrNotFound)
}
