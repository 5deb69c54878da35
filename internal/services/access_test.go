package services

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/GroupKeeper/internal/apperr"
	"github.com/Gopher0727/GroupKeeper/internal/models"
)

func TestResolve(t *testing.T) {
	const (
		sellerID  = int64(200)
		retiredID = int64(201)
		adminID   = int64(300)
		memberID  = int64(400)
	)
	f := newFixture(t)
	f.group(t, chatID)
	require.NoError(t, f.sellers.Add(f.ctx, sellerID, ownerID))
	require.NoError(t, f.sellers.Add(f.ctx, retiredID, ownerID))
	require.NoError(t, f.sellers.Deactivate(f.ctx, retiredID))
	require.NoError(t, f.users.GrantAdmin(f.ctx, chatID, adminID, ownerID))

	cases := []struct {
		name   string
		caller int64
		want   Level
	}{
		{"owner", ownerID, LevelOwner},
		{"active seller", sellerID, LevelSeller},
		{"inactive seller", retiredID, LevelMember},
		{"group admin", adminID, LevelGroupAdmin},
		{"member", memberID, LevelMember},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			level, err := f.access.Resolve(f.ctx, chatID, tc.caller)
			require.NoError(t, err)
			assert.Equal(t, tc.want, level)

			privileged, err := f.access.IsPrivileged(f.ctx, chatID, tc.caller)
			require.NoError(t, err)
			assert.Equal(t, tc.want > LevelMember, privileged)
		})
	}

	t.Run("blocked seller loses privilege in that group only", func(t *testing.T) {
		_, err := f.ledger.ToggleBlockedSeller(f.ctx, chatID, sellerID)
		require.NoError(t, err)
		privileged, err := f.access.IsPrivileged(f.ctx, chatID, sellerID)
		require.NoError(t, err)
		assert.False(t, privileged)

		other := chatID - 1
		f.group(t, other)
		privileged, err = f.access.IsPrivileged(f.ctx, other, sellerID)
		require.NoError(t, err)
		assert.True(t, privileged)

		isSeller, err := f.access.IsSeller(f.ctx, sellerID)
		require.NoError(t, err)
		assert.True(t, isSeller)
	})

	t.Run("blocked seller who is also admin keeps admin level", func(t *testing.T) {
		require.NoError(t, f.users.GrantAdmin(f.ctx, chatID, sellerID, ownerID))
		level, err := f.access.Resolve(f.ctx, chatID, sellerID)
		require.NoError(t, err)
		assert.Equal(t, LevelGroupAdmin, level)
	})

	t.Run("unknown group is an error", func(t *testing.T) {
		_, err := f.access.Resolve(f.ctx, 999, memberID)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestProperty_OwnerAlwaysPrivileged(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("owner is privileged whatever the group state", prop.ForAll(
		func(blockOwner, ownerIsSeller, groupExists bool) bool {
			f := newFixture(t)
			if groupExists {
				f.group(t, chatID)
				if blockOwner {
					if _, err := f.ledger.ToggleBlockedSeller(f.ctx, chatID, ownerID); err != nil {
						return false
					}
				}
			}
			if ownerIsSeller {
				if err := f.store.Sellers().Upsert(f.ctx, &models.Seller{TelegramID: ownerID, IsActive: false}); err != nil {
					return false
				}
			}
			privileged, err := f.access.IsPrivileged(f.ctx, chatID, ownerID)
			return err == nil && privileged
		},
		gen.Bool(), gen.Bool(), gen.Bool(),
	))

	properties.Property("blocked sellers are never privileged without an admin grant", prop.ForAll(
		func(sellerID int64) bool {
			if sellerID == ownerID {
				return true
			}
			f := newFixture(t)
			f.group(t, chatID)
			if err := f.sellers.Add(f.ctx, sellerID, ownerID); err != nil {
				return false
			}
			if _, err := f.ledger.ToggleBlockedSeller(f.ctx, chatID, sellerID); err != nil {
				return false
			}
			privileged, err := f.access.IsPrivileged(f.ctx, chatID, sellerID)
			return err == nil && !privileged
		},
		gen.Int64Range(1, 1<<40),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "owner", LevelOwner.String())
	assert.Equal(t, "member", LevelMember.String())
}
