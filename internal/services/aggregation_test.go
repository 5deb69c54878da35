package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/Gopher0727/GroupKeeper/internal/models"
	"github.com/Gopher0727/GroupKeeper/internal/pkg/calendar"
	"github.com/Gopher0727/GroupKeeper/internal/utils"
)

func TestEveningSweepRankingAndShip(t *testing.T) {
	f := newFixture(t)
	g := f.group(t, chatID)
	ali := f.member(t, chatID, 1, "Ali", models.GenderMale)
	sara := f.member(t, chatID, 2, "Sara", models.GenderFemale)
	reza := f.member(t, chatID, 3, "Reza", models.GenderMale)
	mina := f.member(t, chatID, 4, "Mina", models.GenderFemale)
	f.member(t, chatID, 5, "Nobody", models.GenderUnknown)

	for range 3 {
		require.NoError(t, f.stats.RecordReply(f.ctx, g, ali, sara))
	}
	require.NoError(t, f.stats.RecordReply(f.ctx, g, sara, ali))
	require.NoError(t, f.stats.RecordReply(f.ctx, g, sara, reza))
	require.NoError(t, f.stats.RecordReply(f.ctx, g, reza, reza))

	_, err := f.relations.Marry(f.ctx, ali, sara, g.Location())
	require.NoError(t, err)

	report, err := f.engine.EveningSweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Groups)
	assert.Equal(t, 2, report.Notified)
	assert.Zero(t, report.Failed)

	msgs := f.notifier.to(chatID)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "🥇 Sara: 3 replies")
	assert.True(t, strings.Index(msgs[0], "Ali") < strings.Index(msgs[0], "Reza"), "ties are ordered by member id")
	assert.Equal(t, "💘 Tonight's ship: Reza & Mina", msgs[1])

	ships := f.store.Ships(chatID)
	require.Len(t, ships, 1)
	assert.Equal(t, reza.ID, ships[0].MaleUserID)
	assert.Equal(t, mina.ID, ships[0].FemaleUserID)
	assert.Equal(t, models.DateOf(f.now, g.Location()), ships[0].ShipDate)

	t.Run("second run the same day ships nothing new", func(t *testing.T) {
		_, err := f.engine.EveningSweep(f.ctx)
		require.NoError(t, err)
		assert.Len(t, f.store.Ships(chatID), 1)
		assert.Len(t, f.notifier.to(chatID), 3, "only the ranking is repeated")
	})
}

func TestEveningSweepWithoutCandidates(t *testing.T) {
	f := newFixture(t)
	f.group(t, chatID)
	f.member(t, chatID, 1, "Ali", models.GenderMale)

	report, err := f.engine.EveningSweep(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Notified)
	assert.Empty(t, f.notifier.to(chatID))
	assert.Empty(t, f.store.Ships(chatID))
}

func TestSweepSkipsExpiredAndToleratesFailures(t *testing.T) {
	f := newFixture(t)
	const (
		broken  = int64(-1)
		healthy = int64(-2)
		expired = int64(-3)
	)
	for _, id := range []int64{broken, healthy, expired} {
		f.group(t, id)
		f.member(t, id, 1, "M", models.GenderMale)
		f.member(t, id, 2, "F", models.GenderFemale)
	}
	past := f.now.Add(-time.Hour)
	f.store.SetExpiry(expired, &past)
	f.notifier.fail[broken] = true

	f.engine.Pool = utils.NewWorkerPool(2, 2, zap.NewNop())
	f.engine.Pool.Start()
	defer f.engine.Pool.Stop()

	report, err := f.engine.EveningSweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Groups)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Notified)
	assert.Equal(t, 1, report.Failed)

	assert.Len(t, f.notifier.to(healthy), 1)
	assert.Empty(t, f.notifier.to(expired))
	assert.Empty(t, f.store.Ships(expired))
	assert.Len(t, f.store.Ships(broken), 1, "the pairing is kept even when the announcement fails")
}

func TestShipNeverPicksPairedUsers(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(t)
		g := f.group(t, chatID)

		n := rapid.IntRange(2, 12).Draw(rt, "members")
		users := make([]*models.User, n)
		for i := range users {
			gender := rapid.SampledFrom([]models.Gender{models.GenderMale, models.GenderFemale, models.GenderUnknown}).Draw(rt, "gender")
			users[i] = f.member(t, chatID, int64(i+1), fmt.Sprintf("u%d", i), gender)
		}
		paired := map[uint]bool{}
		for range rapid.IntRange(0, n/2).Draw(rt, "marriages") {
			a := rapid.IntRange(0, n-1).Draw(rt, "a")
			b := rapid.IntRange(0, n-1).Draw(rt, "b")
			if _, err := f.relations.Marry(f.ctx, users[a], users[b], g.Location()); err == nil {
				paired[users[a].ID], paired[users[b].ID] = true, true
			}
		}

		male, female, err := f.engine.Ship(f.ctx, chatID, models.DateOf(f.now, g.Location()))
		if err != nil {
			rt.Fatalf("ship: %v", err)
		}
		if male == nil {
			return
		}
		if paired[male.ID] || paired[female.ID] {
			rt.Fatalf("paired user selected: %d/%d", male.ID, female.ID)
		}
		if male.Gender != models.GenderMale || female.Gender != models.GenderFemale {
			rt.Fatalf("wrong genders: %s/%s", male.Gender, female.Gender)
		}
	})
}

func jalaliDate(t *testing.T, y, m, d int) time.Time {
	t.Helper()
	g, err := calendar.Jalali{}.ToGregorian(calendar.Date{Year: y, Month: m, Day: d})
	require.NoError(t, err)
	return g
}

func TestMorningSweepBirthdays(t *testing.T) {
	f := newFixture(t)
	g := f.group(t, chatID)
	// f.now is 2026-06-11 09:30 in Tehran, which is 1405/03/21.
	today, err := calendar.Jalali{}.FromGregorian(models.DateOf(f.now, g.Location()))
	require.NoError(t, err)
	require.Equal(t, calendar.Date{Year: 1405, Month: 3, Day: 21}, today)

	celebrant := f.member(t, chatID, 1, "Nima", models.GenderMale)
	bd := jalaliDate(t, 1370, 3, 21)
	require.NoError(t, f.users.SetBirthdate(f.ctx, celebrant, &bd))

	tomorrow := f.member(t, chatID, 2, "Tara", models.GenderFemale)
	bd2 := jalaliDate(t, 1370, 3, 22)
	require.NoError(t, f.users.SetBirthdate(f.ctx, tomorrow, &bd2))

	_, err = f.engine.MorningSweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"🎂 Happy birthday, Nima!"}, f.notifier.to(chatID))

	f.notifier.sent = nil
	f.now = f.now.Add(-24 * time.Hour)
	_, err = f.engine.MorningSweep(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, f.notifier.to(chatID), "no birthday on 1405/03/20")
}

func TestMorningSweepMonthlyAnniversary(t *testing.T) {
	f := newFixture(t)
	f.group(t, chatID)
	a := f.member(t, chatID, 1, "Ali", models.GenderMale)
	b := f.member(t, chatID, 2, "Sara", models.GenderFemale)
	c := f.member(t, chatID, 3, "Reza", models.GenderMale)
	d := f.member(t, chatID, 4, "Mina", models.GenderFemale)
	e := f.member(t, chatID, 5, "Omid", models.GenderMale)
	h := f.member(t, chatID, 6, "Leila", models.GenderFemale)
	k := f.member(t, chatID, 7, "Nima", models.GenderMale)
	n := f.member(t, chatID, 8, "Parisa", models.GenderFemale)

	rels := f.store.Relations()
	require.NoError(t, rels.CreateRelationship(f.ctx, &models.Relationship{GroupID: chatID, UserAID: a.ID, UserBID: b.ID, StartedOn: jalaliDate(t, 1405, 1, 21)}))
	require.NoError(t, rels.CreateRelationship(f.ctx, &models.Relationship{GroupID: chatID, UserAID: c.ID, UserBID: d.ID, StartedOn: jalaliDate(t, 1405, 2, 20)}))
	require.NoError(t, rels.CreateRelationship(f.ctx, &models.Relationship{GroupID: chatID, UserAID: e.ID, UserBID: h.ID, StartedOn: jalaliDate(t, 1404, 3, 21)}))
	// Paired this morning: no "0 months" greeting.
	require.NoError(t, rels.CreateRelationship(f.ctx, &models.Relationship{GroupID: chatID, UserAID: k.ID, UserBID: n.ID, StartedOn: jalaliDate(t, 1405, 3, 21)}))

	report, err := f.engine.MorningSweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Notified)
	assert.Equal(t, []string{
		"💞 Ali & Sara have been together for 2 month(s) today!",
		"💞 Omid & Leila have been together for 1 year(s) today!",
	}, f.notifier.to(chatID))
}
