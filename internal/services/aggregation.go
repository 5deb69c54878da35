package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Gopher0727/GroupKeeper/internal/models"
	"github.com/Gopher0727/GroupKeeper/internal/pkg/calendar"
	"github.com/Gopher0727/GroupKeeper/internal/utils"
	"github.com/Gopher0727/GroupKeeper/utils/random"
)

const topRepliers = 3

// Sweep names.
const (
	SweepEvening = "evening"
	SweepMorning = "morning"
)

// SweepReport summarizes one run over all groups.
type SweepReport struct {
	Sweep    string
	Groups   int
	Skipped  int
	Notified int
	Failed   int
	Duration time.Duration
}

func (r *SweepReport) add(notified, failed int) {
	r.Notified += notified
	r.Failed += failed
}

// AggregationEngine runs the two daily sweeps over every active group.
// Groups are independent; the pool bounds how many are processed at once.
type AggregationEngine struct {
	Groups    GroupStore
	Users     UserStore
	Relations RelationStore
	Stats     StatsStore
	Notifier  Notifier
	Calendar  calendar.Converter
	Pool      *utils.WorkerPool

	log  *zap.Logger
	now  func() time.Time
	pick func(n int) (int, error)
}

func NewAggregationEngine(
	groups GroupStore,
	users UserStore,
	relations RelationStore,
	stats StatsStore,
	notifier Notifier,
	conv calendar.Converter,
	pool *utils.WorkerPool,
	log *zap.Logger,
) *AggregationEngine {
	return &AggregationEngine{
		Groups:    groups,
		Users:     users,
		Relations: relations,
		Stats:     stats,
		Notifier:  notifier,
		Calendar:  conv,
		Pool:      pool,
		log:       log,
		now:       time.Now,
		pick:      random.Index,
	}
}

type groupJob func(ctx context.Context, g *models.Group) (notified, failed int, err error)

func (e *AggregationEngine) sweep(ctx context.Context, name string, job groupJob) (SweepReport, error) {
	began := time.Now()
	now := e.now()
	report := SweepReport{Sweep: name}

	groups, err := e.Groups.List(ctx)
	if err != nil {
		return report, fmt.Errorf("%s sweep: list groups: %w", name, err)
	}

	var mu sync.Mutex
	jobs := make([]func(), 0, len(groups))
	for i := range groups {
		g := &groups[i]
		if !g.IsActive(now) {
			report.Skipped++
			continue
		}
		report.Groups++
		jobs = append(jobs, func() {
			notified, failed, err := job(ctx, g)
			if err != nil {
				failed++
				e.log.Warn("Sweep failed for group",
					zap.String("sweep", name),
					zap.Int64("chat_id", g.ChatID),
					zap.Error(err),
				)
			}
			mu.Lock()
			report.add(notified, failed)
			mu.Unlock()
		})
	}

	if e.Pool != nil {
		e.Pool.RunAll(jobs)
	} else {
		for _, job := range jobs {
			job()
		}
	}

	report.Duration = time.Since(began)
	e.log.Info("Sweep finished",
		zap.String("sweep", name),
		zap.Int("groups", report.Groups),
		zap.Int("skipped", report.Skipped),
		zap.Int("notified", report.Notified),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// notify delivers best effort; it reports 1 for a delivered message and 0
// for a failed one so callers can tally both.
func (e *AggregationEngine) notify(ctx context.Context, chatID int64, text string) (ok int) {
	if err := e.Notifier.Notify(ctx, chatID, text); err != nil {
		e.log.Warn("Sweep notification failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return 0
	}
	return 1
}

// EveningSweep posts the day's reply ranking and the nightly ship.
func (e *AggregationEngine) EveningSweep(ctx context.Context) (SweepReport, error) {
	return e.sweep(ctx, SweepEvening, e.evening)
}

func (e *AggregationEngine) evening(ctx context.Context, g *models.Group) (notified, failed int, err error) {
	today := models.DateOf(e.now(), g.Location())

	ranks, err := e.Stats.TopRepliers(ctx, g.ChatID, today, topRepliers)
	if err != nil {
		return 0, 0, fmt.Errorf("top repliers: %w", err)
	}
	if len(ranks) > 0 {
		ok := e.notify(ctx, g.ChatID, rankingNotice(ranks))
		notified, failed = notified+ok, failed+1-ok
	}

	male, female, err := e.Ship(ctx, g.ChatID, today)
	if err != nil {
		return notified, failed, err
	}
	if male != nil && female != nil {
		ok := e.notify(ctx, g.ChatID, shipNotice(male, female))
		notified, failed = notified+ok, failed+1-ok
	}
	return notified, failed, nil
}

// Ship selects one unpaired male and one unpaired female uniformly at random
// and records the pairing. It returns nil users when either pool is empty or
// the group already has a ship for day.
func (e *AggregationEngine) Ship(ctx context.Context, chatID int64, day time.Time) (*models.User, *models.User, error) {
	if _, err := e.Stats.GetShip(ctx, chatID, day); err == nil {
		return nil, nil, nil
	} else if !isNotFound(err) {
		return nil, nil, err
	}

	males, females, err := e.unpaired(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}
	if len(males) == 0 || len(females) == 0 {
		return nil, nil, nil
	}

	mi, err := e.pick(len(males))
	if err != nil {
		return nil, nil, err
	}
	fi, err := e.pick(len(females))
	if err != nil {
		return nil, nil, err
	}
	male, female := males[mi], females[fi]

	err = e.Stats.CreateShip(ctx, &models.ShipHistory{
		GroupID:      chatID,
		ShipDate:     day,
		MaleUserID:   male.ID,
		FemaleUserID: female.ID,
	})
	if isConflict(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return &male, &female, nil
}

func (e *AggregationEngine) unpaired(ctx context.Context, chatID int64) (males, females []models.User, err error) {
	users, err := e.Users.ListByGroup(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}
	rels, err := e.Relations.ListRelationships(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}
	paired := make(map[uint]struct{}, 2*len(rels))
	for _, r := range rels {
		paired[r.UserAID] = struct{}{}
		paired[r.UserBID] = struct{}{}
	}
	for _, u := range users {
		if _, ok := paired[u.ID]; ok {
			continue
		}
		switch u.Gender {
		case models.GenderMale:
			males = append(males, u)
		case models.GenderFemale:
			females = append(females, u)
		}
	}
	return males, females, nil
}

// MorningSweep posts birthday and monthly anniversary greetings, matched in
// the secondary calendar.
func (e *AggregationEngine) MorningSweep(ctx context.Context) (SweepReport, error) {
	return e.sweep(ctx, SweepMorning, e.morning)
}

func (e *AggregationEngine) morning(ctx context.Context, g *models.Group) (notified, failed int, err error) {
	todayG := models.DateOf(e.now(), g.Location())
	today, err := e.Calendar.FromGregorian(todayG)
	if err != nil {
		return 0, 0, err
	}

	users, err := e.Users.ListByGroup(ctx, g.ChatID)
	if err != nil {
		return 0, 0, err
	}
	byID := make(map[uint]*models.User, len(users))
	for i := range users {
		u := &users[i]
		byID[u.ID] = u
		if u.Birthdate == nil {
			continue
		}
		bd, err := e.Calendar.FromGregorian(*u.Birthdate)
		if err != nil || !bd.MonthDay(today) {
			continue
		}
		ok := e.notify(ctx, g.ChatID, birthdayNotice(u))
		notified, failed = notified+ok, failed+1-ok
	}

	rels, err := e.Relations.ListRelationships(ctx, g.ChatID)
	if err != nil {
		return notified, failed, err
	}
	for _, r := range rels {
		if !r.StartedOn.Before(todayG) {
			continue
		}
		start, err := e.Calendar.FromGregorian(r.StartedOn)
		// Only the day of month is compared, so this fires every month.
		if err != nil || start.Day != today.Day {
			continue
		}
		a, b := byID[r.UserAID], byID[r.UserBID]
		if a == nil || b == nil {
			continue
		}
		months := (today.Year-start.Year)*12 + today.Month - start.Month
		ok := e.notify(ctx, g.ChatID, anniversaryNotice(a, b, months))
		notified, failed = notified+ok, failed+1-ok
	}
	return notified, failed, nil
}
