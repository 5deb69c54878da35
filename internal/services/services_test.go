package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Gopher0727/GroupKeeper/internal/models"
	"github.com/Gopher0727/GroupKeeper/internal/pkg/calendar"
	"github.com/Gopher0727/GroupKeeper/internal/repositories"
	"github.com/Gopher0727/GroupKeeper/internal/repositories/memory"
)

var (
	_ GroupStore    = (*memory.Groups)(nil)
	_ UserStore     = (*memory.Users)(nil)
	_ SellerStore   = (*memory.Sellers)(nil)
	_ RelationStore = (*memory.Relations)(nil)
	_ StatsStore    = (*memory.Stats)(nil)

	_ GroupStore    = (*repositories.GroupRepository)(nil)
	_ UserStore     = (*repositories.UserRepository)(nil)
	_ SellerStore   = (*repositories.SellerRepository)(nil)
	_ RelationStore = (*repositories.RelationRepository)(nil)
	_ StatsStore    = (*repositories.StatsRepository)(nil)
)

const (
	ownerID = int64(1000)
	chatID  = int64(-100500)
)

type sentMessage struct {
	ChatID int64
	Text   string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	fail map[int64]bool
}

func (n *recordingNotifier) Notify(_ context.Context, chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail[chatID] {
		return errors.New("chat unreachable")
	}
	n.sent = append(n.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (n *recordingNotifier) to(chatID int64) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, m := range n.sent {
		if m.ChatID == chatID {
			out = append(out, m.Text)
		}
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []BillingEvent
}

func (p *recordingPublisher) PublishBilling(_ context.Context, e BillingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

type fixture struct {
	ctx       context.Context
	now       time.Time
	store     *memory.Store
	notifier  *recordingNotifier
	publisher *recordingPublisher

	ledger    *SubscriptionLedger
	access    *AccessResolver
	users     *UserService
	relations *RelationService
	stats     *StatsService
	sellers   *SellerService
	engine    *AggregationEngine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:       context.Background(),
		now:       time.Date(2026, time.June, 11, 6, 0, 0, 0, time.UTC),
		store:     memory.New(),
		notifier:  &recordingNotifier{fail: map[int64]bool{}},
		publisher: &recordingPublisher{},
	}
	clock := func() time.Time { return f.now }
	log := zap.NewNop()

	groups, users, sellers := f.store.Groups(), f.store.Users(), f.store.Sellers()
	relations, stats := f.store.Relations(), f.store.Stats()

	f.ledger = NewSubscriptionLedger(groups, f.notifier, f.publisher, LedgerConfig{
		OwnerID:         ownerID,
		DefaultTimezone: "Asia/Tehran",
		TrialDays:       7,
	}, log)
	f.ledger.now = clock
	f.access = NewAccessResolver(groups, users, sellers, ownerID)
	f.users = NewUserService(users, log)
	f.relations = NewRelationService(relations, users)
	f.relations.now = clock
	f.stats = NewStatsService(stats)
	f.stats.now = clock
	f.sellers = NewSellerService(sellers, groups, log)
	f.engine = NewAggregationEngine(groups, users, relations, stats, f.notifier, calendar.Jalali{}, nil, log)
	f.engine.now = clock
	return f
}

func (f *fixture) group(t *testing.T, chatID int64) *models.Group {
	t.Helper()
	g, err := f.ledger.EnsureGroup(f.ctx, chatID, "test group")
	require.NoError(t, err)
	return g
}

func (f *fixture) member(t *testing.T, chatID, telegramID int64, name string, gender models.Gender) *models.User {
	t.Helper()
	u, err := f.users.Touch(f.ctx, chatID, Member{TelegramID: telegramID, FirstName: name})
	require.NoError(t, err)
	if gender != models.GenderUnknown {
		require.NoError(t, f.users.SetGender(f.ctx, u, gender))
	}
	return u
}
