package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/Gopher0727/GroupKeeper/internal/apperr"
	"github.com/Gopher0727/GroupKeeper/internal/pkg/telegram"
)

type fakeSender struct {
	mu        sync.Mutex
	nextID    int
	sent      []telegram.OutgoingMessage
	deleted   []Ref
	deleteErr error
	sendErr   error
}

func (s *fakeSender) SendMessage(_ context.Context, msg telegram.OutgoingMessage) (*telegram.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	s.nextID++
	s.sent = append(s.sent, msg)
	return &telegram.Message{MessageID: s.nextID, Chat: telegram.Chat{ID: msg.ChatID}}, nil
}

func (s *fakeSender) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, Ref{ChatID: chatID, MessageID: messageID})
	return s.deleteErr
}

type gauge struct{ v float64 }

func (g *gauge) Set(v float64) { g.v = v }

func TestOpenNavigation(t *testing.T) {
	sender := &fakeSender{}
	m := NewManager(sender, zap.NewNop())
	ctx := context.Background()
	rows := [][]Button{{{Text: "Profile", CallbackData: "menu:profile"}}}

	_, err := m.Open(ctx, -1, "Menu", rows, true, 10)
	require.NoError(t, err)
	_, err = m.Open(ctx, -1, "Profile", rows, false, 10)
	require.NoError(t, err)

	root := sender.sent[0].ReplyMarkup.InlineKeyboard
	require.Len(t, root, 2)
	assert.Equal(t, []Button{{Text: "✖️ Close", CallbackData: CallbackClose}}, root[1])

	child := sender.sent[1].ReplyMarkup.InlineKeyboard
	require.Len(t, child, 2)
	require.Len(t, child[1], 2)
	assert.Equal(t, CallbackBack, child[1][0].CallbackData)
	assert.Equal(t, CallbackClose, child[1][1].CallbackData)
}

func TestAuthorize(t *testing.T) {
	sender := &fakeSender{}
	m := NewManager(sender, zap.NewNop())
	g := &gauge{}
	m.SetGauge(g)
	ctx := context.Background()

	ref, err := m.Open(ctx, -1, "Menu", nil, true, 10)
	require.NoError(t, err)
	assert.Equal(t, 1.0, g.v)

	assert.True(t, m.Authorize(ref, 10))
	assert.False(t, m.Authorize(ref, 11))
	assert.True(t, m.Authorize(Ref{ChatID: -1, MessageID: 999}, 11), "unregistered messages are open")

	m.Close(ctx, ref)
	assert.True(t, m.Authorize(ref, 11), "closed panels are no longer guarded")
	assert.Equal(t, []Ref{ref}, sender.deleted)
	assert.Zero(t, m.Len())
	assert.Zero(t, g.v)
}

func TestCloseToleratesMissingMessage(t *testing.T) {
	sender := &fakeSender{deleteErr: fmt.Errorf("delete: %w", apperr.ErrNotFound)}
	m := NewManager(sender, zap.NewNop())
	ctx := context.Background()

	ref, err := m.Open(ctx, -1, "Menu", nil, false, 10)
	require.NoError(t, err)
	m.Back(ctx, ref)
	m.Close(ctx, ref)
	assert.Zero(t, m.Len())
	assert.Len(t, sender.deleted, 2)
}

func TestOpenFailureRegistersNothing(t *testing.T) {
	sender := &fakeSender{sendErr: errors.New("down")}
	m := NewManager(sender, zap.NewNop())
	_, err := m.Open(context.Background(), -1, "Menu", nil, true, 10)
	assert.Error(t, err)
	assert.Zero(t, m.Len())
}

func TestOnlyOwnerMayAct(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := NewManager(&fakeSender{}, zap.NewNop())
		ctx := context.Background()

		owners := map[Ref]int64{}
		for range rapid.IntRange(1, 20).Draw(t, "panels") {
			opener := rapid.Int64Range(1, 5).Draw(t, "opener")
			ref, err := m.Open(ctx, -1, "p", nil, true, opener)
			if err != nil {
				t.Fatal(err)
			}
			owners[ref] = opener
		}
		for ref, owner := range owners {
			actor := rapid.Int64Range(1, 5).Draw(t, "actor")
			if got := m.Authorize(ref, actor); got != (actor == owner) {
				t.Fatalf("Authorize(%v, %d) = %v with owner %d", ref, actor, got, owner)
			}
		}
	})
}

func TestConcurrentAccess(t *testing.T) {
	m := NewManager(&fakeSender{}, zap.NewNop())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Go(func() {
			ref, err := m.Open(ctx, int64(i%3), "p", nil, true, int64(i))
			if err != nil {
				return
			}
			m.Authorize(ref, int64(i))
			m.Close(ctx, ref)
		})
	}
	wg.Wait()
	assert.Zero(t, m.Len())
}
