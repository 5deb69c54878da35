// Package panel tracks interactive messages and who may press their buttons.
package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Gopher0727/GroupKeeper/internal/apperr"
	"github.com/Gopher0727/GroupKeeper/internal/pkg/telegram"
)

// Navigation callback data.
const (
	CallbackClose = "nav:close"
	CallbackBack  = "nav:back"
)

type Button = telegram.InlineKeyboardButton

// Sender is the part of the transport a panel needs.
type Sender interface {
	SendMessage(ctx context.Context, msg telegram.OutgoingMessage) (*telegram.Message, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

// Gauge receives the number of open panels after every change.
type Gauge interface {
	Set(float64)
}

// Ref identifies a panel message.
type Ref struct {
	ChatID    int64
	MessageID int
}

// Manager owns the panel table. Entries live until closed or the process
// exits; there is no expiry.
type Manager struct {
	sender Sender
	log    *zap.Logger
	gauge  Gauge

	mu     sync.Mutex
	owners map[Ref]int64
}

func NewManager(sender Sender, log *zap.Logger) *Manager {
	return &Manager{sender: sender, log: log, owners: make(map[Ref]int64)}
}

func (m *Manager) SetGauge(g Gauge) {
	m.gauge = g
}

// Open sends a panel and registers openerID as its owner. A root panel gets
// a Close control; any other panel gets Back and Close.
func (m *Manager) Open(ctx context.Context, chatID int64, title string, rows [][]Button, isRoot bool, openerID int64) (Ref, error) {
	nav := []Button{{Text: "✖️ Close", CallbackData: CallbackClose}}
	if !isRoot {
		nav = append([]Button{{Text: "🔙 Back", CallbackData: CallbackBack}}, nav...)
	}
	keyboard := make([][]Button, 0, len(rows)+1)
	keyboard = append(keyboard, rows...)
	keyboard = append(keyboard, nav)

	msg, err := m.sender.SendMessage(ctx, telegram.OutgoingMessage{
		ChatID:      chatID,
		Text:        title,
		ReplyMarkup: &telegram.InlineKeyboardMarkup{InlineKeyboard: keyboard},
	})
	if err != nil {
		return Ref{}, fmt.Errorf("open panel: %w", err)
	}

	ref := Ref{ChatID: chatID, MessageID: msg.MessageID}
	m.mu.Lock()
	m.owners[ref] = openerID
	n := len(m.owners)
	m.mu.Unlock()
	m.report(n)
	return ref, nil
}

// Authorize reports whether actorID may act on the message. Messages that are
// not registered panels are open to everyone.
func (m *Manager) Authorize(ref Ref, actorID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner, ok := m.owners[ref]
	return !ok || owner == actorID
}

// Owner returns the registered owner of ref.
func (m *Manager) Owner(ref Ref) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner, ok := m.owners[ref]
	return owner, ok
}

// Close deregisters the panel and deletes its message. A message that is
// already gone is not an error.
func (m *Manager) Close(ctx context.Context, ref Ref) {
	m.mu.Lock()
	delete(m.owners, ref)
	n := len(m.owners)
	m.mu.Unlock()
	m.report(n)

	err := m.sender.DeleteMessage(ctx, ref.ChatID, ref.MessageID)
	switch {
	case err == nil, errors.Is(err, apperr.ErrNotFound):
	default:
		m.log.Warn("Failed to delete panel",
			zap.Int64("chat_id", ref.ChatID),
			zap.Int("message_id", ref.MessageID),
			zap.Error(err),
		)
	}
}

// Back dismisses the current panel. The panel it was opened from is still
// shown in the chat above it.
func (m *Manager) Back(ctx context.Context, ref Ref) {
	m.Close(ctx, ref)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.owners)
}

func (m *Manager) report(n int) {
	if m.gauge != nil {
		m.gauge.Set(float64(n))
	}
}
