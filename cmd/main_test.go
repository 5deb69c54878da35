package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Gopher0727/GroupKeeper/internal/pkg/singleton"
)

type capturedNotice struct {
	chatID int64
	text   string
	ctxErr error
	hasDDL bool
}

type captureNotifier struct {
	notices []capturedNotice
	err     error
}

func (n *captureNotifier) Notify(ctx context.Context, chatID int64, text string) error {
	_, ok := ctx.Deadline()
	n.notices = append(n.notices, capturedNotice{chatID: chatID, text: text, ctxErr: ctx.Err(), hasDDL: ok})
	return n.err
}

func TestNotifyFatalUsesFreshDeadline(t *testing.T) {
	n := &captureNotifier{}
	notifyFatal(n, 42, singleton.ErrLost, zap.NewNop())

	require.Len(t, n.notices, 1)
	got := n.notices[0]
	assert.Equal(t, int64(42), got.chatID)
	assert.Contains(t, got.text, "lock lost")
	assert.NoError(t, got.ctxErr)
	assert.True(t, got.hasDDL)
}

func TestNotifyFatalToleratesSendFailure(t *testing.T) {
	n := &captureNotifier{err: errors.New("network down")}
	assert.NotPanics(t, func() {
		notifyFatal(n, 42, errors.New("conflict"), zap.NewNop())
	})
	assert.Len(t, n.notices, 1)
}
