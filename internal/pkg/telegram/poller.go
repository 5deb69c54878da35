package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Gopher0727/GroupKeeper/internal/apperr"
)

// HandlerFunc processes one update. Updates are handled one at a time in
// arrival order.
type HandlerFunc func(ctx context.Context, u Update)

type Poller struct {
	client  *Client
	handler HandlerFunc
	timeout time.Duration
	backoff time.Duration
	log     *zap.Logger
}

func NewPoller(client *Client, handler HandlerFunc, timeout time.Duration, log *zap.Logger) *Poller {
	return &Poller{client: client, handler: handler, timeout: timeout, backoff: 3 * time.Second, log: log}
}

// Run polls until ctx is cancelled. It returns an error wrapping
// apperr.ErrDuplicateInstance when another consumer polls the same token;
// any other failure is logged and retried.
func (p *Poller) Run(ctx context.Context) error {
	offset := 0
	for {
		updates, err := p.client.GetUpdates(ctx, offset, p.timeout)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, apperr.ErrDuplicateInstance):
			return fmt.Errorf("poll updates: %w", err)
		case err != nil:
			p.log.Warn("Failed to poll updates", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.backoff):
			}
			continue
		}

		for _, u := range updates {
			p.dispatch(ctx, u)
			offset = u.UpdateID + 1
		}
	}
}

func (p *Poller) dispatch(ctx context.Context, u Update) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Update handler panicked", zap.Int("update_id", u.UpdateID), zap.Any("panic", r))
		}
	}()
	p.handler(ctx, u)
}
