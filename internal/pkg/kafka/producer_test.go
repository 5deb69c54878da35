package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/GroupKeeper/internal/models"
	"github.com/Gopher0727/GroupKeeper/internal/services"
)

var _ services.BillingPublisher = (*Producer)(nil)

func TestPublishBilling(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	defer sp.Close()

	actor := int64(7)
	event := services.BillingEvent{
		ChatID:    -100123,
		Action:    models.ActionExtend,
		ActorID:   &actor,
		Days:      30,
		ExpiresAt: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		At:        time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "billing" {
			return errors.New("unexpected topic " + msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "-100123" {
			return errors.New("unexpected key " + string(key))
		}
		value, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var decoded services.BillingEvent
		if err := json.Unmarshal(value, &decoded); err != nil {
			return err
		}
		if decoded.Days != 30 || decoded.Action != models.ActionExtend || decoded.ActorID == nil || *decoded.ActorID != actor {
			return errors.New("unexpected payload " + string(value))
		}
		return nil
	})

	p := NewProducerWith(sp, "billing")
	require.NoError(t, p.PublishBilling(context.Background(), event))
}

func TestPublishBillingFailure(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	defer sp.Close()
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewProducerWith(sp, "billing")
	err := p.PublishBilling(context.Background(), services.BillingEvent{ChatID: 1})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
}

func TestProduceHonoursCancelledContext(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	defer sp.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewProducerWith(sp, "billing").Produce(ctx, "billing", nil, []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
