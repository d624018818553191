package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shortform-agent/internal/models"
	"github.com/shortform-agent/pkg/logger"
)

func testBroker(opts Options) *Broker {
	return NewBroker(opts, nil, logger.Nop())
}

func stageEvent(itemID uint, stage int) *models.Event {
	return &models.Event{
		Type:   models.EventStage,
		ItemID: itemID,
		Data:   models.JSON{"stage": stage},
	}
}

func TestPublishDeliversInOrder(t *testing.T) {
	b := testBroker(Options{})
	ctx := context.Background()

	sub := b.Subscribe(nil)
	defer b.Unsubscribe(sub)

	for i := 1; i <= 5; i++ {
		b.Publish(ctx, stageEvent(1, i))
	}

	for i := 1; i <= 5; i++ {
		event := <-sub.Events()
		assert.Equal(t, i, event.Data["stage"])
	}
}

func TestSubscribeItemFilter(t *testing.T) {
	b := testBroker(Options{})
	ctx := context.Background()

	itemID := uint(2)
	sub := b.Subscribe(&itemID)
	defer b.Unsubscribe(sub)

	b.Publish(ctx, stageEvent(1, 1))
	b.Publish(ctx, stageEvent(2, 2))
	b.Publish(ctx, stageEvent(3, 3))
	b.Publish(ctx, stageEvent(2, 4))

	first := <-sub.Events()
	assert.Equal(t, uint(2), first.ItemID)
	assert.Equal(t, 2, first.Data["stage"])

	second := <-sub.Events()
	assert.Equal(t, 4, second.Data["stage"])

	// Nothing else should have been delivered
	assert.Empty(t, sub.Events())
}

func TestSlowSubscriberDropsNotBlocks(t *testing.T) {
	b := testBroker(Options{SubBuffer: 2})
	ctx := context.Background()

	sub := b.Subscribe(nil)
	defer b.Unsubscribe(sub)

	// Publish past the buffer without reading; Publish must not block
	for i := 1; i <= 5; i++ {
		b.Publish(ctx, stageEvent(1, i))
	}

	// Only the first two fit; the rest were dropped
	assert.Equal(t, 1, (<-sub.Events()).Data["stage"])
	assert.Equal(t, 2, (<-sub.Events()).Data["stage"])
	assert.Empty(t, sub.Events())
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := testBroker(Options{})

	sub := b.Subscribe(nil)
	b.Unsubscribe(sub)

	_, ok := <-sub.Events()
	assert.False(t, ok)

	// Idempotent
	b.Unsubscribe(sub)
}

func TestHistoryFromReplayRing(t *testing.T) {
	b := testBroker(Options{ReplaySize: 3})
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		b.Publish(ctx, stageEvent(1, i))
	}
	b.Publish(ctx, stageEvent(2, 99))

	history, err := b.History(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	// Ring keeps the newest events, returned in emission order
	assert.Equal(t, 3, history[0].Data["stage"])
	assert.Equal(t, 5, history[2].Data["stage"])

	limited, err := b.History(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, 4, limited[0].Data["stage"])
}

func TestPublishFillsDefaults(t *testing.T) {
	b := testBroker(Options{})
	ctx := context.Background()

	sub := b.Subscribe(nil)
	defer b.Unsubscribe(sub)

	b.Publish(ctx, &models.Event{Type: models.EventItemStarted, ItemID: 1})

	event := <-sub.Events()
	assert.False(t, event.Timestamp.IsZero())
	assert.Equal(t, "default", event.UserID)
}
