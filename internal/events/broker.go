// Package events implements the pipeline's pub/sub channel: lifecycle
// and progress events fan out to live subscribers and the last N events
// per item are retained for replay to late-joining observers.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/shortform-agent/internal/models"
	"github.com/shortform-agent/internal/storage"
	"github.com/shortform-agent/pkg/logger"
)

// Broker fans out events to subscribers. Delivery is best-effort and
// at-most-once per live subscriber: a slow subscriber's events are
// dropped, not queued indefinitely. Events for one item are delivered in
// emission order.
type Broker struct {
	mu         sync.Mutex
	subs       map[*Subscriber]struct{}
	replay     map[uint][]*models.Event
	replaySize int
	subBuffer  int
	repo       storage.Repository // nil disables persistence
	log        *logger.Logger
}

// Subscriber receives events on a buffered channel
type Subscriber struct {
	ch     chan *models.Event
	itemID *uint // non-nil restricts delivery to one item
}

// Events returns the subscriber's receive channel
func (s *Subscriber) Events() <-chan *models.Event {
	return s.ch
}

// Options configures a broker
type Options struct {
	ReplaySize int // Events kept in memory per item
	SubBuffer  int // Channel depth per subscriber
}

// NewBroker creates a broker. repo may be nil to keep events in memory only.
func NewBroker(opts Options, repo storage.Repository, log *logger.Logger) *Broker {
	if opts.ReplaySize <= 0 {
		opts.ReplaySize = 50
	}
	if opts.SubBuffer <= 0 {
		opts.SubBuffer = 100
	}
	return &Broker{
		subs:       make(map[*Subscriber]struct{}),
		replay:     make(map[uint][]*models.Event),
		replaySize: opts.ReplaySize,
		subBuffer:  opts.SubBuffer,
		repo:       repo,
		log:        log.WithComponent("events"),
	}
}

// Publish delivers the event to all matching live subscribers, appends it
// to the in-memory replay ring and persists it. Publishing never blocks
// on a slow subscriber.
func (b *Broker) Publish(ctx context.Context, event *models.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.UserID == "" {
		event.UserID = "default"
	}

	b.mu.Lock()
	// Replay ring
	ring := append(b.replay[event.ItemID], event)
	if len(ring) > b.replaySize {
		ring = ring[len(ring)-b.replaySize:]
	}
	b.replay[event.ItemID] = ring

	// Fan out under the lock so per-item ordering is preserved
	for sub := range b.subs {
		if sub.itemID != nil && *sub.itemID != event.ItemID {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			b.log.Warn().
				Str("type", string(event.Type)).
				Uint("item_id", event.ItemID).
				Msg("Subscriber buffer full, dropping event")
		}
	}
	b.mu.Unlock()

	if b.repo != nil {
		if err := b.repo.SaveEvent(ctx, event); err != nil {
			b.log.Warn().Err(err).Msg("Failed to persist event")
			return
		}
		if err := b.repo.PruneEvents(ctx, event.ItemID, b.replaySize); err != nil {
			b.log.Warn().Err(err).Msg("Failed to prune event history")
		}
	}
}

// Subscribe registers a live subscriber. itemID restricts delivery to one
// item when non-nil.
func (b *Broker) Subscribe(itemID *uint) *Subscriber {
	sub := &Subscriber{
		ch:     make(chan *models.Event, b.subBuffer),
		itemID: itemID,
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes the subscriber and closes its channel
func (b *Broker) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	_, ok := b.subs[sub]
	delete(b.subs, sub)
	b.mu.Unlock()
	if ok {
		close(sub.ch)
	}
}

// History returns up to limit past events for the item in emission order,
// preferring persisted history over the in-memory ring.
func (b *Broker) History(ctx context.Context, itemID uint, limit int) ([]*models.Event, error) {
	if limit <= 0 || limit > b.replaySize {
		limit = b.replaySize
	}

	if b.repo != nil {
		return b.repo.ListEvents(ctx, itemID, limit)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	ring := b.replay[itemID]
	if len(ring) > limit {
		ring = ring[len(ring)-limit:]
	}
	out := make([]*models.Event, len(ring))
	copy(out, ring)
	return out, nil
}
