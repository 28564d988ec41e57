package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/stadtaev/beatstatus/internal/metrics"
	"github.com/stadtaev/beatstatus/internal/status"
)

const defaultQueueLength = 64

var (
	ErrHubClosed      = errors.New("hub closed")
	ErrSlowSubscriber = errors.New("subscriber too slow")
	errSubscriberLeft = errors.New("subscriber closed")
)

// Hub fans envelopes out to subscribers and keeps the latest one as the
// snapshot served to new observers.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	latest status.Envelope
	closed bool

	// active counts subscriptions not yet released by their owner. idle is
	// closed once the hub is closed and active reaches zero.
	active int
	idle   chan struct{}

	buffer int
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewHub creates a hub whose subscribers each queue at most buffer frames.
func NewHub(logger *slog.Logger, clock clockwork.Clock, buffer int) *Hub {
	if buffer < 1 {
		buffer = defaultQueueLength
	}
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		idle:   make(chan struct{}),
		buffer: buffer,
		clock:  clock,
		logger: logger,
	}
}

// Subscription is one consumer of the hub. Frames arrive on C in
// emission order, the first being the snapshot at subscribe time.
type Subscription struct {
	ID uuid.UUID

	ch   chan []byte
	done chan struct{}
	err  error

	hub     *Hub
	once    sync.Once
	release sync.Once
}

// C delivers encoded envelopes. It is never closed; watch Done.
func (s *Subscription) C() <-chan []byte { return s.ch }

// Done is closed once the hub stops delivering to s.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err reports why delivery stopped. Valid after Done is closed.
func (s *Subscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Close unregisters s. Safe to call more than once and after eviction.
func (s *Subscription) Close() {
	s.hub.remove(s)
	s.terminate(errSubscriberLeft)
	s.release.Do(s.hub.release)
}

func (s *Subscription) terminate(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)

		reason := "closed"
		switch {
		case errors.Is(err, ErrSlowSubscriber):
			reason = "slow"
		case errors.Is(err, ErrHubClosed):
			reason = "shutdown"
		}
		metrics.SubscribersCurrent.Dec()
		metrics.SubscribersEvicted.WithLabelValues(reason).Inc()
		s.hub.logger.Debug("subscriber removed", "subscriber", s.ID.String(), "reason", reason)
	})
}

// Subscribe registers a new subscriber with the current snapshot already
// queued, so nothing broadcast later can reach it first.
func (h *Hub) Subscribe() (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	data, err := h.latest.AsSnapshot(h.clock.Now().UnixMilli()).Encode()
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}

	sub := &Subscription{
		ID:   uuid.New(),
		ch:   make(chan []byte, h.buffer),
		done: make(chan struct{}),
		hub:  h,
	}
	sub.ch <- data

	h.subs[sub] = struct{}{}
	h.active++
	metrics.SubscribersCurrent.Inc()
	h.logger.Debug("subscriber added", "subscriber", sub.ID.String(), "subscribers", len(h.subs))
	return sub, nil
}

func (h *Hub) release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active--
	if h.closed && h.active == 0 {
		close(h.idle)
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

// Retain replaces the snapshot without delivering env to anyone.
func (h *Hub) Retain(env status.Envelope) {
	h.mu.Lock()
	h.latest = env
	h.mu.Unlock()
}

// Broadcast makes env the snapshot and queues it for every subscriber.
// Subscribers whose queue is full are evicted; Broadcast never blocks on
// them.
func (h *Hub) Broadcast(env status.Envelope) {
	data, err := env.Encode()
	if err != nil {
		h.logger.Error("encoding envelope failed", "event", env.Event, "error", err)
		return
	}
	metrics.EnvelopeBytes.Observe(float64(len(data)))

	var slow []*Subscription

	h.mu.Lock()
	h.latest = env
	for sub := range h.subs {
		select {
		case sub.ch <- data:
		default:
			delete(h.subs, sub)
			slow = append(slow, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range slow {
		sub.terminate(ErrSlowSubscriber)
	}
}

// Snapshot returns the latest envelope relabelled as a snapshot.
func (h *Hub) Snapshot() status.Envelope {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest.AsSnapshot(h.clock.Now().UnixMilli())
}

// Count returns the number of registered subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Check implements health.Checker.
func (h *Hub) Check(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	return nil
}

// Close stops delivery to every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	if h.active == 0 {
		close(h.idle)
	}
	subs := make([]*Subscription, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	clear(h.subs)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.terminate(ErrHubClosed)
	}
	h.logger.Info("hub closed", "subscribers", len(subs))
}

// Wait blocks until the hub is closed and every subscription has been
// released with Close, or ctx ends.
func (h *Hub) Wait(ctx context.Context) error {
	select {
	case <-h.idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
