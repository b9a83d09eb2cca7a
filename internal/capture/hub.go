// Package capture suspends a workflow until a matching inbound message
// arrives or a deadline elapses.
package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/oasis-community/opsbot/internal/observability"
	"github.com/oasis-community/opsbot/internal/platform"
)

var (
	// ErrTimeout is returned when no matching message arrived before the deadline.
	ErrTimeout = errors.New("capture: timed out waiting for message")
	// ErrAwaitInProgress is returned when the key already has a live waiter.
	ErrAwaitInProgress = errors.New("capture: another wait is in progress for this user and channel")
)

// DefaultTimeout applies when Await is called without a positive timeout.
const DefaultTimeout = 2 * time.Minute

// Key identifies a waiter: one user in one channel.
type Key struct {
	UserID    string
	ChannelID string
}

// Predicate decides whether an inbound message satisfies a wait.
type Predicate func(platform.InboundMessage) bool

// HasAttachment accepts messages carrying at least one file.
func HasAttachment(msg platform.InboundMessage) bool {
	return len(msg.Attachments) > 0
}

type waiter struct {
	predicate Predicate
	result    chan platform.InboundMessage
}

// Hub routes inbound messages to at most one waiter per key.
type Hub struct {
	mu      sync.Mutex
	waiters map[Key]*waiter
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewHub constructs an empty hub.
func NewHub(metrics *observability.Metrics, logger *zap.Logger) *Hub {
	return &Hub{
		waiters: make(map[Key]*waiter),
		metrics: metrics,
		logger:  logger.Named("capture"),
	}
}

// Await blocks until a message from key.UserID in key.ChannelID satisfies
// predicate, the timeout elapses, or ctx ends. A nil predicate means
// HasAttachment.
func (h *Hub) Await(ctx context.Context, key Key, predicate Predicate, timeout time.Duration) (platform.InboundMessage, error) {
	if predicate == nil {
		predicate = HasAttachment
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	w := &waiter{predicate: predicate, result: make(chan platform.InboundMessage, 1)}
	if err := h.register(key, w); err != nil {
		return platform.InboundMessage{}, err
	}
	defer h.unregister(key, w)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-w.result:
		return msg, nil
	case <-timer.C:
		// A delivery may have raced the deadline.
		select {
		case msg := <-w.result:
			return msg, nil
		default:
		}
		h.logger.Debug("wait timed out",
			zap.String("user_id", key.UserID),
			zap.String("channel_id", key.ChannelID),
		)
		return platform.InboundMessage{}, ErrTimeout
	case <-ctx.Done():
		return platform.InboundMessage{}, ctx.Err()
	}
}

// Deliver offers msg to the waiter registered for its author and channel.
// It reports whether a waiter consumed the message.
func (h *Hub) Deliver(msg platform.InboundMessage) bool {
	key := Key{UserID: msg.AuthorID, ChannelID: msg.ChannelID}

	h.mu.Lock()
	w, ok := h.waiters[key]
	if !ok || !w.predicate(msg) {
		h.mu.Unlock()
		return false
	}
	delete(h.waiters, key)
	h.mu.Unlock()

	h.metrics.CaptureWaiters(-1)
	w.result <- msg
	return true
}

// Len returns the number of live waiters.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.waiters)
}

func (h *Hub) register(key Key, w *waiter) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, busy := h.waiters[key]; busy {
		return ErrAwaitInProgress
	}
	h.waiters[key] = w
	h.metrics.CaptureWaiters(1)
	return nil
}

func (h *Hub) unregister(key Key, w *waiter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.waiters[key]; ok && current == w {
		delete(h.waiters, key)
		h.metrics.CaptureWaiters(-1)
	}
}
