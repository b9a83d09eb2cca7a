package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oasis-community/opsbot/internal/domain"
)

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
}

func (p *recordingPublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func TestDispatcherContinuesAfterHandlerError(t *testing.T) {
	d := NewInMemoryDispatcher(zap.NewNop())
	var calls []string
	d.Subscribe(EventDeliveryDecided, func(context.Context, Event) error {
		calls = append(calls, "first")
		return errors.New("boom")
	})
	d.Subscribe(EventDeliveryDecided, func(context.Context, Event) error {
		calls = append(calls, "second")
		return nil
	})
	d.Subscribe(EventTicketOpened, func(context.Context, Event) error {
		calls = append(calls, "other")
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), New(EventDeliveryDecided, domain.Actor{ID: "s1", Staff: true}, nil)))
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestDispatcherSurvivesHandlerPanic(t *testing.T) {
	d := NewInMemoryDispatcher(zap.NewNop())
	reached := false
	d.Subscribe(EventTicketClosed, func(context.Context, Event) error {
		panic("handler bug")
	})
	d.Subscribe(EventTicketClosed, func(context.Context, Event) error {
		reached = true
		return nil
	})

	require.NotPanics(t, func() {
		require.NoError(t, d.Publish(context.Background(), New(EventTicketClosed, domain.Actor{ID: "u1"}, TicketPayload{UserID: "u1"})))
	})
	assert.True(t, reached)
}

func TestNewStampsActor(t *testing.T) {
	ev := New(EventDeliverySubmitted, domain.Actor{ID: "u1"}, DeliverySubmittedPayload{DeliveryID: 7})
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, domain.SubjectTypeUser, ev.Actor.Type)
	assert.Equal(t, "u1", ev.Actor.UserID)
	assert.False(t, ev.Timestamp.IsZero())

	staff := New(EventDeliveryDecided, domain.Actor{ID: "s1", Staff: true}, nil)
	assert.Equal(t, domain.SubjectTypeStaff, staff.Actor.Type)
}

func TestNATSForwarderPublishesOnPrefixedSubject(t *testing.T) {
	pub := &recordingPublisher{}
	f := NewNATSForwarder(pub, "opsbot", zap.NewNop())
	d := NewInMemoryDispatcher(zap.NewNop())
	f.Attach(d, AllEventTypes...)

	payload := DeliveryDecidedPayload{DeliveryID: 42, UserID: "u1", Status: domain.DeliveryStatusApproved, DecidedBy: "s1"}
	require.NoError(t, d.Publish(context.Background(), New(EventDeliveryDecided, domain.Actor{ID: "s1", Staff: true}, payload)))

	require.Equal(t, []string{"opsbot.delivery_decided"}, pub.subjects)
	var decoded struct {
		Type    EventType `json:"type"`
		Payload struct {
			DeliveryID int64  `json:"delivery_id"`
			Status     string `json:"status"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(pub.payloads[0], &decoded))
	assert.Equal(t, EventDeliveryDecided, decoded.Type)
	assert.Equal(t, int64(42), decoded.Payload.DeliveryID)
	assert.Equal(t, "approved", decoded.Payload.Status)
}

func TestNATSForwarderReportsPublishError(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("disconnected")}
	f := NewNATSForwarder(pub, "", zap.NewNop())
	err := f.Handle(context.Background(), New(EventTicketClosed, domain.Actor{ID: "u1"}, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ticket_closed")
}
