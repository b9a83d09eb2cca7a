package capture

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oasis-community/opsbot/internal/platform"
)

func upload(userID, channelID string) platform.InboundMessage {
	return platform.InboundMessage{
		ID:          "m1",
		ChannelID:   channelID,
		AuthorID:    userID,
		Attachments: []platform.Attachment{{URL: "https://cdn.example/proof.png", Filename: "proof.png"}},
	}
}

func waitForWaiter(t *testing.T, h *Hub) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Len() == 1 }, time.Second, time.Millisecond)
}

func TestAwaitResolvesOnMatchingUpload(t *testing.T) {
	h := NewHub(nil, zap.NewNop())
	key := Key{UserID: "u1", ChannelID: "c1"}

	done := make(chan platform.InboundMessage, 1)
	go func() {
		msg, err := h.Await(context.Background(), key, nil, time.Second)
		assert.NoError(t, err)
		done <- msg
	}()
	waitForWaiter(t, h)

	assert.False(t, h.Deliver(upload("u2", "c1")), "other user")
	assert.False(t, h.Deliver(upload("u1", "c2")), "other channel")
	assert.False(t, h.Deliver(platform.InboundMessage{AuthorID: "u1", ChannelID: "c1", Content: "no file"}))
	assert.True(t, h.Deliver(upload("u1", "c1")))

	select {
	case msg := <-done:
		assert.Equal(t, "https://cdn.example/proof.png", msg.Attachments[0].URL)
	case <-time.After(time.Second):
		t.Fatal("waiter did not resolve")
	}
	assert.Equal(t, 0, h.Len())
}

func TestAwaitTimesOut(t *testing.T) {
	h := NewHub(nil, zap.NewNop())
	_, err := h.Await(context.Background(), Key{UserID: "u1", ChannelID: "c1"}, nil, 20*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 0, h.Len())
	assert.False(t, h.Deliver(upload("u1", "c1")))
}

func TestAwaitHonoursContext(t *testing.T) {
	h := NewHub(nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Await(ctx, Key{UserID: "u1", ChannelID: "c1"}, nil, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, h.Len())
}

func TestAwaitRejectsSecondWaiter(t *testing.T) {
	h := NewHub(nil, zap.NewNop())
	key := Key{UserID: "u1", ChannelID: "c1"}

	go func() {
		_, _ = h.Await(context.Background(), key, nil, 200*time.Millisecond)
	}()
	waitForWaiter(t, h)

	_, err := h.Await(context.Background(), key, nil, time.Second)
	require.ErrorIs(t, err, ErrAwaitInProgress)

	// A different channel for the same user is an independent key.
	_, err = h.Await(context.Background(), Key{UserID: "u1", ChannelID: "c2"}, nil, 10*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestAwaitCustomPredicate(t *testing.T) {
	h := NewHub(nil, zap.NewNop())
	key := Key{UserID: "u1", ChannelID: "c1"}
	onlyPNG := func(msg platform.InboundMessage) bool {
		return len(msg.Attachments) == 1 && msg.Attachments[0].Filename == "shot.png"
	}

	result := make(chan error, 1)
	go func() {
		_, err := h.Await(context.Background(), key, onlyPNG, time.Second)
		result <- err
	}()
	waitForWaiter(t, h)

	assert.False(t, h.Deliver(upload("u1", "c1")))
	msg := upload("u1", "c1")
	msg.Attachments[0].Filename = "shot.png"
	assert.True(t, h.Deliver(msg))
	require.NoError(t, <-result)
}
